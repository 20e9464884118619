package opendap

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrFormat reports a DAS or ASCII body that could not be read.
var ErrFormat = errors.New("opendap: malformed response")

// GlobalContainer holds the file-level attributes.
const GlobalContainer = "NC_GLOBAL"

// Attribute is one typed DAS attribute. Multiple values are joined with ", ".
type Attribute struct {
	Type  string
	Value string
}

// AttrTable maps container name to attribute name to attribute.
type AttrTable map[string]map[string]Attribute

type tokKind int

const (
	tokWord tokKind = iota
	tokString
	tokOpen
	tokClose
	tokSemi
	tokComma
)

type token struct {
	kind tokKind
	text string
}

func tokenize(src string) ([]token, error) {
	var out []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '{':
			out = append(out, token{kind: tokOpen})
			i++
		case r == '}':
			out = append(out, token{kind: tokClose})
			i++
		case r == ';':
			out = append(out, token{kind: tokSemi})
			i++
		case r == ',':
			out = append(out, token{kind: tokComma})
			i++
		case r == '"':
			var b strings.Builder
			i++
			closed := false
			for i < len(rs) {
				if rs[i] == '\\' && i+1 < len(rs) {
					b.WriteRune(rs[i+1])
					i += 2
					continue
				}
				if rs[i] == '"' {
					closed = true
					i++
					break
				}
				b.WriteRune(rs[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("%w: unterminated string", ErrFormat)
			}
			out = append(out, token{kind: tokString, text: b.String()})
		default:
			start := i
			for i < len(rs) && !unicode.IsSpace(rs[i]) && !strings.ContainsRune("{};,\"", rs[i]) {
				i++
			}
			out = append(out, token{kind: tokWord, text: string(rs[start:i])})
		}
	}
	return out, nil
}

// ParseDAS reads a DAP2 attribute response. Attributes of nested containers
// are stored under their top-level container with a "inner." name prefix.
func ParseDAS(src string) (AttrTable, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	if len(toks) < 2 || toks[0].kind != tokWord || toks[0].text != "Attributes" || toks[1].kind != tokOpen {
		return nil, fmt.Errorf("%w: das must start with Attributes {", ErrFormat)
	}

	table := make(AttrTable)
	var stack []string
	for i := 2; i < len(toks); {
		t := toks[i]
		switch {
		case t.kind == tokClose:
			if len(stack) == 0 {
				return table, nil
			}
			stack = stack[:len(stack)-1]
			i++
		case t.kind == tokWord && i+1 < len(toks) && toks[i+1].kind == tokOpen:
			stack = append(stack, t.text)
			i += 2
		case t.kind == tokWord && i+1 < len(toks) && toks[i+1].kind == tokWord:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: attribute %s outside a container", ErrFormat, toks[i+1].text)
			}
			typ, name := t.text, toks[i+1].text
			i += 2
			var vals []string
			for i < len(toks) && toks[i].kind != tokSemi {
				if toks[i].kind == tokWord || toks[i].kind == tokString {
					vals = append(vals, toks[i].text)
				} else if toks[i].kind != tokComma {
					return nil, fmt.Errorf("%w: unexpected token in attribute %s", ErrFormat, name)
				}
				i++
			}
			if i == len(toks) {
				return nil, fmt.Errorf("%w: attribute %s not terminated", ErrFormat, name)
			}
			i++
			container := stack[0]
			if len(stack) > 1 {
				name = strings.Join(stack[1:], ".") + "." + name
			}
			if table[container] == nil {
				table[container] = make(map[string]Attribute)
			}
			table[container][name] = Attribute{Type: typ, Value: strings.Join(vals, ", ")}
		default:
			return nil, fmt.Errorf("%w: unexpected token %q", ErrFormat, t.text)
		}
	}
	return nil, fmt.Errorf("%w: das not closed", ErrFormat)
}
