package opendap

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Decl is one top-level variable declared in the DDS.
type Decl struct {
	Type string
	Name string
	Dims []Dim
}

type Dim struct {
	Name string
	Size int
}

// Numeric reports whether values of the declared type can be read as float64.
func (d Decl) Numeric() bool {
	switch d.Type {
	case "Byte", "Int8", "UInt8", "Int16", "UInt16", "Int32", "UInt32", "Int64", "UInt64", "Float32", "Float64":
		return true
	}
	return false
}

var (
	declRe   = regexp.MustCompile(`^(\w+)\s+([\w.\-]+)((?:\s*\[[^\]]*\])*)\s*;$`)
	dimRe    = regexp.MustCompile(`\[\s*(?:(\w+)\s*=\s*)?(\d+)\s*\]`)
	headerRe = regexp.MustCompile(`^([\w.\-]+)((?:\[\d+\])*)\s*(?:,\s*(.*))?$`)
	dashesRe = regexp.MustCompile(`^-{5,}\s*$`)
)

// ParseASCII reads a DAP2 ASCII response: the DDS, a line of dashes, then one
// block per variable. Only scalars and one-dimensional numeric arrays are
// returned; everything else is skipped.
func ParseASCII(src string) ([]Decl, map[string][]float64, error) {
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")

	sep := -1
	for i, l := range lines {
		if dashesRe.MatchString(strings.TrimSpace(l)) {
			sep = i
			break
		}
	}
	if sep < 0 {
		return nil, nil, fmt.Errorf("%w: ascii response has no data separator", ErrFormat)
	}

	decls, err := parseDDS(lines[:sep])
	if err != nil {
		return nil, nil, err
	}
	byName := make(map[string]Decl, len(decls))
	for _, d := range decls {
		byName[d.Name] = d
	}

	values := make(map[string][]float64)
	var pending string
	for _, raw := range lines[sep+1:] {
		l := strings.TrimSpace(raw)
		if l == "" || strings.HasPrefix(l, "[") {
			continue
		}
		if pending != "" {
			vals, err := parseValues(l)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %s: %v", ErrFormat, pending, err)
			}
			values[pending] = vals
			pending = ""
			continue
		}

		m := headerRe.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		name, idx, rest := m[1], m[2], m[3]
		d, ok := byName[name]
		if !ok || !d.Numeric() || len(d.Dims) > 1 || strings.Count(idx, "[") > 1 {
			continue
		}
		if rest == "" {
			pending = name
			continue
		}
		vals, err := parseValues(rest)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrFormat, name, err)
		}
		values[name] = vals
	}

	kept := make([]Decl, 0, len(decls))
	for _, d := range decls {
		if _, ok := values[d.Name]; ok {
			kept = append(kept, d)
		}
	}
	return kept, values, nil
}

func parseDDS(lines []string) ([]Decl, error) {
	var (
		out   []Decl
		depth int
	)
	for _, raw := range lines {
		l := strings.TrimSpace(raw)
		switch {
		case l == "":
			continue
		case strings.HasSuffix(l, "{"):
			depth++
			continue
		case strings.HasPrefix(l, "}"):
			depth--
			continue
		}
		if depth != 1 {
			continue
		}
		m := declRe.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		d := Decl{Type: m[1], Name: m[2]}
		for _, dm := range dimRe.FindAllStringSubmatch(m[3], -1) {
			n, err := strconv.Atoi(dm[2])
			if err != nil {
				return nil, fmt.Errorf("%w: dimension of %s", ErrFormat, d.Name)
			}
			d.Dims = append(d.Dims, Dim{Name: dm[1], Size: n})
		}
		out = append(out, d)
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: unbalanced dds", ErrFormat)
	}
	return out, nil
}

func parseValues(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
