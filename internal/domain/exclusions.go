package domain

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidExclusion reports a malformed catalog exclusion filter.
var ErrInvalidExclusion = errors.New("invalid exclusion filter")

// Exclusions is a list of substrings; catalog entries containing any of them
// are dropped.
type Exclusions []string

// Validate rejects empty members, which would otherwise exclude everything.
func (e Exclusions) Validate() error {
	for i, ex := range e {
		if ex == "" {
			return fmt.Errorf("%w: element %d is empty", ErrInvalidExclusion, i)
		}
	}
	return nil
}

// Excludes reports whether name contains any of the substrings.
func (e Exclusions) Excludes(name string) bool {
	for _, ex := range e {
		if strings.Contains(name, ex) {
			return true
		}
	}
	return false
}

// UnmarshalYAML only accepts a sequence of strings. A bare scalar such as
// `exclude: ENG` is an error rather than a one-element list.
func (e *Exclusions) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("%w: line %d: must be a list of strings", ErrInvalidExclusion, value.Line)
	}
	out := make(Exclusions, 0, len(value.Content))
	for _, item := range value.Content {
		if item.Kind != yaml.ScalarNode || item.ShortTag() != "!!str" {
			return fmt.Errorf("%w: line %d: element %q must be a string", ErrInvalidExclusion, item.Line, item.Value)
		}
		out = append(out, item.Value)
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*e = out
	return nil
}
