package contracts

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrEmptyStreamName is returned for a blank stream name
	ErrEmptyStreamName = errors.New("contracts: stream name is empty")
	// ErrDuplicateStream is returned when a name appears twice in one set
	ErrDuplicateStream = errors.New("contracts: duplicate stream name")
	// ErrInvalidWeight is returned for a weight below 1
	ErrInvalidWeight = errors.New("contracts: weight must be a positive integer")
)

// StreamSpec names a stream to provision. Weight is 0 when the entry did not
// give one; an explicit weight is always at least 1.
type StreamSpec struct {
	Name   string
	Weight int
}

// EffectiveWeight returns the weight used for weighted selection
func (s StreamSpec) EffectiveWeight() int {
	if s.Weight == 0 {
		return 1
	}
	return s.Weight
}

func (s StreamSpec) String() string {
	if s.Weight == 0 {
		return s.Name
	}
	return fmt.Sprintf("%s:%d", s.Name, s.Weight)
}

// ParseStreamSpecs parses a comma-separated list of name or name:weight entries.
// Blank entries are skipped.
func ParseStreamSpecs(raw string) ([]StreamSpec, error) {
	var specs []StreamSpec
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		spec := StreamSpec{Name: part}
		if name, weight, ok := strings.Cut(part, ":"); ok {
			w, err := strconv.Atoi(strings.TrimSpace(weight))
			if err != nil || w < 1 {
				return nil, fmt.Errorf("%w: %q", ErrInvalidWeight, part)
			}
			spec = StreamSpec{Name: strings.TrimSpace(name), Weight: w}
		}
		specs = append(specs, spec)
	}

	if err := ValidateStreamSpecs(specs); err != nil {
		return nil, err
	}
	return specs, nil
}

// ValidateStreamSpecs checks that names are present and unique, weights are
// not negative and the effective weights sum without overflowing int
func ValidateStreamSpecs(specs []StreamSpec) error {
	seen := make(map[string]struct{}, len(specs))
	total := 0
	for _, s := range specs {
		if s.Name == "" {
			return ErrEmptyStreamName
		}
		if s.Weight < 0 {
			return fmt.Errorf("%w: %s has weight %d", ErrInvalidWeight, s.Name, s.Weight)
		}
		if s.EffectiveWeight() > math.MaxInt-total {
			return fmt.Errorf("%w: total weight overflows at %s", ErrInvalidWeight, s.Name)
		}
		total += s.EffectiveWeight()
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateStream, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

// StreamNames returns the names of specs in order
func StreamNames(specs []StreamSpec) []string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}

// HasWeights reports whether any spec carries an explicit weight
func HasWeights(specs []StreamSpec) bool {
	for _, s := range specs {
		if s.Weight != 0 {
			return true
		}
	}
	return false
}
