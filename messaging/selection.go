package messaging

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/glimte/streamgen/contracts"
)

var (
	// ErrNoTargetsConfigured is returned when a policy has nothing to choose from
	ErrNoTargetsConfigured = errors.New("messaging: no target streams configured")
	// ErrInvalidWeight is returned when a weighted target has a weight below 1
	ErrInvalidWeight = errors.New("messaging: weight must be a positive integer")
	// ErrUnknownSelection is returned for an unrecognised selection mode
	ErrUnknownSelection = errors.New("messaging: unknown selection mode")
)

// Selection modes accepted by NewSelectionPolicy
const (
	SelectionAuto     = "auto"
	SelectionFixed    = "fixed"
	SelectionUniform  = "uniform"
	SelectionWeighted = "weighted"
)

// SelectionPolicy chooses the destination stream for one publish attempt
type SelectionPolicy interface {
	Next() (string, error)
}

// RandomSource is the randomness a policy draws from. *rand.Rand satisfies it.
type RandomSource interface {
	Intn(n int) int
}

// NewRandomSource returns a time-seeded source
func NewRandomSource() RandomSource {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// lockedSource serialises access to a source that is not safe for concurrent use
type lockedSource struct {
	mu  sync.Mutex
	src RandomSource
}

func (l *lockedSource) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Intn(n)
}

func lock(src RandomSource) RandomSource {
	if src == nil {
		src = NewRandomSource()
	}
	if _, ok := src.(*lockedSource); ok {
		return src
	}
	return &lockedSource{src: src}
}

// Fixed always selects the same stream
type Fixed struct {
	name string
}

// NewFixed creates a policy for a single stream
func NewFixed(name string) (*Fixed, error) {
	if name == "" {
		return nil, ErrNoTargetsConfigured
	}
	return &Fixed{name: name}, nil
}

// Next returns the configured stream
func (f *Fixed) Next() (string, error) {
	return f.name, nil
}

// UniformRandom draws each stream with equal probability, independently per call
type UniformRandom struct {
	names []string
	src   RandomSource
}

// NewUniformRandom creates a uniform policy. A nil src uses a time-seeded source.
func NewUniformRandom(names []string, src RandomSource) *UniformRandom {
	return &UniformRandom{
		names: append([]string(nil), names...),
		src:   lock(src),
	}
}

// Next draws one stream
func (u *UniformRandom) Next() (string, error) {
	if len(u.names) == 0 {
		return "", ErrNoTargetsConfigured
	}
	return u.names[u.src.Intn(len(u.names))], nil
}

// WeightedTarget is a stream with its relative selection weight
type WeightedTarget struct {
	Name   string
	Weight int
}

// WeightedRandom draws each stream with probability weight/total, independently per call
type WeightedRandom struct {
	names      []string
	cumulative []int
	total      int
	src        RandomSource
}

// NewWeightedRandom validates the targets and creates a weighted policy.
// Every weight must be at least 1, the set must not be empty and the weights
// must sum to at most math.MaxInt.
func NewWeightedRandom(targets []WeightedTarget, src RandomSource) (*WeightedRandom, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargetsConfigured
	}

	w := &WeightedRandom{
		names:      make([]string, len(targets)),
		cumulative: make([]int, len(targets)),
		src:        lock(src),
	}
	for i, t := range targets {
		if t.Weight < 1 {
			return nil, fmt.Errorf("%w: %s has weight %d", ErrInvalidWeight, t.Name, t.Weight)
		}
		if t.Weight > math.MaxInt-w.total {
			return nil, fmt.Errorf("%w: total weight overflows at %s", ErrInvalidWeight, t.Name)
		}
		w.total += t.Weight
		w.names[i] = t.Name
		w.cumulative[i] = w.total
	}

	return w, nil
}

// Next draws one stream
func (w *WeightedRandom) Next() (string, error) {
	if w.total == 0 {
		return "", ErrNoTargetsConfigured
	}
	r := w.src.Intn(w.total)
	i := sort.Search(len(w.cumulative), func(i int) bool { return w.cumulative[i] > r })
	return w.names[i], nil
}

// RequestSpecified selects whatever stream the caller named. The name is not
// checked against the provisioned set; an unknown stream fails at publish time.
type RequestSpecified struct {
	Name string
}

// Next returns the requested stream
func (r RequestSpecified) Next() (string, error) {
	return r.Name, nil
}

// NewSelectionPolicy builds the policy for mode over specs. SelectionAuto picks
// Fixed for one stream, WeightedRandom when any spec carries a weight and
// UniformRandom otherwise. Streams without a weight count as weight 1.
func NewSelectionPolicy(mode string, specs []contracts.StreamSpec, opts ...SelectionOption) (SelectionPolicy, error) {
	cfg := selectionConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(specs) == 0 {
		return nil, ErrNoTargetsConfigured
	}

	if mode == "" || mode == SelectionAuto {
		switch {
		case len(specs) == 1:
			mode = SelectionFixed
		case contracts.HasWeights(specs):
			mode = SelectionWeighted
		default:
			mode = SelectionUniform
		}
	}

	switch mode {
	case SelectionFixed:
		if len(specs) != 1 {
			return nil, fmt.Errorf("messaging: fixed selection needs exactly one stream, got %d", len(specs))
		}
		return NewFixed(specs[0].Name)

	case SelectionUniform:
		return NewUniformRandom(contracts.StreamNames(specs), cfg.src), nil

	case SelectionWeighted:
		targets := make([]WeightedTarget, len(specs))
		for i, s := range specs {
			targets[i] = WeightedTarget{Name: s.Name, Weight: s.EffectiveWeight()}
		}
		return NewWeightedRandom(targets, cfg.src)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSelection, mode)
	}
}

type selectionConfig struct {
	src RandomSource
}

// SelectionOption configures NewSelectionPolicy
type SelectionOption func(*selectionConfig)

// WithRandomSource sets the source random policies draw from
func WithRandomSource(src RandomSource) SelectionOption {
	return func(cfg *selectionConfig) {
		cfg.src = src
	}
}
