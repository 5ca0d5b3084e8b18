package messaging

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/glimte/streamgen/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trials = 100000

func seeded() RandomSource {
	return rand.New(rand.NewSource(42))
}

func frequencies(t *testing.T, policy SelectionPolicy, n int) map[string]float64 {
	t.Helper()
	counts := make(map[string]int)
	for i := 0; i < n; i++ {
		name, err := policy.Next()
		require.NoError(t, err)
		counts[name]++
	}
	freq := make(map[string]float64, len(counts))
	for name, c := range counts {
		freq[name] = float64(c) / float64(n)
	}
	return freq
}

func TestFixed(t *testing.T) {
	t.Run("always returns the configured stream", func(t *testing.T) {
		policy, err := NewFixed("demo")
		require.NoError(t, err)

		for i := 0; i < 10; i++ {
			name, err := policy.Next()
			require.NoError(t, err)
			assert.Equal(t, "demo", name)
		}
	})

	t.Run("empty name is rejected", func(t *testing.T) {
		_, err := NewFixed("")
		assert.ErrorIs(t, err, ErrNoTargetsConfigured)
	})
}

func TestUniformRandom(t *testing.T) {
	t.Run("frequencies approximate 1/N", func(t *testing.T) {
		names := []string{"a", "b", "c", "d"}
		freq := frequencies(t, NewUniformRandom(names, seeded()), trials)

		require.Len(t, freq, len(names))
		for _, name := range names {
			assert.InDelta(t, 0.25, freq[name], 0.02, name)
		}
	})

	t.Run("empty set fails at draw time", func(t *testing.T) {
		_, err := NewUniformRandom(nil, seeded()).Next()
		assert.ErrorIs(t, err, ErrNoTargetsConfigured)
	})

	t.Run("input slice is copied", func(t *testing.T) {
		names := []string{"a"}
		policy := NewUniformRandom(names, seeded())
		names[0] = "mutated"

		name, err := policy.Next()
		require.NoError(t, err)
		assert.Equal(t, "a", name)
	})

	t.Run("same seed gives the same sequence", func(t *testing.T) {
		names := []string{"a", "b", "c"}
		p1 := NewUniformRandom(names, seeded())
		p2 := NewUniformRandom(names, seeded())

		for i := 0; i < 100; i++ {
			n1, _ := p1.Next()
			n2, _ := p2.Next()
			require.Equal(t, n1, n2)
		}
	})

	t.Run("safe for concurrent draws", func(t *testing.T) {
		policy := NewUniformRandom([]string{"a", "b"}, seeded())
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 1000; i++ {
					_, err := policy.Next()
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()
	})
}

func TestWeightedRandom(t *testing.T) {
	t.Run("frequencies approximate w/sum", func(t *testing.T) {
		targets := []WeightedTarget{
			{Name: "orders", Weight: 6},
			{Name: "payments", Weight: 3},
			{Name: "audit", Weight: 1},
		}
		policy, err := NewWeightedRandom(targets, seeded())
		require.NoError(t, err)

		freq := frequencies(t, policy, trials)
		assert.InDelta(t, 0.6, freq["orders"], 0.02)
		assert.InDelta(t, 0.3, freq["payments"], 0.02)
		assert.InDelta(t, 0.1, freq["audit"], 0.02)
	})

	t.Run("single target always wins", func(t *testing.T) {
		policy, err := NewWeightedRandom([]WeightedTarget{{Name: "only", Weight: 9}}, seeded())
		require.NoError(t, err)

		freq := frequencies(t, policy, 1000)
		assert.Equal(t, 1.0, freq["only"])
	})

	t.Run("empty set fails at setup", func(t *testing.T) {
		_, err := NewWeightedRandom(nil, seeded())
		assert.ErrorIs(t, err, ErrNoTargetsConfigured)
	})

	t.Run("zero weight fails at setup", func(t *testing.T) {
		_, err := NewWeightedRandom([]WeightedTarget{{Name: "a", Weight: 1}, {Name: "b", Weight: 0}}, seeded())
		assert.ErrorIs(t, err, ErrInvalidWeight)
	})

	t.Run("negative weight fails at setup", func(t *testing.T) {
		_, err := NewWeightedRandom([]WeightedTarget{{Name: "a", Weight: -1}}, seeded())
		assert.ErrorIs(t, err, ErrInvalidWeight)
	})

	t.Run("weights summing past MaxInt fail at setup", func(t *testing.T) {
		targets := []WeightedTarget{{Name: "a", Weight: math.MaxInt}, {Name: "b", Weight: 1}}
		_, err := NewWeightedRandom(targets, seeded())
		assert.ErrorIs(t, err, ErrInvalidWeight)
	})

	t.Run("weights summing to MaxInt draw without panic", func(t *testing.T) {
		targets := []WeightedTarget{{Name: "a", Weight: math.MaxInt - 1}, {Name: "b", Weight: 1}}
		policy, err := NewWeightedRandom(targets, seeded())
		require.NoError(t, err)
		assert.NotPanics(t, func() { _, _ = policy.Next() })
	})

	t.Run("zero value fails at draw time", func(t *testing.T) {
		_, err := (&WeightedRandom{}).Next()
		assert.ErrorIs(t, err, ErrNoTargetsConfigured)
	})
}

func TestRequestSpecified(t *testing.T) {
	name, err := RequestSpecified{Name: "never-provisioned"}.Next()
	require.NoError(t, err)
	assert.Equal(t, "never-provisioned", name)
}

func TestNewSelectionPolicy(t *testing.T) {
	one := []contracts.StreamSpec{{Name: "demo"}}
	plain := []contracts.StreamSpec{{Name: "a"}, {Name: "b"}}
	weighted := []contracts.StreamSpec{{Name: "a", Weight: 3}, {Name: "b"}}

	tests := []struct {
		name  string
		mode  string
		specs []contracts.StreamSpec
		want  interface{}
	}{
		{"auto with one stream is fixed", SelectionAuto, one, &Fixed{}},
		{"empty mode behaves like auto", "", plain, &UniformRandom{}},
		{"auto without weights is uniform", SelectionAuto, plain, &UniformRandom{}},
		{"auto with weights is weighted", SelectionAuto, weighted, &WeightedRandom{}},
		{"explicit uniform ignores weights", SelectionUniform, weighted, &UniformRandom{}},
		{"explicit weighted without weights", SelectionWeighted, plain, &WeightedRandom{}},
		{"explicit fixed", SelectionFixed, one, &Fixed{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy, err := NewSelectionPolicy(tt.mode, tt.specs, WithRandomSource(seeded()))
			require.NoError(t, err)
			assert.IsType(t, tt.want, policy)
		})
	}

	t.Run("unset weights count as 1", func(t *testing.T) {
		policy, err := NewSelectionPolicy(SelectionWeighted, weighted, WithRandomSource(seeded()))
		require.NoError(t, err)

		freq := frequencies(t, policy, trials)
		assert.InDelta(t, 0.75, freq["a"], 0.02)
		assert.InDelta(t, 0.25, freq["b"], 0.02)
	})

	t.Run("no specs is a configuration error", func(t *testing.T) {
		_, err := NewSelectionPolicy(SelectionAuto, nil)
		assert.ErrorIs(t, err, ErrNoTargetsConfigured)
	})

	t.Run("fixed with several streams is rejected", func(t *testing.T) {
		_, err := NewSelectionPolicy(SelectionFixed, plain)
		assert.Error(t, err)
	})

	t.Run("unknown mode is rejected", func(t *testing.T) {
		_, err := NewSelectionPolicy("round-robin", plain)
		assert.ErrorIs(t, err, ErrUnknownSelection)
	})
}
