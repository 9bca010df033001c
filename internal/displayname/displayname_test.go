package displayname

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLookup serves taken-name checks from an in-memory set.
type fakeLookup struct {
	taken map[string]bool
	err   error
}

func (f *fakeLookup) IsTaken(_ context.Context, name string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.taken[name], nil
}

func (f *fakeLookup) CountMatching(_ context.Context, base string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	count := 0
	for name := range f.taken {
		if name == base {
			count++
			continue
		}
		rest, ok := strings.CutPrefix(name, base)
		if !ok || rest == "" {
			continue
		}
		numeric := true
		for _, r := range rest {
			if r < '0' || r > '9' {
				numeric = false
				break
			}
		}
		if numeric {
			count++
		}
	}
	return count, nil
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		name      string
		firstName string
		lastName  string
		want      string
	}{
		{"simple", "John", "Smith", "john.smith"},
		{"trims and lowercases", "  John ", " SMITH ", "john.smith"},
		{"strips punctuation", "O'Brien", "James!", "obrien.james"},
		{"keeps hyphens and digits", "Mary-Jane", "Watson3", "mary-jane.watson3"},
		{"keeps underscores", "Anne_Marie", "Poe", "anne_marie.poe"},
		{"keeps inner dots", "Mary", "St. James", "mary.st.james"},
		{"missing last name", "Cher", "", "cher"},
		{"missing first name", "", "Smith", "smith"},
		{"non-ascii stripped", "Жанна", "d'Arc", "darc"},
		{"nothing survives", "···", "!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseName(tt.firstName, tt.lastName))
		})
	}
}

func TestAllocateBaseFree(t *testing.T) {
	alloc := NewAllocator(&fakeLookup{taken: map[string]bool{}})

	got, err := alloc.Allocate(context.Background(), "John", "Smith")
	require.NoError(t, err)
	assert.Equal(t, "john.smith", got.Name)
	assert.Equal(t, StrategyBase, got.Strategy)
}

func TestAllocateCountsPastExistingSuffixes(t *testing.T) {
	lookup := &fakeLookup{taken: map[string]bool{
		"john.smith":  true,
		"john.smith2": true,
		"john.smith3": true,
	}}
	alloc := NewAllocator(lookup)

	got, err := alloc.Allocate(context.Background(), "John", "Smith")
	require.NoError(t, err)
	assert.Equal(t, "john.smith4", got.Name)
	assert.Equal(t, StrategySuffix, got.Strategy)
}

func TestAllocateProbesPastGaps(t *testing.T) {
	// Three matches put the counted candidate at john.smith4, which is
	// already held; the probe loop must walk forward to a free slot.
	lookup := &fakeLookup{taken: map[string]bool{
		"john.smith":  true,
		"john.smith4": true,
		"john.smith5": true,
	}}
	alloc := NewAllocator(lookup)

	got, err := alloc.Allocate(context.Background(), "John", "Smith")
	require.NoError(t, err)
	assert.Equal(t, "john.smith6", got.Name)
	assert.Equal(t, StrategySuffix, got.Strategy)
}

func TestAllocateFallsBackInsteadOfFailing(t *testing.T) {
	// Six matches put the counted candidate at john.smith7, and the gap in
	// the suffix sequence leaves 7 through 11 all held. Every probe misses,
	// so allocation must end in a random token, never an exhaustion error.
	lookup := &fakeLookup{taken: map[string]bool{
		"john.smith":   true,
		"john.smith7":  true,
		"john.smith8":  true,
		"john.smith9":  true,
		"john.smith10": true,
		"john.smith11": true,
	}}
	alloc := NewAllocator(lookup)

	got, err := alloc.Allocate(context.Background(), "John", "Smith")
	require.NoError(t, err)
	assert.Equal(t, StrategyRandom, got.Strategy)
	assert.True(t, strings.HasPrefix(got.Name, "user-"), "got %q", got.Name)
}

func TestAllocateEmptyNamesGetRandomToken(t *testing.T) {
	alloc := NewAllocator(&fakeLookup{taken: map[string]bool{}})

	got, err := alloc.Allocate(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, StrategyRandom, got.Strategy)
	assert.True(t, strings.HasPrefix(got.Name, "user-"), "got %q", got.Name)
}

func TestAllocateSurfacesLookupErrors(t *testing.T) {
	boom := errors.New("db gone")
	alloc := NewAllocator(&fakeLookup{err: boom})

	_, err := alloc.Allocate(context.Background(), "John", "Smith")
	require.ErrorIs(t, err, boom)
}

func TestRandomNameLength(t *testing.T) {
	name, err := RandomName(4)
	require.NoError(t, err)
	assert.Len(t, name, len("user-")+8)
}
