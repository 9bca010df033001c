// Package displayname assigns unique, human-readable display names to users.
package displayname

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Lookup answers questions about display names that are already taken.
type Lookup interface {
	// IsTaken reports whether a display name is already assigned to a user.
	IsTaken(ctx context.Context, name string) (bool, error)
	// CountMatching counts users whose display name is the given base or the
	// base followed by a numeric suffix.
	CountMatching(ctx context.Context, base string) (int, error)
}

// Strategy identifies which naming strategy produced a display name.
type Strategy string

const (
	// StrategyBase means the name-derived base was free and used as-is.
	StrategyBase Strategy = "base"
	// StrategySuffix means the base was taken and a numeric suffix was appended.
	StrategySuffix Strategy = "suffix"
	// StrategyRandom means no name-derived candidate was available and a
	// random token was used instead.
	StrategyRandom Strategy = "random"
	// StrategyChosen means the caller supplied the name; nothing was
	// allocated.
	StrategyChosen Strategy = "chosen"
)

// maxProbes bounds how many suffixed candidates are verified after the
// counted one before giving up and falling back to a random token.
const maxProbes = 5

// Result is an allocated display name together with how it was chosen.
type Result struct {
	Name     string
	Strategy Strategy
}

// Allocator picks unique display names from a user's first and last name.
type Allocator struct {
	lookup Lookup
}

// NewAllocator creates an Allocator backed by the given lookup.
func NewAllocator(lookup Lookup) *Allocator {
	return &Allocator{lookup: lookup}
}

// Allocate derives a display name from the name parts and disambiguates it
// against existing users. It never fails from exhaustion: when the
// name-derived candidates run out it falls back to a random token. An error
// is only returned when the lookup itself fails.
func (a *Allocator) Allocate(ctx context.Context, firstName, lastName string) (Result, error) {
	base := BaseName(firstName, lastName)
	if base == "" {
		return a.fallback(ctx)
	}

	taken, err := a.lookup.IsTaken(ctx, base)
	if err != nil {
		return Result{}, fmt.Errorf("check display name %q: %w", base, err)
	}
	if !taken {
		return Result{Name: base, Strategy: StrategyBase}, nil
	}

	// Count every user already holding the base or a suffixed variant and
	// jump straight past them, instead of probing suffixes one at a time.
	count, err := a.lookup.CountMatching(ctx, base)
	if err != nil {
		return Result{}, fmt.Errorf("count display names for %q: %w", base, err)
	}

	next := count + 1
	for i := 0; i < maxProbes; i++ {
		candidate := base + strconv.Itoa(next)
		taken, err := a.lookup.IsTaken(ctx, candidate)
		if err != nil {
			return Result{}, fmt.Errorf("check display name %q: %w", candidate, err)
		}
		if !taken {
			return Result{Name: candidate, Strategy: StrategySuffix}, nil
		}
		next++
	}

	return a.fallback(ctx)
}

// fallback generates a random token name. The first attempt is verified
// against the lookup; a collision widens the token instead of looping.
func (a *Allocator) fallback(ctx context.Context) (Result, error) {
	name, err := RandomName(4)
	if err != nil {
		return Result{}, err
	}
	taken, err := a.lookup.IsTaken(ctx, name)
	if err != nil {
		return Result{}, fmt.Errorf("check display name %q: %w", name, err)
	}
	if taken {
		if name, err = RandomName(8); err != nil {
			return Result{}, err
		}
	}
	return Result{Name: name, Strategy: StrategyRandom}, nil
}

// RandomName returns a display name built from n random bytes, hex encoded.
func RandomName(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random display name: %w", err)
	}
	return "user-" + hex.EncodeToString(buf), nil
}

// BaseName derives the base display name from a user's name parts: each part
// is lowercased and stripped to [a-z0-9._-], then the surviving parts are
// joined with a dot. It returns "" when nothing survives normalization.
func BaseName(firstName, lastName string) string {
	parts := make([]string, 0, 2)
	for _, part := range []string{firstName, lastName} {
		if p := normalizePart(part); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

func normalizePart(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
