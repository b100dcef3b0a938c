package compiler

import (
	"fmt"
	"math/rand"
)

// NameStyle selects the shape of synthesized identifiers.
type NameStyle int

const (
	// NameRandom resembles an internal compiler symbol: _$417_kXq9TbWwZoAb.
	// The $ relies on the GNU identifier extension, which gcc and clang
	// accept by default.
	NameRandom NameStyle = iota
	// NameSequential numbers identifiers: v0, v1, v2, ...
	NameSequential
	// NameMinimal uses the shortest free names: a, b, ..., z, aa, ab, ...
	NameMinimal
)

func (s NameStyle) String() string {
	switch s {
	case NameSequential:
		return "sequential"
	case NameMinimal:
		return "minimal"
	}
	return "random"
}

// ParseNameStyle maps a config string to a NameStyle.
func ParseNameStyle(s string) (NameStyle, error) {
	switch s {
	case "", "random":
		return NameRandom, nil
	case "sequential":
		return NameSequential, nil
	case "minimal":
		return NameMinimal, nil
	}
	return NameRandom, fmt.Errorf("unknown name style %q (want random, sequential, or minimal)", s)
}

const alnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// nameGen hands out fresh identifiers that collide neither with each other
// nor with any reserved name. All randomness comes from the compilation's
// seeded source, so a fixed seed reproduces the exact same names.
type nameGen struct {
	rng   *rand.Rand
	style NameStyle
	used  map[string]bool
	seq   int
}

func newNameGen(rng *rand.Rand, style NameStyle) *nameGen {
	return &nameGen{rng: rng, style: style, used: make(map[string]bool)}
}

// reserve marks name as taken so fresh never returns it.
func (g *nameGen) reserve(name string) { g.used[name] = true }

// fresh returns a new unique identifier in the configured style.
func (g *nameGen) fresh() string {
	for {
		var name string
		switch g.style {
		case NameSequential:
			name = fmt.Sprintf("v%d", g.seq)
			g.seq++
		case NameMinimal:
			name = minimalName(g.seq)
			g.seq++
		default:
			name = g.randomName()
		}
		if _, kw := keywords[name]; kw || g.used[name] {
			continue
		}
		g.used[name] = true
		return name
	}
}

func (g *nameGen) randomName() string {
	b := make([]byte, 12)
	for i := range b {
		b[i] = alnum[g.rng.Intn(len(alnum))]
	}
	return fmt.Sprintf("_$%d_%s", g.rng.Intn(1000), b)
}

// minimalName maps 0,1,2,... to a,b,...,z,aa,ab,... (bijective base 26).
func minimalName(n int) string {
	var buf []byte
	n++
	for n > 0 {
		n--
		buf = append([]byte{byte('a' + n%26)}, buf...)
		n /= 26
	}
	return string(buf)
}
