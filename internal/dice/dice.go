// Package dice parses the platform-observed subset of dice notation and
// simulates rolls for sources that render notation without an outcome.
package dice

import (
	"math/rand"
	"regexp"
	"strconv"
	"strings"
)

// Group is one parsed dice term: count dice of the given side count plus
// a signed flat modifier.
type Group struct {
	Count    int
	Sides    int
	Modifier int
}

var notation = regexp.MustCompile(`(\d*)d(\d+)([+-]\d+)?`)

// Bounds on parsed notation. Notation comes from page content and is
// untrusted; Simulate allocates one result per die, so an uncapped
// count is a memory hazard.
const (
	DefaultMaxGroups = 20
	MaxDicePerGroup  = 100
)

// Clamp bounds groups to at most maxGroups groups of at most
// MaxDicePerGroup dice each. A maxGroups below one falls back to
// DefaultMaxGroups.
func Clamp(groups []Group, maxGroups int) []Group {
	if maxGroups < 1 {
		maxGroups = DefaultMaxGroups
	}
	if len(groups) > maxGroups {
		groups = groups[:maxGroups]
	}
	out := make([]Group, len(groups))
	for i, g := range groups {
		if g.Count > MaxDicePerGroup {
			g.Count = MaxDicePerGroup
		}
		out[i] = g
	}
	return out
}

// Parse scans expr for dice terms of the form [count]d<sides>[+/-mod]
// and returns them in order of appearance. Unmatched substrings are
// skipped. Count defaults to 1 when omitted. Parse never fails; it
// returns an empty slice for non-dice text. No bounds are enforced
// here; callers apply Clamp before simulating.
func Parse(expr string) []Group {
	matches := notation.FindAllStringSubmatch(strings.ToLower(expr), -1)
	groups := make([]Group, 0, len(matches))
	for _, m := range matches {
		count := 1
		if m[1] != "" {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			count = n
		}
		sides, err := strconv.Atoi(m[2])
		if err != nil || sides <= 0 {
			continue
		}
		modifier := 0
		if m[3] != "" {
			modifier, _ = strconv.Atoi(m[3])
		}
		groups = append(groups, Group{Count: count, Sides: sides, Modifier: modifier})
	}
	return groups
}

// Simulate rolls every group uniformly with rng and returns the ordered
// individual die results plus the grand total including modifiers. This
// backs the simulate-on-observe fallback for platforms that render
// clickable notation but no rolled outcome.
func Simulate(groups []Group, rng *rand.Rand) ([]int, int) {
	var results []int
	total := 0
	for _, g := range groups {
		for i := 0; i < g.Count; i++ {
			v := rng.Intn(g.Sides) + 1
			results = append(results, v)
			total += v
		}
		total += g.Modifier
	}
	return results, total
}

// PrimaryD20 returns the index of the first d20 group, or -1 if none.
// The primary d20 drives critical/fumble analysis downstream.
func PrimaryD20(groups []Group) int {
	for i, g := range groups {
		if g.Sides == 20 {
			return i
		}
	}
	return -1
}
