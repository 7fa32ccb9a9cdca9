// Package spawn turns spawn_groups into placed asset instances. A Planner
// normalizes group JSON, a Context places instances inside an area and a
// Spawner drives both for rooms, boundaries and map-wide sweeps.
package spawn

import (
	"math/rand"

	"github.com/zyedidia/generic/mapset"

	"github.com/Faultbox/vibble/internal/asset"
	"github.com/Faultbox/vibble/pkg/math"
)

// Placement methods as stored in the position field.
const (
	PositionRandom      = "Random"
	PositionExact       = "Exact"
	PositionCenter      = "Center"
	PositionPerimeter   = "Perimeter"
	PositionPercent     = "Percent"
	PositionEdge        = "Edge"
	PositionChildRandom = "ChildRandom"
	PositionMapWide     = "MapWide"
)

// Library is the asset catalogue spawning draws from.
type Library interface {
	Get(name string) (*asset.Info, bool)
	Names() []string
}

// Candidate is one weighted choice of a group. A Null candidate spawns
// nothing; a tag candidate resolves to a random asset carrying Tag.
type Candidate struct {
	Name   string
	Chance float64
	Info   *asset.Info
	Tag    string
	Null   bool

	pool []*asset.Info
}

// IsTag reports whether the candidate resolves through a tag.
func (c *Candidate) IsTag() bool { return c.Tag != "" }

func (c *Candidate) resolve(rng *rand.Rand) *asset.Info {
	switch {
	case c.Null:
		return nil
	case c.IsTag():
		if len(c.pool) == 0 {
			return nil
		}
		return c.pool[rng.Intn(len(c.pool))]
	}
	return c.Info
}

// Group is one normalized spawn group.
type Group struct {
	ID          string
	Name        string
	DisplayName string
	Position    string
	Priority    int
	Link        string
	Source      string

	Min, Max int
	Quantity int

	Candidates []Candidate

	// ExactOffset is the offset from the area center for Exact groups,
	// authored against a room of ExactOrigin size.
	ExactOffset math.Point
	ExactOrigin math.Point

	PerimeterRadius  int
	EdgeInsetPercent int

	EnforceSpacing  bool
	GridResolution  int
	ResolveGeometry bool
	ResolveQuantity bool
	OriginalWidth   int
	OriginalHeight  int

	// Checks is false for groups that skip spacing and zone checks.
	Checks bool

	bannedTags   mapset.Set[string]
	bannedAssets mapset.Set[string]
}

// SelectCandidate draws one candidate by chance and resolves it to an asset.
// When every chance is zero the candidates are equally likely. It returns
// nil for empty slots.
func (g *Group) SelectCandidate(rng *rand.Rand) *asset.Info {
	c := g.pick(rng)
	if c == nil {
		return nil
	}
	return c.resolve(rng)
}

func (g *Group) pick(rng *rand.Rand) *Candidate {
	if len(g.Candidates) == 0 {
		return nil
	}
	total := 0.0
	for _, c := range g.Candidates {
		total += max(c.Chance, 0)
	}
	if total <= 0 {
		return &g.Candidates[rng.Intn(len(g.Candidates))]
	}
	roll := rng.Float64() * total
	for i := range g.Candidates {
		w := max(g.Candidates[i].Chance, 0)
		if roll < w {
			return &g.Candidates[i]
		}
		roll -= w
	}
	return &g.Candidates[len(g.Candidates)-1]
}

// ByWeight returns the candidates in descending chance order, skipping
// empty slots. Ties keep their authored order.
func (g *Group) ByWeight() []*Candidate {
	out := make([]*Candidate, 0, len(g.Candidates))
	for i := range g.Candidates {
		if !g.Candidates[i].Null {
			out = append(out, &g.Candidates[i])
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Chance > out[j-1].Chance; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Banned reports whether info was excluded by a zero-chance candidate.
func (g *Group) Banned(info *asset.Info) bool {
	if info == nil {
		return false
	}
	if g.bannedAssets.Has(info.Name) {
		return true
	}
	for _, t := range info.Tags {
		if g.bannedTags.Has(t) {
			return true
		}
	}
	return false
}
