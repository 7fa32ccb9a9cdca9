package spawn

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/zyedidia/generic/mapset"
	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/asset"
	"github.com/Faultbox/vibble/internal/geom"
	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/internal/world"
	"github.com/Faultbox/vibble/pkg/encoding"
	"github.com/Faultbox/vibble/pkg/jsonutil"
	"github.com/Faultbox/vibble/pkg/math"
)

// Source is a spawn_groups array and where it came from. Entries are edited
// in place; Persist, when set, is called once after any write-back.
type Source struct {
	Name    string
	Groups  []any
	Persist func()
}

// Planner normalizes the spawn groups of one or more sources into a
// priority-ordered queue.
type Planner struct {
	lib    Library
	ids    *world.IDs
	rng    *rand.Rand
	area   *geom.Area
	resize RelativeSize

	queue []*Group
}

// NewPlanner parses sources against area. Generated ids, priorities and
// resolve flags are written back to the entries.
func NewPlanner(lib Library, ids *world.IDs, rng *rand.Rand, area *geom.Area, sources ...Source) *Planner {
	p := &Planner{lib: lib, ids: ids, rng: rng, area: area}
	if area != nil {
		p.resize = RelativeSize{Width: area.Width(), Height: area.Height()}
	}
	for _, s := range sources {
		changed := false
		for i, raw := range s.Groups {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			g, dirty := p.parse(entry, i)
			changed = changed || dirty
			g.Source = s.Name
			p.queue = append(p.queue, g)
		}
		if changed && s.Persist != nil {
			s.Persist()
		}
	}
	sort.SliceStable(p.queue, func(i, j int) bool { return p.queue[i].Priority < p.queue[j].Priority })
	return p
}

// Queue returns the groups in spawn order.
func (p *Planner) Queue() []*Group { return p.queue }

func (p *Planner) newSpawnID() string {
	if p.ids == nil {
		p.ids = world.NewIDs(p.rng.Int63())
	}
	return "spn-" + strings.ToLower(p.ids.Next().String())
}

// NormalizePosition maps legacy and differently cased method names to the
// canonical ones. Unknown or empty values become Random.
func NormalizePosition(v string) string {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(v), " ", "")) {
	case "exact", "exactposition":
		return PositionExact
	case "center":
		return PositionCenter
	case "perimeter":
		return PositionPerimeter
	case "percent":
		return PositionPercent
	case "edge":
		return PositionEdge
	case "childrandom":
		return PositionChildRandom
	case "mapwide":
		return PositionMapWide
	}
	return PositionRandom
}

func (p *Planner) parse(entry jsonutil.Object, index int) (*Group, bool) {
	changed := false
	set := func(key string, v any) {
		entry[key] = v
		changed = true
	}

	g := &Group{Checks: true}
	g.ID = jsonutil.String(entry, "spawn_id", "")
	if g.ID == "" {
		g.ID = p.newSpawnID()
		set("spawn_id", g.ID)
	}
	if pr, ok := jsonutil.Integer(entry, "priority"); ok && pr >= 0 {
		g.Priority = pr
	} else {
		g.Priority = index
		set("priority", index)
	}

	rawPos := jsonutil.String(entry, "position", "")
	g.Position = NormalizePosition(rawPos)
	if rawPos != g.Position {
		set("position", g.Position)
	}

	g.Name = jsonutil.String(entry, "name", "")
	g.DisplayName = jsonutil.String(entry, "display_name", "")
	if g.DisplayName == "" {
		g.DisplayName = g.Name
	}
	if g.DisplayName == "" {
		g.DisplayName = g.ID
	}
	g.Link = jsonutil.String(entry, "link", "")

	defGeometry := g.Position == PositionExact || g.Position == PositionPerimeter
	if v, ok := jsonutil.ToBool(entry["resolve_geometry_to_room_size"]); ok {
		g.ResolveGeometry = v
	} else {
		g.ResolveGeometry = defGeometry
	}
	if _, isBool := entry["resolve_geometry_to_room_size"].(bool); !isBool {
		set("resolve_geometry_to_room_size", g.ResolveGeometry)
	}
	g.ResolveQuantity, _ = jsonutil.ToBool(entry["resolve_quantity"])
	if _, isBool := entry["resolve_quantity"].(bool); !isBool {
		set("resolve_quantity", g.ResolveQuantity)
	}

	g.OriginalWidth = jsonutil.Int(entry, "origional_width", 0)
	g.OriginalHeight = jsonutil.Int(entry, "origional_height", 0)
	if (g.ResolveGeometry || g.ResolveQuantity) && (g.OriginalWidth <= 0 || g.OriginalHeight <= 0) && p.resize.valid() {
		g.OriginalWidth, g.OriginalHeight = p.resize.Width, p.resize.Height
		set("origional_width", g.OriginalWidth)
		set("origional_height", g.OriginalHeight)
	}

	g.Min = max(0, jsonutil.Int(entry, "min_number", 1))
	g.Max = max(0, jsonutil.Int(entry, "max_number", g.Min))
	if g.Max < g.Min {
		g.Min, g.Max = g.Max, g.Min
	}
	if g.ResolveQuantity {
		f := p.resize.Factor(g.OriginalWidth, g.OriginalHeight)
		g.Min, g.Max = ScaleCount(g.Min, f), ScaleCount(g.Max, f)
	}
	switch {
	case g.Position == PositionExact:
		g.Quantity = 1
	case g.Max > g.Min:
		g.Quantity = g.Min + p.rng.Intn(g.Max-g.Min+1)
	default:
		g.Quantity = g.Min
	}

	p.parseExact(g, entry)
	g.PerimeterRadius = jsonutil.Int(entry, "radius", jsonutil.Int(entry, "perimeter_radius", 0))
	if g.ResolveGeometry && g.PerimeterRadius > 0 {
		f := p.resize.Factor(g.OriginalWidth, g.OriginalHeight)
		g.PerimeterRadius = ScaleCount(g.PerimeterRadius, f)
	}
	g.EdgeInsetPercent = math.ClampInt(jsonutil.Int(entry, "edge_inset_percent", 100), 0, 200)
	g.EnforceSpacing = jsonutil.Bool(entry, "enforce_spacing", false)
	g.GridResolution = jsonutil.Int(entry, "grid_resolution", 0)
	if v, ok := jsonutil.ToBool(entry["check_overlap"]); ok && !v {
		g.Checks = false
	}

	p.parseCandidates(g, entry)
	return g, changed
}

func (p *Planner) parseExact(g *Group, entry jsonutil.Object) {
	dx := jsonutil.Int(entry, "dx", jsonutil.Int(entry, "exact_dx", jsonutil.Int(entry, "ep_x", 0)))
	dy := jsonutil.Int(entry, "dy", jsonutil.Int(entry, "exact_dy", jsonutil.Int(entry, "ep_y", 0)))
	g.ExactOffset = math.Point{X: dx, Y: dy}
	g.ExactOrigin = math.Point{
		X: jsonutil.Int(entry, "exact_origin_width", g.OriginalWidth),
		Y: jsonutil.Int(entry, "exact_origin_height", g.OriginalHeight),
	}
	if g.ResolveGeometry {
		g.ExactOffset = p.resize.ScaleOffset(g.ExactOffset, g.ExactOrigin.X, g.ExactOrigin.Y)
	}
}

func (p *Planner) parseCandidates(g *Group, entry jsonutil.Object) {
	raw, ok := jsonutil.GetArray(entry, "candidates")
	if !ok {
		name := g.Name
		if name == "" {
			name = g.DisplayName
		}
		raw = []any{jsonutil.Object{"name": name, "chance": 100}}
	}

	g.bannedTags = mapset.New[string]()
	g.bannedAssets = mapset.New[string]()
	type pending struct {
		tag    string
		name   string
		chance float64
	}
	var list []pending
	for _, v := range raw {
		var c pending
		switch e := v.(type) {
		case string:
			c.name, c.chance = e, 100
		case map[string]any:
			c.name = jsonutil.String(e, "name", "")
			c.chance = jsonutil.Float(e, "chance", jsonutil.Float(e, "percent", 100))
			if t := jsonutil.String(e, "tag", ""); t != "" {
				c.tag = t
			} else if jsonutil.Bool(e, "is_tag", false) {
				c.tag = c.name
			}
		default:
			continue
		}
		if c.tag == "" && strings.HasPrefix(c.name, "#") {
			c.tag = strings.TrimPrefix(c.name, "#")
		}
		if c.chance <= 0 && !strings.EqualFold(c.name, "null") {
			switch {
			case c.tag != "":
				g.bannedTags.Put(c.tag)
			case c.name != "":
				g.bannedAssets.Put(c.name)
			}
			continue
		}
		list = append(list, c)
	}

	for _, c := range list {
		switch {
		case c.tag != "":
			cand := Candidate{Name: "#" + c.tag, Tag: c.tag, Chance: c.chance}
			cand.pool = p.tagPool(g, c.tag)
			g.Candidates = append(g.Candidates, cand)
		case c.name == "" || strings.EqualFold(c.name, "null"):
			g.Candidates = append(g.Candidates, Candidate{Name: "null", Null: true, Chance: c.chance})
		default:
			info := p.lookup(c.name)
			if info == nil {
				logger.Warn("spawn candidate not in library",
					zap.String("group", g.DisplayName), zap.String("asset", c.name))
				g.Candidates = append(g.Candidates, Candidate{Name: c.name, Null: true, Chance: c.chance})
				continue
			}
			g.Candidates = append(g.Candidates, Candidate{Name: info.Name, Info: info, Chance: c.chance})
		}
	}
}

func (p *Planner) lookup(name string) *asset.Info {
	if p.lib == nil {
		return nil
	}
	if info, ok := p.lib.Get(name); ok {
		return info
	}
	for _, n := range p.lib.Names() {
		if encoding.EqualFold(n, name) {
			info, _ := p.lib.Get(n)
			return info
		}
	}
	return nil
}

// tagPool collects the library assets carrying tag that the group has not
// banned and that do not reject the tag themselves.
func (p *Planner) tagPool(g *Group, tag string) []*asset.Info {
	if p.lib == nil {
		return nil
	}
	var pool []*asset.Info
	for _, n := range p.lib.Names() {
		info, ok := p.lib.Get(n)
		if !ok || !info.HasTag(tag) || info.HasAntiTag(tag) || g.Banned(info) {
			continue
		}
		pool = append(pool, info)
	}
	if len(pool) == 0 {
		logger.Warn("spawn tag matches no asset", zap.String("group", g.DisplayName), zap.String("tag", tag))
	}
	return pool
}
