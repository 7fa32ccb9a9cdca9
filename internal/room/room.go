// Package room holds generated map regions: rooms and trails, their named
// sub-areas, owned asset instances and the graph connecting them.
package room

import (
	"fmt"
	"image/color"
	gomath "math"
	"math/rand"
	"sort"
	"strings"

	"github.com/Faultbox/vibble/internal/asset"
	"github.com/Faultbox/vibble/internal/geom"
	"github.com/Faultbox/vibble/internal/world"
	"github.com/Faultbox/vibble/pkg/encoding"
	"github.com/Faultbox/vibble/pkg/jsonutil"
	"github.com/Faultbox/vibble/pkg/math"
)

// Room types.
const (
	TypeRoom  = "room"
	TypeTrail = "trail"
)

// Manifest sections rooms are read from.
const (
	SectionRooms  = "rooms_data"
	SectionTrails = "trails_data"
)

// DefaultPlayer is added to static spawn rooms that hold no player.
const DefaultPlayer = "Vibble"

// areaResolution is the lattice resolution of generated room outlines.
const areaResolution = 3

// ID indexes a room inside its Graph.
type ID int

// NoRoom marks a missing link.
const NoRoom ID = -1

// Writer persists a room's JSON under section/name.
type Writer func(section, name string, data jsonutil.Object)

// Spec describes a room to build.
type Spec struct {
	Name    string
	Type    string
	Origin  math.Point
	Parent  ID
	Context string
	Section string
	// Data is the room's manifest entry. It is used in place, so edits
	// land in the owning map section.
	Data jsonutil.Object
	// Area, when set, is used as the room outline instead of generating one.
	Area      *geom.Area
	Grid      geom.MapGridSettings
	MapRadius float64
	Writer    Writer
	RNG       *rand.Rand
}

// Room is one generated region of the map.
type Room struct {
	ID        ID
	Name      string
	Type      string
	Origin    math.Point
	Directory string
	JSONPath  string

	Layer int
	Scale float64

	Area  *geom.Area
	Areas []NamedArea

	Parent   ID
	Left     ID
	Right    ID
	Children []ID

	Connected []ID

	Assets []*world.Asset

	data     jsonutil.Object
	section  string
	grid     geom.MapGridSettings
	inherits bool
	writer   Writer
}

// New builds a room and its outline. A missing Data starts empty.
func New(spec Spec) (*Room, error) {
	if spec.Data == nil {
		spec.Data = jsonutil.Object{}
	}
	if spec.Type == "" {
		spec.Type = TypeRoom
	}
	dir := spec.Section
	if spec.Context != "" {
		dir = spec.Context + "::" + spec.Section
	}
	r := &Room{
		ID:        NoRoom,
		Name:      spec.Name,
		Type:      spec.Type,
		Origin:    spec.Origin,
		Directory: dir,
		JSONPath:  dir + "::" + spec.Name,
		Layer:     -1,
		Scale:     1,
		Parent:    spec.Parent,
		Left:      NoRoom,
		Right:     NoRoom,
		data:      spec.Data,
		section:   spec.Section,
		grid:      spec.Grid,
		writer:    spec.Writer,
	}
	r.inherits = jsonutil.Bool(r.data, "inherits_map_assets", false)

	if spec.Area != nil {
		r.Area = geom.NewAreaFromPoints(r.Name, spec.Area.Points(), areaResolution)
	} else {
		area, err := r.generateArea(spec.MapRadius, spec.RNG)
		if err != nil {
			return nil, fmt.Errorf("room %s: %w", r.Name, err)
		}
		r.Area = area
	}
	r.Area.Type = TypeRoom
	r.loadAreas()
	return r, nil
}

func (r *Room) generateArea(mapRadius float64, rng *rand.Rand) (*geom.Area, error) {
	minW := jsonutil.Int(r.data, "min_width", 64)
	maxW := jsonutil.Int(r.data, "max_width", minW)
	minH := jsonutil.Int(r.data, "min_height", 64)
	maxH := jsonutil.Int(r.data, "max_height", minH)
	smooth := jsonutil.Int(r.data, "edge_smoothness", 2)
	geometry := encoding.Capitalize(jsonutil.String(r.data, "geometry", "square"))

	if geometry == geom.GeometryCircle {
		radius := jsonutil.Int(r.data, "radius", -1)
		if radius <= 0 {
			if d := max(minW, maxW, minH, maxH); d > 0 {
				radius = max(1, d/2)
			}
		}
		radius = max(1, radius)
		minW, maxW, minH, maxH = radius*2, radius*2, radius*2, radius*2
		r.data["radius"] = radius
	}
	w, h := max(minW, maxW), max(minH, maxH)

	extent := int(gomath.Round(mapRadius)) * 2
	if extent <= 0 {
		extent = 2 * (max(r.Origin.X, r.Origin.Y) + max(w, h))
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(int64(len(r.Name))))
	}
	return geom.NewAreaFromGeometry(r.Name, r.Origin, w, h, geometry, smooth, extent, extent, areaResolution, rng)
}

// Data returns the room's JSON entry.
func (r *Room) Data() jsonutil.Object { return r.data }

// Section returns the manifest section the room belongs to.
func (r *Room) Section() string { return r.section }

// GridSettings returns the map lattice settings the room was built with.
func (r *Room) GridSettings() geom.MapGridSettings { return r.grid }

// InheritsMapAssets reports whether map-wide spawns may land in the room.
func (r *Room) InheritsMapAssets() bool { return r.inherits }

// IsSpawn reports whether this is the player's spawn room.
func (r *Room) IsSpawn() bool { return jsonutil.Bool(r.data, "is_spawn", false) }

// IsBoss reports whether this is a boss room.
func (r *Room) IsBoss() bool { return jsonutil.Bool(r.data, "is_boss", false) }

// IsTrail reports whether the room is a connecting trail.
func (r *Room) IsTrail() bool { return r.Type == TypeTrail }

// DisplayColor returns the stored colour, or FallbackColor.
func (r *Room) DisplayColor() color.NRGBA {
	if c, ok := ReadColor(r.data); ok {
		c.A = 255
		return c
	}
	return FallbackColor
}

// SetScale sets the default camera scale inside the room.
func (r *Room) SetScale(s float64) {
	if s <= 0 || gomath.IsNaN(s) || gomath.IsInf(s, 0) {
		s = 1
	}
	r.Scale = s
}

// SpawnGroups returns the spawn_groups array, creating it when missing.
func (r *Room) SpawnGroups() []any {
	arr, _ := jsonutil.EnsureArray(r.data, "spawn_groups")
	return arr
}

// SetData replaces the room JSON and persists it.
func (r *Room) SetData(data jsonutil.Object) {
	src := jsonutil.CloneObject(data)
	for k := range r.data {
		delete(r.data, k)
	}
	for k, v := range src {
		r.data[k] = v
	}
	r.inherits = jsonutil.Bool(r.data, "inherits_map_assets", false)
	r.Save()
}

// Save hands the room JSON to the writer.
func (r *Room) Save() {
	if r.writer != nil {
		r.writer(r.section, r.Name, r.data)
	}
}

// AddAssets takes ownership of assets.
func (r *Room) AddAssets(assets ...*world.Asset) {
	r.Assets = append(r.Assets, assets...)
}

// TakeAssets hands the owned assets to the caller and empties the room.
func (r *Room) TakeAssets() []*world.Asset {
	out := r.Assets
	r.Assets = nil
	return out
}

// Contains reports whether p lies inside the room outline.
func (r *Room) Contains(p math.Point) bool {
	return r.Area != nil && r.Area.ContainsPoint(p)
}

// StaticJSON describes the room as a fixed layout: its current size and
// every owned asset as an exact spawn. Spawn rooms without a player get
// the default player at their center.
func (r *Room) StaticJSON(name string) jsonutil.Object {
	geometry := jsonutil.String(r.data, "geometry", "Square")
	w, h := r.Dimensions()
	out := jsonutil.Object{
		"name":                name,
		"min_width":           w,
		"max_width":           w,
		"min_height":          h,
		"max_height":          h,
		"edge_smoothness":     jsonutil.Int(r.data, "edge_smoothness", 2),
		"geometry":            geometry,
		"is_spawn":            r.IsSpawn(),
		"is_boss":             r.IsBoss(),
		"inherits_map_assets": r.inherits,
	}
	if strings.EqualFold(geometry, geom.GeometryCircle) {
		out["radius"] = max(0, w/2)
	}

	var center math.Point
	if r.Area != nil {
		center = r.Area.Center()
	}
	groups := []any{}
	hasPlayer := false
	for _, a := range r.Assets {
		if a == nil || a.Info == nil {
			continue
		}
		g := jsonutil.Object{
			"min_number":      1,
			"max_number":      1,
			"position":        "Exact",
			"enforce_spacing": false,
			"dx":              a.Pos.X - center.X,
			"dy":              a.Pos.Y - center.Y,
			"display_name":    a.Info.Name,
			"candidates": []any{
				jsonutil.Object{"name": "null", "chance": 0},
				jsonutil.Object{"name": a.Info.Name, "chance": 100},
			},
		}
		if w > 0 {
			g["origional_width"] = w
		}
		if h > 0 {
			g["origional_height"] = h
		}
		groups = append(groups, g)
		if a.Info.Type == asset.TypePlayer {
			hasPlayer = true
		}
	}
	if r.IsSpawn() && !hasPlayer {
		groups = append(groups, jsonutil.Object{
			"min_number":      1,
			"max_number":      1,
			"position":        "Center",
			"enforce_spacing": false,
			"display_name":    DefaultPlayer,
			"candidates": []any{
				jsonutil.Object{"name": "null", "chance": 0},
				jsonutil.Object{"name": DefaultPlayer, "chance": 100},
			},
		})
	}
	out["spawn_groups"] = groups
	return out
}

// Rename moves the room entry to newName inside mapInfo's section and
// updates owned assets.
func (r *Room) Rename(newName string, mapInfo jsonutil.Object) {
	if newName == "" || newName == r.Name || mapInfo == nil {
		return
	}
	section, _ := jsonutil.EnsureObject(mapInfo, r.section)
	r.data["name"] = newName
	section[newName] = r.data
	delete(section, r.Name)

	r.Name = newName
	if i := strings.LastIndex(r.JSONPath, "::"); i >= 0 {
		r.JSONPath = r.JSONPath[:i+2] + newName
	} else {
		r.JSONPath = newName
	}
	if r.Area != nil {
		r.Area.Name = newName
	}
	for _, a := range r.Assets {
		a.Room = newName
	}
}

func sortedKeys(m jsonutil.Object) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
