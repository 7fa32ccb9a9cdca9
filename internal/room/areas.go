package room

import (
	gomath "math"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/geom"
	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/pkg/jsonutil"
	"github.com/Faultbox/vibble/pkg/math"
)

// AreaKind classifies named room areas.
type AreaKind int

// Area kinds. Rooms store Spawn and Trigger areas only.
const (
	KindUnknown AreaKind = iota
	KindSpawn
	KindTrigger
)

// String returns the stored kind name.
func (k AreaKind) String() string {
	switch k {
	case KindSpawn:
		return "Spawn"
	case KindTrigger:
		return "Trigger"
	}
	return ""
}

// Supported reports whether rooms keep areas of this kind.
func (k AreaKind) Supported() bool { return k == KindSpawn || k == KindTrigger }

func parseKind(v string) AreaKind {
	l := strings.ToLower(v)
	switch {
	case l == "":
		return KindUnknown
	case strings.Contains(l, "spawn"):
		return KindSpawn
	case strings.Contains(l, "trigger"):
		return KindTrigger
	}
	return KindUnknown
}

// InferKind tries the explicit kind, then the type, then the area name.
func InferKind(kind, typeHint, nameHint string) AreaKind {
	for _, s := range []string{kind, typeHint, nameHint} {
		if k := parseKind(s); k != KindUnknown {
			return k
		}
	}
	return KindUnknown
}

// Anchor is where an area's relative points are measured from.
type Anchor struct {
	World            math.Point
	Offset           math.Point
	RelativeToCenter bool
}

func readPoint(obj jsonutil.Object) math.Point {
	return math.Point{X: jsonutil.Int(obj, "x", 0), Y: jsonutil.Int(obj, "y", 0)}
}

func pointJSON(p math.Point) jsonutil.Object {
	return jsonutil.Object{"x": p.X, "y": p.Y}
}

// ResolveAnchor reads the stored anchor of entry. Spawn and Trigger areas
// default to an offset from the room center.
func ResolveAnchor(entry jsonutil.Object, center math.Point, kind AreaKind) Anchor {
	a := Anchor{World: center, RelativeToCenter: kind.Supported()}

	var stored math.Point
	an, hasAnchor := jsonutil.GetObject(entry, "anchor")
	if hasAnchor {
		stored = readPoint(an)
	}
	flag, hasFlag := entry["anchor_relative_to_center"]
	wantRelative := a.RelativeToCenter
	if b, ok := flag.(bool); hasFlag && ok {
		wantRelative = b
	} else if !hasFlag && a.RelativeToCenter {
		stored = math.Point{}
		wantRelative = true
	}

	switch {
	case wantRelative && a.RelativeToCenter:
		a.Offset = stored
		a.World = center.Add(stored)
	case hasAnchor:
		a.World = stored
		a.Offset = math.Point{X: stored.X - center.X, Y: stored.Y - center.Y}
		a.RelativeToCenter = false
	default:
		a.Offset = math.Point{}
	}
	return a
}

// WriteAnchor stores a on entry.
func WriteAnchor(entry jsonutil.Object, a Anchor, kind AreaKind) {
	if kind.Supported() && a.RelativeToCenter {
		entry["anchor"] = pointJSON(a.Offset)
		entry["anchor_relative_to_center"] = true
		return
	}
	entry["anchor"] = pointJSON(a.World)
	delete(entry, "anchor_relative_to_center")
}

// ChooseAnchor picks the anchor for a new area: the room center for
// supported kinds, the min corner of the points otherwise.
func ChooseAnchor(kind AreaKind, center math.Point, pts []math.Point) math.Point {
	if len(pts) == 0 || kind.Supported() {
		return center
	}
	out := pts[0]
	for _, p := range pts {
		out.X = min(out.X, p.X)
		out.Y = min(out.Y, p.Y)
	}
	return out
}

// RelativePoints reads the points array of entry.
func RelativePoints(entry jsonutil.Object) []math.Point {
	raw, _ := jsonutil.GetArray(entry, "points")
	out := make([]math.Point, 0, len(raw))
	for _, v := range raw {
		if obj, ok := v.(map[string]any); ok {
			out = append(out, readPoint(obj))
		}
	}
	return out
}

// EncodePoints stores pts relative to anchor.
func EncodePoints(pts []math.Point, anchor math.Point) []any {
	out := make([]any, len(pts))
	for i, p := range pts {
		out[i] = jsonutil.Object{"x": p.X - anchor.X, "y": p.Y - anchor.Y}
	}
	return out
}

// OriginRoom records the room an area was authored in.
type OriginRoom struct {
	Name             string
	Width, Height    int
	Anchor           math.Point
	RelativeToCenter bool
}

func (o OriginRoom) json() jsonutil.Object {
	return jsonutil.Object{
		"name":                      o.Name,
		"width":                     max(0, o.Width),
		"height":                    max(0, o.Height),
		"anchor":                    pointJSON(o.Anchor),
		"anchor_relative_to_center": o.RelativeToCenter,
	}
}

// NamedArea is a Spawn or Trigger polygon in world space.
type NamedArea struct {
	Name string
	Type string
	Kind AreaKind
	Area *geom.Area

	ScaleToRoom        bool
	OriginalRoomWidth  int
	OriginalRoomHeight int
	Origin             OriginRoom
}

func scaleComponent(v int, f float64) int {
	return int(gomath.Round(float64(v) * f))
}

func (r *Room) defaultAnchor() math.Point {
	if r.Area != nil && !r.Area.Empty() {
		return r.Area.Center()
	}
	return r.Origin
}

// Dimensions returns the room size from its area, or from the size keys
// of its JSON before the area exists.
func (r *Room) Dimensions() (int, int) {
	if r.Area != nil && !r.Area.Empty() {
		b := r.Area.Bounds()
		return max(0, b.Width()), max(0, b.Height())
	}
	minW := jsonutil.Int(r.data, "min_width", 0)
	maxW := jsonutil.Int(r.data, "max_width", minW)
	minH := jsonutil.Int(r.data, "min_height", 0)
	maxH := jsonutil.Int(r.data, "max_height", minH)
	w, h := max(minW, maxW), max(minH, maxH)
	if rad := jsonutil.Int(r.data, "radius", 0); rad > 0 {
		if w <= 0 {
			w = rad * 2
		}
		if h <= 0 {
			h = rad * 2
		}
	}
	return w, h
}

// loadAreas rebuilds Areas from the room JSON and rewrites every entry in
// normalized form. Areas authored for another room size are rescaled when
// scale_to_room is set.
func (r *Room) loadAreas() {
	r.Areas = nil
	arr, ok := jsonutil.GetArray(r.data, "areas")
	if !ok {
		return
	}
	center := r.defaultAnchor()
	curW, curH := r.Dimensions()

	for _, v := range arr {
		item, ok := v.(map[string]any)
		if !ok {
			continue
		}
		name := jsonutil.String(item, "name", "")
		if name == "" {
			continue
		}
		typ := jsonutil.String(item, "type", "")
		kind := InferKind(jsonutil.String(item, "kind", ""), typ, name)
		if !kind.Supported() {
			logger.Warn("ignoring room area with unsupported kind",
				zap.String("room", r.Name), zap.String("area", name), zap.String("kind", jsonutil.String(item, "kind", "")))
			continue
		}

		anchor := ResolveAnchor(item, center, kind)
		res := geom.ClampResolution(jsonutil.Int(item, "resolution", geom.DefaultFileResolution))
		scaleToRoom := jsonutil.Bool(item, "scale_to_room", false)
		storedW := jsonutil.Int(item, "origional_width", 0)
		storedH := jsonutil.Int(item, "origional_height", 0)
		rel := RelativePoints(item)

		pts := make([]math.Point, 0, len(rel))
		persistedW, persistedH := storedW, storedH
		if scaleToRoom && storedW > 0 && storedH > 0 && curW > 0 && curH > 0 {
			sx := float64(curW) / float64(storedW)
			sy := float64(curH) / float64(storedH)
			if anchor.RelativeToCenter {
				anchor.Offset = math.Point{X: scaleComponent(anchor.Offset.X, sx), Y: scaleComponent(anchor.Offset.Y, sy)}
				anchor.World = center.Add(anchor.Offset)
			}
			for _, p := range rel {
				pts = append(pts, anchor.World.Add(math.Point{X: scaleComponent(p.X, sx), Y: scaleComponent(p.Y, sy)}))
			}
			persistedW, persistedH = curW, curH
		} else {
			for _, p := range rel {
				pts = append(pts, anchor.World.Add(p))
			}
		}
		if len(pts) < 3 {
			continue
		}

		WriteAnchor(item, anchor, kind)
		item["points"] = EncodePoints(pts, anchor.World)
		item["resolution"] = res
		delete(item, "relative_points")
		delete(item, "original_width")
		delete(item, "original_height")
		if scaleToRoom {
			item["scale_to_room"] = true
			if persistedW > 0 {
				item["origional_width"] = persistedW
			}
			if persistedH > 0 {
				item["origional_height"] = persistedH
			}
		} else {
			delete(item, "scale_to_room")
		}

		area := geom.NewAreaFromPoints(name, pts, res)
		area.Type = typ
		na := NamedArea{
			Name:               name,
			Type:               typ,
			Kind:               kind,
			Area:               area,
			ScaleToRoom:        scaleToRoom,
			OriginalRoomWidth:  persistedW,
			OriginalRoomHeight: persistedH,
		}
		if or, ok := jsonutil.GetObject(item, "origin_room"); ok {
			na.Origin = OriginRoom{
				Name:             jsonutil.String(or, "name", ""),
				Width:            jsonutil.Int(or, "width", 0),
				Height:           jsonutil.Int(or, "height", 0),
				RelativeToCenter: jsonutil.Bool(or, "anchor_relative_to_center", false),
			}
			if an, ok := jsonutil.GetObject(or, "anchor"); ok {
				na.Origin.Anchor = readPoint(an)
			}
		} else {
			na.Origin = OriginRoom{Name: r.Name, Width: curW, Height: curH, Anchor: anchor.World, RelativeToCenter: anchor.RelativeToCenter}
			item["origin_room"] = na.Origin.json()
		}
		r.Areas = append(r.Areas, na)
	}
}

// FindArea returns the named area polygon, or nil.
func (r *Room) FindArea(name string) *geom.Area {
	if name == "" {
		return nil
	}
	for _, na := range r.Areas {
		if na.Name == name {
			return na.Area
		}
	}
	return nil
}

// AreasOfKind returns the named areas of kind k.
func (r *Room) AreasOfKind(k AreaKind) []NamedArea {
	var out []NamedArea
	for _, na := range r.Areas {
		if na.Kind == k {
			out = append(out, na)
		}
	}
	return out
}

// RemoveArea deletes every stored entry called name.
func (r *Room) RemoveArea(name string) bool {
	if name == "" {
		return false
	}
	arr, ok := jsonutil.GetArray(r.data, "areas")
	if !ok {
		return false
	}
	kept := arr[:0]
	removed := false
	for _, v := range arr {
		if obj, ok := v.(map[string]any); ok && jsonutil.String(obj, "name", "") == name {
			removed = true
			continue
		}
		kept = append(kept, v)
	}
	if !removed {
		return false
	}
	r.data["areas"] = kept
	r.loadAreas()
	return true
}

// RenameArea renames oldName. Renaming onto an existing area fails.
func (r *Room) RenameArea(oldName, newName string) bool {
	if oldName == "" || newName == "" {
		return false
	}
	if oldName == newName {
		return true
	}
	for _, na := range r.Areas {
		if na.Name == newName {
			return false
		}
	}
	arr, _ := jsonutil.GetArray(r.data, "areas")
	renamed := false
	for _, v := range arr {
		if obj, ok := v.(map[string]any); ok && jsonutil.String(obj, "name", "") == oldName {
			obj["name"] = newName
			renamed = true
		}
	}
	if !renamed {
		return false
	}
	r.loadAreas()
	return true
}

// UpsertArea stores area as a named room area. Areas of unsupported kinds
// are refused.
func (r *Room) UpsertArea(area *geom.Area, scaleToRoom bool, origW, origH int) bool {
	if area == nil || area.Name == "" || len(area.Points()) < 3 {
		return false
	}
	arr, _ := jsonutil.EnsureArray(r.data, "areas")

	typ := area.Type
	var existing jsonutil.Object
	existingIdx := -1
	existingKind := ""
	for i, v := range arr {
		obj, ok := v.(map[string]any)
		if !ok || jsonutil.String(obj, "name", "") != area.Name {
			continue
		}
		existing, existingIdx = obj, i
		if typ == "" {
			typ = jsonutil.String(obj, "type", "")
		}
		existingKind = jsonutil.String(obj, "kind", "")
		break
	}
	kind := InferKind(existingKind, typ, area.Name)
	if !kind.Supported() {
		logger.Warn("refusing to store room area with unsupported kind",
			zap.String("room", r.Name), zap.String("area", area.Name), zap.String("kind", existingKind))
		return false
	}

	center := r.defaultAnchor()
	world := ChooseAnchor(kind, center, area.Points())
	anchor := Anchor{
		World:            world,
		Offset:           math.Point{X: world.X - center.X, Y: world.Y - center.Y},
		RelativeToCenter: kind.Supported(),
	}
	if existing != nil {
		anchor = ResolveAnchor(existing, center, kind)
		if origW <= 0 {
			origW = jsonutil.Int(existing, "origional_width", 0)
		}
		if origH <= 0 {
			origH = jsonutil.Int(existing, "origional_height", 0)
		}
	}
	w, h := r.Dimensions()
	if scaleToRoom {
		if origW <= 0 {
			origW = w
		}
		if origH <= 0 {
			origH = h
		}
	}

	entry := jsonutil.Object{
		"name":   area.Name,
		"points": EncodePoints(area.Points(), anchor.World),
		"kind":   kind.String(),
	}
	if typ != "" {
		entry["type"] = typ
	}
	WriteAnchor(entry, anchor, kind)
	entry["resolution"] = geom.ClampResolution(area.Resolution())
	if scaleToRoom {
		entry["scale_to_room"] = true
		if origW > 0 {
			entry["origional_width"] = origW
		}
		if origH > 0 {
			entry["origional_height"] = origH
		}
	}
	entry["origin_room"] = OriginRoom{Name: r.Name, Width: w, Height: h, Anchor: anchor.World, RelativeToCenter: anchor.RelativeToCenter}.json()

	if existingIdx >= 0 {
		arr[existingIdx] = entry
	} else {
		arr = append(arr, entry)
	}
	r.data["areas"] = arr
	r.loadAreas()
	return true
}
