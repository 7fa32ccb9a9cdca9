package asset

import (
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/geom"
	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/pkg/jsonutil"
	"github.com/Faultbox/vibble/pkg/math"
)

// Coordinate space kinds of a stored area.
const (
	SpaceCanonical = "canonical"
	SpaceRender    = "render_space"

	originBottomCenter = "bottom_center"
	areaSchemaVersion  = 2
)

// RenderFrame describes the editor canvas an area was drawn on.
type RenderFrame struct {
	Width, Height  int
	PivotX, PivotY int
	PixelScale     float64
}

// Valid reports whether the frame can anchor a polygon.
func (f *RenderFrame) Valid() bool {
	return f != nil && f.Width > 0 && f.Height > 0 && finite(f.PixelScale) && f.PixelScale > 0
}

// NamedArea is an area of the asset in current render space.
type NamedArea struct {
	Name        string
	Type        string
	Kind        string
	Area        *geom.Area
	RenderFrame *RenderFrame

	AttachmentSubtype string
	IsOnTop           bool
	ChildCandidates   []any
}

type canvas struct{ w, h int }

func finite(v float64) bool { return !gomath.IsNaN(v) && !gomath.IsInf(v, 0) }

func sanitizeScale(s float64) float64 {
	if !(s > 0) || !finite(s) {
		return 1
	}
	return s
}

func scaledDimension(d int, s float64) int {
	if d <= 0 {
		return 0
	}
	r := gomath.Round(float64(d) * s)
	if r < 0 {
		return 0
	}
	if r > gomath.MaxInt32 {
		return gomath.MaxInt32
	}
	return int(r)
}

func unscaleDimension(d int, s float64) int {
	if !(s > 0) || !finite(s) {
		return d
	}
	return int(gomath.Round(float64(d) / s))
}

func (c canvas) anchor() math.Point {
	return math.Point{X: c.w / 2, Y: c.h}
}

func (c canvas) scaledAnchor(s float64) math.Point {
	w, h := scaledDimension(c.w, s), scaledDimension(c.h, s)
	return math.Point{X: w / 2, Y: h}
}

func (i *Info) canvas() canvas {
	return canvas{max(i.CanvasWidth, 0), max(i.CanvasHeight, 0)}
}

// ScaledAnchor returns the bottom-center anchor of the canvas at scale, or
// at the asset scale when scale is zero.
func (i *Info) ScaledAnchor(scale float64) math.Point {
	if scale == 0 {
		scale = i.ScaleFactor
	}
	return i.canvas().scaledAnchor(sanitizeScale(scale))
}

// EncodeArea converts a render-space polygon to its canonical manifest form.
// When frame is nil the render frame of the stored area with the same name
// is used; without a valid frame the polygon is treated as drawn at the
// canvas anchor.
func EncodeArea(info *Info, area *geom.Area, areaType, kind string, frame *RenderFrame) jsonutil.Object {
	entry := jsonutil.Object{"name": area.Name, "schema_version": areaSchemaVersion}
	if areaType != "" {
		entry["type"] = areaType
	}
	if kind != "" {
		entry["kind"] = kind
	}
	if frame == nil {
		if na := info.FindArea(area.Name); na != nil {
			frame = na.RenderFrame
		}
	}

	saveScale := sanitizeScale(info.ScaleFactor)
	if frame != nil {
		saveScale = sanitizeScale(frame.PixelScale)
	}
	canon := info.canvas()
	space := jsonutil.Object{"origin": originBottomCenter, "scale_at_save": saveScale}

	var renderAnchor math.Point
	if frame.Valid() {
		space["kind"] = SpaceRender
		space["canvas_width"] = frame.Width
		space["canvas_height"] = frame.Height
		space["pivot"] = jsonutil.Object{"x": frame.PivotX, "y": frame.PivotY}
		if canon.w <= 0 {
			canon.w = unscaleDimension(frame.Width, saveScale)
		}
		if canon.h <= 0 {
			canon.h = unscaleDimension(frame.Height, saveScale)
		}
		renderAnchor = math.Point{X: frame.PivotX, Y: frame.PivotY}
	} else {
		space["kind"] = SpaceCanonical
		space["canvas_width"] = canon.w
		space["canvas_height"] = canon.h
		renderAnchor = canon.scaledAnchor(saveScale)
	}
	entry["coordinate_space"] = space

	a := canon.anchor()
	entry["anchor"] = jsonutil.Object{"x": a.X, "y": a.Y}

	pts := make([]any, 0, len(area.Points()))
	for _, p := range area.Points() {
		pts = append(pts, jsonutil.Object{
			"x": math.SaturateInt32(gomath.Round(float64(p.X-renderAnchor.X) / saveScale)),
			"y": math.SaturateInt32(gomath.Round(float64(p.Y-renderAnchor.Y) / saveScale)),
		})
	}
	entry["points"] = pts
	entry["resolution"] = area.Resolution()
	return entry
}

// DecodeArea rebuilds a render-space area from a manifest entry at the
// current asset scale. It returns nil for malformed entries.
func DecodeArea(info *Info, entry jsonutil.Object) *NamedArea {
	name := jsonutil.String(entry, "name", "")
	if name == "" {
		return nil
	}
	rawPts, ok := jsonutil.GetArray(entry, "points")
	if !ok {
		return nil
	}
	space, ok := jsonutil.GetObject(entry, "coordinate_space")
	if !ok || jsonutil.String(space, "origin", "") != originBottomCenter {
		return nil
	}

	savedScale := sanitizeScale(jsonutil.Float(space, "scale_at_save", 1))
	current := sanitizeScale(info.ScaleFactor)
	canon := info.canvas()
	saved := canvas{max(jsonutil.Int(space, "canvas_width", 0), 0), max(jsonutil.Int(space, "canvas_height", 0), 0)}

	var frame *RenderFrame
	var renderAnchor math.Point
	switch kind := jsonutil.String(space, "kind", ""); kind {
	case SpaceRender:
		rf := &RenderFrame{Width: saved.w, Height: saved.h, PivotX: saved.w / 2, PivotY: saved.h, PixelScale: savedScale}
		if pivot, ok := jsonutil.GetObject(space, "pivot"); ok {
			rf.PivotX = jsonutil.Int(pivot, "x", rf.PivotX)
			rf.PivotY = jsonutil.Int(pivot, "y", rf.PivotY)
		}
		renderAnchor = canon.scaledAnchor(current)
		if rf.Valid() {
			frame = rf
			if canon.w <= 0 {
				canon.w = unscaleDimension(rf.Width, rf.PixelScale)
			}
			if canon.h <= 0 {
				canon.h = unscaleDimension(rf.Height, rf.PixelScale)
			}
			w, h := scaledDimension(canon.w, current), scaledDimension(canon.h, current)
			rx := float64(rf.PivotX) / float64(rf.Width)
			ry := float64(rf.PivotY) / float64(rf.Height)
			renderAnchor = math.Point{X: int(gomath.Round(rx * float64(w))), Y: int(gomath.Round(ry * float64(h)))}
		}
	case SpaceCanonical:
		if canon.w <= 0 {
			canon.w = saved.w
		}
		if canon.h <= 0 {
			canon.h = saved.h
		}
		renderAnchor = canon.scaledAnchor(current)
	default:
		logger.Warn("area coordinate space not recognized",
			zap.String("asset", info.Name), zap.String("area", name), zap.String("kind", kind))
		return nil
	}

	pts := make([]math.Point, 0, len(rawPts))
	for _, v := range rawPts {
		p, ok := v.(map[string]any)
		if !ok {
			continue
		}
		cx := jsonutil.Float(p, "x", 0)
		cy := jsonutil.Float(p, "y", 0)
		pts = append(pts, math.Point{
			X: math.SaturateInt32(float64(renderAnchor.X) + gomath.Round(cx*current)),
			Y: math.SaturateInt32(float64(renderAnchor.Y) + gomath.Round(cy*current)),
		})
	}
	if len(pts) < 3 {
		return nil
	}

	na := &NamedArea{
		Name:        name,
		Type:        jsonutil.String(entry, "type", ""),
		RenderFrame: frame,
	}
	na.Kind = jsonutil.String(entry, "kind", "")
	if na.Kind == "" {
		na.Kind = na.Type
	}
	na.AttachmentSubtype = jsonutil.String(entry, "attachment_subtype", "")
	if v, ok := entry["is_on_top"].(bool); ok {
		na.IsOnTop = v
	} else if v, ok := entry["placed_on_top_parent"].(bool); ok {
		na.IsOnTop = v
	}
	if arr, ok := jsonutil.GetArray(entry, "child_candidates"); ok {
		na.ChildCandidates = arr
	}

	res := geom.ClampResolution(jsonutil.Int(entry, "resolution", geom.DefaultFileResolution))
	na.Area = geom.NewAreaFromPoints(name, pts, res)
	if t := na.Type; t != "" {
		na.Area.Type = t
	} else if na.Kind != "" {
		na.Area.Type = na.Kind
	}
	return na
}

func (i *Info) loadAreas() {
	i.Areas = nil
	arr, ok := jsonutil.GetArray(i.json, "areas")
	if !ok {
		return
	}
	for _, e := range arr {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if na := DecodeArea(i, obj); na != nil {
			i.Areas = append(i.Areas, na)
		}
	}
}

// FindArea returns the named area or nil.
func (i *Info) FindArea(name string) *NamedArea {
	for _, na := range i.Areas {
		if na.Name == name {
			return na
		}
	}
	return nil
}

// AreasOfKind returns the areas whose kind or type equals kind.
func (i *Info) AreasOfKind(kind string) []*NamedArea {
	var out []*NamedArea
	for _, na := range i.Areas {
		if na.Kind == kind || na.Type == kind {
			out = append(out, na)
		}
	}
	return out
}

var attachmentKeys = []string{"attachment_subtype", "is_on_top", "child_candidates", "placed_on_top_parent", "z_offset"}

// UpsertArea replaces or appends an area drawn in render space and writes
// its canonical entry back. Attachment keys of an existing entry survive.
func (i *Info) UpsertArea(area *geom.Area, frame *RenderFrame) {
	if area == nil || area.Name == "" {
		return
	}
	arr, _ := jsonutil.EnsureArray(i.json, "areas")
	existing := -1
	var prevType, prevKind string
	for idx, e := range arr {
		if obj, ok := e.(map[string]any); ok && jsonutil.String(obj, "name", "") == area.Name {
			existing = idx
			prevType = jsonutil.String(obj, "type", "")
			prevKind = jsonutil.String(obj, "kind", "")
			break
		}
	}
	areaType := prevType
	if area.Type != "" && area.Type != "other" {
		areaType = area.Type
	}
	kind := prevKind
	if kind == "" {
		kind = areaType
	}

	entry := EncodeArea(i, area, areaType, kind, frame)

	na := i.FindArea(area.Name)
	if na == nil {
		na = &NamedArea{Name: area.Name}
		i.Areas = append(i.Areas, na)
	}
	na.Area = area.Clone()
	na.Type = areaType
	na.Kind = kind
	na.RenderFrame = frame

	if existing >= 0 {
		prev := arr[existing].(map[string]any)
		for _, k := range attachmentKeys {
			if v, ok := prev[k]; ok {
				entry[k] = v
			}
		}
		arr[existing] = entry
	} else {
		arr = append(arr, entry)
	}
	i.json["areas"] = arr
}

// RemoveArea drops the named area from the list and the JSON.
func (i *Info) RemoveArea(name string) bool {
	kept := i.Areas[:0]
	for _, na := range i.Areas {
		if na.Name != name {
			kept = append(kept, na)
		}
	}
	i.Areas = kept

	removed := false
	arr, ok := jsonutil.GetArray(i.json, "areas")
	if !ok {
		return false
	}
	out := make([]any, 0, len(arr))
	for _, e := range arr {
		if obj, ok := e.(map[string]any); ok && jsonutil.String(obj, "name", "") == name {
			removed = true
			continue
		}
		out = append(out, e)
	}
	i.json["areas"] = out
	return removed
}

// RenameArea renames an area. It fails when the target name is taken.
func (i *Info) RenameArea(oldName, newName string) bool {
	if oldName == "" || newName == "" {
		return false
	}
	if oldName == newName {
		return true
	}
	if i.FindArea(newName) != nil {
		return false
	}
	na := i.FindArea(oldName)
	if na == nil {
		return false
	}
	na.Name = newName
	if na.Area != nil {
		na.Area.Name = newName
	}
	if arr, ok := jsonutil.GetArray(i.json, "areas"); ok {
		for _, e := range arr {
			if obj, ok := e.(map[string]any); ok && jsonutil.String(obj, "name", "") == oldName {
				obj["name"] = newName
			}
		}
	}
	return true
}
