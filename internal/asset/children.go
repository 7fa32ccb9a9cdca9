package asset

import (
	"github.com/Faultbox/vibble/pkg/jsonutil"
)

// AttachmentChild is the attachment subtype of areas that host child assets.
const AttachmentChild = "asset_child_attachment"

// ChildInfo binds an attachment area to the child assets spawned in it.
type ChildInfo struct {
	AreaName          string
	ZOffset           int
	PlacedOnTopParent bool
	Candidates        []any
}

// ChildFrame is the per-frame placement of an async child.
type ChildFrame struct {
	DX, DY        int
	Degree        float64
	Visible       bool
	RenderInFront bool
}

// AsyncChild is a child asset driven by its own frame track.
type AsyncChild struct {
	Name      string
	Asset     string
	Animation string
	Frames    []ChildFrame
}

// Valid reports whether the child names an asset and has frames.
func (c AsyncChild) Valid() bool {
	return c.Name != "" && c.Asset != "" && len(c.Frames) > 0
}

func parseChildFrame(v any) ChildFrame {
	f := ChildFrame{Visible: true, RenderInFront: true}
	switch e := v.(type) {
	case map[string]any:
		f.DX = jsonutil.Int(e, "dx", 0)
		f.DY = jsonutil.Int(e, "dy", 0)
		if d, ok := jsonutil.ToFloat(e["degree"]); ok {
			f.Degree = d
		} else if d, ok := jsonutil.ToFloat(e["rotation"]); ok {
			f.Degree = d
		}
		f.Visible = jsonutil.Bool(e, "visible", true)
		f.RenderInFront = jsonutil.Bool(e, "render_in_front", true)
	case []any:
		if len(e) > 0 {
			f.DX, _ = jsonutil.ToInt(e[0])
		}
		if len(e) > 1 {
			f.DY, _ = jsonutil.ToInt(e[1])
		}
		if len(e) > 2 {
			f.Degree, _ = jsonutil.ToFloat(e[2])
		}
		if len(e) > 3 {
			if b, ok := jsonutil.ToBool(e[3]); ok {
				f.Visible = b
			}
		}
		if len(e) > 4 {
			if b, ok := jsonutil.ToBool(e[4]); ok {
				f.RenderInFront = b
			}
		}
	}
	return f
}

func parseAsyncChildren(data jsonutil.Object) []AsyncChild {
	arr, ok := jsonutil.GetArray(data, "async_children")
	if !ok {
		return nil
	}
	var out []AsyncChild
	seen := map[string]struct{}{}
	for _, e := range arr {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		c := AsyncChild{Name: jsonutil.String(obj, "name", "")}
		if c.Name == "" {
			continue
		}
		if _, dup := seen[c.Name]; dup {
			continue
		}
		seen[c.Name] = struct{}{}
		c.Asset = jsonutil.String(obj, "asset", jsonutil.String(obj, "child", ""))
		c.Animation = jsonutil.String(obj, "animation", "")
		frames, _ := jsonutil.GetArray(obj, "frames")
		for _, f := range frames {
			c.Frames = append(c.Frames, parseChildFrame(f))
		}
		if c.Valid() {
			out = append(out, c)
		}
	}
	return out
}

// SetAsyncChildren replaces the async children, dropping invalid and
// duplicate entries, and writes them back.
func (i *Info) SetAsyncChildren(children []AsyncChild) {
	i.AsyncChildren = i.AsyncChildren[:0]
	seen := map[string]struct{}{}
	arr := make([]any, 0, len(children))
	for _, c := range children {
		if !c.Valid() {
			continue
		}
		if _, dup := seen[c.Name]; dup {
			continue
		}
		seen[c.Name] = struct{}{}
		i.AsyncChildren = append(i.AsyncChildren, c)

		frames := make([]any, len(c.Frames))
		for k, f := range c.Frames {
			frames[k] = jsonutil.Object{
				"dx": f.DX, "dy": f.DY, "degree": f.Degree,
				"visible": f.Visible, "render_in_front": f.RenderInFront,
			}
		}
		obj := jsonutil.Object{"name": c.Name, "asset": c.Asset, "frames": frames}
		if c.Animation != "" {
			obj["animation"] = c.Animation
		}
		arr = append(arr, obj)
	}
	i.json["async_children"] = arr
}

func (i *Info) loadChildren() {
	i.Children = nil
	for _, na := range i.Areas {
		if na.Area == nil || na.Name == "" || na.AttachmentSubtype != AttachmentChild {
			continue
		}
		i.Children = append(i.Children, ChildInfo{
			AreaName:          na.Name,
			PlacedOnTopParent: na.IsOnTop,
			Candidates:        na.ChildCandidates,
		})
	}
}
