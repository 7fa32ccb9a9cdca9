package rebuild

import "github.com/Faultbox/vibble/pkg/jsonutil"

// AssetWorkPending scans a manifest document for frames flagged
// needs_rebuild. An animations object nested under "animations" is followed.
func AssetWorkPending(doc jsonutil.Object) bool {
	assets, ok := jsonutil.GetObject(doc, "assets")
	if !ok {
		return false
	}
	for _, v := range assets {
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		anims, ok := jsonutil.GetObject(entry, "animations")
		if !ok {
			continue
		}
		if nested, ok := jsonutil.GetObject(anims, "animations"); ok {
			anims = nested
		}
		for _, a := range anims {
			anim, ok := a.(map[string]any)
			if !ok {
				continue
			}
			frames, _ := jsonutil.GetArray(anim, "frames")
			for _, f := range frames {
				if flagged(f) {
					return true
				}
			}
		}
	}
	return false
}

// LightWorkPending scans a manifest document for lights flagged
// needs_rebuild. lighting_info may be a single object or an array.
func LightWorkPending(doc jsonutil.Object) bool {
	assets, ok := jsonutil.GetObject(doc, "assets")
	if !ok {
		return false
	}
	for _, v := range assets {
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		switch lights := entry["lighting_info"].(type) {
		case map[string]any:
			if flagged(lights) {
				return true
			}
		case []any:
			for _, l := range lights {
				if flagged(l) {
					return true
				}
			}
		}
	}
	return false
}

func flagged(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	b, ok := obj["needs_rebuild"].(bool)
	return ok && b
}
