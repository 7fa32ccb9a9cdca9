package asset

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/animation"
	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/internal/render"
	"github.com/Faultbox/vibble/pkg/jsonutil"
)

// Animation CRUD errors.
var (
	ErrAnimationName   = errors.New("asset: invalid animation name")
	ErrAnimationExists = errors.New("asset: animation already exists")
	ErrNoAnimation     = errors.New("asset: animation not found")
)

// reservedAnimationNames never become animations during folder discovery.
var reservedAnimationNames = map[string]struct{}{
	"scaling_profile": {},
	"scaling-profile": {},
	"cache":           {},
	"caches":          {},
	"areas":           {},
}

// MappingOption is one weighted choice of a mapping entry.
type MappingOption struct {
	Animation string
	Percent   float64
}

// MappingEntry is a conditional group of options.
type MappingEntry struct {
	Condition string
	Options   []MappingOption
}

// payloads returns the object holding animation payloads, which may be
// nested one level as animations.animations.
func (i *Info) payloads(create bool) jsonutil.Object {
	anims, ok := jsonutil.GetObject(i.json, "animations")
	if !ok {
		if !create {
			return nil
		}
		anims = jsonutil.Object{}
		i.json["animations"] = anims
	}
	if nested, ok := jsonutil.GetObject(anims, "animations"); ok {
		return nested
	}
	return anims
}

func (i *Info) parseAnimationChildren() []string {
	if children := dedupe(jsonutil.Strings(i.json, "animation_children")); len(children) > 0 {
		return children
	}
	var out []string
	seen := map[string]struct{}{}
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	payloads := i.payloads(false)
	for _, id := range sortedKeys(payloads) {
		p, ok := payloads[id].(map[string]any)
		if !ok {
			continue
		}
		for _, c := range jsonutil.Strings(p, "children") {
			add(c)
		}
		if arr, ok := jsonutil.GetArray(p, "child_timelines"); ok {
			for _, e := range arr {
				if o, ok := e.(map[string]any); ok {
					add(jsonutil.String(o, "asset", ""))
				}
			}
		}
	}
	return out
}

func (i *Info) loadAnimations() {
	payloads := i.payloads(false)
	for id, v := range payloads {
		if p, ok := v.(map[string]any); ok {
			animation.NormalizeLegacy(id, p)
		}
	}
	i.Animations = animation.NewSet(payloads, i.AnimationChildren)
	i.resolveStart()
}

func (i *Info) resolveStart() {
	prev := jsonutil.String(i.json, "start", "")
	if ensureStart(i.json, i.payloads(false)) && prev != "" {
		logger.Warn("start animation missing, using fallback",
			zap.String("asset", i.Name), zap.String("start", prev), zap.String("fallback", jsonutil.String(i.json, "start", "")))
	}
	i.StartAnimation = jsonutil.String(i.json, "start", "")
}

// ensureStart keeps meta's start pointing at a non-reserved animation,
// preferring default, then idle, then the first id. It reports a change.
func ensureStart(meta, anims jsonutil.Object) bool {
	valid := func(name string) bool {
		if name == "" || isReservedAnimation(name) {
			return false
		}
		_, ok := anims[name].(map[string]any)
		return ok
	}
	if valid(jsonutil.String(meta, "start", "")) {
		return false
	}
	pick := ""
	for _, c := range append([]string{"default", "idle"}, sortedKeys(anims)...) {
		if valid(c) {
			pick = c
			break
		}
	}
	if pick == "" {
		return false
	}
	meta["start"] = pick
	return true
}

func isReservedAnimation(name string) bool {
	_, ok := reservedAnimationNames[strings.ToLower(name)]
	return ok
}

// AnimationNames returns the animation ids in sorted order.
func (i *Info) AnimationNames() []string {
	return i.Animations.IDs()
}

// AnimationPayload returns a copy of the manifest payload of an animation.
func (i *Info) AnimationPayload(name string) (jsonutil.Object, bool) {
	p, ok := i.payloads(false)[name].(map[string]any)
	if !ok {
		return nil, false
	}
	return jsonutil.CloneObject(p), true
}

// UpsertAnimation stores payload under name, replacing any previous one.
func (i *Info) UpsertAnimation(name string, payload jsonutil.Object) error {
	if name == "" {
		return ErrAnimationName
	}
	p := jsonutil.CloneObject(payload)
	animation.NormalizeLegacy(name, p)
	i.payloads(true)[name] = p
	i.reparse(name)
	return nil
}

// RenameAnimation moves an animation to a new id and follows start.
func (i *Info) RenameAnimation(oldName, newName string) error {
	if oldName == "" || newName == "" || oldName == newName {
		return ErrAnimationName
	}
	payloads := i.payloads(false)
	p, ok := payloads[oldName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoAnimation, oldName)
	}
	if _, exists := payloads[newName]; exists {
		return fmt.Errorf("%w: %s", ErrAnimationExists, newName)
	}
	payloads[newName] = p
	delete(payloads, oldName)

	if a, ok := i.Animations.Get(oldName); ok {
		i.Animations.Remove(oldName)
		a.ID = newName
		i.Animations.Put(a)
	}
	if i.StartAnimation == oldName {
		i.StartAnimation = newName
		i.json["start"] = newName
	}
	return nil
}

// RemoveAnimation deletes an animation; start is cleared when it pointed
// at the removed id.
func (i *Info) RemoveAnimation(name string) bool {
	payloads := i.payloads(false)
	_, ok := payloads[name]
	if ok {
		delete(payloads, name)
	}
	i.Animations.Remove(name)
	if i.StartAnimation == name {
		i.StartAnimation = ""
		i.json["start"] = ""
	}
	return ok
}

// UpdateAnimationProperties shallow-merges props into an animation payload.
// A true "start" property makes it the start animation.
func (i *Info) UpdateAnimationProperties(name string, props jsonutil.Object) error {
	if name == "" || props == nil {
		return ErrAnimationName
	}
	payloads := i.payloads(true)
	updated := jsonutil.CloneObject(props)
	if prev, ok := payloads[name].(map[string]any); ok {
		for k, v := range prev {
			if _, set := updated[k]; !set {
				updated[k] = v
			}
		}
	}
	payloads[name] = updated
	if start, ok := props["start"].(bool); ok && start {
		i.StartAnimation = name
		i.json["start"] = name
	}
	i.reparse(name)
	return nil
}

// SetStartAnimation sets the start animation id.
func (i *Info) SetStartAnimation(name string) {
	i.StartAnimation = name
	i.json["start"] = name
}

func (i *Info) reparse(name string) {
	p, ok := i.payloads(false)[name].(map[string]any)
	if !ok {
		return
	}
	if old, ok := i.Animations.Get(name); ok {
		old.Release()
	}
	i.Animations.Put(animation.Parse(name, p, i.AnimationChildren))
}

// LoadAnimations reads cached frames for every animation and uploads them
// through r. Frame loss for single animations is reported but does not stop
// the others.
func (i *Info) LoadAnimations(r render.Renderer) error {
	opts := animation.LoadOptions{
		CacheRoot: i.env.CacheRoot,
		Asset:     i.Name,
		Shaded:    i.Shaded,
		Nearest:   i.Nearest(),
	}
	errs := i.Animations.Load(opts)
	if r != nil {
		errs = multierr.Append(errs, i.Animations.Upload(r))
	}
	if start, ok := i.Animations.Get(i.StartAnimation); ok && start.Ready() {
		if i.CanvasWidth == 0 {
			i.CanvasWidth = start.Width
		}
		if i.CanvasHeight == 0 {
			i.CanvasHeight = start.Height
		}
	}
	return errs
}

// ReleaseAnimations destroys all animation textures.
func (i *Info) ReleaseAnimations() {
	i.Animations.Release()
}

func parseMappings(data jsonutil.Object) map[string][]MappingEntry {
	raw, ok := jsonutil.GetObject(data, "mappings")
	if !ok {
		return nil
	}
	out := make(map[string][]MappingEntry, len(raw))
	for id, v := range raw {
		arr, _ := v.([]any)
		var entries []MappingEntry
		for _, e := range arr {
			obj, ok := e.(map[string]any)
			if !ok {
				continue
			}
			me := MappingEntry{Condition: jsonutil.String(obj, "condition", "")}
			mapTo, _ := jsonutil.GetObject(obj, "map_to")
			opts, _ := jsonutil.GetArray(mapTo, "options")
			for _, o := range opts {
				opt, ok := o.(map[string]any)
				if !ok {
					continue
				}
				me.Options = append(me.Options, MappingOption{
					Animation: jsonutil.String(opt, "animation", ""),
					Percent:   jsonutil.Float(opt, "percent", 100),
				})
			}
			entries = append(entries, me)
		}
		out[id] = entries
	}
	return out
}

// PickNextAnimation makes a weighted choice over the first mapping entry
// whose condition is empty or "true" and has positive total weight. Options
// with zero weight are never chosen. It returns "" for no change.
func (i *Info) PickNextAnimation(mappingID string) string {
	entries, ok := i.Mappings[mappingID]
	if !ok {
		return ""
	}
	i.rngMu.Lock()
	defer i.rngMu.Unlock()
	for _, e := range entries {
		if e.Condition != "" && e.Condition != "true" {
			continue
		}
		total := 0.0
		for _, o := range e.Options {
			if o.Percent > 0 {
				total += o.Percent
			}
		}
		if total <= 0 {
			continue
		}
		r := i.rng.Float64() * total
		last := ""
		for _, o := range e.Options {
			if o.Percent <= 0 {
				continue
			}
			last = o.Animation
			if r -= o.Percent; r < 0 {
				return o.Animation
			}
		}
		return last
	}
	return ""
}
