package animation

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/internal/render"
	"github.com/Faultbox/vibble/pkg/jsonutil"
)

// Set holds the animations of one asset.
type Set struct {
	ids  []string
	byID map[string]*Animation
}

// NewSet parses every payload of an animations object. children overrides
// the per-animation children lists when not empty. Derived animations
// without their own children inherit their source's.
func NewSet(payloads jsonutil.Object, children []string) *Set {
	s := &Set{byID: make(map[string]*Animation, len(payloads))}
	for id, v := range payloads {
		p, ok := v.(map[string]any)
		if !ok {
			continue
		}
		s.byID[id] = Parse(id, p, children)
		s.ids = append(s.ids, id)
	}
	sort.Strings(s.ids)
	for _, id := range s.ids {
		a := s.byID[id]
		if len(a.Children) > 0 || !a.Source.Derived() {
			continue
		}
		if src, ok := s.byID[a.Source.Name]; ok {
			a.Children = append([]string(nil), src.Children...)
		}
	}
	return s
}

// Get returns the animation with the given id.
func (s *Set) Get(id string) (*Animation, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// IDs returns the animation ids in sorted order.
func (s *Set) IDs() []string {
	return append([]string(nil), s.ids...)
}

// Len returns the number of animations.
func (s *Set) Len() int { return len(s.ids) }

// Put adds or replaces an animation.
func (s *Set) Put(a *Animation) {
	if _, ok := s.byID[a.ID]; !ok {
		s.ids = append(s.ids, a.ID)
		sort.Strings(s.ids)
	}
	s.byID[a.ID] = a
}

// Remove drops an animation and releases its textures.
func (s *Set) Remove(id string) {
	a, ok := s.byID[id]
	if !ok {
		return
	}
	a.Release()
	delete(s.byID, id)
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
}

// dependsOnOther reports whether a clones frames from a different animation.
func (s *Set) dependsOnOther(a *Animation) bool {
	return a.Source.Derived() && a.Source.Name != a.ID
}

func (s *Set) sourceReady(a *Animation) bool {
	src, ok := s.byID[a.Source.Name]
	return ok && src.Ready()
}

// Load fills frames for every animation. Self-contained animations and those
// whose source is already loaded go first; the rest are retried while a pass
// makes progress. Leftovers are forced with a warning and stay addressable
// with no frames.
func (s *Set) Load(opts LoadOptions) error {
	var errs error
	var deferred []*Animation

	for _, id := range s.ids {
		a := s.byID[id]
		if s.dependsOnOther(a) && !s.sourceReady(a) {
			deferred = append(deferred, a)
			continue
		}
		errs = multierr.Append(errs, s.loadOne(a, opts))
	}

	for guard := len(deferred) + 1; len(deferred) > 0 && guard > 0; guard-- {
		var next []*Animation
		for _, a := range deferred {
			if !s.sourceReady(a) {
				next = append(next, a)
				continue
			}
			errs = multierr.Append(errs, s.loadOne(a, opts))
		}
		if len(next) == len(deferred) {
			break
		}
		deferred = next
	}

	for _, a := range deferred {
		logger.Warn("forcing animation with unresolved source",
			zap.String("asset", opts.Asset),
			zap.String("animation", a.ID),
			zap.String("source", a.Source.Name))
		errs = multierr.Append(errs, s.loadOne(a, opts))
	}
	return errs
}

func (s *Set) loadOne(a *Animation, opts LoadOptions) error {
	if a.Source.Kind == KindAnimation {
		if a.Source.Name == "" || a.Source.Name == a.ID {
			return fmt.Errorf("%s/%s: invalid animation source %q", opts.Asset, a.ID, a.Source.Name)
		}
		src, ok := s.byID[a.Source.Name]
		if !ok || !src.Ready() {
			a.Frames = nil
			return nil
		}
		CloneFrames(a, src)
		return nil
	}
	return LoadFrames(a, opts)
}

// Upload creates textures for all loaded animations.
func (s *Set) Upload(r render.Renderer) error {
	var errs error
	for _, id := range s.ids {
		errs = multierr.Append(errs, Upload(s.byID[id], r))
	}
	return errs
}

// Release destroys all textures.
func (s *Set) Release() {
	for _, a := range s.byID {
		a.Release()
	}
}
