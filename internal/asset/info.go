// Package asset holds the shared asset definitions built from the manifest:
// tags, scaling, animations, named areas, lights and child attachments.
package asset

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/zyedidia/generic/mapset"
	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/animation"
	"github.com/Faultbox/vibble/internal/cache"
	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/internal/manifest"
	"github.com/Faultbox/vibble/internal/rebuild"
	"github.com/Faultbox/vibble/pkg/jsonutil"
)

// Neighbor search distance limits.
const (
	MinNeighborSearch     = 20
	MaxNeighborSearch     = 1000
	DefaultNeighborSearch = 500
)

// ErrEmptyName is returned when an asset is built without a name.
var ErrEmptyName = errors.New("asset: empty name")

// Env carries the locations and services an Info needs after parsing.
type Env struct {
	CacheRoot string
	Rebuild   *rebuild.Queue
	// Seed drives PickNextAnimation. Each Info derives its own stream.
	Seed int64
}

// Info is the shared definition of one asset.
type Info struct {
	Name      string
	Directory string
	Type      string

	Tags     []string
	AntiTags []string
	tagSet   mapset.Set[string]
	antiSet  mapset.Set[string]

	Passable bool
	Tillable bool
	Shaded   bool
	Flipable bool

	ZThreshold           int
	MinSameTypeDistance  int
	MinDistanceAll       int
	NeighborSearchRadius int

	ScaleFactor          float64
	SmoothScaling        bool
	ApplyDistanceScaling bool
	ApplyVerticalScaling bool

	// CanvasWidth and CanvasHeight are the unscaled sprite canvas.
	CanvasWidth  int
	CanvasHeight int

	StartAnimation    string
	Animations        *animation.Set
	AnimationChildren []string
	AsyncChildren     []AsyncChild
	Mappings          map[string][]MappingEntry

	Areas    []*NamedArea
	Children []ChildInfo

	Lights        []*LightSource
	IsLightSource bool

	SpawnGroups         []jsonutil.Object
	CustomControllerKey string

	env  *Env
	json jsonutil.Object

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewInfo builds an Info from a manifest entry. The entry is copied; the
// copy is normalized and exposed through JSON.
func NewInfo(name string, entry jsonutil.Object, env *Env) (*Info, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if env == nil {
		env = &Env{}
	}
	info := &Info{
		Name:    name,
		env:     env,
		json:    jsonutil.CloneObject(entry),
		tagSet:  mapset.New[string](),
		antiSet: mapset.New[string](),
		rng:     rand.New(rand.NewSource(env.Seed ^ int64(hashName(name)))),
	}
	info.initialize()
	return info, nil
}

func (i *Info) initialize() {
	data := i.json
	if got := jsonutil.String(data, "asset_name", ""); got != i.Name {
		if got != "" {
			logger.Warn("asset_name does not match manifest key",
				zap.String("key", i.Name), zap.String("asset_name", got))
		}
		data["asset_name"] = i.Name
	}
	i.Directory = jsonutil.String(data, "asset_directory", "")

	i.Tags = nonEmpty(jsonutil.Strings(data, "tags"))
	i.AntiTags = nonEmpty(jsonutil.Strings(data, "anti_tags"))
	i.rebuildTagSets()
	data["tags"] = jsonutil.StringsToArray(i.Tags)
	data["anti_tags"] = jsonutil.StringsToArray(i.AntiTags)

	i.AnimationChildren = i.parseAnimationChildren()
	data["animation_children"] = jsonutil.StringsToArray(i.AnimationChildren)
	i.AsyncChildren = parseAsyncChildren(data)

	i.loadAnimations()
	i.Mappings = parseMappings(data)

	i.SmoothScaling = !(i.HasTag("pixel_art") || i.HasTag("preserve_pixels"))
	i.loadBaseProperties()
	i.loadScale()

	if w, ok := jsonutil.Integer(data, "canvas_width"); ok {
		i.CanvasWidth = max(0, w)
	}
	if h, ok := jsonutil.Integer(data, "canvas_height"); ok {
		i.CanvasHeight = max(0, h)
	}
	if i.CanvasWidth == 0 || i.CanvasHeight == 0 {
		i.canvasFromCache()
	}

	i.Lights = ParseLights(data)
	i.IsLightSource = len(i.Lights) > 0

	if arr, ok := jsonutil.GetArray(data, "spawn_groups"); ok {
		for _, g := range arr {
			if o, ok := g.(map[string]any); ok {
				i.SpawnGroups = append(i.SpawnGroups, o)
			}
		}
	}

	i.loadAreas()
	i.loadChildren()
	i.CustomControllerKey = jsonutil.String(data, "custom_controller_key", "")
}

func (i *Info) loadBaseProperties() {
	data := i.json
	i.Type = CanonicalType(jsonutil.String(data, "asset_type", TypeObject))
	if i.Type == TypePlayer {
		logger.Info("player asset loaded", zap.String("asset", i.Name))
	}
	i.ZThreshold = jsonutil.Int(data, "z_threshold", 0)
	i.Passable = i.HasTag("passable")

	if _, ok := data["tillable"]; ok {
		i.Tillable = jsonutil.Bool(data, "tillable", false)
	} else {
		i.Tillable = jsonutil.Bool(data, "tileable", false)
	}
	data["tillable"] = i.Tillable

	i.Shaded = jsonutil.Bool(data, "has_shading", false)
	i.MinSameTypeDistance = jsonutil.Int(data, "min_same_type_distance", 0)
	i.MinDistanceAll = jsonutil.Int(data, "min_distance_all", 0)
	i.Flipable = jsonutil.Bool(data, "can_invert", false)
	i.ApplyDistanceScaling = jsonutil.Bool(data, "apply_distance_scaling", true)
	i.ApplyVerticalScaling = jsonutil.Bool(data, "apply_vertical_scaling", true)

	r := jsonutil.Int(data, "neighbor_search_distance", DefaultNeighborSearch)
	i.NeighborSearchRadius = min(max(r, MinNeighborSearch), MaxNeighborSearch)
	data["neighbor_search_distance"] = i.NeighborSearchRadius
}

// loadScale reads size_settings, falling back to top-level keys.
func (i *Info) loadScale() {
	ss, _ := jsonutil.GetObject(i.json, "size_settings")
	pct := jsonutil.Float(i.json, "scale_percentage", 100)
	pct = jsonutil.Float(ss, "scale_percentage", pct)
	i.ScaleFactor = pct / 100
	if i.ScaleFactor <= 0 {
		i.ScaleFactor = 1
	}

	filter := jsonutil.String(i.json, "scale_filter", "")
	filter = jsonutil.String(ss, "scale_filter", filter)
	switch strings.ToLower(filter) {
	case "":
	case "nearest", "point", "none":
		i.SmoothScaling = false
	default:
		i.SmoothScaling = true
	}
}

// Nearest reports whether scaled renditions should use nearest filtering.
func (i *Info) Nearest() bool { return !i.SmoothScaling }

func (i *Info) canvasFromCache() {
	if i.env.CacheRoot == "" || i.Animations == nil {
		return
	}
	for _, id := range []string{i.StartAnimation, "default"} {
		if id == "" {
			continue
		}
		if _, ok := i.Animations.Get(id); !ok {
			continue
		}
		img, err := cache.LoadImage(cache.FramePath(cache.VariantDir(i.env.CacheRoot, i.Name, id, 100, cache.LayerNormal), 0))
		if err != nil {
			continue
		}
		b := img.Bounds()
		if i.CanvasWidth == 0 {
			i.CanvasWidth = b.Dx()
		}
		if i.CanvasHeight == 0 {
			i.CanvasHeight = b.Dy()
		}
		return
	}
}

// JSON returns a copy of the normalized manifest entry.
func (i *Info) JSON() jsonutil.Object {
	return jsonutil.CloneObject(i.json)
}

// Commit writes the entry back through the manifest store.
func (i *Info) Commit(store *manifest.Store) error {
	if store == nil {
		return errors.New("asset: no manifest store")
	}
	edit, err := store.BeginAssetEdit(i.Name, true)
	if err != nil {
		return err
	}
	draft := edit.Draft()
	for k := range draft {
		delete(draft, k)
	}
	for k, v := range jsonutil.CloneObject(i.json) {
		draft[k] = v
	}
	if !edit.Commit() {
		return fmt.Errorf("asset %s: manifest commit failed", i.Name)
	}
	return nil
}

// HasTag reports whether tag is set.
func (i *Info) HasTag(tag string) bool { return i.tagSet.Has(tag) }

// HasAntiTag reports whether anti-tag is set.
func (i *Info) HasAntiTag(tag string) bool { return i.antiSet.Has(tag) }

// SetTags replaces the tag list.
func (i *Info) SetTags(tags []string) {
	i.Tags = dedupe(tags)
	i.syncTags()
}

// AddTag appends tag when absent.
func (i *Info) AddTag(tag string) {
	if tag == "" || i.HasTag(tag) {
		return
	}
	i.Tags = append(i.Tags, tag)
	i.syncTags()
}

// RemoveTag drops tag.
func (i *Info) RemoveTag(tag string) {
	i.Tags = without(i.Tags, tag)
	i.syncTags()
}

// SetAntiTags replaces the anti-tag list.
func (i *Info) SetAntiTags(tags []string) {
	i.AntiTags = dedupe(tags)
	i.syncTags()
}

// AddAntiTag appends tag when absent.
func (i *Info) AddAntiTag(tag string) {
	if tag == "" || i.HasAntiTag(tag) {
		return
	}
	i.AntiTags = append(i.AntiTags, tag)
	i.syncTags()
}

// RemoveAntiTag drops tag.
func (i *Info) RemoveAntiTag(tag string) {
	i.AntiTags = without(i.AntiTags, tag)
	i.syncTags()
}

func (i *Info) syncTags() {
	i.rebuildTagSets()
	i.json["tags"] = jsonutil.StringsToArray(i.Tags)
	i.json["anti_tags"] = jsonutil.StringsToArray(i.AntiTags)
	i.Passable = i.HasTag("passable")
}

func (i *Info) rebuildTagSets() {
	i.tagSet = mapset.New[string]()
	for _, t := range i.Tags {
		i.tagSet.Put(t)
	}
	i.antiSet = mapset.New[string]()
	for _, t := range i.AntiTags {
		i.antiSet.Put(t)
	}
}

// SetPassable toggles the passable tag.
func (i *Info) SetPassable(v bool) {
	if v {
		i.AddTag("passable")
	} else {
		i.RemoveTag("passable")
	}
}

// SetScalePercentage updates the scale factor and its manifest value.
func (i *Info) SetScalePercentage(pct float64) {
	if pct <= 0 {
		pct = 100
	}
	i.ScaleFactor = pct / 100
	ss, _ := jsonutil.EnsureObject(i.json, "size_settings")
	ss["scale_percentage"] = pct
}

// SetNeighborSearchRadius clamps and stores the neighbour search distance.
func (i *Info) SetNeighborSearchRadius(r int) {
	i.NeighborSearchRadius = min(max(r, MinNeighborSearch), MaxNeighborSearch)
	i.json["neighbor_search_distance"] = i.NeighborSearchRadius
}

func hashName(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func nonEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func without(in []string, v string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
