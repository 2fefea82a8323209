package mapview

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Recorder is a headless Surface that retains the last state applied to it.
// Controller tests assert against it and the CLI uses it as its map.
type Recorder struct {
	mu         sync.Mutex
	bus        *EventBus
	layerData  map[string]*geojson.FeatureCollection
	highlights map[string]int64
	visibility map[string]bool
	markers    []Marker
	cursor     string
	dragPan    bool
	center     orb.Point
	zoom       float64
	ops        []string
}

// NewRecorder creates a recorder. bus may be nil.
func NewRecorder(bus *EventBus) *Recorder {
	return &Recorder{
		bus:        bus,
		layerData:  make(map[string]*geojson.FeatureCollection),
		highlights: make(map[string]int64),
		visibility: make(map[string]bool),
		dragPan:    true,
	}
}

func (r *Recorder) record(op, target, detail string) {
	r.ops = append(r.ops, op+" "+target)
	if r.bus != nil {
		r.bus.Publish(Event{Op: op, Target: target, Detail: detail})
	}
}

func (r *Recorder) SetLayerData(source string, fc *geojson.FeatureCollection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layerData[source] = fc
	n := 0
	if fc != nil {
		n = len(fc.Features)
	}
	r.record("setLayerData", source, fmt.Sprintf("%d features", n))
}

func (r *Recorder) SetHighlightFilter(layer string, featureID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.highlights[layer] = featureID
	r.record("setHighlightFilter", layer, fmt.Sprintf("id=%d", featureID))
}

func (r *Recorder) ClearHighlightFilter(layer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.highlights, layer)
	r.record("clearHighlightFilter", layer, "")
}

func (r *Recorder) SetLayerVisibility(layer string, visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visibility[layer] = visible
	r.record("setLayerVisibility", layer, fmt.Sprintf("visible=%v", visible))
}

func (r *Recorder) FlyTo(center orb.Point, zoom float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.center, r.zoom = center, zoom
	r.record("flyTo", "", fmt.Sprintf("%.4f,%.4f z%.1f", center.Lon(), center.Lat(), zoom))
}

func (r *Recorder) FitBounds(b orb.Bound, padding float64, maxZoom float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.center = b.Center()
	if maxZoom < r.zoom || r.zoom == 0 {
		r.zoom = maxZoom
	}
	r.record("fitBounds", "", fmt.Sprintf("pad=%.0f maxZoom=%.0f", padding, maxZoom))
}

func (r *Recorder) SetMarkers(markers []Marker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markers = append([]Marker(nil), markers...)
	r.record("setMarkers", "", fmt.Sprintf("%d markers", len(markers)))
}

func (r *Recorder) ClearMarkers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markers = nil
	r.record("clearMarkers", "", "")
}

func (r *Recorder) SetCursor(cursor string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursor = cursor
	r.record("setCursor", "", cursor)
}

func (r *Recorder) SetDragPan(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dragPan = enabled
	r.record("setDragPan", "", fmt.Sprintf("%v", enabled))
}

// LayerFeatureCount reports how many features are currently rendered for a
// source, or -1 if the source was never set.
func (r *Recorder) LayerFeatureCount(source string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	fc, ok := r.layerData[source]
	if !ok {
		return -1
	}
	if fc == nil {
		return 0
	}
	return len(fc.Features)
}

// Highlight returns the highlighted feature id for a layer, if any.
func (r *Recorder) Highlight(layer string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.highlights[layer]
	return id, ok
}

// Visible reports a layer's last set visibility (default true).
func (r *Recorder) Visible(layer string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.visibility[layer]
	return !ok || v
}

// Markers returns a copy of the current markers.
func (r *Recorder) Markers() []Marker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Marker(nil), r.markers...)
}

// Center and Zoom report the last camera position.
func (r *Recorder) Center() orb.Point { r.mu.Lock(); defer r.mu.Unlock(); return r.center }
func (r *Recorder) Zoom() float64     { r.mu.Lock(); defer r.mu.Unlock(); return r.zoom }

// Cursor returns the current cursor style.
func (r *Recorder) Cursor() string { r.mu.Lock(); defer r.mu.Unlock(); return r.cursor }

// DragPan reports whether native panning is enabled.
func (r *Recorder) DragPan() bool { r.mu.Lock(); defer r.mu.Unlock(); return r.dragPan }

// Ops returns the op log.
func (r *Recorder) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}
