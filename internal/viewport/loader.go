package viewport

import (
	"context"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/john-mcenroe/landos/internal/api"
	"github.com/john-mcenroe/landos/internal/clock"
	"github.com/john-mcenroe/landos/internal/mapview"
)

// DebounceWindow is how long the map must be quiet before a reload fires.
const DebounceWindow = 250 * time.Millisecond

type fetcher interface {
	LayerFeatures(ctx context.Context, endpoint string, b orb.Bound) (*geojson.FeatureCollection, error)
	Layers(ctx context.Context) ([]api.LayerInfo, error)
}

// Loader schedules and applies per-layer bbox fetches for the current
// viewport. Each reload cycle carries a generation; a response is applied
// only while its generation is still current, so a slow fetch from a
// superseded viewport can never overwrite newer data.
type Loader struct {
	mu       sync.Mutex
	api      fetcher
	surface  mapview.Surface
	clk      clock.Clock
	log      *zap.Logger
	layers   []Layer
	view     Viewport
	haveView bool
	debounce clock.Timer
	gen      uint64
	hintFn   func(string)
}

// NewLoader creates a loader over a catalog. hintFn receives zoom hint
// updates and may be nil.
func NewLoader(f fetcher, surface mapview.Surface, clk clock.Clock, log *zap.Logger, catalog []Layer, hintFn func(string)) *Loader {
	if clk == nil {
		clk = clock.System{}
	}
	return &Loader{
		api:     f,
		surface: surface,
		clk:     clk,
		log:     log,
		layers:  append([]Layer(nil), catalog...),
		hintFn:  hintFn,
	}
}

// LoadCatalog replaces the catalog with backend metadata, falling back to
// the hardcoded freehold/leasehold pair when the listing is unreachable.
func (l *Loader) LoadCatalog(ctx context.Context) {
	infos, err := l.api.Layers(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.log.Warn("layer catalog unreachable, using fallback",
			zap.String("module", "viewport"), zap.Error(err))
		l.layers = FallbackCatalog()
		return
	}
	l.layers = MergeCatalog(infos)
}

// Layers returns a snapshot of the catalog.
func (l *Loader) Layers() []Layer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Layer(nil), l.layers...)
}

// OnViewportChanged records the new viewport, refreshes the zoom hint
// synchronously, and (re)starts the reload debounce window.
func (l *Loader) OnViewportChanged(v Viewport) {
	l.mu.Lock()
	l.view = v
	l.haveView = true
	if l.debounce != nil {
		l.debounce.Stop()
	}
	l.debounce = l.clk.AfterFunc(DebounceWindow, l.Reload)
	hintFn := l.hintFn
	l.mu.Unlock()

	if hintFn != nil {
		hintFn(ZoomHint(v.Zoom))
	}
}

// SetLayerActive toggles a layer. Turning a layer off clears its rendered
// features immediately and invalidates any in-flight fetch for it; turning
// it on reloads right away.
func (l *Loader) SetLayerActive(name string, active bool) {
	l.mu.Lock()
	var layer *Layer
	for i := range l.layers {
		if l.layers[i].Name == name {
			layer = &l.layers[i]
			break
		}
	}
	if layer == nil || layer.Active == active {
		l.mu.Unlock()
		return
	}
	layer.Active = active
	l.gen++ // invalidate in-flight responses
	source := layer.Source
	l.mu.Unlock()

	l.surface.SetLayerVisibility(name, active)
	if active {
		l.Reload()
	} else {
		l.surface.SetLayerData(source, mapview.EmptyCollection())
	}
}

// Reload fetches every active, zoom-eligible layer for the current viewport
// immediately. Layers below their zoom gate are cleared regardless of
// network state.
func (l *Loader) Reload() {
	l.mu.Lock()
	if !l.haveView {
		l.mu.Unlock()
		return
	}
	l.gen++
	gen := l.gen
	view := l.view
	layers := append([]Layer(nil), l.layers...)
	l.mu.Unlock()

	for _, layer := range layers {
		if view.Zoom < layer.MinZoom {
			l.surface.SetLayerData(layer.Source, mapview.EmptyCollection())
			continue
		}
		if !layer.Active {
			continue
		}
		go l.fetchLayer(layer, view, gen)
	}
}

func (l *Loader) fetchLayer(layer Layer, view Viewport, gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fc, err := l.api.LayerFeatures(ctx, layer.Endpoint, view.Bound())
	if err != nil {
		// Previous rendering stays untouched; no retry.
		l.log.Warn("layer fetch failed",
			zap.String("module", "viewport"),
			zap.String("layer", layer.Name),
			zap.Error(err))
		return
	}

	// Check and apply under the lock: a response that passed the check must
	// not be overtaken by a newer generation's write before applying.
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return
	}
	l.surface.SetLayerData(layer.Source, fc)
}
