package viewport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/john-mcenroe/landos/internal/api"
	"github.com/john-mcenroe/landos/internal/clock"
	"github.com/john-mcenroe/landos/internal/mapview"
)

type fakeBackend struct {
	mu       sync.Mutex
	calls    map[string]int
	fail     map[string]bool
	gate     map[string]chan struct{} // optional: block until released
	features int
	layers   []api.LayerInfo
	layerErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		calls:    make(map[string]int),
		fail:     make(map[string]bool),
		gate:     make(map[string]chan struct{}),
		features: 1,
	}
}

func (f *fakeBackend) LayerFeatures(ctx context.Context, endpoint string, b orb.Bound) (*geojson.FeatureCollection, error) {
	f.mu.Lock()
	f.calls[endpoint]++
	gate := f.gate[endpoint]
	fail := f.fail[endpoint]
	n := f.features
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if fail {
		return nil, errors.New("backend down")
	}
	fc := geojson.NewFeatureCollection()
	for i := 0; i < n; i++ {
		fc.Append(geojson.NewFeature(orb.Point{-6.25, 53.34}))
	}
	return fc, nil
}

func (f *fakeBackend) Layers(ctx context.Context) ([]api.LayerInfo, error) {
	return f.layers, f.layerErr
}

func (f *fakeBackend) callCount(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

func dublinView(zoom float64) Viewport {
	return Viewport{West: -6.30, South: 53.30, East: -6.20, North: 53.40, Zoom: zoom}
}

func newLoader(t *testing.T, backend *fakeBackend, clk clock.Clock, hintFn func(string)) (*Loader, *mapview.Recorder) {
	t.Helper()
	rec := mapview.NewRecorder(nil)
	return NewLoader(backend, rec, clk, zap.NewNop(), DefaultCatalog(), hintFn), rec
}

func TestReloadZoomGates(t *testing.T) {
	backend := newFakeBackend()
	l, rec := newLoader(t, backend, clock.NewFake(), nil)

	l.OnViewportChanged(dublinView(16))
	l.Reload()

	require.Eventually(t, func() bool {
		return rec.LayerFeatureCount("cadastral-freehold") == 1 &&
			rec.LayerFeatureCount("cadastral-leasehold") == 1 &&
			rec.LayerFeatureCount("rzlt") == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, backend.callCount("/parcels"))
	assert.Equal(t, 1, backend.callCount("/parcels_leasehold"))

	// Zooming out to 11 clears the gated layers without a fetch; RZLT has no
	// gate and still fires.
	l.OnViewportChanged(dublinView(11))
	l.Reload()

	require.Eventually(t, func() bool {
		return backend.callCount("/rzlt") == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, rec.LayerFeatureCount("cadastral-freehold"))
	assert.Equal(t, 0, rec.LayerFeatureCount("cadastral-leasehold"))
	assert.Equal(t, 0, rec.LayerFeatureCount("sold-properties"))
	assert.Equal(t, 1, backend.callCount("/parcels"), "no parcel fetch below the gate")
	assert.Equal(t, 1, backend.callCount("/sold_properties"), "no sold fetch below the gate")
}

func TestDebounceCollapsesRapidMoves(t *testing.T) {
	backend := newFakeBackend()
	clk := clock.NewFake()
	l, _ := newLoader(t, backend, clk, nil)

	for i := 0; i < 5; i++ {
		l.OnViewportChanged(dublinView(16))
		clk.Advance(50 * time.Millisecond)
	}
	assert.Equal(t, 0, backend.callCount("/parcels"), "nothing fires inside the window")

	clk.Advance(DebounceWindow)
	require.Eventually(t, func() bool {
		return backend.callCount("/parcels") == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, backend.callCount("/parcels"), "five rapid moves produce one reload")
}

func TestZoomHintSynchronous(t *testing.T) {
	backend := newFakeBackend()
	var hints []string
	l, _ := newLoader(t, backend, clock.NewFake(), func(h string) { hints = append(hints, h) })

	l.OnViewportChanged(dublinView(12.34))
	l.OnViewportChanged(dublinView(16))

	// Hint updates happen per event, before any debounce elapses.
	require.Equal(t, []string{
		"Zoom in to see parcels (zoom 15+) · Zoom: 12.3",
		"Zoom: 16",
	}, hints)
	assert.Equal(t, 0, backend.callCount("/parcels"))
}

func TestToggleOffClearsAndSuppressesFetches(t *testing.T) {
	backend := newFakeBackend()
	l, rec := newLoader(t, backend, clock.NewFake(), nil)

	l.OnViewportChanged(dublinView(16))
	l.Reload()
	require.Eventually(t, func() bool {
		return rec.LayerFeatureCount("cadastral-freehold") == 1
	}, time.Second, 5*time.Millisecond)

	l.SetLayerActive("cadastral_freehold", false)
	assert.Equal(t, 0, rec.LayerFeatureCount("cadastral-freehold"))
	assert.False(t, rec.Visible("cadastral_freehold"))

	before := backend.callCount("/parcels")
	l.Reload()
	require.Eventually(t, func() bool {
		return backend.callCount("/parcels_leasehold") == 2 // other fetches settle
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, before, backend.callCount("/parcels"), "no fetch while toggled off")

	l.SetLayerActive("cadastral_freehold", true)
	require.Eventually(t, func() bool {
		return backend.callCount("/parcels") == before+1
	}, time.Second, 5*time.Millisecond)
}

func TestStaleResponseDropped(t *testing.T) {
	backend := newFakeBackend()
	release := make(chan struct{})
	backend.gate["/parcels"] = release
	l, rec := newLoader(t, backend, clock.NewFake(), nil)

	l.OnViewportChanged(dublinView(16))
	l.Reload() // fetch 1 blocks on the gate

	require.Eventually(t, func() bool {
		return backend.callCount("/parcels") == 1
	}, time.Second, 5*time.Millisecond)

	// A newer viewport supersedes the blocked fetch.
	backend.mu.Lock()
	delete(backend.gate, "/parcels")
	backend.features = 3
	backend.mu.Unlock()
	l.OnViewportChanged(dublinView(16.5))
	l.Reload() // fetch 2 completes immediately

	require.Eventually(t, func() bool {
		return rec.LayerFeatureCount("cadastral-freehold") == 3
	}, time.Second, 5*time.Millisecond)

	// Now let the superseded fetch finish; it must not overwrite.
	close(release)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, rec.LayerFeatureCount("cadastral-freehold"))
}

func TestFailedFetchLeavesPreviousData(t *testing.T) {
	backend := newFakeBackend()
	l, rec := newLoader(t, backend, clock.NewFake(), nil)

	l.OnViewportChanged(dublinView(16))
	l.Reload()
	require.Eventually(t, func() bool {
		return rec.LayerFeatureCount("cadastral-freehold") == 1
	}, time.Second, 5*time.Millisecond)

	backend.mu.Lock()
	backend.fail["/parcels"] = true
	backend.mu.Unlock()
	l.Reload()

	require.Eventually(t, func() bool {
		return backend.callCount("/parcels") == 2
	}, time.Second, 5*time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, rec.LayerFeatureCount("cadastral-freehold"), "previous rendering untouched")
}

func TestLoadCatalogFallback(t *testing.T) {
	backend := newFakeBackend()
	backend.layerErr = errors.New("unreachable")
	l, _ := newLoader(t, backend, clock.NewFake(), nil)

	l.LoadCatalog(context.Background())

	layers := l.Layers()
	require.Len(t, layers, 2)
	assert.Equal(t, "cadastral_freehold", layers[0].Name)
	assert.Equal(t, "cadastral_leasehold", layers[1].Name)
}

func TestLoadCatalogMerge(t *testing.T) {
	backend := newFakeBackend()
	backend.layers = []api.LayerInfo{
		{Name: "cadastral_freehold", DisplayName: "Freehold", IsActive: true},
		{Name: "sold_properties", DisplayName: "Sold", IsActive: false},
		{Name: "unknown_layer", DisplayName: "???", IsActive: true},
	}
	l, _ := newLoader(t, backend, clock.NewFake(), nil)

	l.LoadCatalog(context.Background())

	byName := make(map[string]Layer)
	for _, layer := range l.Layers() {
		byName[layer.Name] = layer
	}
	assert.Equal(t, "Freehold", byName["cadastral_freehold"].DisplayName)
	assert.False(t, byName["sold_properties"].Active)
	_, ok := byName["unknown_layer"]
	assert.False(t, ok, "unknown backend layers are ignored")
	assert.Equal(t, float64(ParcelMinZoom), byName["cadastral_freehold"].MinZoom,
		"endpoint wiring and gates come from defaults")
}

func TestZoomHintFormat(t *testing.T) {
	assert.Equal(t, "Zoom in to see parcels (zoom 15+) · Zoom: 12", ZoomHint(12))
	assert.Equal(t, "Zoom: 15", ZoomHint(15))
	assert.Equal(t, "Zoom: 16.8", ZoomHint(16.75))
}
