package selection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/john-mcenroe/landos/internal/api"
	"github.com/john-mcenroe/landos/internal/detail"
	"github.com/john-mcenroe/landos/internal/mapview"
)

type fakeDetailAPI struct {
	mu     sync.Mutex
	detail *api.ParcelDetail
	err    error
	calls  int
}

func (f *fakeDetailAPI) ParcelDetail(ctx context.Context, id int64, parcelType string) (*api.ParcelDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.detail, f.err
}

type fakePanel struct {
	mu     sync.Mutex
	title  string
	rows   []detail.Row
	shows  int
	closed int
}

func (p *fakePanel) ShowDetail(title string, rows []detail.Row) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title, p.rows = title, rows
	p.shows++
}

func (p *fakePanel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
}

func (p *fakePanel) snapshot() (string, []detail.Row, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, p.rows, p.shows
}

func newController(fetcher *fakeDetailAPI) (*Controller, *mapview.Recorder, *fakePanel) {
	rec := mapview.NewRecorder(nil)
	panel := &fakePanel{}
	return NewController(fetcher, rec, panel, zap.NewNop()), rec, panel
}

func TestSelectParcelExclusivity(t *testing.T) {
	area := 900.0
	fetcher := &fakeDetailAPI{detail: &api.ParcelDetail{ID: 5, NationalRef: "R1", AreaSqm: &area, Type: "freehold"}}
	c, rec, panel := newController(fetcher)

	// Pre-existing highlight on another group member.
	rec.SetHighlightFilter("dlr_planning_polygons-selected", 99)

	c.SelectFeature(KindParcel, "freehold", 5, map[string]any{"id": float64(5)})

	id, ok := rec.Highlight("cadastral_freehold-selected")
	require.True(t, ok)
	assert.Equal(t, int64(5), id)

	for _, other := range []string{
		"cadastral_leasehold-selected",
		"dlr_planning_polygons-selected",
		"census_small_areas-selected",
	} {
		_, ok := rec.Highlight(other)
		assert.False(t, ok, "layer %s must be cleared", other)
	}

	require.Eventually(t, func() bool {
		_, _, shows := panel.snapshot()
		return shows == 1
	}, time.Second, 5*time.Millisecond)

	title, rows, _ := panel.snapshot()
	assert.Equal(t, "Parcel Details", title)
	assert.Equal(t, "900 m²", rows[0].Value)
}

func TestSelectParcelDetailFallback(t *testing.T) {
	fetcher := &fakeDetailAPI{err: errors.New("backend down")}
	c, _, panel := newController(fetcher)

	c.SelectFeature(KindParcel, "leasehold", 8, map[string]any{
		"id": float64(8), "national_ref": "L900",
	})

	require.Eventually(t, func() bool {
		_, _, shows := panel.snapshot()
		return shows == 1
	}, time.Second, 5*time.Millisecond)

	_, rows, _ := panel.snapshot()
	var found bool
	for _, r := range rows {
		if r.Label == "National Cadastral Ref" {
			assert.Equal(t, "L900", r.Value)
			found = true
		}
	}
	assert.True(t, found)
}

func TestSelectMutualExclusivityAllPairs(t *testing.T) {
	fetcher := &fakeDetailAPI{detail: &api.ParcelDetail{ID: 1, Type: "freehold"}}
	c, rec, _ := newController(fetcher)

	selections := []struct {
		kind       Kind
		parcelType string
		layer      string
	}{
		{KindParcel, "freehold", "cadastral_freehold-selected"},
		{KindParcel, "leasehold", "cadastral_leasehold-selected"},
		{KindPlanning, "", "dlr_planning_polygons-selected"},
		{KindCensus, "", "census_small_areas-selected"},
	}

	for _, sel := range selections {
		c.SelectFeature(sel.kind, sel.parcelType, 1, nil)

		highlighted := 0
		for _, layer := range []string{
			"cadastral_freehold-selected",
			"cadastral_leasehold-selected",
			"dlr_planning_polygons-selected",
			"census_small_areas-selected",
		} {
			if _, ok := rec.Highlight(layer); ok {
				assert.Equal(t, sel.layer, layer)
				highlighted++
			}
		}
		assert.Equal(t, 1, highlighted, "exactly one highlight after selecting %v", sel.kind)
	}
}

func TestSelectSoldRendersImmediately(t *testing.T) {
	fetcher := &fakeDetailAPI{}
	c, rec, panel := newController(fetcher)

	c.SelectFeature(KindSold, "", 3, map[string]any{"sale_price": float64(500000)})

	title, rows, shows := panel.snapshot()
	assert.Equal(t, 1, shows)
	assert.Equal(t, "Sold Property", title)
	assert.Equal(t, "€500,000", rows[0].Value)
	assert.Equal(t, 0, fetcher.calls, "no detail endpoint exists for sold properties")

	// Point selections still clear the polygon highlights.
	for _, layer := range []string{"cadastral_freehold-selected", "dlr_planning_polygons-selected"} {
		_, ok := rec.Highlight(layer)
		assert.False(t, ok)
	}
}

func TestClearSelection(t *testing.T) {
	fetcher := &fakeDetailAPI{detail: &api.ParcelDetail{ID: 2, Type: "freehold"}}
	c, rec, panel := newController(fetcher)

	c.SelectFeature(KindPlanning, "", 7, nil)
	c.Clear()

	assert.Equal(t, Selection{}, c.Current())
	_, ok := rec.Highlight("dlr_planning_polygons-selected")
	assert.False(t, ok)
	panel.mu.Lock()
	defer panel.mu.Unlock()
	assert.Equal(t, 1, panel.closed)
}

func TestKindForEntity(t *testing.T) {
	kind, pt := KindForEntity(api.EntityLeaseholdParcel)
	assert.Equal(t, KindParcel, kind)
	assert.Equal(t, "leasehold", pt)

	kind, _ = KindForEntity(api.EntityRZLTSite)
	assert.Equal(t, KindRZLT, kind)

	kind, _ = KindForEntity("mystery")
	assert.Equal(t, KindNone, kind)
}
