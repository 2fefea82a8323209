package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/john-mcenroe/landos/internal/api"
)

func newClient(t *testing.T, handler http.Handler) *api.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return api.New(api.Config{BaseURL: srv.URL + "/api"}, zap.NewNop())
}

func TestFormatBBox(t *testing.T) {
	b := orb.Bound{Min: orb.Point{-6.3, 53.3}, Max: orb.Point{-6.2, 53.4}}
	assert.Equal(t, "-6.300000,53.300000,-6.200000,53.400000", api.FormatBBox(b))
}

func TestLayerFeatures(t *testing.T) {
	var gotBBox string
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/parcels", r.URL.Path)
		gotBBox = r.URL.Query().Get("bbox")
		w.Write([]byte(`{"type":"FeatureCollection","features":[
			{"type":"Feature","id":7,"geometry":{"type":"Point","coordinates":[-6.25,53.34]},
			 "properties":{"id":7,"national_ref":"D123"}}]}`))
	}))

	b := orb.Bound{Min: orb.Point{-6.3, 53.3}, Max: orb.Point{-6.2, 53.4}}
	fc, err := c.LayerFeatures(context.Background(), "/parcels", b)
	require.NoError(t, err)
	assert.Equal(t, "-6.300000,53.300000,-6.200000,53.400000", gotBBox)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "D123", fc.Features[0].Properties.MustString("national_ref"))
}

func TestParcelDetailCached(t *testing.T) {
	calls := 0
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, "/api/parcel/42", r.URL.Path)
		require.Equal(t, "leasehold", r.URL.Query().Get("parcel_type"))
		json.NewEncoder(w).Encode(api.ParcelDetail{ID: 42, NationalRef: "X1", Type: "leasehold"})
	}))

	for i := 0; i < 3; i++ {
		d, err := c.ParcelDetail(context.Background(), 42, "leasehold")
		require.NoError(t, err)
		assert.Equal(t, "X1", d.NationalRef)
	}
	assert.Equal(t, 1, calls, "repeat detail lookups should be served from cache")
}

func TestParcelDetailNotFound(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := c.ParcelDetail(context.Background(), 9, "freehold")
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestSoldStats(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/sold_stats", r.URL.Path)
		require.Equal(t, "750", r.URL.Query().Get("radius"))
		w.Write([]byte(`{"count":12,"radius_m":750,"avg_sale_price":450000,
			"property_type_breakdown":{"Semi-D":8,"Apartment":4}}`))
	}))

	stats, err := c.SoldStats(context.Background(), orb.Point{-6.25, 53.30}, 750)
	require.NoError(t, err)
	assert.Equal(t, 12, stats.Count)
	assert.Equal(t, 8, stats.PropertyTypeBreakdown["Semi-D"])
}

func TestChatExplorePayload(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/ai/chat", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req struct {
			Messages []api.ChatMessage `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)

		w.Write([]byte(`{"type":"explore","summary":"2 sites found",
			"results":[{"entity_type":"rzlt_site","score":91,"lng":-6.25,"lat":53.3,
				"zone_desc":"Residential","opportunity_reason":"zoned and serviced"}],
			"follow_ups":["only in Dun Laoghaire"]}`))
	}))

	resp, err := c.Chat(context.Background(), []api.ChatMessage{
		{Role: api.RoleUser, Content: "find rzlt sites"},
		{Role: api.RoleAssistant, Content: "{}"},
	})
	require.NoError(t, err)
	assert.Equal(t, api.ChatTypeExplore, resp.Type)
	require.Len(t, resp.Results, 1)

	r := resp.Results[0]
	assert.Equal(t, api.EntityRZLTSite, r.EntityType)
	assert.Equal(t, float64(91), r.Score)
	assert.Equal(t, "zoned and serviced", r.OpportunityReason)
	assert.Equal(t, "Residential", r.StringAttr("zone_desc"))
	_, ok := r.Attrs["score"]
	assert.False(t, ok, "envelope fields should not leak into Attrs")
}

func TestRankedResultRoundTrip(t *testing.T) {
	in := api.RankedResult{
		EntityType: api.EntitySoldProperty,
		Score:      77,
		Lng:        -6.2, Lat: 53.35,
		Attrs: map[string]any{"address": "4 Main St", "sale_price": float64(410000)},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out api.RankedResult
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.EntityType, out.EntityType)
	assert.Equal(t, in.Score, out.Score)
	assert.Equal(t, "4 Main St", out.StringAttr("address"))
	price, ok := out.FloatAttr("sale_price")
	require.True(t, ok)
	assert.Equal(t, float64(410000), price)
}

func TestSearch(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "dalkey", r.URL.Query().Get("q"))
		w.Write([]byte(`{"results":[{"display_name":"Dalkey, Dublin","lat":53.277,"lng":-6.103}]}`))
	}))

	results, err := c.Search(context.Background(), "dalkey")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Dalkey, Dublin", results[0].DisplayName)
}
