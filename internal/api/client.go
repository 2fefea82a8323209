// Package api is the REST client for the LandOS backend. Every heavy
// computation (bbox queries, statistics, search ranking, the AI analysis)
// lives behind these endpoints; this package only moves JSON.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

// ErrNotFound reports a 404 from the backend.
var ErrNotFound = errors.New("not found")

// Config holds the client settings.
type Config struct {
	// BaseURL including the /api prefix, e.g. http://localhost:8000/api.
	BaseURL string
	Timeout time.Duration
}

// Client talks to the LandOS backend. Safe for concurrent use.
type Client struct {
	base  string
	http  *http.Client
	cache *cache.Cache
	log   *zap.Logger
}

// New creates a client. Detail and geocode responses are cached briefly so
// re-selecting the same feature doesn't refetch.
func New(cfg Config, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base:  cfg.BaseURL,
		http:  &http.Client{Timeout: timeout},
		cache: cache.New(5*time.Minute, 10*time.Minute),
		log:   log,
	}
}

// FormatBBox renders a bound as west,south,east,north with 6-decimal
// precision, the form every bbox endpoint expects.
func FormatBBox(b orb.Bound) string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f",
		b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat())
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("GET %s: %w", path, ErrNotFound)
	}
	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", path, res.StatusCode, bytes.TrimSpace(body))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decoding response: %w", path, err)
	}
	return nil
}

// LayerFeatures fetches a bbox-query endpoint (e.g. "/parcels") and returns
// its feature collection.
func (c *Client) LayerFeatures(ctx context.Context, endpoint string, b orb.Bound) (*geojson.FeatureCollection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+endpoint+"?bbox="+url.QueryEscape(FormatBBox(b)), nil)
	if err != nil {
		return nil, err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", endpoint, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", endpoint, res.StatusCode)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", endpoint, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("GET %s: parsing geojson: %w", endpoint, err)
	}
	return fc, nil
}

// Layers fetches the layer catalog.
func (c *Client) Layers(ctx context.Context) ([]LayerInfo, error) {
	var resp layersResponse
	if err := c.getJSON(ctx, "/layers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Layers, nil
}

// ParcelDetail fetches the full record for one parcel. parcelType is
// "freehold" or "leasehold". Responses are cached.
func (c *Client) ParcelDetail(ctx context.Context, id int64, parcelType string) (*ParcelDetail, error) {
	key := fmt.Sprintf("parcel:%s:%d", parcelType, id)
	if v, ok := c.cache.Get(key); ok {
		return v.(*ParcelDetail), nil
	}

	var detail ParcelDetail
	q := url.Values{"parcel_type": {parcelType}}
	if err := c.getJSON(ctx, fmt.Sprintf("/parcel/%d", id), q, &detail); err != nil {
		return nil, err
	}
	c.cache.Set(key, &detail, cache.DefaultExpiration)
	return &detail, nil
}

// Search geocodes a free-text location query. Responses are cached.
func (c *Client) Search(ctx context.Context, q string) ([]SearchResult, error) {
	key := "search:" + q
	if v, ok := c.cache.Get(key); ok {
		return v.([]SearchResult), nil
	}

	var resp searchResponse
	if err := c.getJSON(ctx, "/search", url.Values{"q": {q}}, &resp); err != nil {
		return nil, err
	}
	c.cache.Set(key, resp.Results, cache.DefaultExpiration)
	return resp.Results, nil
}

func discQuery(center orb.Point, radiusM float64) url.Values {
	return url.Values{
		"lng":    {fmt.Sprintf("%f", center.Lon())},
		"lat":    {fmt.Sprintf("%f", center.Lat())},
		"radius": {fmt.Sprintf("%.0f", radiusM)},
	}
}

// SoldStats fetches sold-property aggregates for a disc.
func (c *Client) SoldStats(ctx context.Context, center orb.Point, radiusM float64) (*SoldStats, error) {
	var stats SoldStats
	if err := c.getJSON(ctx, "/sold_stats", discQuery(center, radiusM), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// CensusStats fetches demographic aggregates for a disc.
func (c *Client) CensusStats(ctx context.Context, center orb.Point, radiusM float64) (*CensusStats, error) {
	var stats CensusStats
	if err := c.getJSON(ctx, "/census_stats", discQuery(center, radiusM), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Chat sends the full conversation history to the assistant endpoint.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (*ChatResponse, error) {
	payload, err := json.Marshal(chatRequest{Messages: messages})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/ai/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST /ai/chat: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("POST /ai/chat: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("POST /ai/chat: status %d: %s", res.StatusCode, bytes.TrimSpace(body))
	}

	var resp ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("POST /ai/chat: decoding response: %w", err)
	}
	return &resp, nil
}
