// Package results renders ranked assistant results as numbered cards and
// map markers, with keyboard navigation and detail drill-down. A result
// set is ephemeral: each new set replaces the previous cards and markers
// entirely.
package results

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/john-mcenroe/landos/internal/api"
	"github.com/john-mcenroe/landos/internal/clock"
	"github.com/john-mcenroe/landos/internal/detail"
	"github.com/john-mcenroe/landos/internal/mapview"
	"github.com/john-mcenroe/landos/internal/selection"
)

const (
	// FitPadding is the pixel padding used when fitting the viewport to a
	// fresh result set.
	FitPadding = 60
	// FitMaxZoom caps how far the fit may zoom in.
	FitMaxZoom = 16
	// FocusZoom is used when flying to one selected result.
	FocusZoom = 16
	// AutoSelectDelay is how long after the fit starts the top result is
	// selected automatically.
	AutoSelectDelay = 250 * time.Millisecond
)

// Band groups a score into a display color band.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// BandFor maps a 0-100 score to its band.
func BandFor(score float64) Band {
	switch {
	case score >= 80:
		return BandHigh
	case score >= 60:
		return BandMedium
	default:
		return BandLow
	}
}

// Card is one rank-numbered result row.
type Card struct {
	Rank     int
	Score    float64
	Band     Band
	Title    string
	Subtitle string
	Why      string
}

// View is the list surface the controller drives.
type View interface {
	ShowCards(cards []Card)
	// SetActiveRank highlights one card; 0 means none.
	SetActiveRank(rank int)
	Clear()
}

type selector interface {
	SelectFeature(kind selection.Kind, parcelType string, id int64, props map[string]any)
	Clear()
}

// Controller owns the current ranked result set.
type Controller struct {
	mu      sync.Mutex
	surface mapview.Surface
	view    View
	sel     selector
	clk     clock.Clock
	log     *zap.Logger

	results      []api.RankedResult
	active       int // 1-based rank, 0 when nothing is active
	autoSelect   clock.Timer
	inputFocused bool
}

// NewController wires the result display to a map surface, a card view and
// the selection controller.
func NewController(surface mapview.Surface, view View, sel selector, clk clock.Clock, log *zap.Logger) *Controller {
	if clk == nil {
		clk = clock.System{}
	}
	return &Controller{surface: surface, view: view, sel: sel, clk: clk, log: log}
}

// ShowResults replaces the current set: builds cards and rank-numbered
// markers, fits the viewport around every geolocated result, and schedules
// auto-selection of the top rank.
func (c *Controller) ShowResults(results []api.RankedResult) {
	c.mu.Lock()
	if c.autoSelect != nil {
		c.autoSelect.Stop()
		c.autoSelect = nil
	}
	c.results = append([]api.RankedResult(nil), results...)
	c.active = 0

	cards := make([]Card, 0, len(results))
	markers := make([]mapview.Marker, 0, len(results))
	var points orb.MultiPoint
	for i, r := range results {
		rank := i + 1
		cards = append(cards, buildCard(rank, r))
		if r.Lng == 0 && r.Lat == 0 {
			continue
		}
		pt := orb.Point{r.Lng, r.Lat}
		points = append(points, pt)
		markers = append(markers, mapview.Marker{
			ID:      markerID(rank, r),
			Rank:    rank,
			Point:   pt,
			Primary: rank == 1,
			Label:   strconv.Itoa(rank),
		})
	}
	c.mu.Unlock()

	c.view.ShowCards(cards)
	c.surface.SetMarkers(markers)
	if len(points) > 0 {
		c.surface.FitBounds(points.Bound(), FitPadding, FitMaxZoom)
	}

	if len(results) > 0 {
		c.mu.Lock()
		c.autoSelect = c.clk.AfterFunc(AutoSelectDelay, func() { c.Select(1) })
		c.mu.Unlock()
	}
}

// Select activates one rank: highlights its card and marker consistently,
// re-centers the map on it, and opens the matching detail view. Out-of-range
// ranks are ignored.
func (c *Controller) Select(rank int) {
	c.mu.Lock()
	if rank < 1 || rank > len(c.results) {
		c.mu.Unlock()
		return
	}
	c.active = rank
	r := c.results[rank-1]
	c.mu.Unlock()

	c.view.SetActiveRank(rank)
	if r.Lng != 0 || r.Lat != 0 {
		c.surface.FlyTo(orb.Point{r.Lng, r.Lat}, FocusZoom)
	}

	kind, parcelType := selection.KindForEntity(r.EntityType)
	if kind == selection.KindNone {
		return
	}
	c.sel.SelectFeature(kind, parcelType, resultID(r), resultProps(r))
}

// Next moves the active rank forward by one, clamped to the last result.
func (c *Controller) Next() { c.step(1) }

// Prev moves the active rank back by one, clamped to the first result.
func (c *Controller) Prev() { c.step(-1) }

func (c *Controller) step(delta int) {
	c.mu.Lock()
	n := len(c.results)
	if n == 0 {
		c.mu.Unlock()
		return
	}
	rank := c.active + delta
	if c.active == 0 {
		rank = 1
	}
	if rank < 1 {
		rank = 1
	}
	if rank > n {
		rank = n
	}
	c.mu.Unlock()
	c.Select(rank)
}

// SetInputFocused suspends keyboard navigation while a text input has
// focus.
func (c *Controller) SetInputFocused(focused bool) {
	c.mu.Lock()
	c.inputFocused = focused
	c.mu.Unlock()
}

// HandleKey routes a keyboard event: digits 1-9 jump to that rank,
// next/previous keys step the active selection. Inactive while a text
// input is focused.
func (c *Controller) HandleKey(key string) {
	c.mu.Lock()
	focused := c.inputFocused
	c.mu.Unlock()
	if focused {
		return
	}

	switch key {
	case "ArrowDown", "ArrowRight", "n":
		c.Next()
		return
	case "ArrowUp", "ArrowLeft", "p":
		c.Prev()
		return
	}
	if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		c.Select(int(key[0] - '0'))
	}
}

// ActiveRank returns the currently highlighted rank, 0 if none.
func (c *Controller) ActiveRank() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Clear drops the result set, its markers and any pending auto-selection,
// and clears the map selection.
func (c *Controller) Clear() {
	c.mu.Lock()
	if c.autoSelect != nil {
		c.autoSelect.Stop()
		c.autoSelect = nil
	}
	c.results = nil
	c.active = 0
	c.mu.Unlock()

	c.view.Clear()
	c.surface.ClearMarkers()
	c.sel.Clear()
}

func markerID(rank int, r api.RankedResult) string {
	if id := r.StringAttr("id"); id != "" {
		return r.EntityType + ":" + id
	}
	return fmt.Sprintf("%s:rank-%d", r.EntityType, rank)
}

func resultID(r api.RankedResult) int64 {
	if v, ok := r.FloatAttr("id"); ok {
		return int64(v)
	}
	return 0
}

// resultProps rebuilds a property map the detail templates can render when
// no secondary fetch applies.
func resultProps(r api.RankedResult) map[string]any {
	props := make(map[string]any, len(r.Attrs)+1)
	for k, v := range r.Attrs {
		props[k] = v
	}
	if r.OpportunityReason != "" {
		props["opportunity_reason"] = r.OpportunityReason
	}
	return props
}

func buildCard(rank int, r api.RankedResult) Card {
	return Card{
		Rank:     rank,
		Score:    r.Score,
		Band:     BandFor(r.Score),
		Title:    titleFor(r),
		Subtitle: subtitleFor(r),
		Why:      r.OpportunityReason,
	}
}

// titleFor falls through the identifying fields in fixed order before a
// generic per-type placeholder.
func titleFor(r api.RankedResult) string {
	for _, key := range []string{"address", "national_ref", "plan_ref", "zone_description", "descrptn"} {
		if v := r.StringAttr(key); v != "" {
			return v
		}
	}
	switch r.EntityType {
	case api.EntitySoldProperty:
		return "Sold property"
	case api.EntityFreeholdParcel:
		return "Freehold parcel"
	case api.EntityLeaseholdParcel:
		return "Leasehold parcel"
	case api.EntityRZLTSite:
		return "RZLT site"
	case api.EntityPlanningApp:
		return "Planning application"
	}
	return "Result"
}

func subtitleFor(r api.RankedResult) string {
	switch r.EntityType {
	case api.EntitySoldProperty:
		if v, ok := r.FloatAttr("sale_price"); ok {
			return "Sold for " + detail.Euro(v)
		}
		return "Sold property"
	case api.EntityFreeholdParcel, api.EntityLeaseholdParcel:
		if v, ok := r.FloatAttr("area_acres"); ok {
			return fmt.Sprintf("%.2f acres", v)
		}
		return "Registered parcel"
	case api.EntityRZLTSite:
		if v := r.StringAttr("zone_code"); v != "" {
			return "Zoned " + v
		}
		return "Residential zoned land"
	case api.EntityPlanningApp:
		if v := r.StringAttr("decision"); v != "" {
			return v
		}
		return "Planning application"
	}
	return ""
}
