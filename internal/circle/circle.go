// Package circle implements the radius-analysis tool: drag-to-size circle
// definition, debounced aggregate-statistics fetching, and the merged
// sold-price/demographics view.
package circle

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/john-mcenroe/landos/internal/api"
	"github.com/john-mcenroe/landos/internal/clock"
	"github.com/john-mcenroe/landos/internal/detail"
	"github.com/john-mcenroe/landos/internal/geo"
	"github.com/john-mcenroe/landos/internal/mapview"
)

// StatsDebounce is the quiet period before a radius change fetches stats.
const StatsDebounce = 200 * time.Millisecond

// Source is the map source the circle polygon renders into.
const Source = "analysis-circle"

// Breakdown is one proportional bar in a label→count breakdown.
type Breakdown struct {
	Label string
	Count int
	Pct   int
}

// StatsView is everything the stats panel renders for the current disc.
// When Empty is set only the radius control is meaningful.
type StatsView struct {
	RadiusM         float64
	Count           int
	Empty           bool
	Rows            []detail.Row
	Breakdown       []Breakdown
	DemographicRows []detail.Row
	AgeBands        []Breakdown
}

// StatsPanel renders the aggregate statistics for the disc.
type StatsPanel interface {
	ShowStats(view StatsView)
}

type statsFetcher interface {
	SoldStats(ctx context.Context, center orb.Point, radiusM float64) (*api.SoldStats, error)
	CensusStats(ctx context.Context, center orb.Point, radiusM float64) (*api.CensusStats, error)
}

// Controller owns circle mode. Invariant: no circle exists while mode is
// off, and the polygon is redrawn in the same mutation as every radius
// change.
type Controller struct {
	mu       sync.Mutex
	surface  mapview.Surface
	api      statsFetcher
	panel    StatsPanel
	clk      clock.Clock
	log      *zap.Logger
	onClear  func() // closes any open detail view when mode turns off
	mode     bool
	drawing  bool
	center   *orb.Point
	radiusM  float64
	debounce clock.Timer
	gen      uint64
}

// NewController creates a circle controller. onClear may be nil.
func NewController(f statsFetcher, surface mapview.Surface, panel StatsPanel, clk clock.Clock, log *zap.Logger, onClear func()) *Controller {
	if clk == nil {
		clk = clock.System{}
	}
	return &Controller{
		surface: surface,
		api:     f,
		panel:   panel,
		clk:     clk,
		log:     log,
		onClear: onClear,
		radiusM: geo.MinRadiusM,
	}
}

// Active reports whether circle mode is on.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// RadiusM returns the current radius.
func (c *Controller) RadiusM() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.radiusM
}

// Center returns the circle center, if a circle exists.
func (c *Controller) Center() (orb.Point, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.center == nil {
		return orb.Point{}, false
	}
	return *c.center, true
}

// ToggleMode flips circle mode and returns the new state. Turning the mode
// off clears the circle, closes any open detail view and re-enables native
// panning.
func (c *Controller) ToggleMode() bool {
	c.mu.Lock()
	c.mode = !c.mode
	on := c.mode
	if !on {
		c.center = nil
		c.drawing = false
		c.gen++ // drop in-flight stats
		if c.debounce != nil {
			c.debounce.Stop()
		}
	}
	c.mu.Unlock()

	if on {
		c.surface.SetCursor("crosshair")
		return true
	}
	c.surface.SetCursor("")
	c.surface.SetLayerData(Source, mapview.EmptyCollection())
	c.surface.SetDragPan(true)
	if c.onClear != nil {
		c.onClear()
	}
	return false
}

// PointerDown starts a new circle at p while circle mode is active. Native
// panning is suppressed for the duration of the drag. Returns whether the
// event was consumed.
func (c *Controller) PointerDown(p orb.Point) bool {
	c.mu.Lock()
	if !c.mode {
		c.mu.Unlock()
		return false
	}
	c.drawing = true
	c.center = &p
	c.radiusM = geo.MinRadiusM
	c.renderLocked()
	c.scheduleStatsLocked()
	c.mu.Unlock()

	c.surface.SetDragPan(false)
	return true
}

// PointerMove resizes the circle while dragging: radius is the haversine
// distance to the pointer, clamped and snapped.
func (c *Controller) PointerMove(p orb.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.drawing || c.center == nil {
		return
	}
	r := geo.SnapRadius(geo.ClampRadius(geo.Distance(*c.center, p)))
	if r == c.radiusM {
		return
	}
	c.radiusM = r
	c.renderLocked()
	c.scheduleStatsLocked()
}

// PointerUp ends the drag.
func (c *Controller) PointerUp() {
	c.endDrag()
}

// PointerLeave ends the drag when the pointer leaves the map mid-draw.
func (c *Controller) PointerLeave() {
	c.endDrag()
}

func (c *Controller) endDrag() {
	c.mu.Lock()
	was := c.drawing
	c.drawing = false
	c.mu.Unlock()
	if was {
		c.surface.SetDragPan(true)
	}
}

// SetRadius applies a manual radius change (e.g. the slider), re-rendering
// and re-fetching without touching drag state.
func (c *Controller) SetRadius(radiusM float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.radiusM = geo.SnapRadius(geo.ClampRadius(radiusM))
	if c.center == nil {
		return
	}
	c.renderLocked()
	c.scheduleStatsLocked()
}

// renderLocked redraws the circle polygon. Callers hold c.mu; the radius is
// never left updated without its polygon.
func (c *Controller) renderLocked() {
	if c.center == nil {
		return
	}
	c.surface.SetLayerData(Source, geo.CircleFeatureCollection(*c.center, c.radiusM, geo.DefaultCircleSteps))
}

func (c *Controller) scheduleStatsLocked() {
	c.gen++
	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.debounce = c.clk.AfterFunc(StatsDebounce, c.fetchStats)
}

func (c *Controller) fetchStats() {
	c.mu.Lock()
	if c.center == nil {
		c.mu.Unlock()
		return
	}
	gen := c.gen
	center := *c.center
	radius := c.radiusM
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sold, err := c.api.SoldStats(ctx, center, radius)
	if err != nil {
		c.log.Warn("circle stats fetch failed",
			zap.String("module", "circle"), zap.Error(err))
		return
	}

	// Demographics are best-effort; the sold stats render either way.
	census, err := c.api.CensusStats(ctx, center, radius)
	if err != nil {
		c.log.Debug("census stats unavailable",
			zap.String("module", "circle"), zap.Error(err))
		census = nil
	}

	c.mu.Lock()
	stale := gen != c.gen || c.center == nil
	c.mu.Unlock()
	if stale {
		return
	}

	c.panel.ShowStats(BuildStatsView(radius, sold, census))
}

// BuildStatsView assembles the panel payload from the aggregates.
func BuildStatsView(radiusM float64, sold *api.SoldStats, census *api.CensusStats) StatsView {
	view := StatsView{RadiusM: radiusM, Count: sold.Count}
	if sold.Count == 0 {
		view.Empty = true
	} else {
		view.Rows = []detail.Row{
			{Label: "Properties Found", Value: detail.Number(float64(sold.Count)), Tone: detail.ToneAccent, Large: true},
			{Label: "Avg Sale Price", Value: detail.Euro(sold.AvgSalePrice), Tone: detail.ToneBad, Large: true},
			{Label: "Median Sale Price", Value: detail.Euro(sold.MedianSalePrice)},
			{Label: "Range", Value: detail.Euro(sold.MinSalePrice) + " — " + detail.Euro(sold.MaxSalePrice)},
			{Label: "Std Deviation", Value: detail.Euro(sold.StddevSalePrice)},
			{Label: "Avg Asking Price", Value: euroOrPlaceholder(sold.AvgAskingPrice)},
			{Label: "Avg Price / m²", Value: perSqmOrPlaceholder(sold.AvgPricePerSqm)},
			{Label: "Avg Floor Area", Value: areaOrPlaceholder(sold.AvgFloorAreaM2)},
			{Label: "Avg Beds / Baths", Value: detail.Number(sold.AvgBeds) + " bed · " + detail.Number(sold.AvgBaths) + " bath"},
		}
		view.Breakdown = buildBreakdown(sold.PropertyTypeBreakdown)
	}

	if census != nil {
		props := map[string]any{
			"vacancy_rate":        census.VacancyRate,
			"employment_rate":     census.EmploymentRate,
			"third_level_rate":    census.ThirdLevelRate,
			"work_from_home_rate": census.WorkFromHomeRate,
		}
		view.DemographicRows = []detail.Row{
			{Label: "Population", Value: detail.Number(float64(census.Population)), Large: true},
			{Label: "Households", Value: detail.Number(float64(census.Households))},
			{Label: "Density", Value: detail.Number(census.Density) + " /km²"},
			detail.RateRow("Vacancy Rate", props, "vacancy_rate", true),
			detail.RateRow("Employment Rate", props, "employment_rate", false),
			detail.RateRow("Third Level Education", props, "third_level_rate", false),
			detail.RateRow("Work From Home", props, "work_from_home_rate", false),
		}
		view.AgeBands = buildBreakdown(census.AgeBands)
	}
	return view
}

func buildBreakdown(counts map[string]int) []Breakdown {
	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return nil
	}

	bars := make([]Breakdown, 0, len(counts))
	for label, n := range counts {
		if label == "" {
			label = "Unknown"
		}
		bars = append(bars, Breakdown{
			Label: label,
			Count: n,
			Pct:   int(float64(n)/float64(total)*100 + 0.5),
		})
	}
	sort.Slice(bars, func(i, j int) bool {
		if bars[i].Count != bars[j].Count {
			return bars[i].Count > bars[j].Count
		}
		return bars[i].Label < bars[j].Label
	})
	return bars
}

func euroOrPlaceholder(v float64) string {
	if v == 0 {
		return detail.Placeholder
	}
	return detail.Euro(v)
}

func perSqmOrPlaceholder(v float64) string {
	if v == 0 {
		return detail.Placeholder
	}
	return detail.Euro(v) + "/m²"
}

func areaOrPlaceholder(v float64) string {
	if v == 0 {
		return detail.Placeholder
	}
	return detail.Number(v) + " m²"
}
