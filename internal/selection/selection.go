// Package selection tracks the single globally-selected map feature and
// drives highlight filters and the detail panel. Cadastral, planning and
// census layers share one exclusive selection domain: selecting in any of
// them clears the highlight on all the others.
package selection

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/john-mcenroe/landos/internal/api"
	"github.com/john-mcenroe/landos/internal/detail"
	"github.com/john-mcenroe/landos/internal/mapview"
)

// Kind tags what sort of entity is selected.
type Kind int

const (
	KindNone Kind = iota
	KindParcel
	KindPlanning
	KindSold
	KindCensus
	KindRZLT
)

// Selection is the at-most-one selected feature.
type Selection struct {
	Kind       Kind
	ParcelType string // "freehold" or "leasehold" when Kind is KindParcel
	ID         int64
}

// highlightLayers is the exclusivity group: every selection change resets
// all of these before setting its own.
var highlightLayers = []string{
	"cadastral_freehold-selected",
	"cadastral_leasehold-selected",
	"dlr_planning_polygons-selected",
	"census_small_areas-selected",
}

func highlightLayerFor(sel Selection) (string, bool) {
	switch sel.Kind {
	case KindParcel:
		if sel.ParcelType == "leasehold" {
			return "cadastral_leasehold-selected", true
		}
		return "cadastral_freehold-selected", true
	case KindPlanning:
		return "dlr_planning_polygons-selected", true
	case KindCensus:
		return "census_small_areas-selected", true
	}
	// Point layers (sold, rzlt) have no highlight sublayer.
	return "", false
}

// KindForEntity maps a ranked-result entity tag to a selection kind and
// parcel type.
func KindForEntity(entityType string) (Kind, string) {
	switch entityType {
	case api.EntityFreeholdParcel:
		return KindParcel, "freehold"
	case api.EntityLeaseholdParcel:
		return KindParcel, "leasehold"
	case api.EntityPlanningApp:
		return KindPlanning, ""
	case api.EntitySoldProperty:
		return KindSold, ""
	case api.EntityRZLTSite:
		return KindRZLT, ""
	}
	return KindNone, ""
}

// Title returns the detail panel heading for a kind.
func Title(kind Kind) string {
	switch kind {
	case KindParcel:
		return "Parcel Details"
	case KindPlanning:
		return "Planning Application"
	case KindSold:
		return "Sold Property"
	case KindCensus:
		return "Census Area"
	case KindRZLT:
		return "RZLT Site"
	}
	return "Details"
}

// Rows dispatches to the per-entity detail template.
func Rows(kind Kind, props map[string]any) []detail.Row {
	switch kind {
	case KindParcel:
		return detail.ParcelRowsFromProps(props)
	case KindPlanning:
		return detail.PlanningRows(props)
	case KindSold:
		return detail.SoldRows(props)
	case KindCensus:
		return detail.CensusRows(props)
	case KindRZLT:
		return detail.RZLTRows(props)
	}
	return detail.GenericRows(props)
}

type detailFetcher interface {
	ParcelDetail(ctx context.Context, id int64, parcelType string) (*api.ParcelDetail, error)
}

// Controller owns the current selection.
type Controller struct {
	mu      sync.Mutex
	api     detailFetcher
	surface mapview.Surface
	panel   detail.Panel
	log     *zap.Logger
	current Selection
	gen     uint64
}

// NewController creates a selection controller.
func NewController(f detailFetcher, surface mapview.Surface, panel detail.Panel, log *zap.Logger) *Controller {
	return &Controller{api: f, surface: surface, panel: panel, log: log}
}

// Current returns the active selection.
func (c *Controller) Current() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// SelectFeature makes (kind, id) the sole selection: every other layer in
// the exclusivity group is cleared, this layer's highlight is set, and the
// detail panel opens. Parcels get a secondary detail fetch; if it fails the
// panel renders from the already-known feature properties instead.
func (c *Controller) SelectFeature(kind Kind, parcelType string, id int64, props map[string]any) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.current = Selection{Kind: kind, ParcelType: parcelType, ID: id}
	sel := c.current
	c.mu.Unlock()

	own, haveOwn := highlightLayerFor(sel)
	for _, layer := range highlightLayers {
		if haveOwn && layer == own {
			continue
		}
		c.surface.ClearHighlightFilter(layer)
	}
	if haveOwn {
		c.surface.SetHighlightFilter(own, id)
	}

	if kind == KindParcel {
		go c.fetchParcelDetail(sel, props, gen)
		return
	}
	c.panel.ShowDetail(Title(kind), Rows(kind, props))
}

func (c *Controller) fetchParcelDetail(sel Selection, props map[string]any, gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	title := Title(sel.Kind)
	d, err := c.api.ParcelDetail(ctx, sel.ID, sel.ParcelType)

	c.mu.Lock()
	stale := gen != c.gen
	c.mu.Unlock()
	if stale {
		return
	}

	if err != nil {
		c.log.Warn("parcel detail fetch failed, rendering from feature properties",
			zap.String("module", "selection"),
			zap.Int64("id", sel.ID),
			zap.Error(err))
		c.panel.ShowDetail(title, detail.ParcelRowsFromProps(props))
		return
	}
	c.panel.ShowDetail(title, detail.ParcelRows(d))
}

// Clear resets every highlight filter to match nothing and closes the
// detail panel.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.gen++
	c.current = Selection{}
	c.mu.Unlock()

	for _, layer := range highlightLayers {
		c.surface.ClearHighlightFilter(layer)
	}
	c.panel.Close()
}
