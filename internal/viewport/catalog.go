// Package viewport drives layer data loading from map movement: it decides,
// per catalog layer, whether the current zoom and visibility warrant a bbox
// fetch, and applies results to the map surface without letting a stale
// response overwrite a newer one.
package viewport

import (
	"math"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/john-mcenroe/landos/internal/api"
)

// ParcelMinZoom is the cutoff below which cadastral parcels are not shown.
const ParcelMinZoom = 15

// Layer is one toggleable catalog entry mapping a backend endpoint to a map
// source. Declared at startup, mutated only by user toggle, never destroyed.
type Layer struct {
	Name        string  // e.g. "cadastral_freehold"
	DisplayName string  // e.g. "Cadastral Parcels (Freehold)"
	Source      string  // map source id, e.g. "cadastral-freehold"
	Endpoint    string  // bbox endpoint, e.g. "/parcels"
	MinZoom     float64 // 0 means no zoom gate
	Active      bool
}

// Viewport is the current map window.
type Viewport struct {
	West  float64
	South float64
	East  float64
	North float64
	Zoom  float64
}

// Bound converts the viewport to an orb bound.
func (v Viewport) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{v.West, v.South}, Max: orb.Point{v.East, v.North}}
}

// DefaultCatalog returns the full layer catalog with the original zoom gates.
func DefaultCatalog() []Layer {
	return []Layer{
		{Name: "cadastral_freehold", DisplayName: "Cadastral Parcels (Freehold)", Source: "cadastral-freehold", Endpoint: "/parcels", MinZoom: ParcelMinZoom, Active: true},
		{Name: "cadastral_leasehold", DisplayName: "Cadastral Parcels (Leasehold)", Source: "cadastral-leasehold", Endpoint: "/parcels_leasehold", MinZoom: ParcelMinZoom, Active: true},
		{Name: "rzlt", DisplayName: "RZLT Sites", Source: "rzlt", Endpoint: "/rzlt", MinZoom: 0, Active: true},
		{Name: "dlr_planning_polygons", DisplayName: "Planning Applications (Areas)", Source: "dlr-planning-polygons", Endpoint: "/planning_apps", MinZoom: 13, Active: true},
		{Name: "dlr_planning_points", DisplayName: "Planning Applications (Points)", Source: "dlr-planning-points", Endpoint: "/planning_apps_points", MinZoom: 12, Active: true},
		{Name: "sold_properties", DisplayName: "Sold Properties", Source: "sold-properties", Endpoint: "/sold_properties", MinZoom: 13, Active: true},
		{Name: "census_small_areas", DisplayName: "Census Small Areas", Source: "census-small-areas", Endpoint: "/census_small_areas", MinZoom: 12, Active: false},
		{Name: "urban_areas", DisplayName: "Urban Areas", Source: "urban-areas", Endpoint: "/urban_areas", MinZoom: 0, Active: false},
	}
}

// FallbackCatalog is used when the backend layer list is unreachable.
func FallbackCatalog() []Layer {
	return []Layer{
		{Name: "cadastral_freehold", DisplayName: "Cadastral Parcels (Freehold)", Source: "cadastral-freehold", Endpoint: "/parcels", MinZoom: ParcelMinZoom, Active: true},
		{Name: "cadastral_leasehold", DisplayName: "Cadastral Parcels (Leasehold)", Source: "cadastral-leasehold", Endpoint: "/parcels_leasehold", MinZoom: ParcelMinZoom, Active: true},
	}
}

// MergeCatalog overlays backend layer metadata onto the default catalog.
// Backend entries with names the catalog doesn't know are ignored; endpoint
// and source wiring always come from the defaults.
func MergeCatalog(infos []api.LayerInfo) []Layer {
	defaults := DefaultCatalog()
	byName := make(map[string]int, len(defaults))
	for i, l := range defaults {
		byName[l.Name] = i
	}
	for _, info := range infos {
		i, ok := byName[info.Name]
		if !ok {
			continue
		}
		if info.DisplayName != "" {
			defaults[i].DisplayName = info.DisplayName
		}
		if info.MinZoom > 0 {
			defaults[i].MinZoom = info.MinZoom
		}
		defaults[i].Active = info.IsActive
	}
	return defaults
}

// ZoomHint is the status line shown whenever zoom changes. It is updated
// synchronously, independent of data loading.
func ZoomHint(zoom float64) string {
	level := strconv.FormatFloat(math.Round(zoom*10)/10, 'f', -1, 64)
	if zoom < ParcelMinZoom {
		return "Zoom in to see parcels (zoom " + strconv.Itoa(ParcelMinZoom) + "+) · Zoom: " + level
	}
	return "Zoom: " + level
}
