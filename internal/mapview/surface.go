// Package mapview defines the capability the map rendering library exposes
// to the controllers. The controllers never touch a concrete map engine;
// they drive this interface and the host application binds it to whatever
// renders tiles (MapLibre in the original frontend, a recorder in tests and
// the CLI).
package mapview

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Marker is one ranked-result pin on the map.
type Marker struct {
	ID      string
	Rank    int
	Point   orb.Point
	Primary bool // rank 1 is rendered distinguished
	Label   string
}

// Surface is the map capability port.
type Surface interface {
	// SetLayerData replaces a source's rendered feature collection.
	SetLayerData(source string, fc *geojson.FeatureCollection)

	// SetHighlightFilter makes a layer's highlight sublayer match exactly
	// one feature id. ClearHighlightFilter resets it to match nothing.
	SetHighlightFilter(layer string, featureID int64)
	ClearHighlightFilter(layer string)

	// SetLayerVisibility toggles all of a layer's render primitives.
	SetLayerVisibility(layer string, visible bool)

	FlyTo(center orb.Point, zoom float64)
	FitBounds(b orb.Bound, padding float64, maxZoom float64)

	SetMarkers(markers []Marker)
	ClearMarkers()

	SetCursor(cursor string)
	SetDragPan(enabled bool)
}

// EmptyCollection is the payload used to clear a layer.
func EmptyCollection() *geojson.FeatureCollection {
	return geojson.NewFeatureCollection()
}
