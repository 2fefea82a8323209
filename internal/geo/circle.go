// Package geo provides the small amount of spherical geometry the map
// client needs: analysis-circle polygons and point-to-point distances.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

const earthRadiusM = 6371000

// Radius limits for the analysis circle, in metres.
const (
	MinRadiusM  = 100
	MaxRadiusM  = 2000
	RadiusStepM = 50
)

// DefaultCircleSteps is the number of bearing samples used when building a
// circle ring.
const DefaultCircleSteps = 64

// Circle builds a closed ring approximating a circle of radiusM metres
// around center, sampled at steps bearings. The ring has steps+1 points and
// the first and last points are identical. Uses an equirectangular
// small-angle approximation, which is plenty for radii under a few km.
func Circle(center orb.Point, radiusM float64, steps int) orb.Ring {
	if steps <= 0 {
		steps = DefaultCircleSteps
	}

	lat := center.Lat() * math.Pi / 180
	lng := center.Lon() * math.Pi / 180

	ring := make(orb.Ring, 0, steps+1)
	for i := 0; i < steps; i++ {
		angle := float64(i) / float64(steps) * 2 * math.Pi
		dx := radiusM * math.Cos(angle)
		dy := radiusM * math.Sin(angle)
		newLat := lat + dy/earthRadiusM
		newLng := lng + dx/(earthRadiusM*math.Cos(lat))
		ring = append(ring, orb.Point{newLng * 180 / math.Pi, newLat * 180 / math.Pi})
	}
	ring = append(ring, ring[0])
	return ring
}

// CircleFeatureCollection wraps Circle in a single-feature collection ready
// for a map surface.
func CircleFeatureCollection(center orb.Point, radiusM float64, steps int) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Polygon{Circle(center, radiusM, steps)}))
	return fc
}

// Distance returns the haversine distance between two points in metres.
func Distance(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b)
}

// ClampRadius limits a radius to [MinRadiusM, MaxRadiusM].
func ClampRadius(radiusM float64) float64 {
	if radiusM < MinRadiusM {
		return MinRadiusM
	}
	if radiusM > MaxRadiusM {
		return MaxRadiusM
	}
	return radiusM
}

// SnapRadius rounds a radius to the nearest RadiusStepM multiple.
func SnapRadius(radiusM float64) float64 {
	return math.Round(radiusM/RadiusStepM) * RadiusStepM
}
