package geo

import (
	"math"

	"github.com/parcelpal/internal/models"
)

// Marker kinds
const (
	MarkerSource      = "source"
	MarkerDestination = "destination"
	MarkerPartner     = "partner"
)

// Marker a labelled map pin
type Marker struct {
	Kind     string   `json:"kind"`
	Location Location `json:"location"`
}

// Bounds south-west / north-east corners
type Bounds struct {
	SouthWest Point `json:"south_west"`
	NorthEast Point `json:"north_east"`
}

// MapView everything a map component needs to draw one delivery
type MapView struct {
	Center     Point    `json:"center"`
	Markers    []Marker `json:"markers"`
	Route      []Point  `json:"route"`
	Bounds     *Bounds  `json:"bounds,omitempty"`
	DistanceKM float64  `json:"distance_km"`
}

// DeliverySource source location of a delivery row
func DeliverySource(d *models.Delivery) Location {
	return Location{Lat: d.SourceLat, Lng: d.SourceLng, Address: d.SourceAddress}
}

// DeliveryDestination destination location of a delivery row
func DeliveryDestination(d *models.Delivery) Location {
	return Location{Lat: d.DestinationLat, Lng: d.DestinationLng, Address: d.DestinationAddress}
}

// UserLocation last-known location of a profile
func UserLocation(u *models.User) (Location, bool) {
	if !u.HasLocation() {
		return Location{}, false
	}
	return Location{Lat: *u.CurrentLocationLat, Lng: *u.CurrentLocationLng}, true
}

// BuildDeliveryMap builds the map view of d. The route runs through the
// partner while the item is on its way; fallback centers an empty map.
func BuildDeliveryMap(d *models.Delivery, partner *Location, fallback Point) MapView {
	view := MapView{Center: fallback}
	if d == nil {
		return view
	}
	src := DeliverySource(d)
	dst := DeliveryDestination(d)
	view.DistanceKM = d.Distance
	view.Markers = append(view.Markers,
		Marker{Kind: MarkerSource, Location: src},
		Marker{Kind: MarkerDestination, Location: dst},
	)
	view.Route = []Point{src.Point()}
	if partner != nil && partner.Point().Valid() {
		view.Markers = append(view.Markers, Marker{Kind: MarkerPartner, Location: *partner})
		view.Route = append(view.Route, partner.Point())
	}
	view.Route = append(view.Route, dst.Point())

	b := boundsOf(view.Route)
	view.Bounds = &b
	view.Center = Point{
		Lat: (b.SouthWest.Lat + b.NorthEast.Lat) / 2,
		Lng: (b.SouthWest.Lng + b.NorthEast.Lng) / 2,
	}
	return view
}

func boundsOf(points []Point) Bounds {
	b := Bounds{
		SouthWest: Point{Lat: math.Inf(1), Lng: math.Inf(1)},
		NorthEast: Point{Lat: math.Inf(-1), Lng: math.Inf(-1)},
	}
	for _, p := range points {
		b.SouthWest.Lat = math.Min(b.SouthWest.Lat, p.Lat)
		b.SouthWest.Lng = math.Min(b.SouthWest.Lng, p.Lng)
		b.NorthEast.Lat = math.Max(b.NorthEast.Lat, p.Lat)
		b.NorthEast.Lng = math.Max(b.NorthEast.Lng, p.Lng)
	}
	return b
}
