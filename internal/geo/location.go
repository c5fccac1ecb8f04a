package geo

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Location normalized shape rendered by map markers
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// Point drops the address
func (l Location) Point() Point {
	return Point{Lat: l.Lat, Lng: l.Lng}
}

var latKeys = []string{"lat", "latitude"}
var lngKeys = []string{"lng", "lon", "long", "longitude"}

// NormalizeLocation translates raw row fields into a Location.
// prefix selects row columns such as "source" (source_lat/source_lng/source_address)
// or "current_location"; an empty prefix reads lat/lng style keys.
func NormalizeLocation(raw map[string]interface{}, prefix string) (Location, bool) {
	if raw == nil {
		return Location{}, false
	}
	if prefix != "" {
		if nested, ok := raw[prefix].(map[string]interface{}); ok {
			return NormalizeLocation(nested, "")
		}
	}
	lat, okLat := lookupFloat(raw, prefixed(prefix, latKeys))
	lng, okLng := lookupFloat(raw, prefixed(prefix, lngKeys))
	if !okLat || !okLng {
		return Location{}, false
	}
	loc := Location{Lat: lat, Lng: lng}
	if !loc.Point().Valid() {
		return Location{}, false
	}
	for _, key := range prefixed(prefix, []string{"address", "display_name"}) {
		if s, ok := raw[key].(string); ok && strings.TrimSpace(s) != "" {
			loc.Address = strings.TrimSpace(s)
			break
		}
	}
	return loc, true
}

func prefixed(prefix string, keys []string) []string {
	if prefix == "" {
		return keys
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, prefix+"_"+k)
	}
	return out
}

func lookupFloat(raw map[string]interface{}, keys []string) (float64, bool) {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case float32:
			return float64(n), true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case *float64:
			if n != nil {
				return *n, true
			}
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f, true
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
