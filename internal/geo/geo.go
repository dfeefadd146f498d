// Package geo holds the small amount of spherical geometry the tour guide
// needs: great-circle distance, initial bearing, heading comparison and
// the "lon,lat;lon,lat" polyline encoding used by AMap.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EarthRadiusMeters is the mean Earth radius used for haversine distances.
const EarthRadiusMeters = 6371000.0

// metersPerDegreeLat is the approximate length of one degree of latitude.
const metersPerDegreeLat = 111320.0

// ErrInvalidCoordinate is returned when a coordinate string cannot be parsed
// or lies outside the valid latitude/longitude ranges.
var ErrInvalidCoordinate = errors.New("geo: invalid coordinate")

// Point is a WGS84/GCJ-02 position in decimal degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Valid reports whether p lies within the latitude/longitude ranges.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180 &&
		!math.IsNaN(p.Lat) && !math.IsNaN(p.Lon)
}

// LonLat formats p the way AMap expects ("lon,lat", 6 decimals).
func (p Point) LonLat() string {
	return strconv.FormatFloat(p.Lon, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat, 'f', 6, 64)
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

// Distance returns the haversine great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1, lat2 := toRad(a.Lat), toRad(b.Lat)
	dLat := lat2 - lat1
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Bearing returns the initial compass bearing from a to b in degrees [0, 360).
// 0 is north, 90 east.
func Bearing(a, b Point) float64 {
	lat1, lat2 := toRad(a.Lat), toRad(b.Lat)
	dLon := toRad(b.Lon - a.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return NormalizeHeading(toDeg(math.Atan2(y, x)))
}

// NormalizeHeading wraps any angle into [0, 360).
func NormalizeHeading(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// AngleDiff returns the absolute smallest difference between two headings, in [0, 180].
func AngleDiff(a, b float64) float64 {
	d := math.Abs(NormalizeHeading(a) - NormalizeHeading(b))
	if d > 180 {
		d = 360 - d
	}
	return d
}

// RelativeBearing returns the signed angle from heading to target in (-180, 180].
// Positive values are clockwise (to the right).
func RelativeBearing(heading, target float64) float64 {
	d := NormalizeHeading(target - heading)
	if d > 180 {
		d -= 360
	}
	return d
}

// Midpoint returns the great-circle midpoint of a and b.
func Midpoint(a, b Point) Point {
	lat1, lon1 := toRad(a.Lat), toRad(a.Lon)
	lat2 := toRad(b.Lat)
	dLon := toRad(b.Lon - a.Lon)

	bx := math.Cos(lat2) * math.Cos(dLon)
	by := math.Cos(lat2) * math.Sin(dLon)
	lat := math.Atan2(math.Sin(lat1)+math.Sin(lat2), math.Sqrt((math.Cos(lat1)+bx)*(math.Cos(lat1)+bx)+by*by))
	lon := lon1 + math.Atan2(by, math.Cos(lat1)+bx)
	return Point{Lat: toDeg(lat), Lon: math.Mod(toDeg(lon)+540, 360) - 180}
}

// BoundingBox is a lat/lon rectangle used to pre-filter rows in SQL before
// the exact haversine check.
type BoundingBox struct {
	MinLat, MaxLat, MinLon, MaxLon float64
}

// BoxAround returns a box that contains every point within radiusM of center.
func BoxAround(center Point, radiusM float64) BoundingBox {
	dLat := radiusM / metersPerDegreeLat
	cosLat := math.Cos(toRad(center.Lat))
	dLon := 180.0
	if cosLat > 1e-9 {
		dLon = math.Min(180, radiusM/(metersPerDegreeLat*cosLat))
	}
	return BoundingBox{
		MinLat: math.Max(-90, center.Lat-dLat),
		MaxLat: math.Min(90, center.Lat+dLat),
		MinLon: math.Max(-180, center.Lon-dLon),
		MaxLon: math.Min(180, center.Lon+dLon),
	}
}

// ParseLonLat parses an AMap "lon,lat" pair.
func ParseLonLat(s string) (Point, error) {
	lonStr, latStr, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return Point{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
	}
	p := Point{Lat: lat, Lon: lon}
	if !p.Valid() {
		return Point{}, fmt.Errorf("%w: %q out of range", ErrInvalidCoordinate, s)
	}
	return p, nil
}

// ParsePolyline parses "lon,lat;lon,lat;..." into points. Empty input yields nil.
func ParsePolyline(s string) ([]Point, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ";")
	points := make([]Point, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		p, err := ParseLonLat(part)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

// PathLength sums the haversine distance along consecutive points.
func PathLength(points []Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}
