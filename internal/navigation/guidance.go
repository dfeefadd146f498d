package navigation

import (
	"math"

	"github.com/nerrad567/citywalk-core/internal/geo"
	"github.com/nerrad567/citywalk-core/internal/route"
)

// Arrow maps the bearing to the next waypoint, relative to the device
// heading, onto one of four overlay arrows.
func Arrow(heading, bearing float64) string {
	rel := geo.RelativeBearing(heading, bearing)
	switch {
	case math.Abs(rel) <= 30:
		return ArrowForward
	case rel > 30 && rel <= 150:
		return ArrowRight
	case rel < -30 && rel >= -150:
		return ArrowLeft
	default:
		return ArrowBack
	}
}

// waypoints returns start, the end point of every step, and end. A
// single-step route gets its midpoint so the overlay always has a point
// between start and end.
func waypoints(start, end geo.Point, dir *route.Directions) []geo.Point {
	pts := []geo.Point{start}
	for _, st := range dir.Steps {
		line, err := geo.ParsePolyline(st.Polyline)
		if err != nil || len(line) == 0 {
			continue
		}
		last := line[len(line)-1]
		if geo.Distance(last, pts[len(pts)-1]) > 1 && geo.Distance(last, end) > 1 {
			pts = append(pts, last)
		}
	}
	if len(pts) == 1 {
		pts = append(pts, geo.Midpoint(start, end))
	}
	return append(pts, end)
}

// nextWaypoint returns the waypoint after the one nearest pos.
func nextWaypoint(wps []geo.Point, pos geo.Point) geo.Point {
	if len(wps) == 0 {
		return pos
	}
	nearest := 0
	best := math.Inf(1)
	for i, wp := range wps {
		if d := geo.Distance(pos, wp); d < best {
			nearest, best = i, d
		}
	}
	if nearest < len(wps)-1 {
		return wps[nearest+1]
	}
	return wps[nearest]
}

// nextInstruction returns the instruction of the step whose polyline
// passes nearest pos.
func nextInstruction(rt *Route, pos geo.Point) string {
	steps := rt.RouteData.Steps
	if len(steps) == 0 {
		return ""
	}
	idx := 0
	best := math.Inf(1)
	for i, st := range steps {
		line, err := geo.ParsePolyline(st.Polyline)
		if err != nil {
			continue
		}
		for _, p := range line {
			if d := geo.Distance(pos, p); d < best {
				idx, best = i, d
			}
		}
	}
	return steps[idx].Instruction
}

var compassNames = [8]string{"北", "东北", "东", "东南", "南", "西南", "西", "西北"}

func compassName(bearing float64) string {
	return compassNames[int(math.Round(geo.NormalizeHeading(bearing)/45))%8]
}
