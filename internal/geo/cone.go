package geo

// Scoring weights for targets inside a view cone.
const (
	angleWeight    = 0.6
	distanceWeight = 0.4
)

// Cone is the horizontal field of view of a device camera: everything
// within Radius meters of Origin whose bearing is within FOV/2 of Heading.
type Cone struct {
	Origin  Point
	Heading float64 // degrees, 0 = north
	FOV     float64 // full opening angle in degrees
	Radius  float64 // meters
}

// Hit describes where a target sits inside a cone.
type Hit struct {
	DistanceM  float64 `json:"distanceM"`
	AngleDeg   float64 `json:"angleDeg"`
	Confidence float64 `json:"confidence"`
}

// Box returns the bounding box that contains the whole cone.
func (c Cone) Box() BoundingBox {
	return BoxAround(c.Origin, c.Radius)
}

// Test reports whether p lies inside the cone and, if so, how well it
// matches. Targets on the heading axis score higher than those at the edge,
// and nearer targets score higher than distant ones.
func (c Cone) Test(p Point) (Hit, bool) {
	if c.Radius <= 0 || c.FOV <= 0 {
		return Hit{}, false
	}
	dist := Distance(c.Origin, p)
	if dist > c.Radius {
		return Hit{}, false
	}

	half := c.FOV / 2
	angle := 0.0
	// A target at the device position is straight ahead by definition.
	if dist > 0 {
		angle = AngleDiff(Bearing(c.Origin, p), c.Heading)
	}
	if angle > half {
		return Hit{}, false
	}

	score := angleWeight*(1-angle/half) + distanceWeight*(1-dist/c.Radius)
	return Hit{DistanceM: dist, AngleDeg: angle, Confidence: clamp01(score)}, true
}

// BestInView returns the highest-scoring item inside the cone. Ties go to
// the nearer item. ok is false when nothing is in view.
func BestInView[T any](c Cone, items []T, pos func(T) Point) (best T, hit Hit, ok bool) {
	for _, item := range items {
		h, in := c.Test(pos(item))
		if !in {
			continue
		}
		if !ok || better(h, hit) {
			best, hit, ok = item, h, true
		}
	}
	return best, hit, ok
}

// better reports whether candidate outranks current: higher confidence
// first, then shorter distance. Full ties keep current.
func better(candidate, current Hit) bool {
	if candidate.Confidence != current.Confidence {
		return candidate.Confidence > current.Confidence
	}
	return candidate.DistanceM < current.DistanceM
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
