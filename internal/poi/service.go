package poi

import (
	"context"
	"fmt"

	"github.com/nerrad567/citywalk-core/internal/geo"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/logging"
	"github.com/nerrad567/citywalk-core/internal/metrics"
)

// Service runs geo-ray hit tests against the cache with an optional
// external place source as fallback.
type Service struct {
	repo   Repository
	places PlaceSource
	logger *logging.Logger
}

// NewService creates a POI service. places may be nil.
func NewService(repo Repository, places PlaceSource, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, places: places, logger: logger.With("component", "poi")}
}

// Nearby returns the POI that best matches the device pose, or nil when
// nothing is in view. A failing place source degrades to a cache-only
// answer rather than an error.
func (s *Service) Nearby(ctx context.Context, q Query) (*Match, error) {
	cone := q.Cone()

	candidates, err := s.repo.InBox(ctx, cone.Box())
	if err != nil {
		return nil, err
	}
	if m := best(cone, candidates); m != nil {
		metrics.POIHitTests.WithLabelValues("cache").Inc()
		return m, nil
	}

	if s.places == nil {
		metrics.POIHitTests.WithLabelValues("no_match").Inc()
		return nil, nil
	}

	fetched, err := s.fetch(ctx, q, int(cone.Radius))
	if err != nil {
		s.logger.Warn("place search failed, using cache only", "error", err)
		metrics.POIHitTests.WithLabelValues("no_match").Inc()
		return nil, nil
	}
	if m := best(cone, fetched); m != nil {
		m.Fetched = true
		metrics.POIHitTests.WithLabelValues("fetched").Inc()
		return m, nil
	}
	metrics.POIHitTests.WithLabelValues("no_match").Inc()
	return nil, nil
}

// Create adds a manually curated POI.
func (s *Service) Create(ctx context.Context, p *POI) error {
	return s.repo.Create(ctx, p)
}

// Get returns a cached POI by ID.
func (s *Service) Get(ctx context.Context, id int64) (*POI, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) fetch(ctx context.Context, q Query, radius int) ([]POI, error) {
	center := q.Cone().Origin
	places, err := s.places.PlacesAround(ctx, center, radius)
	if err != nil {
		return nil, fmt.Errorf("searching places: %w", err)
	}

	pois := make([]POI, 0, len(places))
	for _, pl := range places {
		if pl.ExternalID == "" || !pl.Location.Valid() {
			continue
		}
		ext := pl.ExternalID
		pois = append(pois, POI{
			Name:       pl.Name,
			Lat:        pl.Location.Lat,
			Lon:        pl.Location.Lon,
			Address:    pl.Address,
			Source:     s.places.Source(),
			ExternalID: &ext,
			RawJSON:    pl.Raw,
		})
	}

	stored, err := s.repo.UpsertAll(ctx, pois)
	if err != nil {
		return nil, fmt.Errorf("caching places: %w", err)
	}
	s.logger.Debug("cached places", "count", len(stored), "lat", q.Lat, "lon", q.Lon)
	return stored, nil
}

func best(cone geo.Cone, candidates []POI) *Match {
	p, hit, ok := geo.BestInView(cone, candidates, POI.Point)
	if !ok {
		return nil
	}
	return &Match{POI: p, Hit: hit}
}
