package route

import (
	"context"
	"fmt"

	"github.com/nerrad567/citywalk-core/internal/infrastructure/logging"
	"github.com/nerrad567/citywalk-core/internal/validation"
)

// Service resolves plan segments into directions.
type Service struct {
	repo    Repository
	planner Planner
	logger  *logging.Logger
}

// NewService creates a segment service. planner may be nil, in which case
// segments are returned without route data.
func NewService(repo Repository, planner Planner, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, planner: planner, logger: logger.With("component", "route")}
}

// Segment returns leg index of the conversation's latest plan.
func (s *Service) Segment(ctx context.Context, conversationID int64, index int) (*Segment, error) {
	plan, err := s.repo.Latest(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	stops := validation.SplitStops(plan.Locations)
	if index < 0 || index >= len(stops)-1 {
		return nil, ErrSegmentOutOfRange
	}

	seg := &Segment{
		SegmentIndex:  index,
		FromLocation:  stops[index],
		ToLocation:    stops[index+1],
		IsLastSegment: index == len(stops)-2,
	}
	if s.planner == nil {
		return seg, nil
	}

	dir, err := s.planner.Directions(ctx, seg.FromLocation, seg.ToLocation, plan.RouteType)
	if err != nil {
		s.logger.Warn("directions lookup failed",
			"conversation_id", conversationID, "segment", index, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPlannerFailed, err)
	}
	seg.RouteData = dir
	return seg, nil
}
