package navigation

import (
	"context"
	"fmt"
	"math"

	"github.com/nerrad567/citywalk-core/internal/geo"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/logging"
	"github.com/nerrad567/citywalk-core/internal/metrics"
	"github.com/nerrad567/citywalk-core/internal/route"
)

// ProviderStraightLine marks routes planned without a directions provider.
const ProviderStraightLine = "straight-line"

// Config holds navigation tuning.
type Config struct {
	WalkingSpeedMPS float64
	ArrivalRadiusM  float64
}

// Service runs navigation sessions.
type Service struct {
	repo    Repository
	planner route.Planner
	cfg     Config
	logger  *logging.Logger
}

// NewService creates a navigation service. planner may be nil.
func NewService(repo Repository, planner route.Planner, cfg Config, logger *logging.Logger) *Service {
	if cfg.WalkingSpeedMPS <= 0 {
		cfg.WalkingSpeedMPS = 1.2
	}
	if cfg.ArrivalRadiusM <= 0 {
		cfg.ArrivalRadiusM = 20
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, planner: planner, cfg: cfg, logger: logger.With("component", "navigation")}
}

// Start plans a route and opens a session.
func (s *Service) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	if req.RouteType == "" {
		req.RouteType = route.TypeWalking
	}

	dir := s.plan(ctx, req.Start, req.End, req.RouteType)
	rt := &Route{
		RouteName:            fmt.Sprintf("%s -> %s", req.Start.LonLat(), req.End.LonLat()),
		Start:                req.Start,
		End:                  req.End,
		RouteType:            req.RouteType,
		DistanceMeters:       int64(math.Round(dir.Distance)),
		EstimatedTimeSeconds: int64(math.Round(dir.Duration)),
		RouteData:            *dir,
		Waypoints:            waypoints(req.Start, req.End, dir),
		IsAccessible:         true,
	}
	if err := s.repo.CreateRoute(ctx, rt); err != nil {
		return nil, err
	}

	sess := &Session{
		UserID:     req.UserID,
		Start:      req.Start,
		End:        req.End,
		RouteID:    rt.ID,
		RouteType:  req.RouteType,
		DeviceInfo: req.DeviceInfo,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	metrics.ActiveNavigationSessions.Inc()

	s.logger.Info("navigation started",
		"session_id", sess.ID, "route_id", rt.ID, "provider", dir.Provider,
		"distance_m", rt.DistanceMeters)

	return &StartResult{
		SessionID:     sess.ID,
		RouteID:       rt.ID,
		StartPoint:    req.Start,
		EndPoint:      req.End,
		RouteType:     req.RouteType,
		TotalDistance: rt.DistanceMeters,
		EstimatedTime: rt.EstimatedTimeSeconds,
		Waypoints:     rt.Waypoints,
		Provider:      dir.Provider,
	}, nil
}

// Route returns the current state of a session.
func (s *Service) Route(ctx context.Context, sessionID int64) (*RouteStatus, error) {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	rt, err := s.repo.GetRoute(ctx, sess.RouteID)
	if err != nil {
		return nil, err
	}

	remaining := geo.Distance(sess.Current, sess.End)
	return &RouteStatus{
		SessionID:             sess.ID,
		CurrentPosition:       sess.Current,
		Heading:               sess.Pose.Heading,
		NextInstruction:       nextInstruction(rt, sess.Current),
		DistanceToDestination: math.Round(remaining),
		EstimatedTime:         int64(math.Round(remaining / s.cfg.WalkingSpeedMPS)),
		IsActive:              sess.IsActive,
	}, nil
}

// RestoreActiveGauge sets the active-session gauge from the database so
// sessions left open by a previous run are counted.
func (s *Service) RestoreActiveGauge(ctx context.Context) error {
	n, err := s.repo.CountActive(ctx)
	if err != nil {
		return err
	}
	metrics.ActiveNavigationSessions.Set(float64(n))
	if n > 0 {
		s.logger.Info("navigation sessions still active", "count", n)
	}
	return nil
}

// CheckOwner returns ErrSessionNotFound unless userID started the session.
// An empty userID skips the check.
func (s *Service) CheckOwner(ctx context.Context, sessionID int64, userID string) error {
	if userID == "" {
		return nil
	}
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.UserID != userID {
		return ErrSessionNotFound
	}
	return nil
}

// Update stores a new device position and returns guidance for it.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (*Instruction, error) {
	if err := s.CheckOwner(ctx, req.SessionID, req.UserID); err != nil {
		return nil, err
	}
	sess, err := s.repo.UpdatePosition(ctx, req.SessionID, req.Position, req.Pose)
	if err != nil {
		return nil, err
	}
	rt, err := s.repo.GetRoute(ctx, sess.RouteID)
	if err != nil {
		return nil, err
	}

	remaining := geo.Distance(req.Position, sess.End)
	next := nextWaypoint(rt.Waypoints, req.Position)
	arrived := remaining <= s.cfg.ArrivalRadiusM

	return &Instruction{
		SessionID:             sess.ID,
		CurrentPosition:       req.Position,
		Heading:               req.Pose.Heading,
		NextInstruction:       nextInstruction(rt, req.Position),
		DistanceToNext:        math.Round(geo.Distance(req.Position, next)),
		DistanceToDestination: math.Round(remaining),
		ArrowDirection:        Arrow(req.Pose.Heading, geo.Bearing(req.Position, next)),
		Arrived:               arrived,
	}, nil
}

// End closes a session and records its history.
func (s *Service) End(ctx context.Context, req EndRequest) (*History, error) {
	// Read the route before the transaction: the pool has one connection.
	sess, err := s.repo.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if req.UserID != "" && sess.UserID != req.UserID {
		return nil, ErrSessionNotFound
	}
	if !sess.IsActive {
		return nil, ErrSessionEnded
	}
	var total *int64
	if rt, err := s.repo.GetRoute(ctx, sess.RouteID); err == nil {
		total = &rt.DistanceMeters
	}

	h, err := s.repo.EndSession(ctx, req.SessionID, func(sess *Session) History {
		status := StatusAbandoned
		if geo.Distance(sess.Current, sess.End) <= s.cfg.ArrivalRadiusM {
			status = StatusCompleted
		}
		duration := int64(sess.EndedAt.Sub(sess.StartedAt).Seconds())
		if duration < 0 {
			duration = 0
		}

		h := History{
			NavigationPoints:      []geo.Point{sess.Start, sess.Current},
			TotalDistanceMeters:   total,
			ActualDurationSeconds: &duration,
			UserRating:            req.Rating,
			UserFeedback:          req.Feedback,
			CompletionStatus:      status,
		}
		if sess.RouteID != 0 {
			routeID := sess.RouteID
			h.RouteID = &routeID
		}
		return h
	})
	if err != nil {
		return nil, err
	}
	metrics.ActiveNavigationSessions.Dec()

	s.logger.Info("navigation ended",
		"session_id", h.SessionID, "status", h.CompletionStatus)
	return h, nil
}

// History returns a user's finished navigations, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]History, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListHistory(ctx, userID, limit)
}

// plan asks the provider for directions, falling back to a straight line.
func (s *Service) plan(ctx context.Context, start, end geo.Point, routeType string) *route.Directions {
	if s.planner != nil {
		dir, err := s.planner.Directions(ctx, start.LonLat(), end.LonLat(), routeType)
		if err == nil && dir != nil {
			return dir
		}
		s.logger.Warn("directions provider failed, using straight line", "error", err)
	}
	return s.straightLine(start, end)
}

func (s *Service) straightLine(start, end geo.Point) *route.Directions {
	dist := geo.Distance(start, end)
	return &route.Directions{
		Provider: ProviderStraightLine,
		Distance: math.Round(dist),
		Duration: math.Round(dist / s.cfg.WalkingSpeedMPS),
		Steps: []route.Step{{
			Instruction: fmt.Sprintf("向%s步行%.0f米", compassName(geo.Bearing(start, end)), dist),
			Polyline:    start.LonLat() + ";" + end.LonLat(),
			Distance:    math.Round(dist),
		}},
	}
}
