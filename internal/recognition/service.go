package recognition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/nerrad567/citywalk-core/internal/building"
	"github.com/nerrad567/citywalk-core/internal/geo"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/logging"
	"github.com/nerrad567/citywalk-core/internal/metrics"
)

// Geo-ray fallback cone.
const (
	fallbackFOV    = 60
	fallbackRadius = 300
)

// Recognizer classifies a camera frame. Implementations live outside this
// package; a nil Recognizer selects the geo-ray fallback.
type Recognizer interface {
	Recognize(ctx context.Context, in Input) (*Result, error)
}

// Buildings is the subset of building.Repository the service needs.
type Buildings interface {
	Get(ctx context.Context, id int64) (*building.Building, error)
	InBox(ctx context.Context, box geo.BoundingBox) ([]building.Building, error)
}

// Service runs recognitions and manages model versions.
type Service struct {
	repo         Repository
	buildings    Buildings
	recognizer   Recognizer
	modelVersion string
	logger       *logging.Logger
}

// NewService creates a recognition service. recognizer may be nil.
// defaultModel is sent to the recognizer when no landmark model is active.
func NewService(repo Repository, buildings Buildings, recognizer Recognizer, defaultModel string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:         repo,
		buildings:    buildings,
		recognizer:   recognizer,
		modelVersion: defaultModel,
		logger:       logger.With("component", "recognition"),
	}
}

// Recognize identifies the building in req.Image and logs the attempt.
// An Outcome without a building is returned when nothing matched.
func (s *Service) Recognize(ctx context.Context, req Request) (*Outcome, error) {
	if len(req.Image.Data) == 0 {
		return nil, ErrEmptyImage
	}
	if len(req.Image.Data) > MaxImageBytes {
		return nil, ErrImageTooLarge
	}
	if req.UserID == "" {
		req.UserID = DefaultUserID
	}

	started := time.Now()
	method := MethodVision
	var res *Result
	var err error
	if s.recognizer != nil {
		res, err = s.recognizer.Recognize(ctx, Input{
			Image:        req.Image,
			Pose:         req.Pose,
			ModelVersion: s.activeVersion(ctx),
		})
		if err != nil {
			metrics.RecognitionsTotal.WithLabelValues(method, "error").Inc()
			return nil, fmt.Errorf("%w: %w", ErrRecognizerFailed, err)
		}
	} else {
		method = MethodGeoRay
		if res, err = s.geoRay(ctx, req.Pose); err != nil {
			return nil, err
		}
	}
	elapsed := time.Since(started).Milliseconds()

	entry := &Log{
		SessionID:            req.SessionID,
		UserID:               req.UserID,
		ImageSHA256:          req.Image.SHA256(),
		RecognizedBuildingID: res.BuildingID,
		RecognitionMethod:    method,
		ProcessingTimeMs:     elapsed,
		DeviceOrientation: map[string]any{
			"latitude":  req.Pose.Position.Lat,
			"longitude": req.Pose.Position.Lon,
			"heading":   req.Pose.Heading,
		},
		LightingConditions: req.LightingConditions,
		WeatherConditions:  req.WeatherConditions,
		RecognitionResult:  resultMap(res),
	}
	if res.BuildingID != nil {
		conf := res.Confidence
		entry.ConfidenceScore = &conf
	}
	if err := s.repo.CreateLog(ctx, entry); err != nil {
		return nil, err
	}

	out := &Outcome{
		RecognitionID:    entry.ID,
		Method:           method,
		BuildingID:       res.BuildingID,
		BuildingName:     res.BuildingName,
		Confidence:       res.Confidence,
		ModelVersion:     res.ModelVersion,
		ProcessingTimeMs: elapsed,
	}
	if res.BuildingID != nil {
		b, err := s.buildings.Get(ctx, *res.BuildingID)
		switch {
		case err == nil:
			out.Building = b
			if out.BuildingName == "" {
				out.BuildingName = b.Name
			}
		case errors.Is(err, building.ErrBuildingNotFound):
			s.logger.Warn("recognizer returned unknown building", "building_id", *res.BuildingID)
		default:
			return nil, err
		}
	}

	result := "match"
	if !out.Matched() {
		result = "no_match"
	}
	metrics.RecognitionsTotal.WithLabelValues(method, result).Inc()
	s.logger.Debug("recognition done",
		"recognition_id", out.RecognitionID, "method", method, "result", result,
		"confidence", out.Confidence, "elapsed_ms", elapsed)
	return out, nil
}

// Feedback records the user's verdict on a recognition.
func (s *Service) Feedback(ctx context.Context, id int64, isCorrect bool, feedback *string) (*Log, error) {
	if err := s.repo.SetFeedback(ctx, id, isCorrect, feedback); err != nil {
		return nil, err
	}
	return s.repo.GetLog(ctx, id)
}

// History returns a user's recognition attempts, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]Log, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListLogs(ctx, userID, limit)
}

// Models lists model versions; task may be empty.
func (s *Service) Models(ctx context.Context, task string) ([]ModelVersion, error) {
	if task != "" && !ValidTask(task) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTask, task)
	}
	return s.repo.ListModels(ctx, task)
}

// RegisterModel adds an inactive model version.
func (s *Service) RegisterModel(ctx context.Context, m *ModelVersion) error {
	return s.repo.CreateModel(ctx, m)
}

// ActivateModel makes a version the only active one for its task.
func (s *Service) ActivateModel(ctx context.Context, id int64) (*ModelVersion, error) {
	m, err := s.repo.ActivateModel(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("model activated", "task", m.Task, "name", m.Name, "version", m.Version)
	return m, nil
}

func (s *Service) activeVersion(ctx context.Context) string {
	m, err := s.repo.ActiveModel(ctx, TaskLandmarkCls)
	if err != nil {
		if !errors.Is(err, ErrModelNotFound) {
			s.logger.Warn("reading active model failed", "error", err)
		}
		return s.modelVersion
	}
	return m.Version
}

// geoRay picks the best-scoring building in front of the device.
func (s *Service) geoRay(ctx context.Context, pose Pose) (*Result, error) {
	cone := geo.Cone{
		Origin:  pose.Position,
		Heading: geo.NormalizeHeading(pose.Heading),
		FOV:     fallbackFOV,
		Radius:  fallbackRadius,
	}
	candidates, err := s.buildings.InBox(ctx, cone.Box())
	if err != nil {
		return nil, err
	}
	b, hit, ok := geo.BestInView(cone, candidates, building.Building.Point)
	if !ok {
		return &Result{}, nil
	}

	raw, err := json.Marshal(hit)
	if err != nil {
		return nil, fmt.Errorf("encoding hit: %w", err)
	}
	id := b.ID
	return &Result{
		BuildingID:   &id,
		BuildingName: b.Name,
		Confidence:   hit.Confidence,
		Raw:          raw,
	}, nil
}

func resultMap(res *Result) map[string]any {
	m := map[string]any{
		"building_id":   res.BuildingID,
		"building_name": res.BuildingName,
		"confidence":    res.Confidence,
	}
	if res.ModelVersion != "" {
		m["model_version"] = res.ModelVersion
	}
	if len(res.Raw) > 0 {
		m["raw"] = res.Raw
	}
	return m
}
