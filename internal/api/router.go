package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// recognizePath is the multipart upload route; it gets the larger body limit.
const recognizePath = "/api/ar/building/recognize"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.corsMiddleware())
	r.Use(s.bodySizeLimitMiddleware)
	if s.secCfg.RateLimit.Enabled && s.secCfg.RateLimit.RequestsPerMinute > 0 {
		r.Use(httprate.Limit(
			s.secCfg.RateLimit.RequestsPerMinute,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
				writeError(w, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded")
			}),
		))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// Exchanges a client API key for a bearer token.
		r.Post("/auth/token", s.handleIssueToken)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/auth/ws-ticket", s.handleWSTicket)
			r.Get("/audit", s.handleListAuditLogs)
		})
	})

	// Endpoints used by the mobile client.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/add.json", s.handleCreateConversation)
			r.Post("/addChat.json", s.handleAddChat)
			r.Get("/list.json", s.handleListConversations)
			r.Get("/chatList.json", s.handleListChats)
			r.Get("/get.json", s.handleGetConversation)
			r.Post("/delete.json", s.handleDeleteConversation)
		})

		r.Post("/route-locations/save.json", s.handleSaveRoutePlan)
		r.Get("/route-locations/get.json", s.handleGetRoutePlan)
		r.Post("/route-segments/get.json", s.handleGetRouteSegment)

		r.Post("/ar/session/start", s.handleStartARSession)
		r.Post("/ar/session/end", s.handleEndARSession)
		r.Post("/ar/scan/feedback", s.handleScanFeedback)
		r.Get("/poi/nearby", s.handleNearbyPOI)

		r.Route("/api/ar", func(r chi.Router) {
			r.Post("/pois", s.handleCreatePOI)
			r.Get("/pois/{id}", s.handleGetPOI)

			r.Post("/buildings", s.handleCreateBuilding)
			r.Get("/buildings/nearby", s.handleNearbyBuildings)
			r.Route("/building/{id}", func(r chi.Router) {
				r.Get("/info", s.handleGetBuilding)
				r.Put("/", s.handleUpdateBuilding)
				r.Delete("/", s.handleDeleteBuilding)
				r.Get("/landmarks", s.handleListLandmarks)
				r.Post("/landmarks", s.handleCreateLandmark)
				r.Get("/features", s.handleListFeatures)
				r.Post("/features", s.handleCreateFeature)
			})

			r.Route("/navigation", func(r chi.Router) {
				r.Post("/start", s.handleStartNavigation)
				r.Get("/route/{session_id}", s.handleNavigationRoute)
				r.Post("/update", s.handleUpdateNavigation)
				r.Post("/end", s.handleEndNavigation)
				r.Get("/history", s.handleNavigationHistory)
			})

			r.Post("/building/recognize", s.handleRecognizeBuilding)
			r.Post("/recognition/{id}/feedback", s.handleRecognitionFeedback)
			r.Get("/recognition/history", s.handleRecognitionHistory)

			r.Get("/preferences/{user_id}", s.handleGetPreferences)
			r.Post("/preferences/{user_id}", s.handleUpdatePreferences)

			r.Get("/models", s.handleListModels)
			r.Post("/models", s.handleRegisterModel)
			r.Post("/models/{id}/activate", s.handleActivateModel)
		})
	})

	return r
}

// handleHealth reports server health. The database is checked when present.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := map[string]string{}
	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err != nil {
			status = "degraded"
			checks["database"] = err.Error()
		} else {
			checks["database"] = "ok"
		}
	}
	if s.mqtt != nil {
		checks["mqtt"] = connState(s.mqtt.IsConnected())
	}
	if s.influx != nil {
		checks["influxdb"] = connState(s.influx.IsConnected())
	}

	code, result := http.StatusOK, CodeSuccess
	if status != "ok" {
		code, result = http.StatusServiceUnavailable, CodeUnavailable
	}
	writeJSON(w, code, CommonResp{
		Success:    status == "ok",
		ResultCode: result,
		Data: map[string]any{
			"status":  status,
			"version": s.version,
			"checks":  checks,
		},
	})
}

func connState(ok bool) string {
	if ok {
		return "connected"
	}
	return "disconnected"
}
