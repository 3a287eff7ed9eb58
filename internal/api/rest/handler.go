// Package rest exposes cost prediction and model optimization over JSON/HTTP.
package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"costguardian/internal/domain/catalog"
	"costguardian/internal/domain/optimization"
	"costguardian/internal/domain/performance"
	"costguardian/internal/domain/prediction"
	"costguardian/internal/domain/usage"
	"costguardian/pkg/errors"
	"costguardian/pkg/logger"
)

// Caller identity is asserted by the gateway in front of this service
const (
	HeaderUserID         = "X-User-ID"
	HeaderOrganizationID = "X-Organization-ID"
)

// Predictor forecasts spend and audits past forecasts
type Predictor interface {
	Predict(ctx context.Context, subject usage.Subject, period prediction.Period, lookbackDays int) (*prediction.Result, error)
	PredictionAccuracy(ctx context.Context, subject usage.Subject) (*prediction.AccuracyReport, error)
}

// Optimizer ranks models and learns from outcomes
type Optimizer interface {
	SelectOptimalModel(ctx context.Context, req catalog.TaskRequirements, userID string, availableProviders []string) ([]optimization.ModelScore, error)
	OptimizeForCost(req catalog.TaskRequirements, qualityThreshold float64) ([]optimization.ModelScore, error)
	BuildFallbackChain(primary string, req catalog.TaskRequirements) ([]string, error)
	TrackModelPerformance(ctx context.Context, userID, model string, task catalog.TaskType, outcome performance.Outcome) error
	PersonalizedRecommendations(ctx context.Context, userID string, task catalog.TaskType) ([]optimization.Recommendation, error)
}

// Handler serves the /v1 API
type Handler struct {
	predictor Predictor
	optimizer Optimizer
	timeout   time.Duration
	log       *logger.Logger
}

// NewHandler creates the REST handler. timeout bounds each request; zero disables it.
func NewHandler(predictor Predictor, optimizer Optimizer, timeout time.Duration, log *logger.Logger) *Handler {
	return &Handler{
		predictor: predictor,
		optimizer: optimizer,
		timeout:   timeout,
		log:       log.With("component", "rest_api"),
	}
}

// Register mounts all routes on mux
func (h *Handler) Register(mux *http.ServeMux) {
	h.route(mux, "POST /v1/predictions", h.handlePredict)
	h.route(mux, "GET /v1/predictions/accuracy", h.handleAccuracy)
	h.route(mux, "POST /v1/models/select", h.handleSelect)
	h.route(mux, "POST /v1/models/cost-optimized", h.handleCostOptimized)
	h.route(mux, "POST /v1/models/fallback-chain", h.handleFallbackChain)
	h.route(mux, "POST /v1/models/performance", h.handleTrackPerformance)
	h.route(mux, "GET /v1/models/recommendations", h.handleRecommendations)
	h.route(mux, "GET /v1/models/catalog", h.handleCatalog)
}

func (h *Handler) route(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.Handle(pattern, instrument(pattern, h.timeout, h.log, fn))
}

func subjectFrom(r *http.Request) (usage.Subject, error) {
	s := usage.Subject{
		UserID:         r.Header.Get(HeaderUserID),
		OrganizationID: r.Header.Get(HeaderOrganizationID),
	}
	return s, s.Validate()
}

func userFrom(r *http.Request) (string, error) {
	id := r.Header.Get(HeaderUserID)
	if id == "" {
		return "", errors.NewValidationError("userId", "the "+HeaderUserID+" header is required", id)
	}
	return id, nil
}

func decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Mark(errors.ErrInvalidInput, err, "malformed request body")
	}
	return nil
}

type predictRequest struct {
	Period       prediction.Period `json:"period"`
	LookbackDays int               `json:"lookbackDays,omitempty"`
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	subject, err := subjectFrom(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var req predictRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if req.Period == "" {
		req.Period = prediction.PeriodMonthly
	}

	result, err := h.predictor.Predict(r.Context(), subject, req.Period, req.LookbackDays)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleAccuracy(w http.ResponseWriter, r *http.Request) {
	subject, err := subjectFrom(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	report, err := h.predictor.PredictionAccuracy(r.Context(), subject)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type selectRequest struct {
	Requirements catalog.TaskRequirements `json:"requirements"`
	Providers    []string                 `json:"providers,omitempty"`
}

type scoresResponse struct {
	Models []optimization.ModelScore `json:"models"`
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	// Anonymous callers get catalog-only ranking
	userID := r.Header.Get(HeaderUserID)

	scores, err := h.optimizer.SelectOptimalModel(r.Context(), req.Requirements, userID, req.Providers)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, scoresResponse{Models: scores})
}

type costOptimizedRequest struct {
	Requirements     catalog.TaskRequirements `json:"requirements"`
	QualityThreshold float64                  `json:"qualityThreshold,omitempty"`
}

func (h *Handler) handleCostOptimized(w http.ResponseWriter, r *http.Request) {
	var req costOptimizedRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	scores, err := h.optimizer.OptimizeForCost(req.Requirements, req.QualityThreshold)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, scoresResponse{Models: scores})
}

type fallbackChainRequest struct {
	Primary      string                   `json:"primary"`
	Requirements catalog.TaskRequirements `json:"requirements"`
}

type fallbackChainResponse struct {
	Chain []string `json:"chain"`
}

func (h *Handler) handleFallbackChain(w http.ResponseWriter, r *http.Request) {
	var req fallbackChainRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	chain, err := h.optimizer.BuildFallbackChain(req.Primary, req.Requirements)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, fallbackChainResponse{Chain: chain})
}

type trackRequest struct {
	Model    string              `json:"model"`
	TaskType catalog.TaskType    `json:"taskType"`
	Outcome  performance.Outcome `json:"outcome"`
}

func (h *Handler) handleTrackPerformance(w http.ResponseWriter, r *http.Request) {
	userID, err := userFrom(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var req trackRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	if err := h.optimizer.TrackModelPerformance(r.Context(), userID, req.Model, req.TaskType, req.Outcome); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type recommendationsResponse struct {
	Recommendations []optimization.Recommendation `json:"recommendations"`
}

func (h *Handler) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, err := userFrom(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	task := catalog.TaskType(r.URL.Query().Get("taskType"))
	if task == "" {
		task = catalog.TaskChat
	}
	if !task.IsValid() {
		writeError(w, h.log, errors.NewValidationError("taskType", "unsupported task type", task))
		return
	}

	recs, err := h.optimizer.PersonalizedRecommendations(r.Context(), userID, task)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if recs == nil {
		recs = []optimization.Recommendation{}
	}
	writeJSON(w, http.StatusOK, recommendationsResponse{Recommendations: recs})
}

// CatalogProvider exposes the loaded model catalog
type CatalogProvider interface {
	Catalog() *catalog.Catalog
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cp, ok := h.optimizer.(CatalogProvider)
	if !ok {
		writeError(w, h.log, errors.Wrap(errors.ErrNotFound, "catalog not exposed"))
		return
	}
	writeJSON(w, http.StatusOK, cp.Catalog())
}
