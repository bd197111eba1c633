package triage

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/athishkirthikjd/MedTech-AI/internal/platform/auth"
	"github.com/athishkirthikjd/MedTech-AI/internal/platform/middleware"
)

// PatientProfile carries the profile fields merged into a symptom
// check when the request omits them.
type PatientProfile struct {
	Age                *int
	ChronicConditions  []string
	CurrentMedications []string
}

// ProfileSource resolves the requesting user's patient profile for
// context merging. Implemented by the identity service; a nil source
// disables merging.
type ProfileSource interface {
	PatientProfileByUser(ctx context.Context, userID string) (*PatientProfile, error)
}

type Handler struct {
	svc      *Service
	profiles ProfileSource
}

// NewHandler builds the AI assistant handler. profiles may be nil.
func NewHandler(svc *Service, profiles ProfileSource) *Handler {
	return &Handler{svc: svc, profiles: profiles}
}

func (h *Handler) RegisterRoutes(api *echo.Group, public *echo.Group) {
	g := api.Group("/ai")
	g.POST("/symptom-check", h.CheckSymptoms)
	g.POST("/chat", h.Chat)

	// Health is unauthenticated so monitors can probe AI availability.
	public.GET("/ai/health", h.Health)
}

// CheckSymptoms runs an AI symptom assessment with safety overrides.
// Context fields missing from the request are filled from the caller's
// patient profile when one exists.
func (h *Handler) CheckSymptoms(c echo.Context) error {
	var req SymptomCheckRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.SymptomText = middleware.SanitizeString(req.SymptomText)

	h.mergeProfile(c, &req)

	assessment, err := h.svc.Classify(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, assessment)
}

// Health reports AI backend availability and model configuration.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"ai_available": h.svc.Available(),
		"model_info":   h.svc.ModelInfo(),
	})
}

// Chat handles general health questions outside the triage flow.
func (h *Handler) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Message = middleware.SanitizeString(req.Message)
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if !h.svc.Available() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "AI service temporarily unavailable")
	}

	reply, err := h.svc.Chat(c.Request().Context(), req.Message)
	if err != nil || reply == "" {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate response")
	}
	return c.JSON(http.StatusOK, ChatResponse{Message: reply, ConversationID: req.ConversationID})
}

// mergeProfile fills absent request context from the caller's patient
// profile. Lookup failures are ignored; the request proceeds with
// whatever context it carried.
func (h *Handler) mergeProfile(c echo.Context, req *SymptomCheckRequest) {
	if h.profiles == nil {
		return
	}
	userID := auth.UserIDFromContext(c.Request().Context())
	if userID == "" {
		return
	}
	profile, err := h.profiles.PatientProfileByUser(c.Request().Context(), userID)
	if err != nil || profile == nil {
		return
	}
	if req.Age == nil && profile.Age != nil {
		req.Age = profile.Age
	}
	if len(req.ExistingConditions) == 0 && len(profile.ChronicConditions) > 0 {
		req.ExistingConditions = profile.ChronicConditions
	}
	if len(req.CurrentMedications) == 0 && len(profile.CurrentMedications) > 0 {
		req.CurrentMedications = profile.CurrentMedications
	}
}
