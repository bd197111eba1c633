package identity

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/athishkirthikjd/MedTech-AI/internal/platform/auth"
	"github.com/athishkirthikjd/MedTech-AI/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Register and verify run before the client holds a backend
	// session; the auth skipper lets them through unauthenticated.
	api.POST("/auth/register", h.Register)
	api.POST("/auth/verify", h.VerifyToken)

	api.GET("/auth/me", h.Me)
	api.PUT("/auth/me", h.UpdateMe)
	api.DELETE("/auth/me", h.Deactivate)

	api.GET("/doctors", h.ListDoctors)
	api.GET("/doctors/specialties", h.ListSpecialties)
	api.GET("/doctors/:id", h.GetDoctor)
	api.POST("/doctors/search", h.SearchDoctors)
}

// -- Auth Handlers --

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, u)
}

type verifyRequest struct {
	Token string `json:"token"`
}

func (h *Handler) VerifyToken(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.VerifyToken(c.Request().Context(), req.Token)
	if err != nil {
		return authError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Me(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	if uid == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	u, err := h.svc.Me(c.Request().Context(), uid)
	if err != nil {
		return authError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateMe(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	if uid == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.UpdateMe(c.Request().Context(), uid, req)
	if err != nil {
		return authError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) Deactivate(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	if uid == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if err := h.svc.Deactivate(c.Request().Context(), uid); err != nil {
		return authError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// authError maps service errors from the account endpoints onto HTTP
// statuses.
func authError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidToken):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrAccountDeactivated):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

// -- Doctor Directory Handlers --

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := DoctorFilter{
		Specialty:     c.QueryParam("specialty"),
		Search:        c.QueryParam("search"),
		AvailableOnly: true,
	}
	if v := c.QueryParam("available_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid available_only")
		}
		filter.AvailableOnly = b
	}
	if v := c.QueryParam("min_rating"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 5 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid min_rating")
		}
		filter.MinRating = f
	}

	doctors, total, err := h.svc.ListDoctors(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(doctors, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListSpecialties(c echo.Context) error {
	specialties, err := h.svc.Specialties(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if specialties == nil {
		specialties = []string{}
	}
	return c.JSON(http.StatusOK, specialties)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Doctor not found")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) SearchDoctors(c echo.Context) error {
	var q DoctorSearchQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	doctors, total, err := h.svc.SearchDoctors(c.Request().Context(), &q)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(doctors, total, q.Limit, q.Offset))
}
