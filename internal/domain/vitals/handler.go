package vitals

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/athishkirthikjd/MedTech-AI/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/vitals", h.Record)
	api.GET("/vitals/latest", h.Latest)
	api.GET("/vitals/history", h.History)
	api.GET("/vitals/:id", h.Get)
	api.PUT("/vitals/:id", h.Update)
	api.DELETE("/vitals/:id", h.Delete)
}

// patient resolves the caller to their patient profile. Vitals
// endpoints are patient-only.
func (h *Handler) patient(c echo.Context) (uuid.UUID, error) {
	uid := auth.UserIDFromContext(c.Request().Context())
	if uid == "" {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	patientID, err := h.svc.PatientID(c.Request().Context(), uid)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
	}
	return patientID, nil
}

// load fetches the record addressed by the :id path param and checks
// it belongs to the caller.
func (h *Handler) load(c echo.Context, patientID uuid.UUID, action string) (*Record, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if rec.PatientID != patientID {
		return nil, echo.NewHTTPError(http.StatusForbidden, "Not authorized to "+action+" this record")
	}
	return rec, nil
}

func (h *Handler) Record(c echo.Context) error {
	patientID, err := h.patient(c)
	if err != nil {
		return err
	}
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.Record(c.Request().Context(), patientID, req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) Latest(c echo.Context) error {
	patientID, err := h.patient(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.Latest(c.Request().Context(), patientID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "No vitals records found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) History(c echo.Context) error {
	patientID, err := h.patient(c)
	if err != nil {
		return err
	}

	var f HistoryFilter
	if v := c.QueryParam("from_date"); v != "" {
		day, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from_date")
		}
		f.From = &day
	}
	if v := c.QueryParam("to_date"); v != "" {
		day, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to_date")
		}
		endOfDay := day.Add(24*time.Hour - time.Second)
		f.To = &endOfDay
	}

	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	offset := 0
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid offset")
		}
		offset = n
	}
	includeSummary := true
	if v := c.QueryParam("include_summary"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid include_summary")
		}
		includeSummary = b
	}

	resp, err := h.svc.History(c.Request().Context(), patientID, f, limit, offset, includeSummary)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Get(c echo.Context) error {
	patientID, err := h.patient(c)
	if err != nil {
		return err
	}
	rec, err := h.load(c, patientID, "view")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Update(c echo.Context) error {
	patientID, err := h.patient(c)
	if err != nil {
		return err
	}
	rec, err := h.load(c, patientID, "update")
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.Update(c.Request().Context(), rec, req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) Delete(c echo.Context) error {
	patientID, err := h.patient(c)
	if err != nil {
		return err
	}
	rec, err := h.load(c, patientID, "delete")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), rec.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
