package scheduling

import (
	"errors"
	"net/http"
	"strconv"
	"time"

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
	api.POST("/appointments", h.Create)
	api.GET("/appointments", h.List)
	api.GET("/appointments/upcoming", h.Upcoming)
	api.POST("/appointments/available-slots", h.AvailableSlots)
	api.GET("/appointments/:id", h.Get)
	api.PUT("/appointments/:id", h.Update)
	api.POST("/appointments/:id/cancel", h.Cancel)
}

// actor resolves the authenticated caller into a scheduling actor.
func (h *Handler) actor(c echo.Context) (*Actor, error) {
	uid := auth.UserIDFromContext(c.Request().Context())
	if uid == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	act, err := h.svc.Actor(c.Request().Context(), uid)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	return act, nil
}

// load fetches the appointment addressed by the :id path param.
func (h *Handler) load(c echo.Context) (*Appointment, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return a, nil
}

// canAccess reports whether the actor owns either side of the
// appointment. Admins see everything.
func canAccess(act *Actor, a *Appointment) bool {
	if act.Role == auth.RoleAdmin {
		return true
	}
	if act.PatientID != uuid.Nil && act.PatientID == a.PatientID {
		return true
	}
	if act.DoctorID != uuid.Nil && act.DoctorID == a.DoctorID {
		return true
	}
	return false
}

func (h *Handler) Create(c echo.Context) error {
	act, err := h.actor(c)
	if err != nil {
		return err
	}
	if act.PatientID == uuid.Nil {
		return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
	}
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Create(c.Request().Context(), act.PatientID, req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) List(c echo.Context) error {
	act, err := h.actor(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)

	var f ListFilter
	// Unknown status values are ignored rather than rejected.
	if v := c.QueryParam("status"); v != "" && ValidStatus(v) {
		f.Statuses = []string{v}
	}
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

	var (
		appts []*Appointment
		total int
	)
	switch {
	case act.PatientID != uuid.Nil:
		appts, total, err = h.svc.ListForPatient(c.Request().Context(), act.PatientID, f, pg.Limit, pg.Offset)
	case act.DoctorID != uuid.Nil:
		appts, total, err = h.svc.ListForDoctor(c.Request().Context(), act.DoctorID, f, pg.Limit, pg.Offset)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if appts == nil {
		appts = []*Appointment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, pg.Limit, pg.Offset))
}

func (h *Handler) Upcoming(c echo.Context) error {
	act, err := h.actor(c)
	if err != nil {
		return err
	}
	limit := 5
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 20 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	appts, err := h.svc.Upcoming(c.Request().Context(), act, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if appts == nil {
		appts = []*Appointment{}
	}
	return c.JSON(http.StatusOK, appts)
}

func (h *Handler) Get(c echo.Context) error {
	act, err := h.actor(c)
	if err != nil {
		return err
	}
	a, err := h.load(c)
	if err != nil {
		return err
	}
	if !canAccess(act, a) {
		return echo.NewHTTPError(http.StatusForbidden, "Not authorized to view this appointment")
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Update(c echo.Context) error {
	act, err := h.actor(c)
	if err != nil {
		return err
	}
	a, err := h.load(c)
	if err != nil {
		return err
	}
	if !canAccess(act, a) {
		return echo.NewHTTPError(http.StatusForbidden, "Not authorized to update this appointment")
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.Update(c.Request().Context(), a, req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) Cancel(c echo.Context) error {
	act, err := h.actor(c)
	if err != nil {
		return err
	}
	a, err := h.load(c)
	if err != nil {
		return err
	}
	if !canAccess(act, a) {
		return echo.NewHTTPError(http.StatusForbidden, "Not authorized to cancel this appointment")
	}
	cancelled, err := h.svc.Cancel(c.Request().Context(), a, cancelledByRole(act, a), c.QueryParam("reason"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, cancelled)
}

// cancelledByRole records which side of the appointment initiated the
// cancellation. Staff cancellations on behalf of neither side count as
// the system.
func cancelledByRole(act *Actor, a *Appointment) string {
	switch {
	case act.PatientID != uuid.Nil && act.PatientID == a.PatientID:
		return "patient"
	case act.DoctorID != uuid.Nil && act.DoctorID == a.DoctorID:
		return "doctor"
	}
	return "system"
}

func (h *Handler) AvailableSlots(c echo.Context) error {
	var req AvailableSlotsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.svc.AvailableSlots(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}
