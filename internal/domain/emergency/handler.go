package emergency

import (
	"errors"
	"net/http"

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
	api.POST("/emergency/trigger", h.Trigger)
	api.GET("/emergency/active", h.Active)
	api.GET("/emergency/my-events", h.MyEvents)
	api.GET("/emergency/:id", h.Get)
	api.PUT("/emergency/:id/status", h.UpdateStatus)
	api.PUT("/emergency/:id/location", h.UpdateLocation)
}

// actor resolves the authenticated caller into an emergency actor.
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

// load fetches the event addressed by the :id path param.
func (h *Handler) load(c echo.Context) (*Event, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	e, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return e, nil
}

func owns(act *Actor, e *Event) bool {
	return act.PatientID != uuid.Nil && act.PatientID == e.PatientID
}

func privileged(act *Actor) bool {
	return act.Role == auth.RoleAdmin || act.Role == auth.RoleDoctor
}

func (h *Handler) Trigger(c echo.Context) error {
	act, err := h.actor(c)
	if err != nil {
		return err
	}
	if act.PatientID == uuid.Nil {
		return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
	}
	var req TriggerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.Trigger(c.Request().Context(), act.PatientID, req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, e)
}

// Active is the dispatch view: every open event, most severe first.
func (h *Handler) Active(c echo.Context) error {
	act, err := h.actor(c)
	if err != nil {
		return err
	}
	if !privileged(act) {
		return echo.NewHTTPError(http.StatusForbidden, "Admin or doctor access required")
	}
	events, err := h.svc.ActiveEvents(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, events)
}

func (h *Handler) MyEvents(c echo.Context) error {
	act, err := h.actor(c)
	if err != nil {
		return err
	}
	if act.PatientID == uuid.Nil {
		return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
	}
	includeResolved := c.QueryParam("include_resolved") == "true"
	events, err := h.svc.EventsForPatient(c.Request().Context(), act.PatientID, includeResolved)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, events)
}

func (h *Handler) Get(c echo.Context) error {
	act, err := h.actor(c)
	if err != nil {
		return err
	}
	e, err := h.load(c)
	if err != nil {
		return err
	}
	if !owns(act, e) && !privileged(act) {
		return echo.NewHTTPError(http.StatusForbidden, "Not authorized to view this event")
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	act, err := h.actor(c)
	if err != nil {
		return err
	}
	e, err := h.load(c)
	if err != nil {
		return err
	}

	var req StatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	isOwner := owns(act, e)
	if !isOwner && !privileged(act) {
		return echo.NewHTTPError(http.StatusForbidden, "Not authorized to update this event")
	}
	if req.Status == StatusCancelled && !isOwner {
		return echo.NewHTTPError(http.StatusForbidden, "Only the patient who triggered the event can cancel it")
	}
	if isOwner && !privileged(act) && req.Status != StatusCancelled {
		return echo.NewHTTPError(http.StatusForbidden, "Patients can only cancel their own events")
	}

	e, err = h.svc.UpdateStatus(c.Request().Context(), e, req, act)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, e)
}

// UpdateLocation lets the patient stream position updates while the
// emergency is being responded to.
func (h *Handler) UpdateLocation(c echo.Context) error {
	act, err := h.actor(c)
	if err != nil {
		return err
	}
	e, err := h.load(c)
	if err != nil {
		return err
	}
	if !owns(act, e) {
		return echo.NewHTTPError(http.StatusForbidden, "Not authorized to update this event")
	}

	var req LocationUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err = h.svc.UpdateLocation(c.Request().Context(), e, req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, e)
}
