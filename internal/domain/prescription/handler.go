package prescription

import (
	"errors"
	"net/http"

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
	api.POST("/prescriptions", h.Create)
	api.GET("/prescriptions", h.List)
	api.GET("/prescriptions/verify/:code", h.Verify)
	api.GET("/prescriptions/:id", h.Get)
	api.PUT("/prescriptions/:id/status", h.UpdateStatus)
}

// actor resolves the authenticated caller into a prescription actor.
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

// load fetches the prescription addressed by the :id path param.
func (h *Handler) load(c echo.Context) (*Prescription, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrPrescriptionNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return p, nil
}

// canAccess reports whether the actor is on either side of the
// prescription. Admins see everything.
func canAccess(act *Actor, p *Prescription) bool {
	if act.Role == auth.RoleAdmin {
		return true
	}
	if act.PatientID != uuid.Nil && act.PatientID == p.PatientID {
		return true
	}
	if act.DoctorID != uuid.Nil && act.DoctorID == p.DoctorID {
		return true
	}
	return false
}

func (h *Handler) Create(c echo.Context) error {
	act, err := h.actor(c)
	if err != nil {
		return err
	}
	if act.DoctorID == uuid.Nil {
		return echo.NewHTTPError(http.StatusForbidden, "Doctor access required")
	}
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Create(c.Request().Context(), act.DoctorID, req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

// List returns the caller's own prescriptions: received ones for a
// patient, issued ones for a doctor.
func (h *Handler) List(c echo.Context) error {
	act, err := h.actor(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)

	var (
		prescriptions []*Prescription
		total         int
	)
	switch {
	case act.PatientID != uuid.Nil:
		prescriptions, total, err = h.svc.ListForPatient(c.Request().Context(), act.PatientID, pg.Limit, pg.Offset)
	case act.DoctorID != uuid.Nil:
		prescriptions, total, err = h.svc.ListForDoctor(c.Request().Context(), act.DoctorID, pg.Limit, pg.Offset)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if prescriptions == nil {
		prescriptions = []*Prescription{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(prescriptions, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	act, err := h.actor(c)
	if err != nil {
		return err
	}
	p, err := h.load(c)
	if err != nil {
		return err
	}
	if !canAccess(act, p) {
		return echo.NewHTTPError(http.StatusForbidden, "Not authorized to view this prescription")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	act, err := h.actor(c)
	if err != nil {
		return err
	}
	p, err := h.load(c)
	if err != nil {
		return err
	}
	if act.Role != auth.RoleAdmin && (act.DoctorID == uuid.Nil || act.DoctorID != p.DoctorID) {
		return echo.NewHTTPError(http.StatusForbidden, "Only the issuing doctor can update this prescription")
	}

	var req StatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err = h.svc.UpdateStatus(c.Request().Context(), p, req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

// Verify is public: pharmacies check a code without an account. The
// auth middleware skips this route.
func (h *Handler) Verify(c echo.Context) error {
	res, err := h.svc.Verify(c.Request().Context(), c.Param("code"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}
