package checkin

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carepulse/carepulse/internal/domain/patient"
	"github.com/carepulse/carepulse/internal/platform/auth"
	"github.com/carepulse/carepulse/pkg/pagination"
)

// PatientDirectory resolves patients for submission context. Satisfied by
// the patient service.
type PatientDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Handler struct {
	svc      *Service
	patients PatientDirectory
}

func NewHandler(svc *Service, patients PatientDirectory) *Handler {
	return &Handler{svc: svc, patients: patients}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients/:id/check-ins", h.Submit)
	api.GET("/patients/:id/check-ins", h.ListByPatient)
	api.GET("/patients/:id/check-ins/today", h.Today)
	api.GET("/check-ins/:id", h.Get)
}

// Submit handles a patient's daily questionnaire. Patients may only submit
// for themselves; staff may submit on a patient's behalf.
func (h *Handler) Submit(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if role, _ := c.Get("role").(string); role == auth.RolePatient {
		if sub, _ := c.Get("subject").(string); sub != patientID.String() {
			return echo.NewHTTPError(http.StatusForbidden, "patients may only submit their own check-in")
		}
	}

	p, err := h.patients.Get(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}

	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ci, err := h.svc.Submit(c.Request().Context(), p.ID, p.SurgeryCategory, req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, ci)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ci, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "check-in not found")
	}
	return c.JSON(http.StatusOK, ci)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Today(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ci, err := h.svc.Today(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "no check-in today")
	}
	return c.JSON(http.StatusOK, ci)
}
