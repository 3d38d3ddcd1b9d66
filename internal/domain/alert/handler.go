package alert

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carepulse/carepulse/internal/platform/auth"
	"github.com/carepulse/carepulse/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor)

	api.GET("/alerts", h.List, staff)
	api.GET("/alerts/:id", h.Get, staff)
	api.PUT("/alerts/:id/resolve", h.Resolve, staff)
	api.GET("/patients/:id/alerts", h.ListByPatient, staff)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "alert not found")
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	hospitalID, err := uuid.Parse(c.QueryParam("hospital_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "hospital_id is required")
	}

	var resolved *bool
	if v := c.QueryParam("resolved"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid resolved filter")
		}
		resolved = &b
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByHospital(c.Request().Context(), hospitalID, resolved, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
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

type resolveRequest struct {
	Response *string `json:"doctor_response"`
}

func (h *Handler) Resolve(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var resolvedBy *uuid.UUID
	if sub, _ := c.Get("subject").(string); sub != "" {
		if uid, err := uuid.Parse(sub); err == nil {
			resolvedBy = &uid
		}
	}

	a, err := h.svc.Resolve(c.Request().Context(), id, resolvedBy, req.Response)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "alert not found")
	}
	return c.JSON(http.StatusOK, a)
}
