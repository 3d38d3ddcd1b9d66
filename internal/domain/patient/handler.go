package patient

import (
	"net/http"
	"time"

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

// RegisterRoutes attaches patient CRUD under api (authenticated) and the OTP
// login flow under public (unauthenticated).
func (h *Handler) RegisterRoutes(api *echo.Group, public *echo.Group) {
	staff := auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor)

	api.GET("/patients", h.List, staff)
	api.POST("/patients", h.Create, staff)
	api.GET("/patients/:id", h.Get)
	api.PUT("/patients/:id", h.Update, staff)
	api.DELETE("/patients/:id", h.Delete, staff)
	api.PUT("/patients/:id/status", h.SetStatus, staff)
	api.PUT("/patients/:id/appointment", h.SetAppointment, staff)

	public.POST("/auth/otp/request", h.RequestOTP)
	public.POST("/auth/otp/verify", h.VerifyOTP)
}

func (h *Handler) Create(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	if hospitalID := c.QueryParam("hospital_id"); hospitalID != "" {
		hid, err := uuid.Parse(hospitalID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid hospital_id")
		}
		items, total, err := h.svc.ListByHospital(c.Request().Context(), hid, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}

	params := map[string]string{}
	for _, key := range []string{"recovery_status", "surgery_category", "name"} {
		if v := c.QueryParam(key); v != "" {
			params[key] = v
		}
	}
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.Update(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type setStatusRequest struct {
	RecoveryStatus string `json:"recovery_status"`
	RecoveryScore  int    `json:"recovery_score"`
}

func (h *Handler) SetStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req setStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetRecovery(c.Request().Context(), id, req.RecoveryStatus, req.RecoveryScore); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type setAppointmentRequest struct {
	Date       *time.Time `json:"date"`
	Time       *string    `json:"time"`
	Department *string    `json:"department"`
}

func (h *Handler) SetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req setAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetAppointment(c.Request().Context(), id, req.Date, req.Time, req.Department); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type otpRequest struct {
	Mobile string `json:"mobile"`
	Code   string `json:"code,omitempty"`
}

func (h *Handler) RequestOTP(c echo.Context) error {
	var req otpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Mobile == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "mobile is required")
	}
	if err := h.svc.RequestOTP(c.Request().Context(), req.Mobile); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "login code sent"})
}

func (h *Handler) VerifyOTP(c echo.Context) error {
	var req otpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Mobile == "" || req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "mobile and code are required")
	}
	token, p, err := h.svc.VerifyOTP(c.Request().Context(), req.Mobile, req.Code)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"token":   token,
		"patient": p,
	})
}
