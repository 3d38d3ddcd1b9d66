package escalation

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carepulse/carepulse/internal/platform/auth"
)

type Handler struct {
	dispatcher *Dispatcher
}

func NewHandler(dispatcher *Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients/:id/emergency", h.Emergency)
	api.POST("/patients/:id/concerns", h.Concern)
}

func (h *Handler) patientID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if role, _ := c.Get("role").(string); role == auth.RolePatient {
		if sub, _ := c.Get("subject").(string); sub != id.String() {
			return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "patients may only act for themselves")
		}
	}
	return id, nil
}

type emergencyRequest struct {
	Description string `json:"description"`
}

func (h *Handler) Emergency(c echo.Context) error {
	id, err := h.patientID(c)
	if err != nil {
		return err
	}
	var req emergencyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.dispatcher.Emergency(c.Request().Context(), id, req.Description)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, a)
}

type concernRequest struct {
	Message  string  `json:"message"`
	ImageURL *string `json:"image_url"`
}

func (h *Handler) Concern(c echo.Context) error {
	id, err := h.patientID(c)
	if err != nil {
		return err
	}
	var req concernRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.dispatcher.Concern(c.Request().Context(), id, req.Message, req.ImageURL)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, a)
}
