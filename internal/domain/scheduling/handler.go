package scheduling

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/agendasaude/agendasaude/internal/platform/auth"
	"github.com/agendasaude/agendasaude/internal/platform/telemetry"
	"github.com/agendasaude/agendasaude/pkg/pagination"
)

type Handler struct {
	svc     *Service
	metrics *telemetry.Provider
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// WithMetrics attaches the telemetry provider; without it the handler serves
// requests but records nothing.
func (h *Handler) WithMetrics(p *telemetry.Provider) *Handler {
	h.metrics = p
	return h
}

func (h *Handler) countBooking(op string) {
	if h.metrics != nil {
		h.metrics.BookingEvent(op)
	}
}

func (h *Handler) countGeneration(report *GenerationReport) {
	if h.metrics != nil {
		h.metrics.SlotsGenerated(report.Created, report.Skipped)
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – any authenticated role
	readGroup := api.Group("", auth.RequireRole("admin", "receptionist", "citizen"))
	readGroup.GET("/slots", h.SearchSlots)
	readGroup.GET("/slots/:id", h.GetSlot)
	readGroup.GET("/bookings/:id", h.GetBooking)
	readGroup.GET("/bookings/code/:code", h.GetBookingByCode)
	readGroup.GET("/bookings/:id/cancellable", h.GetCancellable)
	readGroup.GET("/citizens/:id/bookings", h.ListCitizenBookings)

	// Schedule management – staff only
	staffGroup := api.Group("", auth.RequireRole("admin", "receptionist"))
	staffGroup.POST("/slots", h.CreateSlot)
	staffGroup.POST("/slots/generate", h.GenerateSlots)
	staffGroup.POST("/slots/recurring", h.GenerateRecurring)
	staffGroup.POST("/slots/copy-week", h.CopyWeek)
	staffGroup.DELETE("/slots/:id", h.DeleteSlot)
	staffGroup.GET("/bookings", h.ListBookingsByStatus)
	staffGroup.POST("/bookings/:id/attended", h.MarkAttended)
	staffGroup.POST("/bookings/:id/missed", h.MarkMissed)
	staffGroup.DELETE("/bookings/:id", h.DeleteBooking)

	// Booking lifecycle – citizens and staff
	bookGroup := api.Group("", auth.RequireRole("admin", "receptionist", "citizen"))
	bookGroup.POST("/bookings", h.Reserve)
	bookGroup.POST("/bookings/:id/confirm", h.Confirm)
	bookGroup.POST("/bookings/:id/cancel", h.Cancel)
}

// httpError maps domain errors onto HTTP status codes. Missing resources are
// 404, state conflicts (lost races, lifecycle violations, generation aborts)
// are 409, a wrong confirmation code is 403, bad input is 400.
func httpError(err error) error {
	var vErr *ValidationError
	var itErr *InvalidTransitionError
	var tlErr *TooLateToCancelError
	var caErr *ConflictAbortedError
	switch {
	case errors.Is(err, ErrSlotNotFound), errors.Is(err, ErrBookingNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSlotUnavailable), errors.Is(err, ErrSlotBooked), errors.Is(err, ErrPastSlot):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrBadConfirmCode):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.As(err, &itErr), errors.As(err, &tlErr), errors.As(err, &caErr):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &vErr):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// -- Slot Handlers --

func (h *Handler) CreateSlot(c echo.Context) error {
	var sl TimeSlot
	if err := c.Bind(&sl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateSlot(c.Request().Context(), &sl); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sl)
}

func (h *Handler) GetSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sl, err := h.svc.GetSlot(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sl)
}

func (h *Handler) SearchSlots(c echo.Context) error {
	pg := pagination.FromContext(c)
	f, err := filtersFromQuery(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	items, total, err := h.svc.SearchAvailableSlots(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func filtersFromQuery(c echo.Context) (SlotFilters, error) {
	var f SlotFilters
	parseID := func(param string) (*uuid.UUID, error) {
		v := c.QueryParam(param)
		if v == "" {
			return nil, nil
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, &ValidationError{Msg: "invalid " + param}
		}
		return &id, nil
	}
	var err error
	if f.UnitID, err = parseID("unit_id"); err != nil {
		return f, err
	}
	if f.ServiceID, err = parseID("service_id"); err != nil {
		return f, err
	}
	if f.ProfessionalID, err = parseID("professional_id"); err != nil {
		return f, err
	}
	if v := c.QueryParam("date_from"); v != "" {
		d, err := parseDay(v)
		if err != nil {
			return f, err
		}
		f.DateFrom = &d
	}
	if v := c.QueryParam("date_to"); v != "" {
		d, err := parseDay(v)
		if err != nil {
			return f, err
		}
		f.DateTo = &d
	}
	// The public search lists bookable slots unless availability is
	// requested explicitly.
	avail := true
	if v := c.QueryParam("available"); v == "false" {
		avail = false
	} else if v == "any" {
		return f, nil
	}
	f.Available = &avail
	return f, nil
}

func (h *Handler) GenerateSlots(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	report, err := h.svc.GenerateSlots(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	h.countGeneration(report)
	return c.JSON(http.StatusCreated, report)
}

func (h *Handler) GenerateRecurring(c echo.Context) error {
	var req RecurringRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	report, err := h.svc.GenerateRecurring(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	h.countGeneration(report)
	return c.JSON(http.StatusCreated, report)
}

func (h *Handler) CopyWeek(c echo.Context) error {
	var req CopyWeekRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	report, err := h.svc.CopyWeekSchedule(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	h.countGeneration(report)
	return c.JSON(http.StatusCreated, report)
}

func (h *Handler) DeleteSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteSlot(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Booking Handlers --

type reserveRequest struct {
	SlotID    uuid.UUID `json:"slot_id"`
	CitizenID uuid.UUID `json:"citizen_id"`
}

func (h *Handler) Reserve(c echo.Context) error {
	var req reserveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.Reserve(c.Request().Context(), req.SlotID, req.CitizenID)
	if err != nil {
		return httpError(err)
	}
	h.countBooking("reserved")
	return c.JSON(http.StatusCreated, b)
}

type confirmRequest struct {
	ConfirmCode string `json:"confirm_code"`
}

func (h *Handler) Confirm(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.Confirm(c.Request().Context(), id, req.ConfirmCode)
	if err != nil {
		return httpError(err)
	}
	h.countBooking("confirmed")
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	b, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	h.countBooking("cancelled")
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) MarkAttended(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	b, err := h.svc.Complete(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	h.countBooking("attended")
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) MarkMissed(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	b, err := h.svc.MarkMissed(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	h.countBooking("missed")
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) GetBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	b, err := h.svc.GetBooking(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) GetBookingByCode(c echo.Context) error {
	code := c.Param("code")
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing code")
	}
	b, err := h.svc.GetBookingByConfirmCode(c.Request().Context(), code)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) GetCancellable(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ok, err := h.svc.CanBeCancelled(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"can_be_cancelled": ok})
}

func (h *Handler) ListCitizenBookings(c echo.Context) error {
	citizenID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListBookingsByCitizen(c.Request().Context(), citizenID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListBookingsByStatus(c echo.Context) error {
	status := BookingStatus(c.QueryParam("status"))
	if status == "" {
		status = StatusScheduled
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListBookingsByStatus(c.Request().Context(), status, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) DeleteBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteBooking(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
