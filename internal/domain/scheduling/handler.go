package scheduling

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/adoptionplatform/vetcare/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the scheduling API on a group rooted at /api/vet.
// Authorization happens in the service, so no route carries a role guard.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/user", h.ListMyAppointments)
	api.POST("/appointments", h.Book)
	api.DELETE("/appointments/:id", h.CancelBooking)

	api.GET("/availability", h.ListAvailability)
	api.POST("/availability", h.PublishSlot)
	api.DELETE("/availability/:id", h.DeleteSlot)
}

func principal(c echo.Context) auth.Principal {
	return auth.PrincipalFromContext(c.Request().Context())
}

// toHTTPError maps service errors onto status codes.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidTimeFormat),
		errors.Is(err, ErrInvalidDuration),
		errors.Is(err, ErrMessageTooLong):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	case errors.Is(err, auth.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	case errors.Is(err, ErrSlotNotFound),
		errors.Is(err, ErrBookingNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSlotAlreadyBooked),
		errors.Is(err, ErrSlotConflict),
		errors.Is(err, ErrSlotInUse):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrStoreUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "scheduling store unavailable, retry later").SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}

func (h *Handler) optionalTime(c echo.Context, name string) (time.Time, error) {
	raw := strings.TrimSpace(c.FormValue(name))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := h.svc.ParseTime(raw)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+": "+err.Error())
	}
	return t, nil
}

func durationParam(c echo.Context) (int, error) {
	raw := strings.TrimSpace(c.FormValue("duration"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid duration")
	}
	return n, nil
}

func idParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Appointment Handlers --

func (h *Handler) ListAppointments(c echo.Context) error {
	from, err := h.optionalTime(c, "from")
	if err != nil {
		return err
	}
	to, err := h.optionalTime(c, "to")
	if err != nil {
		return err
	}
	items, err := h.svc.ListForRange(c.Request().Context(), principal(c), from, to)
	if err != nil {
		return toHTTPError(err)
	}
	if items == nil {
		items = []*Booking{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListMyAppointments(c echo.Context) error {
	items, err := h.svc.ListMine(c.Request().Context(), principal(c))
	if err != nil {
		return toHTTPError(err)
	}
	if items == nil {
		items = []*Booking{}
	}
	return c.JSON(http.StatusOK, items)
}

// Book accepts either availabilityId (slot booking) or at plus an optional
// duration (free-form booking). phone and message are optional for both.
func (h *Handler) Book(c echo.Context) error {
	contact := Contact{
		Phone:   c.FormValue("phone"),
		Message: c.FormValue("message"),
	}
	ctx := c.Request().Context()
	p := principal(c)

	if raw := strings.TrimSpace(c.FormValue("availabilityId")); raw != "" {
		slotID, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid availabilityId")
		}
		b, err := h.svc.BookViaSlot(ctx, p, slotID, contact)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(http.StatusCreated, b)
	}

	at := c.FormValue("at")
	if strings.TrimSpace(at) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "either 'at' or 'availabilityId' is required")
	}
	duration, err := durationParam(c)
	if err != nil {
		return err
	}
	b, err := h.svc.BookFreeForm(ctx, p, at, duration, contact)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) CancelBooking(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.CancelBooking(c.Request().Context(), principal(c), id); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Availability Handlers --

// ListAvailability serves three views: mySlots=true for the calling
// doctor, doctorId for one doctor's full schedule, and otherwise the open
// slots after an optional "after" instant.
func (h *Handler) ListAvailability(c echo.Context) error {
	ctx := c.Request().Context()
	p := principal(c)

	var (
		items []*Slot
		err   error
	)
	mine, _ := strconv.ParseBool(c.FormValue("mySlots"))
	switch doctorID := strings.TrimSpace(c.FormValue("doctorId")); {
	case mine:
		items, err = h.svc.ListMySlots(ctx, p)
	case doctorID != "":
		items, err = h.svc.ListDoctorSlots(ctx, p, doctorID)
	default:
		after, perr := h.optionalTime(c, "after")
		if perr != nil {
			return perr
		}
		items, err = h.svc.ListOpenSlots(ctx, p, after)
	}
	if err != nil {
		return toHTTPError(err)
	}
	if items == nil {
		items = []*Slot{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) PublishSlot(c echo.Context) error {
	at := c.FormValue("at")
	if strings.TrimSpace(at) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "'at' is required")
	}
	duration, err := durationParam(c)
	if err != nil {
		return err
	}
	slot, err := h.svc.PublishSlot(c.Request().Context(), principal(c), at, duration)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, slot)
}

func (h *Handler) DeleteSlot(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSlot(c.Request().Context(), principal(c), id); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
