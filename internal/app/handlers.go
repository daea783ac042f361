package app

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"barbershop-service/internal/schedule"
)

// GET /healthz
func (a *App) HealthHandler(c *gin.Context) {
	if err := a.Store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /api/settings
func (a *App) GetSettingsHandler(c *gin.Context) {
	s, err := a.Store.GetSettings(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	if !isAdmin(c) {
		s.MonthlyRent = decimal.Zero
	}
	c.JSON(http.StatusOK, s)
}

// PUT /api/settings
// Every weekday is validated; all problems are returned together.
func (a *App) UpdateSettingsHandler(c *gin.Context) {
	var payload Settings
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	issues, err := ValidateSettings(payload)
	if err != nil {
		a.fail(c, err)
		return
	}
	if len(issues) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid schedule", "days": issues})
		return
	}
	ctx := c.Request.Context()
	if err := a.Store.SaveSettings(ctx, &payload); err != nil {
		a.fail(c, err)
		return
	}
	a.cache().InvalidateAll(ctx)
	c.JSON(http.StatusOK, payload)
}

type slotView struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Available bool   `json:"available"`
}

// GET /api/slots?date=YYYY-MM-DD&item_id=...|duration=N[&include_unavailable=1]
func (a *App) GetSlotsHandler(c *gin.Context) {
	dateStr := c.Query("date")
	if dateStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date required (YYYY-MM-DD)"})
		return
	}
	date, err := a.ParseDate(dateStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
		return
	}
	ctx := c.Request.Context()

	var duration int
	switch {
	case c.Query("item_id") != "":
		item, err := a.Store.GetCatalogItem(ctx, c.Query("item_id"))
		if err != nil {
			a.fail(c, err)
			return
		}
		if !item.Bookable() {
			a.fail(c, ErrNotBookable)
			return
		}
		duration = item.DurationMins
	case c.Query("duration") != "":
		duration, err = strconv.Atoi(c.Query("duration"))
		if err != nil || duration <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duration"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "item_id or duration required"})
		return
	}

	slots, err := a.AvailableSlots(ctx, SlotRequest{
		Date:               date,
		Duration:           duration,
		IncludeUnavailable: c.Query("include_unavailable") == "1" && isAdmin(c),
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	out := make([]slotView, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotView{
			Start:     schedule.FormatClock(s.Start),
			End:       schedule.FormatClock(s.Start + duration),
			Available: s.Available,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"date":             dateStr,
		"duration_minutes": duration,
		"slots":            out,
	})
}

type createAppointmentReq struct {
	ClientName  string   `json:"client_name" binding:"required"`
	ClientPhone string   `json:"client_phone" binding:"required"`
	ItemID      string   `json:"item_id" binding:"required"`
	ProductIDs  []string `json:"product_ids"`
	Date        string   `json:"date" binding:"required"`
	Start       string   `json:"start" binding:"required"` // HH:MM
	Notes       string   `json:"notes"`
}

// POST /api/appointments
func (a *App) CreateAppointmentHandler(c *gin.Context) {
	var req createAppointmentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, err := a.ParseDate(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
		return
	}
	start, err := schedule.ParseClock(req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start"})
		return
	}
	ctx := c.Request.Context()

	item, err := a.Store.GetCatalogItem(ctx, req.ItemID)
	if err != nil {
		a.fail(c, err)
		return
	}
	if !item.Bookable() {
		a.fail(c, ErrNotBookable)
		return
	}
	total := item.Price
	for _, pid := range req.ProductIDs {
		p, err := a.Store.GetCatalogItem(ctx, pid)
		if errors.Is(err, ErrNotFound) || (err == nil && (p.Kind != KindProduct || !p.Active)) {
			a.fail(c, fmt.Errorf("%w: product %s", ErrInvalidInput, pid))
			return
		}
		if err != nil {
			a.fail(c, err)
			return
		}
		total = total.Add(p.Price)
	}

	// the start must be one the slot generator offers right now
	slots, err := a.AvailableSlots(ctx, SlotRequest{Date: date, Duration: item.DurationMins, Fresh: true})
	if err != nil {
		a.fail(c, err)
		return
	}
	if !offered(slots, start) {
		a.fail(c, ErrSlotNotOffered)
		return
	}

	now := a.Now()
	appt := Appointment{
		ID:           uuid.NewString(),
		ClientName:   strings.TrimSpace(req.ClientName),
		ClientPhone:  strings.TrimSpace(req.ClientPhone),
		ItemID:       item.ID,
		ItemName:     item.Name,
		ProductIDs:   req.ProductIDs,
		Date:         date.Format(dateLayout),
		StartMins:    start,
		DurationMins: item.DurationMins,
		Total:        total,
		Status:       StatusConfirmed,
		Notes:        req.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	appt.fillStartTime()
	if err := a.Store.CreateAppointment(ctx, &appt); err != nil {
		a.fail(c, err)
		return
	}
	a.cache().InvalidateDate(ctx, appt.Date)
	a.logger().Info("appointment booked",
		zap.String("id", appt.ID),
		zap.String("date", appt.Date),
		zap.String("start", appt.StartTime),
		zap.String("item", item.Name))
	c.JSON(http.StatusCreated, appt)
}

func offered(slots []schedule.TimeSlot, start int) bool {
	for _, s := range slots {
		if s.Start == start && s.Available {
			return true
		}
	}
	return false
}

// GET /api/appointments?date=YYYY-MM-DD
func (a *App) ListAppointmentsHandler(c *gin.Context) {
	date := c.Query("date")
	if date != "" {
		if _, err := a.ParseDate(date); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
			return
		}
	}
	list, err := a.Store.ListAppointments(c.Request.Context(), date)
	if err != nil {
		a.fail(c, err)
		return
	}
	if status := c.Query("status"); status != "" {
		filtered := list[:0]
		for _, ap := range list {
			if string(ap.Status) == status {
				filtered = append(filtered, ap)
			}
		}
		list = filtered
	}
	if list == nil {
		list = []Appointment{}
	}
	c.JSON(http.StatusOK, list)
}

type updateStatusReq struct {
	Status AppointmentStatus `json:"status" binding:"required"`
}

// PATCH /api/appointments/:id
func (a *App) UpdateAppointmentHandler(c *gin.Context) {
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	a.setStatus(c, c.Param("id"), req.Status)
}

// DELETE /api/appointments/:id cancels the appointment.
func (a *App) CancelAppointmentHandler(c *gin.Context) {
	a.setStatus(c, c.Param("id"), StatusCancelled)
}

func (a *App) setStatus(c *gin.Context, id string, status AppointmentStatus) {
	ctx := c.Request.Context()
	current, err := a.Store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
			return
		}
		a.fail(c, err)
		return
	}
	if current.Status == StatusCancelled && status != StatusCancelled {
		// reviving could double-book a slot that was released
		c.JSON(http.StatusConflict, gin.H{"error": "appointment already cancelled"})
		return
	}
	if current.Status == status {
		c.JSON(http.StatusOK, current)
		return
	}
	updated, err := a.Store.UpdateAppointmentStatus(ctx, id, status)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.cache().InvalidateDate(ctx, updated.Date)
	c.JSON(http.StatusOK, updated)
}
