package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"barbershop-service/internal/schedule"
)

func (an Announcement) toSchedule(loc *time.Location) (schedule.Announcement, error) {
	out := schedule.Announcement{
		Active:    an.Active,
		Effect:    schedule.Effect(an.AffectsBooking),
		CreatedAt: an.CreatedAt,
	}
	if out.Effect == "" {
		out.Effect = schedule.EffectNone
	}
	if an.EffectiveDate != nil && *an.EffectiveDate != "" {
		d, err := time.ParseInLocation(dateLayout, *an.EffectiveDate, loc)
		if err != nil {
			return out, fmt.Errorf("%w: effective_date %q", ErrInvalidInput, *an.EffectiveDate)
		}
		out.EffectiveDate = d
	}
	start, end := deref(an.CustomStart), deref(an.CustomEnd)
	if start != "" || end != "" {
		iv, err := parseSpan(start, end)
		if err != nil {
			return out, fmt.Errorf("%w: custom hours: %v", ErrInvalidInput, err)
		}
		out.Custom = &iv
	}
	if err := out.Check(); err != nil {
		return out, err
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type announcementReq struct {
	Title          string  `json:"title" binding:"required"`
	Message        string  `json:"message"`
	Active         *bool   `json:"active"`
	AffectsBooking string  `json:"affects_booking"`
	EffectiveDate  *string `json:"effective_date"`
	CustomStart    *string `json:"custom_start"`
	CustomEnd      *string `json:"custom_end"`
}

func (r announcementReq) apply(an *Announcement) {
	an.Title = strings.TrimSpace(r.Title)
	an.Message = r.Message
	an.Active = r.Active == nil || *r.Active
	an.AffectsBooking = r.AffectsBooking
	if an.AffectsBooking == "" {
		an.AffectsBooking = string(schedule.EffectNone)
	}
	an.EffectiveDate = blankToNil(r.EffectiveDate)
	an.CustomStart = blankToNil(r.CustomStart)
	an.CustomEnd = blankToNil(r.CustomEnd)
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// GET /api/announcements (public: active only; ?all=1 for the barber)
func (a *App) ListAnnouncementsHandler(c *gin.Context) {
	activeOnly := c.Query("all") != "1" || !isAdmin(c)
	list, err := a.Store.ListAnnouncements(c.Request.Context(), activeOnly)
	if err != nil {
		a.fail(c, err)
		return
	}
	if list == nil {
		list = []Announcement{}
	}
	c.JSON(http.StatusOK, list)
}

// POST /api/announcements
func (a *App) CreateAnnouncementHandler(c *gin.Context) {
	var req announcementReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	now := a.Now()
	an := Announcement{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	req.apply(&an)
	if _, err := an.toSchedule(a.loc()); err != nil {
		a.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := a.Store.CreateAnnouncement(ctx, &an); err != nil {
		a.fail(c, err)
		return
	}
	a.cache().InvalidateAll(ctx)
	c.JSON(http.StatusCreated, an)
}

// PUT /api/announcements/:id
func (a *App) UpdateAnnouncementHandler(c *gin.Context) {
	var req announcementReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	an := Announcement{ID: c.Param("id"), UpdatedAt: a.Now()}
	req.apply(&an)
	if _, err := an.toSchedule(a.loc()); err != nil {
		a.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := a.Store.UpdateAnnouncement(ctx, &an); err != nil {
		a.fail(c, err)
		return
	}
	a.cache().InvalidateAll(ctx)
	c.JSON(http.StatusOK, an)
}

// DELETE /api/announcements/:id
func (a *App) DeleteAnnouncementHandler(c *gin.Context) {
	ctx := c.Request.Context()
	if err := a.Store.DeleteAnnouncement(ctx, c.Param("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "announcement not found"})
			return
		}
		a.fail(c, err)
		return
	}
	a.cache().InvalidateAll(ctx)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
