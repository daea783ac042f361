package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"barbershop-service/internal/schedule"
)

// BusyProvider reports time on date that is taken outside this service.
type BusyProvider interface {
	Busy(ctx context.Context, date time.Time) ([]schedule.Booked, error)
}

// GoogleCalendarConfig holds OAuth2 configuration
type GoogleCalendarConfig struct {
	Config     *oauth2.Config
	CalendarID string
}

// CalendarEvent represents a Google Calendar event
type CalendarEvent struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	AllDay      bool      `json:"all_day"`
	Location    string    `json:"location,omitempty"`
	Status      string    `json:"status"`
	Transparent bool      `json:"transparent"`
	Creator     string    `json:"creator,omitempty"`
}

// NewGoogleCalendarConfig returns nil when any credential is missing.
func NewGoogleCalendarConfig(clientID, clientSecret, redirectURL string) *GoogleCalendarConfig {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil
	}
	return &GoogleCalendarConfig{
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{calendar.CalendarReadonlyScope},
			Endpoint:     google.Endpoint,
		},
		CalendarID: "primary",
	}
}

// GoogleBusy turns the barber's Google Calendar events into busy time. It stays silent
// (no busy time, no error) until a token has been stored by the OAuth callback.
type GoogleBusy struct {
	Google   *GoogleCalendarConfig
	Store    Store
	Location *time.Location
}

var errCalendarNotConnected = errors.New("google calendar not connected")

func (g *GoogleBusy) service(ctx context.Context) (*calendar.Service, error) {
	raw, err := g.Store.CalendarToken(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, errCalendarNotConnected
	}
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("stored calendar token: %w", err)
	}
	return g.Google.service(ctx, &token)
}

func (gc *GoogleCalendarConfig) service(ctx context.Context, token *oauth2.Token) (*calendar.Service, error) {
	client := gc.Config.Client(ctx, token)
	return calendar.NewService(ctx, option.WithHTTPClient(client))
}

func (g *GoogleBusy) Busy(ctx context.Context, date time.Time) ([]schedule.Booked, error) {
	srv, err := g.service(ctx)
	if errors.Is(err, errCalendarNotConnected) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	loc := g.Location
	if loc == nil {
		loc = date.Location()
	}
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	events, err := listEvents(ctx, srv, g.Google.CalendarID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	return busyFromEvents(events, dayStart), nil
}

func listEvents(ctx context.Context, srv *calendar.Service, calendarID string, from, to time.Time) ([]CalendarEvent, error) {
	call := srv.Events.List(calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250).
		Context(ctx)
	if !from.IsZero() {
		call = call.TimeMin(from.Format(time.RFC3339))
	}
	if !to.IsZero() {
		call = call.TimeMax(to.Format(time.RFC3339))
	}
	events, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}
	out := make([]CalendarEvent, 0, len(events.Items))
	for _, item := range events.Items {
		out = append(out, toCalendarEvent(item, from.Location()))
	}
	return out, nil
}

func toCalendarEvent(item *calendar.Event, loc *time.Location) CalendarEvent {
	event := CalendarEvent{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Status:      item.Status,
		Transparent: item.Transparency == "transparent",
	}
	if item.Creator != nil {
		event.Creator = item.Creator.Email
	}
	if item.Start != nil {
		event.StartTime, event.AllDay = parseEventTime(item.Start, loc)
	}
	if item.End != nil {
		event.EndTime, _ = parseEventTime(item.End, loc)
	}
	return event
}

func parseEventTime(t *calendar.EventDateTime, loc *time.Location) (time.Time, bool) {
	if t.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return parsed, false
		}
	} else if t.Date != "" {
		if parsed, err := time.ParseInLocation(dateLayout, t.Date, loc); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// busyFromEvents clips opaque, non-cancelled events to the day starting at dayStart.
func busyFromEvents(events []CalendarEvent, dayStart time.Time) []schedule.Booked {
	dayEnd := dayStart.AddDate(0, 0, 1)
	var out []schedule.Booked
	for _, e := range events {
		if e.Status == "cancelled" || e.Transparent || e.StartTime.IsZero() || e.EndTime.IsZero() {
			continue
		}
		start, end := e.StartTime.In(dayStart.Location()), e.EndTime.In(dayStart.Location())
		if !end.After(dayStart) || !start.Before(dayEnd) {
			continue
		}
		if start.Before(dayStart) {
			start = dayStart
		}
		if end.After(dayEnd) {
			end = dayEnd
		}
		from := int(start.Sub(dayStart) / time.Minute)
		to := int((end.Sub(dayStart) + time.Minute - 1) / time.Minute)
		if to > from {
			out = append(out, schedule.Booked{Date: dayStart, Start: from, Duration: to - from})
		}
	}
	return out
}

// GoogleAuthHandler initiates OAuth2 flow
func (a *App) GoogleAuthHandler(c *gin.Context) {
	if a.Google == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar not configured"})
		return
	}
	if a.JWTSecret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "JWT_HMAC_SECRET required to sign oauth state"})
		return
	}
	state, err := issueOAuthState(a.JWTSecret, a.Now())
	if err != nil {
		a.fail(c, err)
		return
	}
	url := a.Google.Config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	c.JSON(http.StatusOK, gin.H{
		"auth_url": url,
		"state":    state,
	})
}

// GoogleOAuth2CallbackHandler exchanges the code and stores the token for busy lookups.
func (a *App) GoogleOAuth2CallbackHandler(c *gin.Context) {
	if a.Google == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar not configured"})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code required"})
		return
	}
	if err := checkOAuthState(a.JWTSecret, c.Query("state"), a.Now()); err != nil {
		a.logger().Warn("oauth callback rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired state"})
		return
	}
	ctx := c.Request.Context()
	token, err := a.Google.Config.Exchange(ctx, code)
	if err != nil {
		a.logger().Warn("oauth code exchange failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to exchange code for token"})
		return
	}
	tokenJSON, err := json.Marshal(token)
	if err != nil {
		a.fail(c, err)
		return
	}
	if err := a.Store.SaveCalendarToken(ctx, tokenJSON, a.Now()); err != nil {
		a.fail(c, err)
		return
	}
	a.cache().InvalidateAll(ctx)
	c.JSON(http.StatusOK, gin.H{
		"message": "Authorization successful",
	})
}

// calendarService prefers the stored token and falls back to an X-Google-Token header.
func (a *App) calendarService(c *gin.Context) (*calendar.Service, bool) {
	if a.Google == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar not configured"})
		return nil, false
	}
	ctx := c.Request.Context()
	var token oauth2.Token
	if header := c.GetHeader("X-Google-Token"); header != "" {
		if err := json.Unmarshal([]byte(header), &token); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token format"})
			return nil, false
		}
	} else {
		raw, err := a.Store.CalendarToken(ctx)
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Google Calendar not connected"})
			return nil, false
		}
		if err != nil {
			a.fail(c, err)
			return nil, false
		}
		if err := json.Unmarshal(raw, &token); err != nil {
			a.fail(c, err)
			return nil, false
		}
	}
	srv, err := a.Google.service(ctx, &token)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create calendar service"})
		return nil, false
	}
	return srv, true
}

// GET /api/calendar/events?time_min=RFC3339&time_max=RFC3339
func (a *App) GetGoogleCalendarEvents(c *gin.Context) {
	var from, to time.Time
	var err error
	if s := c.Query("time_min"); s != "" {
		if from, err = time.Parse(time.RFC3339, s); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid time_min"})
			return
		}
	}
	if s := c.Query("time_max"); s != "" {
		if to, err = time.Parse(time.RFC3339, s); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid time_max"})
			return
		}
	}
	if from.IsZero() {
		from = a.Now()
	}
	srv, ok := a.calendarService(c)
	if !ok {
		return
	}
	events, err := listEvents(c.Request.Context(), srv, c.DefaultQuery("calendar_id", a.Google.CalendarID), from.In(a.loc()), to)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

// GET /api/calendar/calendars
func (a *App) GetGoogleCalendarList(c *gin.Context) {
	srv, ok := a.calendarService(c)
	if !ok {
		return
	}
	calendarList, err := srv.CalendarList.List().Context(c.Request.Context()).Do()
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("failed to retrieve calendars: %v", err)})
		return
	}

	type CalendarInfo struct {
		ID          string `json:"id"`
		Summary     string `json:"summary"`
		Description string `json:"description,omitempty"`
		Primary     bool   `json:"primary"`
		AccessRole  string `json:"access_role"`
	}

	calendars := make([]CalendarInfo, 0, len(calendarList.Items))
	for _, item := range calendarList.Items {
		calendars = append(calendars, CalendarInfo{
			ID:          item.Id,
			Summary:     item.Summary,
			Description: item.Description,
			Primary:     item.Primary,
			AccessRole:  item.AccessRole,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"calendars": calendars,
		"count":     len(calendars),
	})
}
