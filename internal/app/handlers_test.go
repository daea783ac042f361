package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const testToken = "barber-token"

var testPasswordHash = func() string {
	h, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(h)
}()

// Monday 2025-03-10 08:00 UTC; the next day is an ordinary Tuesday.
var testNow = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	app    *App
	store  *memStore
	cache  *memCache
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := &testEnv{store: newMemStore(), cache: newMemCache()}
	now := testNow
	env.app = &App{
		Store:             env.store,
		Cache:             env.cache,
		Location:          time.UTC,
		Clock:             func() time.Time { return now },
		JWTSecret:         "test-secret",
		AdminPasswordHash: testPasswordHash,
	}
	env.router = gin.New()
	env.app.Routes(env.router, Authenticator{Secret: "test-secret", StaticTokens: []string{testToken}}, RateLimit(0, nil))
	return env
}

func (e *testEnv) setNow(now time.Time) {
	e.app.Clock = func() time.Time { return now }
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) addItem(it CatalogItem) CatalogItem {
	it.Active = true
	e.store.catalog[it.ID] = it
	return it
}

type slotsResp struct {
	Date  string     `json:"date"`
	Slots []slotView `json:"slots"`
}

func (e *testEnv) slots(t *testing.T, query string) []string {
	t.Helper()
	w := e.do(t, http.MethodGet, "/api/slots?"+query, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET slots?%s: status %d body %s", query, w.Code, w.Body.String())
	}
	var resp slotsResp
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode slots: %v", err)
	}
	var out []string
	for _, s := range resp.Slots {
		if s.Available {
			out = append(out, s.Start)
		}
	}
	return out
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func has(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestSlotsDefaultWeekday(t *testing.T) {
	env := newTestEnv(t)
	got := env.slots(t, "date=2025-03-11&duration=30")
	if len(got) != 30 {
		t.Fatalf("expected 30 slots, got %d: %v", len(got), got)
	}
	if got[0] != "09:00" || got[len(got)-1] != "17:30" {
		t.Fatalf("unexpected bounds %s..%s", got[0], got[len(got)-1])
	}
	for _, s := range []string{"11:45", "12:00", "12:30", "12:45"} {
		if has(got, s) {
			t.Fatalf("%s overlaps lunch but was offered", s)
		}
	}
	if !has(got, "11:30") || !has(got, "13:00") {
		t.Fatalf("slots touching lunch must be offered: %v", got)
	}
}

func TestSlotsClosedSunday(t *testing.T) {
	env := newTestEnv(t)
	if got := env.slots(t, "date=2025-03-16&duration=30"); len(got) != 0 {
		t.Fatalf("sunday should be closed, got %v", got)
	}
}

func TestSlotsPastDateEmpty(t *testing.T) {
	env := newTestEnv(t)
	if got := env.slots(t, "date=2025-03-08&duration=30"); len(got) != 0 {
		t.Fatalf("past date should have no slots, got %v", got)
	}
}

func TestSlotsTodaySkipsElapsedStarts(t *testing.T) {
	env := newTestEnv(t)
	env.setNow(time.Date(2025, 3, 10, 10, 7, 0, 0, time.UTC))
	got := env.slots(t, "date=2025-03-10&duration=30")
	if len(got) == 0 || got[0] != "10:15" {
		t.Fatalf("expected first slot 10:15, got %v", got)
	}
	if len(env.cache.entries) != 0 {
		t.Fatalf("today's slots must not be cached")
	}
}

func TestSlotsFutureDateCached(t *testing.T) {
	env := newTestEnv(t)
	env.slots(t, "date=2025-03-11&duration=30")
	if _, ok := env.cache.entries[slotCacheKey("2025-03-11", 30, false)]; !ok {
		t.Fatalf("expected cached entry, have %v", env.cache.entries)
	}
}

func TestSlotsByItem(t *testing.T) {
	env := newTestEnv(t)
	env.addItem(CatalogItem{ID: "beard", Kind: KindService, Name: "Beard", DurationMins: 45})
	env.addItem(CatalogItem{ID: "wax", Kind: KindProduct, Name: "Wax"})

	got := env.slots(t, "date=2025-03-11&item_id=beard")
	if !has(got, "11:15") || has(got, "11:30") {
		t.Fatalf("45 minute service must end by lunch: %v", got)
	}
	if w := env.do(t, http.MethodGet, "/api/slots?date=2025-03-11&item_id=wax", nil, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("product lookup: expected 400, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/slots?date=2025-03-11&item_id=nope", nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown item: expected 404, got %d", w.Code)
	}
}

func TestSlotsBadRequests(t *testing.T) {
	env := newTestEnv(t)
	for _, q := range []string{
		"duration=30",
		"date=11-03-2025&duration=30",
		"date=2025-03-11",
		"date=2025-03-11&duration=0",
		"date=2025-03-11&duration=abc",
	} {
		if w := env.do(t, http.MethodGet, "/api/slots?"+q, nil, ""); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestSlotsIncludeUnavailableAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	path := "/api/slots?date=2025-03-11&duration=30&include_unavailable=1"

	public := decode[slotsResp](t, env.do(t, http.MethodGet, path, nil, ""))
	for _, s := range public.Slots {
		if !s.Available {
			t.Fatalf("public request got unavailable slot %s", s.Start)
		}
	}
	admin := decode[slotsResp](t, env.do(t, http.MethodGet, path, nil, testToken))
	var lunch *slotView
	for i := range admin.Slots {
		if admin.Slots[i].Start == "12:00" {
			lunch = &admin.Slots[i]
		}
	}
	if lunch == nil || lunch.Available {
		t.Fatalf("admin view should list 12:00 as unavailable, got %+v", lunch)
	}
}

func bookingBody(itemID, date, start string, products ...string) map[string]any {
	return map[string]any{
		"client_name":  "Ana",
		"client_phone": "555-0100",
		"item_id":      itemID,
		"product_ids":  products,
		"date":         date,
		"start":        start,
	}
}

func TestCreateAppointment(t *testing.T) {
	env := newTestEnv(t)
	env.addItem(CatalogItem{ID: "cut", Kind: KindService, Name: "Cut", DurationMins: 30, Price: decimal.RequireFromString("20.00")})
	env.addItem(CatalogItem{ID: "wax", Kind: KindProduct, Name: "Wax", Price: decimal.RequireFromString("5.50")})

	w := env.do(t, http.MethodPost, "/api/appointments", bookingBody("cut", "2025-03-11", "10:00", "wax"), "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	appt := decode[Appointment](t, w)
	if appt.StartTime != "10:00" || appt.StartMins != 600 || appt.DurationMins != 30 {
		t.Fatalf("unexpected appointment %+v", appt)
	}
	if !appt.Total.Equal(decimal.RequireFromString("25.5")) {
		t.Fatalf("expected total 25.5, got %s", appt.Total)
	}
	if appt.Status != StatusConfirmed || appt.ID == "" {
		t.Fatalf("unexpected status/id %q %q", appt.Status, appt.ID)
	}
	if !has(env.cache.invalidated, "2025-03-11") {
		t.Fatalf("booking must invalidate its date, got %v", env.cache.invalidated)
	}

	got := env.slots(t, "date=2025-03-11&duration=30")
	for _, s := range []string{"09:45", "10:00", "10:15"} {
		if has(got, s) {
			t.Fatalf("%s overlaps the booking but was offered", s)
		}
	}
	if !has(got, "09:30") || !has(got, "10:30") {
		t.Fatalf("neighbours of the booking must stay open: %v", got)
	}

	if w := env.do(t, http.MethodPost, "/api/appointments", bookingBody("cut", "2025-03-11", "10:15"), ""); w.Code != http.StatusConflict {
		t.Fatalf("overlapping booking: expected 409, got %d", w.Code)
	}
}

func TestCreateAppointmentRejects(t *testing.T) {
	env := newTestEnv(t)
	env.addItem(CatalogItem{ID: "cut", Kind: KindService, Name: "Cut", DurationMins: 30})
	env.addItem(CatalogItem{ID: "wax", Kind: KindProduct, Name: "Wax"})

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"off grid", bookingBody("cut", "2025-03-11", "10:05"), http.StatusConflict},
		{"closed day", bookingBody("cut", "2025-03-16", "10:00"), http.StatusConflict},
		{"lunch", bookingBody("cut", "2025-03-11", "12:00"), http.StatusConflict},
		{"past", bookingBody("cut", "2025-03-07", "10:00"), http.StatusConflict},
		{"product as item", bookingBody("wax", "2025-03-11", "10:00"), http.StatusBadRequest},
		{"unknown product", bookingBody("cut", "2025-03-11", "10:00", "nope"), http.StatusBadRequest},
		{"bad start", bookingBody("cut", "2025-03-11", "ten"), http.StatusBadRequest},
		{"unknown item", bookingBody("nope", "2025-03-11", "10:00"), http.StatusNotFound},
		{"missing name", map[string]any{"item_id": "cut", "date": "2025-03-11", "start": "10:00"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := env.do(t, http.MethodPost, "/api/appointments", tt.body, ""); w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
	if len(env.store.appointments) != 0 {
		t.Fatalf("rejected bookings were stored: %v", env.store.appointments)
	}
}

func TestCancelReleasesSlot(t *testing.T) {
	env := newTestEnv(t)
	env.addItem(CatalogItem{ID: "cut", Kind: KindService, Name: "Cut", DurationMins: 30})
	appt := decode[Appointment](t, env.do(t, http.MethodPost, "/api/appointments", bookingBody("cut", "2025-03-11", "10:00"), ""))

	if w := env.do(t, http.MethodDelete, "/api/appointments/"+appt.ID, nil, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("cancel without token: expected 401, got %d", w.Code)
	}
	w := env.do(t, http.MethodDelete, "/api/appointments/"+appt.ID, nil, testToken)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode[Appointment](t, w); got.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}
	if got := env.slots(t, "date=2025-03-11&duration=30"); !has(got, "10:00") {
		t.Fatalf("cancelled booking should free 10:00: %v", got)
	}
	revive := map[string]any{"status": "confirmed"}
	if w := env.do(t, http.MethodPatch, "/api/appointments/"+appt.ID, revive, testToken); w.Code != http.StatusConflict {
		t.Fatalf("reviving cancelled: expected 409, got %d", w.Code)
	}
}

func TestUpdateAppointmentStatus(t *testing.T) {
	env := newTestEnv(t)
	env.addItem(CatalogItem{ID: "cut", Kind: KindService, Name: "Cut", DurationMins: 30})
	appt := decode[Appointment](t, env.do(t, http.MethodPost, "/api/appointments", bookingBody("cut", "2025-03-11", "09:00"), ""))

	w := env.do(t, http.MethodPatch, "/api/appointments/"+appt.ID, map[string]any{"status": "completed"}, testToken)
	if w.Code != http.StatusOK || decode[Appointment](t, w).Status != StatusCompleted {
		t.Fatalf("complete: got %d %s", w.Code, w.Body.String())
	}
	if w := env.do(t, http.MethodPatch, "/api/appointments/"+appt.ID, map[string]any{"status": "lost"}, testToken); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid status: expected 400, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPatch, "/api/appointments/missing", map[string]any{"status": "completed"}, testToken); w.Code != http.StatusNotFound {
		t.Fatalf("unknown id: expected 404, got %d", w.Code)
	}

	list := decode[[]Appointment](t, env.do(t, http.MethodGet, "/api/appointments?date=2025-03-11", nil, testToken))
	if len(list) != 1 || list[0].ID != appt.ID {
		t.Fatalf("unexpected list %+v", list)
	}
	if w := env.do(t, http.MethodGet, "/api/appointments", nil, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("list without token: expected 401, got %d", w.Code)
	}
}

func TestClosedDayAnnouncement(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{
		"title":           "Holiday",
		"affects_booking": "closed_day",
		"effective_date":  "2025-03-11",
	}
	if w := env.do(t, http.MethodPost, "/api/announcements", body, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("create without token: expected 401, got %d", w.Code)
	}
	w := env.do(t, http.MethodPost, "/api/announcements", body, testToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if got := env.slots(t, "date=2025-03-11&duration=30"); len(got) != 0 {
		t.Fatalf("closed day should have no slots, got %v", got)
	}
	if got := env.slots(t, "date=2025-03-12&duration=30"); len(got) != 30 {
		t.Fatalf("other dates unaffected, got %d slots", len(got))
	}

	an := decode[Announcement](t, w)
	if w := env.do(t, http.MethodDelete, "/api/announcements/"+an.ID, nil, testToken); w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}
	if got := env.slots(t, "date=2025-03-11&duration=30"); len(got) != 30 {
		t.Fatalf("deleting the announcement should reopen the day, got %d slots", len(got))
	}
}

func TestCustomHoursAnnouncement(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{
		"title":           "Short day",
		"affects_booking": "custom_hours",
		"effective_date":  "2025-03-11",
		"custom_start":    "14:00",
		"custom_end":      "16:00",
	}
	if w := env.do(t, http.MethodPost, "/api/announcements", body, testToken); w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	got := env.slots(t, "date=2025-03-11&duration=60")
	want := []string{"14:00", "14:15", "14:30", "14:45", "15:00"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestAnnouncementValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := []map[string]any{
		{"title": "x", "affects_booking": "closed_day"},
		{"title": "x", "affects_booking": "custom_hours", "effective_date": "2025-03-11"},
		{"title": "x", "affects_booking": "custom_hours", "effective_date": "2025-03-11", "custom_start": "16:00", "custom_end": "14:00"},
		{"title": "x", "affects_booking": "flood", "effective_date": "2025-03-11"},
		{"title": "x", "affects_booking": "closed_day", "effective_date": "tomorrow"},
	}
	for i, body := range tests {
		if w := env.do(t, http.MethodPost, "/api/announcements", body, testToken); w.Code != http.StatusBadRequest {
			t.Fatalf("case %d: expected 400, got %d: %s", i, w.Code, w.Body.String())
		}
	}
}

func TestPublicAnnouncementsActiveOnly(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/announcements", map[string]any{"title": "Open late"}, testToken)
	env.do(t, http.MethodPost, "/api/announcements", map[string]any{"title": "Old", "active": false}, testToken)

	public := decode[[]Announcement](t, env.do(t, http.MethodGet, "/api/announcements?all=1", nil, ""))
	if len(public) != 1 || public[0].Title != "Open late" {
		t.Fatalf("public list should only show active, got %+v", public)
	}
	all := decode[[]Announcement](t, env.do(t, http.MethodGet, "/api/announcements?all=1", nil, testToken))
	if len(all) != 2 {
		t.Fatalf("admin list should show both, got %d", len(all))
	}
}

func TestUpdateSettingsReportsIssues(t *testing.T) {
	env := newTestEnv(t)
	s := DefaultSettings(15)
	s.Days[2].LunchStart, s.Days[2].LunchEnd = "19:00", "20:00"
	s.Days[3].Breaks = []Break{{Start: "10:00", End: "10:30"}, {Start: "10:15", End: "10:45"}}

	if w := env.do(t, http.MethodPut, "/api/settings", s, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("without token: expected 401, got %d", w.Code)
	}
	w := env.do(t, http.MethodPut, "/api/settings", s, testToken)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[struct {
		Days []DayIssues `json:"days"`
	}](t, w)
	if len(resp.Days) != 2 {
		t.Fatalf("expected issues for two days, got %+v", resp.Days)
	}
	if resp.Days[0].Weekday != 2 || resp.Days[0].Issues[0].Kind != "lunch_outside_work_hours" {
		t.Fatalf("unexpected tuesday issues %+v", resp.Days[0])
	}
	if resp.Days[1].Weekday != 3 || resp.Days[1].Issues[0].Kind != "overlapping_breaks" {
		t.Fatalf("unexpected wednesday issues %+v", resp.Days[1])
	}
	if env.store.settings.Days[2].LunchStart != "12:00" {
		t.Fatalf("invalid settings must not be saved")
	}
}

func TestUpdateSettingsApplies(t *testing.T) {
	env := newTestEnv(t)
	s := DefaultSettings(30)
	s.Days[2] = DaySettings{Weekday: 2}
	s.MonthlyRent = decimal.RequireFromString("800")

	if w := env.do(t, http.MethodPut, "/api/settings", s, testToken); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := env.slots(t, "date=2025-03-11&duration=30"); len(got) != 0 {
		t.Fatalf("tuesday was closed, got %v", got)
	}
	got := env.slots(t, "date=2025-03-12&duration=30")
	if has(got, "09:15") || !has(got, "09:30") {
		t.Fatalf("30 minute step expected, got %v", got)
	}

	public := decode[Settings](t, env.do(t, http.MethodGet, "/api/settings", nil, ""))
	if !public.MonthlyRent.IsZero() {
		t.Fatalf("rent must not be public, got %s", public.MonthlyRent)
	}
	admin := decode[Settings](t, env.do(t, http.MethodGet, "/api/settings", nil, testToken))
	if !admin.MonthlyRent.Equal(decimal.RequireFromString("800")) {
		t.Fatalf("admin should see rent, got %s", admin.MonthlyRent)
	}
}

func TestUpdateSettingsRejectsSlotLength(t *testing.T) {
	env := newTestEnv(t)
	s := DefaultSettings(0)
	if w := env.do(t, http.MethodPut, "/api/settings", s, testToken); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestLoginIssuesUsableToken(t *testing.T) {
	env := newTestEnv(t)
	// issued tokens are verified against wall-clock time
	env.setNow(time.Now())

	if w := env.do(t, http.MethodPost, "/api/auth/login", map[string]any{"password": "wrong"}, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", w.Code)
	}
	w := env.do(t, http.MethodPost, "/api/auth/login", map[string]any{"password": "letmein"}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", w.Code)
	}
	resp := decode[struct {
		Token string `json:"token"`
	}](t, w)
	if w := env.do(t, http.MethodGet, "/api/appointments", nil, resp.Token); w.Code != http.StatusOK {
		t.Fatalf("jwt should authorize, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/appointments", nil, "garbage"); w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected 401, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, http.MethodGet, "/healthz", nil, ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
