package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"barbershop-service/internal/schedule"
)

// memStore is an in-memory Store for handler tests.
type memStore struct {
	mu            sync.Mutex
	settings      Settings
	catalog       map[string]CatalogItem
	announcements map[string]Announcement
	appointments  map[string]Appointment
	rent          map[string]RentPayment
	token         []byte
}

func newMemStore() *memStore {
	return &memStore{
		settings:      DefaultSettings(15),
		catalog:       map[string]CatalogItem{},
		announcements: map[string]Announcement{},
		appointments:  map[string]Appointment{},
		rent:          map[string]RentPayment{},
	}
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) GetSettings(context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, nil
}

func (m *memStore) SaveSettings(_ context.Context, s *Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = *s
	return nil
}

func (m *memStore) ListCatalog(_ context.Context, activeOnly bool) ([]CatalogItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CatalogItem
	for _, it := range m.catalog {
		if activeOnly && !it.Active {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) GetCatalogItem(_ context.Context, id string) (CatalogItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.catalog[id]
	if !ok {
		return CatalogItem{}, ErrNotFound
	}
	return it, nil
}

func (m *memStore) CreateCatalogItem(_ context.Context, it *CatalogItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog[it.ID] = *it
	return nil
}

func (m *memStore) UpdateCatalogItem(_ context.Context, it *CatalogItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.catalog[it.ID]; !ok {
		return ErrNotFound
	}
	m.catalog[it.ID] = *it
	return nil
}

func (m *memStore) DeleteCatalogItem(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.catalog[id]; !ok {
		return ErrNotFound
	}
	delete(m.catalog, id)
	return nil
}

func (m *memStore) ListAnnouncements(_ context.Context, activeOnly bool) ([]Announcement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Announcement
	for _, an := range m.announcements {
		if activeOnly && !an.Active {
			continue
		}
		out = append(out, an)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) CreateAnnouncement(_ context.Context, an *Announcement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.announcements[an.ID] = *an
	return nil
}

func (m *memStore) UpdateAnnouncement(_ context.Context, an *Announcement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.announcements[an.ID]
	if !ok {
		return ErrNotFound
	}
	an.CreatedAt = old.CreatedAt
	m.announcements[an.ID] = *an
	return nil
}

func (m *memStore) DeleteAnnouncement(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.announcements[id]; !ok {
		return ErrNotFound
	}
	delete(m.announcements, id)
	return nil
}

func (m *memStore) ListAppointments(_ context.Context, date string) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, ap := range m.appointments {
		if date == "" || ap.Date == date {
			out = append(out, ap)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartMins < out[j].StartMins
	})
	return out, nil
}

func (m *memStore) GetAppointment(_ context.Context, id string) (Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ap, ok := m.appointments[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	return ap, nil
}

func (m *memStore) CreateAppointment(_ context.Context, appt *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := schedule.Interval{Start: appt.StartMins, End: appt.StartMins + appt.DurationMins}
	for _, ap := range m.appointments {
		if ap.Date != appt.Date || !ap.Status.Occupies() {
			continue
		}
		if want.Overlaps(schedule.Interval{Start: ap.StartMins, End: ap.StartMins + ap.DurationMins}) {
			return ErrSlotTaken
		}
	}
	m.appointments[appt.ID] = *appt
	return nil
}

func (m *memStore) UpdateAppointmentStatus(_ context.Context, id string, status AppointmentStatus) (Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ap, ok := m.appointments[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	ap.Status = status
	m.appointments[id] = ap
	return ap, nil
}

func (m *memStore) ListRentPayments(_ context.Context, year int) ([]RentPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := fmt.Sprintf("%04d-", year)
	var out []RentPayment
	for _, p := range m.rent {
		if strings.HasPrefix(p.Period, prefix) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

func (m *memStore) CreateRentPayment(_ context.Context, p *RentPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rent[p.ID] = *p
	return nil
}

func (m *memStore) DeleteRentPayment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rent[id]; !ok {
		return ErrNotFound
	}
	delete(m.rent, id)
	return nil
}

func (m *memStore) CalendarToken(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return nil, ErrNotFound
	}
	return m.token, nil
}

func (m *memStore) SaveCalendarToken(_ context.Context, token []byte, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

// memCache records invalidations so tests can see them.
type memCache struct {
	mu          sync.Mutex
	entries     map[string][]schedule.TimeSlot
	invalidated []string
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]schedule.TimeSlot{}}
}

func (c *memCache) Get(_ context.Context, key string) ([]schedule.TimeSlot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[key]
	return s, ok
}

func (c *memCache) Set(_ context.Context, key string, slots []schedule.TimeSlot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = slots
}

func (c *memCache) InvalidateDate(_ context.Context, date string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, date)
	for k := range c.entries {
		if strings.HasPrefix(k, "slots:"+date+":") {
			delete(c.entries, k)
		}
	}
}

func (c *memCache) InvalidateAll(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, "*")
	c.entries = map[string][]schedule.TimeSlot{}
}

var _ Store = (*memStore)(nil)
var _ SlotCache = (*memCache)(nil)
