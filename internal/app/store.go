package app

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrSlotTaken      = errors.New("slot already booked")
	ErrSlotNotOffered = errors.New("slot not available")
	ErrNotBookable    = errors.New("item is not bookable")
	ErrInvalidInput   = errors.New("invalid input")
)

// Store is the persistence collaborator. The slot engine never calls it directly;
// App loads values through it and passes them down.
type Store interface {
	Ping(ctx context.Context) error

	GetSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, s *Settings) error

	ListCatalog(ctx context.Context, activeOnly bool) ([]CatalogItem, error)
	GetCatalogItem(ctx context.Context, id string) (CatalogItem, error)
	CreateCatalogItem(ctx context.Context, item *CatalogItem) error
	UpdateCatalogItem(ctx context.Context, item *CatalogItem) error
	DeleteCatalogItem(ctx context.Context, id string) error

	ListAnnouncements(ctx context.Context, activeOnly bool) ([]Announcement, error)
	CreateAnnouncement(ctx context.Context, a *Announcement) error
	UpdateAnnouncement(ctx context.Context, a *Announcement) error
	DeleteAnnouncement(ctx context.Context, id string) error

	// ListAppointments returns every appointment on date (YYYY-MM-DD), or all when date is empty.
	ListAppointments(ctx context.Context, date string) ([]Appointment, error)
	GetAppointment(ctx context.Context, id string) (Appointment, error)
	// CreateAppointment stores appt unless an occupying appointment overlaps it (ErrSlotTaken).
	CreateAppointment(ctx context.Context, appt *Appointment) error
	UpdateAppointmentStatus(ctx context.Context, id string, status AppointmentStatus) (Appointment, error)

	ListRentPayments(ctx context.Context, year int) ([]RentPayment, error)
	CreateRentPayment(ctx context.Context, p *RentPayment) error
	DeleteRentPayment(ctx context.Context, id string) error

	CalendarToken(ctx context.Context) ([]byte, error)
	SaveCalendarToken(ctx context.Context, token []byte, at time.Time) error
}
