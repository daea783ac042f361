package app

import (
	"time"

	"github.com/shopspring/decimal"

	"barbershop-service/internal/schedule"
)

type Break struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DaySettings are the standing hours for one weekday (0 = Sunday).
type DaySettings struct {
	Weekday    int     `json:"weekday"`
	Available  bool    `json:"available"`
	Start      string  `json:"start,omitempty"`
	End        string  `json:"end,omitempty"`
	LunchStart string  `json:"lunch_start,omitempty"`
	LunchEnd   string  `json:"lunch_end,omitempty"`
	Breaks     []Break `json:"breaks,omitempty"`
}

type Settings struct {
	ShopName       string          `json:"shop_name"`
	SlotLengthMins int             `json:"slot_interval_minutes"`
	MonthlyRent    decimal.Decimal `json:"monthly_rent"`
	Days           []DaySettings   `json:"days"`
	UpdatedAt      time.Time       `json:"updated_at,omitempty"`
}

type ItemKind string

const (
	KindService ItemKind = "service"
	KindCombo   ItemKind = "combo"
	KindProduct ItemKind = "product"
)

// CatalogItem is something a client can book (service, combo) or buy (product).
type CatalogItem struct {
	ID           string          `json:"id"`
	Kind         ItemKind        `json:"kind"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	DurationMins int             `json:"duration_minutes"`
	ServiceIDs   []string        `json:"service_ids,omitempty"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at,omitempty"`
}

func (i CatalogItem) Bookable() bool {
	return i.Active && i.Kind != KindProduct && i.DurationMins > 0
}

type Announcement struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Active         bool      `json:"active"`
	AffectsBooking string    `json:"affects_booking"`
	EffectiveDate  *string   `json:"effective_date,omitempty"`
	CustomStart    *string   `json:"custom_start,omitempty"`
	CustomEnd      *string   `json:"custom_end,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

type AppointmentStatus string

const (
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Occupies reports whether an appointment in this status still blocks its time.
func (s AppointmentStatus) Occupies() bool {
	return s != StatusCancelled
}

type Appointment struct {
	ID           string            `json:"id"`
	ClientName   string            `json:"client_name"`
	ClientPhone  string            `json:"client_phone"`
	ItemID       string            `json:"item_id"`
	ItemName     string            `json:"item_name"`
	ProductIDs   []string          `json:"product_ids,omitempty"`
	Date         string            `json:"date"`
	StartMins    int               `json:"start_minutes"`
	DurationMins int               `json:"duration_minutes"`
	StartTime    string            `json:"start_time"`
	Total        decimal.Decimal   `json:"total"`
	Status       AppointmentStatus `json:"status"`
	Notes        string            `json:"notes,omitempty"`
	CreatedAt    time.Time         `json:"created_at,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at,omitempty"`
}

type RentPayment struct {
	ID        string          `json:"id"`
	Period    string          `json:"period"` // YYYY-MM
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method,omitempty"`
	Note      string          `json:"note,omitempty"`
	PaidAt    time.Time       `json:"paid_at"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
}

func (a *Appointment) fillStartTime() {
	a.StartTime = schedule.FormatClock(a.StartMins)
}
