package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	DB *pgxpool.Pool

	// DefaultSlotLength seeds settings when the shop has never saved any.
	DefaultSlotLength int
}

func NewPGStore(pool *pgxpool.Pool, defaultSlotLength int) *PGStore {
	return &PGStore{DB: pool, DefaultSlotLength: defaultSlotLength}
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

func (s *PGStore) GetSettings(ctx context.Context) (Settings, error) {
	var (
		doc       []byte
		updatedAt time.Time
	)
	err := s.DB.QueryRow(ctx, `SELECT document, updated_at FROM shop_settings WHERE id=1`).Scan(&doc, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultSettings(s.DefaultSlotLength), nil
	}
	if err != nil {
		return Settings{}, err
	}
	var out Settings
	if err := json.Unmarshal(doc, &out); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	out.UpdatedAt = updatedAt
	return out, nil
}

func (s *PGStore) SaveSettings(ctx context.Context, in *Settings) error {
	in.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(in)
	if err != nil {
		return err
	}
	q := `INSERT INTO shop_settings (id, document, updated_at) VALUES (1, $1, $2)
	      ON CONFLICT (id) DO UPDATE SET document=EXCLUDED.document, updated_at=EXCLUDED.updated_at`
	_, err = s.DB.Exec(ctx, q, doc, in.UpdatedAt)
	return err
}

const catalogColumns = `id::text, kind, name, description, price, duration_minutes, service_ids, active, created_at, updated_at`

func scanCatalogItem(row pgx.Row) (CatalogItem, error) {
	var it CatalogItem
	var kind string
	err := row.Scan(&it.ID, &kind, &it.Name, &it.Description, &it.Price, &it.DurationMins,
		&it.ServiceIDs, &it.Active, &it.CreatedAt, &it.UpdatedAt)
	it.Kind = ItemKind(kind)
	return it, err
}

func (s *PGStore) ListCatalog(ctx context.Context, activeOnly bool) ([]CatalogItem, error) {
	q := `SELECT ` + catalogColumns + ` FROM catalog_items`
	if activeOnly {
		q += ` WHERE active`
	}
	q += ` ORDER BY kind, name`
	rows, err := s.DB.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CatalogItem
	for rows.Next() {
		it, err := scanCatalogItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *PGStore) GetCatalogItem(ctx context.Context, id string) (CatalogItem, error) {
	q := `SELECT ` + catalogColumns + ` FROM catalog_items WHERE id::text=$1`
	it, err := scanCatalogItem(s.DB.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return CatalogItem{}, ErrNotFound
	}
	return it, err
}

func (s *PGStore) CreateCatalogItem(ctx context.Context, it *CatalogItem) error {
	q := `INSERT INTO catalog_items
	      (id, kind, name, description, price, duration_minutes, service_ids, active, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)`
	_, err := s.DB.Exec(ctx, q, it.ID, string(it.Kind), it.Name, it.Description, it.Price,
		it.DurationMins, nonNil(it.ServiceIDs), it.Active, it.CreatedAt)
	return err
}

func (s *PGStore) UpdateCatalogItem(ctx context.Context, it *CatalogItem) error {
	q := `UPDATE catalog_items
	      SET kind=$2, name=$3, description=$4, price=$5, duration_minutes=$6,
	          service_ids=$7, active=$8, updated_at=$9
	      WHERE id::text=$1`
	res, err := s.DB.Exec(ctx, q, it.ID, string(it.Kind), it.Name, it.Description, it.Price,
		it.DurationMins, nonNil(it.ServiceIDs), it.Active, it.UpdatedAt)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) DeleteCatalogItem(ctx context.Context, id string) error {
	res, err := s.DB.Exec(ctx, `DELETE FROM catalog_items WHERE id::text=$1`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const announcementColumns = `id::text, title, message, active, affects_booking,
	to_char(effective_date, 'YYYY-MM-DD'), custom_start, custom_end, created_at, updated_at`

func (s *PGStore) ListAnnouncements(ctx context.Context, activeOnly bool) ([]Announcement, error) {
	q := `SELECT ` + announcementColumns + ` FROM announcements`
	if activeOnly {
		q += ` WHERE active`
	}
	q += ` ORDER BY created_at DESC`
	rows, err := s.DB.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Announcement
	for rows.Next() {
		var a Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Message, &a.Active, &a.AffectsBooking,
			&a.EffectiveDate, &a.CustomStart, &a.CustomEnd, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PGStore) CreateAnnouncement(ctx context.Context, a *Announcement) error {
	q := `INSERT INTO announcements
	      (id, title, message, active, affects_booking, effective_date, custom_start, custom_end, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6::date,$7,$8,$9,$9)`
	_, err := s.DB.Exec(ctx, q, a.ID, a.Title, a.Message, a.Active, a.AffectsBooking,
		a.EffectiveDate, a.CustomStart, a.CustomEnd, a.CreatedAt)
	return err
}

func (s *PGStore) UpdateAnnouncement(ctx context.Context, a *Announcement) error {
	q := `UPDATE announcements
	      SET title=$2, message=$3, active=$4, affects_booking=$5, effective_date=$6::date,
	          custom_start=$7, custom_end=$8, updated_at=$9
	      WHERE id::text=$1
	      RETURNING created_at`
	err := s.DB.QueryRow(ctx, q, a.ID, a.Title, a.Message, a.Active, a.AffectsBooking,
		a.EffectiveDate, a.CustomStart, a.CustomEnd, a.UpdatedAt).Scan(&a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *PGStore) DeleteAnnouncement(ctx context.Context, id string) error {
	res, err := s.DB.Exec(ctx, `DELETE FROM announcements WHERE id::text=$1`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const appointmentColumns = `id::text, client_name, client_phone, item_id::text, item_name, product_ids,
	to_char(day, 'YYYY-MM-DD'), start_minutes, duration_minutes, total, status, notes, created_at, updated_at`

func scanAppointment(row pgx.Row) (Appointment, error) {
	var a Appointment
	var status string
	err := row.Scan(&a.ID, &a.ClientName, &a.ClientPhone, &a.ItemID, &a.ItemName, &a.ProductIDs,
		&a.Date, &a.StartMins, &a.DurationMins, &a.Total, &status, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	a.Status = AppointmentStatus(status)
	a.fillStartTime()
	return a, err
}

func (s *PGStore) ListAppointments(ctx context.Context, date string) ([]Appointment, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if date != "" {
		q := `SELECT ` + appointmentColumns + ` FROM appointments WHERE day=$1::date ORDER BY start_minutes`
		rows, err = s.DB.Query(ctx, q, date)
	} else {
		q := `SELECT ` + appointmentColumns + ` FROM appointments ORDER BY day, start_minutes`
		rows, err = s.DB.Query(ctx, q)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PGStore) GetAppointment(ctx context.Context, id string) (Appointment, error) {
	q := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id::text=$1`
	a, err := scanAppointment(s.DB.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, ErrNotFound
	}
	return a, err
}

func (s *PGStore) CreateAppointment(ctx context.Context, a *Appointment) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// serialize bookings for the same day
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "appointments:"+a.Date); err != nil {
		return err
	}

	checkQ := `SELECT id::text FROM appointments
	           WHERE day=$1::date AND status NOT IN ('cancelled')
	           AND start_minutes < $3 AND $2 < start_minutes + duration_minutes
	           LIMIT 1`
	var existingID string
	err = tx.QueryRow(ctx, checkQ, a.Date, a.StartMins, a.StartMins+a.DurationMins).Scan(&existingID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if existingID != "" {
		return ErrSlotTaken
	}

	insertQ := `INSERT INTO appointments
		(id, client_name, client_phone, item_id, item_name, product_ids, day, start_minutes,
		 duration_minutes, total, status, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7::date,$8,$9,$10,$11,$12,$13,$13)`
	if _, err := tx.Exec(ctx, insertQ, a.ID, a.ClientName, a.ClientPhone, a.ItemID, a.ItemName,
		nonNil(a.ProductIDs), a.Date, a.StartMins, a.DurationMins, a.Total, string(a.Status), a.Notes,
		a.CreatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) UpdateAppointmentStatus(ctx context.Context, id string, status AppointmentStatus) (Appointment, error) {
	q := `UPDATE appointments SET status=$2, updated_at=now() WHERE id::text=$1
	      RETURNING ` + appointmentColumns
	a, err := scanAppointment(s.DB.QueryRow(ctx, q, id, string(status)))
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, ErrNotFound
	}
	return a, err
}

func (s *PGStore) ListRentPayments(ctx context.Context, year int) ([]RentPayment, error) {
	q := `SELECT id::text, period, amount, method, note, paid_at, created_at
	      FROM rent_payments WHERE period LIKE $1 ORDER BY period, paid_at`
	rows, err := s.DB.Query(ctx, q, fmt.Sprintf("%04d-%%", year))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RentPayment
	for rows.Next() {
		var p RentPayment
		if err := rows.Scan(&p.ID, &p.Period, &p.Amount, &p.Method, &p.Note, &p.PaidAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) CreateRentPayment(ctx context.Context, p *RentPayment) error {
	q := `INSERT INTO rent_payments (id, period, amount, method, note, paid_at, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := s.DB.Exec(ctx, q, p.ID, p.Period, p.Amount, p.Method, p.Note, p.PaidAt, p.CreatedAt)
	return err
}

func (s *PGStore) DeleteRentPayment(ctx context.Context, id string) error {
	res, err := s.DB.Exec(ctx, `DELETE FROM rent_payments WHERE id::text=$1`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) CalendarToken(ctx context.Context) ([]byte, error) {
	var token []byte
	err := s.DB.QueryRow(ctx, `SELECT token FROM calendar_tokens WHERE id=1`).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return token, err
}

func (s *PGStore) SaveCalendarToken(ctx context.Context, token []byte, at time.Time) error {
	q := `INSERT INTO calendar_tokens (id, token, updated_at) VALUES (1, $1, $2)
	      ON CONFLICT (id) DO UPDATE SET token=EXCLUDED.token, updated_at=EXCLUDED.updated_at`
	_, err := s.DB.Exec(ctx, q, token, at)
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
