package app

import (
	"time"

	"go.uber.org/zap"
)

// App wires the persistence, cache and calendar collaborators behind the HTTP handlers.
type App struct {
	Store    Store
	Cache    SlotCache
	Calendar BusyProvider
	Google   *GoogleCalendarConfig
	Log      *zap.Logger

	// Location is the shop's time zone; dates and "now" are read in it.
	Location *time.Location
	Clock    func() time.Time

	JWTSecret string
	// AdminPasswordHash is the bcrypt hash the login endpoint checks against.
	AdminPasswordHash string
}

func (a *App) Now() time.Time {
	now := time.Now()
	if a.Clock != nil {
		now = a.Clock()
	}
	return now.In(a.loc())
}

func (a *App) loc() *time.Location {
	if a.Location == nil {
		return time.UTC
	}
	return a.Location
}

func (a *App) cache() SlotCache {
	if a.Cache == nil {
		return noopCache{}
	}
	return a.Cache
}

func (a *App) logger() *zap.Logger {
	if a.Log == nil {
		return zap.NewNop()
	}
	return a.Log
}

// ParseDate reads a YYYY-MM-DD date as midnight in the shop's time zone.
func (a *App) ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, a.loc())
}

const dateLayout = "2006-01-02"
