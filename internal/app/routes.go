package app

import "github.com/gin-gonic/gin"

// Routes registers the HTTP API. limiter guards the public booking endpoints.
func (a *App) Routes(r *gin.Engine, au Authenticator, limiter gin.HandlerFunc) {
	r.GET("/healthz", a.HealthHandler)
	// OAuth2 callback (must be before auth middleware)
	r.GET("/oauth2callback", a.GoogleOAuth2CallbackHandler)

	api := r.Group("/api")
	api.Use(au.Optional())
	{
		api.POST("/auth/login", limiter, a.LoginHandler)

		api.GET("/settings", a.GetSettingsHandler)
		api.GET("/catalog", a.ListCatalogHandler)
		api.GET("/announcements", a.ListAnnouncementsHandler)
		api.GET("/slots", limiter, a.GetSlotsHandler)
		api.POST("/appointments", limiter, a.CreateAppointmentHandler)
	}

	admin := api.Group("")
	admin.Use(au.Required())
	{
		admin.PUT("/settings", a.UpdateSettingsHandler)

		admin.POST("/catalog", a.CreateCatalogItemHandler)
		admin.PUT("/catalog/:id", a.UpdateCatalogItemHandler)
		admin.DELETE("/catalog/:id", a.DeleteCatalogItemHandler)

		admin.POST("/announcements", a.CreateAnnouncementHandler)
		admin.PUT("/announcements/:id", a.UpdateAnnouncementHandler)
		admin.DELETE("/announcements/:id", a.DeleteAnnouncementHandler)

		admin.GET("/appointments", a.ListAppointmentsHandler)
		admin.PATCH("/appointments/:id", a.UpdateAppointmentHandler)
		admin.DELETE("/appointments/:id", a.CancelAppointmentHandler)

		rent := admin.Group("/rent")
		{
			rent.GET("/payments", a.ListRentPaymentsHandler)
			rent.POST("/payments", a.CreateRentPaymentHandler)
			rent.DELETE("/payments/:id", a.DeleteRentPaymentHandler)
			rent.GET("/summary", a.RentSummaryHandler)
		}

		// Google Calendar integration routes
		calendar := admin.Group("/calendar")
		{
			calendar.GET("/auth", a.GoogleAuthHandler)
			calendar.GET("/events", a.GetGoogleCalendarEvents)
			calendar.GET("/calendars", a.GetGoogleCalendarList)
		}
	}
}
