package routes

import (
	"hoursrelay/internal/handlers"
	"hoursrelay/internal/middleware"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options - то, чем маршруты отличаются между окружениями.
type Options struct {
	ServiceJWTSecret string
	VerifyLimiter    *middleware.IPRateLimiter
}

func InitRoutes(
	router *mux.Router,
	emailHandler *handlers.EmailHandler,
	healthHandler *handlers.HealthHandler,
	opts Options,
) {
	router.Use(middleware.RequestID, middleware.Recoverer, middleware.Logging)

	router.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/email").Subrouter()

	// --- Публичные маршруты ---
	api.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)

	verify := api.PathPrefix("/verify-hours").Subrouter()
	if opts.VerifyLimiter != nil {
		verify.Use(opts.VerifyLimiter.Middleware("verify-hours"))
	}
	verify.HandleFunc("", emailHandler.VerifyHours).Methods(http.MethodGet)

	// --- Вызовы от платформы, защищены service JWT ---
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ServiceAuth(opts.ServiceJWTSecret), middleware.AnyRole("service", "admin"))

	protected.HandleFunc("/send-verification-email", emailHandler.SendVerificationEmail).Methods(http.MethodPost)
	protected.HandleFunc("/send-notification", emailHandler.SendNotification).Methods(http.MethodPost)
	protected.HandleFunc("/send-hours-notification", emailHandler.SendHoursNotification).Methods(http.MethodPost)
	protected.HandleFunc("/hours-update-notification", emailHandler.HoursUpdateNotification).Methods(http.MethodPost)
	protected.HandleFunc("/send-opportunity-registration", emailHandler.SendOpportunityRegistration).Methods(http.MethodPost)
	protected.HandleFunc("/send-opportunity-reminder", emailHandler.SendOpportunityReminder).Methods(http.MethodPost)
	protected.HandleFunc("/send-opportunity-unregistration", emailHandler.SendOpportunityUnregistration).Methods(http.MethodPost)
}
