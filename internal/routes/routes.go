package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/parisgate/parisgate/internal/auth"
	"github.com/parisgate/parisgate/internal/config"
	"github.com/parisgate/parisgate/internal/geo"
	"github.com/parisgate/parisgate/internal/identity"
	"github.com/parisgate/parisgate/internal/metrics"
	"github.com/parisgate/parisgate/internal/middleware"
	"github.com/parisgate/parisgate/internal/notification"
	"github.com/parisgate/parisgate/internal/phone"
	"github.com/parisgate/parisgate/internal/profile"
	"github.com/parisgate/parisgate/internal/signup"
)

// Deps aggregates shared dependencies required to wire routes. Nil stores
// fall back to in-memory implementations in development; the optional ports
// default to the production adapters chosen from Cfg.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Mongo   *mongo.Database
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	Geocoder  geo.GeocodingService
	Notifier  notification.Notifier
	Verifiers map[string]identity.SocialVerifier
	Accounts  identity.Repository
	Profiles  profile.Store
	// AccessLog enables fiber's plain-text access log.
	AccessLog bool
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Mongo == nil {
			return fmt.Errorf("mongo is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.AccessLog {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	// Health and metrics
	RegisterHealthRoutes(app, d)

	// Services
	geocoder := d.Geocoder
	if geocoder == nil {
		geocoder = geo.NewAdresseClient(d.Cfg.GeocoderURL, nil)
	}
	checker := geo.NewChecker(geocoder,
		geo.WithReference(geo.Coordinate{Latitude: d.Cfg.ReferenceLatitude, Longitude: d.Cfg.ReferenceLongitude}),
		geo.WithMaxDistanceKm(d.Cfg.MaxDistanceKm),
		geo.WithMetrics(d.Metrics),
	)
	phones := phone.NewNormalizer(d.Cfg.PhoneDefaultRegion)

	identityRepo := d.Accounts
	switch {
	case identityRepo != nil:
	case d.DB != nil:
		identityRepo = identity.NewPostgresRepository(d.DB)
	default:
		identityRepo = identity.NewMemoryRepository()
	}
	verifiers := d.Verifiers
	if verifiers == nil && d.Cfg.GoogleClientID != "" {
		verifiers = map[string]identity.SocialVerifier{
			identity.ProviderGoogle: identity.NewGoogleVerifier(d.Cfg.GoogleClientID),
		}
	}
	identitySvc := identity.NewService(identityRepo, verifiers)

	notifier := d.Notifier
	if notifier == nil {
		if d.Cfg.PostmarkToken != "" {
			notifier = notification.NewPostmarkNotifier(d.Cfg.PostmarkToken, d.Cfg.EmailSender)
		} else {
			notifier = notification.NewLoggerNotifier(d.Logger)
		}
	}
	authSvc := auth.NewService(d.Cfg, identitySvc, notifier)

	profileStore := d.Profiles
	switch {
	case profileStore != nil:
	case d.Mongo != nil:
		profileStore = profile.NewMongoStore(d.Mongo)
	default:
		profileStore = profile.NewMemoryStore()
	}
	profileSvc := profile.NewService(profileStore, checker, phones)
	orchestrator := signup.NewOrchestrator(identitySvc, authSvc, profileStore, checker, phones, d.Logger, d.Metrics)

	// API routes
	api := app.Group("/api")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.GetRequestID(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterAddressRoutes(api, checker)
	var idempotency fiber.Handler
	if d.Cache != nil {
		idempotency = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	RegisterSignupRoutes(api, orchestrator, idempotency, d.Logger)

	rateLimiter := middleware.LoginRateLimit(d.Cache, d.Cfg.LoginAttemptsPerMinute, d.Logger)
	jwtmw := middleware.JWTAuth(authSvc)
	RegisterAuthRoutes(api, authSvc, profileSvc, rateLimiter, jwtmw, d.Metrics, d.Logger)

	// Protected routes. The gate is attached per route so unknown /api paths
	// still answer 404.
	RegisterProfileRoutes(api, profileSvc, jwtmw)

	return nil
}
