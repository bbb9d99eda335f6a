package router

import (
	ceSvc "stackyard-backend/internal/application/contractevents"
	contractsvc "stackyard-backend/internal/application/contracts"
	delsvc "stackyard-backend/internal/application/deliveries"
	"stackyard-backend/internal/application/directory"
	listsvc "stackyard-backend/internal/application/listings"
	negsvc "stackyard-backend/internal/application/negotiations"
	"stackyard-backend/internal/config"
	"stackyard-backend/internal/constants"
	"stackyard-backend/internal/infrastructure/database"
	cehandler "stackyard-backend/internal/interfaces/handlers/contractevents"
	contracthandler "stackyard-backend/internal/interfaces/handlers/contracts"
	delhandler "stackyard-backend/internal/interfaces/handlers/deliveries"
	healthhandler "stackyard-backend/internal/interfaces/handlers/health"
	listhandler "stackyard-backend/internal/interfaces/handlers/listings"
	neghandler "stackyard-backend/internal/interfaces/handlers/negotiations"
	"stackyard-backend/internal/middleware"

	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	if g == nil || g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// CreateApp builds the Fiber app with all global middleware and route
// registration. DB and Redis handles come back for startup pings.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		rdb = redis.NewClient(opt)
		app.Use(middleware.HealthMarker(rdb))
	}

	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var errDB error
		db, errDB = database.Open(cfg.DatabaseURL)
		if errDB != nil {
			return nil, nil, nil, errDB
		}
	}

	// Health endpoints (no actor required)
	healthHandlers := &healthhandler.Handlers{
		Rdb:            rdb,
		DB:             &gormDBPinger{db: db},
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/", healthHandlers.Live)
	app.Get("/reset", healthHandlers.Reset)
	app.Get("/health/json", healthHandlers.JSON)
	app.Get("/health/errors", healthHandlers.Errors)

	// db may be nil when DATABASE_URL is unset (e.g. tests); engine routes
	// are only mounted with a database behind them.
	if db != nil {
		dir := &directory.Service{
			DB:       db,
			Rdb:      rdb,
			CacheTTL: time.Duration(cfg.DirectoryCacheTTLMin) * time.Minute,
		}
		app.Use(middleware.ResolveActor(dir))

		// Listing registry
		listingsService := &listsvc.Service{DB: db}
		listingsHandlers := &listhandler.Handlers{Service: listingsService}
		listingsGroup := app.Group("/api/v1/listings", middleware.RequireActor())
		listingsGroup.Post("/create-listing", middleware.AuthorizePermission(constants.CreateListing), listingsHandlers.CreateListing)
		listingsGroup.Get("/get-listing/:stack_id", listingsHandlers.GetListing)
		listingsGroup.Get("/get-org-listings", listingsHandlers.GetOrgListings)
		listingsGroup.Get("/get-available-listings", listingsHandlers.GetAvailableListings)

		// Contract manager
		contractsService := &contractsvc.Service{DB: db}
		contractsHandlers := &contracthandler.Handlers{Service: contractsService}
		contractsGroup := app.Group("/api/v1/contracts", middleware.RequireActor())
		contractsGroup.Get("/get-contract/:order_id", contractsHandlers.GetContract)
		contractsGroup.Post("/sign-contract", middleware.AuthorizePermission(constants.SignContract), contractsHandlers.SignContract)
		contractsGroup.Post("/complete-contract", middleware.AuthorizePermission(constants.CompleteContract), contractsHandlers.CompleteContract)
		contractsGroup.Get("/get-active-contracts", contractsHandlers.GetActiveContracts)
		contractsGroup.Get("/get-completed-contracts", contractsHandlers.GetCompletedContracts)

		// Negotiation threads
		negotiationsService := &negsvc.Service{DB: db, Contracts: contractsService}
		negotiationsHandlers := &neghandler.Handlers{Service: negotiationsService}
		negGroup := app.Group("/api/v1/negotiations", middleware.RequireActor())
		negGroup.Post("/propose-offer", middleware.AuthorizePermission(constants.NegotiateOffer), negotiationsHandlers.ProposeOffer)
		negGroup.Post("/counter-offer", middleware.AuthorizePermission(constants.NegotiateOffer), negotiationsHandlers.CounterOffer)
		negGroup.Post("/accept-offer", middleware.AuthorizePermission(constants.AcceptOffer), negotiationsHandlers.AcceptOffer)
		negGroup.Post("/reject-offer", middleware.AuthorizePermission(constants.NegotiateOffer), negotiationsHandlers.RejectOffer)
		negGroup.Get("/get-org-threads", negotiationsHandlers.GetOrgThreads)
		negGroup.Get("/get-thread/:thread_id", negotiationsHandlers.GetThread)

		// Delivery ledger
		deliveriesService := &delsvc.Service{DB: db}
		deliveriesHandlers := &delhandler.Handlers{Service: deliveriesService}
		delGroup := app.Group("/api/v1/deliveries", middleware.RequireActor())
		delGroup.Post("/log-delivery", middleware.AuthorizePermission(constants.RecordDelivery), deliveriesHandlers.LogDelivery)
		delGroup.Post("/revise-delivery", middleware.AuthorizePermission(constants.ReviseDelivery), deliveriesHandlers.ReviseDelivery)
		delGroup.Get("/get-deliveries/:order_id", deliveriesHandlers.GetDeliveries)

		// Audit trail
		eventsService := &ceSvc.Service{DB: db}
		eventsHandlers := &cehandler.Handlers{Service: eventsService}
		eventsGroup := app.Group("/api/v1/contract-events", middleware.RequireActor())
		eventsGroup.Get("/get-org-events", middleware.AuthorizePermission(constants.ViewData), eventsHandlers.GetOrgEvents)
	}

	return app, db, rdb, nil
}
