package main

import (
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/nimasrn/campaign-dispatcher/internal/clock"
	"github.com/nimasrn/campaign-dispatcher/internal/config"
	"github.com/nimasrn/campaign-dispatcher/internal/handlers"
	"github.com/nimasrn/campaign-dispatcher/internal/queue"
	"github.com/nimasrn/campaign-dispatcher/internal/repository"
	"github.com/nimasrn/campaign-dispatcher/internal/services"
	xhttp "github.com/nimasrn/campaign-dispatcher/pkg/http"
	"github.com/nimasrn/campaign-dispatcher/pkg/logger"
	"github.com/nimasrn/campaign-dispatcher/pkg/pg"
	"github.com/nimasrn/campaign-dispatcher/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.TimeoutMiddleware(time.Duration(cfg.HttpServerTimeout) * time.Millisecond))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     cfg.PostgresReadUser,
		Host:     cfg.PostgresReadHost,
		Port:     cfg.PostgresReadPort,
		Password: cfg.PostgresReadPassword,
		Database: cfg.PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     cfg.PostgresWriteUser,
		Host:     cfg.PostgresWriteHost,
		Port:     cfg.PostgresWritePort,
		Password: cfg.PostgresWritePassword,
		Database: cfg.PostgresWriteDatabase,
	}

	pgDebug := false
	if cfg.AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}
	defer db.Close()

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{cfg.RedisAddr},
		ClientName: "default",
		DB:         cfg.RedisDatabase,
		Username:   cfg.RedisUsername,
		Password:   cfg.RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	events, err := queue.NewStream(redisAdap, queue.StreamConfig{
		Name:   cfg.EventsStream,
		MaxLen: cfg.EventsMaxLen,
	})
	if err != nil {
		logger.Error("failed creating event stream", "error", err)
		return
	}

	regions := clock.DefaultRegions()
	if cfg.SchedulerRegions != "" {
		regions, err = clock.ParseRegions(cfg.SchedulerRegions)
		if err != nil {
			logger.Error("invalid scheduler regions", "error", err)
			return
		}
	}

	campaignRepo := repository.NewCampaignRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	notifyRepo := repository.NewNotifyRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	statusRepo := repository.NewMessageStatusRepository(db)

	// services
	calendarService := services.NewCalendarService(campaignRepo, templateRepo, notifyRepo, events, regions)
	webhookService := services.NewWebhookService(messageRepo, statusRepo, cfg.WhatsappWebhookVerifyToken)
	healthService := services.NewHealthService(map[string]services.Pinger{
		"postgres": db,
		"redis":    redisAdap,
	})

	// v1 handlers
	calendarHandler := handlers.NewCalendarHandler(calendarService)
	webhookHandler := handlers.NewWebhookHandler(webhookService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterCalendarRoutes(g, calendarHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)
	handlers.RegisterWebhookRoutes(s.Router, webhookHandler)

	// ListenAndServe returns once a signal has shut the server down
	s.CloseOnSignal()
	if err := s.ListenAndServe(cfg.HttpListenAddr); err != nil {
		logger.Error("error in running http-server", "error", err)
	}
	logger.Sync()
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
