package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/nimasrn/campaign-dispatcher/internal/clock"
	"github.com/nimasrn/campaign-dispatcher/internal/config"
	"github.com/nimasrn/campaign-dispatcher/internal/dispatch"
	gateway "github.com/nimasrn/campaign-dispatcher/internal/gateways"
	"github.com/nimasrn/campaign-dispatcher/internal/notify"
	"github.com/nimasrn/campaign-dispatcher/internal/queue"
	"github.com/nimasrn/campaign-dispatcher/internal/repository"
	"github.com/nimasrn/campaign-dispatcher/pkg/logger"
	"github.com/nimasrn/campaign-dispatcher/pkg/pg"
	"github.com/nimasrn/campaign-dispatcher/pkg/prom"
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
	if err := cfg.ValidateDispatcher(); err != nil {
		logger.Error("invalid dispatcher config", "error", err)
		return
	}

	err = logger.UseFile(logger.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogFileMaxSizeMB,
		MaxBackups: cfg.LogFileMaxBackups,
		MaxAgeDays: cfg.LogFileMaxAgeDays,
		Compress:   true,
	})
	if err != nil {
		logger.Error("failed to open log file", "error", err)
		return
	}
	logger.Info("starting campaign dispatcher", "version", version, "commit", commit, "date", date)

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

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)
	}()

	client, err := gateway.NewClient(&gateway.Config{
		BaseURL:                 cfg.WhatsappApiUrl,
		Version:                 cfg.WhatsappApiVersion,
		PhoneNumberID:           cfg.WhatsappPhoneNumberID,
		Token:                   cfg.WhatsappToken,
		Timeout:                 cfg.WhatsappTimeout,
		MaxConns:                64,
		ReadBufferSize:          1024 * 8,
		WriteBufferSize:         1024 * 8,
		CircuitBreakerThreshold: cfg.WhatsappCBThreshold,
		CircuitBreakerTimeout:   cfg.WhatsappCBTimeout,
	})
	if err != nil {
		logger.Error("failed to create gateway", "error", err)
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
	resolver, err := clock.NewResolver(regions)
	if err != nil {
		logger.Error("failed to load region time zones", "error", err)
		return
	}

	campaignRepo := repository.NewCampaignRepository(db)
	notifyRepo := repository.NewNotifyRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	sink := notify.NewSink(notifyRepo, events, notify.Config{
		Workers:    cfg.EventsWorkers,
		BufferSize: cfg.EventsBuffer,
	})
	sink.Start()

	var guard dispatch.DeliveryGuard
	if cfg.DeliveryMarkerTTL > 0 {
		guard = dispatch.NewRedisDeliveryGuard(redisAdap, cfg.DeliveryMarkerTTL)
	}

	opts := dispatch.DefaultOptions()
	opts.TickInterval = cfg.SchedulerTickInterval
	opts.SendDelay = cfg.SchedulerSendDelay
	opts.MaxPerDrain = cfg.SchedulerMaxPerDrain
	opts.ErrorNotifyUserID = cfg.SchedulerErrorNotifyUser
	opts.MediaRoot = cfg.MediaRoot

	scheduler, err := dispatch.New(campaignRepo, client, sink, messageRepo, guard, resolver, opts)
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	stop := scheduler.Start(context.Background())

	<-c
	logger.Info("shutting down dispatcher", "deadline", cfg.SchedulerShutdownDeadline)

	stopped := make(chan struct{})
	go func() {
		stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(cfg.SchedulerShutdownDeadline):
		logger.Warn("drains did not stop before the deadline")
	}

	if err := sink.Stop(5 * time.Second); err != nil {
		logger.Warn("event sink did not flush", "error", err)
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
