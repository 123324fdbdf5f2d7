package main

import (
	"os"
	"strings"

	"github.com/nimasrn/campaign-dispatcher/internal/config"
	"github.com/nimasrn/campaign-dispatcher/pkg/logger"
	"github.com/nimasrn/campaign-dispatcher/pkg/pg"
)

func main() {
	err := config.Load(getEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	// main.go --cmd=migrate-up --dir=./migrations
	pgConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	command := getArg("--cmd=", "migrate-up")
	switch command {
	case "migrate-up", "migrate-down", "migrate-status":
	default:
		logger.Error("unknown command, expected migrate-up, migrate-down or migrate-status", "cmd", command)
		os.Exit(2)
	}

	err = pg.Migrate(pgConf, getMigrationPath(), strings.TrimPrefix(command, "migrate-"))
	if err != nil {
		logger.Error("migration: error running migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("migration: done", "cmd", command)
}

func getArg(prefix, defaultValue string) string {
	for _, v := range os.Args {
		if strings.HasPrefix(v, prefix) {
			return strings.TrimPrefix(v, prefix)
		}
	}
	return defaultValue
}

func getEnvPath() string {
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
	if _, err := os.Open(".env"); err != nil {
		return ""
	}
	return ".env"
}

func getMigrationPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--dir=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed migrations dir, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	if _, err := os.Open("./migrations"); err != nil {
		logger.Error("failed to open the migrations dir, got error" + err.Error())
		return ""
	}
	return "./migrations"
}
