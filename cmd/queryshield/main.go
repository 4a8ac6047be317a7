package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/SafeNest/QueryShield/pkg/app"
	"github.com/SafeNest/QueryShield/pkg/config"
	infraCache "github.com/SafeNest/QueryShield/pkg/infra/cache"
	"github.com/SafeNest/QueryShield/pkg/infra/database"
	infraLogger "github.com/SafeNest/QueryShield/pkg/infra/logger"
	metrics "github.com/SafeNest/QueryShield/pkg/infra/prometheus"
	"github.com/SafeNest/QueryShield/pkg/infra/repository"
	"github.com/SafeNest/QueryShield/pkg/infra/secrets"
	"github.com/SafeNest/QueryShield/pkg/version"

	_ "github.com/SafeNest/QueryShield/pkg/infra/migrations"
)

func main() {
	ctx := context.Background()

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	logger := infraLogger.NewLogger("admin")
	logger.WithField("version", version.GetInfo().String()).Info("starting")

	if err := config.Load("./config"); err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	cfg := config.GetConfig()

	if cfg.Metrics.Enabled {
		metrics.Initialize(metrics.MetricsConfig{
			EnableProcessMetrics: cfg.Metrics.EnableProcessMetrics,
			EnablePerTable:       cfg.Metrics.EnablePerTable,
		})
	}

	secretProvider := buildSecretProvider(logger, cfg)

	var patternStore *infraCache.LearnedPatternStore
	if cfg.Redis.Enabled {
		redisClient, err := infraCache.NewClient(infraCache.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TLS:      cfg.Redis.TLS,
		}, logger)
		if err != nil {
			logger.Fatalf("failed to connect to redis: %v", err)
		}
		patternStore = infraCache.NewLearnedPatternStore(redisClient, logger)
	}

	engine := app.NewEngine(logger, cfg, secretProvider, patternStore)

	var archive *database.DB
	if cfg.Database.Enabled {
		db, err := database.NewDB(logger, &database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Fatalf("failed to connect to audit archive: %v", err)
		}
		archive = db
		defer archive.Close()
	}

	if patternStore != nil {
		if err := engine.RestorePatterns(ctx); err != nil {
			logger.WithError(err).Warn("could not restore learned patterns")
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		os.Exit(0)
	}()

	runAdminLoop(ctx, logger, engine, archive)
}

func buildSecretProvider(logger *logrus.Logger, cfg *config.Config) secrets.Provider {
	provider, err := secrets.NewEnvProvider(cfg.Engine.SaltEnvVar)
	if err == nil {
		return provider
	}
	logger.WithError(err).Warn("falling back to ephemeral audit salt; hashes will not survive restart")
	ephemeral, err := secrets.NewEphemeralProvider()
	if err != nil {
		logger.Fatalf("failed to generate audit salt: %v", err)
	}
	return ephemeral
}

// runAdminLoop reads commands from stdin: validate lines, inspect the
// audit trail, and manage the learned-pattern set.
func runAdminLoop(ctx context.Context, logger *logrus.Logger, engine *app.Engine, archive *database.DB) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	fmt.Println("commands: validate <text> | summary | export | persist | restore | clear | archive | quit")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")

		switch cmd {
		case "validate":
			verdict := engine.Validate(rest, "admin:stdin")
			out, _ := json.Marshal(verdict)
			fmt.Println(string(out))

		case "summary":
			out, _ := json.MarshalIndent(engine.AuditSummary(), "", "  ")
			fmt.Println(string(out))

		case "export":
			for _, p := range engine.ExportPatterns() {
				fmt.Println(p)
			}

		case "persist":
			if err := engine.PersistPatterns(ctx); err != nil {
				fmt.Println("error:", err)
			}

		case "restore":
			if err := engine.RestorePatterns(ctx); err != nil {
				fmt.Println("error:", err)
			}

		case "clear":
			fmt.Printf("removed %d learned patterns\n", engine.ClearPatterns())

		case "archive":
			if archive == nil {
				fmt.Println("error: audit archive database is not configured")
				continue
			}
			repo := repository.NewBlockedAttemptRepository(archive.DB)
			snapshot := engine.AuditSnapshot()
			if err := repository.ArchiveSnapshot(ctx, repo, snapshot); err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Printf("archived %d blocked attempts\n", len(snapshot))

		case "quit", "exit":
			return

		default:
			fmt.Println("unknown command:", cmd)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.WithError(err).Error("stdin read failed")
	}
}
