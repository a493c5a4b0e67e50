package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iabalyuk/weatherbot/bot"
	"github.com/iabalyuk/weatherbot/config"
	"github.com/iabalyuk/weatherbot/storage"
	"github.com/iabalyuk/weatherbot/weatherapi"
	"github.com/iabalyuk/weatherbot/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	envFile    string
	token      string
	apiURL     string
	sessionDB  string
	sessionTTL time.Duration
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "weatherbot",
	Short: "Telegram bot for city weather forecasts",
	Long: `weatherbot lets Telegram users register a city and ask for the weather.

Forecasts and cities are served by the weather backend API; the bot only keeps
the conversation state of each chat.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&envFile, "env-file", ".env", "Path to a .env file to load")
	flags.StringVar(&token, "token", "", "Telegram bot token (or use TELEGRAM_BOT_TOKEN env var)")
	flags.StringVar(&apiURL, "api-url", "", "Weather backend base URL (or use WEATHER_API_URL env var)")
	flags.StringVar(&sessionDB, "session-db", "", "SQLite file for conversation sessions (or use SESSION_DB_PATH env var)")
	flags.DurationVar(&sessionTTL, "session-ttl", 0, "Drop sessions idle for longer than this, e.g. 720h (or use SESSION_TTL env var)")
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("token") {
		cfg.Token = token
	}
	if flags.Changed("api-url") {
		cfg.APIURL = apiURL
	}
	if flags.Changed("session-db") {
		cfg.SessionDBPath = sessionDB
	}
	if flags.Changed("session-ttl") {
		cfg.SessionTTL = sessionTTL
	}
	if flags.Changed("debug") {
		cfg.Debug = debug
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if debug {
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zapConfig.Build()
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	var store storage.SessionStore
	if cfg.SessionDBPath != "" {
		sqliteStore, err := storage.NewSQLiteStorage(cfg.SessionDBPath, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize SQLite storage at %s: %w", cfg.SessionDBPath, err)
		}
		store = sqliteStore
	} else {
		logger.Info("SESSION_DB_PATH not set, keeping sessions in memory")
		store = storage.New()
	}
	defer store.Close()

	client := weatherapi.NewClient(weatherapi.Config{
		BaseURL:           cfg.APIURL,
		Timeout:           cfg.APITimeout,
		RequestsPerSecond: cfg.APIRPS,
		Burst:             cfg.APIBurst,
	}, logger.Named("weatherapi"))

	telegramBot, err := bot.New(cfg.Token, client, store, logger.Named("bot"))
	if err != nil {
		return err
	}

	sweeper := worker.NewBackgroundWorker(worker.NewBackgroundWorkerConfig{
		Storage: store,
		Logger:  logger.Named("sweeper"),
		TTL:     cfg.SessionTTL,
	})
	sweeper.Start()
	defer sweeper.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting weather bot", zap.String("api_url", cfg.APIURL), zap.String("session_db", cfg.SessionDBPath))
	if err := telegramBot.Start(ctx); err != nil {
		return fmt.Errorf("bot stopped with error: %w", err)
	}
	logger.Info("Shutdown complete")
	return nil
}
