package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"

	log "log/slog"

	"github.com/lunavoice/luna/internal/app"
	"github.com/lunavoice/luna/internal/config"
)

var logLevelMap = map[config.LogLevel]log.Level{
	config.LogDebug: log.LevelDebug,
	config.LogInfo:  log.LevelInfo,
	config.LogWarn:  log.LevelWarn,
	config.LogError: log.LevelError,
}

func main() {
	configPath := cli.StringP("config", "c", "luna.yaml", "Config file path")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "", "Log level override (debug, info, warn, error)")
	headless := cli.Bool("headless", false, "Run without the terminal UI")
	cli.Parse()

	_ = godotenv.Load(*envFile)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Error("Failed to load config", "path", *configPath, "err", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = config.LogLevel(*logLevel)
	}
	if *headless {
		cfg.UI.Disabled = true
	}

	log.SetDefault(log.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevelMap[cfg.Log.Level],
	})))

	log.Info("Booting up")

	assistant, err := app.New(cfg)
	if err != nil {
		log.Error("Failed to assemble assistant", "err", err)
		os.Exit(1)
	}
	defer assistant.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := assistant.Run(ctx); err != nil {
		log.Error("Assistant exited", "err", err)
		os.Exit(1)
	}

	log.Info("Shut down")
}

// loadConfig falls back to built-in defaults when no config file exists,
// so a bare `luna` invocation works out of the box.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return config.LoadFromReader(strings.NewReader(""))
	}
	return nil, err
}
