// Command atrwacd runs the Agentic Tuning engine as a standalone daemon,
// serving the operator HTTP API until interrupted.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/99souls/atrwac/engine"
	"github.com/99souls/atrwac/engine/adapters/operatorhttp"
	"github.com/99souls/atrwac/engine/adapters/sqliteaudit"
	"github.com/99souls/atrwac/engine/models"

	"github.com/99souls/atrwac/cmd/atrwacd/demoagents"
)

func main() {
	addr := flag.String("addr", ":8080", "operator HTTP listen address")
	configPath := flag.String("config", "", "optional YAML (or, with a .toml extension, TOML) config file to load and watch")
	demoAgentCount := flag.Int("demo-agents", 20, "number of synthetic demo agents when no external accessor is wired")
	jwtSecret := flag.String("jwt-secret", os.Getenv("ATRWAC_JWT_SECRET"), "bearer token secret; empty disables auth")
	auditDBPath := flag.String("audit-db", "", "optional SQLite file to durably mirror the pruning audit log into")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	initial := engine.Defaults()
	if *configPath != "" {
		loaded, err := loadConfigFile(*configPath)
		if err != nil {
			logger.Error("load config file", "path", *configPath, "error", err)
			os.Exit(1)
		}
		initial = loaded
	}

	fleet := demoagents.New(*demoAgentCount, 42)

	eng, err := engine.New(engine.Config{
		Initial:     initial,
		Accessor:    fleet,
		StopAgent:   fleet.StopAgent,
		DeleteAgent: fleet.DeleteAgent,
		Telemetry: engine.TelemetryOptions{
			EnableMetrics:  true,
			EnableEvents:   true,
			EnableTracing:  true,
			EnableHealth:   true,
			MetricsBackend: "prom",
		},
		LanesPerGPU: 5,
	})
	if err != nil {
		logger.Error("construct engine", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		logger.Error("start engine", "error", err)
		os.Exit(1)
	}
	defer eng.Stop()

	if *configPath != "" {
		go watchConfig(ctx, logger, eng, *configPath)
	}

	if *auditDBPath != "" {
		sink, err := sqliteaudit.Open(*auditDBPath)
		if err != nil {
			logger.Error("open audit db", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		go mirrorAuditLog(ctx, logger, eng, sink)
	}

	server, handler := operatorhttp.NewServer(operatorhttp.Options{
		Engine:             eng,
		JWTSecret:          []byte(*jwtSecret),
		RateLimitPerSecond: 20,
		RateLimitBurst:     40,
		Logger:             logger,
	})
	defer server.Close()

	httpServer := &http.Server{Addr: *addr, Handler: handler}
	go func() {
		logger.Info("operator API listening", "addr", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

// mirrorAuditLog periodically copies the engine's in-memory pruning audit
// log into sink; Persist is idempotent so overlapping polls never duplicate
// rows.
func mirrorAuditLog(ctx context.Context, logger *slog.Logger, eng *engine.Engine, sink *sqliteaudit.Sink) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sink.Persist(ctx, eng.GetPruningHistory()); err != nil {
				logger.Error("mirror audit log", "error", err)
			}
		}
	}
}

func loadConfigFile(path string) (models.EngineConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.EngineConfig{}, err
	}
	cfg := engine.Defaults()
	if strings.HasSuffix(path, ".toml") {
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return models.EngineConfig{}, err
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return models.EngineConfig{}, err
	}
	return cfg, nil
}

// watchConfig applies the config file's contents through UpdateConfig
// whenever it changes on disk, letting an operator hot-reload scoring
// weights and pruning policy without restarting the daemon.
func watchConfig(ctx context.Context, logger *slog.Logger, eng *engine.Engine, path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("config watcher", "error", err)
		return
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		logger.Error("watch config file", "path", path, "error", err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := loadConfigFile(path)
			if err != nil {
				logger.Error("reload config", "error", err)
				continue
			}
			if _, err := eng.UpdateConfig(cfg, "config-watch"); err != nil {
				logger.Error("apply reloaded config", "error", err)
				continue
			}
			logger.Info("config reloaded", "path", path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Error("config watcher", "error", err)
		}
	}
}
