package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"groupgate/internal/config"
	"groupgate/internal/gateway"
	"groupgate/internal/server"
	"groupgate/internal/telegram"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to the gateway config file")
	flag.Parse()

	// Credentials may come from a .env next to the binary.
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var dialer telegram.Dialer
	creds, err := config.LoadCredentials()
	if err != nil {
		logger.Warn("running without telegram credentials, every operation will fail",
			zap.Error(err))
	} else {
		dialer = telegram.NewGotdDialer(creds.APIID, creds.APIHash, logger.Named("gotd"))
	}

	logins := gateway.NewRegistry(cfg.LoginTTL(), logger.Named("registry"))
	gw := gateway.New(dialer, logins, logger.Named("gateway"))
	srv := server.New(gw, logger.Named("http"))

	httpSrv := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Router(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
		logins.Close()
	}()

	logger.Info("gateway listening",
		zap.String("addr", cfg.Addr),
		zap.Duration("login_ttl", cfg.LoginTTL()))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	logCfg := zap.NewProductionConfig()
	logCfg.Level = lvl
	return logCfg.Build()
}
