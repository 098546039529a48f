package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Brownie44l1/leaf-api/internal/config"
	"github.com/Brownie44l1/leaf-api/internal/handlers"
	"github.com/Brownie44l1/leaf-api/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml (default configs/config.toml)")
	flag.Parse()

	// If running from cmd/server, go up two levels so relative paths resolve
	// against the project root.
	if wd, err := os.Getwd(); err == nil && filepath.Base(wd) == "server" {
		if err := os.Chdir(filepath.Join(wd, "../..")); err != nil {
			fmt.Fprintf(os.Stderr, "failed to change directory: %v\n", err)
			os.Exit(1)
		}
	}

	conf, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := zlog.Init(zlog.Options{
		LogPath:    conf.LogConfig.LogPath,
		Level:      conf.LogConfig.Level,
		MaxSizeMB:  conf.LogConfig.MaxSizeMB,
		MaxBackups: conf.LogConfig.MaxBackups,
		MaxAgeDays: conf.LogConfig.MaxAgeDays,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer zlog.Sync()

	if err := run(conf); err != nil {
		zlog.Fatal("server failed", zap.Error(err))
	}
}

func run(conf *config.Config) error {
	app, err := newApp(conf)
	if err != nil {
		return err
	}
	defer app.Close()

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handlers.NewHandler(app.service), handlers.RouterOptions{
		SSLRedirect:  conf.MainConfig.SSLRedirect,
		SSLHost:      conf.MainConfig.SSLHost,
		MaxBodyBytes: conf.MainConfig.MaxBodyBytes,
	})
	srv := newHTTPServer(conf, router)

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server starting",
			zap.String("app", conf.MainConfig.AppName),
			zap.String("addr", srv.Addr))
		zlog.Info("endpoints: GET / | GET /health | POST /predict | POST /predict/image")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		zlog.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), conf.ShutdownTimeoutDuration())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	zlog.Info("server stopped")
	return nil
}

func newHTTPServer(conf *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              conf.Addr(),
		Handler:           h,
		ReadHeaderTimeout: conf.ReadHeaderTimeoutDuration(),
	}
}
