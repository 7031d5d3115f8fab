package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"vita-chat/internal/config"
	"vita-chat/internal/handler"
	"vita-chat/internal/responder"
	"vita-chat/internal/storage"
	"vita-chat/pkg/logger"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	store := storage.NewMemoryStorage()
	if err := store.Init(); err != nil {
		logger.Fatalf("Failed to init storage: %v", err)
	}
	defer store.Close()

	reply, err := responder.New(cfg.Responder)
	if err != nil {
		logger.Fatalf("Failed to init responder: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(cfg, handler.Deps{
		Storage:   store,
		Responder: reply,
	})

	if err := router.Auth.SeedAdmin(cfg.Server.AdminEmail, cfg.Server.AdminPassword); err != nil {
		logger.Fatalf("Failed to seed admin account: %v", err)
	} else if cfg.Server.AdminPassword != "" {
		logger.Infof("admin account: %s", cfg.Server.AdminEmail)
	}

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Infof("stub backend listening on port %d (responder: %s)", cfg.Server.Port, cfg.Responder.Provider)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Failed to shut down server: %v", err)
	}
	logger.Info("server stopped")
}
