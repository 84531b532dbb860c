package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bouteflan/penrose-experiment/internal/adapter/narrator"
	"github.com/bouteflan/penrose-experiment/internal/config"
	"github.com/bouteflan/penrose-experiment/internal/hub"
	"github.com/bouteflan/penrose-experiment/internal/policy"
	store "github.com/bouteflan/penrose-experiment/internal/repository"
	"github.com/bouteflan/penrose-experiment/internal/service"
	httpserver "github.com/bouteflan/penrose-experiment/internal/transport/http"
	"github.com/bouteflan/penrose-experiment/internal/transport/rpc"
	"github.com/bouteflan/penrose-experiment/internal/transport/ws"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.SetupLogging()

	log.Info("Starting session server...")
	log.Infof("HTTP Port: %d", cfg.HTTPPort)
	log.Infof("Database: %s", cfg.DatabaseURL)
	log.Infof("Narrator mode: %s", cfg.NarratorMode)

	ctx := context.Background()

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize narrator provider
	narr, err := narrator.New(ctx, cfg.Narrator())
	if err != nil {
		log.Fatalf("Failed to initialize narrator: %v", err)
	}
	if c, ok := narr.(io.Closer); ok {
		defer c.Close()
	}

	// Initialize policy engine
	policyContent := policy.DefaultPolicy
	if cfg.PolicyFile != "" {
		raw, err := os.ReadFile(cfg.PolicyFile)
		if err != nil {
			log.Fatalf("Failed to read policy file: %v", err)
		}
		policyContent = string(raw)
	}
	policyEngine, err := policy.NewEngine(ctx, policyContent)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize hub
	h := hub.NewHub(cfg.WSSendBuffer)
	go h.Run()

	// Initialize service
	svc, err := service.New(db, narr, policyEngine, cfg, h)
	if err != nil {
		log.Fatalf("Failed to initialize service: %v", err)
	}

	// Create server
	wsServer := ws.NewServer(cfg, h, svc)
	e := httpserver.NewServer(svc, wsServer)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Infof("Session server started on port %d", cfg.HTTPPort)

	// Start operator RPC server
	var rpcServer *rpc.Server
	if cfg.RPCPort > 0 {
		rpcServer, err = rpc.NewServer(svc)
		if err != nil {
			log.Fatalf("Failed to initialize rpc server: %v", err)
		}
		go func() {
			addr := fmt.Sprintf(":%d", cfg.RPCPort)
			if err := rpcServer.Start(addr); err != nil {
				log.Fatalf("Failed to start rpc server: %v", err)
			}
		}()
		log.Infof("Operator RPC started on port %d", cfg.RPCPort)
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down session server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Failed to shutdown server gracefully: %v", err)
	}
	if rpcServer != nil {
		if err := rpcServer.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Failed to shutdown rpc server gracefully: %v", err)
		}
	}
	svc.Shutdown(shutdownCtx)
	h.Stop()

	log.Info("Session server stopped")
}
