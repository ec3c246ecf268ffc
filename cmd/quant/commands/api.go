package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/newsquant/internal/api"
	"github.com/wonny/newsquant/internal/api/handlers"
	"github.com/wonny/newsquant/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                 - Health check (store ping)
  GET  /metrics                - Prometheus metrics
  GET  /api/features/{ticker}  - 피처 매트릭스 조회
  GET  /api/prices/{ticker}    - 일봉 조회 (?from=&to=)
  GET  /api/mentions           - 멘션 조회 (?since=YYYY-MM-DD)
  GET  /api/pipeline/stages    - 단계 목록
  POST /api/pipeline/run       - 파이프라인 실행 ({"stage":"all"})

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== newsquant API Server ===")

	a, err := newApp(context.Background(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	log := a.log
	log.WithFields(map[string]interface{}{
		"port":  a.cfg.Port,
		"env":   a.cfg.Env,
		"store": a.cfg.Store.Driver,
	}).Info("Initializing API server")

	cache := redis.NewCache(a.redis, "newsquant")
	routes := api.Routes{
		Data:     handlers.NewDataHandler(a.store, cache, log),
		Pipeline: handlers.NewPipelineHandler(a.orchestrator, log).WithCache(cache),
		Health:   a.store,
	}
	if a.cfg.MetricsEnabled {
		routes.Metrics = a.metrics.Handler()
	}
	server := api.New(a.cfg, log, api.NewRouter(routes, log))

	// Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
