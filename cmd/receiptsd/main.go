package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/receipt-itemizer/internal/app"
	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
	repo "github.com/joseph-ayodele/receipt-itemizer/internal/repository"
	"github.com/joseph-ayodele/receipt-itemizer/internal/server"
)

func main() {
	envErr := godotenv.Load()

	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log, os.Stdout)
	if envErr != nil {
		logger.Debug("no .env file loaded", "error", envErr)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, app.Options{WithDatabase: true})
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := repo.HealthCheck(ctx, a.DB, 5*time.Second, logger); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// gRPC server
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(server.RequestIDInterceptor(logger)))
	server.RegisterReceiptsServer(grpcServer, server.NewReceiptService(a.Processor, a.Receipts, logger))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	// HTTP server
	httpHandler := server.NewHTTPHandler(server.HTTPConfig{
		UploadDir:   cfg.Server.UploadDir,
		MaxUploadMB: cfg.Server.MaxUploadMB,
	}, a.Processor, a.Receipts, a.Exporter, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           httpHandler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("receiptsd listening", "grpc_addr", cfg.Server.GRPCAddr, "http_addr", cfg.Server.HTTPAddr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	grpcServer.GracefulStop()
	logger.Info("stopped")
}
