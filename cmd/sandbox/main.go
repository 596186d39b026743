package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/gymbooking/internal/auth"
	"example.com/gymbooking/internal/config"
	"example.com/gymbooking/internal/sandbox"
	httptransport "example.com/gymbooking/internal/transport/http"
)

func main() {
	cfg := config.Load()
	logger := log.New(log.Writer(), "[sandbox] ", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := sandbox.NewStore(time.Now, cfg.OTPTTL, func(email, code string) {
		logger.Printf("otp for %s: %s", email, code)
	})
	if err := sandbox.Seed(store); err != nil {
		logger.Fatalf("seed failed: %v", err)
	}
	logger.Printf("demo account %s / %s", sandbox.DemoEmail, sandbox.DemoPassword)

	handler := sandbox.NewHandler(store, auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, logger)
	router := handler.Routes()
	router.Handle("/metrics", promhttp.Handler())

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.SandboxAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, router)

	if err := httptransport.Run(ctx, server, 15*time.Second, logger); err != nil {
		logger.Printf("server error: %v", err)
		os.Exit(1)
	}
	logger.Printf("stopped")
}
