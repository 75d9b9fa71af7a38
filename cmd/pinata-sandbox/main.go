package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GraphPe/pinata-cli/internal/devseed"
	"github.com/GraphPe/pinata-cli/internal/logging"
	"github.com/GraphPe/pinata-cli/internal/sandbox"
	"github.com/GraphPe/pinata-cli/pkg/files/mock"
)

func main() {
	addr := flag.String("addr", ":8787", "listen address")
	seedPath := flag.String("seed", "", "path to a YAML or JSON seed for the in-memory store")
	jwt := flag.String("jwt", "", "require this bearer token on API routes")
	latency := flag.Duration("latency", 0, "artificial latency to inject per request")
	fail := flag.String("fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn or error")
	flag.Parse()

	logger, err := logging.New(logging.Options{Level: *logLevel})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	store := mock.New()
	if *seedPath != "" {
		seed, err := devseed.Load(*seedPath)
		if err != nil {
			logger.Fatal("load seed", zap.Error(err))
		}
		if err := store.Seed(seed); err != nil {
			logger.Fatal("apply seed", zap.Error(err))
		}
	}

	failCfg, err := sandbox.ParseFailConfig(*fail)
	if err != nil {
		logger.Fatal("parse fail flag", zap.Error(err))
	}

	server := &http.Server{
		Addr: *addr,
		Handler: sandbox.NewRouter(sandbox.Options{
			Store:   store,
			JWT:     *jwt,
			Latency: *latency,
			Fail:    failCfg,
			Logger:  logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	host := *addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	logger.Info("pinata-sandbox listening", zap.String("addr", *addr))
	fmt.Println()
	fmt.Printf("export PINATA_API_URL=http://%s\n", host)
	fmt.Printf("export PINATA_UPLOAD_URL=http://%s\n", host)
	fmt.Printf("export PINATA_GATEWAY_URL=http://%s\n", host)
	if *jwt != "" {
		fmt.Printf("export PINATA_JWT=%s\n", *jwt)
	} else {
		fmt.Println("export PINATA_JWT=sandbox")
	}
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
}
