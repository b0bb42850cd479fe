package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/keyauth"
	"github.com/layer-3/keyauth/config"
	transport "github.com/layer-3/keyauth/transport/http"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

// getConfigPath returns the path to the config file.
// Priority: command argument > KEYAUTH_CONFIG env var > keyauth.yaml
func getConfigPath() string {
	if len(os.Args) > 2 {
		return os.Args[2]
	}
	if envPath := os.Getenv("KEYAUTH_CONFIG"); envPath != "" {
		return envPath
	}
	return "keyauth.yaml"
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: keyauth <command> [config]")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the login server")
		fmt.Println("  health    Check server health")
		fmt.Println("  secret    Print a random auth secret")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	case "secret":
		err = runSecret()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)

	green.Print("  ▶ ")
	fmt.Printf("keyauth %s\n", version)
	green.Print("  ▶ ")
	fmt.Printf("Config: %s\n", configPath)
	green.Print("  ▶ ")
	fmt.Printf("HTTP:   %s\n", cfg.Server.HTTPAddr)
	green.Print("  ▶ ")
	fmt.Printf("Mode:   %s", cfg.Auth.Mode)
	gray.Printf(" (%s, %s)\n\n", cfg.Auth.TokenFormat, cfg.Store.Driver)

	engine, err := keyauth.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("failed to close engine", "error", err)
		}
	}()

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := transport.SetupRouter(
		transport.RouterConfig{CSRFHeader: cfg.HTTP.CSRFHeader},
		engine.Challenge,
		engine.Bearer,
		logger,
	)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting keyauth", "http_addr", cfg.Server.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/healthz", healthHost(cfg.Server.HTTPAddr))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// healthHost turns a listen address like ":9000" into a dialable one
func healthHost(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "127.0.0.1" + addr
	}
	return addr
}

// runSecret prints a random secret suitable for auth.secret
func runSecret() error {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("generating secret: %w", err)
	}
	fmt.Println(base64.StdEncoding.EncodeToString(buf))
	return nil
}
