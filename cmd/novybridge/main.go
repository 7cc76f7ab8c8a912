package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/novy-bridge/internal/auth"
	"github.com/novy-bridge/internal/config"
	"github.com/novy-bridge/internal/dispatch"
	"github.com/novy-bridge/internal/events"
	"github.com/novy-bridge/internal/gpio"
	"github.com/novy-bridge/internal/jsonrpc"
	"github.com/novy-bridge/internal/logging"
	"github.com/novy-bridge/internal/maintenance"
	"github.com/novy-bridge/internal/mqtt"
	"github.com/novy-bridge/internal/transceiver"
)

var (
	issueToken *string        = flag.String("issue-token", "", "Print a bearer token for this subject and exit")
	scopesArg  *string        = flag.String("scopes", auth.ScopeControl, "Comma separated scopes for -issue-token")
	ttlArg     *time.Duration = flag.Duration("ttl", 365*24*time.Hour, "Lifetime of the token printed by -issue-token")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *issueToken != "" {
		printToken(cfg)
		return
	}

	logCloser := logging.Setup(cfg.Log)
	defer logCloser.Close()

	log.Printf("[INFO] Starting Novy bridge %s (gpio backend %s, transmit pin %d, power pin %d)",
		cfg.Hostname, cfg.GPIO.Backend, cfg.GPIO.TransmitPin, cfg.GPIO.PowerPin)

	// Open the transmitter lines
	dataPin, err := gpio.Open(cfg.GPIO.Backend, cfg.GPIO.TransmitPin)
	if err != nil {
		log.Fatalf("[ERROR] Failed to open transmit pin: %v", err)
	}
	defer dataPin.Close()
	powerPin, err := gpio.Open(cfg.GPIO.Backend, cfg.GPIO.PowerPin)
	if err != nil {
		log.Fatalf("[ERROR] Failed to open power pin: %v", err)
	}
	defer powerPin.Close()

	driver := transceiver.New(dataPin, powerPin, transceiver.SpinClock{}, dispatch.DriverOptions(cfg.Driver))
	if err := driver.Release(); err != nil {
		log.Fatalf("[ERROR] Failed to drive transmitter lines low: %v", err)
	}

	hub := events.NewHub()
	dispatcher, err := dispatch.New(cfg, driver, hub)
	if err != nil {
		log.Fatalf("[ERROR] Failed to create dispatcher: %v", err)
	}

	// Create JSON-RPC HTTP server
	var httpServer *http.Server
	if cfg.Network.HTTP.Enabled {
		var verifier *auth.Verifier
		if cfg.Network.HTTP.Auth.Secret != "" {
			verifier, err = auth.NewVerifier(cfg.Network.HTTP.Auth.Secret)
			if err != nil {
				log.Fatalf("[ERROR] Failed to create token verifier: %v", err)
			}
		} else {
			log.Printf("[INFO] No auth secret configured, HTTP API is open")
		}

		jsonrpcServer := jsonrpc.NewServer(cfg, dispatcher, hub, auth.NewMiddleware(verifier))
		// No WriteTimeout: /events connections are long lived
		httpServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Network.HTTP.Port),
			Handler:           jsonrpcServer.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Printf("[INFO] Starting HTTP server on port %d", cfg.Network.HTTP.Port)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("[ERROR] HTTP server failed: %v", err)
			}
		}()
	}

	// Create maintenance TCP server
	var maintenanceServer *maintenance.Server
	if cfg.Network.Maintenance.Enabled {
		maintenanceServer = maintenance.NewServer(cfg, dispatcher)
		go func() {
			if err := maintenanceServer.ListenAndServe(); err != nil {
				log.Fatalf("[ERROR] Maintenance server failed: %v", err)
			}
		}()
	}

	// Connect to the broker
	var bridge *mqtt.Bridge
	if cfg.MQTT.Enabled {
		bridge = mqtt.NewBridge(cfg.MQTT, dispatcher)
		if err := bridge.Start(); err != nil {
			log.Fatalf("[ERROR] MQTT bridge failed: %v", err)
		}
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("[INFO] Shutting down...")

	// Stop the command sources before the dispatcher
	if bridge != nil {
		bridge.Stop()
	}

	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Printf("[ERROR] HTTP server shutdown error: %v", err)
		}
		cancel()
	}

	if maintenanceServer != nil {
		if err := maintenanceServer.Close(); err != nil {
			log.Printf("[ERROR] Maintenance server shutdown error: %v", err)
		}
	}

	if err := dispatcher.Close(); err != nil {
		log.Printf("[ERROR] Dispatcher shutdown error: %v", err)
	}

	if err := driver.Release(); err != nil {
		log.Printf("[ERROR] Failed to release transmitter: %v", err)
	}

	log.Printf("[INFO] Novy bridge stopped")
}

// printToken writes a token signed with the configured secret to stdout
func printToken(cfg *config.Config) {
	secret := cfg.Network.HTTP.Auth.Secret
	if secret == "" {
		log.Fatalf("No auth secret configured (network.http.auth.secret)")
	}

	var scopes []string
	for _, s := range strings.Split(*scopesArg, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}

	token, err := auth.IssueToken(secret, *issueToken, scopes, *ttlArg)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}
