// ABOUTME: Entry point for the voicebridge relay server
// ABOUTME: Loads config, wires collaborators, and serves until signaled
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voicebridge/voicebridge-go/internal/auth"
	"github.com/voicebridge/voicebridge-go/internal/config"
	"github.com/voicebridge/voicebridge-go/internal/credits"
	"github.com/voicebridge/voicebridge-go/internal/discovery"
	"github.com/voicebridge/voicebridge-go/internal/metrics"
	"github.com/voicebridge/voicebridge-go/internal/relay"
	"github.com/voicebridge/voicebridge-go/internal/store"
	"github.com/voicebridge/voicebridge-go/internal/upstream"
	"github.com/voicebridge/voicebridge-go/internal/version"
)

var configPath = flag.String("config", "voicebridge.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// Log to both file and stdout
	f, err := os.OpenFile(cfg.Logging.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()
	log.SetOutput(io.MultiWriter(os.Stdout, f))

	serverName := cfg.Server.Name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-voicebridge-relay", hostname)
	}

	log.Printf("Starting %s %s: %s on port %d", version.Product, version.Version, serverName, cfg.Server.Port)
	log.Printf("Logging to: %s", cfg.Logging.File)

	artifacts, err := store.NewDir(cfg.Artifacts.Dir)
	if err != nil {
		log.Fatalf("Artifact store error: %v", err)
	}

	var authorizer credits.Authorizer = credits.AllowAll()
	if cfg.Credits.Enabled {
		authorizer = credits.NewClient(credits.Config{
			Endpoint: cfg.Credits.Endpoint,
			APIKey:   cfg.Credits.APIKey,
		})
	}

	m := metrics.New(nil)

	srv := relay.NewServer(
		relay.ServerConfig{
			BindAddress: cfg.Server.BindAddress,
			Port:        cfg.Server.Port,
		},
		auth.NewJWT(cfg.Auth.Secret),
		relay.SessionDeps{
			Factory: upstream.WebSocketFactory{},
			Upstream: upstream.Config{
				Endpoint:        cfg.Upstream.Endpoint,
				APIKey:          cfg.Upstream.APIKey,
				Model:           cfg.Upstream.Model,
				InputSampleRate: cfg.Upstream.InputSampleRate,
			},
			Credits:  authorizer,
			TurnCost: cfg.Credits.TurnCost,
			Store:    artifacts,
			Metrics:  m,
		},
	)

	if cfg.Server.MetricsPort > 0 {
		go func() {
			addr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			log.Printf("Metrics listening on %s", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}

	if cfg.Server.EnableMDNS {
		disc := discovery.NewManager(discovery.Config{
			ServiceName: serverName,
			Port:        cfg.Server.Port,
			ServerMode:  true,
			MetricsPort: cfg.Server.MetricsPort,
		})
		if err := disc.Advertise(); err != nil {
			log.Printf("mDNS advertisement failed: %v", err)
		}
		defer disc.Stop()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Stop(ctx)
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Printf("Server stopped")
}
