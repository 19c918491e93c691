// Command presence runs the WiFi presence monitor: a scan scheduler
// feeding the device registry, the HTTP API and dashboard, and the
// optional MQTT bridge.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/presence.report/internal/api"
	"github.com/banshee-data/presence.report/internal/config"
	"github.com/banshee-data/presence.report/internal/db"
	"github.com/banshee-data/presence.report/internal/identity"
	"github.com/banshee-data/presence.report/internal/monitor"
	"github.com/banshee-data/presence.report/internal/mqtt"
	"github.com/banshee-data/presence.report/internal/scan"
	"github.com/banshee-data/presence.report/internal/timeutil"
	"github.com/banshee-data/presence.report/internal/track"
	"github.com/banshee-data/presence.report/internal/version"
)

var (
	configPath    = flag.String("config", "", "Path to YAML service config")
	listen        = flag.String("listen", "", "Listen address (overrides config)")
	sourceName    = flag.String("source", "", "Scan source: airport, nmcli, serial, pcap, fixture (overrides config)")
	devMode       = flag.Bool("dev", false, "Run with the fixture source")
	dbPath        = flag.String("db", "", "Path to sqlite database (overrides config)")
	settingsPath  = flag.String("settings", "", "Path to JSON settings applied on first start")
	migrationsDir = flag.String("migrations", "migrations", "Path to schema migrations")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

const hintPollInterval = 30 * time.Second

// buildSource constructs the configured scan source.
func buildSource(svc *config.ServiceConfig) (scan.Source, error) {
	switch svc.Source {
	case "airport":
		return scan.NewAirportSource(svc.Interface)
	case "nmcli":
		return scan.NewNmcliSource(svc.Interface)
	case "serial":
		return scan.NewSerialProbeSource(svc.SerialPort, svc.SerialBaud)
	case "pcap":
		return scan.NewPcapSource(svc.Interface, time.Second)
	case "fixture":
		return scan.NewFixtureSourceFromFile(svc.FixturePath)
	default:
		return nil, fmt.Errorf("unknown scan source %q", svc.Source)
	}
}

// initialSettings picks the runtime config for startup: persisted
// settings win, then the -settings file, then defaults.
func initialSettings(database *db.DB) (*config.Config, error) {
	cfg, err := database.LoadSettings()
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		return cfg, nil
	}
	if *settingsPath != "" {
		return config.LoadConfig(*settingsPath)
	}
	return &config.Config{}, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("presence %s (%s)\n", version.Version, version.GitSHA)
		return
	}

	svc := config.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := config.LoadServiceConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load service config: %v", err)
		}
		svc = loaded
	}
	if *listen != "" {
		svc.Listen = *listen
	}
	if *dbPath != "" {
		svc.DBPath = *dbPath
	}
	if *sourceName != "" {
		svc.Source = *sourceName
	}
	if *devMode {
		svc.Source = "fixture"
	}
	if err := svc.Validate(); err != nil {
		log.Fatalf("invalid service config: %v", err)
	}

	database, err := db.NewDB(svc.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if err := database.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	runtimeCfg, err := initialSettings(database)
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}
	if err := runtimeCfg.Validate(); err != nil {
		log.Fatalf("invalid settings: %v", err)
	}
	store := config.NewStore(runtimeCfg, database)

	source, err := buildSource(svc)
	if err != nil {
		log.Fatalf("failed to create %s source: %v", svc.Source, err)
	}
	defer source.Close()
	log.Printf("scanning via %s source", svc.Source)

	clock := timeutil.RealClock{}
	registry := track.NewRegistry()
	analytics := monitor.NewAnalytics(0)

	hints := identity.NewHintProvider(clock, hintPollInterval)
	oui := identity.NewOUIClient(database, http.DefaultClient)
	resolver := identity.NewResolver(oui, hints)

	scheduler := monitor.NewScheduler(source, resolver, registry, store, clock, analytics)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ARP/DNS hint poller, out of the scan path
	wg.Add(1)
	go func() {
		defer wg.Done()
		hints.Run(ctx)
		log.Print("hint provider terminated")
	}()

	// scan scheduler and reaper
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := scheduler.Run(ctx); err != nil {
			log.Printf("scheduler error: %v", err)
		}
		log.Print("scheduler terminated")
	}()

	if svc.MQTT.Enabled {
		publisher := mqtt.New(svc.MQTT, registry, clock)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := publisher.Run(ctx); err != nil {
				log.Printf("mqtt publisher error: %v", err)
			}
			log.Print("mqtt publisher terminated")
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(registry, store, analytics, clock, svc.Units, svc.Source).ServeMux()
		if err := database.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach admin routes: %v", err)
		}

		server := &http.Server{
			Addr:    svc.Listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", svc.Listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Print("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
	}()

	wg.Wait()
	log.Print("graceful shutdown complete")
}
