package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/drive.report/internal/api"
	"github.com/banshee-data/drive.report/internal/config"
	"github.com/banshee-data/drive.report/internal/db"
	"github.com/banshee-data/drive.report/internal/monitoring"
	"github.com/banshee-data/drive.report/internal/planner/frenet"
	"github.com/banshee-data/drive.report/internal/planner/ingest"
	"github.com/banshee-data/drive.report/internal/planner/monitor"
	"github.com/banshee-data/drive.report/internal/planner/pipeline"
	"github.com/banshee-data/drive.report/internal/planner/publish"
	"github.com/banshee-data/drive.report/internal/planner/storage/sqlite"
	"github.com/banshee-data/drive.report/internal/units"
	"github.com/banshee-data/drive.report/internal/version"
)

var (
	listen       = flag.String("listen", ":8080", "HTTP listen address")
	udpPort      = flag.Int("udp-port", 6970, "UDP port to listen for input messages (lane, odometry, obstacles)")
	udpAddress   = flag.String("udp-addr", "", "UDP bind address (default: listen on all interfaces)")
	rcvBuf       = flag.Int("rcvbuf", 1<<20, "UDP receive buffer size in bytes (default 1MB)")
	configPath   = flag.String("config", "", "Path to a tuning config JSON file (default: built-in defaults)")
	dbFile       = flag.String("db", "", "Path to the SQLite database for cycle recording (empty disables recording)")
	forwardAddr  = flag.String("forward", "", "UDP address to forward cycle outputs to (empty disables forwarding)")
	displayUnits = flag.String("units", units.MPS, "Display units for speed fields on the HTTP API (mps, mph, kmph)")
	verbose      = flag.Bool("verbose", false, "Enable diagnostic logging")
	trace        = flag.Bool("trace", false, "Enable per-cycle trace logging (implies -verbose)")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

const migrationsDir = "migrations"

func loadTuning() (*config.TuningConfig, error) {
	if *configPath != "" {
		return config.LoadTuningConfig(*configPath)
	}
	return config.LoadTuningConfig(config.DefaultConfigPath)
}

// Main
func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listen == "" {
		log.Fatal("HTTP listen address is required")
	}
	if !units.IsValid(*displayUnits) {
		log.Fatalf("Invalid -units %q (valid: %v)", *displayUnits, units.ValidUnits)
	}

	// Wire the logging streams before anything starts emitting.
	writers := pipeline.LogWriters{Ops: os.Stdout}
	if *verbose || *trace {
		writers.Diag = os.Stdout
	}
	if *trace {
		writers.Trace = os.Stdout
	}
	pipeline.SetLogWriters(writers)
	monitoring.SetLogger(log.Printf)

	tuning, err := loadTuning()
	if err != nil {
		log.Fatalf("Failed to load tuning config: %v", err)
	}
	log.Print(version.String())

	// Optional cycle recording.
	var cycles *sqlite.CycleStore
	if *dbFile != "" {
		database, err := db.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer database.Close()
		if err := database.MigrateUp(migrationsDir); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		cycles = sqlite.NewCycleStore(database.DB)
		log.Printf("Recording planning cycles to %s", *dbFile)
	}

	inputs := ingest.NewStore(tuning.GetWheelbase(), ingest.NewStaticTransforms())
	latest := publish.NewLatestStore()

	publishers := publish.Multi{latest}
	var forwarder *publish.UDPForwarder
	if *forwardAddr != "" {
		forwarder, err = publish.NewUDPForwarder(*forwardAddr, time.Minute)
		if err != nil {
			log.Fatalf("Failed to create output forwarder: %v", err)
		}
		defer forwarder.Close()
		publishers = append(publishers, forwarder)
		log.Printf("Forwarding cycle outputs to %s", *forwardAddr)
	}

	sampler := &frenet.OffsetSampler{
		CruiseSpeed:  tuning.GetCruiseSpeed(),
		VehicleWidth: tuning.GetVehicleWidth(),
	}

	cfg := pipeline.Config{
		Tuning:    tuning,
		Inputs:    inputs,
		Planner:   sampler,
		Publisher: publishers,
	}
	if cycles != nil {
		cfg.Recorder = cycles
	}
	loop, err := pipeline.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create planning loop: %v", err)
	}

	// Construct UDP listen address
	var udpListenAddr string
	if *udpAddress == "" {
		udpListenAddr = fmt.Sprintf(":%d", *udpPort)
	} else {
		udpListenAddr = fmt.Sprintf("%s:%d", *udpAddress, *udpPort)
	}
	listener := ingest.NewUDPListener(ingest.UDPListenerConfig{
		Address: udpListenAddr,
		RcvBuf:  *rcvBuf,
		Store:   inputs,
	})

	// Create a wait group for the HTTP server, UDP listener, and planning
	// loop routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if forwarder != nil {
		forwarder.Start(ctx)
	}

	// Start UDP listener routine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := listener.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("UDP listener error: %v", err)
		}
		log.Print("UDP listener routine terminated")
	}()

	// Planning loop routine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Planning loop error: %v", err)
		}
		log.Print("Planning loop routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// Health check endpoint
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"status": "ok", "service": "planner", "timestamp": "%s"}`, time.Now().UTC().Format(time.RFC3339))
		})

		// API and debug chart routes
		apiServer := api.NewServer(loop, latest, cycles, *displayUnits)
		mux.Handle("/api/", apiServer.ServeMux())
		monitor.New(latest, loop, cycles).Register(mux)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("Starting HTTP server on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		log.Print("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Print("Graceful shutdown complete")
}
