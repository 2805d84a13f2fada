// Command cogload imports lap telemetry captures, runs the cognitive load
// analysis over stored sessions, and serves the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/cogload.report/internal/api"
	"github.com/banshee-data/cogload.report/internal/db"
	"github.com/banshee-data/cogload.report/internal/pipeline"
	"github.com/banshee-data/cogload.report/internal/render"
	"github.com/banshee-data/cogload.report/internal/telemetry"
)

var (
	dbFile     = flag.String("db", "cogload.db", "Path to the sqlite database")
	listen     = flag.String("listen", ":8080", "Listen address for the HTTP server")
	speedUnits = flag.String("units", "kph", "Display units for speeds (mps, kph, mph)")

	importFile   = flag.String("import", "", "Import a telemetry capture from this file and exit")
	importName   = flag.String("name", "", "Session name for -import (defaults to the file name)")
	importFormat = flag.String("format", "csv", "Capture format for -import (csv or pcap)")
	vehicleID    = flag.String("vehicle", "", "Vehicle ID filter for CSV import")
	lapNumber    = flag.Int("lap", 0, "Lap number filter for CSV import")

	analyzeID = flag.String("analyze", "", "Run the analysis over this session ID and exit")
	segments  = flag.Int("segments", 60, "Segment count for -analyze")
	topK      = flag.Int("topk", 5, "Ranked list length for -analyze")
	heatmap   = flag.String("heatmap", "", "Write a track load PNG to this path during -analyze")

	migrateCmd    = flag.String("migrate", "", "Run a migration command and exit (up, down, version)")
	migrationsDir = flag.String("migrations", "migrations", "Path to the migrations directory")
)

func main() {
	flag.Parse()

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	switch {
	case *migrateCmd != "":
		if err := runMigrate(database, *migrateCmd); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	case *importFile != "":
		if err := runImport(database); err != nil {
			log.Fatalf("Import failed: %v", err)
		}
	case *analyzeID != "":
		if err := runAnalyze(database); err != nil {
			log.Fatalf("Analysis failed: %v", err)
		}
	default:
		serve(database)
	}
}

func runMigrate(database *db.DB, cmd string) error {
	switch cmd {
	case "up":
		return database.MigrateUp(*migrationsDir)
	case "down":
		return database.MigrateDown(*migrationsDir)
	case "version":
		version, dirty, err := database.MigrateVersion(*migrationsDir)
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%v\n", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown migrate command %q", cmd)
	}
}

func runImport(database *db.DB) error {
	f, err := os.Open(*importFile)
	if err != nil {
		return err
	}
	defer f.Close()

	name := *importName
	if name == "" {
		name = *importFile
	}

	var samples telemetry.Series
	switch *importFormat {
	case "csv":
		samples, err = telemetry.LoadCSV(f, telemetry.CSVOptions{
			VehicleID: *vehicleID,
			Lap:       *lapNumber,
		})
	case "pcap":
		samples, err = telemetry.LoadPCAP(f, telemetry.PCAPOptions{})
	default:
		return fmt.Errorf("unknown format %q", *importFormat)
	}
	if err != nil {
		return err
	}

	id, err := database.CreateSession(name, *importFormat, samples)
	if err != nil {
		return err
	}

	log.Printf("Imported session %s: %d samples, %.1fs, %.0fm", id, len(samples), samples.Duration(), samples.TotalDistance())
	return nil
}

func runAnalyze(database *db.DB) error {
	samples, err := database.GetSamples(*analyzeID)
	if err != nil {
		return err
	}

	params := pipeline.DefaultParams()
	params.SegmentCount = *segments
	params.TopK = *topK

	result, err := pipeline.Run(samples, params)
	if err != nil {
		return err
	}

	runID, err := database.SaveReport(*analyzeID, result.Params, result.Report)
	if err != nil {
		return err
	}
	log.Printf("Stored report %s for session %s", runID, *analyzeID)

	if *heatmap != "" {
		if err := render.SaveHeatmap(*heatmap, result.Positions, result.CLI); err != nil {
			return err
		}
		log.Printf("Wrote track load map to %s", *heatmap)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result.Report)
}

func serve(database *db.DB) {
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// admin debugging routes (tailsql browser, backup download)
		database.AttachAdminRoutes(mux)

		apiServer := api.NewServer(database, *speedUnits)
		apiMux := apiServer.ServeMux()
		mux.Handle("/api/", apiMux)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("Listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
