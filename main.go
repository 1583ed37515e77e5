package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hearthside-robotics/homerover/api"
	"github.com/hearthside-robotics/homerover/internal/config"
	"github.com/hearthside-robotics/homerover/internal/estimator"
	"github.com/hearthside-robotics/homerover/internal/executor"
	"github.com/hearthside-robotics/homerover/internal/hal"
	"github.com/hearthside-robotics/homerover/internal/hal/basemux"
	"github.com/hearthside-robotics/homerover/internal/monitoring"
	"github.com/hearthside-robotics/homerover/internal/nav"
	"github.com/hearthside-robotics/homerover/internal/sim"
	"github.com/hearthside-robotics/homerover/internal/telemetry"
	"github.com/hearthside-robotics/homerover/internal/timeutil"
	"github.com/hearthside-robotics/homerover/internal/version"
)

var (
	devMode    = flag.Bool("dev", false, "Run in dev mode against the simulated base")
	listen     = flag.String("listen", ":8080", "Listen address")
	serialPort = flag.String("serial", "/dev/ttyACM0", "Base serial device")
	configPath = flag.String("config", config.DefaultConfigPath, "Tuning config file (JSON)")
	dbFile     = flag.String("db", "rover.db", "Telemetry database path (empty disables telemetry)")
	migrations = flag.String("migrations", telemetry.DefaultMigrationsDir, "Schema migrations directory")
	debug      = flag.Bool("debug", false, "Enable planner debug logging")
	plotDir    = flag.String("plot-dir", "", "Dump distance-field PNGs here after each plan (empty disables)")
)

// Main
func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	monitoring.SetDebug(*debug)
	build := version.Get()
	log.Printf("homerover %s (%s)", build.Version, build.GitSHA)

	tuning, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var robot hal.RobotClient
	var mux basemux.BaseMuxInterface
	if *devMode {
		// Simulated base: a walled room with a couple of boxes to bump into.
		world, err := sim.NewWorld(tuning.GetMapSizeCm(), tuning.GetMapResolutionCm())
		if err != nil {
			log.Fatalf("failed to create sim world: %v", err)
		}
		size := world.SizeM()
		world.AddBox(0, 0, size, 0.1)
		world.AddBox(0, 0, 0.1, size)
		world.AddBox(size-0.1, 0, size, size)
		world.AddBox(0, size-0.1, size, size)
		world.AddBox(size/2+2, size/2-1, size/2+2.5, size/2+1)

		robot, err = sim.NewRobot(world, sim.DefaultRobotConfig(), nav.Pose{X: size / 2, Y: size / 2})
		if err != nil {
			log.Fatalf("failed to create sim robot: %v", err)
		}
	} else {
		mux, err = basemux.NewRealBaseMux(*serialPort)
		if err != nil {
			log.Fatalf("failed to open base port: %v", err)
		}

		serialRobot := hal.NewSerialRobot(mux, hal.SerialRobotConfig{
			ForwardStepM: 0.25,
			TurnAngleDeg: tuning.GetTurnAngleDeg(),
		})
		robot = serialRobot

		// run the monitor routine to manage IO on the serial port
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mux.Monitor(ctx); err != nil && err != context.Canceled {
				log.Printf("failed to monitor base port: %v", err)
			}
			log.Print("monitor routine terminated")
		}()

		// consume telemetry lines into the cached base state
		wg.Add(1)
		go func() {
			defer wg.Done()
			serialRobot.Listen(ctx)
			log.Print("telemetry routine terminated")
		}()
	}
	defer robot.Close()

	var store *telemetry.Store
	if *dbFile != "" {
		store, err = telemetry.Open(*dbFile)
		if err != nil {
			log.Fatalf("failed to open telemetry database: %v", err)
		}
		defer store.Close()
		if err := store.MigrateUp(*migrations); err != nil {
			log.Fatalf("failed to migrate telemetry database: %v", err)
		}

		// periodic WAL checkpoint so the db file stays bounded
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Maintain(ctx, timeutil.RealClock{}, tuning.GetFlushInterval())
			log.Print("telemetry maintenance routine terminated")
		}()
	}

	planner, err := nav.NewDiscretePlanner(nav.PlannerConfigFromTuning(tuning))
	if err != nil {
		log.Fatalf("failed to create planner: %v", err)
	}
	if *plotDir != "" {
		plotter, err := nav.NewFieldPlotter(*plotDir)
		if err != nil {
			log.Fatalf("failed to create field plotter: %v", err)
		}
		planner.Plotter = plotter
	}
	filter := estimator.NewPoseEstimator(estimator.EstimatorConfigFromTuning(tuning))
	occupancy, err := estimator.NewOccupancyGrid(
		tuning.GetMapSizeCm(), tuning.GetMapResolutionCm(),
		tuning.GetOccupiedLogOdds(), tuning.GetFreeLogOdds())
	if err != nil {
		log.Fatalf("failed to create occupancy grid: %v", err)
	}

	var recorder executor.Recorder
	if store != nil {
		recorder = store
	}
	exec, err := executor.New(robot, planner, filter, occupancy, recorder, executor.ConfigFromTuning(tuning))
	if err != nil {
		log.Fatalf("failed to create executor: %v", err)
	}

	// episode loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := exec.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("executor terminated: %v", err)
		}
		log.Print("executor routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		httpMux := http.NewServeMux()

		// mount the base debugging routes when running against real hardware
		if mux != nil {
			mux.AttachAdminRoutes(httpMux)
		}

		apiMux := api.NewServer(robot, exec, filter, occupancy, store).ServeMux()
		httpMux.Handle("/api/", http.StripPrefix("/api", apiMux))
		httpMux.Handle("/", apiMux)

		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("got request %q", r.URL.Path)
			httpMux.ServeHTTP(w, r)
		})

		server := &http.Server{
			Addr:    *listen,
			Handler: h,
		}

		// Start server in a goroutine so it doesn't block
		go func() {
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

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
