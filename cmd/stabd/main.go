// Command stabd runs the stabilization engine against a live serial-attached
// IMU (or a recorded trace), computes frame transforms at a fixed rate, and
// serves diagnostics over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/stabilize/internal/config"
	"github.com/banshee-data/stabilize/internal/monitor"
	"github.com/banshee-data/stabilize/internal/motion"
	"github.com/banshee-data/stabilize/internal/replay"
	"github.com/banshee-data/stabilize/internal/serialimu"
	"github.com/banshee-data/stabilize/internal/tracestore"
	"github.com/banshee-data/stabilize/internal/version"
)

var (
	portName   = flag.String("port", "", "Serial port of the IMU (e.g. /dev/ttyUSB0)")
	baudRate   = flag.Int("baud", 115200, "Serial baud rate")
	replayFile = flag.String("replay", "", "Replay a recorded trace instead of reading serial")
	listen     = flag.String("listen", ":8080", "Diagnostics listen address")
	dbFile     = flag.String("db", "stab_traces.db", "Trace database path (empty disables recording)")
	configPath = flag.String("config", "", "Tuning config JSON path")
	fps        = flag.Float64("fps", 30, "Frame rate for transform computation")

	modeFlag    = flag.String("mode", string(motion.ModeHandheld), "Stabilization mode")
	strength    = flag.Float64("strength", 0.5, "Correction strength [0,1]")
	smoothness  = flag.Float64("smoothness", 0.5, "Transform smoothing [0,1]")
	cropFactor  = flag.Float64("crop", 0.1, "Crop factor [0,1]")
	noMag       = flag.Bool("no-mag", false, "Assume no magnetometer is present")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		log.Printf("stabd %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *portName == "" && *replayFile == "" {
		log.Fatal("either -port or -replay is required")
	}
	interval, err := frameInterval(*fps)
	if err != nil {
		log.Fatalf("invalid -fps: %v", err)
	}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	engine := motion.NewEngine(tuning)
	engine.SetConfig(motion.StabilizationConfig{
		Mode:       motion.Mode(*modeFlag),
		Strength:   *strength,
		Smoothness: *smoothness,
		CropFactor: *cropFactor,
	})
	if err := engine.Start(motion.SensorCapabilities{
		Accelerometer: true,
		Magnetometer:  !*noMag,
	}); err != nil {
		log.Fatalf("failed to start engine: %v", err)
	}
	defer engine.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *tracestore.Store
	if *dbFile != "" {
		var err error
		store, err = tracestore.Open(*dbFile)
		if err != nil {
			log.Fatalf("failed to open trace store: %v", err)
		}
		defer store.Close()
	}

	if *portName != "" {
		port, err := serialimu.Open(*portName, *baudRate)
		if err != nil {
			log.Fatalf("failed to open IMU port: %v", err)
		}
		go func() {
			if err := port.Monitor(ctx, engine); err != nil {
				log.Printf("IMU monitor stopped: %v", err)
			}
			stop()
		}()
	} else {
		records, err := readTrace(*replayFile)
		if err != nil {
			log.Fatalf("failed to read trace: %v", err)
		}
		go feedPaced(ctx, engine, records)
	}

	go frameLoop(ctx, engine, store, interval)

	ws := monitor.NewWebServer(engine)
	server := &http.Server{Addr: *listen, Handler: ws.ServeMux()}
	go func() {
		log.Printf("diagnostics listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("diagnostics server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("diagnostics shutdown: %v", err)
	}
}

func readTrace(path string) ([]replay.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return replay.ReadAll(f)
}

// feedPaced replays records with inter-sample delays matching their recorded
// timestamps, so the engine sees realistic arrival timing.
func feedPaced(ctx context.Context, engine *motion.Engine, records []replay.Record) {
	var prevTs int64
	for _, rec := range records {
		if prevTs > 0 && rec.TimestampNanos > prevTs {
			delay := time.Duration(rec.TimestampNanos - prevTs)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
		prevTs = rec.TimestampNanos
		replay.Feed(engine, []replay.Record{rec})
	}
	log.Printf("trace replay finished (%d samples)", len(records))
}

// frameInterval converts the frames-per-second flag into a ticker period.
func frameInterval(fps float64) (time.Duration, error) {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return 0, fmt.Errorf("frame rate must be a positive number, got %v", fps)
	}
	return time.Duration(float64(time.Second) / fps), nil
}

// frameLoop computes a transform per frame interval, standing in for the
// video pipeline, and records it when a store is configured.
func frameLoop(ctx context.Context, engine *motion.Engine, store *tracestore.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t := engine.ComputeFrameTransform(now.UnixNano())
			if store == nil {
				continue
			}
			status := engine.Status()
			if err := store.RecordTransform(status.SessionID, now.UnixNano(), status.EffectiveMode, status.MotionLevel, t); err != nil {
				log.Printf("failed to record transform: %v", err)
			}
		}
	}
}
