// Command stab-replay runs a recorded motion trace through the stabilization
// engine offline, computing transforms at trace time rather than wall time,
// and prints aggregate statistics. Optional outputs: a SQLite trace database
// and an HTML motion chart.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/banshee-data/stabilize/internal/config"
	"github.com/banshee-data/stabilize/internal/monitor"
	"github.com/banshee-data/stabilize/internal/motion"
	"github.com/banshee-data/stabilize/internal/replay"
	"github.com/banshee-data/stabilize/internal/tracestore"
)

var (
	traceFile  = flag.String("trace", "", "Motion trace CSV to replay (required)")
	configPath = flag.String("config", "", "Tuning config JSON path")
	fps        = flag.Float64("fps", 30, "Simulated frame rate")
	dbFile     = flag.String("db", "", "Optional SQLite output for per-frame transforms")
	htmlFile   = flag.String("html", "", "Optional HTML motion chart output")

	modeFlag   = flag.String("mode", string(motion.ModeHandheld), "Stabilization mode")
	strength   = flag.Float64("strength", 0.5, "Correction strength [0,1]")
	smoothness = flag.Float64("smoothness", 0.5, "Transform smoothing [0,1]")
	cropFactor = flag.Float64("crop", 0.1, "Crop factor [0,1]")
)

func main() {
	flag.Parse()
	if *traceFile == "" {
		log.Fatal("-trace is required")
	}
	interval, err := frameIntervalNanos(*fps)
	if err != nil {
		log.Fatalf("invalid -fps: %v", err)
	}

	f, err := os.Open(*traceFile)
	if err != nil {
		log.Fatalf("failed to open trace: %v", err)
	}
	records, err := replay.ReadAll(f)
	f.Close()
	if err != nil {
		log.Fatalf("failed to parse trace: %v", err)
	}
	if len(records) == 0 {
		log.Fatal("trace is empty")
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
	if err := engine.Start(capabilitiesFromTrace(records)); err != nil {
		log.Fatalf("failed to start engine: %v", err)
	}
	defer engine.Stop()

	var store *tracestore.Store
	if *dbFile != "" {
		store, err = tracestore.Open(*dbFile)
		if err != nil {
			log.Fatalf("failed to open trace store: %v", err)
		}
		defer store.Close()
	}

	stats := runReplay(engine, store, records, interval)

	fmt.Printf("trace:             %s (%d samples)\n", *traceFile, len(records))
	fmt.Printf("frames:            %d @ %.1f fps\n", stats.frames, *fps)
	fmt.Printf("mean |rotation|:   %.3f°\n", stats.meanAbsRotation)
	fmt.Printf("max |rotation|:    %.3f°\n", stats.maxAbsRotation)
	fmt.Printf("mean confidence:   %.3f\n", stats.meanConfidence)
	fmt.Printf("identity frames:   %.1f%%\n", stats.identityFraction*100)

	status := engine.Status()
	fmt.Printf("final motion level: %.3f (mode %s, fusion %s)\n",
		status.MotionLevel, status.EffectiveMode, status.FusionMode)

	if store != nil {
		summary, err := store.Summarize(status.SessionID)
		if err != nil {
			log.Fatalf("failed to summarize session: %v", err)
		}
		fmt.Printf("stored session %s: %d frames\n", summary.SessionID, summary.FrameCount)
	}

	if *htmlFile != "" {
		out, err := os.Create(*htmlFile)
		if err != nil {
			log.Fatalf("failed to create chart file: %v", err)
		}
		defer out.Close()
		samples := engine.RecentSamples(256)
		if err := monitor.RenderMotionChart(out, samples, "Replay: "+*traceFile); err != nil {
			log.Fatalf("failed to render chart: %v", err)
		}
	}
}

// capabilitiesFromTrace infers sensor availability from the record kinds so
// the engine degrades the same way it would have live.
func capabilitiesFromTrace(records []replay.Record) motion.SensorCapabilities {
	var caps motion.SensorCapabilities
	for _, rec := range records {
		switch rec.Kind {
		case 'A':
			caps.Accelerometer = true
		case 'M':
			caps.Magnetometer = true
		}
		if caps.Accelerometer && caps.Magnetometer {
			break
		}
	}
	return caps
}

type replayStats struct {
	frames           int
	meanAbsRotation  float64
	maxAbsRotation   float64
	meanConfidence   float64
	identityFraction float64
}

// frameIntervalNanos converts the frames-per-second flag into a frame period.
func frameIntervalNanos(fps float64) (int64, error) {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return 0, fmt.Errorf("frame rate must be a positive number, got %v", fps)
	}
	return int64(1e9 / fps), nil
}

// runReplay feeds samples in trace order and computes a transform at every
// simulated frame boundary, using trace timestamps as the clock.
func runReplay(engine *motion.Engine, store *tracestore.Store, records []replay.Record, frameInterval int64) replayStats {
	nextFrame := records[0].TimestampNanos + frameInterval

	var stats replayStats
	var sumAbsRot, sumConf float64
	var identity int

	computeFrame := func(tsNanos int64) {
		t := engine.ComputeFrameTransform(tsNanos)
		stats.frames++
		sumAbsRot += math.Abs(t.RotationAngle)
		if abs := math.Abs(t.RotationAngle); abs > stats.maxAbsRotation {
			stats.maxAbsRotation = abs
		}
		sumConf += t.Confidence
		if t.IsIdentity() {
			identity++
		}
		if store != nil {
			status := engine.Status()
			if err := store.RecordTransform(status.SessionID, tsNanos, status.EffectiveMode, status.MotionLevel, t); err != nil {
				log.Printf("failed to record transform: %v", err)
			}
		}
	}

	for _, rec := range records {
		for rec.TimestampNanos >= nextFrame {
			computeFrame(nextFrame)
			nextFrame += frameInterval
		}
		replay.Feed(engine, []replay.Record{rec})
	}
	computeFrame(nextFrame)

	if stats.frames > 0 {
		stats.meanAbsRotation = sumAbsRot / float64(stats.frames)
		stats.meanConfidence = sumConf / float64(stats.frames)
		stats.identityFraction = float64(identity) / float64(stats.frames)
	}
	return stats
}
