// Command emsgo runs a bang-bang thermostat demo against the scripted engine:
// a single zone with synthetic physics, a heating setpoint actuator, and a
// control agent bound at the after-predictor calling point. It exports the
// recorded series as CSV and prints per-metric summaries.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/buildsim/emsgo"
	"github.com/buildsim/emsgo/emstest"
)

// version is set at build time via -ldflags.
var version = "dev"

const (
	comfortLow  = 20.0 // heat below this
	comfortHigh = 23.0 // relinquish above this
	heatingSet  = 24.0
)

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("EMSGO_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal).
	_ = godotenv.Load()

	days := 2
	if v := os.Getenv("EMSGO_DEMO_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("EMSGO_DEMO_DAYS=%q is not a positive integer", v)
		}
		days = n
	}

	eng := buildScriptedZone(days)

	sess, err := emsgo.New(
		emsgo.WithEngine(eng),
		emsgo.WithLogger(logger),
		emsgo.WithVersion(version),
		emsgo.WithModelFile("demo_zone.idf"),
		emsgo.WithWeatherFile("demo_weather.epw"),
	)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	if err := registerMetrics(sess); err != nil {
		return err
	}

	// Bang-bang thermostat: heat below the comfort band, hand the setpoint
	// back to the engine above it.
	actuate := func() map[string]*float64 {
		temp, err := sess.Data("zone_temp", 0)
		if err != nil {
			return nil
		}
		switch {
		case temp.Value < comfortLow:
			return map[string]*float64{"heating_setpoint": emsgo.Float(heatingSet)}
		case temp.Value > comfortHigh:
			return map[string]*float64{"heating_setpoint": nil}
		default:
			return nil
		}
	}

	// Negative comfort-band deviation as the reward signal.
	observe := func() *float64 {
		temp, err := sess.Data("zone_temp", 0)
		if err != nil {
			return nil
		}
		var dev float64
		if temp.Value < comfortLow {
			dev = comfortLow - temp.Value
		} else if temp.Value > comfortHigh {
			dev = temp.Value - comfortHigh
		}
		return emsgo.Float(-dev)
	}

	if _, err := sess.Bind(emsgo.Binding{
		CallingPoint: emsgo.CPAfterPredictorAfterHVACManagers,
		UpdateState:  true,
		Observe:      observe,
		Actuate:      actuate,
	}); err != nil {
		return err
	}

	logger.Info("demo starting", "days", days, "run_id", sess.RunID())
	if err := sess.Run(ctx); err != nil {
		return err
	}

	outDir := os.Getenv("EMSGO_OUTPUT_DIR")
	if outDir == "" {
		outDir = "out"
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	csvPath := filepath.Join(outDir, "demo_"+sess.RunID().String()+".csv")
	if err := sess.ExportCSV(csvPath); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	logger.Info("series exported", "path", csvPath)

	for _, cat := range []emsgo.Category{emsgo.CategoryVariable, emsgo.CategoryMeter, emsgo.CategoryReward} {
		for _, s := range sess.Summaries(cat) {
			logger.Info("summary", "category", cat, "metric", s.Metric,
				"count", s.Count, "mean", s.Mean, "stddev", s.Stddev, "min", s.Min, "max", s.Max)
		}
	}
	return nil
}

// buildScriptedZone defines a one-zone scripted model: the zone drifts toward
// the outdoor temperature each timestep and warms when the heating setpoint
// override is above the current temperature.
func buildScriptedZone(days int) *emstest.Engine {
	eng := emstest.New(emstest.Config{Days: days, WarmupDays: 1, TimestepsPerHour: 4})

	eng.DefineVariable("Zone Air Temperature", "Demo Zone", 21.0)
	eng.DefineInternalVariable("Zone Floor Area", "Demo Zone", 100.0)
	eng.DefineMeter("Electricity:HVAC", 0)
	eng.DefineActuator("Zone Temperature Control", "Heating Setpoint", "Demo Zone", emsgo.ActuatorFloat, 15.0)
	eng.DefineWeather("outdoor_dry_bulb", 5.0)

	temp := 21.0
	eng.OnStep = func(step int) {
		// Crude diurnal outdoor swing around 5°C.
		outdoor := 5.0 + 4.0*float64(step%96)/96
		eng.SetWeather("outdoor_dry_bulb", outdoor)

		setpoint, overridden := eng.ActuatorValue("Zone Temperature Control", "Heating Setpoint", "Demo Zone")
		temp += 0.1 * (outdoor - temp)
		if overridden && setpoint > temp {
			temp += 0.5
			eng.AddToMeter("Electricity:HVAC", 1.2)
		}
		eng.SetVariable("Zone Air Temperature", "Demo Zone", temp)
	}
	return eng
}

func registerMetrics(sess *emsgo.Session) error {
	if err := sess.RegisterVariable("zone_temp", "Zone Air Temperature", "Demo Zone"); err != nil {
		return err
	}
	if err := sess.RegisterInternalVariable("floor_area", "Zone Floor Area", "Demo Zone"); err != nil {
		return err
	}
	if err := sess.RegisterMeter("hvac_electricity", "Electricity:HVAC"); err != nil {
		return err
	}
	if err := sess.RegisterActuator("heating_setpoint", "Zone Temperature Control", "Heating Setpoint", "Demo Zone"); err != nil {
		return err
	}
	return sess.RegisterWeather("outdoor_temp", "outdoor_dry_bulb")
}
