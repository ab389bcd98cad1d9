package emsgo_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildsim/emsgo"
	"github.com/buildsim/emsgo/emstest"
	"github.com/buildsim/emsgo/internal/storage"
)

const (
	oneDaySteps = 96 // 24 hours at 4 timesteps per hour
	afterHVAC   = emsgo.CPAfterPredictorAfterHVACManagers
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// zoneEngine builds a scripted one-zone model used by most scenarios.
func zoneEngine(cfg emstest.Config) *emstest.Engine {
	eng := emstest.New(cfg)
	eng.DefineVariable("Zone Air Temperature", "Zone 1", 21.0)
	eng.DefineInternalVariable("Zone Floor Area", "Zone 1", 100.0)
	eng.DefineMeter("Electricity:HVAC", 0)
	eng.DefineActuator("Zone Temperature Control", "Heating Setpoint", "Zone 1", emsgo.ActuatorFloat, 15.0)
	eng.DefineWeather("outdoor_dry_bulb", 5.0)
	return eng
}

func newSession(t *testing.T, eng *emstest.Engine, opts ...emsgo.Option) *emsgo.Session {
	t.Helper()
	base := []emsgo.Option{
		emsgo.WithEngine(eng),
		emsgo.WithLogger(quietLogger()),
		emsgo.WithModelFile("test.idf"),
		emsgo.WithWeatherFile("test.epw"),
		emsgo.WithArchive(""),
	}
	sess, err := emsgo.New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func registerZoneMetrics(t *testing.T, sess *emsgo.Session) {
	t.Helper()
	require.NoError(t, sess.RegisterVariable("zone_temp", "Zone Air Temperature", "Zone 1"))
	require.NoError(t, sess.RegisterInternalVariable("floor_area", "Zone Floor Area", "Zone 1"))
	require.NoError(t, sess.RegisterMeter("hvac_electricity", "Electricity:HVAC"))
	require.NoError(t, sess.RegisterActuator("heat", "Zone Temperature Control", "Heating Setpoint", "Zone 1"))
	require.NoError(t, sess.RegisterWeather("outdoor_temp", "outdoor_dry_bulb"))
}

func TestNew_RequiresEngine(t *testing.T) {
	_, err := emsgo.New(emsgo.WithLogger(quietLogger()))
	var cfgErr *emsgo.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestSession_StateMachine(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})
	sess := newSession(t, eng)
	assert.Equal(t, emsgo.StateUnconfigured, sess.State())

	registerZoneMetrics(t, sess)
	assert.Equal(t, emsgo.StateConfigured, sess.State())

	_, err := sess.Bind(emsgo.Binding{CallingPoint: afterHVAC, UpdateState: true})
	require.NoError(t, err)

	require.NoError(t, sess.Run(context.Background()))
	assert.Equal(t, emsgo.StateFinished, sess.State())
}

func TestRun_RecordsEveryMetricEveryTimestep(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})
	temp := 21.0
	eng.OnStep = func(step int) {
		temp += 0.01
		eng.SetVariable("Zone Air Temperature", "Zone 1", temp)
		eng.AddToMeter("Electricity:HVAC", 0.5)
	}

	sess := newSession(t, eng)
	registerZoneMetrics(t, sess)
	_, err := sess.Bind(emsgo.Binding{CallingPoint: afterHVAC, UpdateState: true})
	require.NoError(t, err)

	require.NoError(t, sess.Run(context.Background()))

	for _, name := range []string{"zone_temp", "floor_area", "hvac_electricity", "heat", "outdoor_temp"} {
		s, err := sess.Series(name)
		require.NoError(t, err, name)
		assert.Len(t, s, oneDaySteps, name)
	}

	last, err := sess.Data("zone_temp", 0)
	require.NoError(t, err)
	assert.Equal(t, oneDaySteps, last.Step)
	assert.InDelta(t, 21.0+0.01*oneDaySteps, last.Value, 1e-9)

	prev, err := sess.Data("zone_temp", 1)
	require.NoError(t, err)
	assert.InDelta(t, last.Value-0.01, prev.Value, 1e-9)

	_, err = sess.Data("zone_temp", oneDaySteps)
	assert.ErrorIs(t, err, emsgo.ErrInsufficientHistory)
	_, err = sess.Data("no_such_metric", 0)
	assert.ErrorIs(t, err, emsgo.ErrUnknownMetric)
}

func TestRun_InternalVariableFetchedOnceAndRepeated(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})
	eng.OnStep = func(step int) {
		// Later mutations of a static internal variable must not show up:
		// the driver caches the first fetch.
		eng.SetVariable("Zone Floor Area", "Zone 1", 999.0)
	}

	sess := newSession(t, eng)
	registerZoneMetrics(t, sess)
	_, err := sess.Bind(emsgo.Binding{CallingPoint: afterHVAC, UpdateState: true})
	require.NoError(t, err)
	require.NoError(t, sess.Run(context.Background()))

	s, err := sess.Series("floor_area")
	require.NoError(t, err)
	require.Len(t, s, oneDaySteps)
	for _, p := range s {
		assert.Equal(t, 100.0, p.Value)
	}
}

func TestRun_HandleResolutionIsCached(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})
	sess := newSession(t, eng)
	registerZoneMetrics(t, sess)
	_, err := sess.Bind(emsgo.Binding{CallingPoint: afterHVAC, UpdateState: true})
	require.NoError(t, err)
	require.NoError(t, sess.Run(context.Background()))

	// Five table-of-contents entries, one engine lookup each.
	assert.Equal(t, 5, eng.Lookups())
}

func TestRun_WarmupTimestepsAreSkipped(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1, WarmupDays: 2})
	sess := newSession(t, eng)
	registerZoneMetrics(t, sess)
	_, err := sess.Bind(emsgo.Binding{CallingPoint: afterHVAC, UpdateState: true})
	require.NoError(t, err)
	require.NoError(t, sess.Run(context.Background()))

	s, err := sess.Series("zone_temp")
	require.NoError(t, err)
	assert.Len(t, s, oneDaySteps, "only post-warmup timesteps are recorded")
}

func TestRun_ReadinessGating(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1, NotReadySteps: 6})
	sess := newSession(t, eng)
	registerZoneMetrics(t, sess)
	_, err := sess.Bind(emsgo.Binding{CallingPoint: afterHVAC, UpdateState: true})
	require.NoError(t, err)
	require.NoError(t, sess.Run(context.Background()))

	s, err := sess.Series("zone_temp")
	require.NoError(t, err)
	assert.Len(t, s, oneDaySteps-6, "callbacks before data-exchange readiness are skipped")
}

func TestRun_ObservationFrequencyAndRewards(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})
	sess := newSession(t, eng)
	registerZoneMetrics(t, sess)

	reward := 0.0
	_, err := sess.Bind(emsgo.Binding{
		CallingPoint:     afterHVAC,
		UpdateState:      true,
		Observe:          func() *float64 { reward++; return emsgo.Float(reward) },
		ObservationEvery: 2,
	})
	require.NoError(t, err)
	require.NoError(t, sess.Run(context.Background()))

	rewards := sess.RewardSeries()
	require.Len(t, rewards, oneDaySteps/2, "observation fires on every second invocation")
	assert.Equal(t, 1.0, rewards[0].Value)
	assert.Equal(t, 2, rewards[0].Step, "first firing is the second timestep")
}

func TestRun_RewardsBeforeFirstStateUpdateAreDropped(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})
	sess := newSession(t, eng)
	registerZoneMetrics(t, sess)

	// The observing binding fires earlier in each timestep than the state
	// updater, so its first return arrives before any timestep exists.
	calls := 0.0
	_, err := sess.Bind(emsgo.Binding{
		CallingPoint: emsgo.CPBeginZoneTimestepBeforeInitHeatBalance,
		Observe:      func() *float64 { calls++; return emsgo.Float(calls) },
	})
	require.NoError(t, err)
	_, err = sess.Bind(emsgo.Binding{CallingPoint: afterHVAC, UpdateState: true})
	require.NoError(t, err)
	require.NoError(t, sess.Run(context.Background()))

	rewards := sess.RewardSeries()
	require.Len(t, rewards, oneDaySteps-1)
	assert.Equal(t, 1, rewards[0].Step, "timestep indices start at 1")
	assert.Equal(t, 2.0, rewards[0].Value, "the pre-timestep return is not recorded")
}

func TestRun_ActuationWriteAndCoercion(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})
	eng.DefineActuator("Fan", "Stage", "Zone 1", emsgo.ActuatorInteger, 0)
	eng.DefineActuator("Plant Loop", "Availability", "Loop 1", emsgo.ActuatorBoolean, 0)

	sess := newSession(t, eng)
	registerZoneMetrics(t, sess)
	require.NoError(t, sess.RegisterActuator("fan_stage", "Fan", "Stage", "Zone 1"))
	require.NoError(t, sess.RegisterActuator("loop_on", "Plant Loop", "Availability", "Loop 1"))

	_, err := sess.Bind(emsgo.Binding{
		CallingPoint: afterHVAC,
		UpdateState:  true,
		Actuate: func() map[string]*float64 {
			return map[string]*float64{
				"heat":      emsgo.Float(18.4),
				"fan_stage": emsgo.Float(18.4),
				"loop_on":   emsgo.Float(0.7),
			}
		},
	})
	require.NoError(t, err)
	require.NoError(t, sess.Run(context.Background()))

	v, overridden := eng.ActuatorValue("Zone Temperature Control", "Heating Setpoint", "Zone 1")
	assert.True(t, overridden)
	assert.Equal(t, 18.4, v, "float actuators receive the value as-is")

	v, _ = eng.ActuatorValue("Fan", "Stage", "Zone 1")
	assert.Equal(t, 18.0, v, "integer actuators round to nearest")

	v, _ = eng.ActuatorValue("Plant Loop", "Availability", "Loop 1")
	assert.Equal(t, 0.0, v, "only values approximately 1.0 are boolean true")

	// Accepted writes are recorded under the setpoint companion series.
	sp, err := sess.Data("setpoint:heat", 0)
	require.NoError(t, err)
	assert.Equal(t, 18.4, sp.Value)
}

func TestRun_IntegerCoercionTiesRoundUp(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})
	eng.DefineActuator("Fan", "Stage", "Zone 1", emsgo.ActuatorInteger, 0)
	eng.DefineActuator("Fan", "Stage", "Zone 2", emsgo.ActuatorInteger, 0)

	sess := newSession(t, eng)
	registerZoneMetrics(t, sess)
	require.NoError(t, sess.RegisterActuator("stage_1", "Fan", "Stage", "Zone 1"))
	require.NoError(t, sess.RegisterActuator("stage_2", "Fan", "Stage", "Zone 2"))

	_, err := sess.Bind(emsgo.Binding{
		CallingPoint: afterHVAC,
		UpdateState:  true,
		Actuate: func() map[string]*float64 {
			return map[string]*float64{
				"stage_1": emsgo.Float(-0.5),
				"stage_2": emsgo.Float(2.5),
			}
		},
	})
	require.NoError(t, err)
	require.NoError(t, sess.Run(context.Background()))

	v, _ := eng.ActuatorValue("Fan", "Stage", "Zone 1")
	assert.Equal(t, 0.0, v, "-0.5 rounds up to 0, not away from zero")

	v, _ = eng.ActuatorValue("Fan", "Stage", "Zone 2")
	assert.Equal(t, 3.0, v)
}

func TestRun_BooleanTrueSetpoint(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})
	eng.DefineActuator("Plant Loop", "Availability", "Loop 1", emsgo.ActuatorBoolean, 0)

	sess := newSession(t, eng)
	registerZoneMetrics(t, sess)
	require.NoError(t, sess.RegisterActuator("loop_on", "Plant Loop", "Availability", "Loop 1"))

	_, err := sess.Bind(emsgo.Binding{
		CallingPoint: afterHVAC,
		UpdateState:  true,
		Actuate: func() map[string]*float64 {
			return map[string]*float64{"loop_on": emsgo.Bool(true)}
		},
	})
	require.NoError(t, err)
	require.NoError(t, sess.Run(context.Background()))

	v, overridden := eng.ActuatorValue("Plant Loop", "Availability", "Loop 1")
	assert.True(t, overridden)
	assert.Equal(t, 1.0, v)
}

func TestRun_NilSetpointRelinquishes(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})
	sess := newSession(t, eng)
	registerZoneMetrics(t, sess)

	step := 0
	_, err := sess.Bind(emsgo.Binding{
		CallingPoint: afterHVAC,
		UpdateState:  true,
		Actuate: func() map[string]*float64 {
			step++
			if step < oneDaySteps {
				return map[string]*float64{"heat": emsgo.Float(22.0)}
			}
			return map[string]*float64{"heat": nil}
		},
	})
	require.NoError(t, err)
	require.NoError(t, sess.Run(context.Background()))

	v, overridden := eng.ActuatorValue("Zone Temperature Control", "Heating Setpoint", "Zone 1")
	assert.False(t, overridden, "nil setpoint hands the actuator back to the engine")
	assert.Equal(t, 15.0, v, "engine default resumes after relinquish")

	sp, err := sess.Data("setpoint:heat", 0)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(sp.Value), "relinquish is recorded as NaN")
}

func TestRun_UnknownActuatorNameIsNonFatal(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})

	var reported []error
	sess := newSession(t, eng, emsgo.WithRuntimeErrorHandler(func(err error) {
		reported = append(reported, err)
	}))
	registerZoneMetrics(t, sess)

	_, err := sess.Bind(emsgo.Binding{
		CallingPoint: afterHVAC,
		UpdateState:  true,
		Actuate: func() map[string]*float64 {
			return map[string]*float64{
				"heat":      emsgo.Float(22.0),
				"zone_temp": emsgo.Float(1.0), // registered, but not an actuator
				"ghost":     emsgo.Float(1.0), // not registered at all
			}
		},
	})
	require.NoError(t, err)
	require.NoError(t, sess.Run(context.Background()), "malformed actuation output is non-fatal")
	assert.Equal(t, emsgo.StateFinished, sess.State())

	require.Len(t, reported, 2*oneDaySteps)
	var rtErr *emsgo.RuntimeDataError
	require.ErrorAs(t, reported[0], &rtErr)
	assert.Equal(t, afterHVAC, rtErr.CallingPoint)

	// The valid actuator in the same map is still written.
	v, overridden := eng.ActuatorValue("Zone Temperature Control", "Heating Setpoint", "Zone 1")
	assert.True(t, overridden)
	assert.Equal(t, 22.0, v)
}

func TestRun_MultipleStateUpdatesRejectedByDefault(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})
	sess := newSession(t, eng)
	registerZoneMetrics(t, sess)

	_, err := sess.Bind(emsgo.Binding{CallingPoint: afterHVAC, UpdateState: true})
	require.NoError(t, err)
	_, err = sess.Bind(emsgo.Binding{CallingPoint: emsgo.CPEndZoneTimestepAfterZoneReporting, UpdateState: true})
	require.NoError(t, err)

	err = sess.Run(context.Background())
	var cfgErr *emsgo.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, emsgo.StateConfigured, sess.State(), "validation failure leaves the session runnable")
}

func TestRun_MultipleStateUpdatesOptInDoubleAppends(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})
	sess := newSession(t, eng, emsgo.WithMultipleStateUpdates())
	registerZoneMetrics(t, sess)

	_, err := sess.Bind(emsgo.Binding{CallingPoint: afterHVAC, UpdateState: true})
	require.NoError(t, err)
	_, err = sess.Bind(emsgo.Binding{CallingPoint: afterHVAC, UpdateState: true})
	require.NoError(t, err)

	require.NoError(t, sess.Run(context.Background()))

	s, err := sess.Series("zone_temp")
	require.NoError(t, err)
	require.Len(t, s, 2*oneDaySteps, "two state updaters record two rows per timestep")
	assert.Equal(t, s[0].Step, s[1].Step, "both rows share the timestep index")
}

func TestRun_TimestepMismatchFailsEarly(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1, TimestepsPerHour: 6})
	sess := newSession(t, eng) // session default of 4 disagrees with the model
	registerZoneMetrics(t, sess)
	_, err := sess.Bind(emsgo.Binding{CallingPoint: afterHVAC, UpdateState: true})
	require.NoError(t, err)

	err = sess.Run(context.Background())
	var cfgErr *emsgo.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, emsgo.StateFailed, sess.State())
}

func TestRun_ResolutionFailureIsFatal(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})
	sess := newSession(t, eng)
	registerZoneMetrics(t, sess)
	require.NoError(t, sess.RegisterVariable("phantom", "Zone Air Temperature", "No Such Zone"))

	_, err := sess.Bind(emsgo.Binding{CallingPoint: afterHVAC, UpdateState: true})
	require.NoError(t, err)

	err = sess.Run(context.Background())
	var resErr *emsgo.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "phantom", resErr.Metric)
	assert.Equal(t, emsgo.StateFailed, sess.State())
}

func TestRun_EngineFatalErrorPropagates(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1, FailAtStep: 10})
	sess := newSession(t, eng)
	registerZoneMetrics(t, sess)
	_, err := sess.Bind(emsgo.Binding{CallingPoint: afterHVAC, UpdateState: true})
	require.NoError(t, err)

	err = sess.Run(context.Background())
	var engErr *emsgo.EngineFatalError
	require.ErrorAs(t, err, &engErr)
	assert.Contains(t, err.Error(), "timestep 10", "engine diagnostic is preserved")
	assert.Equal(t, emsgo.StateFailed, sess.State())
}

func TestRun_ContextCancellationStopsEngine(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 365})
	sess := newSession(t, eng)
	registerZoneMetrics(t, sess)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := sess.Bind(emsgo.Binding{
		CallingPoint: afterHVAC,
		UpdateState:  true,
		Actuate: func() map[string]*float64 {
			cancel()
			return nil
		},
	})
	require.NoError(t, err)

	err = sess.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, emsgo.StateFailed, sess.State())
}

func TestRun_DuplicateNameRejected(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})
	sess := newSession(t, eng)
	require.NoError(t, sess.RegisterVariable("zone_temp", "Zone Air Temperature", "Zone 1"))

	err := sess.RegisterMeter("zone_temp", "Electricity:HVAC")
	var cfgErr *emsgo.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestRun_ReservedNamesRejected(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})
	sess := newSession(t, eng)
	registerZoneMetrics(t, sess)

	var cfgErr *emsgo.ConfigurationError
	err := sess.RegisterVariable("reward", "Zone Air Temperature", "Zone 1")
	assert.ErrorAs(t, err, &cfgErr, "reward is driver-recorded")

	err = sess.RegisterMeter("setpoint:heat", "Electricity:HVAC")
	assert.ErrorAs(t, err, &cfgErr, "setpoint: names are driver-recorded")

	// The reward series stays purely observation returns.
	_, err = sess.Bind(emsgo.Binding{
		CallingPoint: afterHVAC,
		UpdateState:  true,
		Observe:      func() *float64 { return emsgo.Float(-1.0) },
	})
	require.NoError(t, err)
	require.NoError(t, sess.Run(context.Background()))

	rewards := sess.RewardSeries()
	require.Len(t, rewards, oneDaySteps)
	for _, s := range rewards {
		assert.Equal(t, -1.0, s.Value)
	}
}

func TestRun_BadFrequencyRejected(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})
	sess := newSession(t, eng)

	_, err := sess.Bind(emsgo.Binding{CallingPoint: afterHVAC, ObservationEvery: -1})
	var cfgErr *emsgo.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	_, err = sess.Bind(emsgo.Binding{CallingPoint: "callback_not_real"})
	assert.ErrorAs(t, err, &cfgErr)
}

func TestWeatherForecast(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})
	sess := newSession(t, eng)
	registerZoneMetrics(t, sess)

	v, err := sess.WeatherForecast("outdoor_temp", emsgo.ForecastToday, 6, 1)
	require.NoError(t, err)
	assert.InDelta(t, 5.25, v, 1e-9)

	v, err = sess.WeatherForecast("outdoor_temp", emsgo.ForecastTomorrow, 6, 1)
	require.NoError(t, err)
	assert.InDelta(t, 6.25, v, 1e-9)

	var cfgErr *emsgo.ConfigurationError
	_, err = sess.WeatherForecast("zone_temp", emsgo.ForecastToday, 6, 1)
	assert.ErrorAs(t, err, &cfgErr, "non-weather metrics have no forecast")
	_, err = sess.WeatherForecast("outdoor_temp", emsgo.ForecastToday, 24, 1)
	assert.ErrorAs(t, err, &cfgErr)
	_, err = sess.WeatherForecast("outdoor_temp", emsgo.ForecastToday, 6, 5)
	assert.ErrorAs(t, err, &cfgErr)
	_, err = sess.WeatherForecast("outdoor_temp", "yesterday", 6, 1)
	assert.ErrorAs(t, err, &cfgErr)
}

func TestTableAndSummaries(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})
	temp := 20.0
	eng.OnStep = func(step int) {
		temp += 0.5
		eng.SetVariable("Zone Air Temperature", "Zone 1", temp)
	}

	sess := newSession(t, eng)
	registerZoneMetrics(t, sess)
	_, err := sess.Bind(emsgo.Binding{CallingPoint: afterHVAC, UpdateState: true})
	require.NoError(t, err)
	require.NoError(t, sess.Run(context.Background()))

	tbl := sess.Table(emsgo.CategoryVariable)
	assert.Equal(t, emsgo.CategoryVariable, tbl.Category)
	assert.Equal(t, []string{"zone_temp"}, tbl.Columns)
	require.Len(t, tbl.Rows, oneDaySteps)
	assert.Equal(t, 1, tbl.Rows[0].Step)
	assert.False(t, tbl.Rows[0].Time.IsZero(), "rows carry the simulation clock")
	assert.Equal(t, []float64{20.5}, tbl.Rows[0].Values)

	sums := sess.Summaries(emsgo.CategoryVariable)
	require.Len(t, sums, 1)
	assert.Equal(t, "zone_temp", sums[0].Metric)
	assert.Equal(t, oneDaySteps, sums[0].Count)
	assert.Equal(t, 20.5, sums[0].Min)
	assert.InDelta(t, 20.0+0.5*oneDaySteps, sums[0].Max, 1e-9)
}

func TestExportCSV(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})
	sess := newSession(t, eng)
	registerZoneMetrics(t, sess)
	_, err := sess.Bind(emsgo.Binding{
		CallingPoint: afterHVAC,
		UpdateState:  true,
		Observe:      func() *float64 { return emsgo.Float(1.0) },
	})
	require.NoError(t, err)
	require.NoError(t, sess.Run(context.Background()))

	path := filepath.Join(t.TempDir(), "run.csv")
	require.NoError(t, sess.ExportCSV(path))
	assert.FileExists(t, path)
}

func TestRun_ArchivesToSQLite(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})
	archivePath := filepath.Join(t.TempDir(), "archive.db")

	sess, err := emsgo.New(
		emsgo.WithEngine(eng),
		emsgo.WithLogger(quietLogger()),
		emsgo.WithModelFile("test.idf"),
		emsgo.WithWeatherFile("test.epw"),
		emsgo.WithArchive(archivePath),
	)
	require.NoError(t, err)
	registerZoneMetrics(t, sess)
	_, err = sess.Bind(emsgo.Binding{
		CallingPoint: afterHVAC,
		UpdateState:  true,
		Observe:      func() *float64 { return emsgo.Float(-1.0) },
	})
	require.NoError(t, err)
	require.NoError(t, sess.Run(context.Background()))
	require.NoError(t, sess.Close())

	db, err := storage.Open(context.Background(), archivePath, quietLogger())
	require.NoError(t, err)
	defer db.Close()

	run, err := db.GetRun(context.Background(), sess.RunID())
	require.NoError(t, err)
	assert.Equal(t, "finished", run.Status)
	assert.Equal(t, oneDaySteps, run.Timesteps)
	require.NotNil(t, run.CompletedAt)

	pts, err := db.Samples(context.Background(), sess.RunID(), "zone_temp")
	require.NoError(t, err)
	assert.Len(t, pts, oneDaySteps)

	rewards, err := db.Samples(context.Background(), sess.RunID(), "reward")
	require.NoError(t, err)
	assert.Len(t, rewards, oneDaySteps)
	assert.Equal(t, -1.0, rewards[0].Value)
}

func TestRun_ConsecutiveRunsResetState(t *testing.T) {
	eng := zoneEngine(emstest.Config{Days: 1})
	sess := newSession(t, eng)
	registerZoneMetrics(t, sess)
	_, err := sess.Bind(emsgo.Binding{CallingPoint: afterHVAC, UpdateState: true})
	require.NoError(t, err)

	require.NoError(t, sess.Run(context.Background()))
	require.NoError(t, sess.Run(context.Background()), "a finished session can run again")

	s, err := sess.Series("zone_temp")
	require.NoError(t, err)
	assert.Len(t, s, oneDaySteps, "the store resets between runs")
}
