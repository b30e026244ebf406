package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fenwick-labs/stationrt/internal/checkpoint"
	"github.com/fenwick-labs/stationrt/internal/circuitbreaker"
	"github.com/fenwick-labs/stationrt/internal/config"
	"github.com/fenwick-labs/stationrt/internal/configstore"
	"github.com/fenwick-labs/stationrt/internal/firmware"
	"github.com/fenwick-labs/stationrt/internal/instruments"
	"github.com/fenwick-labs/stationrt/internal/logging"
	"github.com/fenwick-labs/stationrt/internal/metrics"
	"github.com/fenwick-labs/stationrt/internal/observability"
	"github.com/fenwick-labs/stationrt/internal/proxy"
	"github.com/fenwick-labs/stationrt/internal/ratelimit"
	"github.com/fenwick-labs/stationrt/internal/scanner"
	"github.com/fenwick-labs/stationrt/internal/secrets"
	"github.com/fenwick-labs/stationrt/internal/testengine"
	"github.com/fenwick-labs/stationrt/internal/testengine/steps"
	"github.com/fenwick-labs/stationrt/internal/triggers"
	"github.com/fenwick-labs/stationrt/internal/viewbus"
)

// breakerConfig is the fixed circuit breaker policy applied to every
// instrument: it trips once failures make up 30% or more of the calls
// recorded in the last minute (so a failure with no recent successes trips
// it at once), and it probes again after thirty seconds — per spec.md
// §4.5's "instrument wedged" StationFailure trigger.
var breakerConfig = circuitbreaker.Config{
	ErrorPct:       30,
	WindowDuration: time.Minute,
	OpenDuration:   30 * time.Second,
	HalfOpenProbes: 1,
}

func runStationCmd() *cobra.Command {
	var (
		logLevel  string
		stationID string
	)

	cmd := &cobra.Command{
		Use:   "run-station",
		Short: "drive the scan-to-iteration loop against this station's instruments",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("%w: %v", errMisconfiguration, err)
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Daemon.LogLevel = logLevel
			}
			if stationID == "" {
				stationID = "default"
			}

			logging.SetLevelFromString(cfg.Daemon.LogLevel)
			logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)

			ctx := cmd.Context()
			if err := observability.Init(ctx, observability.Config{
				Enabled:     cfg.Observability.Tracing.Enabled,
				Exporter:    cfg.Observability.Tracing.Exporter,
				Endpoint:    cfg.Observability.Tracing.Endpoint,
				ServiceName: cfg.Observability.Tracing.ServiceName,
				SampleRate:  cfg.Observability.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("%w: init tracing: %v", errMisconfiguration, err)
			}
			defer observability.Shutdown(context.Background())

			if cfg.Observability.Metrics.Enabled {
				metrics.InitPrometheus(cfg.Observability.Metrics.Namespace, cfg.Observability.Metrics.HistogramBuckets)
			}

			store, err := configstore.NewPostgres(ctx, cfg.Postgres.DSN)
			if err != nil {
				return fmt.Errorf("connect configstore: %w", err)
			}
			defer store.Close()

			var redisClient *redis.Client
			if cfg.RateLimit.Enabled || cfg.Secrets.Enabled {
				redisClient = redis.NewClient(&redis.Options{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
				defer redisClient.Close()
			}

			if err := resolveSecretDSN(ctx, cfg, redisClient); err != nil {
				return fmt.Errorf("%w: %v", errMisconfiguration, err)
			}

			var mirror viewbus.Mirror
			if redisClient != nil {
				mirror = viewbus.NewRedisMirror(redisClient)
			}
			bus := viewbus.New(mirror)

			checkpoints := checkpoint.NewStore(10 * time.Minute)
			breakers := circuitbreaker.NewBreakers()
			runtime := proxy.New()

			dialTimeout := time.Duration(cfg.Instruments.DialTimeoutSeconds) * time.Second
			if dialTimeout <= 0 {
				dialTimeout = 5 * time.Second
			}

			psuProxy, dmxProxy, meterProxy, eepromProxy, programmerProxy, err := dialInstruments(ctx, cfg, runtime, dialTimeout)
			if err != nil {
				return fmt.Errorf("dial instruments: %w", err)
			}

			var firmwareOpts []func(*awsconfig.LoadOptions) error
			if cfg.Firmware.S3Region != "" {
				firmwareOpts = append(firmwareOpts, awsconfig.WithRegion(cfg.Firmware.S3Region))
			}
			var images steps.ImageFetcher
			if fwStore, err := firmware.NewStore(ctx, cfg.Firmware.LocalDir, firmwareOpts...); err != nil {
				logging.Op().Warn("firmware store unavailable, firmware step will fail if a model references one", "error", err)
			} else {
				images = fwStore
			}

			stepCatalogue := []testengine.Step{
				testengine.Guard(&steps.ConnectionCheck{
					PSU:            psuProxy,
					DiagnosticVolt: 5.0,
					MinCurrent:     0.01,
					MaxCurrent:     2.0,
					ShortCurrent:   5.0,
				}, cfg.Instruments.PowerSupply.Label, breakers, breakerConfig),
				testengine.Guard(steps.NewInitialEEPROMConfig(eepromProxy), cfg.Instruments.EEPROMDevice.Label, breakers, breakerConfig),
				testengine.Guard(&steps.Firmware{Programmer: programmerProxy, Images: images}, cfg.Instruments.Programmer.Label, breakers, breakerConfig),
				testengine.Guard(steps.NewFinalEEPROMConfig(eepromProxy), cfg.Instruments.EEPROMDevice.Label, breakers, breakerConfig),
				testengine.Guard(&steps.UnitIdentity{Device: eepromProxy}, cfg.Instruments.EEPROMDevice.Label, breakers, breakerConfig),
				testengine.Guard(&steps.Illumination{
					PSU:        psuProxy,
					DMX:        dmxProxy,
					Meter:      meterProxy,
					DriveVolt:  12.0,
					DMXChannel: 1,
					DMXLevel:   255,
				}, cfg.Instruments.LightMeter.Label, breakers, breakerConfig),
				testengine.Guard(&steps.ThermalDrop{
					Meter:          meterProxy,
					Bus:            bus,
					MaxDropPercent: 5.0,
				}, cfg.Instruments.LightMeter.Label, breakers, breakerConfig),
			}

			engine := testengine.New(store, bus, stepCatalogue, checkpoints)

			triggerMgr := triggers.NewManager(configstore.NewYamlReloader(store))
			if cfg.Trigger.Enabled {
				if err := triggerMgr.RegisterTrigger(&triggers.Trigger{
					ID:      uuid.NewString(),
					Name:    "config-mirror-watch",
					Type:    triggers.TriggerTypeFilesystem,
					Enabled: true,
					Config: map[string]interface{}{
						"path":          cfg.Trigger.Path,
						"pattern":       "*.yaml",
						"poll_interval": cfg.Trigger.PollInterval,
					},
				}); err != nil {
					return fmt.Errorf("%w: register config watcher: %v", errMisconfiguration, err)
				}
			}
			defer triggerMgr.Shutdown()

			var selfCheck *testengine.SelfCheckScheduler
			if cfg.SelfCheck.Enabled {
				instrumentNames := []string{
					cfg.Instruments.PowerSupply.Label,
					cfg.Instruments.DMXController.Label,
					cfg.Instruments.LightMeter.Label,
					cfg.Instruments.EEPROMDevice.Label,
					cfg.Instruments.Programmer.Label,
				}
				selfCheck, err = testengine.NewSelfCheckScheduler(ctx, cfg.SelfCheck.Schedule, bus, breakers, breakerConfig, instrumentNames)
				if err != nil {
					return fmt.Errorf("%w: %v", errMisconfiguration, err)
				}
			}
			defer selfCheck.Stop()

			var limiter *ratelimit.Limiter
			if cfg.RateLimit.Enabled {
				tiers := make(map[string]ratelimit.TierConfig, len(cfg.RateLimit.Tiers))
				for name, t := range cfg.RateLimit.Tiers {
					tiers[name] = ratelimit.TierConfig{RequestsPerSecond: t.RequestsPerSecond, BurstSize: t.BurstSize}
				}
				limiter = ratelimit.New(redisClient, tiers, ratelimit.TierConfig{
					RequestsPerSecond: cfg.RateLimit.Default.RequestsPerSecond,
					BurstSize:         cfg.RateLimit.Default.BurstSize,
				})
			}

			logging.Op().Info("station runtime started", "station_id", stationID)
			return scanLoop(ctx, engine, bus, limiter, stationID)
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "NOTSET, DEBUG, INFO, WARNING, ERROR, or CRITICAL")
	cmd.Flags().StringVar(&stationID, "station-id", "", "this station's rate-limit identity (default: \"default\")")
	return cmd
}

// resolveSecretDSN applies the secrets resolver to the Postgres DSN if
// secrets are enabled and the DSN embeds a $SECRET: reference — the one
// place a station-level (rather than per-instrument) secret reference is
// expected, since the DSN is loaded before ConfigStore exists to carry
// per-instrument credentials itself.
func resolveSecretDSN(ctx context.Context, cfg *config.Config, redisClient *redis.Client) error {
	if !cfg.Secrets.Enabled {
		return nil
	}
	var cipher *secrets.Cipher
	var err error
	if cfg.Secrets.MasterKeyFile != "" {
		cipher, err = secrets.NewCipherFromFile(cfg.Secrets.MasterKeyFile)
	} else {
		cipher, err = secrets.NewCipher(cfg.Secrets.MasterKey)
	}
	if err != nil {
		return fmt.Errorf("load secrets master key: %w", err)
	}
	resolver := secrets.NewResolver(secrets.NewStore(redisClient, cipher))
	resolved, err := resolver.ResolveValue(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("resolve postgres dsn: %w", err)
	}
	cfg.Postgres.DSN = resolved
	return nil
}

// dialInstruments connects to every fixed instrument this station drives,
// in parallel (five independent TCP dials gain nothing from serializing),
// and spawns each proxy under runtime.
func dialInstruments(ctx context.Context, cfg *config.Config, runtime *proxy.Runtime, timeout time.Duration) (
	*instruments.PowerSupplyProxy, *instruments.DMXControllerProxy, *instruments.LightMeterProxy,
	*instruments.EEPROMDeviceProxy, *instruments.ProgrammerProxy, error,
) {
	var psuConn, dmxConn, meterConn, eepromConn, programmerConn *instruments.TCPTransport

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		psuConn, err = instruments.DialTCP(gctx, cfg.Instruments.PowerSupply.Address, timeout)
		if err != nil {
			return fmt.Errorf("power supply: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		dmxConn, err = instruments.DialTCP(gctx, cfg.Instruments.DMXController.Address, timeout)
		if err != nil {
			return fmt.Errorf("dmx controller: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		meterConn, err = instruments.DialTCP(gctx, cfg.Instruments.LightMeter.Address, timeout)
		if err != nil {
			return fmt.Errorf("light meter: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		eepromConn, err = instruments.DialTCP(gctx, cfg.Instruments.EEPROMDevice.Address, timeout)
		if err != nil {
			return fmt.Errorf("eeprom device: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		programmerConn, err = instruments.DialTCP(gctx, cfg.Instruments.Programmer.Address, timeout)
		if err != nil {
			return fmt.Errorf("programmer: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, nil, nil, err
	}

	psuProxy := instruments.SpawnPowerSupply(runtime, instruments.NewPowerSupply(psuConn), cfg.Instruments.PowerSupply.Label)
	dmxProxy := instruments.SpawnDMXController(runtime, instruments.NewDMXController(dmxConn), cfg.Instruments.DMXController.Label)
	meterProxy := instruments.SpawnLightMeter(runtime, instruments.NewLightMeter(meterConn), cfg.Instruments.LightMeter.Label)
	eepromProxy := instruments.SpawnEEPROMDevice(runtime, instruments.NewEEPROMDevice(eepromConn), cfg.Instruments.EEPROMDevice.Label)
	programmerProxy := instruments.SpawnProgrammer(runtime, instruments.NewProgrammer(programmerConn), cfg.Instruments.Programmer.Label)

	return psuProxy, dmxProxy, meterProxy, eepromProxy, programmerProxy, nil
}

// scanLoop reads newline-delimited barcode scans from stdin until ctx is
// cancelled or stdin closes, classifying each and driving an iteration
// for every DUT scan.
func scanLoop(ctx context.Context, engine *testengine.Engine, bus *viewbus.Bus, limiter *ratelimit.Limiter, stationID string) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		s := bufio.NewScanner(os.Stdin)
		for s.Scan() {
			lines <- s.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logging.Op().Info("station runtime stopping")
			return ctx.Err()
		case raw, ok := <-lines:
			if !ok {
				logging.Op().Info("stdin closed, station runtime stopping")
				return nil
			}
			handleScan(ctx, engine, bus, limiter, stationID, raw)
		}
	}
}

func handleScan(ctx context.Context, engine *testengine.Engine, bus *viewbus.Bus, limiter *ratelimit.Limiter, stationID, raw string) {
	scan := scanner.Classify(raw)

	if scan.Kind != scanner.DUTScan {
		bus.Publish(ctx, testengine.NotificationMessage{Major: "scan", Minor: raw, Color: "gray"})
		return
	}

	if limiter != nil {
		result, err := limiter.Allow(ctx, ratelimit.KeyForStation(stationID), "default")
		if err != nil {
			logging.Op().Warn("rate limit check failed, allowing scan through", "error", err)
		} else if !result.Allowed {
			bus.Publish(ctx, testengine.NotificationMessage{Major: "scan throttled", Minor: raw, Color: "yellow"})
			return
		}
	}

	start := time.Now()
	it, err := engine.RunIteration(ctx, scan.DUT)
	if err != nil {
		logging.Op().Error("iteration raised a station failure", "dut_sn", scan.DUT.SN, "error", err)
		bus.Publish(ctx, testengine.NotificationMessage{Major: "station failure", Minor: err.Error(), Color: "red"})
		return
	}

	metrics.Global().RecordIterationResult(it.Pass)
	logging.Default().Log(&logging.IterationLog{
		Timestamp:   start,
		IterationID: it.ID,
		Step:        "complete",
		RevisionID:  it.RevisionID,
		DurationMs:  time.Since(start).Milliseconds(),
		Success:     it.Pass,
	})
	bus.Publish(ctx, testengine.NotificationMessage{Major: "iteration complete", Minor: fmt.Sprintf("pass=%v", it.Pass)})
}
