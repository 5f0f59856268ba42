// Command seed-measurements fills the store with synthetic PM2.5/PM10
// readings for one device so the dashboard has something to plot.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/pflag"

	"aq-panel/internal/config"
	"aq-panel/internal/logger"
	"aq-panel/internal/services"
	"aq-panel/internal/store"
)

const seedSource = "seed"

func main() {
	configPath := pflag.StringP("config", "c", "configs/config.yaml", "path to the config file")
	device := pflag.StringP("device", "d", "tanjung-selor-device-1", "device id to write readings for")
	points := pflag.IntP("points", "n", 144, "number of readings to generate")
	interval := pflag.Duration("interval", 10*time.Minute, "spacing between readings")
	pflag.Parse()

	if err := run(*configPath, *device, *points, *interval); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, device string, points int, interval time.Duration) error {
	if points <= 0 || interval <= 0 {
		return fmt.Errorf("points and interval must be positive")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.SetupDefault(os.Stderr, cfg.Log.Level)

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Store, false)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	measurements := services.NewMeasurementService(st, cfg.Monitoring)

	end := time.Now()
	for i := points - 1; i >= 0; i-- {
		pm25, pm10 := randomReading()
		_, err := measurements.SaveMeasurement(ctx, device, services.MeasurementInput{
			PM25:      &pm25,
			PM10:      &pm10,
			Timestamp: end.Add(-time.Duration(i) * interval).UnixMilli(),
		}, seedSource)
		if err != nil {
			return fmt.Errorf("save reading %d: %w", points-i, err)
		}
	}

	log.Info("measurements seeded", "device_id", device, "points", points, "interval", interval)
	return nil
}

// randomReading draws pm25 from [15, 80] and pm10 from [pm25+5, pm25+40].
func randomReading() (pm25, pm10 float64) {
	pm25 = round1(15 + rand.Float64()*65)
	pm10 = round1(pm25 + 5 + rand.Float64()*35)
	return pm25, pm10
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
