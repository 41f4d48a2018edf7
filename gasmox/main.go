// Command gasmox runs the acquisition pipeline headless and logs
// record lines to a file, stdout and optionally MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/itohio/gasmox/pkg/config"
	"github.com/itohio/gasmox/pkg/pipeline"
	"github.com/itohio/gasmox/pkg/record"
	"github.com/itohio/gasmox/pkg/rig"
)

func main() {
	var (
		configFlag   = flag.String("config", "config.yaml", "Configuration file path")
		presetFlag   = flag.String("preset", "", "Apply a preset: fft, cycle-fft, ratio, hysteresis, raw or sweep")
		busFlag      = flag.String("bus", "", "Bus kind override: i2c, serial or mock")
		portFlag     = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		mockFlag     = flag.Bool("mock", false, "Use mocked sensors instead of hardware")
		outFlag      = flag.String("out", "", "Record file override, \"-\" for stdout")
		durationFlag = flag.Duration("duration", 0, "Stop after this long (0 = run until interrupted)")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Apply command line overrides
	if *presetFlag != "" {
		if err := cfg.ApplyPreset(*presetFlag); err != nil {
			log.Fatalf("Failed to apply preset: %v", err)
		}
	}
	if *busFlag != "" {
		cfg.Bus.Kind = *busFlag
	}
	if *portFlag != "" {
		cfg.Bus.Port = *portFlag
		cfg.Bus.Kind = "serial"
	}
	if *mockFlag {
		cfg.Bus.Kind = "mock"
	}
	if *outFlag != "" {
		cfg.Output.Path = *outFlag
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := run(cfg, *durationFlag); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.Config, duration time.Duration) error {
	r, err := rig.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open rig: %w", err)
	}
	defer r.Close()
	log.Printf("%d sensor(s) up on %s bus", len(r.Sensors), cfg.Bus.Kind)

	sinks, closeSinks, err := openSinks(cfg)
	if err != nil {
		return err
	}
	defer closeSinks()

	p, err := pipeline.New(cfg, nil, r.Sensors, sinks...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	log.Printf("running %s analysis at %.6g Hz", cfg.Analysis.Kind, 1/cfg.Sampling.Period.Seconds())
	err = p.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.Println("stopped")
		return nil
	}
	return err
}

// openSinks builds the record sinks: a line writer on the configured
// file or stdout, plus MQTT when enabled. The returned function closes
// everything in reverse order.
func openSinks(cfg *config.Config) ([]record.Sink, func(), error) {
	var (
		sinks   []record.Sink
		closers []io.Closer
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				log.Printf("failed to close sink: %v", err)
			}
		}
	}

	var w io.Writer = os.Stdout
	if cfg.Output.Path != "" && cfg.Output.Path != "-" {
		f, err := os.Create(cfg.Output.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create record file: %w", err)
		}
		closers = append(closers, f)
		w = f
		log.Printf("logging records to %s", cfg.Output.Path)
	}
	lw := record.NewLineWriter(w)
	writeBanner(lw, cfg)
	sinks = append(sinks, lw)

	if cfg.Output.MQTT.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mq, err := record.DialMQTT(ctx, cfg.Output.MQTT.Broker, cfg.Output.MQTT.Topic, cfg.Output.MQTT.QoS)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to connect MQTT sink: %w", err)
		}
		sinks = append(sinks, mq)
		closers = append(closers, mq)
		log.Printf("publishing records to %s under %s/", cfg.Output.MQTT.Broker, cfg.Output.MQTT.Topic)
	}

	return sinks, closeAll, nil
}

// writeBanner prefixes the record stream with "#" comment lines that
// describe the run, so a log file carries its own parameters.
func writeBanner(lw *record.LineWriter, cfg *config.Config) {
	addrs := make([]string, len(cfg.Sensors))
	for i, sc := range cfg.Sensors {
		addrs[i] = fmt.Sprintf("0x%02X", sc.Addr)
	}

	lines := []string{
		fmt.Sprintf("gasmox %s run, started %s", cfg.Analysis.Kind, time.Now().Format(time.RFC3339)),
		fmt.Sprintf("sensors %s on %s bus", strings.Join(addrs, " "), cfg.Bus.Kind),
		fmt.Sprintf("sampling %.6g Hz, window %d, warmup %d",
			1/cfg.Sampling.Period.Seconds(), cfg.Window.Size, cfg.Sampling.Warmup),
	}
	switch cfg.Heater.Mode {
	case "square":
		lines = append(lines, fmt.Sprintf("heater square %d/%dC period %s",
			cfg.Heater.LowC, cfg.Heater.HighC, cfg.Heater.Period))
	case "profile":
		lines = append(lines, fmt.Sprintf("heater profile, %d steps", len(cfg.Heater.Steps)))
	case "fixed":
		lines = append(lines, fmt.Sprintf("heater fixed %dC", cfg.Heater.FixedC))
	}

	for _, line := range lines {
		if err := lw.Comment(line); err != nil {
			log.Printf("failed to write banner: %v", err)
			return
		}
	}
}
