// Command gasscope is the live viewer: it runs the same acquisition
// pipeline as gasmox and plots the traces and spectra as they arrive.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gasmox/pkg/config"
	"github.com/itohio/gasmox/pkg/pipeline"
	"github.com/itohio/gasmox/pkg/record"
	"github.com/itohio/gasmox/pkg/rig"
	"github.com/itohio/gasmox/pkg/scope"
)

// presets mirrors config.ApplyPreset; preset names match analysis kinds.
var presets = []string{"fft", "cycle-fft", "ratio", "hysteresis", "raw", "sweep"}

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Use mocked sensors instead of hardware")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *portFlag != "" {
		cfg.Bus.Port = *portFlag
		cfg.Bus.Kind = "serial"
	}
	if *mockFlag {
		cfg.Bus.Kind = "mock"
	}

	// Create Fyne application
	application := app.NewWithID("com.itohio.gasmox")

	window := application.NewWindow("Gas Sensor Scope")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	state := &appState{
		cfg:    cfg,
		window: window,
	}

	toolbar := createToolbar(state)

	scopeWidget := scope.New(cfg)
	state.scopeWidget = scopeWidget

	content := container.NewBorder(
		toolbar,
		nil,
		nil,
		nil,
		scopeWidget,
	)

	window.SetContent(content)
	window.SetCloseIntercept(func() {
		stopRun(state)
		window.Close()
	})
	window.ShowAndRun()
}

// appState holds the application state.
type appState struct {
	cfg         *config.Config
	window      fyne.Window
	scopeWidget *scope.Scope

	connectBtn   *widget.Button
	presetSelect *widget.Select

	run *runState // active pipeline, nil when disconnected

	// Throttling for scope updates
	updateMu       sync.Mutex
	lastUpdateTime time.Time
}

// runState tracks one pipeline run for graceful shutdown.
type runState struct {
	rig        *rig.Rig
	closeSinks func()
	cancel     context.CancelFunc
	done       chan struct{} // closed when the pipeline goroutine exits
}

// createToolbar creates the toolbar with connect and settings buttons on
// the left and the preset selector on the right.
func createToolbar(state *appState) fyne.CanvasObject {
	connectBtn := widget.NewButtonWithIcon("", theme.MediaPlayIcon(), func() {
		handleConnect(state)
	})
	state.connectBtn = connectBtn

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	presetSelect := widget.NewSelect(presets, func(selected string) {
		handlePreset(state, selected)
	})
	presetSelect.SetSelected(state.cfg.Analysis.Kind)
	state.presetSelect = presetSelect

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(connectBtn, settingsBtn),
		presetSelect,
		nil,
	)
}

// handlePreset applies a preset and restarts a running pipeline on it.
func handlePreset(state *appState, name string) {
	if name == state.cfg.Analysis.Kind {
		return
	}
	if err := state.cfg.ApplyPreset(name); err != nil {
		dialog.ShowError(err, state.window)
		return
	}
	if err := state.cfg.Save("config.yaml"); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
	}

	if state.run != nil {
		stopRun(state)
		handleConnect(state)
	}
}

// handleConnect toggles between starting and stopping a run.
func handleConnect(state *appState) {
	if state.run != nil {
		stopRun(state)
		fmt.Println("Disconnected")
		return
	}

	r, err := rig.Open(state.cfg)
	if err != nil {
		dialog.ShowError(fmt.Errorf("failed to open rig: %w", err), state.window)
		return
	}

	sinks, closeSinks, err := openSinks(state.cfg)
	if err != nil {
		r.Close()
		dialog.ShowError(err, state.window)
		return
	}

	p, err := pipeline.New(state.cfg, nil, r.Sensors, sinks...)
	if err != nil {
		closeSinks()
		r.Close()
		dialog.ShowError(err, state.window)
		return
	}

	// Throttle scope updates so a fast tick rate cannot overwhelm the UI
	refresh := state.cfg.Scope.Refresh
	if refresh <= 0 {
		refresh = 33 * time.Millisecond
	}
	p.OnUpdate(func(u pipeline.Update) {
		state.updateMu.Lock()
		now := time.Now()
		tooSoon := now.Sub(state.lastUpdateTime) < refresh
		if !tooSoon {
			state.lastUpdateTime = now
		}
		state.updateMu.Unlock()
		if tooSoon {
			return
		}

		// Update scope widget on main thread
		fyne.Do(func() {
			state.scopeWidget.SetData(u)
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("pipeline stopped: %v", err)
		}
	}()

	state.run = &runState{rig: r, closeSinks: closeSinks, cancel: cancel, done: done}
	fmt.Printf("Connected, %d sensor(s) on %s bus\n", len(r.Sensors), state.cfg.Bus.Kind)
}

// stopRun cancels the pipeline, waits for the acquisition goroutine to
// exit and tears the rig down.
func stopRun(state *appState) {
	run := state.run
	if run == nil {
		return
	}
	state.run = nil

	run.cancel()
	<-run.done
	run.closeSinks()
	if err := run.rig.Close(); err != nil {
		log.Printf("failed to close rig: %v", err)
	}
}

// openSinks builds the record sinks for a viewer run: the configured
// record file when one is set plus MQTT when enabled. Stdout logging is
// left to gasmox; here the scope shows the data.
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

	if path := cfg.Output.Path; path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create record file: %w", err)
		}
		closers = append(closers, f)
		lw := record.NewLineWriter(f)
		if err := lw.Comment(fmt.Sprintf("gasmox %s run, started %s",
			cfg.Analysis.Kind, time.Now().Format(time.RFC3339))); err != nil {
			log.Printf("failed to write banner: %v", err)
		}
		sinks = append(sinks, lw)
	}

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
	}

	return sinks, closeAll, nil
}
