package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gasmox/pkg/bme69x"
	"github.com/itohio/gasmox/pkg/config"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createBusTab(state),
		createHeaterTab(state),
		createSamplingTab(state),
		createAnalysisTab(state),
		createOutputTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// saveConfig persists the configuration, reporting failures in a dialog
// like every settings tab does.
func saveConfig(state *appState) {
	if err := state.cfg.Save("config.yaml"); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
	}
}

// createBusTab creates the Bus configuration tab.
func createBusTab(state *appState) *container.TabItem {
	kindSelect := widget.NewSelect([]string{"i2c", "serial", "mock"}, nil)
	kindSelect.SetSelected(state.cfg.Bus.Kind)

	i2cEntry := widget.NewEntry()
	i2cEntry.SetText(state.cfg.Bus.I2C)

	// Get available serial ports
	ports, err := bme69x.Ports()
	portOptions := []string{}
	if err == nil {
		for _, port := range ports {
			portOptions = append(portOptions, port.Name)
		}
	}

	// Add current port if not in list
	currentPort := state.cfg.Bus.Port
	found := false
	for _, opt := range portOptions {
		if opt == currentPort {
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentPort != "" {
		portSelect.SetSelected(currentPort)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Bus.Baud))

	sensorsEntry := widget.NewEntry()
	sensorsEntry.SetText(formatAddrs(state.cfg.Sensors))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Bus Kind", Widget: kindSelect},
			{Text: "I2C Bus", Widget: i2cEntry},
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
			{Text: "Sensors (hex addresses)", Widget: sensorsEntry},
		},
		OnSubmit: func() {
			if kindSelect.Selected != "" {
				state.cfg.Bus.Kind = kindSelect.Selected
			}
			state.cfg.Bus.I2C = i2cEntry.Text
			if portSelect.Selected != "" {
				state.cfg.Bus.Port = portSelect.Selected
			}
			if baud, err := strconv.Atoi(baudEntry.Text); err == nil {
				state.cfg.Bus.Baud = baud
			}
			if sensors, err := parseAddrs(sensorsEntry.Text); err == nil && len(sensors) > 0 {
				state.cfg.Sensors = sensors
			}
			saveConfig(state)
		},
	}

	return container.NewTabItem("Bus", form)
}

// createHeaterTab creates the Heater configuration tab.
func createHeaterTab(state *appState) *container.TabItem {
	modeSelect := widget.NewSelect([]string{"square", "profile", "fixed"}, nil)
	modeSelect.SetSelected(state.cfg.Heater.Mode)

	lowEntry := widget.NewEntry()
	lowEntry.SetText(strconv.Itoa(int(state.cfg.Heater.LowC)))

	highEntry := widget.NewEntry()
	highEntry.SetText(strconv.Itoa(int(state.cfg.Heater.HighC)))

	periodEntry := widget.NewEntry()
	periodEntry.SetText(state.cfg.Heater.Period.String())

	halfEntry := widget.NewEntry()
	halfEntry.SetText(state.cfg.Heater.Half.String())

	stepsEntry := widget.NewEntry()
	stepsEntry.SetText(formatSteps(state.cfg.Heater.Steps))

	fixedEntry := widget.NewEntry()
	fixedEntry.SetText(strconv.Itoa(int(state.cfg.Heater.FixedC)))

	soakEntry := widget.NewEntry()
	soakEntry.SetText(state.cfg.Heater.Soak.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Mode", Widget: modeSelect},
			{Text: "Low Plateau (°C)", Widget: lowEntry},
			{Text: "High Plateau (°C)", Widget: highEntry},
			{Text: "Period", Widget: periodEntry},
			{Text: "Low Half", Widget: halfEntry},
			{Text: "Profile Steps (°C, comma separated)", Widget: stepsEntry},
			{Text: "Fixed Target (°C)", Widget: fixedEntry},
			{Text: "Heater Soak", Widget: soakEntry},
		},
		OnSubmit: func() {
			if modeSelect.Selected != "" {
				state.cfg.Heater.Mode = modeSelect.Selected
			}
			if v, err := strconv.ParseUint(lowEntry.Text, 10, 16); err == nil {
				state.cfg.Heater.LowC = uint16(v)
			}
			if v, err := strconv.ParseUint(highEntry.Text, 10, 16); err == nil {
				state.cfg.Heater.HighC = uint16(v)
			}
			if d, err := time.ParseDuration(periodEntry.Text); err == nil {
				state.cfg.Heater.Period = d
			}
			if d, err := time.ParseDuration(halfEntry.Text); err == nil {
				state.cfg.Heater.Half = d
			}
			if steps, err := parseSteps(stepsEntry.Text); err == nil {
				state.cfg.Heater.Steps = steps
			}
			if v, err := strconv.ParseUint(fixedEntry.Text, 10, 16); err == nil {
				state.cfg.Heater.FixedC = uint16(v)
			}
			if d, err := time.ParseDuration(soakEntry.Text); err == nil {
				state.cfg.Heater.Soak = d
			}
			saveConfig(state)
		},
	}

	return container.NewTabItem("Heater", form)
}

// createSamplingTab creates the Sampling configuration tab.
func createSamplingTab(state *appState) *container.TabItem {
	periodEntry := widget.NewEntry()
	periodEntry.SetText(state.cfg.Sampling.Period.String())

	warmupEntry := widget.NewEntry()
	warmupEntry.SetText(strconv.Itoa(state.cfg.Sampling.Warmup))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Tick Period", Widget: periodEntry},
			{Text: "Warmup (windows/cycles)", Widget: warmupEntry},
		},
		OnSubmit: func() {
			if d, err := time.ParseDuration(periodEntry.Text); err == nil {
				state.cfg.Sampling.Period = d
			}
			if v, err := strconv.Atoi(warmupEntry.Text); err == nil {
				state.cfg.Sampling.Warmup = v
			}
			saveConfig(state)
		},
	}

	return container.NewTabItem("Sampling", form)
}

// createAnalysisTab creates the Analysis configuration tab.
func createAnalysisTab(state *appState) *container.TabItem {
	kindSelect := widget.NewSelect(presets, nil)
	kindSelect.SetSelected(state.cfg.Analysis.Kind)

	peaksEntry := widget.NewEntry()
	peaksEntry.SetText(strconv.Itoa(state.cfg.Analysis.Peaks))

	sizeEntry := widget.NewEntry()
	sizeEntry.SetText(strconv.Itoa(state.cfg.Window.Size))

	modeSelect := widget.NewSelect([]string{"block", "rolling"}, nil)
	modeSelect.SetSelected(state.cfg.Window.Mode)

	strideEntry := widget.NewEntry()
	strideEntry.SetText(strconv.Itoa(state.cfg.Window.Stride))

	subsamplesEntry := widget.NewEntry()
	subsamplesEntry.SetText(strconv.Itoa(state.cfg.Window.Subsamples))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Analysis Kind", Widget: kindSelect},
			{Text: "Spectral Peaks", Widget: peaksEntry},
			{Text: "Window Size (samples)", Widget: sizeEntry},
			{Text: "Window Mode", Widget: modeSelect},
			{Text: "Rolling Stride (cycles)", Widget: strideEntry},
			{Text: "Subsamples per Plateau", Widget: subsamplesEntry},
		},
		OnSubmit: func() {
			if kindSelect.Selected != "" {
				state.cfg.Analysis.Kind = kindSelect.Selected
			}
			if v, err := strconv.Atoi(peaksEntry.Text); err == nil {
				state.cfg.Analysis.Peaks = v
			}
			if v, err := strconv.Atoi(sizeEntry.Text); err == nil {
				state.cfg.Window.Size = v
			}
			if modeSelect.Selected != "" {
				state.cfg.Window.Mode = modeSelect.Selected
			}
			if v, err := strconv.Atoi(strideEntry.Text); err == nil {
				state.cfg.Window.Stride = v
			}
			if v, err := strconv.Atoi(subsamplesEntry.Text); err == nil {
				state.cfg.Window.Subsamples = v
			}
			saveConfig(state)
		},
	}

	return container.NewTabItem("Analysis", form)
}

// createOutputTab creates the Output configuration tab.
func createOutputTab(state *appState) *container.TabItem {
	pathEntry := widget.NewEntry()
	pathEntry.SetText(state.cfg.Output.Path)

	mqttCheck := widget.NewCheck("Publish records", nil)
	mqttCheck.SetChecked(state.cfg.Output.MQTT.Enabled)

	brokerEntry := widget.NewEntry()
	brokerEntry.SetText(state.cfg.Output.MQTT.Broker)

	topicEntry := widget.NewEntry()
	topicEntry.SetText(state.cfg.Output.MQTT.Topic)

	qosEntry := widget.NewEntry()
	qosEntry.SetText(strconv.Itoa(int(state.cfg.Output.MQTT.QoS)))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Record File (\"-\" = stdout)", Widget: pathEntry},
			{Text: "MQTT", Widget: mqttCheck},
			{Text: "Broker", Widget: brokerEntry},
			{Text: "Topic Prefix", Widget: topicEntry},
			{Text: "QoS (0-2)", Widget: qosEntry},
		},
		OnSubmit: func() {
			state.cfg.Output.Path = pathEntry.Text
			state.cfg.Output.MQTT.Enabled = mqttCheck.Checked
			state.cfg.Output.MQTT.Broker = brokerEntry.Text
			state.cfg.Output.MQTT.Topic = topicEntry.Text
			if v, err := strconv.ParseUint(qosEntry.Text, 10, 8); err == nil && v <= 2 {
				state.cfg.Output.MQTT.QoS = byte(v)
			}
			saveConfig(state)
		},
	}

	return container.NewTabItem("Output", form)
}

// createMockTab creates the Mock sensor configuration tab.
func createMockTab(state *appState) *container.TabItem {
	baselineEntry := widget.NewEntry()
	baselineEntry.SetText(fmt.Sprintf("%.0f", state.cfg.Mock.BaselineOhm))

	amplitudeEntry := widget.NewEntry()
	amplitudeEntry.SetText(fmt.Sprintf("%.0f", state.cfg.Mock.AmplitudeOhm))

	noiseEntry := widget.NewEntry()
	noiseEntry.SetText(fmt.Sprintf("%.0f", state.cfg.Mock.NoiseOhm))

	lagEntry := widget.NewEntry()
	lagEntry.SetText(state.cfg.Mock.ThermalLag.String())

	seedEntry := widget.NewEntry()
	seedEntry.SetText(strconv.FormatInt(state.cfg.Mock.Seed, 10))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Baseline (Ω)", Widget: baselineEntry},
			{Text: "Amplitude (Ω)", Widget: amplitudeEntry},
			{Text: "Noise (Ω)", Widget: noiseEntry},
			{Text: "Thermal Lag", Widget: lagEntry},
			{Text: "Seed (0 = random)", Widget: seedEntry},
		},
		OnSubmit: func() {
			if v, err := strconv.ParseFloat(baselineEntry.Text, 64); err == nil {
				state.cfg.Mock.BaselineOhm = v
			}
			if v, err := strconv.ParseFloat(amplitudeEntry.Text, 64); err == nil {
				state.cfg.Mock.AmplitudeOhm = v
			}
			if v, err := strconv.ParseFloat(noiseEntry.Text, 64); err == nil {
				state.cfg.Mock.NoiseOhm = v
			}
			if d, err := time.ParseDuration(lagEntry.Text); err == nil {
				state.cfg.Mock.ThermalLag = d
			}
			if v, err := strconv.ParseInt(seedEntry.Text, 10, 64); err == nil {
				state.cfg.Mock.Seed = v
			}
			saveConfig(state)
		},
	}

	return container.NewTabItem("Mock", form)
}

// formatSteps renders a heater profile as "100, 175, 250".
func formatSteps(steps []uint16) string {
	parts := make([]string, len(steps))
	for i, s := range steps {
		parts[i] = strconv.Itoa(int(s))
	}
	return strings.Join(parts, ", ")
}

// parseSteps parses a comma separated temperature list.
func parseSteps(text string) ([]uint16, error) {
	var steps []uint16
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseUint(part, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid step %q: %w", part, err)
		}
		steps = append(steps, uint16(v))
	}
	return steps, nil
}

// formatAddrs renders the sensor set as "0x76, 0x77".
func formatAddrs(sensors []config.SensorConfig) string {
	parts := make([]string, len(sensors))
	for i, sc := range sensors {
		parts[i] = fmt.Sprintf("0x%02X", sc.Addr)
	}
	return strings.Join(parts, ", ")
}

// parseAddrs parses a comma separated hex address list.
func parseAddrs(text string) ([]config.SensorConfig, error) {
	var sensors []config.SensorConfig
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseUint(strings.TrimPrefix(part, "0x"), 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", part, err)
		}
		sensors = append(sensors, config.SensorConfig{Addr: uint8(v)})
	}
	return sensors, nil
}
