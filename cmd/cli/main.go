// Command traffic-sim reads an ExperimentInput scenario from a JSON or YAML
// file argument (or stdin), runs the experiment, and writes the
// ExperimentResult JSON to stdout. With --charts it additionally renders PNG
// charts of the result into a directory.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/Deshray/agent-based-traffic-congestion-simulation/internal/analysis"
	"github.com/Deshray/agent-based-traffic-congestion-simulation/internal/engine"
)

func main() {
	parser := argparse.NewParser("traffic-sim", "Nagel-Schreckenberg ring-road traffic simulator")
	scenario := parser.String("f", "scenario", &argparse.Options{Help: "Scenario file (.json, .yaml, .yml); stdin when omitted"})
	chartDir := parser.String("c", "charts", &argparse.Options{Help: "Directory to write PNG charts into"})
	verbose := parser.Flag("v", "verbose", &argparse.Options{Help: "Enable debug logging"})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Fprint(os.Stderr, parser.Usage(err))
		os.Exit(1)
	}

	logger := log.New(os.Stderr)
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	input, err := loadScenario(*scenario)
	if err != nil {
		logger.Fatal("loading scenario", "err", err)
	}
	logger.Debug("scenario loaded", "experiment", input.Experiment)

	result, err := engine.Run(input)
	if err != nil {
		logger.Fatal("simulation failed", "err", err)
	}

	out, err := json.Marshal(result)
	if err != nil {
		logger.Fatal("marshaling result", "err", err)
	}
	fmt.Println(string(out))

	if *chartDir != "" {
		// Chart failures are reporting failures: the result is already on
		// stdout, so log and carry on rather than discard the run.
		if err := writeCharts(result, *chartDir, logger); err != nil {
			logger.Error("writing charts", "err", err)
		}
	}
}

// loadScenario reads and decodes the scenario from path, or stdin when path
// is empty. YAML is detected by file extension; everything else is JSON.
func loadScenario(path string) (engine.ExperimentInput, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return engine.ExperimentInput{}, fmt.Errorf("reading scenario: %w", err)
	}

	var input engine.ExperimentInput
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &input)
	default:
		err = json.Unmarshal(data, &input)
	}
	if err != nil {
		return engine.ExperimentInput{}, fmt.Errorf("parsing scenario: %w", err)
	}
	return input, nil
}

// writeCharts renders the charts appropriate to the experiment kind into dir.
func writeCharts(result *engine.ExperimentResult, dir string, logger *log.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating chart directory: %w", err)
	}

	render := func(name string, plot func(io.Writer) error) error {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		if err := plot(f); err != nil {
			return fmt.Errorf("rendering %s: %w", path, err)
		}
		logger.Info("chart written", "path", path)
		return nil
	}

	switch {
	case result.Run != nil:
		return render("velocity_timeseries.png", func(w io.Writer) error {
			return analysis.PlotTimeSeries(result.Run.AvgVelocityHistory, w)
		})
	case result.Ensemble != nil:
		return render("monte_carlo.png", func(w io.Writer) error {
			return analysis.PlotEnsemble(result.Ensemble, w)
		})
	case result.DensityScan != nil:
		return render("fundamental_diagram.png", func(w io.Writer) error {
			return analysis.PlotFundamentalDiagram(result.DensityScan, w)
		})
	}
	return nil
}
