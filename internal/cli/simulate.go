package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/gcscope/internal/config"
	"github.com/wesleyorama2/gcscope/internal/gc/export"
	"github.com/wesleyorama2/gcscope/internal/gc/tunable"
	"github.com/wesleyorama2/gcscope/internal/output"
	"github.com/wesleyorama2/gcscope/internal/report"
	"github.com/wesleyorama2/gcscope/internal/sim"
)

type simulateOptions struct {
	outputPath  string
	format      string
	html        bool
	json        bool
	quiet       bool
	interval    time.Duration
	metricsAddr string

	mode     string
	duration string
	seed     int64
	seedSet  bool
}

func newSimulateCmd() *cobra.Command {
	opts := &simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate <config>",
		Short: "Run a simulation from a configuration file",
		Long: `Run the synthetic collector described by a YAML or JSON simulation file.

Progress is shown live on a terminal and as one line per interval otherwise.
The run fails when any configured threshold fails.

Reports:
  gcscope simulate sim.yaml --output report.html
  gcscope simulate sim.yaml --output report.json
  gcscope simulate sim.yaml --output reports/run     (writes run.html and run.json)
  gcscope simulate sim.yaml --format junit > results.xml

Metrics:
  gcscope simulate sim.yaml --metrics-addr :9090`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.outputPath, "output", "o", "", "Report path (.html, .json, or a base name for both)")
	f.StringVarP(&opts.format, "format", "f", "text", "Summary format: text, json, yaml, junit")
	f.BoolVar(&opts.html, "html", false, "Write an HTML report")
	f.BoolVar(&opts.json, "json", false, "Write a JSON report")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Only print the final verdict")
	f.DurationVar(&opts.interval, "interval", time.Second, "Progress update interval")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	f.StringVar(&opts.mode, "mode", "", "Override simulation.mode")
	f.StringVar(&opts.duration, "duration", "", "Override simulation.duration")
	f.Int64Var(&opts.seed, "seed", 0, "Override simulation.seed (0 selects the default seed)")
	return cmd
}

func runSimulate(cmd *cobra.Command, path string, opts *simulateOptions) error {
	format, err := output.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	opts.seedSet = cmd.Flags().Changed("seed")
	cfg, err := loadSimulation(path, opts)
	if err != nil {
		return err
	}

	prev := cfg.ApplyTunables()
	defer tunable.Restore(prev)

	s, err := sim.New(cfg.ToSimConfig(),
		sim.WithName(cfg.Name),
		sim.WithThresholds(cfg.ToThresholds()))
	if err != nil {
		return fmt.Errorf("failed to create simulation: %w", err)
	}

	if opts.metricsAddr != "" {
		stop, err := serveMetrics(opts.metricsAddr, s)
		if err != nil {
			return err
		}
		defer stop()
	}

	// Progress goes to stderr when stdout carries a machine-readable format.
	progressOut := cmd.OutOrStdout()
	if format != output.FormatText {
		progressOut = cmd.ErrOrStderr()
	}
	console := output.NewConsole(output.ConsoleConfig{
		Name:          s.Name(),
		Mode:          s.Config().Mode,
		TotalDuration: s.Config().Duration,
		Writer:        progressOut,
		Quiet:         opts.quiet,
	})
	console.PrintHeader()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	result, runErr := runWithProgress(ctx, s, console, opts.interval)
	if errors.Is(runErr, context.Canceled) {
		logrus.Warn("Simulation interrupted, reporting partial results")
		runErr = nil
	}
	if result == nil {
		return runErr
	}

	if format == output.FormatText {
		console.PrintSummary(result)
	} else if err := output.Render(cmd.OutOrStdout(), format, result); err != nil {
		return err
	}

	if err := writeReports(cmd.ErrOrStderr(), result, cfg.Description, opts); err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}
	if !result.Passed {
		return errSilent
	}
	return nil
}

func loadSimulation(path string, opts *simulateOptions) (*config.SimulationConfig, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if opts.mode != "" {
		cfg.Simulation.Mode = opts.mode
	}
	if opts.duration != "" {
		d, err := config.ParseDurationString(opts.duration)
		if err != nil {
			return nil, fmt.Errorf("invalid --duration: %w", err)
		}
		cfg.Simulation.Duration = config.Duration(d)
	}
	if opts.seedSet {
		cfg.Simulation.Seed = opts.seed
	}

	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// runWithProgress runs the simulation and reports progress every interval
// until it finishes.
func runWithProgress(ctx context.Context, s *sim.Simulator, console *output.Console, interval time.Duration) (*sim.Result, error) {
	type outcome struct {
		result *sim.Result
		err    error
	}
	done := make(chan outcome, 1)

	start := time.Now()
	go func() {
		r, err := s.Run(ctx)
		done <- outcome{r, err}
	}()

	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	total := s.Config().Duration
	for {
		select {
		case o := <-done:
			return o.result, o.err
		case <-ticker.C:
			console.Report(output.StatsFromProgress(s.Progress(), time.Since(start), total))
		}
	}
}

// serveMetrics exposes the simulation's heap on addr until stop is called.
func serveMetrics(addr string, s *sim.Simulator) (stop func(), err error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(export.NewCollector(s.Heap())); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("Metrics server stopped")
		}
	}()
	logrus.WithField("addr", ln.Addr().String()).Info("Serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logrus.WithError(err).Warn("Metrics server shutdown failed")
		}
	}, nil
}

// writeReports writes the requested report files, choosing the type from
// the flags or the output extension.
func writeReports(w io.Writer, result *sim.Result, description string, opts *simulateOptions) error {
	outputPath := opts.outputPath
	lower := strings.ToLower(outputPath)
	isHTML := opts.html || strings.HasSuffix(lower, ".html")
	isJSON := opts.json || strings.HasSuffix(lower, ".json")

	switch {
	case isJSON && isHTML:
		base := strings.TrimSuffix(outputPath, filepath.Ext(outputPath))
		if base == "" {
			base = defaultReportBase(result.Name)
		}
		return writeBoth(w, result, description, base)
	case isJSON:
		if outputPath == "" {
			outputPath = defaultReportBase(result.Name) + ".json"
		}
		return writeJSONReport(w, result, outputPath)
	case isHTML:
		if outputPath == "" {
			outputPath = defaultReportBase(result.Name) + ".html"
		}
		return writeHTMLReport(w, result, description, outputPath)
	case outputPath != "":
		// If output path specified without extension, generate both HTML and JSON
		return writeBoth(w, result, description, outputPath)
	}
	return nil
}

func writeBoth(w io.Writer, result *sim.Result, description, base string) error {
	if err := writeHTMLReport(w, result, description, base+".html"); err != nil {
		return err
	}
	return writeJSONReport(w, result, base+".json")
}

func writeHTMLReport(w io.Writer, result *sim.Result, description, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := report.GenerateHTML(result, description, path); err != nil {
		return fmt.Errorf("failed to generate HTML report: %w", err)
	}
	fmt.Fprintf(w, "Report: %s\n", path)
	return nil
}

func writeJSONReport(w io.Writer, result *sim.Result, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := report.GenerateJSON(result, path); err != nil {
		return fmt.Errorf("failed to generate JSON report: %w", err)
	}
	fmt.Fprintf(w, "Report: %s\n", path)
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// defaultReportBase builds a timestamped report name from the simulation
// name.
func defaultReportBase(name string) string {
	safeName := strings.ReplaceAll(name, " ", "-")
	safeName = strings.ReplaceAll(safeName, "/", "-")
	safeName = strings.ToLower(safeName)

	timestamp := time.Now().Format("20060102-150405")
	return fmt.Sprintf("gc-report-%s-%s", safeName, timestamp)
}
