package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/ringbody/internal/automation"
	"github.com/san-kum/ringbody/internal/config"
	"github.com/san-kum/ringbody/internal/experiment"
	"github.com/san-kum/ringbody/internal/export"
	"github.com/san-kum/ringbody/internal/physics"
	"github.com/san-kum/ringbody/internal/sim"
	"github.com/san-kum/ringbody/internal/storage"
	"github.com/san-kum/ringbody/internal/tui"
	"github.com/san-kum/ringbody/internal/viz"
)

var (
	dataDir  string
	logLevel string
	logJSON  bool

	file       string
	save       bool
	output     string
	procs      int
	iterations int
	configFile string
	preset     string
	integrator string
	law        string
	transport  string
	natsURL    string
	rank       int
	live       bool

	rows    int
	seed    int64
	genPath string

	svgPath string

	sweepRanks []int
	sweepFile  string
	sweepTol   float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "ringbody",
		Short:         "ring-exchange n-body simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel, logJSON)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".ringbody", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run simulation",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&live, "live", false, "show live progress")

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "write a random input file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storage.GenerateFile(genPath, rows, seed); err != nil {
				return err
			}
			fmt.Printf("wrote %d particles to %s\n", rows, genPath)
			return nil
		},
	}
	generateCmd.Flags().IntVar(&rows, "rows", 100, "number of particles")
	generateCmd.Flags().Int64Var(&seed, "seed", 42, "random seed")
	generateCmd.Flags().StringVarP(&genPath, "output", "o", "input.csv", "output path")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run metrics",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			runID, err := resolveRun(st, args)
			if err != nil {
				return err
			}
			if svgPath == "" {
				return st.Export(os.Stdout, runID)
			}
			states, err := st.LoadStates(runID)
			if err != nil {
				return err
			}
			if err := os.WriteFile(svgPath, []byte(export.StatesToSVG(states, 800, 800)), 0644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", svgPath)
			return nil
		},
	}
	exportCmd.Flags().StringVar(&svgPath, "svg", "", "write an x/y trajectory svg instead of json")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPROCS\tITERS\tDT\tSOFTENING\tINTEG\tLAW")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%d\t%d\t%g\t%g\t%s\t%s\n",
					name, p.Processes, p.Iterations, p.Dt, p.Softening, p.Integrator, p.ForceLaw)
			}
			return w.Flush()
		},
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "rerun an input over several rank counts and compare",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().IntSliceVar(&sweepRanks, "ranks", automation.DefaultProcesses, "rank counts to run")
	sweepCmd.Flags().StringVar(&sweepFile, "sweep", "", "sweep file path (yaml)")
	sweepCmd.Flags().Float64Var(&sweepTol, "tolerance", 1e-9, "allowed position deviation between runs")

	rootCmd.AddCommand(runCmd, generateCmd, listCmd, plotCmd, exportCmd, presetsCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("ringbody failed", "error", err)
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "input csv")
	f.BoolVarP(&save, "save", "s", false, "write final positions")
	f.StringVarP(&output, "output", "o", config.DefaultOutput, "positions output path")
	f.IntVarP(&procs, "procs", "p", config.DefaultProcesses, "number of ranks")
	f.IntVarP(&iterations, "iterations", "n", config.DefaultIterations, "iterations")
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&integrator, "integrator", "semi-implicit", "integrator")
	f.StringVar(&law, "law", "gravity", "force law")
	f.StringVar(&transport, "transport", config.TransportLocal, "transport (local, nats)")
	f.StringVar(&natsURL, "nats-url", config.DefaultNATSURL, "nats server url")
	f.IntVar(&rank, "rank", 0, "this process's rank (nats)")
}

func setupLogging(level string, asJSON bool) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if asJSON {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// resolveConfig layers defaults, preset, config file and explicitly set
// flags, in that order.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		p.Apply(cfg)
	}

	if configFile != "" {
		if err := config.Merge(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("file") {
		cfg.File = file
	}
	if flags.Changed("save") {
		cfg.Save = save
	}
	if flags.Changed("output") {
		cfg.Output = output
	}
	if flags.Changed("procs") {
		cfg.Processes = procs
	}
	if flags.Changed("iterations") {
		cfg.Iterations = iterations
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("law") {
		cfg.ForceLaw = law
	}
	if flags.Changed("transport") {
		cfg.Transport.Kind = transport
	}
	if flags.Changed("nats-url") {
		cfg.Transport.NATSURL = natsURL
	}
	if flags.Changed("rank") {
		cfg.Transport.Rank = rank
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	particles, err := storage.LoadParticles(cfg.File)
	if err != nil {
		return err
	}

	logger := slog.Default()
	isRoot := cfg.Transport.Kind == config.TransportLocal || cfg.Transport.Rank == 0
	if isRoot {
		logger.Info("starting", "size", cfg.Processes, "file", cfg.File, "particles", len(particles))
	}

	registry := experiment.NewRegistry()
	exp := experiment.New(cfg, logger)
	if err := exp.Setup(registry, registry.DefaultMetrics(exp.Params())); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var result *sim.Result
	if live {
		result, err = runLive(ctx, exp, cfg, particles)
	} else {
		result, err = exp.Run(ctx, particles)
	}
	if err != nil {
		return err
	}

	if result.Particles == nil {
		logger.Info("rank finished", "rank", result.Rank, "resident", len(result.Local), "rounds", result.Rounds)
		return nil
	}

	logger.Info("run complete",
		"t", result.Elapsed.Seconds(),
		"s", len(result.Particles),
		"p", cfg.Processes,
		"f", cfg.File,
	)

	if cfg.Save {
		if err := storage.WritePositions(cfg.Output, result.Particles); err != nil {
			return err
		}
		logger.Info("positions written", "path", cfg.Output)
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(storage.RunInfo{
		Input:      cfg.File,
		Processes:  cfg.Processes,
		G:          cfg.G,
		Dt:         cfg.Dt,
		Softening:  cfg.Softening,
		Integrator: cfg.Integrator,
		ForceLaw:   cfg.ForceLaw,
		Transport:  cfg.Transport.Kind,
	}, result)
	if err != nil {
		return err
	}

	fmt.Println(viz.Summary("ringbody", []viz.Field{
		{Label: "run id", Value: runID},
		{Label: "particles", Value: strconv.Itoa(len(result.Particles))},
		{Label: "ranks", Value: strconv.Itoa(cfg.Processes)},
		{Label: "iterations", Value: strconv.Itoa(result.Iterations)},
		{Label: "rounds", Value: strconv.Itoa(result.Rounds)},
		{Label: "elapsed", Value: result.Elapsed.String()},
	}, result.Metrics))

	return nil
}

func runLive(ctx context.Context, exp *experiment.Experiment, cfg *config.Config, particles []physics.Particle) (*sim.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(tui.NewProgress(cfg.File, cfg.Iterations, cancel), tea.WithOutput(os.Stderr))
	exp.Driver().AddObserver(tui.NewObserver(p))

	type outcome struct {
		result *sim.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := exp.Run(ctx, particles)
		p.Send(tui.DoneMsg{Err: err})
		done <- outcome{result, err}
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, err
	}
	out := <-done
	return out.result, out.err
}

func resolveRun(st *storage.Store, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	meta, err := st.Latest()
	if err != nil {
		return "", err
	}
	return meta.ID, nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tINPUT\tTIME\tPROCS\tPARTICLES\tITERS\tINTEG\tLAW\tELAPSED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\t%.1fms\n",
			run.ID,
			run.Input,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Processes,
			run.Particles,
			run.Iterations,
			run.Integrator,
			run.ForceLaw,
			run.ElapsedMS,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}

	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	series, err := st.LoadMetrics(runID)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		return errors.New("run has no recorded metrics")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("input: %s\n", meta.Input)
	fmt.Println(viz.Separator(40))
	fmt.Println()
	fmt.Print(viz.PlotSeries(series))
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	sweep := &automation.Sweep{Processes: sweepRanks}
	if sweepFile != "" && !cmd.Flags().Changed("ranks") {
		if sweep, err = automation.LoadSweep(sweepFile); err != nil {
			return err
		}
	}

	particles, err := storage.LoadParticles(cfg.File)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := automation.RunSweep(ctx, sweep, cfg, particles, experiment.NewRegistry(), slog.Default())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROCS\tSECONDS\tPARTICLES\tSUM\tLEN\tMAXDEV")
	seconds := make([]float64, len(results))
	for i, r := range results {
		seconds[i] = r.Seconds
		fmt.Fprintf(w, "%d\t%.6f\t%d\t%.6f\t%d\t%g\n",
			r.Processes, r.Seconds, r.Particles, r.PositionSum, r.Length, r.MaxDeviation)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println()
	fmt.Print(viz.PlotSeries(map[string][]float64{"seconds": seconds}))

	if !automation.Consistent(results, sweepTol) {
		return fmt.Errorf("final positions differ between rank counts by more than %g", sweepTol)
	}
	return nil
}
