package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/jumpsim/internal/automation"
	"github.com/san-kum/jumpsim/internal/config"
	"github.com/san-kum/jumpsim/internal/dynamo"
	"github.com/san-kum/jumpsim/internal/ensemble"
	"github.com/san-kum/jumpsim/internal/experiment"
	"github.com/san-kum/jumpsim/internal/export"
	"github.com/san-kum/jumpsim/internal/logging"
	"github.com/san-kum/jumpsim/internal/optim"
	"github.com/san-kum/jumpsim/internal/storage"
)

var (
	dataDir    string
	logLevel   string
	logFormat  string
	configFile string
	preset     string
	outFile    string
	svgFile    string
	index      int

	plotChannel  string
	svgChannel   string
	sweepChannel string
	sweepArgs    []string
	maximize     bool

	mu           float64
	sigma        float64
	particles    int
	rhoMax       float64
	horizon      float64
	saveStep     float64
	trajectories int
	algorithm    string
	dt           float64
	lookahead    float64
	seed         int64
	workers      int
	retries      int
	timeout      time.Duration
	mode         string
	recordJumps  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "jumpsim",
		Short:         "catch-up jump diffusion ensembles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".jumpsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run an ensemble and store its summary",
		Args:  cobra.NoArgs,
		RunE:  runEnsemble,
	}
	addSimFlags(runCmd)

	trajCmd := &cobra.Command{
		Use:   "trajectory",
		Short: "run a single ensemble member and print its moments",
		Args:  cobra.NoArgs,
		RunE:  runTrajectory,
	}
	addSimFlags(trajCmd)
	trajCmd.Flags().IntVar(&index, "index", 0, "ensemble member index")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the ensemble mean of a channel",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&plotChannel, "channel", "", "channel to plot (default: all)")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run summary as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().StringVar(&svgFile, "svg", "", "also render the channel means to this SVG file")
	exportCmd.Flags().StringVar(&svgChannel, "channel", "", "channel for --svg (default: all but growth)")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "sweep parameters and score each point by a final ensemble mean",
		Args:  cobra.NoArgs,
		RunE:  sweep,
	}
	addSimFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepArgs, "param", nil, "parameter grid as name=v1,v2,... (repeatable)")
	sweepCmd.Flags().StringVar(&sweepChannel, "channel", "growth", "channel to score")
	sweepCmd.Flags().BoolVar(&maximize, "maximize", false, "pick the largest score as best")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted sequence of ensembles from YAML",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tN\tMU\tSIGMA\tRHO\tINITIAL")
			for _, name := range config.ListPresets() {
				cfg := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%d\t%g\t%g\t%g\t%s\n",
					name, cfg.Particles, cfg.Mu, cfg.Sigma, cfg.RhoMax, cfg.Initial.Family)
			}
			return w.Flush()
		},
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark particle counts and algorithms",
		Args:  cobra.NoArgs,
		RunE:  bench,
	}

	rootCmd.AddCommand(runCmd, trajCmd, listCmd, plotCmd, exportCmd, sweepCmd, scenarioCmd, presetsCmd, benchCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func addSimFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "start from a preset configuration")
	f.Float64Var(&mu, "mu", config.DefaultMu, "drift")
	f.Float64Var(&sigma, "sigma", config.DefaultSigma, "volatility")
	f.IntVarP(&particles, "particles", "n", config.DefaultParticles, "number of particles")
	f.Float64Var(&rhoMax, "rho", config.DefaultRhoMax, "jump rate scale")
	f.Float64Var(&horizon, "time", config.DefaultHorizon, "last save time")
	f.Float64Var(&saveStep, "save-step", config.DefaultStep, "spacing of save times")
	f.IntVarP(&trajectories, "trajectories", "k", config.DefaultTrajectories, "number of trajectories")
	f.StringVar(&algorithm, "algorithm", config.DefaultAlgorithm, "diffusion stepper (euler_maruyama, heun)")
	f.Float64Var(&dt, "dt", config.DefaultDt, "maximum diffusion step")
	f.Float64Var(&lookahead, "lookahead", config.DefaultLookahead, "jump bound window")
	f.Int64Var(&seed, "seed", 0, "base seed")
	f.IntVar(&workers, "workers", 0, "parallel workers (0: GOMAXPROCS)")
	f.IntVar(&retries, "retries", config.DefaultRetries, "retries per failed trajectory")
	f.DurationVar(&timeout, "timeout", 0, "per-trajectory deadline (0: none)")
	f.StringVar(&mode, "mode", config.DefaultMode, "ensemble mode (moments, trajectory)")
	f.BoolVar(&recordJumps, "record-jumps", false, "keep the jump log of each trajectory")
}

// loadConfig layers preset, config file and explicitly set flags, in that
// order.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	cfg := config.DefaultConfig()
	name := "run"

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, "", fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		name = preset
	}

	if configFile != "" {
		var err error
		cfg, err = config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config: %w", err)
		}
	}

	f := cmd.Flags()
	if f.Changed("mu") {
		cfg.Mu = mu
	}
	if f.Changed("sigma") {
		cfg.Sigma = sigma
	}
	if f.Changed("particles") {
		cfg.Particles = particles
	}
	if f.Changed("rho") {
		cfg.RhoMax = rhoMax
	}
	if f.Changed("time") || f.Changed("save-step") {
		cfg.UseGrid()
		if f.Changed("time") {
			cfg.SaveGrid.Stop = horizon
		}
		if f.Changed("save-step") {
			cfg.SaveGrid.Step = saveStep
		}
	}
	if f.Changed("trajectories") {
		cfg.Trajectories = trajectories
	}
	if f.Changed("algorithm") {
		cfg.Algorithm = algorithm
	}
	if f.Changed("dt") {
		cfg.Dt = dt
	}
	if f.Changed("lookahead") {
		cfg.Lookahead = lookahead
	}
	if f.Changed("seed") {
		cfg.Seed = seed
	}
	if f.Changed("workers") {
		cfg.Workers = workers
	}
	if f.Changed("retries") {
		cfg.Retries = retries
	}
	if f.Changed("timeout") {
		cfg.TrajectoryTimeout = timeout
	}
	if f.Changed("mode") {
		cfg.Mode = mode
	}
	if f.Changed("record-jumps") {
		cfg.RecordJumps = recordJumps
	}
	return cfg, name, nil
}

func newLogger() *slog.Logger {
	return logging.NewLogger(logLevel, logFormat, os.Stderr)
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	cfg, name, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	exp, err := experiment.FromConfig(cfg, newLogger())
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	p := exp.Params()
	fmt.Printf("running %d trajectories of %d particles (%s)...\n", p.Trajectories, p.N, exp.Mode())

	rep, runErr := exp.Run(cmd.Context())
	if runErr != nil && rep == nil {
		return runErr
	}

	summary, err := ensemble.Reduce(rep)
	if err != nil {
		return errors.Join(runErr, err)
	}

	meta := storage.NewMetadata(name, p)
	meta.Elapsed = rep.Elapsed.Seconds()
	meta.Counters = storage.Counters(rep)

	runID, err := st.Save(meta, summary)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", rep.Elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("trajectories: %d ok, %d failed\n", summary.Count, summary.Failed)
	for _, f := range summary.Failures {
		fmt.Printf("  %s\n", f)
	}

	last := len(summary.Times) - 1
	fmt.Printf("\nat t=%g:\n", summary.Times[last])
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHANNEL\tMEAN\tVARIANCE")
	for c, ch := range summary.Channels {
		fmt.Fprintf(w, "%s\t%.6f\t%.6g\n", ch, summary.Mean[c][last], summary.Variance[c][last])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println("\ncounters:")
	for _, k := range []string{"iterations", "candidates", "jumps", "rejections", "bound_violations"} {
		fmt.Printf("  %s: %d\n", k, meta.Counters[k])
	}

	return runErr
}

func runTrajectory(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	exp, err := experiment.FromConfig(cfg, newLogger())
	if err != nil {
		return err
	}
	if index < 0 || index >= exp.Params().Trajectories {
		return &dynamo.ConfigError{Field: "index", Reason: fmt.Sprintf("must be in [0, %d)", exp.Params().Trajectories)}
	}

	res, log, err := exp.RunSingle(cmd.Context(), index)
	if err != nil {
		return err
	}

	fmt.Printf("trajectory %d (seed %d)\n\n", index, res.Seed)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tMIN\tMEAN\tMEDIAN\tMAX\tGROWTH")
	for _, m := range log {
		fmt.Fprintf(w, "%g\t%.6f\t%.6f\t%.6f\t%.6f\t%.6f\n", m.Time, m.Min, m.Mean, m.Median, m.Max, m.Growth)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nfinal state: %v\n", res.Final)
	fmt.Printf("jumps: %d of %d candidates (%d bound violations)\n", res.Jumps, res.Candidates, res.BoundViolations)

	if len(res.Events) > 0 {
		fmt.Println("\njumps:")
		for _, ev := range res.Events {
			fmt.Printf("  t=%.4f  u%d -> u%d  %.4f -> %.4f\n", ev.Time, ev.Particle+1, ev.Target+1, ev.Before, ev.After)
		}
	}
	return nil
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
	fmt.Fprintln(w, "ID\tTIME\tN\tK\tHORIZON\tALGO\tMODE\tFAILED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%g\t%s\t%s\t%d\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Particles,
			run.Trajectories,
			run.Horizon,
			run.Algorithm,
			run.Mode,
			run.Failed,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	summary, err := st.LoadSummary(runID)
	if err != nil {
		return err
	}

	if len(summary.Times) < 2 {
		return fmt.Errorf("need at least two save times to plot, got %d", len(summary.Times))
	}

	channels := summary.Channels
	if plotChannel != "" {
		if summary.Channel(plotChannel) < 0 {
			return fmt.Errorf("unknown channel %q (available: %v)", plotChannel, summary.Channels)
		}
		channels = []string{plotChannel}
	}

	fmt.Printf("run: %s\n", runID)
	fmt.Printf("trajectories: %d\n", summary.Count)
	fmt.Printf("t: %g .. %g\n\n", summary.Times[0], summary.Times[len(summary.Times)-1])

	for _, ch := range channels {
		c := summary.Channel(ch)
		graph := asciigraph.Plot(summary.Mean[c],
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("ensemble mean of %s", ch)),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	summary, err := st.LoadSummary(runID)
	if err != nil {
		return err
	}

	if svgFile != "" {
		var channels []string
		if svgChannel != "" {
			channels = []string{svgChannel}
		}
		svg, err := export.SummaryToSVG(summary, channels, 800, 400)
		if err != nil {
			return err
		}
		if err := os.WriteFile(svgFile, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "rendered %s\n", svgFile)
	}

	if outFile == "" {
		return storage.ExportJSON(os.Stdout, *meta, summary)
	}

	f, err := os.Create(outFile)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := storage.ExportJSON(f, *meta, summary); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outFile)
	return nil
}

func bench(cmd *cobra.Command, args []string) error {
	sizes := []int{10, 100, 1000}
	algorithms := []string{"euler_maruyama", "heun"}

	fmt.Println("benchmarking herding preset, 8 trajectories to t=5")
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "N\tALGO\tTIME\tJUMPS\tCANDIDATES\tJUMPS/SEC")

	for _, n := range sizes {
		for _, algo := range algorithms {
			cfg := config.GetPreset("herding")
			cfg.Particles = n
			cfg.Algorithm = algo
			cfg.Trajectories = 8
			cfg.SaveTimes = nil
			cfg.SaveGrid = config.GridConfig{Start: 0, Stop: 5, Step: 1}
			cfg.Seed = 42

			exp, err := experiment.FromConfig(cfg, logging.Discard())
			if err != nil {
				return err
			}

			rep, err := exp.Run(cmd.Context())
			if err != nil {
				return err
			}
			c := storage.Counters(rep)

			fmt.Fprintf(w, "%d\t%s\t%v\t%d\t%d\t%.0f\n",
				n, algo, rep.Elapsed.Round(time.Millisecond), c["jumps"], c["candidates"],
				float64(c["jumps"])/rep.Elapsed.Seconds())
		}
	}

	return w.Flush()
}

// parseGrid reads "name=v1,v2,..." arguments.
func parseGrid(args []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(args))
	ranges := make([][]float64, 0, len(args))
	for _, arg := range args {
		name, list, ok := strings.Cut(arg, "=")
		if !ok || name == "" || list == "" {
			return nil, nil, fmt.Errorf("invalid --param %q, want name=v1,v2,...", arg)
		}
		var values []float64
		for _, field := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid --param %q: %w", arg, err)
			}
			values = append(values, v)
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}
	return names, ranges, nil
}

func sweep(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(sweepArgs) == 0 {
		return fmt.Errorf("at least one --param is required")
	}

	names, ranges, err := parseGrid(sweepArgs)
	if err != nil {
		return err
	}

	g := optim.NewGridSearch(names, ranges)
	g.Maximize = maximize

	points, best, err := g.Search(cmd.Context(), cfg, sweepChannel, newLogger())
	if err != nil {
		return err
	}

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(strings.Join(sorted, "\t")), strings.ToUpper(sweepChannel))
	for _, p := range points {
		cells := make([]string, len(sorted))
		for i, name := range sorted {
			cells[i] = strconv.FormatFloat(p.Params[name], 'g', -1, 64)
		}
		score := fmt.Sprintf("%.6g", p.Value)
		if p.Err != nil {
			score = "error: " + p.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\n", strings.Join(cells, "\t"), score)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if best == nil {
		return fmt.Errorf("no grid point succeeded")
	}
	fmt.Printf("\nbest: %v -> %.6g\n", best.Params, best.Value)
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	fmt.Printf("scenario %s: %d steps\n", scenario.Name, len(scenario.Steps))
	results, err := automation.RunScenario(cmd.Context(), scenario, st, newLogger())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tRUN ID\tOK\tFAILED")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", r.Name, r.RunID, r.Summary.Count, r.Summary.Failed)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	return err
}
