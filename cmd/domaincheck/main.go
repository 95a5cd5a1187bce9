package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/Normaleshok/domain-checker/internal/config"
	"github.com/Normaleshok/domain-checker/internal/domain"
	"github.com/Normaleshok/domain-checker/internal/httpapi"
	"github.com/Normaleshok/domain-checker/internal/logging"
	"github.com/Normaleshok/domain-checker/internal/metrics"
	"github.com/Normaleshok/domain-checker/internal/notify"
	"github.com/Normaleshok/domain-checker/internal/pipeline"
	"github.com/Normaleshok/domain-checker/internal/probe"
	"github.com/Normaleshok/domain-checker/internal/repo"
	"github.com/Normaleshok/domain-checker/internal/repo/csvfile"
	"github.com/Normaleshok/domain-checker/internal/repo/memory"
	"github.com/Normaleshok/domain-checker/internal/repo/postgres"
	"github.com/Normaleshok/domain-checker/internal/source"
	"github.com/Normaleshok/domain-checker/internal/worker"
)

const (
	exitOK          = 0
	exitFatal       = 1
	exitUsage       = 2
	exitInterrupted = 130

	recentResults = 1000
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func fatal(err error) int {
	color.New(color.FgHiRed).Fprintf(os.Stderr, "✖ %v\n", err)
	return exitFatal
}

func run(args []string) int {
	if err := config.LoadDotEnv(".env"); err != nil {
		return fatal(fmt.Errorf("load .env: %w", err))
	}
	cfg := config.FromEnv()

	fs := flag.NewFlagSet("domaincheck", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: domaincheck [flags] MAIN_FILE [WHITELIST_FILE]")
		fs.PrintDefaults()
	}
	fs.StringVar(&cfg.Output, "o", cfg.Output, "output CSV file")
	fs.StringVar(&cfg.Output, "output", cfg.Output, "output CSV file")
	fs.IntVar(&cfg.Workers, "w", cfg.Workers, "concurrent probes per batch")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent probes per batch")
	fs.IntVar(&cfg.BatchSize, "b", cfg.BatchSize, "domains per batch")
	fs.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "domains per batch")
	fs.Float64Var(&cfg.ProbeRate, "rate", cfg.ProbeRate, "max probes per second, 0 = unlimited")
	resolvers := fs.String("resolver", "", "comma-separated nameservers (host[:port]); default is the OS resolver")
	fs.StringVar(&cfg.StatusAddr, "status-addr", cfg.StatusAddr, "serve run status on this address")
	noProgress := fs.Bool("no-progress", false, "disable the progress bar")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if *resolvers != "" {
		cfg.Resolvers = config.SplitList(*resolvers)
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		return exitUsage
	}
	job := pipeline.Job{
		MainPath:  fs.Arg(0),
		BatchSize: cfg.BatchSize,
		Output:    cfg.Output,
	}
	if fs.NArg() == 2 {
		job.WhitelistPath = fs.Arg(1)
	}

	if err := cfg.Validate(); err != nil {
		return fatal(err)
	}

	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return fatal(fmt.Errorf("init logger: %w", err))
	}
	defer logger.Sync()

	var resolver probe.Resolver = probe.NewSystemResolver()
	if len(cfg.Resolvers) > 0 {
		resolver = probe.NewServerResolver(cfg.Resolvers, cfg.DNSTimeout)
	}
	checker := probe.NewChecker(resolver, probe.NewHTTPChecker(cfg.HTTPTimeout, cfg.UserAgent), cfg.DNSTimeout)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	pool, err := worker.NewPool(logger, checker, cfg.Workers, cfg.ProbeRate, collector)
	if err != nil {
		return fatal(err)
	}

	var recent *memory.Sink
	if cfg.StatusAddr != "" {
		recent = memory.New(recentResults)
	}

	var runner *pipeline.Runner
	open := func(ctx context.Context) (repo.ResultSink, error) {
		csv, err := csvfile.Create(cfg.Output)
		if err != nil {
			return nil, err
		}
		sinks := repo.Multi{csv}
		if cfg.DatabaseURL != "" {
			pg, err := postgres.New(ctx, cfg.DatabaseURL, runner.RunID, logger)
			if err != nil {
				_ = csv.Close()
				return nil, fmt.Errorf("postgres: %w", err)
			}
			sinks = append(sinks, pg)
		}
		if recent != nil {
			sinks = append(sinks, recent)
		}
		return sinks, nil
	}

	runner = pipeline.NewRunner(logger, source.NewLoader(), pool, open)
	runner.Metrics = collector
	var notifiers notify.Multi
	if slack := notify.NewSlack(cfg.SlackWebhook); slack != nil {
		notifiers = append(notifiers, slack)
	}
	if len(notifiers) > 0 {
		runner.Notifier = notifiers
	}
	if !*noProgress {
		runner.OnBatch = progressReporter()
	}

	if cfg.StatusAddr != "" {
		api := httpapi.NewServer(logger, runner.RunID, runner)
		api.Recent = recent
		api.Gatherer = reg
		api.Keys = cfg.StatusAPIKeys
		api.RPM = cfg.StatusRPM
		srv := &http.Server{Addr: cfg.StatusAddr, Handler: api.Router(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("status_listen", zap.String("addr", cfg.StatusAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status_server_error", zap.Error(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		sig, ok := <-sigChan
		if !ok {
			return
		}
		logger.Warn("received_shutdown_signal", zap.String("signal", sig.String()))
		color.New(color.FgHiYellow).Fprintln(os.Stderr, "\n⏸ finishing current batch, press Ctrl+C again to abort")
		cancel()
		if _, ok := <-sigChan; ok {
			logger.Warn("aborted")
			_ = logger.Sync()
			os.Exit(exitInterrupted)
		}
	}()

	logger.Info("run_start",
		zap.String("main", job.MainPath),
		zap.String("whitelist", job.WhitelistPath),
		zap.String("output", cfg.Output),
		zap.Int("workers", cfg.Workers),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Strings("resolvers", cfg.Resolvers))

	rep, err := runner.Run(ctx, job)
	if err != nil {
		return fatal(err)
	}
	printSummary(cfg.Output, rep)

	if rep.State == pipeline.StateInterrupted {
		return exitInterrupted
	}
	return exitOK
}

// progressReporter draws a bar on stderr, sized on the first batch.
func progressReporter() func(domain.RunStats) {
	var bar *progressbar.ProgressBar
	return func(st domain.RunStats) {
		if bar == nil {
			bar = progressbar.NewOptions(st.Total,
				progressbar.OptionSetDescription("Checking domains..."),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
			)
		}
		_ = bar.Set(st.Processed)
	}
}

func printSummary(output string, rep pipeline.Report) {
	st := rep.Stats
	c := color.New(color.FgHiGreen)
	if rep.State == pipeline.StateInterrupted {
		c = color.New(color.FgHiYellow)
	}
	c.Fprintf(os.Stderr, "%s: %d/%d domains, dns ok %d, http ok %d, %s -> %s\n",
		rep.State, st.Processed, st.Total, st.DNSResolved, st.HTTPAlive,
		st.Elapsed.Round(time.Millisecond), output)
	if rep.BatchErr != nil {
		color.New(color.FgHiRed).Fprintf(os.Stderr, "⚠ %d batch(es) failed: %v\n", st.BatchesFailed, rep.BatchErr)
	}
}
