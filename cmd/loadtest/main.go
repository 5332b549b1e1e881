package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

type loadMode string

const (
	modeCart        loadMode = "cart"
	modeCheckout    loadMode = "checkout"
	modeReservation loadMode = "reservation"
)

type config struct {
	baseURL       string
	total         int
	totalSet      bool
	duration      time.Duration
	concurrency   int
	timeout       time.Duration
	mode          loadMode
	products      []string
	paymentMethod string
	outputPath    string
}

func parseConfig(args []string) (config, error) {
	var (
		cfg      config
		mode     string
		products string
	)

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.baseURL, "addr", "http://localhost:8080", "HTTP API base URL")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 10m, 15m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	fs.StringVar(&mode, "mode", string(modeCheckout), "load mode: cart | checkout | reservation")
	fs.StringVar(&products, "products", "1,3", "comma-separated product ids added to the cart")
	fs.StringVar(&cfg.paymentMethod, "payment-method", "cash", "payment method for checkout mode")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	var err error
	if cfg.mode, err = parseMode(mode); err != nil {
		return config{}, err
	}
	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	for _, p := range strings.Split(products, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cfg.products = append(cfg.products, p)
		}
	}

	var errs []error
	if cfg.baseURL == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if cfg.duration < 0 {
		errs = append(errs, errors.New("duration must be >= 0"))
	}
	if cfg.total <= 0 && (cfg.duration == 0 || cfg.totalSet) {
		errs = append(errs, errors.New("total must be > 0"))
	}
	if cfg.concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be > 0"))
	}
	if cfg.timeout <= 0 {
		errs = append(errs, errors.New("timeout must be > 0"))
	}
	if cfg.mode != modeReservation && len(cfg.products) == 0 {
		errs = append(errs, errors.New("products must not be empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch mode := loadMode(strings.ToLower(strings.TrimSpace(value))); mode {
	case modeCart, modeCheckout, modeReservation:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported mode %q (use cart|checkout|reservation)", value)
	}
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := run(ctx, cfg, &http.Client{Timeout: cfg.timeout})
	printReport(os.Stdout, result, cfg)

	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}
	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, httpClient *http.Client) report {
	startedAt := time.Now()
	runID := fmt.Sprintf("load-%d", startedAt.Unix())
	client := &apiClient{baseURL: cfg.baseURL, http: httpClient, col: newCollector()}
	logger := log.WithFields(log.Fields{"component": "loadtest", "mode": cfg.mode})

	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for range cfg.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if err := runScenario(ctx, client, cfg, id, runID); err != nil {
					logger.WithError(err).WithField("scenario", id).Debug("scenario failed")
				}
			}
		}()
	}

	dispatchJobs(ctx, jobs, cfg)
	wg.Wait()

	return client.col.buildReport(startedAt, time.Since(startedAt))
}

func dispatchJobs(ctx context.Context, jobs chan<- int, cfg config) {
	defer close(jobs)

	var deadline <-chan time.Time
	if cfg.duration > 0 {
		timer := time.NewTimer(cfg.duration)
		defer timer.Stop()
		deadline = timer.C
	}

	for i := 0; ; i++ {
		if (cfg.duration <= 0 || cfg.totalSet) && i >= cfg.total {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case jobs <- i:
		}
	}
}
