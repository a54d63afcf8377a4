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
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-brief/internal/circuitbreaker"
	"github.com/kjstillabower/weather-brief/internal/client"
	"github.com/kjstillabower/weather-brief/internal/config"
	"github.com/kjstillabower/weather-brief/internal/genai"
	httphandler "github.com/kjstillabower/weather-brief/internal/http"
	"github.com/kjstillabower/weather-brief/internal/lifecycle"
	"github.com/kjstillabower/weather-brief/internal/models"
	"github.com/kjstillabower/weather-brief/internal/observability"
	"github.com/kjstillabower/weather-brief/internal/pipeline"
	"github.com/kjstillabower/weather-brief/internal/traffic"
)

type options struct {
	serve   bool
	city    string
	state   string
	country string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("weather-brief", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&opts.serve, "serve", false, "serve /analysis, /health and /metrics over HTTP instead of running once")
	fs.StringVar(&opts.city, "city", "", "override location.city")
	fs.StringVar(&opts.state, "state", "", "override location.state")
	fs.StringVar(&opts.country, "country", "", "override location.country (ISO 3166 alpha-2)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = observability.FlushTelemetry(context.Background(), logger) }()

	cfg, err := config.Load()
	if err == nil {
		err = cfg.OverrideLocation(opts.city, opts.state, opts.country)
	}
	if err != nil {
		logger.Error("config", zap.Error(err))
		return fail(opts, stdout)
	}

	if err := cfg.RequireKeys(); err != nil {
		if opts.serve {
			logger.Error("config", zap.Error(err))
			return 1
		}
		logger.Warn("api key missing; the affected stage will fail", zap.Error(err))
	}

	tracker := traffic.NewTracker(0)
	p, breakers, err := buildPipeline(cfg, logger, tracker)
	if err != nil {
		logger.Error("pipeline", zap.Error(err))
		return fail(opts, stdout)
	}

	if opts.serve {
		return serve(cfg, logger, p, tracker, breakers)
	}
	return runOnce(cfg, p, stdout)
}

// fail ends a run that could not build its pipeline. A one-shot run still prints its line.
func fail(opts options, stdout io.Writer) int {
	if !opts.serve {
		fmt.Fprintln(stdout, models.FailureLine)
	}
	return 1
}

// runOnce runs the pipeline and prints its single line. Exit status 1 on the failure path.
func runOnce(cfg *config.Config, p *pipeline.Pipeline, stdout io.Writer) int {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	analysis := p.Run(ctx)
	fmt.Fprintln(stdout, analysis.Line())
	if !analysis.OK {
		return 1
	}
	return 0
}

// buildPipeline wires the OpenWeather and generative clients, the optional
// per-provider circuit breakers and the three stages. A client that cannot be
// built (missing or short API key) is replaced by one that fails every call.
func buildPipeline(cfg *config.Config, logger *zap.Logger, tracker *traffic.Tracker) (*pipeline.Pipeline, []*circuitbreaker.CircuitBreaker, error) {
	query, err := cfg.LocationQuery()
	if err != nil {
		return nil, nil, err
	}

	var breakers []*circuitbreaker.CircuitBreaker

	var weatherClient client.WeatherClient
	owClient, err := client.NewOpenWeatherClient(cfg.OWMAPIKey, cfg.GeocodingURL, cfg.WeatherAPIURL, cfg.OpenWeatherTimeout)
	if err != nil {
		logger.Warn("openweather client unavailable", zap.Error(err))
		weatherClient = client.NewUnavailableClient(err)
	} else {
		if cfg.CircuitBreakerEnabled {
			geoCB := newBreaker(cfg, observability.ProviderGeocoding, logger)
			weatherCB := newBreaker(cfg, observability.ProviderWeather, logger)
			owClient.SetCircuitBreaker(observability.ProviderGeocoding, geoCB)
			owClient.SetCircuitBreaker(observability.ProviderWeather, weatherCB)
			breakers = append(breakers, geoCB, weatherCB)
		}
		weatherClient = owClient
	}

	var generator genai.Generator
	oaGenerator, err := genai.NewOpenAIGenerator(cfg.GenAIAPIKey, cfg.GenAIBaseURL, cfg.GenAIModel, cfg.GenAITimeout)
	if err != nil {
		logger.Warn("genai client unavailable", zap.Error(err))
		generator = genai.NewUnavailableGenerator(cfg.GenAIModel, err)
	} else {
		if cfg.CircuitBreakerEnabled {
			genaiCB := newBreaker(cfg, observability.ProviderGenAI, logger)
			oaGenerator.SetCircuitBreaker(genaiCB)
			breakers = append(breakers, genaiCB)
		}
		generator = oaGenerator
	}

	if len(breakers) > 0 {
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	p := pipeline.New(query,
		pipeline.NewGeocoder(weatherClient, logger),
		pipeline.NewWeatherFetcher(weatherClient, logger),
		pipeline.NewSummarizer(generator, logger),
		logger, tracker)
	return p, breakers, nil
}

func newBreaker(cfg *config.Config, component string, logger *zap.Logger) *circuitbreaker.CircuitBreaker {
	observability.SetCircuitBreakerStateGauge(component, int(circuitbreaker.StateClosed))
	return circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
		Timeout:          cfg.CircuitBreakerTimeout,
		Component:        component,
		OnStateChange: func(component string, from, to circuitbreaker.State) {
			observability.RecordCircuitBreakerTransition(component, from.String(), to.String(), int(to))
			logger.Warn("circuit breaker transition",
				zap.String("component", component),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// serve runs the HTTP mode until SIGINT/SIGTERM, then drains in-flight requests.
func serve(cfg *config.Config, logger *zap.Logger, p *pipeline.Pipeline, tracker *traffic.Tracker, breakers []*circuitbreaker.CircuitBreaker) int {
	drainer := &lifecycle.Drainer{}
	handler := httphandler.NewHandler(p, &httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
		Tracker:          tracker,
		Breakers:         breakers,
	}, drainer, logger)

	router := httphandler.NewRouter(handler, logger, httphandler.RouterConfig{
		Limiter:        rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		Tracker:        tracker,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("location", p.Query().Q()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("server", zap.Error(err))
			return 1
		}
	case <-ctx.Done():
	}
	stop()

	logger.Info("graceful shutdown triggered")
	drainer.BeginShutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", drainer.InFlight()))
	if err := drainer.Wait(shutdownCtx, 100*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", drainer.InFlight()))
	}
	logger.Info("shutdown complete")
	return 0
}
