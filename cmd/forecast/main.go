// Command forecast fetches a sales collection, fits the model and prints the
// tail of the forecast.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	config "sales-forecast-api/configs"
	"sales-forecast-api/pkg/datastore"
	"sales-forecast-api/pkg/logging"
	"sales-forecast-api/pkg/models"
	"sales-forecast-api/pkg/services"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type options struct {
	collection string
	periods    int
	medicine   string
	tail       int
}

func main() {
	var opts options
	flag.StringVar(&opts.collection, "collection", "", "collection to read (default: DEFAULT_COLLECTION)")
	flag.IntVar(&opts.periods, "periods", 0, "days to forecast (default: DEFAULT_PERIODS)")
	flag.StringVar(&opts.medicine, "medicine", "", "forecast a single medicine")
	flag.IntVar(&opts.tail, "tail", 5, "number of forecast rows to print")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.LoadConfig()
	settings, err := config.LoadForecasterFile(cfg.ForecasterConfigFile, cfg.Forecaster)
	if err != nil {
		log.Fatal(err)
	}
	cfg.Forecaster = settings

	logger, err := logging.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}

	// run の defer（ストアのクローズ等）を済ませてから終了する
	if err := run(context.Background(), cfg, opts, logger, os.Stdout); err != nil {
		logger.Errorw("forecast failed", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *zap.SugaredLogger, out io.Writer) error {
	if opts.collection == "" {
		opts.collection = cfg.DefaultCollection
	}
	if opts.periods == 0 {
		opts.periods = cfg.DefaultPeriods
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	store, err := datastore.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	defer store.Close()

	fetcher := services.NewRecordFetcher(store, logger)
	fmt.Fprintf(out, "Fetching sales data from %s/%s...\n", store.Name(), opts.collection)
	observations, err := fetcher.Fetch(ctx, opts.collection)
	if err != nil {
		return err
	}
	if len(observations) == 0 {
		fmt.Fprintln(out, "No sales data found.")
		return nil
	}
	fmt.Fprintf(out, "Fetched %d sales records.\n", len(observations))

	svc := services.NewSalesForecastService(
		staticFetcher(observations),
		services.NewForecastAdapter(cfg.Forecaster.Options(), logger),
		cfg.MaxPeriods,
		logger,
	)

	fmt.Fprintln(out, "Forecasting sales...")
	var points []models.ForecastPoint
	if opts.medicine != "" {
		points, err = svc.ForecastEntity(ctx, opts.collection, opts.medicine, opts.periods)
	} else {
		points, err = svc.Forecast(ctx, opts.collection, opts.periods)
	}
	if errors.Is(err, services.ErrEntityNotFound) {
		fmt.Fprintf(out, "No sales data found for %q.\n", opts.medicine)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Forecasted sales:")
	return printTail(out, points, opts.tail)
}

// staticFetcher は取得済みの記録を返す（再取得しない）
type staticFetcher []models.Observation

func (s staticFetcher) Fetch(context.Context, string) ([]models.Observation, error) {
	return s, nil
}

func printTail(w io.Writer, points []models.ForecastPoint, n int) error {
	if n > 0 && n < len(points) {
		points = points[len(points)-n:]
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ds\tyhat\tyhat_lower\tyhat_upper\t")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t\n", p.Date.Format("2006-01-02"), p.Yhat, p.YhatLower, p.YhatUpper)
	}
	return tw.Flush()
}
