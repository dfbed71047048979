package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/dealmungchi/pricewatch/config"
	"github.com/dealmungchi/pricewatch/internal"
	"github.com/dealmungchi/pricewatch/internal/alert"
	"github.com/dealmungchi/pricewatch/internal/crawler"
	"github.com/dealmungchi/pricewatch/internal/ledger"
	"github.com/dealmungchi/pricewatch/internal/trigger"
	"github.com/dealmungchi/pricewatch/logger"
	"github.com/dealmungchi/pricewatch/pkg/errors"
)

// Summary describes one completed run
type Summary struct {
	Checked int
	Failed  int
	// Alerts in configuration order, products before searches
	Alerts []alert.Payload
}

// Worker runs the tracker: fetch every entity, evaluate triggers against the
// ledger, emit alerts, persist the ledger.
type Worker struct {
	cfg         *config.Config
	store       ledger.Store
	prices      crawler.PriceFetcher
	listings    crawler.ListingFetcher
	deps        internal.Dependencies
	concurrency int
	now         func() time.Time
}

// NewWorker creates a new worker
func NewWorker(
	cfg *config.Config,
	store ledger.Store,
	prices crawler.PriceFetcher,
	listings crawler.ListingFetcher,
	deps internal.Dependencies,
	concurrency int,
) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		cfg:         cfg,
		store:       store,
		prices:      prices,
		listings:    listings,
		deps:        deps,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Cycle loads the ledger, runs every entity and saves the ledger. Only state
// load and save failures are returned.
func (w *Worker) Cycle(ctx context.Context) (*Summary, error) {
	start := w.now()

	l, err := w.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	summary := w.Run(ctx, l)

	if err := w.store.Save(l); err != nil {
		return summary, fmt.Errorf("save state: %w", err)
	}

	if w.deps.Publisher != nil {
		if err := w.deps.Publisher.Trim(ctx); err != nil {
			logger.ForPublisher().Warn().Err(err).Msg("Failed to trim alert stream")
		}
	}

	finished := w.now()
	w.deps.Metrics.ObserveRun(finished.Sub(start), finished)
	logger.ForWorker().Info().
		Int("checked", summary.Checked).
		Int("failed", summary.Failed).
		Int("alerts", len(summary.Alerts)).
		Dur("elapsed", finished.Sub(start)).
		Msg("Run complete")
	return summary, nil
}

// Run evaluates every configured entity against l. Fetches run concurrently;
// ledger updates and alerts are applied sequentially in configuration order.
func (w *Worker) Run(ctx context.Context, l *ledger.Ledger) *Summary {
	summary := &Summary{}

	prices := fetchAll(ctx, w.cfg.Products, w.concurrency, w.prices.FetchPrice)
	for i, p := range w.cfg.Products {
		w.applyProduct(ctx, l, p, prices[i], summary)
	}

	listings := fetchAll(ctx, w.cfg.Searches, w.concurrency, w.listings.FetchListings)
	for i, s := range w.cfg.Searches {
		w.applySearch(ctx, l, s, listings[i], summary)
	}

	return summary
}

// Start runs a cycle immediately and then on schedule until ctx is done
func (w *Worker) Start(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{})))
	if _, err := c.AddFunc(schedule, func() { w.runCycle(ctx) }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	w.runCycle(ctx)
	c.Start()
	logger.ForWorker().Info().Str("schedule", schedule).Msg("Scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (w *Worker) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := w.Cycle(ctx); err != nil {
		logger.LogError("worker", err, "Run failed")
	}
}

type fetchResult[R any] struct {
	value R
	err   error
}

// fetchAll calls fn for every item with at most limit calls in flight.
// Results are index-addressed so callers see them in input order.
func fetchAll[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) []fetchResult[R] {
	results := make([]fetchResult[R], len(items))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, item T) {
			defer wg.Done()
			defer func() { <-sem }()
			value, err := fn(ctx, item)
			results[i] = fetchResult[R]{value: value, err: err}
		}(i, item)
	}

	wg.Wait()
	return results
}

func (w *Worker) applyProduct(ctx context.Context, l *ledger.Ledger, p config.Product, res fetchResult[decimal.Decimal], summary *Summary) {
	id := p.EntityID()
	log := logger.ForProduct(id)
	summary.Checked++
	w.deps.Metrics.IncCheck("product")

	if res.err != nil {
		summary.Failed++
		w.deps.Metrics.IncError(string(errors.TypeOf(res.err)))
		log.WithError(res.err).Error().Str("error_type", string(errors.TypeOf(res.err))).Msg("Failed to fetch price")
		return
	}
	current := res.value

	baseline, ok := l.Baseline(id)
	if p.Baseline != nil {
		baseline = decimal.NewFromFloat(*p.Baseline)
	} else if !ok {
		baseline = current
		log.Info().Str("baseline", baseline.StringFixed(2)).Msg("Initialized baseline")
	}

	threshold := w.cfg.DropThreshold(p)
	result := trigger.EvaluateRetail(baseline, current, threshold)

	log.Info().
		Str("name", p.DisplayName()).
		Str("current", current.StringFixed(2)).
		Str("baseline", baseline.StringFixed(2)).
		Str("drop", result.Drop.StringFixed(2)).
		Str("needs", threshold.StringFixed(2)).
		Msg("Retailer checked")

	l.AppendHistory(id, ledger.Sample{T: w.now().Unix(), Price: current})
	l.SetLastPrice(id, current)
	l.SetBaseline(id, baseline)
	l.SetDisplay(id, p.DisplayName(), p.URL)

	f, _ := current.Float64()
	w.deps.Metrics.SetPrice(id, f)

	if result.Fired {
		src := alert.Source{Entity: id, Name: p.DisplayName(), URL: p.URL}
		w.emit(ctx, alert.RetailDrop(src, current, baseline, result), summary)
	}
}

func (w *Worker) applySearch(ctx context.Context, l *ledger.Ledger, s config.Search, res fetchResult[[]trigger.Listing], summary *Summary) {
	id := s.EntityID()
	log := logger.ForSearch(id)
	summary.Checked++
	w.deps.Metrics.IncCheck("search")

	if res.err != nil {
		summary.Failed++
		w.deps.Metrics.IncError(string(errors.TypeOf(res.err)))
		log.WithError(res.err).Error().Str("error_type", string(errors.TypeOf(res.err))).Msg("Failed used search")
		return
	}

	seen := l.Seen(id)
	rules := trigger.Rules{
		Include:      s.IncludeKeywords,
		Exclude:      s.ExcludeKeywords,
		AlertBelow:   decimal.NewFromFloat(s.AlertBelow),
		Reference:    w.cfg.Reference(),
		PercentBelow: decimal.NewFromFloat(s.PercentBelow),
	}
	matches := trigger.EvaluateListings(res.value, rules, seen)

	log.Info().
		Int("candidates", len(res.value)).
		Int("matches", len(matches)).
		Int("seen", seen.Len()).
		Msg("Used search checked")

	if len(matches) == 0 {
		return
	}
	for _, m := range matches {
		seen.Add(m.URL)
	}

	src := alert.Source{Entity: id, Name: s.DisplayName(), URL: s.URL}
	w.emit(ctx, alert.UsedFinds(src, matches), summary)
}

// emit records an alert and hands it to the notifier and publisher. Delivery
// failures are logged and never abort the run.
func (w *Worker) emit(ctx context.Context, payload alert.Payload, summary *Summary) {
	summary.Alerts = append(summary.Alerts, payload)
	w.deps.Metrics.IncAlert(string(payload.Kind))

	log := logger.ForWorker().WithFields(logger.Fields{
		"entity": payload.Entity,
		"kind":   string(payload.Kind),
	})
	log.Info().Str("subject", payload.Subject).Msg("Alert triggered")

	if w.deps.Notifier != nil {
		if err := w.deps.Notifier.Send(ctx, payload.Subject, payload.Body); err != nil {
			w.deps.Metrics.IncError(string(errors.TypeOf(err)))
			log.WithError(err).Error().Msg("Failed to send alert")
		}
	} else if logger.IsDebugEnabled() {
		log.Debug().Str("body", payload.Body).Msg("Notifier disabled; alert logged only")
	}

	if w.deps.Publisher != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.WithError(err).Error().Msg("Failed to encode alert")
			return
		}
		if err := w.deps.Publisher.Publish(ctx, string(payload.Kind), data); err != nil {
			log.WithError(err).Error().Msg("Failed to publish alert")
		}
	}
}

// cronLogger routes scheduler messages to the worker logger
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.ForWorker().Debug().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.ForWorker().Error().Err(err).Fields(keysAndValues).Msg(msg)
}
