package internal

import (
	"github.com/dealmungchi/pricewatch/services/metrics"
	"github.com/dealmungchi/pricewatch/services/notifier"
	"github.com/dealmungchi/pricewatch/services/publisher"
)

// Dependencies holds the alert and reporting services of a run.
// A nil Notifier means log-only mode; a nil Publisher disables streaming.
type Dependencies struct {
	Notifier  notifier.Notifier
	Publisher publisher.Publisher
	Metrics   *metrics.Metrics
}
