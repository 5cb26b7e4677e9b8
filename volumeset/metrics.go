package volumeset

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"
	outcomeLabel = "outcome"

	outcomeSuccess  = "success"
	outcomeCanceled = "canceled"
)

var (
	volumesResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "volumeset_volumes_resolved",
		Help: "The number of volumes resolved while building volume sets.",
	})

	itemFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "volumeset_item_failures",
		Help: "The volume set items that were skipped because they failed to resolve.",
	}, []string{errTypeLabel})

	buildLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "volumeset_build_latency",
		Help: "The time to build a volume set.",
	}, []string{outcomeLabel})
)

func instrumentResolvedVolumes(n int) {
	volumesResolved.Add(float64(n))
}

func instrumentItemFailure(err error) {
	itemFailures.
		With(prometheus.Labels{errTypeLabel: errors.Type(err)}).
		Inc()
}

func instrumentBuildLatency(start time.Time, canceled bool) {
	outcome := outcomeSuccess
	if canceled {
		outcome = outcomeCanceled
	}

	buildLatency.
		With(prometheus.Labels{outcomeLabel: outcome}).
		Observe(time.Since(start).Seconds())
}
