package metrics

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its own registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	SubmissionsCreated prometheus.Counter
	EnqueueFailures    prometheus.Counter
	JudgeReports       *prometheus.CounterVec
	NotifyFailures     prometheus.Counter
	Rejudges           prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SubmissionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "judge_submissions_created_total",
			Help: "Submissions stored in the waiting state.",
		}),
		EnqueueFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "judge_enqueue_failures_total",
			Help: "Judge requests that could not be pushed to the queue.",
		}),
		JudgeReports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_reports_total",
			Help: "Judge reports applied, by verdict.",
		}, []string{"verdict"}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "judge_notify_failures_total",
			Help: "Progress events that could not be published.",
		}),
		Rejudges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "judge_rejudges_total",
			Help: "Rejudge requests accepted.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SubmissionsCreated,
		m.EnqueueFailures,
		m.JudgeReports,
		m.NotifyFailures,
		m.Rejudges,
	)
	return m
}

// DepthReader is a queue whose backlog can be measured.
type DepthReader interface {
	Name() string
	Len(ctx context.Context) (int64, error)
}

// WatchQueue exposes judge_queue_depth{queue}, read from q on every scrape.
// A failed read reports NaN.
func (m *Metrics) WatchQueue(q DepthReader) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "judge_queue_depth",
		Help:        "Submissions waiting in the judge queue.",
		ConstLabels: prometheus.Labels{"queue": q.Name()},
	}, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		n, err := q.Len(ctx)
		if err != nil {
			return math.NaN()
		}
		return float64(n)
	}))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
