package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BotUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ecoreport", Name: "updates_total", Help: "Processed telegram updates",
	})
	HandlerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ecoreport", Name: "handler_errors_total", Help: "Handler errors",
	})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ecoreport", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
	ReportsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ecoreport", Name: "reports_submitted_total", Help: "Reports created by students",
	})
	Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecoreport", Name: "report_transitions_total", Help: "Report status transitions",
	}, []string{"action"})
	NotifyFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecoreport", Name: "notify_failures_total", Help: "Failed best-effort notifications",
	}, []string{"event"})
	TelegramErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecoreport", Name: "telegram_errors_total", Help: "Bot API call failures",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(BotUpdates, HandlerErrors, DBPing, ReportsSubmitted, Transitions, NotifyFailures, TelegramErrors)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }
