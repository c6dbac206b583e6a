// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultOK    = "ok"
	ResultError = "error"

	KindCreate = "create"
	KindEdit   = "edit"
)

var (
	storeMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adventure_store_mutations_total",
		Help: "The total number of post store writes",
	}, []string{"op", "result"})

	posts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "adventure_posts",
		Help: "The number of posts in the store snapshot",
	})

	sessionCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adventure_session_commits_total",
		Help: "The total number of editing session commits",
	}, []string{"kind", "result"})
)

// ObserveMutation counts a store write; err decides the result label.
func ObserveMutation(op string, err error) {
	storeMutations.WithLabelValues(op, result(err == nil)).Inc()
}

func SetPostCount(n int) {
	posts.Set(float64(n))
}

func ObserveCommit(kind string, ok bool) {
	sessionCommits.WithLabelValues(kind, result(ok)).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func result(ok bool) string {
	if ok {
		return ResultOK
	}
	return ResultError
}
