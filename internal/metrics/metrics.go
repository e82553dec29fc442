// Package metrics registers the service counters on the default prometheus
// registry, exposed by the server on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "charla_chat_requests_total",
		Help: "Inbound chat messages handled.",
	})
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "charla_chat_cache_hits_total",
		Help: "Chat responses served from the response cache.",
	})
	ModelFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "charla_model_failures_total",
		Help: "Completion backend failures surfaced to callers.",
	})
	TasksFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "charla_tasks_fired_total",
		Help: "Deferred tasks that fired and notified.",
	})
	TasksCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "charla_tasks_cancelled_total",
		Help: "Deferred tasks cancelled before firing.",
	})
	AchievementsGranted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "charla_achievements_granted_total",
		Help: "One-time badges granted.",
	})
)
