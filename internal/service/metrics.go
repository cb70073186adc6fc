// metrics.go — Prometheus метрики сервисного слоя.
package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// reviewTransitionsTotal — выполненные переходы состояний архивов.
	reviewTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exadocs_review_transitions_total",
			Help: "Количество переходов состояний архивов",
		},
		[]string{"from", "to"},
	)

	// dispatchFailuresTotal — неудачные уведомления и постановки писем.
	// channel: notification, mail.
	dispatchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exadocs_dispatch_failures_total",
			Help: "Количество неудачных отправок уведомлений и писем",
		},
		[]string{"channel"},
	)

	stateCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exadocs_state_cache_hits_total",
		Help: "Общее количество попаданий в кэш состояний архивов.",
	})
	stateCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exadocs_state_cache_misses_total",
		Help: "Общее количество промахов кэша состояний архивов.",
	})
)
