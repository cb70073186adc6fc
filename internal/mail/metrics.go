// metrics.go — Prometheus метрики обработчика очереди писем.
package mail

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// mailSentTotal — успешно отправленные письма по шаблонам.
	mailSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exadocs_mail_sent_total",
			Help: "Количество отправленных писем",
		},
		[]string{"template"},
	)

	// mailFailedTotal — неудачные попытки отправки.
	// stage: render, send, dead.
	mailFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exadocs_mail_failed_total",
			Help: "Количество неудачных попыток отправки писем",
		},
		[]string{"template", "stage"},
	)
)
