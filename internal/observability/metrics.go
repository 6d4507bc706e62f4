// Package observability содержит метрики Prometheus портала фестиваля.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// HTTPRequests считает обработанные HTTP-запросы по маршруту и коду ответа.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "festival_http_requests_total", Help: "HTTP requests"},
		[]string{"route", "status"},
	)
	// HTTPLatency измеряет время обработки HTTP-запросов.
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "festival_http_request_duration_seconds", Help: "HTTP request latency"},
		[]string{"route"},
	)
	// Callbacks считает обратные вызовы платёжного шлюза по результату обработки.
	Callbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "thepay_callbacks_total", Help: "Gateway callback outcomes"},
		[]string{"result"},
	)
	// FilmTransitions считает переходы заявок между состояниями.
	FilmTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "festival_film_transitions_total", Help: "Film status transitions"},
		[]string{"from", "to"},
	)
	// Emails считает отправленные письма по виду шаблона и результату доставки.
	Emails = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "festival_emails_total", Help: "Notification emails"},
		[]string{"kind", "result"},
	)
	// EmailLatency измеряет длительность доставки одного письма через SMTP.
	EmailLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "festival_email_send_latency_seconds", Help: "SMTP dispatch latency"},
	)
)

// Результаты обработки обратного вызова.
const (
	CallbackRecorded         = "recorded"
	CallbackTransitioned     = "transitioned"
	CallbackInvalidSignature = "invalid_signature"
	CallbackDuplicate        = "duplicate"
	CallbackRejected         = "rejected"
	CallbackFailed           = "failed"
)

// Register регистрирует все метрики в указанном реестре.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(HTTPRequests, HTTPLatency, Callbacks, FilmTransitions, Emails, EmailLatency)
}
