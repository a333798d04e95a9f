package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP метрики - количество запросов
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP метрики - время обработки запросов
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Время обработки HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// WS метрики - количество активных соединений relay
	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Количество активных WebSocket соединений",
		},
	)

	// Пересланные relay конверты по типу
	relayForwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_envelopes_forwarded_total",
			Help: "Количество конвертов, пересланных relay",
		},
		[]string{"type", "addressed"},
	)

	// Клиентские метрики сигналинга
	signalingEnvelopesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signaling_envelopes_total",
			Help: "Конверты сигналинга на клиенте",
		},
		[]string{"direction", "type"},
	)

	candidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ice_candidates_total",
			Help: "Удалённые ICE кандидаты: queued - отложены до remote description, applied - применены",
		},
		[]string{"outcome"},
	)

	callStatusTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "call_status_transitions_total",
			Help: "Переходы состояния звонка",
		},
		[]string{"status"},
	)

	callQuality = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "call_quality_score",
			Help: "Качество соединения: 4 excellent, 3 good, 2 fair, 1 poor, 0 unknown",
		},
	)
)

// RecordHTTPMetrics записывает метрики HTTP запроса
func RecordHTTPMetrics(method, endpoint string, status int, duration time.Duration) {
	strStatus := strconv.Itoa(status)

	httpRequestsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, strStatus).Observe(duration.Seconds())
}

func IncrementWSActiveConnections() {
	wsActiveConnections.Inc()
}

func DecrementWSActiveConnections() {
	wsActiveConnections.Dec()
}

func RecordRelayForward(msgType string, addressed bool) {
	relayForwardedTotal.WithLabelValues(msgType, strconv.FormatBool(addressed)).Inc()
}

func RecordEnvelopeSent(msgType string) {
	signalingEnvelopesTotal.WithLabelValues("out", msgType).Inc()
}

func RecordEnvelopeReceived(msgType string) {
	signalingEnvelopesTotal.WithLabelValues("in", msgType).Inc()
}

func RecordCandidateQueued() {
	candidatesTotal.WithLabelValues("queued").Inc()
}

func RecordCandidateApplied() {
	candidatesTotal.WithLabelValues("applied").Inc()
}

func RecordCallStatus(status string) {
	callStatusTotal.WithLabelValues(status).Inc()
}

func SetCallQuality(score int) {
	callQuality.Set(float64(score))
}
