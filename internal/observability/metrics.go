package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Metrics struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	activeSockets     prometheus.Gauge
	droppedEvents     *prometheus.CounterVec
	messagesAppended  prometheus.Counter
	notificationQueue prometheus.Gauge
	cacheHits         *prometheus.CounterVec
	logger            *zap.Logger
}

func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		activeSockets: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_gateway_active_connections",
				Help: "Number of live websocket connections",
			},
		),
		droppedEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_gateway_dropped_events_total",
				Help: "Events dropped because a client send buffer was full",
			},
			[]string{"user_id"},
		),
		messagesAppended: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_messages_appended_total",
				Help: "Messages appended to conversation logs",
			},
		),
		notificationQueue: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_notification_queue_depth",
				Help: "Notifications waiting for a dispatcher worker",
			},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_cache_hits_total",
				Help: "Cache hits and misses by cache type",
			},
			[]string{"cache_type", "status"},
		),
		logger: logger,
	}

	prometheus.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.activeSockets,
		m.droppedEvents,
		m.messagesAppended,
		m.notificationQueue,
		m.cacheHits,
	)
	return m
}

// GinMiddleware records per-route counters and latency. The route
// template is used as the path label to keep cardinality bounded.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requestsTotal.WithLabelValues(
			c.Request.Method, path, fmt.Sprintf("%d", c.Writer.Status()),
		).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) SocketConnected()    { m.activeSockets.Inc() }
func (m *Metrics) SocketDisconnected() { m.activeSockets.Dec() }

func (m *Metrics) RecordDroppedEvent(userID string) {
	m.droppedEvents.WithLabelValues(userID).Inc()
}

func (m *Metrics) RecordMessageAppended() {
	m.messagesAppended.Inc()
}

func (m *Metrics) SetNotificationQueueDepth(depth int) {
	m.notificationQueue.Set(float64(depth))
}

func (m *Metrics) RecordCacheHit(cacheType string, hit bool) {
	status := "hit"
	if !hit {
		status = "miss"
	}
	m.cacheHits.WithLabelValues(cacheType, status).Inc()
}

func (m *Metrics) Start(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	m.logger.Info("metrics server starting", zap.Int("port", port))

	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
