// Package metrics は Prometheus 形式のメトリクスを提供します。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証処理の結果ラベル
const (
	ResultSuccess   = "success"
	ResultFailure   = "failure"
	ResultUnknown   = "unknown_user"
	ResultThrottled = "throttled"
)

// Metrics はアプリケーションのメトリクスをまとめたものです。
// nil の *Metrics に対する Observe 系の呼び出しは何もしません。
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	registrations   *prometheus.CounterVec
	logins          *prometheus.CounterVec
}

// New は専用レジストリを持つ Metrics を作成します。
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gatehouse_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_registrations_total",
			Help: "Registration attempts by result.",
		}, []string{"result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.registrations,
		m.logins,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Middleware はリクエスト数とレイテンシを記録する gin ミドルウェアです。
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler は /metrics 用の HTTP ハンドラーを返します。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRegistration は登録結果を記録します。
func (m *Metrics) ObserveRegistration(result string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(result).Inc()
}

// ObserveLogin はログイン結果を記録します。
func (m *Metrics) ObserveLogin(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}
