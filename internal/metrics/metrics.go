// Package metrics 提供 Prometheus 指标的收集与暴露。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector 指标收集器，nil 接收者上的调用都是空操作，方便测试时不注入
type Collector struct {
	catalogRequests  *prometheus.CounterVec
	catalogCacheHits *prometheus.CounterVec
	hydrations       *prometheus.CounterVec
	statusRollbacks  prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpLatency      *prometheus.HistogramVec
	gatherer         prometheus.Gatherer
}

// NewCollector 创建收集器并注册到独立的 Registry
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		catalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cineverse_catalog_requests_total",
			Help: "TMDB 请求次数",
		}, []string{"endpoint", "outcome"}),
		catalogCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cineverse_catalog_cache_hits_total",
			Help: "目录缓存命中次数",
		}, []string{"endpoint"}),
		hydrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cineverse_session_hydrations_total",
			Help: "会话缓存加载次数",
		}, []string{"outcome"}),
		statusRollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cineverse_status_rollbacks_total",
			Help: "远端写入失败导致的标记回滚次数",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cineverse_http_requests_total",
			Help: "HTTP 请求次数",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cineverse_http_request_duration_seconds",
			Help:    "HTTP 请求耗时（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		gatherer: reg,
	}

	reg.MustRegister(
		c.catalogRequests,
		c.catalogCacheHits,
		c.hydrations,
		c.statusRollbacks,
		c.httpRequests,
		c.httpLatency,
		prometheus.NewGoCollector(),
	)
	return c
}

// Handler /metrics 处理器
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) RecordCatalogRequest(endpoint string, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.catalogRequests.WithLabelValues(endpoint, outcome).Inc()
}

func (c *Collector) RecordCatalogCacheHit(endpoint string) {
	if c == nil {
		return
	}
	c.catalogCacheHits.WithLabelValues(endpoint).Inc()
}

// RecordHydration outcome: ok / failed / superseded
func (c *Collector) RecordHydration(outcome string) {
	if c == nil {
		return
	}
	c.hydrations.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordStatusRollback() {
	if c == nil {
		return
	}
	c.statusRollbacks.Inc()
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, latency time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(route).Observe(latency.Seconds())
}
