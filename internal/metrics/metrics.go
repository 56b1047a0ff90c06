package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lineup"

// Metrics 记录搜索任务和同步调整操作的指标
type Metrics struct {
	searches        *prometheus.CounterVec
	searchDuration  *prometheus.HistogramVec
	searchResults   *prometheus.CounterVec
	searchesRunning prometheus.Gauge
	boatOperations  *prometheus.CounterVec
}

// New 创建并注册所有指标，reg 为 nil 时使用默认的 registerer
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "jobs_total",
			Help:      "已完成的搜索任务数量，按类型和结果区分",
		}, []string{"kind", "status"}),
		searchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "搜索任务的耗时",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"kind"}),
		searchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "results_total",
			Help:      "搜索得到的合法结果数量",
		}, []string{"kind"}),
		searchesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "running",
			Help:      "正在执行的搜索任务数量",
		}),
		boatOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "boat",
			Name:      "operations_total",
			Help:      "同步调整操作的次数，按操作和结果区分",
		}, []string{"operation", "result"}),
	}

	reg.MustRegister(m.searches, m.searchDuration, m.searchResults, m.searchesRunning, m.boatOperations)
	return m
}

// SearchStarted 返回一个在任务结束时调用的函数
func (m *Metrics) SearchStarted(kind string) func(status string, results int) {
	start := time.Now()
	m.searchesRunning.Inc()

	return func(status string, results int) {
		m.searchesRunning.Dec()
		m.searches.WithLabelValues(kind, status).Inc()
		m.searchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if results > 0 {
			m.searchResults.WithLabelValues(kind).Add(float64(results))
		}
	}
}

func (m *Metrics) BoatOperation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.boatOperations.WithLabelValues(operation, result).Inc()
}
