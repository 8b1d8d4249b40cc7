// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// ミドルウェア、サービス層、ヘルスチェックから利用する。
type Recorder interface {
	RecordHTTPRequest(method string, statusCode int, duration time.Duration)
	RecordProjectCreated()
	RecordTaskCreated()
	RecordTaskMoved()
	SetDependencyUp(service string, up bool)
	RecordBackupVerification(success bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    prometheus.Histogram
	projectsCreated prometheus.Counter
	tasksCreated    prometheus.Counter
	tasksMoved      prometheus.Counter
	dependencyUp    *prometheus.GaugeVec
	backupVerified  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kanban_http_requests_total",
			Help: "メソッド・ステータスコード別のHTTPリクエスト数",
		}, []string{"method", "status"}),
		httpDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kanban_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		projectsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kanban_projects_created_total",
			Help: "作成されたプロジェクトの合計数",
		}),
		tasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kanban_tasks_created_total",
			Help: "作成されたタスクの合計数",
		}),
		tasksMoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kanban_tasks_moved_total",
			Help: "別カラムへ移動したタスクの合計数",
		}),
		dependencyUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kanban_dependency_up",
			Help: "依存サービスの疎通状態（1: 正常, 0: 異常）",
		}, []string{"service"}),
		backupVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kanban_backup_verifications_total",
			Help: "バックアップ検証の結果別実行数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.projectsCreated,
		c.tasksCreated,
		c.tasksMoved,
		c.dependencyUp,
		c.backupVerified,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの件数と処理時間を記録する。
func (c *Collector) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpDuration.Observe(duration.Seconds())
}

// RecordProjectCreated はプロジェクト作成を記録する。
func (c *Collector) RecordProjectCreated() {
	c.projectsCreated.Inc()
}

// RecordTaskCreated はタスク作成を記録する。
func (c *Collector) RecordTaskCreated() {
	c.tasksCreated.Inc()
}

// RecordTaskMoved はタスクのカラム移動を記録する。
func (c *Collector) RecordTaskMoved() {
	c.tasksMoved.Inc()
}

// SetDependencyUp は依存サービスの疎通状態を記録する。
func (c *Collector) SetDependencyUp(service string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	c.dependencyUp.WithLabelValues(service).Set(v)
}

// RecordBackupVerification はバックアップ検証の結果を記録する。
func (c *Collector) RecordBackupVerification(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.backupVerified.WithLabelValues(result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないRecorder。メトリクスを使わない構成やテストで使う。
type Nop struct{}

func (Nop) RecordHTTPRequest(string, int, time.Duration) {}
func (Nop) RecordProjectCreated()                        {}
func (Nop) RecordTaskCreated()                           {}
func (Nop) RecordTaskMoved()                             {}
func (Nop) SetDependencyUp(string, bool)                 {}
func (Nop) RecordBackupVerification(bool)                {}

// compile-time interface checks
var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
