// Package health は依存サービス（PostgreSQL、Redis、IdP）の疎通確認を提供する。
package health

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/imroc/req/v3"

	"github.com/hitoshi/kanban/internal/metrics"
)

// 状態
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// サービス名。レスポンスのservicesのキーとメトリクスのラベルに使う。
const (
	ServicePostgreSQL = "postgresql"
	ServiceRedis      = "redis"
	ServiceAuthentik  = "authentik"
)

// DBPinger はデータベースの疎通確認のインターフェース。*sql.DBが満たす。
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// CachePinger はキャッシュの疎通確認のインターフェース。
type CachePinger interface {
	Ping(ctx context.Context) error
}

// ServiceStatus は1サービスの確認結果。
type ServiceStatus struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"responseTime"`
	Error        string `json:"error,omitempty"`
}

// Report はヘルスチェック全体の結果。
type Report struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Services  map[string]ServiceStatus `json:"services"`
}

// Healthy は全サービスが正常かどうかを返す。
func (r *Report) Healthy() bool {
	return r.Status == StatusHealthy
}

// Checker は依存サービスを並行に確認する。
type Checker struct {
	db        DBPinger
	cache     CachePinger
	client    *req.Client
	issuerURL string
	timeout   time.Duration
	metrics   metrics.Recorder
	now       func() time.Time
}

// NewChecker はCheckerを生成する。timeoutは各プローブの待ち時間の上限。
func NewChecker(db DBPinger, cache CachePinger, issuerURL string, timeout time.Duration, recorder metrics.Recorder) *Checker {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Checker{
		db:        db,
		cache:     cache,
		client:    req.C().SetTimeout(timeout).SetUserAgent("kanban-healthcheck/1.0"),
		issuerURL: strings.TrimRight(issuerURL, "/"),
		timeout:   timeout,
		metrics:   recorder,
		now:       time.Now,
	}
}

// Check は全依存サービスを確認する。いずれかが失敗した場合、全体はunhealthyになる。
func (c *Checker) Check(ctx context.Context) *Report {
	probes := map[string]func(context.Context) error{
		ServicePostgreSQL: c.pingDatabase,
		ServiceRedis:      c.pingCache,
		ServiceAuthentik:  c.pingIdentityProvider,
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		services = make(map[string]ServiceStatus, len(probes))
	)
	for name, probe := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := c.run(ctx, probe)
			mu.Lock()
			services[name] = status
			mu.Unlock()
		}()
	}
	wg.Wait()

	overall := StatusHealthy
	for name, s := range services {
		up := s.Status == StatusHealthy
		c.metrics.SetDependencyUp(name, up)
		if !up {
			overall = StatusUnhealthy
		}
	}

	return &Report{
		Status:    overall,
		Timestamp: c.now().UTC().Format(time.RFC3339),
		Services:  services,
	}
}

func (c *Checker) run(ctx context.Context, probe func(context.Context) error) ServiceStatus {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := probe(ctx)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		return ServiceStatus{Status: StatusUnhealthy, ResponseTime: elapsed, Error: err.Error()}
	}
	return ServiceStatus{Status: StatusHealthy, ResponseTime: elapsed}
}

func (c *Checker) pingDatabase(ctx context.Context) error {
	if c.db == nil {
		return errors.New("database not configured")
	}
	return c.db.PingContext(ctx)
}

func (c *Checker) pingCache(ctx context.Context) error {
	if c.cache == nil {
		return errors.New("cache not configured")
	}
	return c.cache.Ping(ctx)
}

// pingIdentityProvider はIdPのルートにHEADリクエストを送る。5xxは異常とみなす。
func (c *Checker) pingIdentityProvider(ctx context.Context) error {
	resp, err := c.client.R().SetContext(ctx).Head(c.issuerURL + "/")
	if err != nil {
		return fmt.Errorf("identity provider unreachable: %w", err)
	}
	// リダイレクトは追跡済みのため、最終応答が2xxのときだけ正常とみなす
	if !resp.IsSuccessState() {
		return fmt.Errorf("identity provider returned status %d", resp.GetStatusCode())
	}
	return nil
}
