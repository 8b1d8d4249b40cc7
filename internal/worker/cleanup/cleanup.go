// Package cleanup はバックアップ検証が残した一時プロジェクトの自動削除ジョブを提供する。
// 検証が途中で異常終了すると "Backup Test {UUID}" という名前のプロジェクトが残るため、
// 一定時間（デフォルト1時間）を超えたものを定期的に削除する。
// ユーザーが同じ接頭辞の名前を付けたプロジェクトを消さないよう、名前の形式と色の両方で絞り込む。
// カラム・タスクはCASCADE削除で自動的に処理される。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultMaxAge は一時プロジェクトを残しておく時間のデフォルト値。
const DefaultMaxAge = time.Hour

// StaleProjectDeleter は一時プロジェクトを作成日時で削除するインターフェース。
// repository.ProjectRepositoryが満たす。
type StaleProjectDeleter interface {
	DeleteStaleTestProjects(ctx context.Context, prefix, color string, olderThan time.Time) (int64, error)
}

// CleanupJob は残存した一時プロジェクトの削除ジョブ。
// 削除対象がない場合もエラーにならず、何度実行しても結果は同じになる。
type CleanupJob struct {
	projects StaleProjectDeleter
	logger   *slog.Logger
	prefix   string
	color    string
	MaxAge   time.Duration // 一時プロジェクトを残しておく時間
	now      func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
// 名前が "{prefix}{UUID}" で色がcolorのプロジェクトが対象になる。
func NewCleanupJob(projects StaleProjectDeleter, prefix, color string, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		projects: projects,
		logger:   logger,
		prefix:   prefix,
		color:    color,
		MaxAge:   DefaultMaxAge,
		now:      time.Now,
	}
}

// Run はMaxAgeより前に作成された一時プロジェクトを削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	olderThan := j.now().Add(-j.MaxAge)

	deletedCount, err := j.projects.DeleteStaleTestProjects(ctx, j.prefix, j.color, olderThan)
	if err != nil {
		j.logger.Error("一時プロジェクトの削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Duration("max_age", j.MaxAge),
		)
		return fmt.Errorf("一時プロジェクトの削除に失敗: %w", err)
	}

	j.logger.Info("一時プロジェクトのクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Duration("max_age", j.MaxAge),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Schedule はcron式に従ってRunを定期実行する。起動直後にも1回実行する。
// ctxがキャンセルされるまでブロックし、実行中のジョブの完了を待ってから戻る。
func (j *CleanupJob) Schedule(ctx context.Context, spec string) error {
	c := cron.New(cron.WithLocation(time.Local))
	if _, err := c.AddFunc(spec, func() {
		// エラーはRun内でログ出力済み
		_ = j.Run(ctx)
	}); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}

	_ = j.Run(ctx)

	c.Start()
	j.logger.Info("cleanup job scheduled", slog.String("schedule", spec))

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
