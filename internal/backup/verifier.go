// Package backup はWALアーカイブ（WAL-G）によるバックアップの動作確認を提供する。
//
// 検証は一時的なプロジェクト・カラム・タスクを書き込み、WALセグメントを切り替えて
// レプリカのWAL受信状態を読み取ったあと、一時データを削除する。
// 一時プロジェクトの名前は "Backup Test {testDataId}" で、削除に失敗した残骸は
// worker/cleanupのジョブが名前の形式と色で見分けて定期的に掃除する。
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/kanban/internal/metrics"
	"github.com/hitoshi/kanban/internal/model"
	"github.com/hitoshi/kanban/internal/repository"
)

// TestProjectPrefix は検証用の一時プロジェクト名の接頭辞。
const TestProjectPrefix = "Backup Test "

// TestProjectColor は検証用の一時プロジェクトの色。
const TestProjectColor = "#FF0000"

// cleanupTimeout は失敗時の一時データ削除に与える時間。
const cleanupTimeout = 10 * time.Second

// Result は検証の結果。
type Result struct {
	Success     bool             `json:"success"`
	Message     string           `json:"message"`
	TestDataID  string           `json:"testDataId"`
	ProjectID   string           `json:"projectId"`
	Timestamp   string           `json:"timestamp"`
	WalReceiver []map[string]any `json:"walReceiver"`
}

// Verifier はバックアップ検証を実行する。
type Verifier struct {
	db       repository.DBTX
	projects repository.ProjectRepository
	columns  repository.ColumnRepository
	tasks    repository.TaskRepository
	walWait  time.Duration
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewVerifier はVerifierを生成する。dbはpg_switch_wal等のシステム関数の実行に使う。
func NewVerifier(
	db repository.DBTX,
	projects repository.ProjectRepository,
	columns repository.ColumnRepository,
	tasks repository.TaskRepository,
	walWait time.Duration,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *Verifier {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		db:       db,
		projects: projects,
		columns:  columns,
		tasks:    tasks,
		walWait:  walWait,
		metrics:  recorder,
		logger:   logger,
	}
}

// Verify は検証を1回実行する。userIDは一時データの作成者として記録される。
// 失敗した場合は一時データを名前で探して削除し、エラーを返す。
func (v *Verifier) Verify(ctx context.Context, userID string) (*Result, error) {
	testDataID := uuid.New().String()

	result, err := v.verify(ctx, userID, testDataID)
	if err != nil {
		v.logger.Error("backup verification failed",
			slog.String("test_data_id", testDataID),
			slog.String("error", err.Error()),
		)
		// 待機中の切断などでctxがキャンセルされていても後始末は行う
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if _, cleanupErr := v.projects.DeleteByNamePattern(cleanupCtx, "%"+testDataID+"%"); cleanupErr != nil {
			v.logger.Error("backup verification cleanup failed",
				slog.String("test_data_id", testDataID),
				slog.String("error", cleanupErr.Error()),
			)
		}
		v.metrics.RecordBackupVerification(false)
		return nil, err
	}

	v.metrics.RecordBackupVerification(true)
	v.logger.Info("backup verification completed",
		slog.String("test_data_id", testDataID),
		slog.Int("wal_receivers", len(result.WalReceiver)),
	)
	return result, nil
}

func (v *Verifier) verify(ctx context.Context, userID, testDataID string) (*Result, error) {
	now := time.Now()

	// 1. 一時データの書き込み
	description := "Temporary project for WAL-G backup verification"
	icon := "🧪"
	project := &model.Project{
		ID:          uuid.New().String(),
		Name:        TestProjectPrefix + testDataID,
		Description: &description,
		Color:       TestProjectColor,
		Icon:        &icon,
		Visibility:  model.VisibilityPrivate,
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := v.projects.Create(ctx, project); err != nil {
		return nil, err
	}

	column := &model.Column{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		Name:      "Backup Test Column",
		CreatedAt: now,
	}
	if err := v.columns.Create(ctx, column); err != nil {
		return nil, err
	}

	for i, priority := range []model.Priority{model.PriorityLow, model.PriorityMedium} {
		taskDescription := "Backup verification task"
		task := &model.Task{
			ID:          uuid.New().String(),
			ProjectID:   project.ID,
			ColumnID:    column.ID,
			Title:       fmt.Sprintf("Test Task %d - %s", i+1, testDataID),
			Description: &taskDescription,
			Position:    i,
			Priority:    priority,
			CreatedBy:   userID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := v.tasks.Create(ctx, task); err != nil {
			return nil, err
		}
	}

	// 2. WALセグメントの切り替え
	if _, err := v.db.ExecContext(ctx, `SELECT pg_switch_wal()`); err != nil {
		return nil, fmt.Errorf("failed to switch WAL: %w", err)
	}

	// 3. アーカイブを待ってからWAL受信状態を読む
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(v.walWait):
	}

	receivers, err := v.walReceiverStatus(ctx)
	if err != nil {
		return nil, err
	}

	// 4. 一時データの削除（カラム・タスクはCASCADE削除）
	if err := v.projects.Delete(ctx, project.ID); err != nil {
		return nil, err
	}

	return &Result{
		Success:     true,
		Message:     "WAL-G backup test completed successfully",
		TestDataID:  testDataID,
		ProjectID:   project.ID,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		WalReceiver: receivers,
	}, nil
}

// walReceiverStatus はpg_stat_wal_receiverの行を列名をキーにしたマップで返す。
// スタンドアロン構成では0行になる。
func (v *Verifier) walReceiverStatus(ctx context.Context) ([]map[string]any, error) {
	rows, err := v.db.QueryContext(ctx, `SELECT * FROM pg_stat_wal_receiver`)
	if err != nil {
		return nil, fmt.Errorf("failed to query WAL receiver status: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read WAL receiver columns: %w", err)
	}

	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan WAL receiver row: %w", err)
		}

		row := make(map[string]any, len(names))
		for i, name := range names {
			if b, ok := values[i].([]byte); ok {
				row[name] = string(b)
				continue
			}
			row[name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate WAL receiver rows: %w", err)
	}
	return out, nil
}
