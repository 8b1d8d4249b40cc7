// Package model はドメインモデルを定義する。
package model

import "time"

// Priority はタスクの優先度を表す。
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid は優先度が定義済みの値かどうかを返す。
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Column はプロジェクト内のタスクの順序付きバケットを表す。
// Positionは表示順のためのソートキーで、連番・一意は保証しない。
type Column struct {
	ID        string
	ProjectID string
	Name      string
	Position  int
	CreatedAt time.Time
}

// Task はカラムに属する作業項目を表す。
// Positionはカラム内の並び順のソートキーで、連番・一意は保証しない。
type Task struct {
	ID          string
	ProjectID   string
	ColumnID    string
	Title       string
	Description *string
	Position    int
	AssigneeID  *string
	Priority    Priority
	DueDate     *time.Time
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// ColumnWithTasks はカラムと、その中のタスクを位置順に並べたもの。
type ColumnWithTasks struct {
	Column
	Tasks []Task
}
