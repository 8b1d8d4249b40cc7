package board

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/kanban/internal/model"
)

func TestNextTaskPosition(t *testing.T) {
	assert.Equal(t, 1, NextTaskPosition(0), "empty column starts at 1")
	assert.Equal(t, 4, NextTaskPosition(3))
	assert.Equal(t, 11, NextTaskPosition(10), "gaps are not filled")
}

func TestColumnPosition(t *testing.T) {
	assert.Equal(t, 0, ColumnPosition(nil))

	three := 3
	assert.Equal(t, 3, ColumnPosition(&three))
}

// 同じpositionのタスクは作成日時順に並ぶ
func TestSortTasks_TiesBrokenByCreatedAt(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tasks := []model.Task{
		{ID: "c", Position: 2, CreatedAt: base},
		{ID: "b", Position: 1, CreatedAt: base.Add(time.Minute)},
		{ID: "a", Position: 1, CreatedAt: base},
	}

	SortTasks(tasks)

	assert.Equal(t, []string{"a", "b", "c"}, taskIDs(tasks))
}

func TestGroupTasksByColumn(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	columns := []model.Column{
		{ID: "done", Position: 2, CreatedAt: base},
		{ID: "todo", Position: 0, CreatedAt: base},
		{ID: "doing", Position: 1, CreatedAt: base},
	}
	tasks := []model.Task{
		{ID: "t3", ColumnID: "todo", Position: 2, CreatedAt: base},
		{ID: "t1", ColumnID: "todo", Position: 1, CreatedAt: base},
		{ID: "t2", ColumnID: "done", Position: 1, CreatedAt: base},
		{ID: "orphan", ColumnID: "deleted", Position: 1, CreatedAt: base},
	}

	board := GroupTasksByColumn(columns, tasks)

	require.Len(t, board, 3)
	assert.Equal(t, "todo", board[0].ID)
	assert.Equal(t, []string{"t1", "t3"}, taskIDs(board[0].Tasks))
	assert.Equal(t, "doing", board[1].ID)
	assert.NotNil(t, board[1].Tasks, "empty column has an empty, non-nil task list")
	assert.Empty(t, board[1].Tasks)
	assert.Equal(t, []string{"t2"}, taskIDs(board[2].Tasks))
}

func TestGroupTasksByColumn_DoesNotReorderInput(t *testing.T) {
	columns := []model.Column{{ID: "b", Position: 2}, {ID: "a", Position: 1}}

	GroupTasksByColumn(columns, nil)

	assert.Equal(t, "b", columns[0].ID)
}

// カラム間の移動ではpositionを維持する
func TestMoveTask_KeepsPosition(t *testing.T) {
	task := &model.Task{ID: "t1", ColumnID: "todo", Position: 5}

	moved := MoveTask(task, "done")

	assert.True(t, moved)
	assert.Equal(t, "done", task.ColumnID)
	assert.Equal(t, 5, task.Position)
}

func TestMoveTask_SameColumnIsNoop(t *testing.T) {
	task := &model.Task{ID: "t1", ColumnID: "todo", Position: 5}

	assert.False(t, MoveTask(task, "todo"))
	assert.False(t, MoveTask(task, ""))
	assert.Equal(t, "todo", task.ColumnID)
}

func taskIDs(tasks []model.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}
