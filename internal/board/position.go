// Package board はカラムとタスクの並び順の管理と、ボード操作のビジネスロジックを提供する。
package board

import (
	"cmp"
	"slices"

	"github.com/samber/lo"

	"github.com/hitoshi/kanban/internal/model"
)

// NextTaskPosition はカラム末尾に追加するタスクのpositionを返す。
// maxPosはカラム内の最大position（タスクがない場合は0）。
func NextTaskPosition(maxPos int) int {
	return maxPos + 1
}

// ColumnPosition は新しいカラムのpositionを返す。指定がない場合は0。
func ColumnPosition(requested *int) int {
	if requested == nil {
		return 0
	}
	return *requested
}

// SortColumns はカラムをposition昇順に並べる。同じpositionは作成日時順。
func SortColumns(columns []model.Column) {
	slices.SortStableFunc(columns, func(a, b model.Column) int {
		return cmp.Or(
			cmp.Compare(a.Position, b.Position),
			a.CreatedAt.Compare(b.CreatedAt),
		)
	})
}

// SortTasks はタスクをposition昇順に並べる。同じpositionは作成日時順。
func SortTasks(tasks []model.Task) {
	slices.SortStableFunc(tasks, func(a, b model.Task) int {
		return cmp.Or(
			cmp.Compare(a.Position, b.Position),
			a.CreatedAt.Compare(b.CreatedAt),
		)
	})
}

// GroupTasksByColumn はタスクをカラムごとにまとめたボードを返す。
// カラムとタスクはどちらも並び順にソートされる。どのカラムにも属さないタスクは含めない。
func GroupTasksByColumn(columns []model.Column, tasks []model.Task) []model.ColumnWithTasks {
	sorted := slices.Clone(columns)
	SortColumns(sorted)

	byColumn := lo.GroupBy(tasks, func(t model.Task) string {
		return t.ColumnID
	})

	return lo.Map(sorted, func(c model.Column, _ int) model.ColumnWithTasks {
		columnTasks := byColumn[c.ID]
		if columnTasks == nil {
			columnTasks = []model.Task{}
		}
		SortTasks(columnTasks)
		return model.ColumnWithTasks{Column: c, Tasks: columnTasks}
	})
}

// MoveTask はタスクの所属カラムだけを書き換える。positionは変更しない。
// 移動先が現在のカラムと同じ場合は何もせずfalseを返す。
func MoveTask(task *model.Task, targetColumnID string) bool {
	if targetColumnID == "" || task.ColumnID == targetColumnID {
		return false
	}
	task.ColumnID = targetColumnID
	return true
}
