// Command kanban はカンバンボードのAPIサーバー、ワーカー、マイグレーションを提供する。
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/kanban/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("kanban exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
