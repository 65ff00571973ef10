// Command coursecrm は講座管理APIサーバーとイベント購読ワーカーを起動する。
//
// サブコマンド: serve（デフォルト）、worker、migrate、healthcheck
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/coursecrm/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
