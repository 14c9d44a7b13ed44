// 通知サービスのエントリポイント。
// 管理者が作成した通知を保存し、WebSocketで接続中のクライアントへ配信する。
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/notifyhub/internal/config"
	"github.com/nao1215/notifyhub/internal/notification"
	"github.com/nao1215/notifyhub/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("設定の読み込みに失敗しました", "error", err)
		os.Exit(1)
	}
	logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := notification.NewServer(ctx, cfg)
	if err != nil {
		slog.Error("通知サーバーの初期化に失敗しました", "error", err)
		os.Exit(1)
	}
	defer server.Close()

	if err := server.Run(ctx); err != nil {
		slog.Error("通知サービスが異常終了しました", "error", err)
		os.Exit(1)
	}
	slog.Info("通知サービスを停止しました")
}
