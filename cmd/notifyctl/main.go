// notifyctl は通知サービスの管理用CLI。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/nao1215/notifyhub/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "エラー:", err)
		stop()
		os.Exit(1)
	}
}
