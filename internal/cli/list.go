package cli

import (
	"fmt"
	"time"

	"github.com/nao1215/notifyhub/internal/notification"
	"github.com/spf13/cobra"
)

// ListOptions は list コマンドのフラグ。
type ListOptions struct {
	*RootOptions
	Unread bool
}

// NewListCommand は自分宛ての通知一覧を表示する list コマンドを生成する。
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "自分が対象の通知を新しい順に表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listNotifications(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Unread, "unread", false, "未読の通知だけを表示する")

	return cmd
}

func listNotifications(cmd *cobra.Command, opts *ListOptions) error {
	path := "/api/v1/notifications"
	if opts.Unread {
		path += "/unread"
	}

	var items []notification.Notification
	if err := opts.client().GetJSON(cmd.Context(), path, &items); err != nil {
		return fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}
	if opts.Format == "json" {
		return printJSON(cmd.OutOrStdout(), items)
	}

	var me struct {
		ID string `json:"id"`
	}
	if err := opts.client().GetJSON(cmd.Context(), "/api/v1/me", &me); err != nil {
		return fmt.Errorf("プリンシパルの取得に失敗: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(out, "通知はありません")
		return nil
	}
	for _, n := range items {
		mark := " "
		if !n.IsReadBy(me.ID) {
			mark = "*"
		}
		fmt.Fprintf(out, "%s %s [%s] %s: %s (%s)\n",
			mark, n.CreatedAt.Local().Format(time.DateTime), n.Audience.Kind, n.Title, n.Message, n.ID)
	}
	return nil
}
