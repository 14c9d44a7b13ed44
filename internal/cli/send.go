package cli

import (
	"fmt"

	"github.com/nao1215/notifyhub/internal/notification"
	"github.com/spf13/cobra"
)

// SendOptions は send コマンドのフラグ。
type SendOptions struct {
	*RootOptions
	Title   string
	Message string
	Role    string
	To      string
}

// sendResponse は配信APIのレスポンス。
type sendResponse struct {
	Message      string                    `json:"message"`
	Recipient    string                    `json:"recipient,omitempty"`
	Notification notification.Notification `json:"notification"`
}

// NewSendCommand は管理者として通知を配信する send コマンドを生成する。
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "通知を配信する（管理者のみ）",
	}
	cmd.PersistentFlags().StringVar(&opts.Title, "title", "", "通知のタイトル")
	cmd.PersistentFlags().StringVar(&opts.Message, "message", "", "通知メッセージ")

	global := &cobra.Command{
		Use:   "global",
		Short: "全員に配信する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.send(cmd, "/api/v1/notifications/global", nil)
		},
	}

	role := &cobra.Command{
		Use:   "role",
		Short: "指定したロールの全員に配信する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.send(cmd, "/api/v1/notifications/role", map[string]string{"role": opts.Role})
		},
	}
	role.Flags().StringVar(&opts.Role, "role", "", "配信対象のロール (user|admin)")

	direct := &cobra.Command{
		Use:   "direct",
		Short: "ID・メールアドレス・表示名で指定した1人に送信する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.send(cmd, "/api/v1/notifications/direct", map[string]string{"userIdentifier": opts.To})
		},
	}
	direct.Flags().StringVar(&opts.To, "to", "", "宛先のID・メールアドレス・表示名")

	cmd.AddCommand(global, role, direct)
	return cmd
}

func (o *SendOptions) send(cmd *cobra.Command, path string, extra map[string]string) error {
	body := map[string]string{"title": o.Title, "message": o.Message}
	for k, v := range extra {
		body[k] = v
	}

	var resp sendResponse
	if err := o.client().PostJSON(cmd.Context(), path, body, &resp); err != nil {
		return fmt.Errorf("配信に失敗: %w", err)
	}

	if o.Format == "json" {
		return printJSON(cmd.OutOrStdout(), resp)
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
	fmt.Fprintf(cmd.OutOrStdout(), "  ID: %s\n", resp.Notification.ID)
	return nil
}
