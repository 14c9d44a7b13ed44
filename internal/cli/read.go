package cli

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// ReadOptions は read コマンドのフラグ。
type ReadOptions struct {
	*RootOptions
	All bool
}

// NewReadCommand は通知を既読にする read コマンドを生成する。
func NewReadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "read [notification-id]",
		Short: "通知を既読にする",
		Long: `通知を既読にする。既に既読の通知を指定してもエラーにはならない。

例:
  notifyctl read 3f2b...   # 1件を既読にする
  notifyctl read --all     # 自分が対象の通知を全て既読にする`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return markRead(cmd, opts, args)
		},
	}
	cmd.Flags().BoolVar(&opts.All, "all", false, "自分が対象の通知を全て既読にする")

	return cmd
}

func markRead(cmd *cobra.Command, opts *ReadOptions, args []string) error {
	if opts.All == (len(args) == 1) {
		return errors.New("通知IDか --all のどちらか一方を指定してください")
	}

	path := "/api/v1/notifications/read-all"
	if !opts.All {
		path = "/api/v1/notifications/" + url.PathEscape(args[0]) + "/read"
	}

	var resp struct {
		Message string `json:"message"`
		Count   *int64 `json:"count,omitempty"`
	}
	if err := opts.client().PutJSON(cmd.Context(), path, nil, &resp); err != nil {
		return fmt.Errorf("既読化に失敗: %w", err)
	}

	if opts.Format == "json" {
		return printJSON(cmd.OutOrStdout(), resp)
	}
	if resp.Count != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d件)\n", resp.Message, *resp.Count)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
	return nil
}
