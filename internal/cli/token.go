package cli

import (
	"fmt"
	"time"

	"github.com/nao1215/notifyhub/pkg/middleware"
	"github.com/spf13/cobra"
)

// TokenOptions は token コマンドのフラグ。
type TokenOptions struct {
	*RootOptions
	Secret string
	TTL    time.Duration
}

// NewTokenCommand は開発用のベアラートークンを発行する token コマンドを生成する。
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token <principal-id>",
		Short: "開発用のベアラートークンを発行する",
		Long: `プリンシパルIDを含むHS256トークンを発行する。

本番環境ではトークンは認証サービスが発行する。このコマンドは
ローカル開発と動作確認のためのもの。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := middleware.GenerateJWT(opts.Secret, args[0], opts.TTL)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{"token": token})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Secret, "secret", envOr("JWT_SECRET", "dev-secret-key"), "署名鍵")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 24*time.Hour, "有効期間")

	return cmd
}
