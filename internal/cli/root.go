// Package cli は通知サービスの管理用CLI（notifyctl）を提供する。
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/nao1215/notifyhub/pkg/httpclient"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RootOptions は全コマンド共通のフラグ。
type RootOptions struct {
	// URL は通知サービスのベースURL。
	URL string
	// Token はAPI呼び出しに使うベアラートークン。
	Token string
	// Format は出力形式（text または json）。
	Format string
}

// ValidFormats は指定できる出力形式。
var ValidFormats = []string{"text", "json"}

// NewRootCommand は notifyctl のルートコマンドを生成する。
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "notifyctl",
		Short:         "notifyhub の管理用CLI",
		Long:          "通知の配信、一覧取得、既読化と、開発用のプリンシパル登録・トークン発行を行う。",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.URL, "url", envOr("NOTIFYHUB_URL", "http://localhost:8086"), "通知サービスのベースURL")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("NOTIFYHUB_TOKEN"), "ベアラートークン")
	cmd.PersistentFlags().Var(newChoiceValue(&opts.Format, "text", ValidFormats...), "format", "出力形式 (text|json)")

	cmd.AddCommand(NewSendCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewReadCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewPrincipalCommand(opts))

	return cmd
}

// choiceValue は決められた値のいずれかだけを受け付けるフラグ値。
// 不正な値はフラグの解析時にエラーとなる。
type choiceValue struct {
	value   *string
	choices []string
}

var _ pflag.Value = (*choiceValue)(nil)

func newChoiceValue(p *string, def string, choices ...string) *choiceValue {
	*p = def
	return &choiceValue{value: p, choices: choices}
}

func (v *choiceValue) String() string {
	if v.value == nil {
		return ""
	}
	return *v.value
}

func (v *choiceValue) Set(s string) error {
	if !slices.Contains(v.choices, s) {
		return fmt.Errorf("%q は指定できません: %v のいずれかを指定してください", s, v.choices)
	}
	*v.value = s
	return nil
}

func (v *choiceValue) Type() string {
	return "string"
}

// client はフラグの設定でAPIクライアントを生成する。
func (o *RootOptions) client() *httpclient.Client {
	return httpclient.New(o.URL, httpclient.WithToken(o.Token))
}

// printJSON は値を整形したJSONで出力する。
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
