package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/nao1215/notifyhub/internal/principal"
	"github.com/nao1215/notifyhub/internal/storage"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

// PrincipalOptions は principal add コマンドのフラグ。
type PrincipalOptions struct {
	*RootOptions
	DatabasePath string
	ID           string
	Email        string
	Name         string
	Role         string
	Password     string
}

// NewPrincipalCommand はプリンシパルを管理する principal コマンドを生成する。
func NewPrincipalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PrincipalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "principal",
		Short: "プリンシパルを管理する（開発用）",
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "データベースにプリンシパルを直接登録する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return addPrincipal(cmd, opts)
		},
	}
	add.Flags().StringVar(&opts.DatabasePath, "db", envOr("DATABASE_PATH", "/data/notification.db"), "SQLiteデータベースファイル")
	add.Flags().StringVar(&opts.ID, "id", "", "プリンシパルID（省略時は自動生成）")
	add.Flags().StringVar(&opts.Email, "email", "", "メールアドレス")
	add.Flags().StringVar(&opts.Name, "name", "", "表示名")
	add.Flags().Var(newChoiceValue(&opts.Role, string(principal.RoleUser), string(principal.RoleUser), string(principal.RoleAdmin)), "role", "ロール (user|admin)")
	add.Flags().StringVar(&opts.Password, "password", "", "パスワード")
	for _, name := range []string{"email", "name", "password"} {
		_ = add.MarkFlagRequired(name)
	}

	cmd.AddCommand(add)
	return cmd
}

func addPrincipal(cmd *cobra.Command, opts *PrincipalOptions) error {
	role, err := principal.ParseRole(opts.Role)
	if err != nil {
		return err
	}
	id := uuid.New()
	if opts.ID != "" {
		if id, err = uuid.Parse(opts.ID); err != nil {
			return fmt.Errorf("--id はUUIDで指定してください: %q", opts.ID)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}

	db, err := storage.Open(cmd.Context(), opts.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := principal.NewStore(db).Create(cmd.Context(), principal.Principal{
		ID:    id.String(),
		Email: opts.Email,
		Name:  opts.Name,
		Role:  role,
	}, string(hash))
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return printJSON(cmd.OutOrStdout(), p)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "プリンシパルを登録しました: %s (%s, %s)\n", p.ID, p.Email, p.Role)
	return nil
}
