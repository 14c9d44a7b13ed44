// Package storage は通知サービスが使うSQLiteデータベースを開き、スキーマを適用する。
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/nao1215/notifyhub/pkg/migration"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

// Memory はインメモリデータベースを表すパス。
const Memory = ":memory:"

// DSN はファイルパスからmodernc.org/sqlite用の接続文字列を組み立てる。
func DSN(path string) string {
	if path == Memory {
		return "file::memory:?_pragma=foreign_keys(1)"
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

// Open はデータベースを開き、未適用のマイグレーションを適用する。
// インメモリの場合は接続ごとに別のデータベースになるため、接続数を1に制限する。
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if path == Memory {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベースへの疎通確認に失敗: %w", err)
	}
	if err := migration.Run(ctx, db, migrations, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return db, nil
}
