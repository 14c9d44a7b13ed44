package config

import (
	"os"
	"testing"
	"time"
)

// t.Setenv を使うため、このファイルのテストは並列実行しない。

func TestLoad(t *testing.T) {
	t.Run("未設定の場合はデフォルト値を使う", func(t *testing.T) {
		unsetenv(t, "PORT", "FRONTEND_URL", "REDIS_ADDR", "WS_SEND_BUFFER", "WS_WRITE_TIMEOUT")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if cfg.Port != "8086" {
			t.Errorf("Port = %q, want %q", cfg.Port, "8086")
		}
		if cfg.FrontendURL != "http://localhost:3000" {
			t.Errorf("FrontendURL = %q, want %q", cfg.FrontendURL, "http://localhost:3000")
		}
		if cfg.RedisAddr != "" {
			t.Errorf("RedisAddr = %q, want empty", cfg.RedisAddr)
		}
		if cfg.SendBuffer != 64 {
			t.Errorf("SendBuffer = %d, want 64", cfg.SendBuffer)
		}
		if cfg.WriteTimeout != 10*time.Second {
			t.Errorf("WriteTimeout = %v, want 10s", cfg.WriteTimeout)
		}
	})

	t.Run("環境変数の値を読み込む", func(t *testing.T) {
		t.Setenv("PORT", "9000")
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("REDIS_ADDR", "redis:6379")
		t.Setenv("WS_WRITE_TIMEOUT", "3s")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if cfg.Port != "9000" {
			t.Errorf("Port = %q, want %q", cfg.Port, "9000")
		}
		if cfg.JWTSecret != "s3cret" {
			t.Errorf("JWTSecret = %q, want %q", cfg.JWTSecret, "s3cret")
		}
		if cfg.RedisAddr != "redis:6379" {
			t.Errorf("RedisAddr = %q, want %q", cfg.RedisAddr, "redis:6379")
		}
		if cfg.WriteTimeout != 3*time.Second {
			t.Errorf("WriteTimeout = %v, want 3s", cfg.WriteTimeout)
		}
	})

	t.Run("送信キュー長が0以下ならエラー", func(t *testing.T) {
		t.Setenv("WS_SEND_BUFFER", "0")

		if _, err := Load(); err == nil {
			t.Fatal("エラーが返されるべき")
		}
	})
}

func TestLoad_FrontendURL(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"httpsのURL", "https://admin.example.com", false},
		{"ワイルドカード", "*", false},
		{"スキームなし", "localhost:3000", true},
		{"http以外のスキーム", "ftp://example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("FRONTEND_URL", tt.value)

			_, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// unsetenv はテスト終了時に元の値へ戻した上で環境変数を削除する。
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("環境変数の削除に失敗: %v", err)
		}
	}
}
