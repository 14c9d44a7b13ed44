// Package config は環境変数から通知サービスの設定を読み込む。
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config は通知サービスの実行時設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `env:"PORT" env-default:"8086"`
	// DatabasePath はSQLiteデータベースファイルのパス。
	DatabasePath string `env:"DATABASE_PATH" env-default:"/data/notification.db"`
	// JWTSecret はベアラートークン検証用の秘密鍵（HS256）。
	JWTSecret string `env:"JWT_SECRET" env-default:"dev-secret-key"`
	// FrontendURL はCORSで許可するオリジン。
	FrontendURL string `env:"FRONTEND_URL" env-default:"http://localhost:3000"`
	// RedisAddr が設定されている場合、チャネル配信をRedis pub/sub経由でプロセス間に中継する。
	RedisAddr string `env:"REDIS_ADDR"`
	// RedisChannel は中継に使うRedisのpub/subチャネル名。
	RedisChannel string `env:"REDIS_CHANNEL" env-default:"notification:fanout"`
	// LogLevel はログ出力レベル（debug, info, warn, error）。
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
	// SendBuffer はWebSocket接続ごとの送信キューの長さ。
	SendBuffer int `env:"WS_SEND_BUFFER" env-default:"64"`
	// WriteTimeout はWebSocketフレーム1件あたりの書き込みタイムアウト。
	WriteTimeout time.Duration `env:"WS_WRITE_TIMEOUT" env-default:"10s"`
}

// Load は環境変数から設定を読み込む。
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	if cfg.SendBuffer <= 0 {
		return nil, fmt.Errorf("WS_SEND_BUFFERは1以上である必要があります: %d", cfg.SendBuffer)
	}
	if err := validateOrigin(cfg.FrontendURL); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validateOrigin はFRONTEND_URLが "*" か http(s) の絶対URLであることを確認する。
func validateOrigin(origin string) error {
	if origin == "*" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("FRONTEND_URLはhttp(s)のURLまたは*である必要があります: %q", origin)
	}
	return nil
}
