// Package middleware は通知サービスが使うHTTP共通処理を提供する。
//
// ベアラートークンの検証（Credential Verifier）、開発用トークンの生成、
// パニックからの回復、CORSを扱う。
package middleware
