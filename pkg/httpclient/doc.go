// Package httpclient は通知サービスのHTTP APIを呼び出すクライアントを提供する。
//
// 管理用CLIが通知の配信や一覧取得に使用する。認証はベアラートークンで行い、
// サービスが返したエラーは APIError として受け取れる。
package httpclient
