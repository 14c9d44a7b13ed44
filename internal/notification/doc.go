// Package notification は通知サービスの内部実装を提供する。
//
// 管理者は全体・ロール・個人の3種類の宛先に通知を配信できる。通知は必ず
// 保存してから接続中のクライアントへ配信するため、配信イベントを受け取った
// 直後に一覧を取得しても、その通知が欠けることはない。受信者は自分が対象の
// 通知一覧を取得し、既読にできる。既読化は冪等である。
package notification
