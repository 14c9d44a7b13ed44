// Package event はWebSocket上でやり取りするイベントの型と封筒（Envelope）を定義する。
package event

import "encoding/json"

// Type はイベントの種類を表す。
type Type string

const (
	// TypeSendGlobalNotification は全体配信の要求（クライアント→サーバー）。
	TypeSendGlobalNotification Type = "sendGlobalNotification"
	// TypeSendRoleNotification はロール配信の要求（クライアント→サーバー）。
	TypeSendRoleNotification Type = "sendRoleNotification"
	// TypeSendUserNotification は個人宛て送信の要求（クライアント→サーバー）。
	TypeSendUserNotification Type = "sendUserNotification"

	// TypeReceiveNotification は保存済み通知の配信（サーバー→クライアント）。
	TypeReceiveNotification Type = "receiveNotification"
	// TypeNotificationSuccess は配信要求の成功応答。要求した接続にのみ送る。
	TypeNotificationSuccess Type = "notificationSuccess"
	// TypeNotificationError は配信要求の失敗応答。要求した接続にのみ送る。
	TypeNotificationError Type = "notificationError"
)

// Envelope はWebSocketフレーム1件の構造。
type Envelope struct {
	// Type はイベントの種類。
	Type Type `json:"type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data,omitempty"`
}

// SendGlobalData は全体配信の要求データ。
type SendGlobalData struct {
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Message は通知メッセージ。
	Message string `json:"message"`
}

// SendRoleData はロール配信の要求データ。
type SendRoleData struct {
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Message は通知メッセージ。
	Message string `json:"message"`
	// Role は配信対象のロール。
	Role string `json:"role"`
}

// SendUserData は個人宛て送信の要求データ。
type SendUserData struct {
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Message は通知メッセージ。
	Message string `json:"message"`
	// UserIdentifier は宛先のID・メールアドレス・表示名のいずれか。
	UserIdentifier string `json:"userIdentifier"`
}

// SuccessData は成功応答のデータ。
type SuccessData struct {
	// Message は利用者向けのメッセージ。
	Message string `json:"message"`
	// NotificationID は作成された通知のID。
	NotificationID string `json:"notificationId"`
	// Recipient は個人宛て送信の宛先の表示名。
	Recipient string `json:"recipient,omitempty"`
}

// ErrorData は失敗応答のデータ。
type ErrorData struct {
	// Code は安定したエラーコード。
	Code string `json:"code"`
	// Message は利用者向けのメッセージ。
	Message string `json:"message"`
	// Identifier は宛先解決に失敗した識別子。
	Identifier string `json:"identifier,omitempty"`
}
