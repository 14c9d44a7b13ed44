package hub

import "github.com/nao1215/notifyhub/internal/principal"

// Everyone は全接続への配信を表す論理チャネル名。
const Everyone = "*"

// PrivateChannel はプリンシパル個人のチャネル名を返す。
func PrivateChannel(id string) string {
	return "principal:" + id
}

// RoleChannel はロールのチャネル名を返す。
func RoleChannel(r principal.Role) string {
	return "role:" + string(r)
}

// ChannelsFor はプリンシパルが参加するチャネルを返す。
// クライアントが参加先を選ぶことはできない。
func ChannelsFor(p principal.Principal) []string {
	return []string{PrivateChannel(p.ID), RoleChannel(p.Role)}
}
