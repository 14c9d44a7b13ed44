// Package hub はリアルタイム配信のチャネル構成（Topology Manager）を提供する。
//
// 接続は認証済みプリンシパルから決まる2つのチャネル、個人チャネル
// （principal:{id}）とロールチャネル（role:{role}）に参加する。
// 参加状態は永続化せず、再接続のたびに作り直す。
// 全体配信は Everyone を指定した Publish で全接続に届ける。
package hub
