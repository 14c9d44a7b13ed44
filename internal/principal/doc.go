// Package principal は認証済みアカウント（プリンシパル）の参照と宛先解決を提供する。
//
// プリンシパルの作成・削除は外部の認証サービスが担い、このパッケージは
// 読み取り専用のディレクトリとして振る舞う。Resolver は管理者が入力した
// ID・メールアドレス・表示名のいずれかから、宛先を一意に特定する。
package principal
