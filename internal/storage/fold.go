package storage

import (
	"database/sql/driver"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"modernc.org/sqlite"
)

// FoldFunc はSQLから呼び出せる大文字小文字の畳み込み関数の名前。
// SQLite組み込みの NOCASE と LIKE はASCIIしか畳み込まないため、これを使う。
const FoldFunc = "unicode_fold"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(FoldFunc, 1, foldSQL)
}

// Fold は文字列をNFCに正規化した上でUnicodeの大文字小文字を畳み込む。
func Fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

func foldSQL(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return Fold(v), nil
	case []byte:
		return Fold(string(v)), nil
	default:
		return nil, fmt.Errorf("%s: 文字列以外は畳み込めません: %T", FoldFunc, v)
	}
}
