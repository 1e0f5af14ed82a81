// Package store 放置 users / keys / assignments 的 SQL。
// 每個函式都接受 database.Querier，可直接使用連線池或交易中的 pgx.Tx；
// 錯誤一律經過 database.Classify 分類後再加上函式名稱。
package store

import (
	"fmt"

	"key-custody/internal/database"
)

// Lock 附加在 SELECT 後的列鎖
type Lock string

const (
	NoLock    Lock = ""
	ForShare  Lock = " FOR SHARE"
	ForUpdate Lock = " FOR UPDATE"
)

func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, database.Classify(err))
}
