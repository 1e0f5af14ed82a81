// File: internal/model/date.go
package model

import (
	"strings"
	"time"

	"key-custody/internal/apperr"
)

// DateLayout 日期在 API 與資料庫之間的格式
const DateLayout = "2006-01-02"

// ClearDateIn 是 date_in 的「清除」哨兵日期 0001-01-01。
// 在保管紀錄的修改請求中，date_in 等於這一天會被解讀為清除 date_in（重新開啟紀錄），
// 而不是字面上的日期；0001-01-02 起都是一般日期。
var ClearDateIn = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// IsClearDateIn 是否為清除哨兵（只比較年月日）
func IsClearDateIn(t time.Time) bool {
	y, m, d := t.Date()
	return y == 1 && m == time.January && d == 1
}

// DateOf 截去時間部分，統一為 UTC 午夜
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date 建立 UTC 日期
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate 解析 YYYY-MM-DD
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, apperr.New(apperr.KindValidation, "invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate 以 YYYY-MM-DD 輸出；nil 回傳 nil
func FormatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}
