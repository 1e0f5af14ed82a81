// File: internal/model/assignment.go
package model

import (
	"time"

	"key-custody/internal/apperr"
)

// Assignment 一筆保管紀錄；DateIn 為 nil 表示鑰匙尚未歸還（open）
type Assignment struct {
	ID       int64      `db:"id" json:"id"`
	UserID   int64      `db:"user_ref" json:"user_id"`
	Username string     `db:"username" json:"username"`
	KeyName  string     `db:"key_ref" json:"key"`
	DateOut  time.Time  `db:"date_out" json:"date_out"`
	DateIn   *time.Time `db:"date_in" json:"date_in"`
}

// Open 尚未歸還
func (a Assignment) Open() bool { return a.DateIn == nil }

// DateInPatch 是 date_in 的三態更新：不變、設定為某日、清除（重新開啟）
type DateInPatch struct {
	set   bool
	value *time.Time
}

// KeepDateIn 不修改 date_in
func KeepDateIn() DateInPatch { return DateInPatch{} }

// ClearDateInPatch 清除 date_in
func ClearDateInPatch() DateInPatch { return DateInPatch{set: true} }

// SetDateIn 設定 date_in；傳入 ClearDateIn 哨兵日期等同清除
func SetDateIn(d time.Time) DateInPatch {
	if IsClearDateIn(d) {
		return ClearDateInPatch()
	}
	d = DateOf(d)
	return DateInPatch{set: true, value: &d}
}

// Resolve 回傳是否要寫入 date_in，以及寫入的值（nil 代表清除）
func (p DateInPatch) Resolve() (bool, *time.Time) {
	return p.set, p.value
}

// AssignmentPatch 管理員直接修改保管紀錄，不經過借出／歸還狀態機
type AssignmentPatch struct {
	Username *string
	KeyName  *string
	DateOut  *time.Time
	DateIn   DateInPatch
}

// AssignmentSort 列表排序方式
type AssignmentSort string

const (
	SortNone   AssignmentSort = "none"
	SortByUser AssignmentSort = "user"
	SortByKey  AssignmentSort = "key"
)

// ParseAssignmentSort 空字串視為 none，其餘未知值為 validation error
func ParseAssignmentSort(s string) (AssignmentSort, error) {
	switch s {
	case "", string(SortNone):
		return SortNone, nil
	case string(SortByUser), "byUser", "by_user":
		return SortByUser, nil
	case string(SortByKey), "byKey", "by_key":
		return SortByKey, nil
	}
	return "", apperr.New(apperr.KindValidation, "unknown sort option %q", s)
}

// ListOptions 列表選項
type ListOptions struct {
	Sort     AssignmentSort
	OpenOnly bool
}
