// File: internal/model/key.go
package model

import (
	"fmt"
	"time"
)

// Key 實體鑰匙，以 Name 為自然鍵
type Key struct {
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// KeyStatus 是 keys.status 欄位的封閉列舉，只在儲存層邊界出現
type KeyStatus string

const (
	KeyStatusActive   KeyStatus = "active"
	KeyStatusInactive KeyStatus = "inactive"
)

// ParseKeyStatus 解析資料庫中的狀態文字；未知值不會被默默當成預設值
func ParseKeyStatus(s string) (KeyStatus, error) {
	switch KeyStatus(s) {
	case KeyStatusActive, KeyStatusInactive:
		return KeyStatus(s), nil
	}
	return "", fmt.Errorf("unknown key status %q", s)
}

// StatusOf 由 active 旗標得到儲存用的狀態
func StatusOf(active bool) KeyStatus {
	if active {
		return KeyStatusActive
	}
	return KeyStatusInactive
}

func (s KeyStatus) Active() bool { return s == KeyStatusActive }

// KeyPatch 部分更新鑰匙；nil 欄位維持原值
type KeyPatch struct {
	Name        *string
	Description *string
	Active      *bool
}
