// File: internal/model/user.go
package model

import "time"

// User 系統使用者
//
// PasswordDigest 為 nil 時無論 CanLogin 為何都無法登入。
type User struct {
	ID             int64     `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	DisplayName    *string   `db:"display_name" json:"display_name,omitempty"`
	Email          *string   `db:"email" json:"email,omitempty"`
	PasswordDigest *string   `db:"password_digest" json:"-"`
	CanLogin       bool      `db:"can_login" json:"can_login"`
	Admin          bool      `db:"admin" json:"admin"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// IsActiveAdmin 計入管理員不變量的使用者：admin 且可登入
func (u User) IsActiveAdmin() bool {
	return u.Admin && u.CanLogin
}

// HasPassword 是否已設定密碼
func (u User) HasPassword() bool {
	return u.PasswordDigest != nil && *u.PasswordDigest != ""
}
