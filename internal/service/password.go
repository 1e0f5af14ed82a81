// File: internal/service/password.go
package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"key-custody/internal/apperr"
	"key-custody/internal/worker"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt 只看前 72 bytes，超過的部分直接拒絕而不是默默截斷
const maxPasswordBytes = 72

var (
	bcryptGenerateFromPassword   = bcrypt.GenerateFromPassword
	bcryptCompareHashAndPassword = bcrypt.CompareHashAndPassword
	bcryptCost                   = bcrypt.Cost
	randRead                     = rand.Read
)

// PasswordHasher 以固定 cost 的 bcrypt 雜湊與比對密碼，所有 bcrypt 運算都在 worker pool 上執行
type PasswordHasher struct {
	cost  int
	pool  worker.Pool
	decoy []byte
}

// NewPasswordHasher 建立 hasher，並以隨機秘密產生同 cost 的誘餌雜湊
func NewPasswordHasher(cost int, pool worker.Pool) (*PasswordHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	secret := make([]byte, 32)
	if _, err := randRead(secret); err != nil {
		return nil, fmt.Errorf("generate decoy secret: %w", err)
	}
	decoy, err := bcryptGenerateFromPassword([]byte(base64.RawURLEncoding.EncodeToString(secret)), cost)
	if err != nil {
		return nil, fmt.Errorf("generate decoy digest: %w", err)
	}
	return &PasswordHasher{cost: cost, pool: pool, decoy: decoy}, nil
}

// Cost 回傳設定的 bcrypt cost
func (h *PasswordHasher) Cost() int { return h.cost }

// Hash 每次都重新產生 salt
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", apperr.New(apperr.KindValidation, "password must not be empty")
	}
	if len(plaintext) > maxPasswordBytes {
		return "", apperr.New(apperr.KindValidation, "password must be at most %d bytes", maxPasswordBytes)
	}
	var (
		digest []byte
		err    error
	)
	h.pool.Do(func() {
		digest, err = bcryptGenerateFromPassword([]byte(plaintext), h.cost)
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindInfrastructure, err, "hash password")
	}
	return string(digest), nil
}

// Verify 比對密碼。digest 為空或無法解析時改與誘餌雜湊比對並回傳 false，
// 不會提早返回
func (h *PasswordHasher) Verify(digest, plaintext string) bool {
	target := []byte(digest)
	usable := true
	if _, err := bcryptCost(target); err != nil {
		target = h.decoy
		usable = false
	}
	var err error
	h.pool.Do(func() {
		err = bcryptCompareHashAndPassword(target, []byte(plaintext))
	})
	return usable && err == nil
}

// NeedsRehash 可解析但 cost 與設定不同的雜湊，應在下次成功登入時重新雜湊
func (h *PasswordHasher) NeedsRehash(digest string) bool {
	cost, err := bcryptCost([]byte(digest))
	return err == nil && cost != h.cost
}

// VerifyDecoy 只做一次誘餌比對，用於找不到使用者的路徑
func (h *PasswordHasher) VerifyDecoy(plaintext string) {
	h.Verify("", plaintext)
}
