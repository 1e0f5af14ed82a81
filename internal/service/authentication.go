// File: internal/service/authentication.go
package service

import (
	"context"
	"time"

	"key-custody/internal/apperr"
	"key-custody/internal/database"
	"key-custody/internal/metrics"
	"key-custody/internal/model"
	"key-custody/internal/store"

	"go.uber.org/zap"
)

// ErrInvalidCredentials 是所有登入失敗共用的錯誤，不透露失敗原因
var ErrInvalidCredentials = apperr.New(apperr.KindUnauthorized, "invalid username or password")

// Authenticator 以帳號密碼驗證使用者
type Authenticator struct {
	db      database.DB
	hasher  *PasswordHasher
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewAuthenticator(db database.DB, hasher *PasswordHasher, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Authenticator {
	return &Authenticator{db: db, hasher: hasher, timeout: timeout, logger: logger, metrics: m}
}

// Authenticate 驗證帳號密碼。
// 使用者不存在、停用、沒有密碼或密碼錯誤都回傳同一個 ErrInvalidCredentials，
// 且每條路徑都恰好做一次 bcrypt 比對。
func (a *Authenticator) Authenticate(ctx context.Context, username, plaintext string) (*model.User, error) {
	ctx, cancel := bounded(ctx, a.timeout)
	defer cancel()

	u, err := getUserByUsername(ctx, a.db, username, store.NoLock)
	if err != nil {
		a.hasher.VerifyDecoy(plaintext)
		if apperr.KindOf(err) == apperr.KindNotFound {
			a.fail(username)
			return nil, ErrInvalidCredentials
		}
		a.metrics.Login(metrics.ResultError)
		return nil, classify(err)
	}

	digest := ""
	if u.PasswordDigest != nil {
		digest = *u.PasswordDigest
	}
	if !a.hasher.Verify(digest, plaintext) || !u.CanLogin {
		a.fail(username)
		return nil, ErrInvalidCredentials
	}

	if a.hasher.NeedsRehash(digest) {
		a.rehash(ctx, u, plaintext)
	}
	a.metrics.Login(metrics.ResultSuccess)
	return u, nil
}

func (a *Authenticator) fail(username string) {
	a.metrics.Login(metrics.ResultFailure)
	a.logger.Info("authentication failed", zap.String("username", username))
}

// rehash 把舊 cost 的雜湊升級為目前設定；失敗不影響這次登入
func (a *Authenticator) rehash(ctx context.Context, u *model.User, plaintext string) {
	digest, err := a.hasher.Hash(plaintext)
	if err == nil {
		err = updateUserPassword(ctx, a.db, u.ID, digest)
	}
	if err != nil {
		a.logger.Warn("password rehash failed", zap.String("username", u.Username), zap.Error(err))
		return
	}
	u.PasswordDigest = &digest
}
