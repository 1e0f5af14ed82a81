// File: internal/service/bootstrap.go
package service

import (
	"context"
	"strings"
	"time"

	"key-custody/internal/apperr"
	"key-custody/internal/database"
	"key-custody/internal/metrics"
	"key-custody/internal/model"
	"key-custody/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BootstrapUsername 開機時建立的管理員帳號
const BootstrapUsername = "admin"

var newUUID = uuid.NewString

// Bootstrap 確保至少有一位可登入的管理員；可在每次啟動時安全重複執行
type Bootstrap struct {
	db       database.DB
	hasher   *PasswordHasher
	password string
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewBootstrap password 為空時會產生一次性的隨機密碼並只寫進日誌一次
func NewBootstrap(db database.DB, hasher *PasswordHasher, password string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Bootstrap {
	return &Bootstrap{db: db, hasher: hasher, password: password, timeout: timeout, logger: logger, metrics: m}
}

// generatePassphrase 由兩個 uuid 組成，不含連字號
func generatePassphrase() string {
	return strings.ReplaceAll(newUUID()+newUUID(), "-", "")
}

// Run 已有可登入的管理員時什麼都不做，回傳 false；
// 否則建立 admin（或重新啟用已停用的 admin 管理員帳號）並回傳 true。
// 可登入管理員的密碼永遠不會被重設；名為 admin 的一般帳號不會被提升，直接回傳錯誤。
func (b *Bootstrap) Run(ctx context.Context) (bool, error) {
	ctx, cancel := bounded(ctx, b.timeout)
	defer cancel()

	// 先在交易外確認，正常啟動時不需要 bcrypt
	n, err := countActiveAdmins(ctx, b.db)
	if err != nil {
		return false, classify(err)
	}
	if n > 0 {
		b.logger.Debug("administrator present, bootstrap skipped", zap.Int("admins", n))
		return false, nil
	}

	password, generated := b.password, false
	if password == "" {
		password, generated = generatePassphrase(), true
	}
	digest, err := b.hasher.Hash(password)
	if err != nil {
		return false, err
	}

	created := false
	err = withTx(ctx, b.db, database.ReadCommitted, func(tx database.Querier) error {
		if err := acquireBootstrapLock(ctx, tx); err != nil {
			return err
		}
		// 其他實例可能已先完成
		n, err := countActiveAdmins(ctx, tx)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		existing, err := getUserByUsername(ctx, tx, BootstrapUsername, store.ForUpdate)
		switch {
		case err == nil && !existing.Admin:
			return apperr.New(apperr.KindInvariantViolation,
				"user "+BootstrapUsername+" exists but is not an administrator; refusing to take it over")
		case err == nil:
			existing.CanLogin = true
			if err := updateUser(ctx, tx, existing); err != nil {
				return err
			}
			if err := updateUserPassword(ctx, tx, existing.ID, digest); err != nil {
				return err
			}
		case apperr.KindOf(err) == apperr.KindNotFound:
			if _, err := createUser(ctx, tx, &model.User{
				Username:       BootstrapUsername,
				PasswordDigest: &digest,
				CanLogin:       true,
				Admin:          true,
			}); err != nil {
				return err
			}
		default:
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	b.metrics.AdminCreated()
	if generated {
		b.logger.Warn("bootstrap administrator created with generated password; it will not be shown again",
			zap.String("username", BootstrapUsername),
			zap.String("password", password),
		)
	} else {
		b.logger.Warn("bootstrap administrator created with configured password",
			zap.String("username", BootstrapUsername),
		)
	}
	return true, nil
}
