// File: internal/service/identity.go
package service

import (
	"context"
	"time"

	"key-custody/internal/apperr"
	"key-custody/internal/database"
	"key-custody/internal/model"
	"key-custody/internal/store"

	"go.uber.org/zap"
)

// NewUser 建立使用者的輸入；Password 為 nil 時使用者沒有密碼，無法登入
type NewUser struct {
	Username    string
	DisplayName *string
	Email       *string
	Password    *string
	CanLogin    bool
	Admin       bool
}

// UserUpdate 覆寫 username 以外的屬性
type UserUpdate struct {
	DisplayName *string
	Email       *string
	CanLogin    bool
	Admin       bool
}

// IdentityService 管理使用者，並維持「至少一位可登入的管理員」
type IdentityService struct {
	db      database.DB
	hasher  *PasswordHasher
	timeout time.Duration
	logger  *zap.Logger
}

func NewIdentityService(db database.DB, hasher *PasswordHasher, timeout time.Duration, logger *zap.Logger) *IdentityService {
	return &IdentityService{db: db, hasher: hasher, timeout: timeout, logger: logger}
}

// Get 以 username 取得使用者
func (s *IdentityService) Get(ctx context.Context, username string) (*model.User, error) {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()

	u, err := getUserByUsername(ctx, s.db, username, store.NoLock)
	if err != nil {
		return nil, classify(err)
	}
	return u, nil
}

// GetAll 依 username 排序列出使用者
func (s *IdentityService) GetAll(ctx context.Context) ([]model.User, error) {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()

	users, err := listUsers(ctx, s.db)
	if err != nil {
		return nil, classify(err)
	}
	return users, nil
}

// CountAdmins 可登入的管理員數量
func (s *IdentityService) CountAdmins(ctx context.Context) (int, error) {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()

	n, err := countActiveAdmins(ctx, s.db)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// Create 新增使用者；username 重複時回傳 Conflict
func (s *IdentityService) Create(ctx context.Context, in NewUser) (*model.User, error) {
	if err := validateUsername(in.Username); err != nil {
		return nil, err
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	u := &model.User{
		Username:    in.Username,
		DisplayName: in.DisplayName,
		Email:       in.Email,
		CanLogin:    in.CanLogin,
		Admin:       in.Admin,
	}
	// 雜湊在交易外完成，避免持有連線等待 bcrypt
	if in.Password != nil {
		digest, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordDigest = &digest
	}

	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()

	created, err := createUser(ctx, s.db, u)
	if err != nil {
		return nil, classify(err)
	}
	s.logger.Info("user created", zap.String("username", created.Username), zap.Bool("admin", created.Admin))
	return created, nil
}

// Update 覆寫使用者屬性；會讓可登入的管理員歸零的修改回傳 InvariantViolation
func (s *IdentityService) Update(ctx context.Context, username string, upd UserUpdate) (*model.User, error) {
	if err := validateEmail(upd.Email); err != nil {
		return nil, err
	}
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()

	var updated *model.User
	err := withTx(ctx, s.db, database.ReadCommitted, func(tx database.Querier) error {
		admins, err := lockActiveAdmins(ctx, tx)
		if err != nil {
			return err
		}
		u, err := getUserByUsername(ctx, tx, username, store.ForUpdate)
		if err != nil {
			return err
		}
		if u.IsActiveAdmin() && !(upd.Admin && upd.CanLogin) && len(admins) <= 1 {
			return apperr.New(apperr.KindInvariantViolation, "cannot remove the last administrator able to log in")
		}
		u.DisplayName = upd.DisplayName
		u.Email = upd.Email
		u.CanLogin = upd.CanLogin
		u.Admin = upd.Admin
		if err := updateUser(ctx, tx, u); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete 刪除使用者。最後一位可登入的管理員回傳 InvariantViolation，
// 仍持有鑰匙的使用者回傳 Conflict
func (s *IdentityService) Delete(ctx context.Context, username string) error {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()

	err := withTx(ctx, s.db, database.ReadCommitted, func(tx database.Querier) error {
		admins, err := lockActiveAdmins(ctx, tx)
		if err != nil {
			return err
		}
		u, err := getUserByUsername(ctx, tx, username, store.ForUpdate)
		if err != nil {
			return err
		}
		if u.IsActiveAdmin() && len(admins) <= 1 {
			return apperr.New(apperr.KindInvariantViolation, "cannot delete the last administrator able to log in")
		}
		open, err := countOpenAssignmentsForUser(ctx, tx, u.ID)
		if err != nil {
			return err
		}
		if open > 0 {
			return apperr.New(apperr.KindConflict, "user %q still holds %d key(s)", username, open)
		}
		return deleteUser(ctx, tx, u.ID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("username", username))
	return nil
}

// SetPassword 一律重新雜湊後寫入
func (s *IdentityService) SetPassword(ctx context.Context, username, plaintext string) error {
	digest, err := s.hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()

	u, err := getUserByUsername(ctx, s.db, username, store.NoLock)
	if err != nil {
		return classify(err)
	}
	if err := updateUserPassword(ctx, s.db, u.ID, digest); err != nil {
		return classify(err)
	}
	return nil
}

// ChangeOwnPassword 使用者自行改密碼，必須先通過舊密碼驗證
func (s *IdentityService) ChangeOwnPassword(ctx context.Context, username, oldPlaintext, newPlaintext string) error {
	u, err := s.Get(ctx, username)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			s.hasher.VerifyDecoy(oldPlaintext)
			return ErrInvalidCredentials
		}
		return err
	}
	digest := ""
	if u.PasswordDigest != nil {
		digest = *u.PasswordDigest
	}
	if !s.hasher.Verify(digest, oldPlaintext) {
		return ErrInvalidCredentials
	}
	return s.SetPassword(ctx, username, newPlaintext)
}
