// File: internal/service/ledger.go
package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"key-custody/internal/apperr"
	"key-custody/internal/database"
	"key-custody/internal/metrics"
	"key-custody/internal/model"
	"key-custody/internal/store"

	"go.uber.org/zap"
)

const maxKeyNameLength = 64

// CustodyLedger 記錄哪位使用者在何時借出、歸還哪一把鑰匙。
//
// 同一把鑰匙同時最多只有一筆未歸還紀錄；這由 assignments 上的部分唯一索引保證，
// 交易內的預先檢查只是為了回傳較清楚的訊息。
type CustodyLedger struct {
	db      database.DB
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewCustodyLedger(db database.DB, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *CustodyLedger {
	return &CustodyLedger{db: db, timeout: timeout, logger: logger, metrics: m}
}

/* ---------- 鑰匙 ---------- */

func validateKeyName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.New(apperr.KindValidation, "key name must not be empty")
	}
	if utf8.RuneCountInString(name) > maxKeyNameLength {
		return apperr.New(apperr.KindValidation, "key name must be at most %d characters", maxKeyNameLength)
	}
	return nil
}

// CreateKey 新增鑰匙；名稱重複時回傳 Conflict
func (l *CustodyLedger) CreateKey(ctx context.Context, k model.Key) (*model.Key, error) {
	if err := validateKeyName(k.Name); err != nil {
		return nil, err
	}
	ctx, cancel := bounded(ctx, l.timeout)
	defer cancel()

	created, err := createKey(ctx, l.db, &k)
	if err != nil {
		return nil, classify(err)
	}
	return created, nil
}

// GetKey 以名稱取得鑰匙
func (l *CustodyLedger) GetKey(ctx context.Context, name string) (*model.Key, error) {
	ctx, cancel := bounded(ctx, l.timeout)
	defer cancel()

	k, err := getKey(ctx, l.db, name, store.NoLock)
	if err != nil {
		return nil, classify(err)
	}
	return k, nil
}

// ListKeys 依名稱排序列出鑰匙
func (l *CustodyLedger) ListKeys(ctx context.Context) ([]model.Key, error) {
	ctx, cancel := bounded(ctx, l.timeout)
	defer cancel()

	keys, err := listKeys(ctx, l.db)
	if err != nil {
		return nil, classify(err)
	}
	return keys, nil
}

// UpdateKey 部分更新鑰匙；改名時既有紀錄跟著指向新名稱
func (l *CustodyLedger) UpdateKey(ctx context.Context, name string, patch model.KeyPatch) (*model.Key, error) {
	if patch.Name != nil {
		if err := validateKeyName(*patch.Name); err != nil {
			return nil, err
		}
	}
	ctx, cancel := bounded(ctx, l.timeout)
	defer cancel()

	var updated *model.Key
	err := withTx(ctx, l.db, database.ReadCommitted, func(tx database.Querier) error {
		k, err := getKey(ctx, tx, name, store.ForUpdate)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			k.Name = *patch.Name
		}
		if patch.Description != nil {
			k.Description = patch.Description
		}
		if patch.Active != nil {
			k.Active = *patch.Active
		}
		if err := updateKey(ctx, tx, name, k); err != nil {
			return err
		}
		updated = k
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteKey 刪除鑰匙；鑰匙尚未歸還時回傳 Conflict
func (l *CustodyLedger) DeleteKey(ctx context.Context, name string) error {
	ctx, cancel := bounded(ctx, l.timeout)
	defer cancel()

	return withTx(ctx, l.db, database.ReadCommitted, func(tx database.Querier) error {
		if _, err := getKey(ctx, tx, name, store.ForUpdate); err != nil {
			return err
		}
		open, err := findOpenAssignmentForKey(ctx, tx, name)
		if err != nil {
			return err
		}
		if open != nil {
			return apperr.New(apperr.KindConflict, "key %q is checked out to %s", name, open.Username)
		}
		return deleteKey(ctx, tx, name)
	})
}

/* ---------- 保管紀錄 ---------- */

// referential 把參照對象不存在的 NotFound 轉成指名對象的 ReferentialError
func referential(err error, subject, name string) error {
	if apperr.KindOf(err) == apperr.KindNotFound {
		return apperr.Referential(subject, "%s %q does not exist", subject, name)
	}
	return err
}

// Checkout 把鑰匙借給使用者。
// 鑰匙已被任何人借出時回傳 Conflict；使用者或鑰匙不存在時回傳指名的 ReferentialError；
// 停用的鑰匙不能借出。
func (l *CustodyLedger) Checkout(ctx context.Context, username, keyName string, dateOut time.Time) (*model.Assignment, error) {
	ctx, cancel := bounded(ctx, l.timeout)
	defer cancel()

	a := &model.Assignment{Username: username, KeyName: keyName, DateOut: model.DateOf(dateOut)}
	err := withTx(ctx, l.db, database.ReadCommitted, func(tx database.Querier) error {
		// FOR SHARE 讓並行的刪除使用者／鑰匙等到這筆交易結束
		u, err := getUserByUsername(ctx, tx, username, store.ForShare)
		if err != nil {
			return referential(err, "user", username)
		}
		k, err := getKey(ctx, tx, keyName, store.ForShare)
		if err != nil {
			return referential(err, "key", keyName)
		}
		if !k.Active {
			return apperr.New(apperr.KindValidation, "key %q is inactive", keyName)
		}
		open, err := findOpenAssignmentForKey(ctx, tx, keyName)
		if err != nil {
			return err
		}
		if open != nil {
			if open.UserID == u.ID {
				return apperr.New(apperr.KindConflict, "key %q is already checked out to this user", keyName)
			}
			return apperr.New(apperr.KindConflict, "key %q is already checked out", keyName)
		}
		id, err := insertAssignment(ctx, tx, u.ID, keyName, a.DateOut)
		if err != nil {
			return err
		}
		a.ID = id
		a.UserID = u.ID
		return nil
	})
	switch {
	case err == nil:
		l.metrics.Checkout(metrics.ResultSuccess)
	case apperr.KindOf(err) == apperr.KindConflict:
		l.metrics.Checkout(metrics.ResultConflict)
	case apperr.Retryable(err):
		l.metrics.Checkout(metrics.ResultError)
	default:
		l.metrics.Checkout(metrics.ResultFailure)
	}
	if err != nil {
		return nil, err
	}
	l.logger.Info("key checked out",
		zap.String("key", keyName),
		zap.String("username", username),
		zap.Int64("assignment_id", a.ID),
	)
	return a, nil
}

// Checkin 歸還鑰匙。以相同日期重複歸還會回傳原紀錄；
// 已用其他日期歸還時回傳 Conflict；date_in 早於 date_out 時回傳 ValidationError
func (l *CustodyLedger) Checkin(ctx context.Context, id int64, dateIn time.Time) (*model.Assignment, error) {
	ctx, cancel := bounded(ctx, l.timeout)
	defer cancel()

	dateIn = model.DateOf(dateIn)
	var result *model.Assignment
	err := withTx(ctx, l.db, database.ReadCommitted, func(tx database.Querier) error {
		a, err := getAssignment(ctx, tx, id, store.ForUpdate)
		if err != nil {
			return err
		}
		if dateIn.Before(a.DateOut) {
			return apperr.New(apperr.KindValidation, "date_in %s is before date_out %s",
				dateIn.Format(model.DateLayout), a.DateOut.Format(model.DateLayout))
		}
		if !a.Open() {
			if a.DateIn.Equal(dateIn) {
				result = a
				return nil
			}
			return apperr.New(apperr.KindConflict, "assignment already checked in on %s", a.DateIn.Format(model.DateLayout))
		}
		a.DateIn = &dateIn
		if err := updateAssignment(ctx, tx, a); err != nil {
			return err
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Update 管理員直接修改紀錄，不經過借出／歸還流程，但仍檢查參照與唯一性。
// patch.DateIn 可以保持、設定或清除（清除即重新開啟紀錄）
func (l *CustodyLedger) Update(ctx context.Context, id int64, patch model.AssignmentPatch) (*model.Assignment, error) {
	ctx, cancel := bounded(ctx, l.timeout)
	defer cancel()

	var result *model.Assignment
	err := withTx(ctx, l.db, database.ReadCommitted, func(tx database.Querier) error {
		a, err := getAssignment(ctx, tx, id, store.ForUpdate)
		if err != nil {
			return err
		}
		if patch.Username != nil {
			u, err := getUserByUsername(ctx, tx, *patch.Username, store.ForShare)
			if err != nil {
				return referential(err, "user", *patch.Username)
			}
			a.UserID = u.ID
			a.Username = u.Username
		}
		if patch.KeyName != nil {
			k, err := getKey(ctx, tx, *patch.KeyName, store.ForShare)
			if err != nil {
				return referential(err, "key", *patch.KeyName)
			}
			a.KeyName = k.Name
		}
		if patch.DateOut != nil {
			a.DateOut = model.DateOf(*patch.DateOut)
		}
		if set, v := patch.DateIn.Resolve(); set {
			a.DateIn = v
		}
		if a.DateIn != nil && a.DateIn.Before(a.DateOut) {
			return apperr.New(apperr.KindValidation, "date_in %s is before date_out %s",
				a.DateIn.Format(model.DateLayout), a.DateOut.Format(model.DateLayout))
		}
		if a.Open() {
			open, err := findOpenAssignmentForKey(ctx, tx, a.KeyName)
			if err != nil {
				return err
			}
			if open != nil && open.ID != a.ID {
				return apperr.New(apperr.KindConflict, "key %q is already checked out", a.KeyName)
			}
		}
		if err := updateAssignment(ctx, tx, a); err != nil {
			return err
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete 刪除紀錄
func (l *CustodyLedger) Delete(ctx context.Context, id int64) error {
	ctx, cancel := bounded(ctx, l.timeout)
	defer cancel()

	if err := deleteAssignment(ctx, l.db, id); err != nil {
		return classify(err)
	}
	return nil
}

// Get 取得單筆紀錄
func (l *CustodyLedger) Get(ctx context.Context, id int64) (*model.Assignment, error) {
	ctx, cancel := bounded(ctx, l.timeout)
	defer cancel()

	a, err := getAssignment(ctx, l.db, id, store.NoLock)
	if err != nil {
		return nil, classify(err)
	}
	return a, nil
}

// List 列出紀錄；同一排序鍵下以 id 遞增
func (l *CustodyLedger) List(ctx context.Context, opts model.ListOptions) ([]model.Assignment, error) {
	ctx, cancel := bounded(ctx, l.timeout)
	defer cancel()

	list, err := listAssignments(ctx, l.db, opts)
	if err != nil {
		return nil, classify(err)
	}
	return list, nil
}
