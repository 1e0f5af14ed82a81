package store

import (
	"context"

	"key-custody/internal/apperr"
	"key-custody/internal/database"
	"key-custody/internal/model"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id, username, display_name, email, password_digest, can_login, admin, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.DisplayName,
		&u.Email,
		&u.PasswordDigest,
		&u.CanLogin,
		&u.Admin,
		&u.CreatedAt,
	); err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByUsername 以 username 取得使用者
func GetUserByUsername(ctx context.Context, db database.Querier, username string, lock Lock) (*model.User, error) {
	row := db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`+string(lock),
		username,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, wrap("GetUserByUsername", err)
	}
	return u, nil
}

// GetUserByID 以 primary key 取得使用者
func GetUserByID(ctx context.Context, db database.Querier, id int64) (*model.User, error) {
	row := db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, wrap("GetUserByID", err)
	}
	return u, nil
}

// ListUsers 依 username 排序列出所有使用者
func ListUsers(ctx context.Context, db database.Querier) ([]model.User, error) {
	rows, err := db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, wrap("ListUsers", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, wrap("ListUsers", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("ListUsers", err)
	}
	return users, nil
}

// CreateUser 新增使用者，username 重複時回傳 conflict
func CreateUser(ctx context.Context, db database.Querier, u *model.User) (*model.User, error) {
	row := db.QueryRow(ctx,
		`INSERT INTO users (username, display_name, email, password_digest, can_login, admin)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		u.Username,
		u.DisplayName,
		u.Email,
		u.PasswordDigest,
		u.CanLogin,
		u.Admin,
	)
	if err := row.Scan(&u.ID, &u.CreatedAt); err != nil {
		return nil, wrap("CreateUser", err)
	}
	return u, nil
}

// UpdateUser 更新 username 以外的屬性（username 建立後不可變）
func UpdateUser(ctx context.Context, db database.Querier, u *model.User) error {
	tag, err := db.Exec(ctx,
		`UPDATE users SET display_name = $1, email = $2, can_login = $3, admin = $4
		 WHERE id = $5`,
		u.DisplayName,
		u.Email,
		u.CanLogin,
		u.Admin,
		u.ID,
	)
	if err != nil {
		return wrap("UpdateUser", err)
	}
	if tag.RowsAffected() == 0 {
		return wrap("UpdateUser", apperr.New(apperr.KindNotFound, "user not found"))
	}
	return nil
}

// UpdateUserPassword 只寫入雜湊後的密碼
func UpdateUserPassword(ctx context.Context, db database.Querier, id int64, digest string) error {
	tag, err := db.Exec(ctx,
		`UPDATE users
		 SET password_digest = $1
		 WHERE id = $2`,
		digest,
		id,
	)
	if err != nil {
		return wrap("UpdateUserPassword", err)
	}
	if tag.RowsAffected() == 0 {
		return wrap("UpdateUserPassword", apperr.New(apperr.KindNotFound, "user not found"))
	}
	return nil
}

// DeleteUser 刪除使用者（已歸還的保管紀錄會一併刪除）
func DeleteUser(ctx context.Context, db database.Querier, id int64) error {
	tag, err := db.Exec(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return wrap("DeleteUser", err)
	}
	if tag.RowsAffected() == 0 {
		return wrap("DeleteUser", apperr.New(apperr.KindNotFound, "user not found"))
	}
	return nil
}

// LockActiveAdmins 鎖住所有可登入的管理員並回傳其 id。
// 並行的降級／刪除會在這裡排隊，等待後重新評估 WHERE 條件，
// 因此計數在同一交易內保持正確。
func LockActiveAdmins(ctx context.Context, db database.Querier) ([]int64, error) {
	rows, err := db.Query(ctx,
		`SELECT id FROM users WHERE admin AND can_login ORDER BY id FOR UPDATE`,
	)
	if err != nil {
		return nil, wrap("LockActiveAdmins", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, wrap("LockActiveAdmins", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("LockActiveAdmins", err)
	}
	return ids, nil
}

// CountActiveAdmins 計算可登入的管理員數量
func CountActiveAdmins(ctx context.Context, db database.Querier) (int, error) {
	var n int
	if err := db.QueryRow(ctx,
		`SELECT count(*) FROM users WHERE admin AND can_login`,
	).Scan(&n); err != nil {
		return 0, wrap("CountActiveAdmins", err)
	}
	return n, nil
}

// AcquireBootstrapLock 取得交易層級的 advisory lock，讓多個實例同時啟動時只有一個執行 bootstrap
func AcquireBootstrapLock(ctx context.Context, db database.Querier) error {
	if _, err := db.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, bootstrapLockID); err != nil {
		return wrap("AcquireBootstrapLock", err)
	}
	return nil
}

// bootstrapLockID 任意但固定的 advisory lock 編號
const bootstrapLockID int64 = 0x6b65795f61646d // "key_adm"
