package store

import (
	"context"
	"fmt"

	"key-custody/internal/apperr"
	"key-custody/internal/database"
	"key-custody/internal/model"

	"github.com/jackc/pgx/v5"
)

const keyColumns = `name, description, status, created_at`

// scanKey 讀取時解析 status；未知文字視為資料毀損，不預設為任何狀態
func scanKey(row pgx.Row) (*model.Key, error) {
	k := &model.Key{}
	var status string
	if err := row.Scan(&k.Name, &k.Description, &status, &k.CreatedAt); err != nil {
		return nil, err
	}
	s, err := model.ParseKeyStatus(status)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, fmt.Sprintf("corrupt key row %q", k.Name))
	}
	k.Active = s.Active()
	return k, nil
}

// GetKey 以名稱取得鑰匙
func GetKey(ctx context.Context, db database.Querier, name string, lock Lock) (*model.Key, error) {
	row := db.QueryRow(ctx,
		`SELECT `+keyColumns+` FROM keys WHERE name = $1`+string(lock),
		name,
	)
	k, err := scanKey(row)
	if err != nil {
		return nil, wrap("GetKey", err)
	}
	return k, nil
}

// ListKeys 依名稱排序列出鑰匙
func ListKeys(ctx context.Context, db database.Querier) ([]model.Key, error) {
	rows, err := db.Query(ctx, `SELECT `+keyColumns+` FROM keys ORDER BY name`)
	if err != nil {
		return nil, wrap("ListKeys", err)
	}
	defer rows.Close()

	keys := []model.Key{}
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, wrap("ListKeys", err)
		}
		keys = append(keys, *k)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("ListKeys", err)
	}
	return keys, nil
}

// CreateKey 新增鑰匙，名稱重複時回傳 conflict
func CreateKey(ctx context.Context, db database.Querier, k *model.Key) (*model.Key, error) {
	row := db.QueryRow(ctx,
		`INSERT INTO keys (name, description, status)
		 VALUES ($1, $2, $3)
		 RETURNING created_at`,
		k.Name,
		k.Description,
		string(model.StatusOf(k.Active)),
	)
	if err := row.Scan(&k.CreatedAt); err != nil {
		return nil, wrap("CreateKey", err)
	}
	return k, nil
}

// UpdateKey 以原名稱更新鑰匙；改名時保管紀錄的 key_ref 透過 ON UPDATE CASCADE 跟著更新
func UpdateKey(ctx context.Context, db database.Querier, name string, k *model.Key) error {
	tag, err := db.Exec(ctx,
		`UPDATE keys SET name = $1, description = $2, status = $3
		 WHERE name = $4`,
		k.Name,
		k.Description,
		string(model.StatusOf(k.Active)),
		name,
	)
	if err != nil {
		return wrap("UpdateKey", err)
	}
	if tag.RowsAffected() == 0 {
		return wrap("UpdateKey", apperr.New(apperr.KindNotFound, "key not found"))
	}
	return nil
}

// DeleteKey 刪除鑰匙（已歸還的保管紀錄會一併刪除）
func DeleteKey(ctx context.Context, db database.Querier, name string) error {
	tag, err := db.Exec(ctx, `DELETE FROM keys WHERE name = $1`, name)
	if err != nil {
		return wrap("DeleteKey", err)
	}
	if tag.RowsAffected() == 0 {
		return wrap("DeleteKey", apperr.New(apperr.KindNotFound, "key not found"))
	}
	return nil
}
