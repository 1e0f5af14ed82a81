package store

import (
	"context"
	"time"

	"key-custody/internal/apperr"
	"key-custody/internal/database"
	"key-custody/internal/model"

	"github.com/jackc/pgx/v5"
)

const assignmentSelect = `SELECT a.id, a.user_ref, u.username, a.key_ref, a.date_out, a.date_in
	FROM assignments a JOIN users u ON u.id = a.user_ref`

// 排序的同分一律以 id 遞增決定
var assignmentOrder = map[model.AssignmentSort]string{
	"":               ` ORDER BY a.id`,
	model.SortNone:   ` ORDER BY a.id`,
	model.SortByUser: ` ORDER BY u.username, a.id`,
	model.SortByKey:  ` ORDER BY a.key_ref, a.id`,
}

func scanAssignment(row pgx.Row) (*model.Assignment, error) {
	a := &model.Assignment{}
	if err := row.Scan(&a.ID, &a.UserID, &a.Username, &a.KeyName, &a.DateOut, &a.DateIn); err != nil {
		return nil, err
	}
	return a, nil
}

// GetAssignment 取得單筆保管紀錄；lock 為 ForUpdate 時只鎖 assignments 的列
func GetAssignment(ctx context.Context, db database.Querier, id int64, lock Lock) (*model.Assignment, error) {
	suffix := ""
	if lock != NoLock {
		suffix = string(lock) + " OF a"
	}
	row := db.QueryRow(ctx, assignmentSelect+` WHERE a.id = $1`+suffix, id)
	a, err := scanAssignment(row)
	if err != nil {
		return nil, wrap("GetAssignment", err)
	}
	return a, nil
}

// FindOpenAssignmentForKey 取得該鑰匙目前未歸還的紀錄，沒有時回傳 (nil, nil)
func FindOpenAssignmentForKey(ctx context.Context, db database.Querier, keyName string) (*model.Assignment, error) {
	row := db.QueryRow(ctx, assignmentSelect+` WHERE a.key_ref = $1 AND a.date_in IS NULL`, keyName)
	a, err := scanAssignment(row)
	if err != nil {
		err = database.Classify(err)
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, nil
		}
		return nil, wrap("FindOpenAssignmentForKey", err)
	}
	return a, nil
}

// CountOpenAssignmentsForUser 使用者目前持有的鑰匙數
func CountOpenAssignmentsForUser(ctx context.Context, db database.Querier, userID int64) (int, error) {
	var n int
	if err := db.QueryRow(ctx,
		`SELECT count(*) FROM assignments WHERE user_ref = $1 AND date_in IS NULL`,
		userID,
	).Scan(&n); err != nil {
		return 0, wrap("CountOpenAssignmentsForUser", err)
	}
	return n, nil
}

// InsertAssignment 建立未歸還的紀錄；與另一筆 open 紀錄衝突時由唯一索引回報 conflict
func InsertAssignment(ctx context.Context, db database.Querier, userID int64, keyName string, dateOut time.Time) (int64, error) {
	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO assignments (user_ref, key_ref, date_out)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		userID,
		keyName,
		dateOut,
	).Scan(&id); err != nil {
		return 0, wrap("InsertAssignment", err)
	}
	return id, nil
}

// UpdateAssignment 覆寫所有可變欄位
func UpdateAssignment(ctx context.Context, db database.Querier, a *model.Assignment) error {
	tag, err := db.Exec(ctx,
		`UPDATE assignments SET user_ref = $1, key_ref = $2, date_out = $3, date_in = $4
		 WHERE id = $5`,
		a.UserID,
		a.KeyName,
		a.DateOut,
		a.DateIn,
		a.ID,
	)
	if err != nil {
		return wrap("UpdateAssignment", err)
	}
	if tag.RowsAffected() == 0 {
		return wrap("UpdateAssignment", apperr.New(apperr.KindNotFound, "assignment not found"))
	}
	return nil
}

// DeleteAssignment 刪除保管紀錄
func DeleteAssignment(ctx context.Context, db database.Querier, id int64) error {
	tag, err := db.Exec(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return wrap("DeleteAssignment", err)
	}
	if tag.RowsAffected() == 0 {
		return wrap("DeleteAssignment", apperr.New(apperr.KindNotFound, "assignment not found"))
	}
	return nil
}

// ListAssignments 依排序方式列出保管紀錄
func ListAssignments(ctx context.Context, db database.Querier, opts model.ListOptions) ([]model.Assignment, error) {
	order, ok := assignmentOrder[opts.Sort]
	if !ok {
		return nil, apperr.New(apperr.KindValidation, "unknown sort option %q", opts.Sort)
	}
	query := assignmentSelect
	if opts.OpenOnly {
		query += ` WHERE a.date_in IS NULL`
	}
	rows, err := db.Query(ctx, query+order)
	if err != nil {
		return nil, wrap("ListAssignments", err)
	}
	defer rows.Close()

	list := []model.Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, wrap("ListAssignments", err)
		}
		list = append(list, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("ListAssignments", err)
	}
	return list, nil
}
