package database

import (
	"context"
	"errors"

	"key-custody/internal/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
	codeInvalidDatetime     = "22007"
	codeDatetimeOverflow    = "22008"
)

// constraintSubjects 把 migration 中具名的 constraint 對應到錯誤訊息裡的實體名稱
var constraintSubjects = map[string]string{
	"users_username_key":                "user",
	"keys_pkey":                         "key",
	"fk_assignments_user":               "user",
	"fk_assignments_key":                "key",
	"assignments_one_open_per_key":      "assignment",
	"assignments_one_open_per_user_key": "assignment",
	"assignments_dates_check":           "assignment",
	"keys_status_check":                 "key",
}

// Classify 把 pgx / pgconn 錯誤轉為 apperr 分類；已分類的錯誤原樣回傳
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Wrap(apperr.KindNotFound, err, "not found")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindInfrastructure, err, "storage timeout")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		subject := constraintSubjects[pgErr.ConstraintName]
		switch pgErr.Code {
		case codeUniqueViolation:
			return &apperr.Error{Kind: apperr.KindConflict, Subject: subject, Msg: "duplicate " + orDefault(subject, "record"), Err: err}
		case codeForeignKeyViolation:
			return &apperr.Error{Kind: apperr.KindReferential, Subject: subject, Msg: orDefault(subject, "referenced record") + " does not exist", Err: err}
		case codeCheckViolation, codeNotNullViolation, codeInvalidDatetime, codeDatetimeOverflow:
			return &apperr.Error{Kind: apperr.KindValidation, Subject: subject, Msg: "invalid " + orDefault(subject, "value"), Err: err}
		}
	}
	return apperr.Wrap(apperr.KindInfrastructure, err, "storage failure")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
