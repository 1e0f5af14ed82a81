package database

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// ReadCommitted 是跨列不變量檢查使用的隔離等級；
// 不變量靠 SELECT ... FOR UPDATE 與唯一索引保證，而不是依賴 serializable 重試
var ReadCommitted = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// WithTx 開啟交易並執行 fn：fn 成功則 commit，回傳錯誤或 panic 則 rollback（panic 會再拋出）。
// 回傳的錯誤一律經過 Classify。
func WithTx(ctx context.Context, db DB, opts pgx.TxOptions, fn func(tx Querier) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return Classify(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			err = Classify(err)
			return
		}
		if cerr := tx.Commit(ctx); cerr != nil {
			err = Classify(cerr)
		}
	}()

	err = fn(tx)
	return err
}
