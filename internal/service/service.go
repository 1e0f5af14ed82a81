// Package service 是保管系統的核心：密碼驗證、身分儲存、登入、session 與保管帳本。
//
// 所有儲存操作都透過下列函式變數呼叫 store 套件，測試時可整組替換成記憶體實作。
// 每個對外操作都套用 storage timeout，逾時以 apperr.KindInfrastructure 回報。
package service

import (
	"context"
	"regexp"
	"time"

	"key-custody/internal/apperr"
	"key-custody/internal/database"
	"key-custody/internal/store"

	"github.com/go-playground/validator/v10"
)

var (
	getUserByUsername    = store.GetUserByUsername
	getUserByID          = store.GetUserByID
	listUsers            = store.ListUsers
	createUser           = store.CreateUser
	updateUser           = store.UpdateUser
	updateUserPassword   = store.UpdateUserPassword
	deleteUser           = store.DeleteUser
	lockActiveAdmins     = store.LockActiveAdmins
	countActiveAdmins    = store.CountActiveAdmins
	acquireBootstrapLock = store.AcquireBootstrapLock

	getKey    = store.GetKey
	listKeys  = store.ListKeys
	createKey = store.CreateKey
	updateKey = store.UpdateKey
	deleteKey = store.DeleteKey

	getAssignment               = store.GetAssignment
	findOpenAssignmentForKey    = store.FindOpenAssignmentForKey
	countOpenAssignmentsForUser = store.CountOpenAssignmentsForUser
	insertAssignment            = store.InsertAssignment
	updateAssignment            = store.UpdateAssignment
	deleteAssignment            = store.DeleteAssignment
	listAssignments             = store.ListAssignments

	withTx  = database.WithTx
	timeNow = time.Now
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)
	validate        = validator.New()
)

// bounded 為單一操作加上 storage timeout；d <= 0 代表只依賴連線池的 statement_timeout
func bounded(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// classify 確保離開 service 的錯誤都帶有 apperr 分類
func classify(err error) error {
	return database.Classify(err)
}

func validateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return apperr.New(apperr.KindValidation, "username must be 1-64 characters of letters, digits, '.', '_' or '-'")
	}
	return nil
}

func validateEmail(email *string) error {
	if email == nil {
		return nil
	}
	if err := validate.Var(*email, "required,email"); err != nil {
		return apperr.New(apperr.KindValidation, "invalid email %q", *email)
	}
	return nil
}
