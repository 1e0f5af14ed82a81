// Package apperr 定義核心層回傳給路由層的錯誤分類。
//
// 每個錯誤都帶有一個 Kind，路由層只依 Kind 決定狀態碼；
// 只有 KindInfrastructure 可以由呼叫端重試。
package apperr

import (
	"errors"
	"fmt"
)

// Kind 錯誤種類
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindReferential
	KindInvariantViolation
	KindValidation
	KindUnauthenticated
	KindUnauthorized
	KindInfrastructure
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindNotFound:           "not_found",
	KindConflict:           "conflict",
	KindReferential:        "referential_error",
	KindInvariantViolation: "invariant_violation",
	KindValidation:         "validation_error",
	KindUnauthenticated:    "unauthenticated",
	KindUnauthorized:       "unauthorized",
	KindInfrastructure:     "infrastructure_error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error 核心層錯誤
//
// Subject 標示出錯的一方（例如 referential error 的 "user" 或 "key"）。
type Error struct {
	Kind    Kind
	Msg     string
	Subject string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is 讓 errors.Is(err, apperr.ErrConflict) 依 Kind 比對
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Subject == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrReferential        = &Error{Kind: KindReferential}
	ErrInvariantViolation = &Error{Kind: KindInvariantViolation}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrInfrastructure     = &Error{Kind: KindInfrastructure}
)

// New 建立指定種類的錯誤
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap 以指定種類包裝底層錯誤
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Referential 建立指名失敗一方的參照錯誤
func Referential(subject, format string, args ...any) *Error {
	return &Error{Kind: KindReferential, Subject: subject, Msg: fmt.Sprintf(format, args...)}
}

// KindOf 取出錯誤鏈中第一個 *Error 的種類；非 *Error 一律視為 infrastructure
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfrastructure
}

// Retryable 只有基礎設施錯誤可重試
func Retryable(err error) bool {
	return err != nil && KindOf(err) == KindInfrastructure
}
