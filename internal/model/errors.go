package model

import "errors"

// Ошибки предметной области. Сервисы оборачивают их через fmt.Errorf("...: %w", err),
// обработчики различают их через errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidOperation    = errors.New("invalid operation")
	ErrAccountBlocked      = errors.New("account blocked")
	ErrAccessDenied        = errors.New("access denied")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrLockTimeout         = errors.New("lock wait timeout")
)

// ErrorKind тег ошибки для вызывающей стороны
type ErrorKind string

const (
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindInvalidAmount       ErrorKind = "INVALID_AMOUNT"
	KindInsufficientFunds   ErrorKind = "INSUFFICIENT_FUNDS"
	KindInvalidOperation    ErrorKind = "INVALID_OPERATION"
	KindAccountBlocked      ErrorKind = "ACCOUNT_BLOCKED"
	KindAccessDenied        ErrorKind = "ACCESS_DENIED"
	KindConstraintViolation ErrorKind = "CONSTRAINT_VIOLATION"
	KindLockTimeout         ErrorKind = "LOCK_TIMEOUT"
	KindInternal            ErrorKind = "INTERNAL"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrNotFound, KindNotFound},
	{ErrInvalidAmount, KindInvalidAmount},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrInvalidOperation, KindInvalidOperation},
	{ErrAccountBlocked, KindAccountBlocked},
	{ErrAccessDenied, KindAccessDenied},
	{ErrConstraintViolation, KindConstraintViolation},
	{ErrLockTimeout, KindLockTimeout},
}

// KindOf возвращает тег первой распознанной ошибки в цепочке, иначе KindInternal
func KindOf(err error) ErrorKind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Retryable сообщает, имеет ли смысл повторить операцию без изменений
func (k ErrorKind) Retryable() bool {
	return k == KindLockTimeout
}
