package apperror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

type Code string

const (
	CodeInvalidDateRange      Code = "INVALID_DATE_RANGE"
	CodeRoomTypeNotFound      Code = "ROOM_TYPE_NOT_FOUND"
	CodeInsufficientInventory Code = "INSUFFICIENT_INVENTORY"
	CodeDateBlocked           Code = "DATE_BLOCKED"
	CodeConcurrencyAbort      Code = "CONCURRENCY_ABORT"
	CodeTransactionTimeout    Code = "TRANSACTION_TIMEOUT"
	CodeIdempotencyConflict   Code = "IDEMPOTENCY_CONFLICT"

	// administration
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeRuleConflict Code = "RULE_CONFLICT"
	CodeNotFound     Code = "NOT_FOUND"
)

const dateLayout = "2006-01-02"

// ErrKeyAlreadyCommitted возвращается хранилищем, если ключ идемпотентности
// уже занят другой (зафиксированной) транзакцией.
var ErrKeyAlreadyCommitted = errors.New("idempotency key already committed")

type Error struct {
	Code    Code
	Message string

	// Dates: проблемные ночи (blocked / нехватка номеров).
	Dates     []time.Time
	Available int
	Requested int

	// Fields: ошибки по полям для VALIDATION_ERROR.
	Fields map[string]string

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is сравнивает ошибки по коду, чтобы errors.Is(err, apperror.New(CodeX, "")) работал.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func (e *Error) DateStrings() []string {
	out := make([]string, 0, len(e.Dates))
	for _, d := range e.Dates {
		out = append(out, d.Format(dateLayout))
	}
	return out
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

func InvalidDateRange(msg string) *Error {
	return New(CodeInvalidDateRange, msg)
}

func RoomTypeNotFound(id fmt.Stringer) *Error {
	return New(CodeRoomTypeNotFound, fmt.Sprintf("room category %s not found", id))
}

func InsufficientInventory(night time.Time, available, requested int) *Error {
	return &Error{
		Code:      CodeInsufficientInventory,
		Message:   fmt.Sprintf("night %s: %d rooms available, %d requested", night.Format(dateLayout), available, requested),
		Dates:     []time.Time{night},
		Available: available,
		Requested: requested,
	}
}

func DateBlocked(dates []time.Time) *Error {
	e := &Error{Code: CodeDateBlocked, Dates: dates}
	e.Message = "blocked nights: " + strings.Join(e.DateStrings(), ", ")
	return e
}

func Validation(fields map[string]string) *Error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &Error{
		Code:    CodeValidation,
		Message: "invalid fields: " + strings.Join(keys, ", "),
		Fields:  fields,
	}
}

func ConcurrencyAbort(err error) *Error {
	return Wrap(CodeConcurrencyAbort, "transaction aborted by storage, retry the request", err)
}

func TransactionTimeout(err error) *Error {
	return Wrap(CodeTransactionTimeout, "inventory locks not acquired in time, retry the request", err)
}

func IdempotencyConflict(key string) *Error {
	return New(CodeIdempotencyConflict, fmt.Sprintf("key %q was used with different request parameters", key))
}

func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}

// Retryable: можно ли повторить запрос без изменений.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeConcurrencyAbort, CodeTransactionTimeout:
		return true
	default:
		return false
	}
}
