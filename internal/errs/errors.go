package errs

import (
	"errors"
	"fmt"
)

// Коды бизнес-ошибок, которые видит вызывающая сторона.
// Закрытый набор: обработчики отображают их в HTTP-статусы,
// всё остальное считается внутренней ошибкой.
const (
	CodeInternal              = "InternalError"
	CodeInvalidArgument       = "InvalidArgument"
	CodeConflict              = "Conflict"
	CodeNotFound              = "NotFound"
	CodeOrderUnpaid           = "OrderUnpaid"
	CodeOrderCancelled        = "OrderCancelled"
	CodeOrderRefund           = "OrderRefund"
	CodeOrderTradingClosed    = "OrderTradingClosed"
	CodeOrderTradingCompleted = "OrderTradingCompleted"
	CodeTryAgainLater         = "TryAgainLater"
	CodeQuotaShortage         = "QuotaShortage"
	CodeNeedsManualRelease    = "NeedsReleaseResource"
	CodeBackendError          = "BackendError"
)

// Error типизированная бизнес-ошибка с кодом из закрытого набора.
type Error struct {
	Code    string
	Message string
	// Err исходная причина, если есть.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is позволяет сравнивать ошибки по коду через errors.Is.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Code == te.Code
	}
	return false
}

// New создаёт бизнес-ошибку с кодом и сообщением.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap создаёт бизнес-ошибку поверх исходной причины.
func Wrap(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Code возвращает код бизнес-ошибки или CodeInternal для прочих ошибок.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode проверяет, что ошибка несёт указанный код.
func IsCode(err error, code string) bool {
	return Code(err) == code
}

// NeedsManualRelease поднимается, когда компенсация не удалась: на бекенде
// остался экземпляр, который не получилось удалить. Требует вмешательства
// оператора, автоматический повтор небезопасен.
type NeedsManualRelease struct {
	// ProviderInstanceID id экземпляра на стороне бекенда.
	ProviderInstanceID string
	// Cause исходная ошибка, из-за которой понадобилась компенсация.
	Cause error
}

func (e *NeedsManualRelease) Error() string {
	return fmt.Sprintf("%s: instance %s requires manual release: %v",
		CodeNeedsManualRelease, e.ProviderInstanceID, e.Cause)
}

func (e *NeedsManualRelease) Unwrap() error {
	return e.Cause
}

// Is сопоставляет NeedsManualRelease с errs.Error по коду CodeNeedsManualRelease.
func (e *NeedsManualRelease) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te.Code == CodeNeedsManualRelease
	}
	return false
}
