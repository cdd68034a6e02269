package driver

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationFailed бекенд отклонил учётные данные или сессию.
	ErrAuthenticationFailed = errors.New("backend authentication failed")
	// ErrMethodNotSupported бекенд не поддерживает запрошенную возможность.
	ErrMethodNotSupported = errors.New("method not supported by backend")
	// ErrUnsupportedBackendKind неизвестный вид бекенда.
	ErrUnsupportedBackendKind = errors.New("unsupported backend kind")
)

// APIError бекенд принял запрос, но отказал в его выполнении.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend api error %s: %s", e.Code, e.Message)
}

// TransportError сетевая ошибка или таймаут при обращении к бекенду.
// Терминальна для текущей попытки доставки, внутри вызова не повторяется.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsAuthError проверяет, что ошибка связана с аутентификацией на бекенде.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed)
}
