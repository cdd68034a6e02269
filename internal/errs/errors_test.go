package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"typed error", New(CodeQuotaShortage, "не хватает vcpu"), CodeQuotaShortage},
		{"wrapped typed error", fmt.Errorf("deliver: %w", New(CodeTryAgainLater, "позже")), CodeTryAgainLater},
		{"plain error", errors.New("boom"), CodeInternal},
		{"nil cause kept", Wrap(CodeBackendError, "создание сервера", errors.New("timeout")), CodeBackendError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsCode(t *testing.T) {
	err := New(CodeConflict, "заказ уже оплачен")
	if !IsCode(err, CodeConflict) {
		t.Error("IsCode() = false, want true")
	}
	if IsCode(err, CodeNotFound) {
		t.Error("IsCode() matched wrong code")
	}
}

func TestError_IsComparesByCode(t *testing.T) {
	a := New(CodeOrderUnpaid, "заказ не оплачен")
	b := New(CodeOrderUnpaid, "другое сообщение")
	if !errors.Is(a, b) {
		t.Error("errors with same code must match")
	}

	c := New(CodeOrderCancelled, "заказ аннулирован")
	if errors.Is(a, c) {
		t.Error("errors with different codes must not match")
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeBackendError, "создание сервера на бекенде", cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause lost")
	}
	if got := Code(err); got != CodeBackendError {
		t.Errorf("Code() = %q, want %q", got, CodeBackendError)
	}
}

func TestNeedsManualRelease(t *testing.T) {
	cause := errors.New("insert failed")
	err := error(&NeedsManualRelease{ProviderInstanceID: "prov-1", Cause: cause})

	var manual *NeedsManualRelease
	if !errors.As(err, &manual) {
		t.Fatal("errors.As failed for NeedsManualRelease")
	}
	if manual.ProviderInstanceID != "prov-1" {
		t.Errorf("ProviderInstanceID = %q, want %q", manual.ProviderInstanceID, "prov-1")
	}
	if !errors.Is(err, cause) {
		t.Error("cause lost")
	}

	// Сопоставляется с типизированной ошибкой того же кода.
	if !errors.Is(err, New(CodeNeedsManualRelease, "")) {
		t.Error("must match errs.Error with CodeNeedsManualRelease")
	}
}
