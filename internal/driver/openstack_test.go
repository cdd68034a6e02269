package driver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ovolkov/cloudmarket/internal/models"
)

func openstackBackend(endpoint string) *models.Backend {
	return &models.Backend{
		ID:       "backend-2",
		Kind:     models.BackendKindOpenStack,
		Endpoint: endpoint,
		Username: "svc",
		Password: "secret",
	}
}

func TestOpenStackDriver_Authenticate(t *testing.T) {
	expires := time.Now().Add(2 * time.Hour).UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/identity/v3/auth/tokens" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("X-Subject-Token", "keystone-token")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"token": map[string]any{"expires_at": expires}})
	}))
	defer srv.Close()

	drv := NewOpenStackDriver(time.Second)
	sess, err := drv.Authenticate(context.Background(), openstackBackend(srv.URL))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if sess.Token != "keystone-token" {
		t.Errorf("token = %q, want %q", sess.Token, "keystone-token")
	}
	// Срок берётся из ответа keystone с минутным запасом.
	if !sess.Expiry.Equal(expires.Add(-time.Minute)) {
		t.Errorf("expiry = %v, want %v", sess.Expiry, expires.Add(-time.Minute))
	}
}

func TestOpenStackDriver_AuthenticateWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	drv := NewOpenStackDriver(time.Second)
	_, err := drv.Authenticate(context.Background(), openstackBackend(srv.URL))
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Authenticate() error = %v, want %v", err, ErrAuthenticationFailed)
	}
}

func TestOpenStackDriver_CreateServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/compute/v2.1/servers" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-Auth-Token"); got != "keystone-token" {
			t.Errorf("token header = %q, want %q", got, "keystone-token")
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{"server": map[string]any{
			"id":        "os-1",
			"name":      "vm-os-1",
			"adminPass": "pw",
		}})
	}))
	defer srv.Close()

	drv := NewOpenStackDriver(time.Second)
	sess := &Session{Token: "keystone-token", Expiry: time.Now().Add(time.Hour)}
	created, err := drv.CreateServer(context.Background(), openstackBackend(srv.URL), sess, ServerSpec{FlavorID: "m1.small"})
	if err != nil {
		t.Fatalf("CreateServer() error = %v", err)
	}
	if created.ProviderInstanceID != "os-1" {
		t.Errorf("ProviderInstanceID = %q, want %q", created.ProviderInstanceID, "os-1")
	}
	if created.DefaultPassword != "pw" {
		t.Errorf("DefaultPassword = %q, want %q", created.DefaultPassword, "pw")
	}
}

func TestOpenStackDriver_CreateServerWithoutFlavor(t *testing.T) {
	drv := NewOpenStackDriver(time.Second)
	sess := &Session{Token: "keystone-token", Expiry: time.Now().Add(time.Hour)}

	// Размер только через flavor: запрос по vcpu/ram отклоняется без
	// обращения к бекенду
	_, err := drv.CreateServer(context.Background(), openstackBackend("http://unreachable.invalid"), sess, ServerSpec{CPU: 2, RamMiB: 2048})
	if !errors.Is(err, ErrMethodNotSupported) {
		t.Errorf("CreateServer() error = %v, want %v", err, ErrMethodNotSupported)
	}
}

func TestOpenStackDriver_DescribeServerStatusMapping(t *testing.T) {
	tests := []struct {
		backendStatus string
		want          ServerStatus
	}{
		{"ACTIVE", StatusRunning},
		{"BUILD", StatusBuilding},
		{"SHUTOFF", StatusShutoff},
		{"DELETED", StatusMissing},
		{"PAUSED", StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.backendStatus, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"server": map[string]any{
					"id":     "os-1",
					"status": tt.backendStatus,
				}})
			}))
			defer srv.Close()

			drv := NewOpenStackDriver(time.Second)
			sess := &Session{Token: "keystone-token", Expiry: time.Now().Add(time.Hour)}
			detail, err := drv.DescribeServer(context.Background(), openstackBackend(srv.URL), sess, "os-1")
			if err != nil {
				t.Fatalf("DescribeServer() error = %v", err)
			}
			if detail.Status != tt.want {
				t.Errorf("status = %v, want %v", detail.Status, tt.want)
			}
		})
	}
}

func TestOpenStackDriver_DeleteDiskIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	drv := NewOpenStackDriver(time.Second)
	sess := &Session{Token: "keystone-token", Expiry: time.Now().Add(time.Hour)}
	if err := drv.DeleteDisk(context.Background(), openstackBackend(srv.URL), sess, "vol-1"); err != nil {
		t.Errorf("DeleteDisk() error = %v, want nil for missing volume", err)
	}
}

func TestOpenStackDriver_APIErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{
			"code":    409,
			"message": "quota exceeded",
		}})
	}))
	defer srv.Close()

	drv := NewOpenStackDriver(time.Second)
	sess := &Session{Token: "keystone-token", Expiry: time.Now().Add(time.Hour)}
	_, err := drv.CreateDisk(context.Background(), openstackBackend(srv.URL), sess, DiskSpec{SizeGiB: 100})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("CreateDisk() error = %v, want *APIError", err)
	}
	if apiErr.Message != "quota exceeded" {
		t.Errorf("message = %q, want %q", apiErr.Message, "quota exceeded")
	}
}
