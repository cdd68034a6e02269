package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ovolkov/cloudmarket/internal/models"
)

// OpenStackDriver адаптер бекенда вида OpenStack поверх его compute/volume API.
type OpenStackDriver struct {
	httpClient *http.Client
}

// NewOpenStackDriver создаёт драйвер OpenStack с ограниченным таймаутом запросов.
func NewOpenStackDriver(timeout time.Duration) *OpenStackDriver {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenStackDriver{
		httpClient: &http.Client{Timeout: timeout},
	}
}

type openstackServer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
	IPv4   string `json:"accessIPv4"`
}

// Authenticate получает токен keystone и срок его действия.
func (d *OpenStackDriver) Authenticate(ctx context.Context, backend *models.Backend) (*Session, error) {
	body := map[string]any{
		"auth": map[string]any{
			"identity": map[string]any{
				"methods": []string{"password"},
				"password": map[string]any{
					"user": map[string]any{
						"name":     backend.Username,
						"password": backend.Password,
					},
				},
			},
		},
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, backend.Endpoint+"/identity/v3/auth/tokens", bytes.NewBuffer(buf))
	if err != nil {
		return nil, fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, ErrAuthenticationFailed
	}

	token := resp.Header.Get("X-Subject-Token")
	if token == "" {
		return nil, ErrAuthenticationFailed
	}

	var out struct {
		Token struct {
			ExpiresAt time.Time `json:"expires_at"`
		} `json:"token"`
	}
	expiry := time.Now().Add(time.Hour)
	if err := json.NewDecoder(resp.Body).Decode(&out); err == nil && !out.Token.ExpiresAt.IsZero() {
		expiry = out.Token.ExpiresAt.Add(-time.Minute)
	}

	return &Session{Token: token, Expiry: expiry}, nil
}

// CreateServer создаёт сервер через compute API.
func (d *OpenStackDriver) CreateServer(ctx context.Context, backend *models.Backend, sess *Session, spec ServerSpec) (*CreatedServer, error) {
	// Nova задаёт размер сервера только через flavor; произвольная
	// комбинация vcpu/ram, как в EVCloud, здесь не выражается.
	if spec.FlavorID == "" {
		return nil, fmt.Errorf("sizing by vcpu/ram: %w", ErrMethodNotSupported)
	}

	body := map[string]any{
		"server": map[string]any{
			"name":              spec.Remark,
			"imageRef":          spec.ImageID,
			"flavorRef":         spec.FlavorID,
			"networks":          []map[string]string{{"uuid": spec.NetworkID}},
			"availability_zone": spec.AzoneID,
		},
	}

	var out struct {
		Server struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			AdminPass string `json:"adminPass"`
		} `json:"server"`
	}
	status, err := d.doJSON(ctx, http.MethodPost, backend.Endpoint+"/compute/v2.1/servers", sess.Token, body, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusAccepted && status != http.StatusOK {
		return nil, &APIError{Code: strconv.Itoa(status), Message: "unexpected create server status"}
	}

	return &CreatedServer{
		ProviderInstanceID: out.Server.ID,
		Name:               out.Server.Name,
		DefaultUser:        "root",
		DefaultPassword:    out.Server.AdminPass,
	}, nil
}

// DeleteServer удаляет сервер. Уже отсутствующий сервер — успех.
func (d *OpenStackDriver) DeleteServer(ctx context.Context, backend *models.Backend, sess *Session, providerInstanceID string, force bool) error {
	u := backend.Endpoint + "/compute/v2.1/servers/" + url.PathEscape(providerInstanceID)

	status, err := d.doJSON(ctx, http.MethodDelete, u, sess.Token, nil, nil)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusNoContent, http.StatusAccepted, http.StatusNotFound:
		return nil
	default:
		return &APIError{Code: strconv.Itoa(status), Message: "unexpected delete server status"}
	}
}

// DescribeServer запрашивает сведения о сервере.
func (d *OpenStackDriver) DescribeServer(ctx context.Context, backend *models.Backend, sess *Session, providerInstanceID string) (*ServerDetail, error) {
	u := backend.Endpoint + "/compute/v2.1/servers/" + url.PathEscape(providerInstanceID)

	var out struct {
		Server openstackServer `json:"server"`
	}
	status, err := d.doJSON(ctx, http.MethodGet, u, sess.Token, nil, &out)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return &ServerDetail{ProviderInstanceID: providerInstanceID, Status: StatusMissing}, nil
	}
	if status != http.StatusOK {
		return nil, &APIError{Code: strconv.Itoa(status), Message: "unexpected describe server status"}
	}

	return &ServerDetail{
		ProviderInstanceID: out.Server.ID,
		Name:               out.Server.Name,
		Status:             openstackServerStatus(out.Server.Status),
		IPv4:               out.Server.IPv4,
	}, nil
}

// CreateDisk создаёт том через volume API.
func (d *OpenStackDriver) CreateDisk(ctx context.Context, backend *models.Backend, sess *Session, spec DiskSpec) (*CreatedDisk, error) {
	body := map[string]any{
		"volume": map[string]any{
			"size":              spec.SizeGiB,
			"availability_zone": spec.AzoneID,
			"description":       spec.Remark,
		},
	}

	var out struct {
		Volume struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"volume"`
	}
	status, err := d.doJSON(ctx, http.MethodPost, backend.Endpoint+"/volume/v3/volumes", sess.Token, body, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusAccepted && status != http.StatusOK && status != http.StatusCreated {
		return nil, &APIError{Code: strconv.Itoa(status), Message: "unexpected create volume status"}
	}

	return &CreatedDisk{ProviderDiskID: out.Volume.ID, Name: out.Volume.Name}, nil
}

// DeleteDisk удаляет том. Уже отсутствующий том — успех.
func (d *OpenStackDriver) DeleteDisk(ctx context.Context, backend *models.Backend, sess *Session, providerDiskID string) error {
	u := backend.Endpoint + "/volume/v3/volumes/" + url.PathEscape(providerDiskID)

	status, err := d.doJSON(ctx, http.MethodDelete, u, sess.Token, nil, nil)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusNoContent, http.StatusAccepted, http.StatusNotFound:
		return nil
	default:
		return &APIError{Code: strconv.Itoa(status), Message: "unexpected delete volume status"}
	}
}

// DescribeDisk запрашивает сведения о томе.
func (d *OpenStackDriver) DescribeDisk(ctx context.Context, backend *models.Backend, sess *Session, providerDiskID string) (*DiskDetail, error) {
	u := backend.Endpoint + "/volume/v3/volumes/" + url.PathEscape(providerDiskID)

	var out struct {
		Volume struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Status string `json:"status"`
			Size   int    `json:"size"`
		} `json:"volume"`
	}
	status, err := d.doJSON(ctx, http.MethodGet, u, sess.Token, nil, &out)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return &DiskDetail{ProviderDiskID: providerDiskID, Status: StatusMissing}, nil
	}
	if status != http.StatusOK {
		return nil, &APIError{Code: strconv.Itoa(status), Message: "unexpected describe volume status"}
	}

	return &DiskDetail{
		ProviderDiskID: out.Volume.ID,
		Name:           out.Volume.Name,
		Status:         openstackServerStatus(out.Volume.Status),
		SizeGiB:        out.Volume.Size,
	}, nil
}

func (d *OpenStackDriver) doJSON(ctx context.Context, method, rawURL, token string, body, out any) (int, error) {
	var reqBody *bytes.Buffer
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewBuffer(buf)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Auth-Token", token)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return resp.StatusCode, ErrAuthenticationFailed
	}

	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
		var apiErr struct {
			Error struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if decErr := json.NewDecoder(resp.Body).Decode(&apiErr); decErr == nil && apiErr.Error.Message != "" {
			return resp.StatusCode, &APIError{
				Code:    strconv.Itoa(apiErr.Error.Code),
				Message: apiErr.Error.Message,
			}
		}
		return resp.StatusCode, &APIError{Code: strconv.Itoa(resp.StatusCode), Message: resp.Status}
	}

	if out != nil && resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func openstackServerStatus(s string) ServerStatus {
	switch s {
	case "ACTIVE", "available", "in-use":
		return StatusRunning
	case "BUILD", "creating", "downloading":
		return StatusBuilding
	case "SHUTOFF":
		return StatusShutoff
	case "DELETED", "SOFT_DELETED":
		return StatusMissing
	default:
		return StatusError
	}
}
