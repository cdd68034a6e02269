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

// EVCloudDriver адаптер бекенда вида EVCloud поверх его HTTP API.
type EVCloudDriver struct {
	httpClient *http.Client
}

// NewEVCloudDriver создаёт драйвер EVCloud с ограниченным таймаутом запросов.
func NewEVCloudDriver(timeout time.Duration) *EVCloudDriver {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EVCloudDriver{
		httpClient: &http.Client{Timeout: timeout},
	}
}

type evcloudAuthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type evcloudError struct {
	Code    string `json:"err_code"`
	Message string `json:"code_text"`
}

type evcloudServer struct {
	UUID            string `json:"uuid"`
	Name            string `json:"name"`
	Status          string `json:"status"`
	IPv4            string `json:"ipv4"`
	ImageName       string `json:"image"`
	DefaultUser     string `json:"default_user"`
	DefaultPassword string `json:"default_password"`
}

type evcloudDisk struct {
	UUID    string `json:"uuid"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	SizeGiB int    `json:"size"`
}

// Authenticate получает JWT-токен бекенда.
func (d *EVCloudDriver) Authenticate(ctx context.Context, backend *models.Backend) (*Session, error) {
	body := map[string]string{"username": backend.Username, "password": backend.Password}

	var out evcloudAuthResponse
	status, err := d.doJSON(ctx, http.MethodPost, backend.Endpoint+"/api/v3/jwt/", "", body, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || out.AccessToken == "" {
		return nil, ErrAuthenticationFailed
	}

	expiresIn := out.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return &Session{
		Token: out.AccessToken,
		// запас в минуту, чтобы не отправлять запросы с почти истёкшим токеном
		Expiry: time.Now().Add(time.Duration(expiresIn)*time.Second - time.Minute),
	}, nil
}

// CreateServer создаёт виртуальную машину.
func (d *EVCloudDriver) CreateServer(ctx context.Context, backend *models.Backend, sess *Session, spec ServerSpec) (*CreatedServer, error) {
	body := map[string]any{
		"vcpu":            spec.CPU,
		"ram":             spec.RamMiB,
		"image_id":        spec.ImageID,
		"network_id":      spec.NetworkID,
		"azone_id":        spec.AzoneID,
		"flavor_id":       spec.FlavorID,
		"systemdisk_size": spec.SystemDiskGiB,
		"remarks":         spec.Remark,
	}

	var out struct {
		Server evcloudServer `json:"server"`
	}
	status, err := d.doJSON(ctx, http.MethodPost, backend.Endpoint+"/api/v3/server/", sess.Token, body, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, &APIError{Code: strconv.Itoa(status), Message: "unexpected create server status"}
	}

	return &CreatedServer{
		ProviderInstanceID: out.Server.UUID,
		Name:               out.Server.Name,
		DefaultUser:        out.Server.DefaultUser,
		DefaultPassword:    out.Server.DefaultPassword,
	}, nil
}

// DeleteServer удаляет виртуальную машину. Уже отсутствующая машина — успех.
func (d *EVCloudDriver) DeleteServer(ctx context.Context, backend *models.Backend, sess *Session, providerInstanceID string, force bool) error {
	u := backend.Endpoint + "/api/v3/server/" + url.PathEscape(providerInstanceID) + "/"
	if force {
		u += "?force=true"
	}

	status, err := d.doJSON(ctx, http.MethodDelete, u, sess.Token, nil, nil)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusNoContent, http.StatusOK, http.StatusNotFound:
		return nil
	default:
		return &APIError{Code: strconv.Itoa(status), Message: "unexpected delete server status"}
	}
}

// DescribeServer запрашивает сведения о виртуальной машине.
func (d *EVCloudDriver) DescribeServer(ctx context.Context, backend *models.Backend, sess *Session, providerInstanceID string) (*ServerDetail, error) {
	u := backend.Endpoint + "/api/v3/server/" + url.PathEscape(providerInstanceID) + "/"

	var out struct {
		Server evcloudServer `json:"server"`
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
		ProviderInstanceID: out.Server.UUID,
		Name:               out.Server.Name,
		Status:             evcloudServerStatus(out.Server.Status),
		IPv4:               out.Server.IPv4,
		ImageName:          out.Server.ImageName,
		DefaultUser:        out.Server.DefaultUser,
		DefaultPassword:    out.Server.DefaultPassword,
	}, nil
}

// CreateDisk создаёт блочное устройство.
func (d *EVCloudDriver) CreateDisk(ctx context.Context, backend *models.Backend, sess *Session, spec DiskSpec) (*CreatedDisk, error) {
	body := map[string]any{
		"size":     spec.SizeGiB,
		"azone_id": spec.AzoneID,
		"remarks":  spec.Remark,
	}

	var out struct {
		Disk evcloudDisk `json:"disk"`
	}
	status, err := d.doJSON(ctx, http.MethodPost, backend.Endpoint+"/api/v3/disk/", sess.Token, body, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, &APIError{Code: strconv.Itoa(status), Message: "unexpected create disk status"}
	}

	return &CreatedDisk{ProviderDiskID: out.Disk.UUID, Name: out.Disk.Name}, nil
}

// DeleteDisk удаляет блочное устройство. Уже отсутствующий диск — успех.
func (d *EVCloudDriver) DeleteDisk(ctx context.Context, backend *models.Backend, sess *Session, providerDiskID string) error {
	u := backend.Endpoint + "/api/v3/disk/" + url.PathEscape(providerDiskID) + "/"

	status, err := d.doJSON(ctx, http.MethodDelete, u, sess.Token, nil, nil)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusNoContent, http.StatusOK, http.StatusNotFound:
		return nil
	default:
		return &APIError{Code: strconv.Itoa(status), Message: "unexpected delete disk status"}
	}
}

// DescribeDisk запрашивает сведения о блочном устройстве.
func (d *EVCloudDriver) DescribeDisk(ctx context.Context, backend *models.Backend, sess *Session, providerDiskID string) (*DiskDetail, error) {
	u := backend.Endpoint + "/api/v3/disk/" + url.PathEscape(providerDiskID) + "/"

	var out struct {
		Disk evcloudDisk `json:"disk"`
	}
	status, err := d.doJSON(ctx, http.MethodGet, u, sess.Token, nil, &out)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return &DiskDetail{ProviderDiskID: providerDiskID, Status: StatusMissing}, nil
	}
	if status != http.StatusOK {
		return nil, &APIError{Code: strconv.Itoa(status), Message: "unexpected describe disk status"}
	}

	return &DiskDetail{
		ProviderDiskID: out.Disk.UUID,
		Name:           out.Disk.Name,
		Status:         evcloudServerStatus(out.Disk.Status),
		SizeGiB:        out.Disk.SizeGiB,
	}, nil
}

// doJSON выполняет запрос и разбирает JSON-ответ.
// 401 отображается в ErrAuthenticationFailed, ошибки сети в TransportError,
// прочие ошибочные статусы с телом — в APIError.
func (d *EVCloudDriver) doJSON(ctx context.Context, method, rawURL, token string, body, out any) (int, error) {
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
	if token != "" {
		req.Header.Set("Authorization", "JWT "+token)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return resp.StatusCode, ErrAuthenticationFailed
	}

	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
		var apiErr evcloudError
		if decErr := json.NewDecoder(resp.Body).Decode(&apiErr); decErr == nil && apiErr.Message != "" {
			code := apiErr.Code
			if code == "" {
				code = strconv.Itoa(resp.StatusCode)
			}
			return resp.StatusCode, &APIError{Code: code, Message: apiErr.Message}
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

// evcloudServerStatus отображает статус EVCloud в общий статус драйвера.
func evcloudServerStatus(s string) ServerStatus {
	switch s {
	case "running", "active":
		return StatusRunning
	case "building", "creating":
		return StatusBuilding
	case "shutoff", "stopped":
		return StatusShutoff
	case "miss", "missing":
		return StatusMissing
	default:
		return StatusError
	}
}
