// Package client twin-data HTTP API 客户端
package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"twin-data/internal/domain"
	httpapi "twin-data/internal/http"
	"twin-data/internal/journal"
	"twin-data/internal/registry"
)

// Client twin-data API 客户端
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// New 创建客户端
func New(baseURL string, logger *zap.Logger) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(3*time.Second).
		SetHeader("Accept", "application/json")
	return &Client{httpClient: c, logger: logger}
}

type list[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// APIError 服务端返回 code != 2000
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twin-data API error: %s (status: %d)", e.Message, e.Status)
}

// call 发送请求并解出 result；非成功响应转换为 *APIError
func call[T any](ctx context.Context, c *Client, method, path string, body any) (T, string, error) {
	var env httpapi.Result[T]
	req := c.httpClient.R().SetContext(ctx).SetResult(&env).SetError(&env)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Error("twin-data API call failed", zap.String("path", path), zap.Error(err))
		var zero T
		return zero, "", fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	if resp.IsError() || env.Code != httpapi.ResultSuccess {
		var zero T
		msg := env.Message
		if msg == "" {
			msg = resp.Status()
		}
		return zero, "", &APIError{Status: resp.StatusCode(), Message: msg}
	}
	warning := ""
	if env.Type == "warning" {
		warning = env.Message
	}
	return env.Result, warning, nil
}

// ListSensors GET /api/v1/sensors
func (c *Client) ListSensors(ctx context.Context, f registry.Filter) ([]domain.Sensor, error) {
	q := url.Values{}
	if f.Kind != "" {
		q.Set("kind", string(f.Kind))
	}
	if f.Type != "" {
		q.Set("type", f.Type)
	}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	path := "/api/v1/sensors"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	res, _, err := call[list[domain.Sensor]](ctx, c, resty.MethodGet, path, nil)
	return res.Items, err
}

// MappingRows GET /api/v1/mapping/rows
func (c *Client) MappingRows(ctx context.Context) ([]domain.MappingRow, error) {
	res, _, err := call[list[domain.MappingRow]](ctx, c, resty.MethodGet, "/api/v1/mapping/rows", nil)
	return res.Items, err
}

// AddReading 返回的 warning 非空表示值超出量程（仍已保存）
func (c *Client) AddReading(ctx context.Context, sensorID string, e journal.Entry) (journal.Result, string, error) {
	return call[journal.Result](ctx, c, resty.MethodPost, "/api/v1/journal/"+url.PathEscape(sensorID), e)
}

// History GET /api/v1/journal/history
func (c *Client) History(ctx context.Context) ([]domain.HistoryEntry, error) {
	res, _, err := call[list[domain.HistoryEntry]](ctx, c, resty.MethodGet, "/api/v1/journal/history", nil)
	return res.Items, err
}

// ExportSensors 手动传感器定义（原始 JSON 文件内容）
func (c *Client) ExportSensors(ctx context.Context) ([]byte, error) {
	resp, err := c.httpClient.R().SetContext(ctx).Get("/api/v1/sensors/export")
	if err != nil {
		return nil, fmt.Errorf("failed to export sensors: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{Status: resp.StatusCode(), Message: resp.Status()}
	}
	return resp.Body(), nil
}

// ImportSensors POST /api/v1/sensors/import
func (c *Client) ImportSensors(ctx context.Context, data []byte) (registry.ImportResult, error) {
	res, _, err := call[registry.ImportResult](ctx, c, resty.MethodPost, "/api/v1/sensors/import", data)
	return res, err
}
