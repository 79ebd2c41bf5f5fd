package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"twin-data/internal/domain"
	"twin-data/internal/journal"
	"twin-data/internal/registry"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(srv.URL, zap.NewNop())
	c.httpClient.SetRetryCount(0)
	return c
}

func TestListSensors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sensors", r.URL.Path)
		assert.Equal(t, "manual", r.URL.Query().Get("kind"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"code":2000,"type":"success","message":"ok","result":{"items":[{"id":"T-001","name":"A"}],"total":1}}`)
	})

	sensors, err := c.ListSensors(context.Background(), registry.Filter{Kind: domain.SensorKindManual})
	require.NoError(t, err)
	require.Len(t, sensors, 1)
	assert.Equal(t, "T-001", sensors[0].ID)
}

func TestAddReading_WarningAndError(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			_, _ = io.WriteString(w, `{"code":2000,"type":"warning","message":"больше максимального","result":{"sensorId":"T-005","reading":{"value":75}}}`)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"code":-1,"type":"error","message":"Заполните дату, время и значение","result":null}`)
	})

	res, warning, err := c.AddReading(context.Background(), "T-005", journal.Entry{Date: "2024-01-01", Time: "10:00", Value: "75"})
	require.NoError(t, err)
	assert.Equal(t, 75.0, res.Reading.Value)
	assert.Equal(t, "больше максимального", warning)

	_, _, err = c.AddReading(context.Background(), "T-005", journal.Entry{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Заполните дату, время и значение", apiErr.Message)
}

func TestExportImportSensors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/sensors/export":
			_, _ = io.WriteString(w, `[{"id":"T-001"}]`)
		case "/api/v1/sensors/import":
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, `[{"id":"T-001"}]`, string(body))
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"code":2000,"type":"success","message":"ok","result":{"imported":0,"skipped":1,"total":1}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	data, err := c.ExportSensors(context.Background())
	require.NoError(t, err)
	res, err := c.ImportSensors(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
}
