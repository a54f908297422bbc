package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ping(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func TestRun(t *testing.T) {
	c := NewChecker()
	c.Register("database", PingCheck(ping(nil), true))
	assert.Equal(t, StatusUp, c.Run(context.Background()).Status)

	c.Register("redis", PingCheck(ping(errors.New("refused")), false))
	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "refused", report.Components["redis"].Message)

	c.Register("database", PingCheck(ping(errors.New("closed")), true))
	assert.Equal(t, StatusDown, c.Run(context.Background()).Status)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("redis", PingCheck(ping(errors.New("refused")), false))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusDegraded, report.Status)

	c.Register("database", PingCheck(ping(errors.New("closed")), true))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	c.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDatabaseCheck(t *testing.T) {
	tests := []struct {
		name string
		path string
		docs uint32
		want Status
	}{
		{"none", "", 0, StatusDown},
		{"empty", "/data/db_1.rqdb", 0, StatusDegraded},
		{"serving", "/data/db_1.rqdb", 3, StatusUp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := DatabaseCheck(func() (string, uint32) { return tt.path, tt.docs })
			assert.Equal(t, tt.want, check(context.Background()).Status)
		})
	}
}

func TestRunBoundsSlowChecks(t *testing.T) {
	c := NewChecker()
	c.checkTimeout = 10 * time.Millisecond
	c.Register("kafka", PingCheck(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, false))

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Contains(t, report.Components["kafka"].Message, "deadline exceeded")
}
