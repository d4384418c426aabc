package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type rejection struct{}

func (rejection) Error() string  { return "rejected" }
func (rejection) Business() bool { return true }

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestExitMethodWithError_Levels(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(New(&buf, "debug", "json"))
	t.Cleanup(func() { Initialize("info", "text") })

	ExitMethodWithError("svc.Checkout", rejection{})
	assert.Contains(t, buf.String(), `"level":"WARN"`)

	buf.Reset()
	ExitMethodWithError("svc.Checkout", errors.New("connection refused"))
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
}

func TestStoreResult(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(New(&buf, "debug", "text"))
	t.Cleanup(func() { Initialize("info", "text") })

	StoreResult("UPDATE", 1, nil, "itemID", 7)
	assert.Contains(t, buf.String(), "Store call succeeded")
	assert.Contains(t, buf.String(), "rows_affected=1")
}
