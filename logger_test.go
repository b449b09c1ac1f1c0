package fsum

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fsum/source"
)

func TestSum_LogsRunFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	data := testData(t, 1000)
	_, err := Sum(context.Background(), source.Bytes(data), func(o *Options) {
		o.Logger = logger
	})
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "digest completed", record["msg"])
	require.Equal(t, float64(1), record["threads"])
	require.Equal(t, float64(1000), record["bytes"])
}

func TestLoggerWithHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	logger.WithThreads(4).WithBytes(1 << 20).LogDigest(context.Background(), StatusIncomplete, nil)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "digest finished early", record["msg"])
	require.Equal(t, float64(4), record["threads"])
	require.Equal(t, float64(1<<20), record["bytes"])
	require.Equal(t, "incomplete", record["status"])
}
