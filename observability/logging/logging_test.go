package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWithOptionsRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn := SetupWithOptions("reward-campaign", "test", Options{Output: &buf, Level: slog.LevelDebug})
	defer func() { require.NoError(t, closeFn()) }()

	logger.Debug("contributor added", slog.String("run_id", "r-1"), MaskField("keystore", "/secret/path"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "contributor added", entry["message"])
	require.Equal(t, "DEBUG", entry["severity"])
	require.Equal(t, "reward-campaign", entry["service"])
	require.Equal(t, "test", entry["env"])
	require.Equal(t, "r-1", entry["run_id"])
	require.Equal(t, RedactedValue, entry["keystore"])
	require.Contains(t, entry, "timestamp")
}

func TestSetupWithOptionsFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := SetupWithOptions("svc", "", Options{Output: &buf})
	logger.Debug("hidden")
	require.Zero(t, buf.Len())
}

func TestSetupWithOptionsWritesFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "run.log")
	logger, closeFn := SetupWithOptions("svc", "", Options{Output: &buf, File: path, MaxSizeMB: 1})
	logger.Info("persisted")
	require.NoError(t, closeFn())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(contents), `"message":"persisted"`))
	require.Equal(t, buf.String(), string(contents))
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("")
	require.NoError(t, err)
	require.Equal(t, slog.LevelInfo, level)
	level, err = ParseLevel("DEBUG")
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, level)
	_, err = ParseLevel("chatty")
	require.Error(t, err)
}

func TestMaskField(t *testing.T) {
	require.Equal(t, "ws://node:9944", MaskField("endpoint", "ws://node:9944").Value.String())
	require.Equal(t, "CAMPAIGN_PASSPHRASE", MaskField("passphrase_env", "CAMPAIGN_PASSPHRASE").Value.String())
	require.Equal(t, RedactedValue, MaskField("reason", "ok").Value.String())
	require.Equal(t, RedactedValue, MaskField("passphrase", "hunter2").Value.String())
	require.Equal(t, "", MaskField("passphrase", "").Value.String())
	require.True(t, IsAllowlisted("Run-ID"))
}

func TestSensitiveFieldsRedactedByHandler(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := SetupWithOptions("svc", "", Options{Output: &buf})

	logger.Info("signer ready",
		slog.String("passphrase", "hunter2"),
		slog.String("Bearer-Secret", "s3cret"),
		slog.String("keystore", "/keys/signer.json"),
		slog.String("token", ""),
		slog.String("account", "5Grw"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, RedactedValue, entry["passphrase"])
	require.Equal(t, RedactedValue, entry["Bearer-Secret"])
	require.Equal(t, RedactedValue, entry["keystore"])
	require.Equal(t, "", entry["token"])
	require.Equal(t, "5Grw", entry["account"])
	require.NotContains(t, buf.String(), "hunter2")
	require.NotContains(t, buf.String(), "s3cret")
}

func TestIsSensitive(t *testing.T) {
	for _, key := range []string{"passphrase", "PASSWORD", "private-key", " authorization "} {
		require.True(t, IsSensitive(key), key)
	}
	for _, key := range []string{"passphrase_env", "endpoint", "who"} {
		require.False(t, IsSensitive(key), key)
	}
}
