package tokenstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_SuccessResetsFailureStreak(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	h, err := OpenHistory(path)
	require.NoError(t, err)

	mtime := time.Now()
	h.RecordRefreshResult("glm.default", ModeAuto, false, 10, &mtime)
	h.RecordRefreshResult("glm.default", ModeAuto, false, 10, &mtime)
	agg := h.RecordRefreshResult("glm.default", ModeAuto, true, 10, &mtime)

	assert.Equal(t, 0, agg.FailureStreak)
	assert.False(t, agg.AutoSuspended)
	assert.Equal(t, 1, agg.RefreshSuccesses)
	assert.Equal(t, 2, agg.RefreshFailures)
	assert.Equal(t, agg.RefreshSuccesses+agg.RefreshFailures, agg.TotalAttempts)
}

// Scenario 6 from spec §8: three consecutive auto failures with a known
// mtime suspends the token.
func TestHistory_AutoSuspendAfterThreeFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	h, err := OpenHistory(path)
	require.NoError(t, err)

	mtime := time.Now()
	h.RecordRefreshResult("qwen.default", ModeAuto, false, 5, &mtime)
	h.RecordRefreshResult("qwen.default", ModeAuto, false, 5, &mtime)
	agg := h.RecordRefreshResult("qwen.default", ModeAuto, false, 5, &mtime)

	assert.Equal(t, 3, agg.FailureStreak)
	assert.True(t, agg.AutoSuspended)
	assert.NotNil(t, agg.SuspendedAt)
}

func TestHistory_AutoSuspendRequiresKnownMtime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	h, err := OpenHistory(path)
	require.NoError(t, err)

	h.RecordRefreshResult("qwen.default", ModeAuto, false, 5, nil)
	h.RecordRefreshResult("qwen.default", ModeAuto, false, 5, nil)
	agg := h.RecordRefreshResult("qwen.default", ModeAuto, false, 5, nil)

	assert.Equal(t, 3, agg.FailureStreak)
	assert.False(t, agg.AutoSuspended, "no mtime observed yet, so suspension must not trigger")
}

func TestHistory_ManualRefreshNeverIncrementsFailureStreak(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	h, err := OpenHistory(path)
	require.NoError(t, err)

	mtime := time.Now()
	h.RecordRefreshResult("iflow.default", ModeAuto, false, 5, &mtime)
	h.RecordRefreshResult("iflow.default", ModeAuto, false, 5, &mtime)
	agg := h.RecordRefreshResult("iflow.default", ModeManual, false, 5, &mtime)

	assert.Equal(t, 2, agg.FailureStreak, "manual failure must not advance the auto streak")
}

func TestHistory_ManualSuccessClearsSuspension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	h, err := OpenHistory(path)
	require.NoError(t, err)

	mtime := time.Now()
	h.RecordRefreshResult("iflow.default", ModeAuto, false, 5, &mtime)
	h.RecordRefreshResult("iflow.default", ModeAuto, false, 5, &mtime)
	h.RecordRefreshResult("iflow.default", ModeAuto, false, 5, &mtime)
	require.True(t, h.Get("iflow.default").AutoSuspended)

	agg := h.RecordRefreshResult("iflow.default", ModeManual, true, 5, &mtime)
	assert.False(t, agg.AutoSuspended)
	assert.Equal(t, 0, agg.FailureStreak)
}

func TestHistory_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	h, err := OpenHistory(path)
	require.NoError(t, err)

	mtime := time.Now()
	h.RecordRefreshResult("glm.default", ModeAuto, true, 5, &mtime)

	reopened, err := OpenHistory(path)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Get("glm.default").RefreshSuccesses)
}

func TestHistory_ClearSuspension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	h, err := OpenHistory(path)
	require.NoError(t, err)

	mtime := time.Now()
	h.RecordRefreshResult("qwen.default", ModeAuto, false, 5, &mtime)
	h.RecordRefreshResult("qwen.default", ModeAuto, false, 5, &mtime)
	h.RecordRefreshResult("qwen.default", ModeAuto, false, 5, &mtime)
	require.True(t, h.Get("qwen.default").AutoSuspended)

	h.ClearSuspension("qwen.default")
	assert.False(t, h.Get("qwen.default").AutoSuspended)
}
