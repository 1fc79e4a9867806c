// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"bytes"
	"encoding/json"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(fn func()) string {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer log.SetOutput(log.Writer())
	fn()
	return buf.String()
}

func TestLoggerEmitsValidJSON(t *testing.T) {
	l := New("advisor")

	out := captureOutput(func() {
		l.Info("req-1", "query accepted", map[string]interface{}{"stage": "perceive"})
	})

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entry))
	assert.Equal(t, INFO, entry.Level)
	assert.Equal(t, "advisor", entry.Component)
	assert.Equal(t, "req-1", entry.RequestID)
	assert.Equal(t, "query accepted", entry.Message)
	assert.Equal(t, "perceive", entry.Fields["stage"])
	assert.NotEmpty(t, entry.Timestamp)
}

func TestErrorWithAttachesError(t *testing.T) {
	l := New("router")

	out := captureOutput(func() {
		l.ErrorWith("req-2", "provider call failed", assert.AnError, nil)
	})

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entry))
	assert.Equal(t, ERROR, entry.Level)
	assert.Contains(t, entry.Fields["error"], "assert.AnError")
}

func TestInfoWithDuration(t *testing.T) {
	l := New("approval")

	out := captureOutput(func() {
		l.InfoWithDuration("req-3", "request resolved", 12.5, nil)
	})

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entry))
	assert.Equal(t, 12.5, entry.Fields["duration_ms"])
}
