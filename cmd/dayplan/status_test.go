// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayplan/dayplan/pkg/errutil"
)

func probeServer(t *testing.T, readiness int) string {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz/liveness", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/healthz/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(readiness)
		if readiness == http.StatusOK {
			_, _ = w.Write([]byte("ok\n"))
			return
		}
		_, _ = w.Write([]byte("not ready\n"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestStatus_Healthy(t *testing.T) {
	addr := probeServer(t, http.StatusOK)
	out, err := execute(t, newStatusCmd(http.DefaultClient), "--metrics-addr", addr)
	require.NoError(t, err)
	assert.Regexp(t, `liveness\s+ok`, out)
	assert.Regexp(t, `readiness\s+ok`, out)
}

func TestStatus_NotReady(t *testing.T) {
	addr := probeServer(t, http.StatusServiceUnavailable)
	out, err := execute(t, newStatusCmd(http.DefaultClient), "--metrics-addr", addr)
	errutil.AssertErrorCode(t, err, "SERVER_UNHEALTHY")
	errutil.AssertErrorContext(t, err, "probe", "readiness")
	assert.Regexp(t, `readiness\s+failing\s+503 not ready`, out)
}

func TestStatus_JSON(t *testing.T) {
	addr := probeServer(t, http.StatusOK)
	out, err := execute(t, newStatusCmd(http.DefaultClient), "--metrics-addr", addr, "--json")
	require.NoError(t, err)

	var statuses []ProbeStatus
	require.NoError(t, json.Unmarshal([]byte(out), &statuses))
	require.Len(t, statuses, 2)
	assert.Equal(t, "liveness", statuses[0].Probe)
	assert.True(t, statuses[1].OK)
}

func TestStatus_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	out, err := execute(t, newStatusCmd(http.DefaultClient), "--metrics-addr", addr)
	errutil.AssertErrorCode(t, err, "SERVER_UNHEALTHY")
	assert.Regexp(t, `liveness\s+down\s+failed to connect`, out)
}

func TestStatus_DisabledMetrics(t *testing.T) {
	_, err := execute(t, newStatusCmd(http.DefaultClient), "--metrics-addr", "")
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestFormatStatusTable(t *testing.T) {
	out := formatStatusTable([]ProbeStatus{
		{Probe: "liveness", OK: true, Status: 200, Body: "ok"},
		{Probe: "readiness", Status: 503, Body: "not ready"},
	})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "PROBE"))
}
