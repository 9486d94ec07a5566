// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/dayplan/dayplan/internal/config"
)

const statusTimeout = 2 * time.Second

// ProbeStatus holds the result of one health probe.
type ProbeStatus struct {
	Probe  string `json:"probe"`
	OK     bool   `json:"ok"`
	Status int    `json:"status,omitempty"`
	Body   string `json:"body,omitempty"`
	Error  string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
	client     *http.Client
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	return newStatusCmd(&http.Client{Timeout: statusTimeout})
}

func newStatusCmd(client *http.Client) *cobra.Command {
	cfg := &statusConfig{client: client}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running dayplan server",
		Long: `Query the liveness and readiness probes of a running server through its
metrics listener and report whether it is running and healthy.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().String("metrics-addr", config.Default().Metrics.Addr, "metrics/health address of the server")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

// runStatus executes the status command. It fails when any probe fails so
// scripts can rely on the exit code.
func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	settings, err := config.Read(config.Source{Path: path, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	addr := settings.Metrics.Addr
	if addr == "" {
		return oops.Code("CONFIG_INVALID").With("key", "metrics.addr").Errorf("metrics listener is disabled; status needs its address")
	}

	statuses := []ProbeStatus{
		queryProbe(cmd.Context(), cfg.client, addr, "liveness"),
		queryProbe(cmd.Context(), cfg.client, addr, "readiness"),
	}

	var output string
	if cfg.jsonOutput {
		output, err = formatStatusJSON(statuses)
		if err != nil {
			return err
		}
	} else {
		output = formatStatusTable(statuses)
	}
	cmd.Println(output)

	for _, s := range statuses {
		if !s.OK {
			return oops.Code("SERVER_UNHEALTHY").With("probe", s.Probe).Errorf("%s probe failed", s.Probe)
		}
	}
	return nil
}

// queryProbe calls /healthz/<probe> on addr.
func queryProbe(ctx context.Context, client *http.Client, addr, probe string) ProbeStatus {
	status := ProbeStatus{Probe: probe}
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/healthz/"+probe, nil)
	if err != nil {
		status.Error = fmt.Sprintf("failed to build request: %v", err)
		return status
	}
	resp, err := client.Do(req)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		status.Error = fmt.Sprintf("failed to read response: %v", err)
		return status
	}
	status.Status = resp.StatusCode
	status.Body = strings.TrimSpace(string(body))
	status.OK = resp.StatusCode == http.StatusOK
	return status
}

// formatStatusTable formats the probes as a human-readable table.
func formatStatusTable(statuses []ProbeStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "PROBE\tSTATUS\tDETAIL")
	_, _ = fmt.Fprintln(w, "-----\t------\t------")
	for _, s := range statuses {
		switch {
		case s.Error != "":
			_, _ = fmt.Fprintf(w, "%s\tdown\t%s\n", s.Probe, s.Error)
		case s.OK:
			_, _ = fmt.Fprintf(w, "%s\tok\t%s\n", s.Probe, s.Body)
		default:
			_, _ = fmt.Fprintf(w, "%s\tfailing\t%d %s\n", s.Probe, s.Status, s.Body)
		}
	}

	_ = w.Flush()
	return buf.String()
}

// formatStatusJSON formats the probes as JSON.
func formatStatusJSON(statuses []ProbeStatus) (string, error) {
	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return "", oops.Code("STATUS_FORMAT_FAILED").Wrap(err)
	}
	return string(data), nil
}
