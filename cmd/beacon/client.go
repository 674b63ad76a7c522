package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// apiClient talks to a running Beacon daemon.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(port int) *apiClient {
	return &apiClient{
		baseURL: fmt.Sprintf("http://localhost:%d", port),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) post(path string, body any) (map[string]any, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", &buf)
	if err != nil {
		return nil, fmt.Errorf("is the daemon running? %w", err)
	}
	return decodeResponse(resp)
}

func (c *apiClient) get(path string) (map[string]any, error) {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("is the daemon running? %w", err)
	}
	return decodeResponse(resp)
}

func decodeResponse(resp *http.Response) (map[string]any, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("unexpected response: %s", data)
		}
	}
	if resp.StatusCode >= 400 {
		if msg, ok := out["error"].(string); ok {
			return out, fmt.Errorf("%s", msg)
		}
		return out, fmt.Errorf("daemon returned %s", resp.Status)
	}
	return out, nil
}

func clientPortFlag(cmd *cobra.Command, port *int) {
	cmd.Flags().IntVarP(port, "port", "p", 8700, "daemon API port")
}

func newTriggerCmd() *cobra.Command {
	var (
		port       int
		text       string
		gesture    string
		confidence float64
		reason     string
	)

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Trigger an emergency on the running daemon",
		Long:  "Opens a confirmation window: manual by default, voice with --text, gesture with --gesture.",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{"type": "manual", "reason": reason}
			switch {
			case text != "":
				payload = map[string]any{"type": "voice", "text": text, "confidence": confidence}
			case gesture != "":
				payload = map[string]any{"type": "gesture", "gesture": gesture, "confidence": confidence}
			}

			resp, err := newAPIClient(port).post("/api/emergency/trigger", payload)
			out := cmd.OutOrStdout()
			if err != nil {
				if accepted, ok := resp["accepted"].(bool); ok && !accepted {
					fmt.Fprintln(out, "Trigger rejected: a confirmation window is already open or the input did not match.")
					return nil
				}
				return err
			}
			fmt.Fprintln(out, "Emergency triggered. Confirm or cancel within the confirmation window.")
			if kw, ok := resp["keyword"].(string); ok {
				fmt.Fprintf(out, "Matched keyword: %s\n", kw)
			}
			return nil
		},
	}

	clientPortFlag(cmd, &port)
	cmd.Flags().StringVar(&text, "text", "", "transcribed speech to match against emergency keywords")
	cmd.Flags().StringVar(&gesture, "gesture", "", "detected gesture type")
	cmd.Flags().Float64Var(&confidence, "confidence", 1.0, "recognition confidence (0-1)")
	cmd.Flags().StringVar(&reason, "reason", "", "reason for a manual trigger")
	return cmd
}

func newConfirmCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Confirm the pending emergency",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := newAPIClient(port).post("/api/emergency/confirm", nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Confirmation sent.")
			return nil
		},
	}

	clientPortFlag(cmd, &port)
	return cmd
}

func newCancelCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the pending emergency",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := newAPIClient(port).post("/api/emergency/cancel", nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cancellation sent.")
			return nil
		},
	}

	clientPortFlag(cmd, &port)
	return cmd
}

func newStatusCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newAPIClient(port).get("/api/emergency/status")
			if err != nil {
				return err
			}
			pretty, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
			return nil
		},
	}

	clientPortFlag(cmd, &port)
	return cmd
}
