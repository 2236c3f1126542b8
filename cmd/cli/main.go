package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	apiKey    string

	execMode       string
	execTimeoutSec int
	paramsJSON     string
	historyLimit   int
)

func main() {
	root := &cobra.Command{
		Use:   "plugin-cli",
		Short: "CLI client for plugin-exec-engine",
	}

	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	root.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("PLUGIN_ENGINE_API_KEY"), "API key")

	// Execute command
	execCmd := &cobra.Command{
		Use:   "exec [plugin]",
		Short: "Execute a plugin",
		Args:  cobra.ExactArgs(1),
		RunE:  runExec,
	}
	execCmd.Flags().StringVarP(&paramsJSON, "params", "p", "{}", "Parameters as a JSON object")
	execCmd.Flags().StringVarP(&execMode, "mode", "m", "", "Execution mode (direct, thread, process, sandboxed)")
	execCmd.Flags().IntVar(&execTimeoutSec, "timeout", 0, "Timeout in seconds (0 = server default)")
	root.AddCommand(execCmd)

	// Cancel command
	root.AddCommand(&cobra.Command{
		Use:   "cancel [request-id]",
		Short: "Cancel an in-flight execution",
		Args:  cobra.ExactArgs(1),
		RunE:  runCancel,
	})

	// Active executions
	root.AddCommand(&cobra.Command{
		Use:   "active",
		Short: "List in-flight executions",
		RunE: func(_ *cobra.Command, _ []string) error {
			return getJSON("/executions/active")
		},
	})

	// History
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent executions",
		RunE: func(_ *cobra.Command, _ []string) error {
			return getJSON(fmt.Sprintf("/executions/history?limit=%d", historyLimit))
		},
	}
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum entries to return")
	root.AddCommand(historyCmd)

	// Registered plugins
	root.AddCommand(&cobra.Command{
		Use:   "plugins",
		Short: "List registered plugins",
		RunE: func(_ *cobra.Command, _ []string) error {
			return getJSON("/plugins")
		},
	})

	// Engine stats
	root.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show engine statistics",
		RunE: func(_ *cobra.Command, _ []string) error {
			return getJSON("/stats")
		},
	})

	// Health check
	root.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(_ *cobra.Command, _ []string) error {
			return getJSON("/health")
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runExec(cmd *cobra.Command, args []string) error {
	var params map[string]any
	if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
		return fmt.Errorf("parsing --params: %w", err)
	}

	payload := map[string]any{
		"plugin": args[0],
		"params": params,
	}
	if execMode != "" {
		payload["mode"] = execMode
	}
	if execTimeoutSec > 0 {
		payload["timeout_seconds"] = execTimeoutSec
	}

	body, _ := json.Marshal(payload)

	req, err := http.NewRequest("POST", serverURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	client := &http.Client{Timeout: 6 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	// Pretty print
	formatted, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(formatted))

	// Non-completed executions exit non-zero so scripts can branch on it.
	if status, ok := result["status"].(string); ok && status != "completed" {
		os.Exit(1)
	}

	return nil
}

func runCancel(_ *cobra.Command, args []string) error {
	req, err := http.NewRequest("DELETE", serverURL+"/executions/"+args[0], nil)
	if err != nil {
		return err
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var result map[string]any
	json.NewDecoder(resp.Body).Decode(&result)
	formatted, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(formatted))
	return nil
}

func getJSON(path string) error {
	req, err := http.NewRequest("GET", serverURL+path, nil)
	if err != nil {
		return err
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var result any
	json.NewDecoder(resp.Body).Decode(&result)
	formatted, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(formatted))
	return nil
}
