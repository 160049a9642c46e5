package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	timeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chainledger-cli",
		Short: "ChainLedger CLI tool",
		Long:  `A command line interface for interacting with the ChainLedger API.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the ChainLedger API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	chainCmd := &cobra.Command{
		Use:   "chain",
		Short: "Hash chain operations",
	}
	chainCmd.AddCommand(verifyCmd())
	chainCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(chainCmd)

	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(reportCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [chain]",
		Short: "Walk a hash chain and report the first invalid record, if any",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			body, status := get(fmt.Sprintf("/api/v1/chains/%s/verify", args[0]))
			if status != http.StatusOK {
				fmt.Printf("Verification request failed (Status: %d)\nResponse: %s\n", status, truncate(string(body), 500))
				os.Exit(1)
			}

			var result struct {
				Chain                string `json:"chain_id"`
				Valid                bool   `json:"valid"`
				CheckedCount         int64  `json:"checked_count"`
				FirstInvalidPosition *int64 `json:"first_invalid_position"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				fmt.Printf("Failed to parse response: %v\n", err)
				os.Exit(1)
			}

			if !result.Valid {
				fmt.Printf("Chain %s TAMPERED\n", result.Chain)
				if result.FirstInvalidPosition != nil {
					fmt.Printf("First invalid position: %d\n", *result.FirstInvalidPosition)
				}
				fmt.Printf("Records checked: %d\n", result.CheckedCount)
				os.Exit(1)
			}

			fmt.Printf("Chain %s VALID\n", result.Chain)
			fmt.Printf("Records checked: %d\n", result.CheckedCount)
		},
	}
}

func exportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export [chain]",
		Short: "Export a signed chain bundle",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			body, status := get(fmt.Sprintf("/api/v1/chains/%s/export", args[0]))
			if status != http.StatusOK {
				fmt.Printf("Export request failed (Status: %d)\nResponse: %s\n", status, truncate(string(body), 500))
				os.Exit(1)
			}

			if out == "" {
				os.Stdout.Write(body)
				fmt.Println()
				return
			}

			if err := os.WriteFile(out, body, 0o644); err != nil {
				fmt.Printf("Failed to write bundle: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Bundle written to %s\n", out)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Write the bundle to a file instead of stdout")
	return cmd
}

func reconcileCmd() *cobra.Command {
	var (
		externalBalance string
		tolerance       string
	)

	cmd := &cobra.Command{
		Use:   "reconcile [account-id]",
		Short: "Reconcile an account against an external balance",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			payload := map[string]string{"external_balance": externalBalance}
			if tolerance != "" {
				payload["tolerance"] = tolerance
			}

			body, status := post(fmt.Sprintf("/api/v1/accounts/%s/reconcile", args[0]), payload)

			var result map[string]any
			if err := json.Unmarshal(body, &result); err != nil {
				fmt.Printf("Reconciliation request failed (Status: %d)\nResponse: %s\n", status, truncate(string(body), 500))
				os.Exit(1)
			}

			printJSON(result)
			if status != http.StatusOK {
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVar(&externalBalance, "external", "", "External balance to reconcile against")
	cmd.Flags().StringVar(&tolerance, "tolerance", "", "Acceptable absolute drift (default 0.01)")
	_ = cmd.MarkFlagRequired("external")
	return cmd
}

func reportCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate a compliance report for a period",
		Run: func(cmd *cobra.Command, args []string) {
			path := "/api/v1/reports/compliance"
			sep := "?"
			if from != "" {
				path += sep + "from=" + from
				sep = "&"
			}
			if to != "" {
				path += sep + "to=" + to
			}

			body, status := get(path)
			if status != http.StatusOK {
				fmt.Printf("Report request failed (Status: %d)\nResponse: %s\n", status, truncate(string(body), 500))
				os.Exit(1)
			}

			var report map[string]any
			if err := json.Unmarshal(body, &report); err != nil {
				fmt.Printf("Failed to parse response: %v\n", err)
				os.Exit(1)
			}

			printJSON(report)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Period start (RFC3339, default 24h ago)")
	cmd.Flags().StringVar(&to, "to", "", "Period end (RFC3339, default now)")
	return cmd
}

func get(path string) ([]byte, int) {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(baseURL + path)
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return body, resp.StatusCode
}

func post(path string, payload any) ([]byte, int) {
	data, err := json.Marshal(payload)
	if err != nil {
		fmt.Printf("Failed to encode request: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(baseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return body, resp.StatusCode
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("Failed to encode output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
