// Package main implements the fortctl CLI for manual operations against the
// fortressd HTTP server.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/fortressd/internal/tenant"
)

var (
	// serverURL is the base URL for the fortressd HTTP server
	serverURL string

	// tenancy flags shared by ingest and ask
	tenantID   string
	deptID     string
	userID     string
	collection string

	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fortctl",
	Short: "CLI for fortressd HTTP server operations",
	Long: `fortctl is a command-line interface for interacting with the fortressd HTTP server.
It provides commands for ingesting documents and asking questions against a namespace.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8600", "fortressd server URL")
	rootCmd.PersistentFlags().StringVar(&tenantID, "tenant", tenant.DefaultTenantID(), "tenant identifier")
	rootCmd.PersistentFlags().StringVar(&deptID, "dept", "general", "department identifier")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "user identifier (user isolation mode only)")
	rootCmd.PersistentFlags().StringVar(&collection, "collection", "", "collection name (default knowledgebase)")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(healthCmd)
}

// HealthResponse matches internal/http/server.go HealthResponse
type HealthResponse struct {
	Status string `json:"status"`
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check fortressd server health",
	Long: `Check the health status of the fortressd HTTP server.

Examples:
  # Check health
  fortctl health

  # Check health on a different server
  fortctl health --server http://localhost:9100`,
	RunE: runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/health", serverURL)

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to %s: %v\n", url, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	var healthResp HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Server Status: %s\n", healthResp.Status)
	return nil
}

// responseError renders a non-200 response as an error, including the body.
func responseError(resp *http.Response) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
	}
	return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
}
