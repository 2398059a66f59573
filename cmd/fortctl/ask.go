package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	askTopK  int
	askTopN  int
	askDebug bool
)

// QueryRequest matches internal/http/server.go QueryRequest
type QueryRequest struct {
	TenantID   string `json:"tenant_id"`
	DeptID     string `json:"dept_id"`
	UserID     string `json:"user_id,omitempty"`
	Collection string `json:"collection,omitempty"`
	Question   string `json:"question"`
	TopK       int    `json:"top_k,omitempty"`
	TopN       int    `json:"top_n,omitempty"`
	Debug      bool   `json:"debug,omitempty"`
}

// QueryResponse matches internal/http/server.go QueryResponse
type QueryResponse struct {
	Answer  string `json:"answer"`
	Sources []struct {
		Source string `json:"source"`
		Pages  string `json:"pages"`
	} `json:"sources"`
	LatencyMS struct {
		Retrieval  int64 `json:"retrieval"`
		Rerank     int64 `json:"rerank"`
		Generation int64 `json:"generation"`
		Total      int64 `json:"total"`
	} `json:"latency_ms"`
	Retrieved []struct {
		ID    string  `json:"id"`
		Score float32 `json:"score"`
	} `json:"retrieved,omitempty"`
}

// askCmd asks a question against the tenant's index
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question against the tenant's index",
	Long: `Ask a question and print the generated answer with source citations.

Examples:
  # Ask against your default namespace
  fortctl ask "What is the travel reimbursement limit?"

  # Ask with wider retrieval
  fortctl ask --top-k 16 --top-n 6 "Who approves contracts?"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "candidates to retrieve (0 = server default)")
	askCmd.Flags().IntVar(&askTopN, "top-n", 0, "candidates to keep after rerank (0 = server default)")
	askCmd.Flags().BoolVar(&askDebug, "debug", false, "include retrieved candidates in the output")
}

func runAsk(cmd *cobra.Command, args []string) error {
	reqBody := QueryRequest{
		TenantID:   tenantID,
		DeptID:     deptID,
		UserID:     userID,
		Collection: collection,
		Question:   args[0],
		TopK:       askTopK,
		TopN:       askTopN,
		Debug:      askDebug,
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/query", serverURL)
	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: 2 * time.Minute,
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	var queryResp QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&queryResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Println(queryResp.Answer)

	if len(queryResp.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range queryResp.Sources {
			fmt.Printf("  - %s (pages %s)\n", src.Source, src.Pages)
		}
	}

	fmt.Printf("\nLatency: retrieval %dms, rerank %dms, generation %dms, total %dms\n",
		queryResp.LatencyMS.Retrieval,
		queryResp.LatencyMS.Rerank,
		queryResp.LatencyMS.Generation,
		queryResp.LatencyMS.Total)

	if askDebug && len(queryResp.Retrieved) > 0 {
		fmt.Println("\nRetrieved candidates:")
		for _, hit := range queryResp.Retrieved {
			fmt.Printf("  %.4f  %s\n", hit.Score, hit.ID)
		}
	}

	return nil
}
