package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	ingestDocID   string
	ingestVersion string
)

// IngestResponse matches internal/http/server.go IngestResponse
type IngestResponse struct {
	Status    string `json:"status"`
	Namespace string `json:"namespace"`
	DocID     string `json:"doc_id"`
	Version   string `json:"version"`
	Chunks    int    `json:"chunks"`
}

// ingestCmd uploads a document for ingestion
var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest a document into the tenant's index",
	Long: `Upload a document to the fortressd server for ingestion.

The document is chunked, embedded, and appended to the namespace index.
Re-ingesting identical content is skipped; changed content activates a new
version and deprecates the old one.

Examples:
  # Ingest with an explicit document ID and version
  fortctl ingest policy.pdf --doc policy --doc-version 2

  # Department-scoped ingestion for another tenant
  fortctl ingest handbook.pdf --tenant acme --dept hr --doc handbook --doc-version 1`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDocID, "doc", "", "document identifier (default: file name without extension)")
	ingestCmd.Flags().StringVar(&ingestVersion, "doc-version", "1", "document version label")
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := args[0]

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	docID := ingestDocID
	if docID == "" {
		base := filepath.Base(path)
		docID = strings.TrimSuffix(base, filepath.Ext(base))
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"tenant_id":  tenantID,
		"dept_id":    deptID,
		"user_id":    userID,
		"collection": collection,
		"doc_id":     docID,
		"version":    ingestVersion,
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := w.WriteField(key, value); err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
	}

	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/ingest", serverURL)
	httpReq, err := http.NewRequest("POST", url, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	client := &http.Client{
		Timeout: 5 * time.Minute,
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	var ingestResp IngestResponse
	if err := json.NewDecoder(resp.Body).Decode(&ingestResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	switch ingestResp.Status {
	case "skipped_duplicate":
		fmt.Printf("Skipped: %s is already the active content of %s in %s\n",
			path, ingestResp.DocID, ingestResp.Namespace)
	default:
		fmt.Printf("Ingested %s as %s v%s into %s (%d chunks)\n",
			path, ingestResp.DocID, ingestResp.Version, ingestResp.Namespace, ingestResp.Chunks)
	}

	return nil
}
