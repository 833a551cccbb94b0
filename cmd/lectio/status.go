package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/ternarybob/lectio/internal/models"
)

// runStatus prints the state of a batch from a running daemon.
func runStatus(batchID string) {
	if batchID == "" {
		fmt.Fprintln(os.Stderr, "status: batch ID is required")
		os.Exit(2)
	}

	resp, err := apiClient().Get(apiURL("/api/batches/" + batchID))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to reach server - is the daemon running?")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "batch %s not found\n", batchID)
		os.Exit(1)
	}

	var b models.Batch
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		logger.Fatal().Err(err).Msg("Failed to decode server response")
	}

	fmt.Printf("Batch:     %s\n", b.ID)
	fmt.Printf("Status:    %s\n", b.Status)
	fmt.Printf("Documents: %d (%d finished)\n", len(b.Documents), b.DocsDone)
	for i, p := range b.Progress {
		fmt.Printf("Stage %d:   %d/%d completed, %d failed\n", i, p.Completed, p.Total, p.Failed)
	}
	for _, e := range b.Errors {
		fmt.Printf("Error:     %s (%s): %s\n", e.Document.Path, e.Task.Kind, e.Message)
	}
	for _, out := range b.Outputs {
		fmt.Printf("Output:    %s\n", out.String())
	}
}
