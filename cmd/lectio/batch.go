package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// runBatch submits a directory of page images to a running daemon.
func runBatch(args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	inputDir := fs.String("input", "", "Directory of page images to process (required)")
	engine := fs.String("engine", "tesseract", "OCR engine: tesseract or ocropus")
	language := fs.String("lang", "", "Recognition language / spell check dictionary")
	model := fs.String("model", "", "Ocropus recognition model name")
	fs.Parse(args)

	if *inputDir == "" {
		fmt.Fprintln(os.Stderr, "batch: -input is required")
		os.Exit(2)
	}

	// The daemon reads the directory, so pass an absolute path
	abs, err := filepath.Abs(*inputDir)
	if err != nil {
		logger.Fatal().Err(err).Str("input", *inputDir).Msg("Failed to resolve input directory")
	}

	payload, err := json.Marshal(map[string]string{
		"input_dir": abs,
		"engine":    *engine,
		"language":  *language,
		"model":     *model,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to encode request")
	}

	resp, err := apiClient().Post(apiURL("/api/batches"), "application/json", bytes.NewReader(payload))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to reach server - is the daemon running?")
	}
	defer resp.Body.Close()

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		logger.Fatal().Err(err).Msg("Failed to decode server response")
	}
	if resp.StatusCode != http.StatusCreated {
		fmt.Fprintf(os.Stderr, "batch rejected: %s\n", created.Error)
		os.Exit(1)
	}

	fmt.Printf("Batch %s created (%s)\n", created.ID, created.Status)
}

func apiClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func apiURL(path string) string {
	return fmt.Sprintf("http://%s:%d%s", config.Server.Host, config.Server.Port, path)
}
