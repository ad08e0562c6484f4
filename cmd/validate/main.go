// Package main checks the endpoints of a running visor server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type endpoint struct {
	path        string
	contentType string
	contains    []string
	// statuses accepted besides 200; chart and export endpoints answer
	// 404/409 when the workbook has no data
	also []int
}

var endpoints = []endpoint{
	{path: "/dashboard", contentType: "text/html", contains: []string{"Visor CMg", `id="controls"`}},
	{path: "/dashboard/charts/data/cmg", contentType: "application/json", also: []int{http.StatusNotFound}},
	{path: "/dashboard/charts/data/caudal", contentType: "application/json", also: []int{http.StatusNotFound}},
	{path: "/dashboard/export", contentType: "spreadsheetml", also: []int{http.StatusConflict}},

	{path: "/api/health", contentType: "application/json", contains: []string{`"status":"ok"`}},
	{path: "/api/version", contentType: "application/json", contains: []string{`"name":"cmgvisor"`}},
	{path: "/api/status", contentType: "application/json", contains: []string{`"load"`, `"catalog"`}},
	{path: "/metrics", contentType: "text/plain", contains: []string{"visor_load_total"}},
}

type result struct {
	endpoint endpoint
	status   int
	duration time.Duration
	err      error
}

func main() {
	url := flag.String("url", "http://localhost:8080", "Base URL of the server to validate")
	verbose := flag.Bool("v", false, "Verbose output")
	timeout := flag.Int("timeout", 10, "Request timeout in seconds")
	flag.Parse()

	client := &http.Client{
		Timeout: time.Duration(*timeout) * time.Second,
	}

	fmt.Printf("Validating server at %s\n", *url)
	fmt.Printf("Testing %d endpoints...\n\n", len(endpoints))

	passed, failed := run(client, *url, endpoints, *verbose, os.Stdout)

	fmt.Printf("\n========================================\n")
	fmt.Printf("Results: %d passed, %d failed\n", passed, failed)

	if failed > 0 {
		os.Exit(1)
	}
}

func run(client *http.Client, baseURL string, eps []endpoint, verbose bool, out io.Writer) (passed, failed int) {
	for _, ep := range eps {
		r := validateEndpoint(client, baseURL, ep)
		if r.err != nil {
			failed++
			fmt.Fprintf(out, "FAIL GET %s\n", ep.path)
			fmt.Fprintf(out, "     Error: %v\n", r.err)
			continue
		}
		passed++
		if verbose {
			fmt.Fprintf(out, "PASS GET %s %d (%v)\n", ep.path, r.status, r.duration)
		}
	}
	return passed, failed
}

func (ep endpoint) accepts(status int) bool {
	if status == http.StatusOK {
		return true
	}
	for _, s := range ep.also {
		if s == status {
			return true
		}
	}
	return false
}

func validateEndpoint(client *http.Client, baseURL string, ep endpoint) result {
	start := time.Now()

	resp, err := client.Get(baseURL + ep.path)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("failed to read body: %w", err)}
	}

	r := result{
		endpoint: ep,
		status:   resp.StatusCode,
		duration: time.Since(start),
	}

	if !ep.accepts(resp.StatusCode) {
		r.err = fmt.Errorf("unexpected status %d", resp.StatusCode)
		return r
	}
	// Alternative statuses carry an error body, not the endpoint payload.
	if resp.StatusCode != http.StatusOK {
		return r
	}

	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, ep.contentType) {
		r.err = fmt.Errorf("wrong content type: got %q, expected %q", ct, ep.contentType)
		return r
	}

	if ep.contentType == "application/json" {
		var js interface{}
		if err := json.Unmarshal(body, &js); err != nil {
			r.err = fmt.Errorf("invalid JSON: %w", err)
			return r
		}
	}

	for _, needle := range ep.contains {
		if !strings.Contains(string(body), needle) {
			r.err = fmt.Errorf("missing expected content: %q", needle)
			return r
		}
	}

	return r
}
