// Package tapgatectl implements the operator CLI: thin HTTP calls against a
// running gateway with pretty-printed responses.
package tapgatectl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	UserID     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

var accepts = map[string]string{
	"json":    "application/json",
	"votable": "application/x-votable+xml",
	"html":    "text/html",
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("tapgatectl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "gateway base URL")
	userID := fs.String("user-id", defaults.UserID, "opaque user id sent as X-User-ID")
	format := fs.String("format", "json", "response format: json|votable|html")
	query := fs.String("query", "", "SQL statement for sync and submit")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 30s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}
	accept, ok := accepts[strings.TrimSpace(*format)]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "unknown format %q\n", *format)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	method := ""
	path := ""
	var form url.Values
	switch command {
	case "banner":
		method, path = http.MethodGet, "/"
	case "health":
		method, path = http.MethodGet, "/health"
	case "ready":
		method, path = http.MethodGet, "/ready"
	case "sync":
		if strings.TrimSpace(*query) == "" {
			_, _ = fmt.Fprintln(stderr, "sync requires -query")
			return 2
		}
		method, path = http.MethodPost, "/sync"
		form = url.Values{"query": []string{*query}}
	case "jobs":
		method, path = http.MethodPost, "/sync"
	case "submit":
		if strings.TrimSpace(*query) == "" {
			_, _ = fmt.Fprintln(stderr, "submit requires -query")
			return 2
		}
		method, path = http.MethodPost, "/async"
		form = url.Values{"query": []string{*query}}
	case "poll":
		if fs.NArg() < 2 {
			_, _ = fmt.Fprintln(stderr, "poll requires a job id")
			return 2
		}
		method, path = http.MethodGet, "/async/"+strings.TrimSpace(fs.Arg(1))+"/"
	case "abort":
		if fs.NArg() < 2 {
			_, _ = fmt.Fprintln(stderr, "abort requires a job id")
			return 2
		}
		method, path = http.MethodDelete, "/async/"+strings.TrimSpace(fs.Arg(1))
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + path
	code, responseBody, err := doRequest(ctx, client, method, endpoint, accept, *userID, form)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func doRequest(ctx context.Context, client *http.Client, method, endpoint, accept, userID string, form url.Values) (int, []byte, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", accept)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if strings.TrimSpace(userID) != "" {
		req.Header.Set("X-User-ID", strings.TrimSpace(userID))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: tapgatectl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  banner            GET /")
	_, _ = fmt.Fprintln(w, "  health            GET /health")
	_, _ = fmt.Fprintln(w, "  ready             GET /ready")
	_, _ = fmt.Fprintln(w, "  sync              POST /sync with -query")
	_, _ = fmt.Fprintln(w, "  jobs              POST /sync without a query (list own jobs)")
	_, _ = fmt.Fprintln(w, "  submit            POST /async with -query")
	_, _ = fmt.Fprintln(w, "  poll <job-id>     GET /async/<job-id>/")
	_, _ = fmt.Fprintln(w, "  abort <job-id>    DELETE /async/<job-id>")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
