// Package tabulactl is the command-line client for the tabula HTTP API.
package tabulactl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	TenantID   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

// request is what a command resolves to before it is sent.
type request struct {
	method      string
	path        string
	contentType string
	body        []byte
	// raw output is written as received instead of pretty-printed JSON.
	raw    bool
	output string
}

type command struct {
	name  string
	usage string
	build func(args []string, stdin io.Reader, stderr io.Writer) (request, error)
}

var errUsage = errors.New("invalid arguments")

var commands = []command{
	{name: "health", usage: "GET /v1/health", build: fixed(http.MethodGet, "/v1/health")},
	{name: "ready", usage: "GET /v1/ready", build: fixed(http.MethodGet, "/v1/ready")},
	{name: "tables", usage: "GET /v1/tables", build: fixed(http.MethodGet, "/v1/tables")},
	{name: "context", usage: "GET /v1/context", build: fixed(http.MethodGet, "/v1/context")},
	{name: "schema", usage: "[-f file|-] GET or PUT /v1/schema", build: buildSchema},
	{name: "import", usage: "<table> <file|-> POST /v1/tables/{table}/import", build: buildImport},
	{name: "query", usage: "[-table name -csv file] <sql> POST /v1/query", build: buildQuery},
	{name: "export", usage: "[-o file] [-filename name] [-archive] [-format csv|parquet] <sql>", build: buildExport},
	{name: "generate", usage: "<natural language...> POST /v1/query/generate", build: buildGenerate},
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
	stdin := defaults.Stdin
	if stdin == nil {
		stdin = strings.NewReader("")
	}

	fs := flag.NewFlagSet("tabulactl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "tabula API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	tenantID := fs.String("tenant-id", defaults.TenantID, "Tenant ID header (used when auth is disabled)")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 10*time.Second), "HTTP timeout (e.g. 10s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	name := strings.TrimSpace(fs.Arg(0))
	var selected *command
	for i := range commands {
		if commands[i].name == name {
			selected = &commands[i]
			break
		}
	}
	if selected == nil {
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		writeUsage(stderr)
		return 2
	}

	req, err := selected.build(fs.Args()[1:], stdin, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%s: %v\nusage: tabulactl %s %s\n", name, err, name, selected.usage)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}
	endpoint := strings.TrimRight(*baseURL, "/") + req.path
	code, responseBody, err := doRequest(ctx, client, req, endpoint, *apiKey, *tenantID)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if req.output != "" {
		if err := os.WriteFile(req.output, responseBody, 0o644); err != nil {
			_, _ = fmt.Fprintf(stderr, "write %s: %v\n", req.output, err)
			return 1
		}
		return 0
	}
	if !req.raw {
		if pretty, ok := prettyJSON(responseBody); ok {
			_, _ = fmt.Fprintln(stdout, pretty)
			return 0
		}
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func fixed(method, path string) func([]string, io.Reader, io.Writer) (request, error) {
	return func(args []string, _ io.Reader, _ io.Writer) (request, error) {
		if len(args) != 0 {
			return request{}, errUsage
		}
		return request{method: method, path: path}, nil
	}
}

func buildSchema(args []string, stdin io.Reader, stderr io.Writer) (request, error) {
	fs := flag.NewFlagSet("schema", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("f", "", "schema document to upload; - reads stdin")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return request{}, errUsage
	}
	if *file == "" {
		return request{method: http.MethodGet, path: "/v1/schema"}, nil
	}
	body, err := readSource(*file, stdin)
	if err != nil {
		return request{}, err
	}
	if !json.Valid(body) {
		return request{}, fmt.Errorf("%s is not valid JSON", *file)
	}
	return request{method: http.MethodPut, path: "/v1/schema", contentType: "application/json", body: body}, nil
}

func buildImport(args []string, stdin io.Reader, _ io.Writer) (request, error) {
	if len(args) != 2 || strings.TrimSpace(args[0]) == "" {
		return request{}, errUsage
	}
	body, err := readSource(args[1], stdin)
	if err != nil {
		return request{}, err
	}
	return request{
		method:      http.MethodPost,
		path:        "/v1/tables/" + url.PathEscape(strings.TrimSpace(args[0])) + "/import",
		contentType: "text/csv",
		body:        body,
	}, nil
}

func buildQuery(args []string, stdin io.Reader, stderr io.Writer) (request, error) {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	fs.SetOutput(stderr)
	table := fs.String("table", "", "table name the ad-hoc CSV is bound as")
	csvFile := fs.String("csv", "", "query this CSV file instead of the loaded tables; - reads stdin")
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		return request{}, errUsage
	}
	payload := map[string]any{"sql": strings.Join(fs.Args(), " ")}
	if *csvFile != "" {
		if strings.TrimSpace(*table) == "" {
			return request{}, fmt.Errorf("-table is required with -csv")
		}
		body, err := readSource(*csvFile, stdin)
		if err != nil {
			return request{}, err
		}
		payload["table"] = *table
		payload["csv"] = string(body)
	}
	return jsonRequest(http.MethodPost, "/v1/query", payload)
}

func buildExport(args []string, _ io.Reader, stderr io.Writer) (request, error) {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	output := fs.String("o", "", "write the CSV to this file instead of stdout")
	filename := fs.String("filename", "", "download file name")
	archive := fs.Bool("archive", false, "also archive the result to object storage")
	format := fs.String("format", "", "archive format: csv or parquet")
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		return request{}, errUsage
	}
	req, err := jsonRequest(http.MethodPost, "/v1/query/export", map[string]any{
		"sql":      strings.Join(fs.Args(), " "),
		"filename": *filename,
		"archive":  *archive,
		"format":   *format,
	})
	req.raw = true
	req.output = *output
	return req, err
}

func buildGenerate(args []string, _ io.Reader, _ io.Writer) (request, error) {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		return request{}, errUsage
	}
	return jsonRequest(http.MethodPost, "/v1/query/generate", map[string]any{"prompt": prompt})
}

func jsonRequest(method, path string, payload any) (request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return request{}, err
	}
	return request{method: method, path: path, contentType: "application/json", body: body}, nil
}

func readSource(name string, stdin io.Reader) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(name)
}

func doRequest(ctx context.Context, client *http.Client, spec request, endpoint, apiKey, tenantID string) (int, []byte, error) {
	var body io.Reader
	if spec.body != nil {
		body = bytes.NewReader(spec.body)
	}
	req, err := http.NewRequestWithContext(ctx, spec.method, endpoint, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if spec.contentType != "" {
		req.Header.Set("Content-Type", spec.contentType)
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}
	if strings.TrimSpace(tenantID) != "" {
		req.Header.Set("X-Tenant-ID", strings.TrimSpace(tenantID))
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
	_, _ = fmt.Fprintln(w, "usage: tabulactl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	for _, cmd := range commands {
		_, _ = fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.usage)
	}
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
