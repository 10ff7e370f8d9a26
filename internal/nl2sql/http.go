package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const ProviderHTTP = "http"

type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPGenerator speaks the plain generate_sql protocol:
// POST {base}/generate_sql {"prompt": ...} -> {"server_response": sql}.
type HTTPGenerator struct {
	baseURL string
	client  *http.Client
}

func NewHTTPGenerator(cfg HTTPConfig) (*HTTPGenerator, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGenerator{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(map[string]string{"prompt": Prompt(req)})
	if err != nil {
		return Result{}, networkErr("encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/generate_sql", bytes.NewReader(body))
	if err != nil {
		return Result{}, networkErr("build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Result{}, networkErr("request", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, networkErr("read response", err)
	}
	if resp.StatusCode >= 400 {
		return Result{}, networkErr("request", fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(rawRespBody))))
	}

	var parsed struct {
		ServerResponse *string `json:"server_response"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return Result{}, networkErr("decode response", err)
	}
	if parsed.ServerResponse == nil {
		return Result{}, networkErr("decode response", fmt.Errorf("server_response is missing"))
	}
	return Result{SQL: strings.TrimSpace(*parsed.ServerResponse), Provider: ProviderHTTP}, nil
}
