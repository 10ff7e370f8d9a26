package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPrompt(t *testing.T) {
	got := Prompt(Request{NaturalLanguage: "count employees", Context: "CREATE TABLE employees (id VARCHAR);"})
	if got != "generate sql:count employees | CREATE TABLE employees (id VARCHAR);" {
		t.Fatalf("Prompt() = %q", got)
	}
}

func TestHTTPGeneratorRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/generate_sql" {
			t.Fatalf("request = %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["prompt"] != "generate sql:how many | " {
			t.Fatalf("prompt = %q", body["prompt"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"server_response": " SELECT COUNT(*) FROM employees \n"})
	}))
	defer server.Close()

	generator, err := NewHTTPGenerator(HTTPConfig{BaseURL: server.URL + "/"})
	if err != nil {
		t.Fatalf("NewHTTPGenerator() error = %v", err)
	}
	result, err := generator.Generate(context.Background(), Request{NaturalLanguage: "how many"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.SQL != "SELECT COUNT(*) FROM employees" || result.Provider != ProviderHTTP {
		t.Fatalf("result = %+v", result)
	}
}

func TestHTTPGeneratorFailuresAreNetworkErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		"malformed": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		},
		"missing field": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"other":"x"}`))
		},
	}
	for name, handler := range cases {
		server := httptest.NewServer(handler)
		generator, err := NewHTTPGenerator(HTTPConfig{BaseURL: server.URL})
		if err != nil {
			t.Fatalf("%s: NewHTTPGenerator() error = %v", name, err)
		}
		_, err = generator.Generate(context.Background(), Request{NaturalLanguage: "x"})
		server.Close()
		var netErr *NetworkError
		if !errors.As(err, &netErr) {
			t.Fatalf("%s: error = %v, want *NetworkError", name, err)
		}
	}
}

func TestHTTPGeneratorTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	generator, err := NewHTTPGenerator(HTTPConfig{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewHTTPGenerator() error = %v", err)
	}
	_, err = generator.Generate(context.Background(), Request{NaturalLanguage: "x"})
	var netErr *NetworkError
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("error = %v, want timeout NetworkError", err)
	}
}

func TestHTTPGeneratorCancellation(t *testing.T) {
	generator, err := NewHTTPGenerator(HTTPConfig{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("NewHTTPGenerator() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = generator.Generate(ctx, Request{NaturalLanguage: "x"})
	var netErr *NetworkError
	if !errors.As(err, &netErr) || !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want canceled NetworkError", err)
	}
}
