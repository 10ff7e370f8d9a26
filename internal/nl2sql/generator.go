// Package nl2sql turns a natural-language request into candidate SQL by
// calling an external generation service.
package nl2sql

import (
	"context"
	"errors"
	"fmt"
)

const promptPrefix = "generate sql:"

type Request struct {
	TenantID        string `json:"tenant_id"`
	NaturalLanguage string `json:"natural_language"`
	// Context is the schema and sample text the generator should target.
	Context string `json:"context"`
}

type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// Prompt is the single text the generation service receives.
func Prompt(req Request) string {
	return promptPrefix + req.NaturalLanguage + " | " + req.Context
}

// NetworkError is any failure to obtain SQL from the generator: transport
// errors, timeouts, cancellation, error statuses and unusable responses.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("sql generation %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call ran out of time.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var timeout interface{ Timeout() bool }
	return errors.As(e.Err, &timeout) && timeout.Timeout()
}

func networkErr(op string, err error) error {
	return &NetworkError{Op: op, Err: err}
}
