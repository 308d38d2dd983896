// Package http_request provides a self-contained atom runner that performs
// one HTTP request and exposes the response as a props value. JSON response
// bodies are decoded into structured values so later stages can traverse
// them in argument expressions.
package http_request

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"resty.dev/v3"

	"github.com/vk/moleculego/internal/ctxlog"
	"github.com/vk/moleculego/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the http_request runner.
type Input struct {
	URL     string            `hcl:"url"`
	Method  string            `hcl:"method,optional"`
	Headers map[string]string `hcl:"headers,optional"`
	Body    string            `hcl:"body,optional"`
	Timeout string            `hcl:"timeout,optional"`
}

// OnFetchHTTPRequest is the handler for the http_request runner.
func OnFetchHTTPRequest(ctx context.Context, input *Input) (cty.Value, error) {
	method := strings.ToUpper(input.Method)
	if method == "" {
		method = "GET"
	}
	logger := ctxlog.FromContext(ctx).With("runner", "http_request", "method", method, "url", input.URL)
	logger.Debug("Handler started.")
	defer logger.Debug("Handler finished.")

	client := resty.New()
	defer client.Close()

	if input.Timeout != "" {
		timeout, err := time.ParseDuration(input.Timeout)
		if err != nil {
			return cty.NilVal, fmt.Errorf("invalid timeout %q: %w", input.Timeout, err)
		}
		client.SetTimeout(timeout)
	}

	req := client.R().SetContext(ctx)
	if len(input.Headers) > 0 {
		req.SetHeaders(input.Headers)
	}
	if input.Body != "" {
		req.SetBody(input.Body)
	}

	resp, err := req.Execute(method, input.URL)
	if err != nil {
		return cty.NilVal, fmt.Errorf("request failed: %w", err)
	}
	logger.Debug("Response received.", "status", resp.StatusCode())

	if resp.IsError() {
		return cty.NilVal, fmt.Errorf("request returned %s", resp.Status())
	}

	headers := make(map[string]cty.Value)
	for name, values := range resp.Header() {
		headers[name] = cty.StringVal(strings.Join(values, ", "))
	}
	headersVal := cty.EmptyObjectVal
	if len(headers) > 0 {
		headersVal = cty.ObjectVal(headers)
	}

	return cty.ObjectVal(map[string]cty.Value{
		"status_code": cty.NumberIntVal(int64(resp.StatusCode())),
		"url":         cty.StringVal(input.URL),
		"headers":     headersVal,
		"body":        bodyValue(resp.String()),
	}), nil
}

// bodyValue decodes a JSON response body into a structured value, falling
// back to the raw string for everything else.
func bodyValue(body string) cty.Value {
	raw := []byte(strings.TrimSpace(body))
	if len(raw) == 0 {
		return cty.StringVal("")
	}
	impliedType, err := ctyjson.ImpliedType(raw)
	if err != nil {
		return cty.StringVal(body)
	}
	val, err := ctyjson.Unmarshal(raw, impliedType)
	if err != nil {
		return cty.StringVal(body)
	}
	return val
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAtom("http_request", &registry.RegisteredAtom{
		NewInput: func() any { return new(Input) },
		Fn:       OnFetchHTTPRequest,
	})
}
