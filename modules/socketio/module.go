// Package socketio provides an atom runner that performs one socket.io
// round trip: connect, optionally emit an event, and wait for a named
// response event.
package socketio

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/zclconf/go-cty/cty"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/moleculego/internal/ctxlog"
	"github.com/vk/moleculego/internal/hclconv"
	"github.com/vk/moleculego/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the socketio runner.
type Input struct {
	URL                string    `hcl:"url"`
	Namespace          string    `hcl:"namespace,optional"`
	OnEvent            string    `hcl:"on_event"`
	EmitEvent          string    `hcl:"emit_event,optional"`
	EmitData           cty.Value `hcl:"emit_data,optional"`
	Timeout            string    `hcl:"timeout,optional"`
	InsecureSkipVerify bool      `hcl:"insecure_skip_verify,optional"`
}

// opResult passes one settled outcome through the done channel.
type opResult struct {
	value cty.Value
	err   error
}

// OnFetchSocketIO is the handler for the socketio runner.
func OnFetchSocketIO(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("runner", "socketio", "url", input.URL, "onEvent", input.OnEvent)
	logger.Debug("Handler started.")
	defer logger.Debug("Handler finished.")

	var isConnected atomic.Bool

	if input.Namespace == "" {
		input.Namespace = "/"
	}

	timeout := 10 * time.Second
	if input.Timeout != "" {
		parsed, err := time.ParseDuration(input.Timeout)
		if err != nil {
			return cty.NilVal, fmt.Errorf("invalid timeout %q: %w", input.Timeout, err)
		}
		timeout = parsed
	}

	done := make(chan opResult, 1)
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	parsedURL, err := url.Parse(input.URL)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to parse URL: %w", err)
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if input.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification.")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(input.Namespace, opts)
	defer func() {
		logger.Debug("Disconnecting socket client.")
		io.Disconnect()
	}()

	io.On(types.EventName("connect"), func(...any) {
		isConnected.Store(true)
		logger.Debug("Connected.", "namespace", input.Namespace, "sid", io.Id())
		if input.EmitEvent != "" {
			io.Emit(input.EmitEvent, hclconv.FromCty(input.EmitData))
		}
	})

	io.On(types.EventName("connect_error"), func(errs ...any) {
		if err, ok := errs[0].(error); ok {
			done <- opResult{err: err}
			return
		}
		done <- opResult{err: fmt.Errorf("connect error: %v", errs[0])}
	})

	io.On(types.EventName(input.OnEvent), func(data ...any) {
		if len(data) == 0 {
			done <- opResult{value: cty.NilVal}
			return
		}
		val, err := hclconv.ToCty(normalize(data[0]))
		if err != nil {
			done <- opResult{err: fmt.Errorf("failed to convert response: %w", err)}
			return
		}
		done <- opResult{value: cty.ObjectVal(map[string]cty.Value{"response_data": val})}
	})

	io.Connect()

	select {
	case <-opCtx.Done():
		if isConnected.Load() {
			return cty.NilVal, fmt.Errorf("timed out after connecting while waiting for event %q", input.OnEvent)
		}
		return cty.NilVal, fmt.Errorf("timed out while waiting for initial connection")
	case res := <-done:
		return res.value, res.err
	}
}

// normalize converts socket.io payloads into the dynamic shapes ToCty
// accepts.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, ev := range t {
			out[k] = normalize(ev)
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, ev := range t {
			out = append(out, normalize(ev))
		}
		return out
	case float64, bool, string, nil:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAtom("socketio", &registry.RegisteredAtom{
		NewInput: func() any { return new(Input) },
		Fn:       OnFetchSocketIO,
	})
}
