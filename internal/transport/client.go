package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"remote-calculator/internal/calculator"
	"remote-calculator/internal/observability"
)

// ErrNotBound is returned by Dial when the registry has no such binding.
var ErrNotBound = errors.New("not bound")

// RemoteError is a domain failure reported by the remote service. It
// unwraps to the matching calculator sentinel when the kind is known.
type RemoteError struct {
	Op       calculator.Op
	Kind     string
	Message  string
	Operands []float64
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Op, e.Message)
}

func (e *RemoteError) Unwrap() error { return calculator.ErrorForKind(e.Kind) }

// StatusError is any other non-success reply from the registry.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("registry replied %d: %s", e.StatusCode, e.Message)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client is a connection to one binding in a remote registry.
type Client struct {
	baseURL string
	binding string
	http    *http.Client
	ops     []calculator.Op
}

// BaseURL returns the registry root for host:port.
func BaseURL(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// Dial looks binding up in the registry at host:port and returns a client
// for it. No call is made beyond the lookup.
func Dial(ctx context.Context, host string, port int, binding string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: BaseURL(host, port),
		binding: binding,
		http:    &http.Client{Transport: observability.ClientTransport(nil)},
	}
	for _, opt := range opts {
		opt(c)
	}

	var info Binding
	if err := c.get(ctx, BindingPath(binding), &info); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("lookup %q at %s: %w", binding, c.baseURL, ErrNotBound)
		}
		return nil, fmt.Errorf("lookup %q at %s: %w", binding, c.baseURL, err)
	}

	if info.Endpoint != "" {
		c.baseURL = "http://" + info.Endpoint
	}

	for _, name := range info.Operations {
		op, err := calculator.ParseOp(name)
		if err != nil {
			continue
		}
		c.ops = append(c.ops, op)
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

// Operations is the capability set the binding advertised at lookup.
func (c *Client) Operations() []calculator.Op { return c.ops }

// Call invokes op remotely. Domain failures come back as *RemoteError;
// anything else is a transport failure.
func (c *Client) Call(ctx context.Context, op calculator.Op, clientID string, operands ...float64) (float64, error) {
	body, err := json.Marshal(CallRequest{Operands: Numbers(operands), ClientID: clientID})
	if err != nil {
		return 0, fmt.Errorf("encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+CallPath(c.binding, string(op)), bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(observability.RequestIDHeader, observability.NewRequestID())

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out CallResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return 0, fmt.Errorf("decode %s response: %w", op, err)
		}
		return float64(out.Result), nil
	case http.StatusUnprocessableEntity:
		er := decodeError(resp)
		return 0, &RemoteError{
			Op:       op,
			Kind:     er.Kind,
			Message:  er.Error,
			Operands: Floats(er.Operands),
		}
	default:
		er := decodeError(resp)
		return 0, &StatusError{StatusCode: resp.StatusCode, Message: er.Error}
	}
}

// ListBindings returns the names bound in the registry at host:port.
func ListBindings(ctx context.Context, host string, port int, opts ...Option) ([]string, error) {
	c := &Client{
		baseURL: BaseURL(host, port),
		http:    &http.Client{Transport: observability.ClientTransport(nil)},
	}
	for _, opt := range opts {
		opt(c)
	}

	var list BindingList
	if err := c.get(ctx, RegistryPath, &list); err != nil {
		return nil, err
	}
	return list.Bindings, nil
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set(observability.RequestIDHeader, observability.NewRequestID())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		er := decodeError(resp)
		return &StatusError{StatusCode: resp.StatusCode, Message: er.Error}
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func decodeError(resp *http.Response) ErrorResponse {
	var er ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(raw, &er); err != nil || er.Error == "" {
		er.Error = http.StatusText(resp.StatusCode)
	}
	return er
}
