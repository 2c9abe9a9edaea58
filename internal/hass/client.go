// Package hass talks to the Home Assistant instance the presence devices are
// attached to: the REST API for entity states and service calls, and the
// websocket API for the state_changed event stream.
package hass

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/banshee-data/presence.report/internal/httputil"
)

// SupervisorURL is the core proxy reachable from inside a Home Assistant
// add-on container.
const SupervisorURL = "http://supervisor/core"

// APIError is a non-2xx response from the REST API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("home assistant %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// State is one entity state as returned by /api/states.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	LastChanged *time.Time     `json:"last_changed,omitempty"`
	LastUpdated *time.Time     `json:"last_updated,omitempty"`
}

// Unit returns the unit_of_measurement attribute, if any.
func (s State) Unit() string {
	u, _ := s.Attributes["unit_of_measurement"].(string)
	return u
}

// FriendlyName returns the friendly_name attribute or the entity id.
func (s State) FriendlyName() string {
	if n, ok := s.Attributes["friendly_name"].(string); ok && n != "" {
		return n
	}
	return s.EntityID
}

// Client is a Home Assistant REST client.
type Client struct {
	base  string
	token string
	http  httputil.HTTPClient
}

// NewClient returns a client for the instance at baseURL (without the /api
// suffix). A nil httpClient uses http.DefaultClient.
func NewClient(baseURL, token string, httpClient httputil.HTTPClient) *Client {
	if httpClient == nil {
		httpClient = httputil.NewStandardClient(nil)
	}
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
		http:  httpClient,
	}
}

// Token returns the bearer token used for both REST and websocket auth.
func (c *Client) Token() string { return c.token }

// WebsocketURL maps the REST base onto the websocket endpoint
// (http→ws, https→wss).
func (c *Client) WebsocketURL() string {
	u, err := url.Parse(c.base)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if c.base == SupervisorURL {
		u.Path = "/core/websocket"
	} else {
		u.Path = strings.TrimRight(u.Path, "/") + "/api/websocket"
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+"/api"+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("home assistant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Ping checks that the API is reachable and the token is accepted.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		Message string `json:"message"`
	}
	return c.do(ctx, http.MethodGet, "/", nil, &out)
}

// States returns every entity state.
func (c *Client) States(ctx context.Context) ([]State, error) {
	var out []State
	if err := c.do(ctx, http.MethodGet, "/states", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CallService invokes domain.service with the given data.
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	return c.do(ctx, http.MethodPost, "/services/"+domain+"/"+service, data, nil)
}

// SetNumber writes a number entity.
func (c *Client) SetNumber(ctx context.Context, entityID string, v float64) error {
	return c.CallService(ctx, "number", "set_value", map[string]any{"entity_id": entityID, "value": v})
}

// SetText writes a text entity.
func (c *Client) SetText(ctx context.Context, entityID, v string) error {
	return c.CallService(ctx, "text", "set_value", map[string]any{"entity_id": entityID, "value": v})
}

// SetSwitch turns a switch entity on or off.
func (c *Client) SetSwitch(ctx context.Context, entityID string, on bool) error {
	service := "turn_off"
	if on {
		service = "turn_on"
	}
	return c.CallService(ctx, "switch", service, map[string]any{"entity_id": entityID})
}

// SelectOption sets a select entity.
func (c *Client) SelectOption(ctx context.Context, entityID, option string) error {
	return c.CallService(ctx, "select", "select_option", map[string]any{"entity_id": entityID, "option": option})
}

// ObjectID strips the domain from an entity id.
func ObjectID(entityID string) string {
	if i := strings.IndexByte(entityID, '.'); i >= 0 {
		return entityID[i+1:]
	}
	return entityID
}

// WithPrefix keeps the states whose object id starts with prefix followed
// by an underscore.
func WithPrefix(states []State, prefix string) []State {
	if strings.TrimSuffix(prefix, "_") == "" {
		return nil
	}
	var out []State
	for _, s := range states {
		if HasPrefix(s.EntityID, prefix) {
			out = append(out, s)
		}
	}
	return out
}

// HasPrefix reports whether the object id of entityID starts with the
// device prefix followed by an underscore, ignoring case.
func HasPrefix(entityID, prefix string) bool {
	prefix = strings.TrimSuffix(strings.ToLower(prefix), "_")
	if prefix == "" {
		return false
	}
	return strings.HasPrefix(strings.ToLower(ObjectID(entityID)), prefix+"_")
}
