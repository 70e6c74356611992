package unifi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/ArthurVardevanyan/poe-shim/internal/metrics"
)

// Site is the controller site every request is scoped to.
const Site = "default"

const (
	loginPath   = "/api/login"
	devicesPath = "/api/s/" + Site + "/stat/device"
	devicePath  = "/api/s/" + Site + "/rest/device/"
)

// ClientConfig configures a live controller client.
type ClientConfig struct {
	BaseURL            string
	InsecureSkipVerify bool
	Timeout            time.Duration
	// Reauthenticate re-runs the last successful login after the controller
	// rejects a session with 401. The rejected request itself is not retried.
	Reauthenticate bool
}

// Client is the live Controller backed by the controller's REST API. The
// session cookie set by Login lives in the client's cookie jar and is shared
// by every request, so one Client should serve the whole process.
type Client struct {
	baseURL *url.URL
	client  *http.Client
	logger  *zap.Logger
	metrics *metrics.Metrics
	reauth  bool

	mu       sync.Mutex
	username string
	password string
}

// NewClient validates the base URL and builds a cookie-backed HTTP client.
func NewClient(cfg ClientConfig, logger *zap.Logger, m *metrics.Metrics) (*Client, error) {
	base, err := ParseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: base,
		client: &http.Client{
			Timeout: timeout,
			Jar:     jar,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // G402: controllers usually run with self-signed certificates
				},
			},
		},
		logger:  logger.Named("unifi"),
		metrics: m,
		reauth:  cfg.Reauthenticate,
	}, nil
}

// ParseBaseURL parses a controller URL such as https://unifi.local:8443.
// Only the scheme and host are kept; API paths are absolute.
func ParseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty url", ErrInvalidBaseURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q: scheme must be http or https", ErrInvalidBaseURL, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q: missing host", ErrInvalidBaseURL, raw)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}

// Login authenticates and stores the session cookie in the client's jar.
func (c *Client) Login(ctx context.Context, username, password string) error {
	start := time.Now()
	err := c.login(ctx, username, password)
	c.metrics.ObserveController("login", start, err)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.username, c.password = username, password
	c.mu.Unlock()
	c.logger.Info("logged in to controller", zap.String("url", c.baseURL.String()))
	return nil
}

func (c *Client) login(ctx context.Context, username, password string) error {
	resp, err := c.do(ctx, http.MethodPost, loginPath, authRequest{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}
	defer drain(resp)
	if !isSuccess(resp.StatusCode) {
		return fmt.Errorf("%w: %w", ErrAuth, &StatusError{Op: "login", Code: resp.StatusCode})
	}
	return nil
}

// Devices lists every device adopted by the controller. Nothing is cached.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	start := time.Now()
	devices, err := c.devices(ctx)
	c.metrics.ObserveController("list_devices", start, err)
	if err != nil {
		c.logger.Warn("list devices failed", zap.Error(err))
		c.maybeReauthenticate(ctx, err)
		return nil, err
	}
	c.logger.Debug("listed devices", zap.Int("count", len(devices)))
	return devices, nil
}

func (c *Client) devices(ctx context.Context) ([]Device, error) {
	resp, err := c.do(ctx, http.MethodGet, devicesPath, nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)
	if !isSuccess(resp.StatusCode) {
		return nil, &StatusError{Op: "list devices", Code: resp.StatusCode}
	}
	var body Response[[]Device]
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode device list: %w", err)
	}
	return body.Data, nil
}

// SetPoEMode writes a single port override on deviceID. Success means the
// controller accepted the write; the port is not read back.
func (c *Client) SetPoEMode(ctx context.Context, deviceID string, port int, mode PoEMode) error {
	start := time.Now()
	err := c.setPoEMode(ctx, deviceID, port, mode)
	c.metrics.ObserveController("set_poe_mode", start, err)
	if err != nil {
		c.logger.Warn("port override failed",
			zap.String("device_id", deviceID),
			zap.Int("port", port),
			zap.String("poe_mode", string(mode)),
			zap.Error(err),
		)
		c.maybeReauthenticate(ctx, err)
		return err
	}
	c.logger.Debug("port override accepted",
		zap.String("device_id", deviceID),
		zap.Int("port", port),
		zap.String("poe_mode", string(mode)),
	)
	return nil
}

func (c *Client) setPoEMode(ctx context.Context, deviceID string, port int, mode PoEMode) error {
	body := deviceUpdate{PortOverrides: []PortOverride{{PortIdx: port, PoEMode: mode}}}
	resp, err := c.do(ctx, http.MethodPost, devicePath+deviceID, body)
	if err != nil {
		return err
	}
	defer drain(resp)
	if !isSuccess(resp.StatusCode) {
		return &StatusError{Op: "update device " + deviceID, Code: resp.StatusCode}
	}
	return nil
}

// maybeReauthenticate logs in again after a 401 so later requests find a
// fresh session. Concurrent callers that lose the race skip the login.
func (c *Client) maybeReauthenticate(ctx context.Context, cause error) {
	if !c.reauth || !isUnauthorized(cause) {
		return
	}
	if !c.mu.TryLock() {
		return
	}
	defer c.mu.Unlock()
	if c.username == "" {
		return
	}
	start := time.Now()
	err := c.login(ctx, c.username, c.password)
	c.metrics.ObserveController("login", start, err)
	if err != nil {
		c.logger.Error("re-authentication failed", zap.Error(err))
		return
	}
	c.logger.Info("re-authenticated after session expiry")
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	var body io.Reader = http.NoBody
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.client.Do(req)
}

func isSuccess(code int) bool { return code >= 200 && code < 300 }

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
