package viiper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// DeviceType is the VIIPER device type emulated for every slot.
const DeviceType = "xbox360"

// ClientConfig controls dialing and request timeouts.
type ClientConfig struct {
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Password     string
}

func defaultClientConfig() ClientConfig {
	return ClientConfig{
		DialTimeout:  3 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// apiError is the problem+json body the server answers failed requests with.
type apiError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *apiError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Detail)
}

type PingResponse struct {
	Server  string `json:"server"`
	Version string `json:"version"`
}

type busListResponse struct {
	Buses []uint32 `json:"buses"`
}

type busResponse struct {
	BusID uint32 `json:"busId"`
}

type deviceResponse struct {
	BusID uint32 `json:"busId"`
	DevID string `json:"devId"`
	Type  string `json:"type"`
}

type deviceCreateRequest struct {
	Type string `json:"type"`
}

// Client speaks the VIIPER management protocol.
//
// Request framing is `<path>[ SP <payload>]\0`; the server writes one JSON
// line and closes the connection. With a password set every connection,
// including device streams, is authenticated and encrypted first.
type Client struct {
	addr string
	cfg  ClientConfig
	key  []byte
}

func NewClient(addr string, cfg *ClientConfig) (*Client, error) {
	c := &Client{addr: addr, cfg: defaultClientConfig()}
	if cfg != nil {
		c.cfg = *cfg
	}
	if c.cfg.Password != "" {
		key, err := deriveKey(c.cfg.Password)
		if err != nil {
			return nil, err
		}
		c.key = key
	}
	return c, nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	d := &net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	if c.key == nil {
		return conn, nil
	}
	if c.cfg.WriteTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	secure, err := authenticate(conn, c.key)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return secure, nil
}

// do sends one request and returns the response line.
func (c *Client) do(ctx context.Context, path, payload string) (string, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	line := path
	if payload != "" {
		line += " " + payload
	}
	if c.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if _, err := conn.Write([]byte(line + "\x00")); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}
	if c.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
	resp, err := io.ReadAll(conn)
	if err != nil && len(resp) == 0 {
		return "", fmt.Errorf("read: %w", err)
	}
	return strings.TrimSuffix(string(resp), "\n"), nil
}

func call[T any](ctx context.Context, c *Client, path, payload string) (*T, error) {
	raw, err := c.do(ctx, path, payload)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, errors.New("empty response")
	}
	var problem apiError
	if err := json.Unmarshal([]byte(raw), &problem); err == nil && (problem.Status != 0 || problem.Title != "") {
		return nil, &problem
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &out, nil
}

func (c *Client) Ping(ctx context.Context) (*PingResponse, error) {
	return call[PingResponse](ctx, c, "ping", "")
}

func (c *Client) BusList(ctx context.Context) ([]uint32, error) {
	resp, err := call[busListResponse](ctx, c, "bus/list", "")
	if err != nil {
		return nil, err
	}
	return resp.Buses, nil
}

// BusCreate creates a bus. busID 0 lets the server choose.
func (c *Client) BusCreate(ctx context.Context, busID uint32) (uint32, error) {
	payload := ""
	if busID != 0 {
		payload = fmt.Sprintf("%d", busID)
	}
	resp, err := call[busResponse](ctx, c, "bus/create", payload)
	if err != nil {
		return 0, err
	}
	return resp.BusID, nil
}

func (c *Client) BusRemove(ctx context.Context, busID uint32) error {
	_, err := call[busResponse](ctx, c, "bus/remove", fmt.Sprintf("%d", busID))
	return err
}

// DeviceAdd adds an Xbox 360 pad to busID and returns its device id.
func (c *Client) DeviceAdd(ctx context.Context, busID uint32) (string, error) {
	payload, err := json.Marshal(deviceCreateRequest{Type: DeviceType})
	if err != nil {
		return "", err
	}
	resp, err := call[deviceResponse](ctx, c, fmt.Sprintf("bus/%d/add", busID), string(payload))
	if err != nil {
		return "", err
	}
	return resp.DevID, nil
}

func (c *Client) DeviceRemove(ctx context.Context, busID uint32, devID string) error {
	_, err := call[deviceResponse](ctx, c, fmt.Sprintf("bus/%d/remove", busID), devID)
	return err
}

// OpenStream connects to the input/rumble stream of an existing device.
func (c *Client) OpenStream(ctx context.Context, busID uint32, devID string) (net.Conn, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write([]byte(fmt.Sprintf("bus/%d/%s\x00", busID, devID))); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write stream path: %w", err)
	}
	return conn, nil
}
