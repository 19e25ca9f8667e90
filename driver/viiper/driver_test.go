package viiper

import (
	"bufio"
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Alia5/padbridge/driver"
	"github.com/Alia5/padbridge/internal/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer implements enough of the VIIPER API for the driver.
type fakeServer struct {
	ln       net.Listener
	password string

	mu       sync.Mutex
	buses    []uint32
	nextDev  int
	requests []string
	streams  map[string]net.Conn
	reports  chan []byte
}

func newFakeServer(t *testing.T, password string, buses ...uint32) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeServer{
		ln:       ln,
		password: password,
		buses:    buses,
		streams:  map[string]net.Conn{},
		reports:  make(chan []byte, 64),
	}
	go s.serve()
	t.Cleanup(func() {
		ln.Close()
		s.mu.Lock()
		for _, c := range s.streams {
			c.Close()
		}
		s.mu.Unlock()
	})
	return s
}

func (s *fakeServer) addr() string { return s.ln.Addr().String() }

func (s *fakeServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeServer) handshake(conn net.Conn, r *bufio.Reader) (net.Conn, *bufio.Reader, error) {
	key, err := deriveKey(s.password)
	if err != nil {
		return nil, nil, err
	}
	magic := make([]byte, len(handshakeMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != handshakeMagic {
		return nil, nil, errors.New("bad magic")
	}
	clientNonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(r, clientNonce); err != nil {
		return nil, nil, err
	}
	clientAuth := make([]byte, sha256.Size)
	if _, err := io.ReadFull(r, clientAuth); err != nil {
		return nil, nil, err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(authContext))
	mac.Write(clientNonce)
	if !hmac.Equal(mac.Sum(nil), clientAuth) {
		_, _ = conn.Write([]byte(`{"status":401,"title":"Unauthorized","detail":"invalid password"}` + "\n"))
		return nil, nil, errors.New("unauthorized")
	}
	serverNonce := bytes.Repeat([]byte{7}, nonceSize)
	if _, err := conn.Write(append([]byte("OK\x00"), serverNonce...)); err != nil {
		return nil, nil, err
	}
	secure, err := newSecureConn(conn, r, deriveSessionKey(key, serverNonce, clientNonce))
	if err != nil {
		return nil, nil, err
	}
	return secure, bufio.NewReader(secure), nil
}

func (s *fakeServer) handle(raw net.Conn) {
	conn := raw
	r := bufio.NewReader(raw)
	if s.password != "" {
		var err error
		conn, r, err = s.handshake(raw, r)
		if err != nil {
			raw.Close()
			return
		}
	}

	line, err := r.ReadString(0)
	if err != nil {
		raw.Close()
		return
	}
	line = strings.TrimSuffix(line, "\x00")
	path, payload, _ := strings.Cut(line, " ")

	s.mu.Lock()
	s.requests = append(s.requests, path)
	s.mu.Unlock()

	var bus uint32
	var tail string
	if n, _ := fmt.Sscanf(path, "bus/%d/%s", &bus, &tail); n == 2 && tail != "add" && tail != "remove" && tail != "list" {
		s.stream(conn, r, tail)
		return
	}

	defer raw.Close()
	var resp any
	switch {
	case path == "ping":
		resp = map[string]string{"server": "VIIPER", "version": "test"}
	case path == "bus/list":
		s.mu.Lock()
		resp = map[string]any{"buses": append([]uint32{}, s.buses...)}
		s.mu.Unlock()
	case path == "bus/create":
		s.mu.Lock()
		id := uint32(len(s.buses) + 1)
		s.buses = append(s.buses, id)
		s.mu.Unlock()
		resp = map[string]uint32{"busId": id}
	case path == "bus/remove":
		resp = map[string]string{"busId": payload}
	case strings.HasSuffix(path, "/add"):
		var req deviceCreateRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil || req.Type != DeviceType {
			resp = map[string]any{"status": 400, "title": "Bad Request", "detail": "bad type"}
			break
		}
		s.mu.Lock()
		s.nextDev++
		dev := fmt.Sprint(s.nextDev)
		s.mu.Unlock()
		resp = map[string]any{"busId": bus, "devId": dev, "type": DeviceType}
	case strings.HasSuffix(path, "/remove"):
		resp = map[string]any{"busId": bus, "devId": payload}
	default:
		resp = map[string]any{"status": 404, "title": "Not Found", "detail": path}
	}
	b, _ := json.Marshal(resp)
	_, _ = conn.Write(append(b, '\n'))
}

func (s *fakeServer) stream(conn net.Conn, r *bufio.Reader, devID string) {
	s.mu.Lock()
	s.streams[devID] = conn
	s.mu.Unlock()
	for {
		buf := make([]byte, driver.ReportSize)
		if _, err := io.ReadFull(r, buf); err != nil {
			return
		}
		s.reports <- buf
	}
}

func (s *fakeServer) rumble(t *testing.T, devID string, large, small byte) {
	t.Helper()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.streams[devID] != nil
	}, time.Second, 5*time.Millisecond)
	s.mu.Lock()
	c := s.streams[devID]
	s.mu.Unlock()
	_, err := c.Write([]byte{large, small})
	require.NoError(t, err)
}

func (s *fakeServer) seen(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.requests {
		if p == path {
			return true
		}
	}
	return false
}

func newTestDriver(t *testing.T, srv *fakeServer, password string) *Driver {
	t.Helper()
	d, err := New(Config{Addr: srv.addr(), Password: password, Timeout: time.Second}, log.Discard(), log.NewRaw(nil))
	require.NoError(t, err)
	return d
}

func TestDriverLifecycle(t *testing.T) {
	for _, password := range []string{"", "s3cret"} {
		t.Run(fmt.Sprintf("password=%q", password), func(t *testing.T) {
			srv := newFakeServer(t, password)
			d := newTestDriver(t, srv, password)

			require.NoError(t, d.Available())
			assert.True(t, srv.seen("bus/create"), "no bus existed so one is created")

			require.NoError(t, d.Plugin(0))
			var got []driver.Feedback
			var mu sync.Mutex
			unsub, ok := d.OnFeedback(0, func(fb driver.Feedback) {
				mu.Lock()
				got = append(got, fb)
				mu.Unlock()
			})
			require.True(t, ok)
			defer unsub()

			report := driver.Report{Buttons: driver.ButtonA, LeftTrigger: 9, ThumbLX: -100}
			require.NoError(t, d.Report(0, report))
			select {
			case b := <-srv.reports:
				var back driver.Report
				require.NoError(t, back.UnmarshalBinary(b))
				assert.Equal(t, report, back)
			case <-time.After(time.Second):
				t.Fatal("report not received")
			}

			srv.rumble(t, "1", 200, 50)
			assert.Eventually(t, func() bool {
				mu.Lock()
				defer mu.Unlock()
				return len(got) == 1 && got[0] == driver.Feedback{Large: 200, Small: 50}
			}, time.Second, 5*time.Millisecond)

			require.NoError(t, d.Unplug(0))
			assert.True(t, errors.Is(d.Report(0, report), driver.ErrNotPlugged))
			assert.Eventually(t, func() bool { return srv.seen("bus/1/remove") }, time.Second, 5*time.Millisecond)

			require.NoError(t, d.Close())
			assert.True(t, srv.seen("bus/remove"))
		})
	}
}

func TestDriverReusesExistingBus(t *testing.T) {
	srv := newFakeServer(t, "", 3)
	d := newTestDriver(t, srv, "")
	require.NoError(t, d.Available())
	assert.False(t, srv.seen("bus/create"))
	assert.Equal(t, uint32(3), d.busID)
	require.NoError(t, d.Close())
	assert.False(t, srv.seen("bus/remove"), "a bus the driver did not create is left alone")
}

func TestDriverUnavailable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	d, err := New(Config{Addr: addr, Timeout: 200 * time.Millisecond}, log.Discard(), nil)
	require.NoError(t, err)
	assert.True(t, errors.Is(d.Available(), driver.ErrUnavailable))
	assert.True(t, errors.Is(d.Plugin(0), driver.ErrUnavailable))
	assert.True(t, errors.Is(d.Plugin(7), driver.ErrInvalidSlot))
}

func TestDriverWrongPassword(t *testing.T) {
	srv := newFakeServer(t, "right")
	d := newTestDriver(t, srv, "wrong")
	err := d.Available()
	require.Error(t, err)
	assert.True(t, errors.Is(err, driver.ErrUnavailable))
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestClientProblemResponse(t *testing.T) {
	srv := newFakeServer(t, "")
	c, err := NewClient(srv.addr(), nil)
	require.NoError(t, err)
	_, err = call[PingResponse](t.Context(), c, "nope", "")
	var problem *apiError
	require.True(t, errors.As(err, &problem))
	assert.Equal(t, 404, problem.Status)
	assert.Equal(t, "404 Not Found: nope", problem.Error())
}

func TestSecureConnRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	key := bytes.Repeat([]byte{1}, 32)
	ca, err := newSecureConn(a, a, key)
	require.NoError(t, err)
	cb, err := newSecureConn(b, b, key)
	require.NoError(t, err)

	go func() {
		_, _ = ca.Write([]byte("hello"))
		_, _ = ca.Write([]byte("world"))
	}()
	buf := make([]byte, 3)
	var out []byte
	for len(out) < 10 {
		n, err := cb.Read(buf)
		require.NoError(t, err)
		out = append(out, buf[:n]...)
	}
	assert.Equal(t, "helloworld", string(out))
	a.Close()
	b.Close()
}
