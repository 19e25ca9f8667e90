package viiper

import (
	"bufio"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/pbkdf2"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	handshakeMagic   = "eVI1\x00"
	nonceSize        = 32
	authContext      = "VIIPER-Auth-v1"
	sessionContext   = "VIIPER-Session-v1"
	pbkdf2Salt       = "VIIPER-Key-v1"
	pbkdf2Iterations = 100000
	maxPacketSize    = 2 * 1024 * 1024
)

// ErrUnauthorized is returned when the server rejects the password.
var ErrUnauthorized = errors.New("viiper: unauthorized")

// deriveKey stretches the API password to a 32 byte key.
func deriveKey(password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("password cannot be empty")
	}
	return pbkdf2.Key(sha256.New, password, []byte(pbkdf2Salt), pbkdf2Iterations, 32)
}

func deriveSessionKey(key, serverNonce, clientNonce []byte) []byte {
	h := sha256.New()
	h.Write(key)
	h.Write(serverNonce)
	h.Write(clientNonce)
	h.Write([]byte(sessionContext))
	return h.Sum(nil)
}

// authenticate runs the client side of the handshake on conn and returns a
// connection that encrypts everything after it.
//
// Client sends magic + nonce + HMAC(key, context+nonce); the server answers
// "OK\0" + its own nonce or a problem JSON.
func authenticate(conn net.Conn, key []byte) (net.Conn, error) {
	clientNonce := make([]byte, nonceSize)
	if _, err := rand.Read(clientNonce); err != nil {
		return nil, fmt.Errorf("generate client nonce: %w", err)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(authContext))
	mac.Write(clientNonce)

	msg := append([]byte(handshakeMagic), clientNonce...)
	msg = append(msg, mac.Sum(nil)...)
	if _, err := conn.Write(msg); err != nil {
		return nil, fmt.Errorf("write handshake: %w", err)
	}

	r := bufio.NewReader(conn)
	prefix := make([]byte, 3)
	if _, err := io.ReadFull(r, prefix); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("read handshake response: %w", err)
	}
	if string(prefix) != "OK\x00" {
		rest, _ := io.ReadAll(r)
		line := strings.TrimSuffix(string(append(prefix, rest...)), "\n")
		var problem apiError
		if err := json.Unmarshal([]byte(line), &problem); err == nil && (problem.Status != 0 || problem.Title != "") {
			if problem.Status == 401 {
				return nil, fmt.Errorf("%w: %s", ErrUnauthorized, problem.Detail)
			}
			return nil, &problem
		}
		return nil, fmt.Errorf("invalid handshake response: %q", line)
	}
	serverNonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(r, serverNonce); err != nil {
		return nil, fmt.Errorf("read server nonce: %w", err)
	}
	return newSecureConn(conn, r, deriveSessionKey(key, serverNonce, clientNonce))
}

// secureConn frames every write as len(u32 BE) | nonce(12) | ciphertext using
// ChaCha20-Poly1305. The nonce carries a big-endian send counter in its last
// eight bytes.
type secureConn struct {
	net.Conn
	r    io.Reader
	aead cipher.AEAD

	wmu     sync.Mutex
	sendCtr uint64
	pending []byte
}

func newSecureConn(conn net.Conn, r io.Reader, sessionKey []byte) (net.Conn, error) {
	aead, err := chacha20poly1305.New(sessionKey)
	if err != nil {
		return nil, err
	}
	return &secureConn{Conn: conn, r: r, aead: aead}, nil
}

func (c *secureConn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint64(nonce[4:], c.sendCtr)
	c.sendCtr++

	ct := c.aead.Seal(nil, nonce, p, nil)
	frame := make([]byte, 4, 4+len(nonce)+len(ct))
	binary.BigEndian.PutUint32(frame, uint32(len(nonce)+len(ct)))
	frame = append(frame, nonce...)
	frame = append(frame, ct...)
	if _, err := c.Conn.Write(frame); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *secureConn) Read(p []byte) (int, error) {
	if len(c.pending) == 0 {
		var hdr [4]byte
		if _, err := io.ReadFull(c.r, hdr[:]); err != nil {
			return 0, err
		}
		length := binary.BigEndian.Uint32(hdr[:])
		if length > maxPacketSize || length < chacha20poly1305.NonceSize {
			return 0, io.ErrUnexpectedEOF
		}
		pkt := make([]byte, length)
		if _, err := io.ReadFull(c.r, pkt); err != nil {
			return 0, err
		}
		pt, err := c.aead.Open(nil, pkt[:chacha20poly1305.NonceSize], pkt[chacha20poly1305.NonceSize:], nil)
		if err != nil {
			return 0, err
		}
		c.pending = pt
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}
