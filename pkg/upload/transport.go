package upload

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

// Transport performs one PUT and returns whatever the server sent back.
type Transport interface {
	Put(ctx context.Context, ep Endpoint, path string, body []byte) ([]byte, error)
}

// TLSTransport speaks a single raw HTTP/1.1 request over TLS. The server
// certificate is not verified; the only trust anchor is the configured
// host name.
type TLSTransport struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// ReadGrace bounds how long the response is read after the request
	// is written. Whatever arrived by then is the response.
	ReadGrace time.Duration
}

func NewTLSTransport() *TLSTransport {
	return &TLSTransport{
		DialTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		ReadGrace:    time.Second,
	}
}

func (t *TLSTransport) Put(ctx context.Context, ep Endpoint, path string, body []byte) ([]byte, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: t.DialTimeout},
		Config: &tls.Config{
			InsecureSkipVerify: true,
			ServerName:         ep.Host,
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", ep.Addr())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", ep.Addr(), err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(t.WriteTimeout)); err != nil {
		return nil, fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := conn.Write(BuildRequest(ep.Host, path, body)); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(t.ReadGrace)); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}
	resp, err := io.ReadAll(conn)
	var netErr net.Error
	if err != nil && !(errors.As(err, &netErr) && netErr.Timeout()) {
		return resp, fmt.Errorf("read response: %w", err)
	}
	return resp, nil
}

// BuildRequest renders the PUT request bytes.
func BuildRequest(host, path string, body []byte) []byte {
	var b bytes.Buffer
	b.WriteString("PUT " + path + " HTTP/1.1\r\n")
	b.WriteString("Host: " + host + "\r\n")
	b.WriteString("Content-Type: application/json\r\n")
	b.WriteString("Content-Length: " + strconv.Itoa(len(body)) + "\r\n")
	b.WriteString("Connection: close\r\n\r\n")
	b.Write(body)
	return b.Bytes()
}

// Accepted reports whether resp contains an HTTP 200 status anywhere.
func Accepted(resp []byte) bool {
	return bytes.Contains(resp, []byte("200 OK"))
}

// StatusLine returns the first line of resp for logging.
func StatusLine(resp []byte) string {
	if i := bytes.IndexAny(resp, "\r\n"); i >= 0 {
		resp = resp[:i]
	}
	if len(resp) == 0 {
		return "<empty response>"
	}
	return string(resp)
}
