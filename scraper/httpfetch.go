package scraper

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	tls2 "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"
)

// maxMediaBytes caps a single session download.
const maxMediaBytes = 200 << 20

// httpFetcher downloads media with a Chrome TLS fingerprint (utls) and the
// headers and cookies of the browser session that discovered it.
type httpFetcher struct {
	proxy string
}

func newHTTPFetcher(proxyURL string) *httpFetcher {
	return &httpFetcher{proxy: proxyURL}
}

// fetch performs a single GET. The connection is not reused: media downloads
// are rare and the handshake is what makes them look like the browser.
// https goes through the Chrome fingerprint; plain http (some CDNs still
// serve video that way) uses a raw connection through the same proxy.
func (f *httpFetcher) fetch(ctx context.Context, target string, headers map[string]string, cookie string) ([]byte, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: parse url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("httpfetch: unsupported scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	req.Header.Set("Accept", "*/*")

	conn, err := f.dial(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: dial %s: %w", u.Host, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	resp, err := roundTrip(conn, req)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("httpfetch: HTTP %d for %s", resp.StatusCode, target)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, fmt.Errorf("httpfetch: read body: %w", err)
	}
	if len(body) > maxMediaBytes {
		return nil, fmt.Errorf("httpfetch: body exceeds %d bytes", maxMediaBytes)
	}
	return body, nil
}

func (f *httpFetcher) dial(ctx context.Context, u *url.URL) (net.Conn, error) {
	if u.Scheme == "http" {
		return dialRaw(ctx, "tcp", hostPort(u, "80"), f.proxy)
	}
	return dialTLSChrome(ctx, "tcp", hostPort(u, "443"), f.proxy)
}

func hostPort(u *url.URL, defaultPort string) string {
	if u.Port() != "" {
		return u.Host
	}
	return net.JoinHostPort(u.Hostname(), defaultPort)
}

// roundTrip speaks whichever protocol the Chrome ClientHello negotiated, or
// HTTP/1.1 on a plain connection.
func roundTrip(conn net.Conn, req *http.Request) (*http.Response, error) {
	if uc, ok := conn.(*tls2.UConn); ok && uc.ConnectionState().NegotiatedProtocol == http2.NextProtoTLS {
		cc, err := (&http2.Transport{}).NewClientConn(uc)
		if err != nil {
			return nil, err
		}
		return cc.RoundTrip(req)
	}

	req.Close = true
	if err := req.Write(conn); err != nil {
		return nil, err
	}
	return http.ReadResponse(bufio.NewReader(conn), req)
}

// dialTLSChrome establishes a TLS connection using a Chrome fingerprint via
// utls, optionally through a SOCKS5 or HTTP CONNECT proxy.
func dialTLSChrome(ctx context.Context, network, addr, proxyURL string) (*tls2.UConn, error) {
	rawConn, err := dialRaw(ctx, network, addr, proxyURL)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls2.UClient(rawConn, &tls2.Config{ServerName: host}, tls2.HelloChrome_Auto)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}

func dialRaw(ctx context.Context, network, addr, proxyURL string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	if proxyURL == "" {
		return dialer.DialContext(ctx, network, addr)
	}

	pu, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy: %w", err)
	}
	switch pu.Scheme {
	case "socks5", "socks5h":
		d, err := proxy.FromURL(pu, dialer)
		if err != nil {
			return nil, fmt.Errorf("socks5 proxy: %w", err)
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return d.Dial(network, addr)
		}
		return cd.DialContext(ctx, network, addr)
	case "http":
		return dialConnect(ctx, dialer, pu, addr)
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", pu.Scheme)
	}
}

// dialConnect opens a tunnel through an HTTP proxy.
func dialConnect(ctx context.Context, dialer *net.Dialer, pu *url.URL, addr string) (net.Conn, error) {
	conn, err := dialer.DialContext(ctx, "tcp", pu.Host)
	if err != nil {
		return nil, fmt.Errorf("proxy dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if pu.User != nil {
		req.SetBasicAuth(pu.User.Username(), passwordOf(pu.User))
		req.Header.Set("Proxy-Authorization", req.Header.Get("Authorization"))
		req.Header.Del("Authorization")
	}
	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("proxy connect: %w", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("proxy connect: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, errors.New("proxy connect: " + strings.TrimSpace(resp.Status))
	}

	_ = conn.SetDeadline(time.Time{})
	return conn, nil
}

func passwordOf(u *url.Userinfo) string {
	p, _ := u.Password()
	return p
}
