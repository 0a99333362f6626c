package transcriber

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"
)

type NetworkMetrics struct {
	DNS        time.Duration
	ConnWait   time.Duration
	TCP        time.Duration
	TLS        time.Duration
	ReqHeaders time.Duration
	ReqBody    time.Duration
	TTFB       time.Duration
	Download   time.Duration
	Total      time.Duration

	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

// TracedClient is an http.Client that records per-phase timings of every
// request it makes.
type TracedClient struct {
	client *http.Client
}

func NewTracedClient(timeout time.Duration) *TracedClient {
	return &TracedClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        2,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

type TracedResponse struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Metrics    *NetworkMetrics
}

// phases collects timestamps from an httptrace.ClientTrace and turns them
// into NetworkMetrics.
type phases struct {
	m NetworkMetrics

	getConn, dns, dial, handshake time.Time
	gotConn, headers, sent, first time.Time
}

func (p *phases) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(string) { p.getConn = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) {
			p.gotConn = time.Now()
			p.m.ConnWait = p.gotConn.Sub(p.getConn)
			p.m.ConnReused = info.Reused
		},
		DNSStart:          func(httptrace.DNSStartInfo) { p.dns = time.Now() },
		DNSDone:           func(httptrace.DNSDoneInfo) { p.m.DNS = time.Since(p.dns) },
		ConnectStart:      func(string, string) { p.dial = time.Now() },
		ConnectDone:       func(string, string, error) { p.m.TCP = time.Since(p.dial) },
		TLSHandshakeStart: func() { p.handshake = time.Now() },
		TLSHandshakeDone: func(state tls.ConnectionState, _ error) {
			p.m.TLS = time.Since(p.handshake)
			p.m.TLSProtocol = tls.VersionName(state.Version)
		},
		WroteHeaders: func() {
			p.headers = time.Now()
			p.m.ReqHeaders = p.headers.Sub(p.gotConn)
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			p.sent = time.Now()
			p.m.ReqBody = p.sent.Sub(p.headers)
		},
		GotFirstResponseByte: func() {
			p.first = time.Now()
			p.m.TTFB = p.first.Sub(p.sent)
		},
	}
}

// Do sends req and reads the whole response body.
func (c *TracedClient) Do(req *http.Request) (*TracedResponse, error) {
	var p phases
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), p.trace()))
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	p.m.Download = time.Since(p.first)
	p.m.Total = time.Since(start)

	metrics := p.m
	return &TracedResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    &metrics,
	}, nil
}

// Warm opens a connection to url so the first real request can reuse it.
func (c *TracedClient) Warm(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", url, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}
