package pipeline

import (
	"net"
	"net/http"
	"time"
)

// NewPooledHTTPClient returns the client shared by every upstream the gateway
// calls (session API, STT, TTS, tools). poolSize bounds idle keep-alive
// connections per host; timeout bounds each request end to end.
func NewPooledHTTPClient(poolSize int, timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   5 * time.Second,
			MaxIdleConns:          poolSize * 4,
			MaxIdleConnsPerHost:   poolSize,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: timeout,
			ForceAttemptHTTP2:     true,
		},
	}
}
