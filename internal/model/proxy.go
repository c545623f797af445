// Package model defines shared types for the proxy.
package model

import (
	"io"
	"net"
	"net/http"
	"strconv"
)

// Endpoint identifies the backend the proxy forwards to.
type Endpoint struct {
	Host string
	Port int
}

// Addr returns the endpoint as host:port.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ProxyRequest represents an inbound request to be forwarded to the backend.
type ProxyRequest struct {
	Method string
	// Path is the raw request URI, including the query string.
	Path          string
	Host          string
	Header        http.Header
	Body          io.Reader
	ContentLength int64
	ClientAddress string
}

// ProxyResponse is either a relayed backend response or a synthesized fallback.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	Fallback       bool
	FallbackReason string
}
