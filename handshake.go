package sio

import (
	"net/http"
	"net/url"
	"time"
)

// Handshake is the metadata snapshot captured when a socket is created.
type Handshake struct {
	// Headers are the request headers of the underlying connection.
	Headers http.Header `json:"headers"`

	// Time is the human-readable creation time.
	Time string `json:"time"`

	// Address is the remote address of the connection.
	Address string `json:"address"`

	// Xdomain reports whether the request carried an Origin header.
	Xdomain bool `json:"xdomain"`

	// Secure reports whether the connection is encrypted.
	Secure bool `json:"secure"`

	// Issued is the creation time in epoch milliseconds.
	Issued int64 `json:"issued"`

	// URL is the request URL the connection was established with.
	URL string `json:"url"`

	// Query holds the parsed request query.
	Query url.Values `json:"query"`
}

func newHandshake(r *http.Request) *Handshake {
	now := time.Now()
	h := &Handshake{
		Time:   now.Format(time.RFC1123),
		Issued: now.UnixMilli(),
		Query:  url.Values{},
	}
	if r == nil {
		return h
	}
	h.Headers = r.Header
	h.Address = r.RemoteAddr
	h.Xdomain = r.Header.Get("Origin") != ""
	h.Secure = r.TLS != nil
	if r.URL != nil {
		h.URL = r.URL.String()
		h.Query = r.URL.Query()
	}
	return h
}
