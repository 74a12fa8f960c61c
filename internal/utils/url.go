package utils

import (
	"errors"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var (
	ErrNotHTTP = errors.New("url must use http or https")
	ErrNoHost  = errors.New("url has no host")
)

func HTTPURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		parsed.Scheme = strings.ToLower(parsed.Scheme)
	default:
		return nil, ErrNotHTTP
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return nil, ErrNoHost
	}
	if net.ParseIP(host) == nil {
		if host, err = idna.Lookup.ToASCII(host); err != nil {
			return nil, err
		}
	}
	switch port := parsed.Port(); {
	case port != "":
		parsed.Host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		parsed.Host = "[" + host + "]"
	default:
		parsed.Host = host
	}
	parsed.User = nil
	parsed.Fragment = ""
	return parsed, nil
}
