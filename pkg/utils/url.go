package utils

import (
	"errors"
	"net/url"
)

// ParseHttpUrl parses a "tcp://host:port" listen address, defaulting
// the port to 8080 when omitted.
func ParseHttpUrl(urlstr string) (string, error) {
	uri, err := url.Parse(urlstr)
	if err != nil {
		return "", err
	}
	if uri.Port() == "" {
		uri.Host += ":8080"
	}
	if uri.Scheme != "tcp" {
		return "", errors.New("unsupported protocol: " + uri.Scheme)
	}
	return uri.Host, nil
}

// ParseGrpcUrl parses a "tcp://host:port" listen address, defaulting
// the port to 9090 when omitted.
func ParseGrpcUrl(urlstr string) (string, error) {
	uri, err := url.Parse(urlstr)
	if err != nil {
		return "", err
	}
	if uri.Port() == "" {
		uri.Host += ":9090"
	}
	if uri.Scheme != "tcp" {
		return "", errors.New("unsupported protocol: " + uri.Scheme)
	}
	return uri.Host, nil
}
