package forkres

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"
)

// An IndexUrl identifies a package index (a registry of packages) by its canonical location.  Two
// IndexUrl values are equal iff they denote the same index after normalization, so IndexUrl is
// [comparable] and can be used as a map key.  The zero value means "no index".
//
// [comparable]: https://go.dev/ref/spec#Comparison_operators
type IndexUrl struct {
	url string
}

// ParseIndexUrl normalizes an index location.  The scheme and host are lowercased, a default port
// for the scheme is dropped, and a trailing slash is removed.  A location without a scheme is
// taken to be a local directory and is converted to a file:// URL of its absolute path.  IPv6
// hosts keep their brackets.
func ParseIndexUrl(s string) (IndexUrl, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return IndexUrl{}, fmt.Errorf("empty index URL")
	}
	if !strings.Contains(s, "://") {
		abs, err := filepath.Abs(s)
		if err != nil {
			return IndexUrl{}, fmt.Errorf("index path %q: %w", s, err)
		}
		u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
		return IndexUrl{strings.TrimSuffix(u.String(), "/")}, nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return IndexUrl{}, fmt.Errorf("invalid index URL %q: %w", s, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "file" && u.Host == "" {
		return IndexUrl{}, fmt.Errorf("invalid index URL %q: missing host", s)
	}
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	switch {
	case port != "":
		// Brackets IPv6 literals.
		host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		host = "[" + host + "]"
	}
	u.Host = host
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	u.Fragment = ""
	return IndexUrl{u.String()}, nil
}

// MustParseIndexUrl is like [ParseIndexUrl] but panics on error.
func MustParseIndexUrl(s string) IndexUrl {
	u, err := ParseIndexUrl(s)
	if err != nil {
		panic(err)
	}
	return u
}

// String returns the canonical URL.  The rendering is stable: equal IndexUrl values render
// identically.
func (u IndexUrl) String() string {
	return u.url
}

// IsZero reports whether u is the zero value ("no index").
func (u IndexUrl) IsZero() bool {
	return u.url == ""
}

// IndexUrlCompare returns [strings.Compare] applied to the canonical URLs.  This is a total order
// consistent with equality.
func IndexUrlCompare(a, b IndexUrl) int {
	return strings.Compare(a.url, b.url)
}
