package geo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"

	"github.com/tidwall/gjson"
)

// ErrNoAddress is returned when the lookup response carries no usable address
var ErrNoAddress = errors.New("no address in response")

// Resolver discovers the public address the visitor is seen from
type Resolver interface {
	PublicIP(ctx context.Context) (string, error)
}

// HTTPResolver asks a "what is my IP" endpoint
type HTTPResolver struct {
	client *http.Client
	url    string
	path   string
}

// NewHTTPResolver creates a resolver reading the address at the gjson path of the response
func NewHTTPResolver(client *http.Client, url, path string) *HTTPResolver {
	return &HTTPResolver{client: client, url: url, path: path}
}

// PublicIP implements Resolver
func (r *HTTPResolver) PublicIP(ctx context.Context) (string, error) {
	body, err := fetch(ctx, r.client, r.url)
	if err != nil {
		return "", err
	}
	ip := gjson.GetBytes(body, r.path).String()
	if _, err := netip.ParseAddr(ip); err != nil {
		return "", fmt.Errorf("%w: %q", ErrNoAddress, ip)
	}
	return ip, nil
}
