package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/vitrinhq/vitrin/internal/common/cnst"
	"github.com/vitrinhq/vitrin/internal/visitor"

	"github.com/tidwall/gjson"
)

// Locator maps an address to a city, country and region
type Locator interface {
	Locate(ctx context.Context, ip string) (*visitor.Location, error)
}

// HTTPLocator queries a JSON geolocation API
type HTTPLocator struct {
	client      *http.Client
	urlTemplate string
	cityPath    string
	countryPath string
	regionPath  string
}

// NewHTTPLocator creates a locator; urlTemplate contains one %s for the address
func NewHTTPLocator(client *http.Client, urlTemplate, cityPath, countryPath, regionPath string) *HTTPLocator {
	return &HTTPLocator{
		client:      client,
		urlTemplate: urlTemplate,
		cityPath:    cityPath,
		countryPath: countryPath,
		regionPath:  regionPath,
	}
}

// Locate implements Locator. Missing fields come back as cnst.Unknown.
func (l *HTTPLocator) Locate(ctx context.Context, ip string) (*visitor.Location, error) {
	body, err := fetch(ctx, l.client, fmt.Sprintf(l.urlTemplate, url.PathEscape(ip)))
	if err != nil {
		return nil, err
	}

	// ipapi.co reports quota and lookup failures with 200 and {"error": true, "reason": ...}
	if res := gjson.GetBytes(body, "error"); res.Bool() {
		return nil, fmt.Errorf("geolocation refused: %s", gjson.GetBytes(body, "reason").String())
	}

	return &visitor.Location{
		IP:      ip,
		City:    field(body, l.cityPath),
		Country: field(body, l.countryPath),
		Region:  field(body, l.regionPath),
	}, nil
}

func field(body []byte, path string) string {
	if v := strings.TrimSpace(gjson.GetBytes(body, path).String()); v != "" {
		return v
	}
	return cnst.Unknown
}
