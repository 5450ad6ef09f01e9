// Package geocode turns a position into a short street label using a
// Nominatim-compatible reverse geocoder.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"headsup/pkg/geo"
	"headsup/pkg/request"
)

// DefaultBaseURL is the public OpenStreetMap Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// UnknownLocation is the label used when the geocoder knows nothing useful.
const UnknownLocation = "Unknown Location"

const provider = "nominatim"

// Client handles reverse geocoding requests.
type Client struct {
	request *request.Client
	baseURL string
}

// NewClient creates a new geocoding client. An empty baseURL uses the public
// Nominatim instance.
func NewClient(r *request.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{request: r, baseURL: strings.TrimRight(baseURL, "/")}
}

type response struct {
	DisplayName string   `json:"display_name"`
	Address     *address `json:"address"`
	Error       string   `json:"error"`
}

type address struct {
	Road    string `json:"road"`
	Suburb  string `json:"suburb"`
	City    string `json:"city"`
	Town    string `json:"town"`
	Village string `json:"village"`
}

// Label returns the most specific name for p: road, then suburb, then
// city, town or village, then the first part of the display name. A point the
// geocoder cannot resolve (open water) is UnknownLocation.
func (c *Client) Label(ctx context.Context, p geo.Point) (string, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(p.Lon, 'f', 6, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")
	u := c.baseURL + "/reverse?" + q.Encode()

	body, err := c.request.Get(ctx, u, CacheKey(p))
	if err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode json: %w", err)
	}

	label := labelFor(&resp)
	if label == UnknownLocation {
		c.request.Tracker().TrackAPIZero(provider)
	}
	return label, nil
}

// CacheKey rounds to 4 decimals (about 11 m) so nearby fixes share a lookup.
func CacheKey(p geo.Point) string {
	return fmt.Sprintf("geocode:%.4f,%.4f", p.Lat, p.Lon)
}

func labelFor(r *response) string {
	if r.Error != "" || r.Address == nil {
		return UnknownLocation
	}
	a := r.Address
	for _, s := range []string{a.Road, a.Suburb, a.City, a.Town, a.Village} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	if first, _, _ := strings.Cut(r.DisplayName, ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	return UnknownLocation
}
