// Package openmeteo fetches daily and hourly forecasts from the Open-Meteo
// forecast API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/parut/agri-advisor/internal/cache"
	"github.com/parut/agri-advisor/internal/model"
	"github.com/parut/agri-advisor/internal/resilience"
	"github.com/parut/agri-advisor/internal/upstream"
)

const (
	defaultBaseURL = "https://api.open-meteo.com"

	cacheTTL = 3 * time.Hour
)

var (
	dailyVars = []string{
		"temperature_2m_max",
		"temperature_2m_min",
		"precipitation_sum",
		"wind_speed_10m_max",
	}
	hourlyVars = []string{
		"temperature_2m",
		"relative_humidity_2m",
		"wind_speed_10m",
		"wind_gusts_10m",
		"precipitation",
		"shortwave_radiation",
	}
)

// Client fetches Open-Meteo forecasts for a coordinate.
type Client interface {
	Fetch(ctx context.Context, q Query) (*upstream.Bundle, error)
}

// Query identifies one fetch.
type Query struct {
	Crop string
	Lat  float64
	Lon  float64
}

// forecastResponse is the columnar payload of GET /v1/forecast.
type forecastResponse struct {
	Daily  map[string]json.RawMessage `json:"daily"`
	Hourly map[string]json.RawMessage `json:"hourly"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithClock overrides the clock used for cache expiry and provenance dating.
func WithClock(clock clockwork.Clock) Option {
	return func(c *httpClient) {
		c.clock = clock
		c.cache = cache.NewWithClock[*upstream.Bundle](cacheTTL, 32, clock)
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	clock   clockwork.Clock
	cache   *cache.TTL[*upstream.Bundle]
}

// NewClient creates an Open-Meteo client. The API needs no key.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(5, 5),
		retry:   resilience.DefaultRetryConfig(),
		clock:   clockwork.NewRealClock(),
		cache:   cache.New[*upstream.Bundle](cacheTTL, 32),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Fetch(ctx context.Context, q Query) (*upstream.Bundle, error) {
	key := fmt.Sprintf("%s:%.3f:%.3f", q.Crop, q.Lat, q.Lon)
	if b, ok := c.cache.Get(key); ok {
		return b, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "openmeteo: rate limit wait")
	}

	params := url.Values{
		"latitude":        {strconv.FormatFloat(q.Lat, 'f', 4, 64)},
		"longitude":       {strconv.FormatFloat(q.Lon, 'f', 4, 64)},
		"daily":           {strings.Join(dailyVars, ",")},
		"hourly":          {strings.Join(hourlyVars, ",")},
		"timezone":        {"Asia/Seoul"},
		"forecast_days":   {"10"},
		"wind_speed_unit": {"ms"},
	}
	reqURL := c.baseURL + "/v1/forecast?" + params.Encode()

	fc, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*forecastResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "openmeteo: create request")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "openmeteo: send request")
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "openmeteo: read response")
		}
		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("openmeteo: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		var fc forecastResponse
		if err := json.Unmarshal(body, &fc); err != nil {
			return nil, eris.Wrap(err, "openmeteo: unmarshal response")
		}
		return &fc, nil
	})
	if err != nil {
		return nil, err
	}

	bundle := &upstream.Bundle{
		Daily:      dailyEntries(fc.Daily),
		Hourly:     hourlyEntries(fc.Hourly),
		Provenance: fmt.Sprintf("Open-Meteo(%s)", c.clock.Now().In(model.Seoul()).Format("2006-01-02")),
	}
	c.cache.Set(key, bundle)
	return bundle, nil
}

// dailyEntries pivots the columnar daily block into one entry per date.
func dailyEntries(block map[string]json.RawMessage) []upstream.Entry {
	dates := stringColumn(block["time"])
	cols := map[string][]*float64{
		"tmax":      numberColumn(block["temperature_2m_max"], len(dates)),
		"tmin":      numberColumn(block["temperature_2m_min"], len(dates)),
		"precip_mm": numberColumn(block["precipitation_sum"], len(dates)),
		"wind":      numberColumn(block["wind_speed_10m_max"], len(dates)),
	}

	out := make([]upstream.Entry, 0, len(dates))
	for i, date := range dates {
		e := upstream.Entry{"date": date, "src": "open-meteo"}
		for field, col := range cols {
			if col[i] != nil {
				e[field] = *col[i]
			}
		}
		out = append(out, e)
	}
	return out
}

// hourlyEntries pivots the columnar hourly block into one entry per hour.
// Open-Meteo reports local timestamps without a zone suffix when a timezone
// parameter is given, so they are parsed in KST.
func hourlyEntries(block map[string]json.RawMessage) []upstream.Entry {
	times := stringColumn(block["time"])
	cols := map[string][]*float64{
		"t":         numberColumn(block["temperature_2m"], len(times)),
		"rh":        numberColumn(block["relative_humidity_2m"], len(times)),
		"wind":      numberColumn(block["wind_speed_10m"], len(times)),
		"gust":      numberColumn(block["wind_gusts_10m"], len(times)),
		"precip_mm": numberColumn(block["precipitation"], len(times)),
		"swrad":     numberColumn(block["shortwave_radiation"], len(times)),
	}

	out := make([]upstream.Entry, 0, len(times))
	for i, raw := range times {
		ts, err := time.ParseInLocation("2006-01-02T15:04", raw, model.Seoul())
		if err != nil {
			continue
		}
		e := upstream.Entry{"ts": ts, "src": "open-meteo"}
		for field, col := range cols {
			if col[i] != nil {
				e[field] = *col[i]
			}
		}
		out = append(out, e)
	}
	return out
}

func stringColumn(raw json.RawMessage) []string {
	var out []string
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// numberColumn decodes a numeric column, padding or truncating to n so a
// short or null-holed column cannot misalign the pivot.
func numberColumn(raw json.RawMessage, n int) []*float64 {
	var col []*float64
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &col)
	}
	if len(col) < n {
		col = append(col, make([]*float64, n-len(col))...)
	}
	return col[:n]
}
