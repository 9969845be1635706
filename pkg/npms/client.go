// Package npms fetches pest observation data from the NCPMS open API: a
// directory lookup (SVC51) resolving the observation series key for a crop,
// then an observation search (SVC53) for the region.
package npms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/parut/agri-advisor/internal/cache"
	"github.com/parut/agri-advisor/internal/model"
	"github.com/parut/agri-advisor/internal/resilience"
	"github.com/parut/agri-advisor/internal/upstream"
)

const (
	defaultBaseURL = "http://ncpms.rda.go.kr"

	servicePath = "/npmsAPI/service"

	// serviceTypeJSON selects the JSON response format (AA001 is XML).
	serviceTypeJSON = "AA003"

	cacheTTL = 12 * time.Hour
)

// cropCodes maps supported crops to NCPMS crop codes (kncrCode).
var cropCodes = map[string]string{
	"apple":  "FT010601",
	"tomato": "VC011405",
}

// Client fetches pest observations for a resolved location.
type Client interface {
	Fetch(ctx context.Context, q Query) (*upstream.Bundle, error)
}

// Query identifies one fetch. An empty RegionCode disables the fetch.
type Query struct {
	Crop       string
	Lat        float64
	Lon        float64
	RegionCode string
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

// WithDefaultInsectKey overrides the fallback observation series key used
// when the directory lookup fails.
func WithDefaultInsectKey(key string) Option {
	return func(c *httpClient) {
		c.defaultInsectKey = key
	}
}

// WithClock overrides the clock used for cache expiry and year selection.
func WithClock(clock clockwork.Clock) Option {
	return func(c *httpClient) {
		c.clock = clock
		c.cache = cache.NewWithClock[*upstream.Bundle](cacheTTL, 32, clock)
	}
}

type httpClient struct {
	apiKey           string
	defaultInsectKey string
	baseURL          string
	http             *http.Client
	limiter          *rate.Limiter
	retry            resilience.RetryConfig
	clock            clockwork.Clock
	cache            *cache.TTL[*upstream.Bundle]
}

// NewClient creates an NCPMS API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(2, 2),
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
	if q.RegionCode == "" {
		return nil, nil
	}

	key := fmt.Sprintf("%s:%.3f:%.3f", q.Crop, q.Lat, q.Lon)
	if b, ok := c.cache.Get(key); ok {
		return b, nil
	}

	now := c.clock.Now().In(model.Seoul())
	insectKey := c.lookupInsectKey(ctx, q.Crop, now)

	entries, err := c.searchObservations(ctx, insectKey, q.RegionCode)
	if err != nil {
		return nil, err
	}

	bundle := &upstream.Bundle{
		Observations: entries,
		Provenance:   fmt.Sprintf("NPMS(%s)", now.Format("2006-01-02")),
	}
	c.cache.Set(key, bundle)
	return bundle, nil
}

// lookupInsectKey resolves the current observation series key for the crop
// via the SVC51 directory. Any failure falls back to the configured default
// key rather than failing the fetch.
func (c *httpClient) lookupInsectKey(ctx context.Context, crop string, now time.Time) string {
	cropCode, ok := cropCodes[crop]
	if !ok {
		return c.defaultInsectKey
	}

	svc, err := c.call(ctx, url.Values{
		"serviceCode":      {"SVC51"},
		"searchKncrCode":   {cropCode},
		"searchExaminYear": {now.Format("2006")},
		"displayCount":     {"10"},
		"startPoint":       {"1"},
	})
	if err != nil {
		zap.L().Warn("npms: directory lookup failed, using default insect key",
			zap.String("crop", crop),
			zap.Error(err),
		)
		return c.defaultInsectKey
	}

	for _, entry := range svc.listEntries() {
		if k, ok := entry["insectKey"].(string); ok && k != "" {
			return k
		}
	}
	zap.L().Warn("npms: directory lookup returned no series, using default insect key",
		zap.String("crop", crop),
	)
	return c.defaultInsectKey
}

// searchObservations runs the SVC53 observation search for the sido derived
// from the region code and keeps entries matching the region.
func (c *httpClient) searchObservations(ctx context.Context, insectKey, regionCode string) ([]upstream.Entry, error) {
	sido := regionCode
	if len(sido) > 2 {
		sido = sido[:2]
	}

	svc, err := c.call(ctx, url.Values{
		"serviceCode": {"SVC53"},
		"insectKey":   {insectKey},
		"sidoCode":    {sido},
	})
	if err != nil {
		return nil, err
	}

	var out []upstream.Entry
	for _, entry := range svc.structEntries() {
		code, _ := entry["sigunguCode"].(string)
		if !regionMatches(regionCode, code) {
			continue
		}
		e := upstream.Entry{
			"pest": entry["dbyhsNm"],
			"code": entry["inqireCnClCode"],
			"area": entry["sigunguNm"],
		}
		if v, ok := entry["inqireValue"]; ok {
			e["value"] = v
		}
		if m, ok := entry["inqireCnNm"]; ok {
			e["metric"] = m
		}
		if u, ok := entry["inqireCnUnitNm"]; ok {
			e["unit"] = u
		}
		out = append(out, e)
	}
	return out, nil
}

// regionMatches reports whether an observation's sigungu code belongs to
// the profile's pest region. Codes vary in length between services, so the
// shorter is matched as a prefix of the longer.
func regionMatches(regionCode, sigunguCode string) bool {
	if sigunguCode == "" {
		return false
	}
	if len(sigunguCode) < len(regionCode) {
		return strings.HasPrefix(regionCode, sigunguCode)
	}
	return strings.HasPrefix(sigunguCode, regionCode)
}

// serviceEnvelope is the common response wrapper. Single-element lists
// arrive as bare objects rather than arrays.
type serviceEnvelope struct {
	Service struct {
		TotalCount any             `json:"totalCount"`
		List       json.RawMessage `json:"list"`
		StructList json.RawMessage `json:"structList"`
	} `json:"service"`
}

func (s *serviceEnvelope) listEntries() []map[string]any {
	return decodeEntries(s.Service.List)
}

func (s *serviceEnvelope) structEntries() []map[string]any {
	return decodeEntries(s.Service.StructList)
}

func decodeEntries(raw json.RawMessage) []map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single map[string]any
	if err := json.Unmarshal(raw, &single); err == nil {
		return []map[string]any{single}
	}
	return nil
}

// call issues one GET against the NCPMS service endpoint, retrying
// transient failures.
func (c *httpClient) call(ctx context.Context, params url.Values) (*serviceEnvelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "npms: rate limit wait")
	}

	params.Set("apiKey", c.apiKey)
	params.Set("serviceType", serviceTypeJSON)
	reqURL := c.baseURL + servicePath + "?" + params.Encode()
	code := params.Get("serviceCode")

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*serviceEnvelope, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "npms: create %s request", code)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "npms: send %s request", code)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrapf(err, "npms: read %s response", code)
		}
		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("npms: %s unexpected status %d: %s", code, resp.StatusCode, strings.TrimSpace(string(body)))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		var envelope serviceEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, eris.Wrapf(err, "npms: unmarshal %s response", code)
		}
		return &envelope, nil
	})
}
