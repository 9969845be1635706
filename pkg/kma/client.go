// Package kma fetches forecasts from the KMA API Hub: mid-range land and
// temperature forecasts plus the short-range gridded village forecast.
package kma

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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/parut/agri-advisor/internal/cache"
	"github.com/parut/agri-advisor/internal/model"
	"github.com/parut/agri-advisor/internal/resilience"
	"github.com/parut/agri-advisor/internal/upstream"
)

const (
	defaultBaseURL = "https://apihub.kma.go.kr"

	midLandPath = "/api/typ02/openApi/MidFcstInfoService/getMidLandFcst"
	midTaPath   = "/api/typ02/openApi/MidFcstInfoService/getMidTa"
	villagePath = "/api/typ02/openApi/VilageFcstInfoService_2.0/getVilageFcst"

	cacheTTL = time.Hour
)

// Client fetches KMA forecasts for a resolved location.
type Client interface {
	Fetch(ctx context.Context, q Query) (*upstream.Bundle, error)
}

// Grid is a point on the KMA Lambert conformal forecast grid.
type Grid struct {
	NX int
	NY int
}

// Query identifies one fetch. An empty AreaCode disables the two mid-range
// sub-calls; a nil Grid disables the short-range village sub-call.
type Query struct {
	Crop     string
	Lat      float64
	Lon      float64
	AreaCode string
	Grid     *Grid
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API Hub base URL.
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

// WithClock overrides the clock used for issuance-time selection and cache
// expiry.
func WithClock(clock clockwork.Clock) Option {
	return func(c *httpClient) {
		c.clock = clock
		c.cache = cache.NewWithClock[*upstream.Bundle](cacheTTL, 32, clock)
	}
}

type httpClient struct {
	authKey string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	clock   clockwork.Clock
	cache   *cache.TTL[*upstream.Bundle]
}

// NewClient creates a KMA API Hub client.
func NewClient(authKey string, opts ...Option) Client {
	c := &httpClient{
		authKey: authKey,
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

	midEnabled := q.AreaCode != ""
	villageEnabled := q.Grid != nil
	if !midEnabled && !villageEnabled {
		return nil, nil
	}

	now := c.clock.Now().In(model.Seoul())
	tmFc := midIssuance(now)

	var (
		land       midItem
		ta         midItem
		cells      []villageItem
		landErr    error
		taErr      error
		villageErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	if midEnabled {
		g.Go(func() error {
			land, landErr = c.getMidLand(gctx, q.AreaCode, tmFc)
			return nil
		})
		g.Go(func() error {
			ta, taErr = c.getMidTa(gctx, q.AreaCode, tmFc)
			return nil
		})
	}
	if villageEnabled {
		g.Go(func() error {
			cells, villageErr = c.getVillage(gctx, *q.Grid, now)
			return nil
		})
	}
	_ = g.Wait()

	var subErrs []error
	for _, pair := range []struct {
		name string
		err  error
	}{
		{"mid-range land forecast", landErr},
		{"mid-range temperature forecast", taErr},
		{"short-range village forecast", villageErr},
	} {
		if pair.err != nil {
			subErrs = append(subErrs, pair.err)
			zap.L().Warn("kma: sub-call failed",
				zap.String("call", pair.name),
				zap.Error(pair.err),
			)
		}
	}

	enabled := 0
	if midEnabled {
		enabled += 2
	}
	if villageEnabled {
		enabled++
	}
	if len(subErrs) == enabled {
		return nil, eris.Errorf("kma: all sub-calls failed: %v", subErrs)
	}

	bundle := c.reconcile(tmFc, land, ta, cells)
	c.cache.Set(key, bundle)
	return bundle, nil
}

// reconcile folds the three sub-call results into one loose bundle. Village
// cells provide the hourly series and the near-term daily aggregates; the
// mid-range items extend the daily series and fill narrative and
// precipitation-probability fields the village forecast lacks.
func (c *httpClient) reconcile(tmFc time.Time, land, ta midItem, cells []villageItem) *upstream.Bundle {
	dailyByDate := map[string]upstream.Entry{}
	var order []string

	upsert := func(date string) upstream.Entry {
		if e, ok := dailyByDate[date]; ok {
			return e
		}
		e := upstream.Entry{"date": date, "src": "kma"}
		dailyByDate[date] = e
		order = append(order, date)
		return e
	}

	hourly := villageHourly(cells)
	for date, agg := range villageDaily(cells) {
		e := upsert(date)
		for k, v := range agg {
			e[k] = v
		}
	}

	for offset := 3; offset <= 10; offset++ {
		date := tmFc.AddDate(0, 0, offset).Format("2006-01-02")
		summary := land.str(fmt.Sprintf("wf%dAm", offset), fmt.Sprintf("wf%d", offset))
		pop, popOK := land.num(fmt.Sprintf("rnSt%dAm", offset), fmt.Sprintf("rnSt%d", offset))
		tmax, tmaxOK := ta.num(fmt.Sprintf("taMax%d", offset))
		tmin, tminOK := ta.num(fmt.Sprintf("taMin%d", offset))
		if summary == "" && !popOK && !tmaxOK && !tminOK {
			continue
		}

		e := upsert(date)
		if summary != "" && e["summary"] == nil {
			e["summary"] = summary
		}
		if popOK && e["pop"] == nil {
			e["pop"] = pop
		}
		if tmaxOK && e["tmax"] == nil {
			e["tmax"] = tmax
		}
		if tminOK && e["tmin"] == nil {
			e["tmin"] = tmin
		}
	}

	daily := make([]upstream.Entry, 0, len(order))
	for _, date := range order {
		daily = append(daily, dailyByDate[date])
	}

	return &upstream.Bundle{
		IssuedAt:   tmFc,
		Daily:      daily,
		Hourly:     hourly,
		Provenance: fmt.Sprintf("KMA(%s)", tmFc.Format("2006-01-02")),
	}
}

func (c *httpClient) getMidLand(ctx context.Context, regID string, tmFc time.Time) (midItem, error) {
	raw, err := c.getItems(ctx, midLandPath, url.Values{
		"regId": {regID},
		"tmFc":  {tmFc.Format("200601021504")},
	})
	if err != nil {
		return nil, err
	}
	return firstMidItem(raw, "mid-range land forecast")
}

func (c *httpClient) getMidTa(ctx context.Context, regID string, tmFc time.Time) (midItem, error) {
	raw, err := c.getItems(ctx, midTaPath, url.Values{
		"regId": {regID},
		"tmFc":  {tmFc.Format("200601021504")},
	})
	if err != nil {
		return nil, err
	}
	return firstMidItem(raw, "mid-range temperature forecast")
}

func (c *httpClient) getVillage(ctx context.Context, grid Grid, now time.Time) ([]villageItem, error) {
	base := villageIssuance(now)
	raw, err := c.getItems(ctx, villagePath, url.Values{
		"base_date": {base.Format("20060102")},
		"base_time": {base.Format("1504")},
		"nx":        {strconv.Itoa(grid.NX)},
		"ny":        {strconv.Itoa(grid.NY)},
		"numOfRows": {"1000"},
	})
	if err != nil {
		return nil, err
	}

	var items []villageItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, eris.Wrap(err, "kma: unmarshal village items")
	}
	return items, nil
}

// getItems issues one GET against the API Hub and returns the raw item
// payload, retrying transient failures.
func (c *httpClient) getItems(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "kma: rate limit wait")
	}

	params.Set("authKey", c.authKey)
	params.Set("dataType", "JSON")
	if params.Get("pageNo") == "" {
		params.Set("pageNo", "1")
	}
	if params.Get("numOfRows") == "" {
		params.Set("numOfRows", "100")
	}
	reqURL := c.baseURL + path + "?" + params.Encode()

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (json.RawMessage, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "kma: create request")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "kma: send request")
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "kma: read response")
		}
		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("kma: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		var envelope apiResponse
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, eris.Wrap(err, "kma: unmarshal response")
		}
		if code := envelope.Response.Header.ResultCode; code != resultOK {
			return nil, eris.Errorf("kma: result code %s: %s", code, envelope.Response.Header.ResultMsg)
		}
		return envelope.Response.Body.Items.Item, nil
	})
}

// midIssuance returns the latest mid-range issuance at or before now.
// Mid-range forecasts are published at 06:00 and 18:00 KST.
func midIssuance(now time.Time) time.Time {
	y, m, d := now.Date()
	switch {
	case now.Hour() >= 18:
		return time.Date(y, m, d, 18, 0, 0, 0, now.Location())
	case now.Hour() >= 6:
		return time.Date(y, m, d, 6, 0, 0, 0, now.Location())
	default:
		prev := now.AddDate(0, 0, -1)
		py, pm, pd := prev.Date()
		return time.Date(py, pm, pd, 18, 0, 0, 0, now.Location())
	}
}

// villageIssuance returns the latest short-range issuance whose data is
// available. Issuances are every 3 hours from 02:00 KST and become
// available roughly an hour later.
func villageIssuance(now time.Time) time.Time {
	y, m, d := now.Date()
	for hour := 23; hour >= 2; hour -= 3 {
		if now.Hour() >= hour+1 || (now.Hour() == hour && now.Minute() >= 59) {
			return time.Date(y, m, d, hour, 0, 0, 0, now.Location())
		}
	}
	prev := now.AddDate(0, 0, -1)
	py, pm, pd := prev.Date()
	return time.Date(py, pm, pd, 23, 0, 0, 0, now.Location())
}

// villageHourly groups forecast cells into one entry per forecast hour.
func villageHourly(cells []villageItem) []upstream.Entry {
	byTS := map[string]upstream.Entry{}
	var order []string

	fields := map[string]string{
		catTemp:     "t",
		catHumidity: "rh",
		catWind:     "wind",
		catPrecip:   "precip_mm",
	}

	for _, cell := range cells {
		field, ok := fields[cell.Category]
		if !ok {
			continue
		}
		ts, ok := villageTimestamp(cell.FcstDate, cell.FcstTime)
		if !ok {
			continue
		}
		key := ts.Format(time.RFC3339)
		e, exists := byTS[key]
		if !exists {
			e = upstream.Entry{"ts": ts, "src": "kma"}
			byTS[key] = e
			order = append(order, key)
		}
		setNum(e, field, cell.FcstValue)
	}

	out := make([]upstream.Entry, 0, len(order))
	for _, key := range order {
		out = append(out, byTS[key])
	}
	return out
}

// villageDaily aggregates forecast cells into per-date summaries: the TMX
// and TMN extremes, summed precipitation and the peak precipitation
// probability.
func villageDaily(cells []villageItem) map[string]upstream.Entry {
	out := map[string]upstream.Entry{}

	get := func(date string) upstream.Entry {
		d, ok := villageDate(date)
		if !ok {
			return nil
		}
		key := d.Format("2006-01-02")
		e, exists := out[key]
		if !exists {
			e = upstream.Entry{}
			out[key] = e
		}
		return e
	}

	for _, cell := range cells {
		e := get(cell.FcstDate)
		if e == nil {
			continue
		}
		v, ok := parseVillageValue(cell.FcstValue)
		if !ok {
			continue
		}

		switch cell.Category {
		case catTmax:
			e["tmax"] = v
		case catTmin:
			e["tmin"] = v
		case catPrecip:
			if prev, ok := e["precip_mm"].(float64); ok {
				v += prev
			}
			e["precip_mm"] = v
		case catPrecipP:
			if prev, ok := e["pop"].(float64); !ok || v > prev {
				e["pop"] = v
			}
		}
	}
	return out
}

func setNum(e upstream.Entry, key, raw string) {
	if v, ok := parseVillageValue(raw); ok {
		e[key] = v
	}
}

// parseVillageValue converts a forecast cell value to a float. The
// precipitation category reports "강수없음" instead of zero.
func parseVillageValue(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "강수없음" || raw == "적설없음" {
		return 0, raw != ""
	}
	raw = strings.TrimSuffix(raw, "mm")
	if strings.HasSuffix(raw, "mm 미만") || strings.HasPrefix(raw, "1mm") {
		return 0.5, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func villageTimestamp(date, hhmm string) (time.Time, bool) {
	ts, err := time.ParseInLocation("200601021504", date+hhmm, model.Seoul())
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func villageDate(date string) (time.Time, bool) {
	ts, err := time.ParseInLocation("20060102", date, model.Seoul())
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// firstMidItem returns the single record of a mid-range response. The
// item field arrives as an array even when only one record is present.
func firstMidItem(raw json.RawMessage, call string) (midItem, error) {
	if len(raw) == 0 {
		return nil, eris.Errorf("kma: empty %s response", call)
	}

	var items []midItem
	if err := json.Unmarshal(raw, &items); err != nil {
		var single midItem
		if err2 := json.Unmarshal(raw, &single); err2 == nil {
			return single, nil
		}
		return nil, eris.Wrapf(err, "kma: unmarshal %s", call)
	}
	if len(items) == 0 {
		return nil, eris.Errorf("kma: empty %s response", call)
	}
	return items[0], nil
}

// str returns the first non-empty string value among keys.
func (m midItem) str(keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// num returns the first numeric value among keys. Mid-range responses mix
// JSON numbers and numeric strings.
func (m midItem) num(keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v, true
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
