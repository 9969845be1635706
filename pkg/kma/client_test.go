package kma

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parut/agri-advisor/internal/model"
	"github.com/parut/agri-advisor/internal/upstream"
)

const (
	midLandBody = `{"response":{"header":{"resultCode":"00","resultMsg":"NORMAL_SERVICE"},"body":{"items":{"item":[{"regId":"11H10000","wf3Am":"맑음","rnSt3Am":20,"wf4Am":"구름많음","rnSt4Am":30,"wf8":"흐리고 비","rnSt8":70}]},"totalCount":1}}}`
	midTaBody   = `{"response":{"header":{"resultCode":"00","resultMsg":"NORMAL_SERVICE"},"body":{"items":{"item":[{"regId":"11H10000","taMin3":8,"taMax3":19,"taMin4":"9","taMax4":"20","taMin8":5,"taMax8":14}]},"totalCount":1}}}`
	villageBody = `{"response":{"header":{"resultCode":"00","resultMsg":"NORMAL_SERVICE"},"body":{"items":{"item":[
		{"baseDate":"20251029","baseTime":"0800","category":"TMP","fcstDate":"20251029","fcstTime":"1200","fcstValue":"18"},
		{"baseDate":"20251029","baseTime":"0800","category":"REH","fcstDate":"20251029","fcstTime":"1200","fcstValue":"60"},
		{"baseDate":"20251029","baseTime":"0800","category":"WSD","fcstDate":"20251029","fcstTime":"1200","fcstValue":"3.2"},
		{"baseDate":"20251029","baseTime":"0800","category":"PCP","fcstDate":"20251029","fcstTime":"1200","fcstValue":"강수없음"},
		{"baseDate":"20251029","baseTime":"0800","category":"POP","fcstDate":"20251029","fcstTime":"1200","fcstValue":"20"},
		{"baseDate":"20251029","baseTime":"0800","category":"POP","fcstDate":"20251029","fcstTime":"1500","fcstValue":"60"},
		{"baseDate":"20251029","baseTime":"0800","category":"TMX","fcstDate":"20251029","fcstTime":"1500","fcstValue":"19.0"},
		{"baseDate":"20251029","baseTime":"0800","category":"TMN","fcstDate":"20251029","fcstTime":"0600","fcstValue":"8.0"}
	]},"totalCount":8}}}`
	deniedBody = `{"response":{"header":{"resultCode":"30","resultMsg":"SERVICE_KEY_IS_NOT_REGISTERED_ERROR"},"body":{"items":{"item":[]},"totalCount":0}}}`
)

func fixedClock(t *testing.T) clockwork.Clock {
	t.Helper()
	// 2025-10-29 10:00 KST: mid-range issuance 06:00, village issuance 08:00.
	return clockwork.NewFakeClockAt(time.Date(2025, 10, 29, 10, 0, 0, 0, model.Seoul()))
}

func testQuery() Query {
	return Query{
		Crop:     "apple",
		Lat:      36.568,
		Lon:      128.729,
		AreaCode: "11H10000",
		Grid:     &Grid{NX: 91, NY: 106},
	}
}

func TestFetchReconcilesSubCalls(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "test-key", r.URL.Query().Get("authKey"))
		assert.Equal(t, "JSON", r.URL.Query().Get("dataType"))

		switch r.URL.Path {
		case midLandPath:
			assert.Equal(t, "11H10000", r.URL.Query().Get("regId"))
			assert.Equal(t, "202510290600", r.URL.Query().Get("tmFc"))
			w.Write([]byte(midLandBody))
		case midTaPath:
			w.Write([]byte(midTaBody))
		case villagePath:
			assert.Equal(t, "20251029", r.URL.Query().Get("base_date"))
			assert.Equal(t, "0800", r.URL.Query().Get("base_time"))
			assert.Equal(t, "91", r.URL.Query().Get("nx"))
			assert.Equal(t, "106", r.URL.Query().Get("ny"))
			w.Write([]byte(villageBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithClock(fixedClock(t)))

	bundle, err := c.Fetch(context.Background(), testQuery())
	require.NoError(t, err)
	require.NotNil(t, bundle)
	assert.Equal(t, int64(3), requests.Load())
	assert.Equal(t, "KMA(2025-10-29)", bundle.Provenance)

	issued, ok := bundle.IssuedAt.(time.Time)
	require.True(t, ok)
	assert.Equal(t, 6, issued.Hour())

	byDate := map[string]upstream.Entry{}
	for _, e := range bundle.Daily {
		byDate[e["date"].(string)] = e
	}

	today := byDate["2025-10-29"]
	require.NotNil(t, today)
	assert.Equal(t, 19.0, today["tmax"])
	assert.Equal(t, 8.0, today["tmin"])
	assert.Equal(t, 60.0, today["pop"])
	assert.Equal(t, 0.0, today["precip_mm"])

	// Offset 3 from the 06:00 issuance.
	day3 := byDate["2025-11-01"]
	require.NotNil(t, day3)
	assert.Equal(t, "맑음", day3["summary"])
	assert.Equal(t, 20.0, day3["pop"])
	assert.Equal(t, 19.0, day3["tmax"])
	assert.Equal(t, 8.0, day3["tmin"])

	day8 := byDate["2025-11-06"]
	require.NotNil(t, day8)
	assert.Equal(t, "흐리고 비", day8["summary"])
	assert.Equal(t, 70.0, day8["pop"])

	require.Len(t, bundle.Hourly, 1)
	noon := bundle.Hourly[0]
	ts, ok := noon["ts"].(time.Time)
	require.True(t, ok)
	assert.Equal(t, 12, ts.Hour())
	assert.Equal(t, 18.0, noon["t"])
	assert.Equal(t, 60.0, noon["rh"])
	assert.Equal(t, 3.2, noon["wind"])
	assert.Equal(t, 0.0, noon["precip_mm"])

	// Second fetch is served from cache.
	again, err := c.Fetch(context.Background(), testQuery())
	require.NoError(t, err)
	assert.Same(t, bundle, again)
	assert.Equal(t, int64(3), requests.Load())
}

func TestFetchPartialSubCallFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == villagePath {
			w.Write([]byte(villageBody))
			return
		}
		w.Write([]byte(deniedBody))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithClock(fixedClock(t)))

	bundle, err := c.Fetch(context.Background(), testQuery())
	require.NoError(t, err)
	require.NotNil(t, bundle)
	assert.Len(t, bundle.Hourly, 1)
	for _, e := range bundle.Daily {
		assert.Nil(t, e["summary"])
	}
}

func TestFetchAllSubCallsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(deniedBody))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithClock(fixedClock(t)))

	bundle, err := c.Fetch(context.Background(), testQuery())
	require.Error(t, err)
	assert.Nil(t, bundle)
	assert.Contains(t, err.Error(), "all sub-calls failed")
}

func TestFetchNoIdentifiers(t *testing.T) {
	c := NewClient("test-key", WithBaseURL("http://127.0.0.1:1"), WithClock(fixedClock(t)))

	bundle, err := c.Fetch(context.Background(), Query{Crop: "apple", Lat: 36.5, Lon: 128.7})
	require.NoError(t, err)
	assert.Nil(t, bundle)
}

func TestFetchMissingGridSkipsVillage(t *testing.T) {
	var villageCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case midLandPath:
			w.Write([]byte(midLandBody))
		case midTaPath:
			w.Write([]byte(midTaBody))
		default:
			villageCalls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithClock(fixedClock(t)))

	q := testQuery()
	q.Grid = nil
	bundle, err := c.Fetch(context.Background(), q)
	require.NoError(t, err)
	require.NotNil(t, bundle)
	assert.Empty(t, bundle.Hourly)
	assert.NotEmpty(t, bundle.Daily)
	assert.Equal(t, int64(0), villageCalls.Load())
}

func TestMidIssuance(t *testing.T) {
	kst := model.Seoul()
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "morning uses 06",
			now:  time.Date(2025, 10, 29, 10, 30, 0, 0, kst),
			want: time.Date(2025, 10, 29, 6, 0, 0, 0, kst),
		},
		{
			name: "evening uses 18",
			now:  time.Date(2025, 10, 29, 21, 0, 0, 0, kst),
			want: time.Date(2025, 10, 29, 18, 0, 0, 0, kst),
		},
		{
			name: "night uses previous day 18",
			now:  time.Date(2025, 10, 29, 3, 0, 0, 0, kst),
			want: time.Date(2025, 10, 28, 18, 0, 0, 0, kst),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, midIssuance(tt.now))
		})
	}
}

func TestVillageIssuance(t *testing.T) {
	kst := model.Seoul()
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "midday uses 08",
			now:  time.Date(2025, 10, 29, 10, 0, 0, 0, kst),
			want: time.Date(2025, 10, 29, 8, 0, 0, 0, kst),
		},
		{
			name: "just after issuance still uses previous",
			now:  time.Date(2025, 10, 29, 11, 30, 0, 0, kst),
			want: time.Date(2025, 10, 29, 8, 0, 0, 0, kst),
		},
		{
			name: "early morning falls back to previous day 23",
			now:  time.Date(2025, 10, 29, 1, 0, 0, 0, kst),
			want: time.Date(2025, 10, 28, 23, 0, 0, 0, kst),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, villageIssuance(tt.now))
		})
	}
}

func TestParseVillageValue(t *testing.T) {
	tests := []struct {
		raw    string
		want   float64
		wantOK bool
	}{
		{"3.5", 3.5, true},
		{"강수없음", 0, true},
		{"적설없음", 0, true},
		{"1mm 미만", 0.5, true},
		{"5.0mm", 5.0, true},
		{"", 0, false},
		{"구름많음", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := parseVillageValue(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 0.001)
			}
		})
	}
}
