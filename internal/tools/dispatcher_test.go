package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colintoh/clicky-mcp/pkg/clicky"
)

type fakeAnalytics struct {
	lastRange  clicky.DateRange
	lastDomain clicky.DomainVisitorsQuery
	lastLimit  *int
	lastURL    string
	result     any
	err        error
	panicWith  any
}

func (f *fakeAnalytics) TotalVisitors(ctx context.Context, dates clicky.DateRange) (any, error) {
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	f.lastRange = dates
	return f.result, f.err
}

func (f *fakeAnalytics) DomainVisitors(ctx context.Context, q clicky.DomainVisitorsQuery) (any, error) {
	f.lastDomain = q
	return f.result, f.err
}

func (f *fakeAnalytics) TopPages(ctx context.Context, dates clicky.DateRange, limit *int) (any, error) {
	f.lastRange = dates
	f.lastLimit = limit
	return f.result, f.err
}

func (f *fakeAnalytics) TrafficSources(ctx context.Context, dates clicky.DateRange, pageURL string) ([]clicky.TrafficSourceReport, error) {
	f.lastRange = dates
	f.lastURL = pageURL
	if f.err != nil {
		return nil, f.err
	}
	return []clicky.TrafficSourceReport{{Type: "traffic-sources", Dates: []clicky.TrafficSourceDate{}}}, nil
}

func (f *fakeAnalytics) PageTraffic(ctx context.Context, url string, dates clicky.DateRange) (any, error) {
	f.lastURL = url
	f.lastRange = dates
	return f.result, f.err
}

type recordedCall struct {
	operation string
	failed    bool
}

type fakeRecorder struct {
	calls []recordedCall
}

func (r *fakeRecorder) RecordCall(ctx context.Context, operation string, failed bool, duration time.Duration) {
	r.calls = append(r.calls, recordedCall{operation: operation, failed: failed})
}

func text(t *testing.T, res CallResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	assert.Equal(t, "text", res.Content[0].Type)
	return res.Content[0].Text
}

func TestDispatcherList(t *testing.T) {
	d := NewDispatcher(&fakeAnalytics{}, zerolog.Nop())
	list := d.List()

	names := make([]string, len(list))
	for i, desc := range list {
		names[i] = desc.Name
	}
	assert.Equal(t, []string{
		"get_total_visitors",
		"get_domain_visitors",
		"get_top_pages",
		"get_traffic_sources",
		"get_page_traffic",
	}, names)
}

func TestDispatcherUnknownOperation(t *testing.T) {
	rec := &fakeRecorder{}
	d := NewDispatcher(&fakeAnalytics{}, zerolog.Nop(), WithRecorder(rec))

	res := d.Call(context.Background(), "get_bounce_rate", json.RawMessage(`{}`))

	assert.True(t, res.IsError)
	assert.Equal(t, "Error: Unknown tool: get_bounce_rate", text(t, res))
	assert.Empty(t, rec.calls)
}

func TestDispatcherCall(t *testing.T) {
	t.Run("wraps result as indented JSON", func(t *testing.T) {
		fa := &fakeAnalytics{result: map[string]any{"visitors": json.Number("12"), "note": "<b>"}}
		rec := &fakeRecorder{}
		d := NewDispatcher(fa, zerolog.Nop(), WithRecorder(rec))

		res := d.Call(context.Background(), "get_total_visitors",
			json.RawMessage(`{"start_date":"2024-01-01","end_date":"2024-01-31"}`))

		assert.False(t, res.IsError)
		assert.Equal(t, "{\n  \"note\": \"<b>\",\n  \"visitors\": 12\n}", text(t, res))
		assert.Equal(t, clicky.NewDateRange("2024-01-01", "2024-01-31"), fa.lastRange)
		assert.Equal(t, []recordedCall{{operation: "get_total_visitors", failed: false}}, rec.calls)
	})

	t.Run("maps domain visitor arguments", func(t *testing.T) {
		fa := &fakeAnalytics{result: []any{}}
		d := NewDispatcher(fa, zerolog.Nop())

		res := d.Call(context.Background(), "get_domain_visitors", json.RawMessage(`{
			"domain": "google.com",
			"start_date": "2024-01-01",
			"end_date": "2024-01-31",
			"segments": ["pages"],
			"limit": 50
		}`))

		require.False(t, res.IsError, text(t, res))
		assert.Equal(t, "google.com", fa.lastDomain.Domain)
		assert.Equal(t, []string{"pages"}, fa.lastDomain.Segments)
		require.NotNil(t, fa.lastDomain.Limit)
		assert.Equal(t, 50, *fa.lastDomain.Limit)
	})

	t.Run("absent limit stays absent", func(t *testing.T) {
		fa := &fakeAnalytics{result: []any{}}
		d := NewDispatcher(fa, zerolog.Nop())

		res := d.Call(context.Background(), "get_top_pages",
			json.RawMessage(`{"start_date":"2024-01-01","end_date":"2024-01-31"}`))

		require.False(t, res.IsError)
		assert.Nil(t, fa.lastLimit)
	})

	t.Run("clamps out of range limits before converting", func(t *testing.T) {
		tests := []struct {
			limit string
			want  int
		}{
			{"1e20", clicky.MaxLimit},
			{"1001", clicky.MaxLimit},
			{"999.9", 999},
			{"-1e20", 0},
		}
		for _, tt := range tests {
			t.Run(tt.limit, func(t *testing.T) {
				fa := &fakeAnalytics{result: []any{}}
				d := NewDispatcher(fa, zerolog.Nop())

				res := d.Call(context.Background(), "get_top_pages",
					json.RawMessage(`{"start_date":"2024-01-01","end_date":"2024-01-31","limit":`+tt.limit+`}`))

				require.False(t, res.IsError, text(t, res))
				require.NotNil(t, fa.lastLimit)
				assert.Equal(t, tt.want, *fa.lastLimit)
			})
		}
	})

	t.Run("passes page URLs through", func(t *testing.T) {
		fa := &fakeAnalytics{result: []any{}}
		d := NewDispatcher(fa, zerolog.Nop())

		res := d.Call(context.Background(), "get_page_traffic",
			json.RawMessage(`{"url":"https://example.com/a","start_date":"2024-01-01","end_date":"2024-01-02"}`))
		require.False(t, res.IsError)
		assert.Equal(t, "https://example.com/a", fa.lastURL)

		res = d.Call(context.Background(), "get_traffic_sources",
			json.RawMessage(`{"page_url":"/b","start_date":"2024-01-01","end_date":"2024-01-02"}`))
		require.False(t, res.IsError)
		assert.Equal(t, "/b", fa.lastURL)
	})
}

func TestDispatcherErrors(t *testing.T) {
	t.Run("missing required argument", func(t *testing.T) {
		d := NewDispatcher(&fakeAnalytics{}, zerolog.Nop())

		res := d.Call(context.Background(), "get_page_traffic",
			json.RawMessage(`{"start_date":"2024-01-01","end_date":"2024-01-02"}`))

		assert.True(t, res.IsError)
		assert.Contains(t, text(t, res), "Error fetching page traffic")
		assert.Contains(t, text(t, res), "url")
	})

	t.Run("null arguments count as missing", func(t *testing.T) {
		d := NewDispatcher(&fakeAnalytics{}, zerolog.Nop())

		res := d.Call(context.Background(), "get_total_visitors", json.RawMessage(`null`))
		assert.True(t, res.IsError)
		assert.Contains(t, text(t, res), "start_date")
	})

	t.Run("argument of the wrong type", func(t *testing.T) {
		d := NewDispatcher(&fakeAnalytics{}, zerolog.Nop())

		res := d.Call(context.Background(), "get_top_pages",
			json.RawMessage(`{"start_date":"2024-01-01","end_date":"2024-01-02","limit":"ten"}`))
		assert.True(t, res.IsError)
		assert.Contains(t, text(t, res), "Error fetching top pages: invalid arguments")
	})

	t.Run("client error is wrapped with the operation prefix", func(t *testing.T) {
		rec := &fakeRecorder{}
		d := NewDispatcher(&fakeAnalytics{err: errors.New("connection refused")}, zerolog.Nop(), WithRecorder(rec))

		res := d.Call(context.Background(), "get_traffic_sources",
			json.RawMessage(`{"start_date":"2024-01-01","end_date":"2024-01-02"}`))

		assert.True(t, res.IsError)
		assert.Equal(t, "Error fetching traffic sources: connection refused", text(t, res))
		assert.Equal(t, []recordedCall{{operation: "get_traffic_sources", failed: true}}, rec.calls)
	})

	t.Run("panic is contained", func(t *testing.T) {
		d := NewDispatcher(&fakeAnalytics{panicWith: "nil map"}, zerolog.Nop())

		var res CallResult
		require.NotPanics(t, func() {
			res = d.Call(context.Background(), "get_total_visitors",
				json.RawMessage(`{"start_date":"2024-01-01","end_date":"2024-01-02"}`))
		})
		assert.True(t, res.IsError)
		assert.Contains(t, text(t, res), "nil map")
	})
}

func TestDispatcherWithClicky(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"type":"traffic-sources","dates":[{"date":"2024-01-01,2024-01-07","items":[{"title":"Google","value":"42","value_percent":"10.5"},{"title":"Direct","value":"8"}]}]}]`))
	}))
	defer server.Close()

	client, err := clicky.NewClient("101", "secret", clicky.WithBaseURL(server.URL))
	require.NoError(t, err)
	d := NewDispatcher(client, zerolog.Nop())

	t.Run("reshapes traffic sources", func(t *testing.T) {
		res := d.Call(context.Background(), "get_traffic_sources",
			json.RawMessage(`{"start_date":"2024-01-01","end_date":"2024-01-07"}`))
		require.False(t, res.IsError, text(t, res))

		assert.JSONEq(t, `[{"type":"traffic-sources","dates":[{"date":"2024-01-01,2024-01-07","traffic_sources":[
			{"source":"Google","visitors":42,"percentage":10.5},
			{"source":"Direct","visitors":8,"percentage":0}
		]}]}]`, text(t, res))
	})

	t.Run("range violation is reported without a request", func(t *testing.T) {
		before := requests.Load()
		res := d.Call(context.Background(), "get_total_visitors",
			json.RawMessage(`{"start_date":"2024-01-01","end_date":"2024-02-02"}`))

		assert.True(t, res.IsError)
		assert.Equal(t, "Error fetching total visitors: Date range cannot exceed 31 days as per Clicky API limits", text(t, res))
		assert.Equal(t, before, requests.Load())
	})
}

func TestDispatcherHugeLimitReachesProviderClamped(t *testing.T) {
	queries := make(chan url.Values, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client, err := clicky.NewClient("101", "secret", clicky.WithBaseURL(server.URL))
	require.NoError(t, err)
	d := NewDispatcher(client, zerolog.Nop())

	res := d.Call(context.Background(), "get_top_pages",
		json.RawMessage(`{"start_date":"2024-01-01","end_date":"2024-01-07","limit":1e20}`))
	require.False(t, res.IsError, text(t, res))

	got := <-queries
	assert.Equal(t, "pages", got.Get("type"))
	assert.Equal(t, "1000", got.Get("limit"))
}
