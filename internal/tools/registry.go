package tools

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/colintoh/clicky-mcp/pkg/clicky"
)

// Analytics is the report surface the operations delegate to.
type Analytics interface {
	TotalVisitors(ctx context.Context, dates clicky.DateRange) (any, error)
	DomainVisitors(ctx context.Context, q clicky.DomainVisitorsQuery) (any, error)
	TopPages(ctx context.Context, dates clicky.DateRange, limit *int) (any, error)
	TrafficSources(ctx context.Context, dates clicky.DateRange, pageURL string) ([]clicky.TrafficSourceReport, error)
	PageTraffic(ctx context.Context, url string, dates clicky.DateRange) (any, error)
}

// Operation binds a descriptor to its handler.
type Operation struct {
	Descriptor
	// failure prefixes the message of any error the handler returns.
	failure string
	handle  handlerFunc
}

type handlerFunc func(ctx context.Context, a Analytics, args json.RawMessage) (any, error)

// bind decodes raw arguments into T before calling fn.
func bind[T any](fn func(ctx context.Context, a Analytics, args T) (any, error)) handlerFunc {
	return func(ctx context.Context, a Analytics, raw json.RawMessage) (any, error) {
		var args T
		if len(bytes.TrimSpace(raw)) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, &ArgumentError{Err: err}
			}
		}
		return fn(ctx, a, args)
	}
}

type dateArgs struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (d dateArgs) dates() clicky.DateRange {
	return clicky.NewDateRange(d.StartDate, d.EndDate)
}

// limitArg converts a JSON number limit into the client's form. The
// ceiling is applied before the conversion so huge values cannot wrap.
func limitArg(limit *float64) *int {
	if limit == nil {
		return nil
	}
	n := clicky.MaxLimit
	if *limit < clicky.MaxLimit {
		n = int(max(*limit, 0))
	}
	return &n
}

type domainVisitorsArgs struct {
	dateArgs
	Domain   string   `json:"domain"`
	Segments []string `json:"segments"`
	Limit    *float64 `json:"limit"`
}

type topPagesArgs struct {
	dateArgs
	Limit *float64 `json:"limit"`
}

type trafficSourcesArgs struct {
	dateArgs
	PageURL string `json:"page_url"`
}

type pageTrafficArgs struct {
	dateArgs
	URL string `json:"url"`
}

const (
	startDateDescription = "Start date in YYYY-MM-DD format"
	endDateDescription   = "End date in YYYY-MM-DD format"
)

var registry = []Operation{
	{
		Descriptor: Descriptor{
			Name:        "get_total_visitors",
			Description: "Get total visitors for a date range from Clicky analytics",
			InputSchema: objectSchema(map[string]*Schema{
				"start_date": dateProperty(startDateDescription),
				"end_date":   dateProperty(endDateDescription),
			}, "start_date", "end_date"),
		},
		failure: "Error fetching total visitors",
		handle: bind(func(ctx context.Context, a Analytics, args dateArgs) (any, error) {
			return a.TotalVisitors(ctx, args.dates())
		}),
	},
	{
		Descriptor: Descriptor{
			Name:        "get_domain_visitors",
			Description: "Get visitors filtered by domain from Clicky analytics with optional segmentation data",
			InputSchema: objectSchema(map[string]*Schema{
				"domain": {
					Type:        "string",
					Description: `Domain name to filter by (e.g., "facebook.com", "google.com")`,
				},
				"start_date": dateProperty(startDateDescription),
				"end_date":   dateProperty(endDateDescription),
				"segments": {
					Type: "array",
					Items: &Schema{
						Type: "string",
						Enum: []string{clicky.SegmentPages, clicky.SegmentVisitors},
					},
					Description: `Optional array of segments to include (pages, visitors). Defaults to visitors only. "visitors" gets the total number of visitors from the domain. "pages" get the list of pages and its visited count from the domain.`,
				},
				"limit": limitProperty("Optional limit for results (max 1000)"),
			}, "domain", "start_date", "end_date"),
		},
		failure: "Error fetching domain visitors",
		handle: bind(func(ctx context.Context, a Analytics, args domainVisitorsArgs) (any, error) {
			return a.DomainVisitors(ctx, clicky.DomainVisitorsQuery{
				Domain:   args.Domain,
				Range:    args.dates(),
				Segments: args.Segments,
				Limit:    limitArg(args.Limit),
			})
		}),
	},
	{
		Descriptor: Descriptor{
			Name:        "get_top_pages",
			Description: "Get top pages for a date range from Clicky analytics",
			InputSchema: objectSchema(map[string]*Schema{
				"start_date": dateProperty(startDateDescription),
				"end_date":   dateProperty(endDateDescription),
				"limit":      limitProperty("Maximum number of pages to return (default: API default, max: 1000)"),
			}, "start_date", "end_date"),
		},
		failure: "Error fetching top pages",
		handle: bind(func(ctx context.Context, a Analytics, args topPagesArgs) (any, error) {
			return a.TopPages(ctx, args.dates(), limitArg(args.Limit))
		}),
	},
	{
		Descriptor: Descriptor{
			Name:        "get_traffic_sources",
			Description: "Get traffic sources breakdown from Clicky analytics. Optionally filter by specific page URL.",
			InputSchema: objectSchema(map[string]*Schema{
				"start_date": dateProperty(startDateDescription),
				"end_date":   dateProperty(endDateDescription),
				"page_url": {
					Type:        "string",
					Description: "Optional: Full URL or path of the page to get traffic sources for (e.g., https://example.com/path or /path)",
				},
			}, "start_date", "end_date"),
		},
		failure: "Error fetching traffic sources",
		handle: bind(func(ctx context.Context, a Analytics, args trafficSourcesArgs) (any, error) {
			return a.TrafficSources(ctx, args.dates(), args.PageURL)
		}),
	},
	{
		Descriptor: Descriptor{
			Name:        "get_page_traffic",
			Description: "Get traffic data for a specific page by filtering with its URL",
			InputSchema: objectSchema(map[string]*Schema{
				"url": {
					Type:        "string",
					Description: "Full URL or path of the page to get traffic for (e.g., https://example.com/path or /path)",
				},
				"start_date": dateProperty(startDateDescription),
				"end_date":   dateProperty(endDateDescription),
			}, "url", "start_date", "end_date"),
		},
		failure: "Error fetching page traffic",
		handle: bind(func(ctx context.Context, a Analytics, args pageTrafficArgs) (any, error) {
			return a.PageTraffic(ctx, args.URL, args.dates())
		}),
	},
}

// Descriptors returns the advertised operations in registration order.
func Descriptors() []Descriptor {
	out := make([]Descriptor, len(registry))
	for i, op := range registry {
		out[i] = op.Descriptor
		out[i].InputSchema = op.InputSchema.clone()
	}
	return out
}

// checkRequired reports the first required field that is absent or null.
func checkRequired(schema Schema, raw json.RawMessage) error {
	if len(schema.Required) == 0 {
		return nil
	}

	var fields map[string]json.RawMessage
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return &ArgumentError{Err: err}
		}
	}

	for _, name := range schema.Required {
		v, ok := fields[name]
		if !ok || string(bytes.TrimSpace(v)) == "null" {
			return &ArgumentError{Field: name, Err: errMissing}
		}
	}
	return nil
}
