package clicky

import (
	"strconv"
	"strings"
)

// Report types understood by the stats API.
const (
	ReportVisitors       = "visitors"
	ReportSegmentation   = "segmentation"
	ReportPages          = "pages"
	ReportTrafficSources = "traffic-sources"
)

// Domain segments selectable on a segmentation report.
const (
	SegmentPages    = "pages"
	SegmentVisitors = "visitors"
)

// MaxLimit is the provider ceiling for the limit parameter.
const MaxLimit = 1000

// Query is one of the report shapes the client knows how to request.
type Query interface {
	// Dates returns the range the report covers.
	Dates() DateRange
	// params returns the report-specific parameters, including type.
	params() map[string]string
}

// TotalVisitorsQuery requests the visitor totals for a range.
type TotalVisitorsQuery struct {
	Range DateRange
}

func (q TotalVisitorsQuery) Dates() DateRange { return q.Range }

func (q TotalVisitorsQuery) params() map[string]string {
	return map[string]string{"type": ReportVisitors}
}

// DomainVisitorsQuery segments visitors arriving from a referring domain.
type DomainVisitorsQuery struct {
	Domain   string
	Range    DateRange
	Segments []string
	Limit    *int
}

func (q DomainVisitorsQuery) Dates() DateRange { return q.Range }

func (q DomainVisitorsQuery) params() map[string]string {
	segments := SegmentVisitors
	if len(q.Segments) > 0 {
		segments = strings.Join(q.Segments, ",")
	}

	p := map[string]string{
		"type":     ReportSegmentation,
		"domain":   q.Domain,
		"segments": segments,
	}
	setLimit(p, q.Limit)
	return p
}

// TopPagesQuery requests the most visited pages.
type TopPagesQuery struct {
	Range DateRange
	Limit *int
}

func (q TopPagesQuery) Dates() DateRange { return q.Range }

func (q TopPagesQuery) params() map[string]string {
	p := map[string]string{"type": ReportPages}
	setLimit(p, q.Limit)
	return p
}

// TrafficSourcesQuery requests the traffic source breakdown, site-wide or
// for a single page when PagePath is set.
type TrafficSourcesQuery struct {
	Range    DateRange
	PagePath string
}

func (q TrafficSourcesQuery) Dates() DateRange { return q.Range }

func (q TrafficSourcesQuery) params() map[string]string {
	if q.PagePath == "" {
		return map[string]string{"type": ReportTrafficSources}
	}
	return map[string]string{
		"type":     ReportSegmentation,
		"href":     q.PagePath,
		"segments": ReportTrafficSources,
	}
}

// PageTrafficQuery requests the pages report filtered to one path.
type PageTrafficQuery struct {
	Range      DateRange
	FilterPath string
}

func (q PageTrafficQuery) Dates() DateRange { return q.Range }

func (q PageTrafficQuery) params() map[string]string {
	return map[string]string{
		"type":   ReportPages,
		"filter": q.FilterPath,
	}
}

// ClampLimit caps a requested limit at MaxLimit. A nil or non-positive
// limit means the caller did not ask for one.
func ClampLimit(limit *int) (int, bool) {
	if limit == nil || *limit <= 0 {
		return 0, false
	}
	if *limit > MaxLimit {
		return MaxLimit, true
	}
	return *limit, true
}

func setLimit(p map[string]string, limit *int) {
	if n, ok := ClampLimit(limit); ok {
		p["limit"] = strconv.Itoa(n)
	}
}
