package clicky

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// TrafficSourceReport is one report-type block of a traffic sources response.
type TrafficSourceReport struct {
	Type  string              `json:"type"`
	Dates []TrafficSourceDate `json:"dates"`
}

// TrafficSourceDate holds the sources seen for a single date block.
type TrafficSourceDate struct {
	Date           string          `json:"date"`
	TrafficSources []TrafficSource `json:"traffic_sources"`
}

// TrafficSource is a single referring source.
type TrafficSource struct {
	Source     string  `json:"source"`
	Visitors   int     `json:"visitors"`
	Percentage float64 `json:"percentage"`
}

type rawTrafficReport struct {
	Type  string `json:"type"`
	Dates []struct {
		Date  string `json:"date"`
		Items []struct {
			Title        string          `json:"title"`
			Value        json.RawMessage `json:"value"`
			ValuePercent json.RawMessage `json:"value_percent"`
		} `json:"items"`
	} `json:"dates"`
}

var errNotNumeric = errors.New("not numeric")

// ReshapeTrafficSources converts a raw traffic sources payload into
// TrafficSourceReports. A missing value_percent reads as zero; a value
// that is not numeric is a MalformedResponseError.
func ReshapeTrafficSources(body []byte) ([]TrafficSourceReport, error) {
	var raw []rawTrafficReport
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &MalformedResponseError{Err: err}
	}

	reports := make([]TrafficSourceReport, 0, len(raw))
	for _, r := range raw {
		report := TrafficSourceReport{
			Type:  r.Type,
			Dates: make([]TrafficSourceDate, 0, len(r.Dates)),
		}
		for _, d := range r.Dates {
			day := TrafficSourceDate{
				Date:           d.Date,
				TrafficSources: make([]TrafficSource, 0, len(d.Items)),
			}
			for _, item := range d.Items {
				visitors, err := parseVisitors(item.Value)
				if err != nil {
					return nil, &MalformedResponseError{Field: "value", Value: string(item.Value), Err: err}
				}
				percentage, err := parsePercentage(item.ValuePercent)
				if err != nil {
					return nil, &MalformedResponseError{Field: "value_percent", Value: string(item.ValuePercent), Err: err}
				}
				day.TrafficSources = append(day.TrafficSources, TrafficSource{
					Source:     item.Title,
					Visitors:   visitors,
					Percentage: percentage,
				})
			}
			report.Dates = append(report.Dates, day)
		}
		reports = append(reports, report)
	}

	return reports, nil
}

// numericText returns the text of a JSON string or number. ok is false for
// absent, null and empty values.
func numericText(raw json.RawMessage) (text string, ok bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", false, nil
	}
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", false, err
		}
		text = strings.TrimSpace(text)
		return text, text != "", nil
	}
	return string(raw), true, nil
}

func parseVisitors(raw json.RawMessage) (int, error) {
	text, ok, err := numericText(raw)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errNotNumeric
	}
	if n, err := strconv.Atoi(text); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotNumeric
	}
	return int(f), nil
}

func parsePercentage(raw json.RawMessage) (float64, error) {
	text, ok, err := numericText(raw)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotNumeric
	}
	return f, nil
}
