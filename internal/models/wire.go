package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Wire shapes for the observability backends. Field names follow the Loki,
// Prometheus remote-read and Tempo search response schemas.

// LogResponse is a Loki query_range response.
type LogResponse struct {
	Status string  `json:"status,omitempty"`
	Data   LogData `json:"data"`
}

type LogData struct {
	ResultType string      `json:"resultType,omitempty"`
	Result     []LogStream `json:"result"`
}

// LogStream is one labelled stream with [ns_string, line] value pairs.
type LogStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

// MetricResponse is a Prometheus-compatible query_range response.
type MetricResponse struct {
	Status string     `json:"status,omitempty"`
	Data   MetricData `json:"data"`
}

type MetricData struct {
	ResultType string         `json:"resultType,omitempty"`
	Result     []MetricSeries `json:"result"`
}

// MetricSeries is one labelled series of [unix_sec, "value"] samples.
type MetricSeries struct {
	Metric map[string]string `json:"metric"`
	Values []MetricSample    `json:"values"`
}

// MetricSample is the [timestamp, "<float>"] pair Prometheus emits.
type MetricSample struct {
	Timestamp float64
	Value     string
}

func (s MetricSample) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{s.Timestamp, s.Value})
}

func (s *MetricSample) UnmarshalJSON(b []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("malformed metric sample: %w", err)
	}
	if err := json.Unmarshal(raw[0], &s.Timestamp); err != nil {
		return fmt.Errorf("malformed sample timestamp: %w", err)
	}
	if err := json.Unmarshal(raw[1], &s.Value); err != nil {
		// Some backends emit bare numbers instead of strings.
		var f float64
		if err2 := json.Unmarshal(raw[1], &f); err2 != nil {
			return fmt.Errorf("malformed sample value: %w", err)
		}
		s.Value = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return nil
}

// Float returns the parsed sample value.
func (s MetricSample) Float() (float64, error) {
	return strconv.ParseFloat(s.Value, 64)
}

// TraceResponse is a Tempo search response.
type TraceResponse struct {
	Traces []Trace `json:"traces"`
}

type Trace struct {
	RootServiceName   string    `json:"rootServiceName"`
	RootTraceName     string    `json:"rootTraceName"`
	DurationMs        float64   `json:"durationMs"`
	StartTimeUnixNano string    `json:"startTimeUnixNano,omitempty"`
	EndTimeUnixNano   string    `json:"endTimeUnixNano,omitempty"`
	SpanSets          []SpanSet `json:"spanSets,omitempty"`
	SpanSet           *SpanSet  `json:"spanSet,omitempty"`
}

// AllSpans flattens spanSets and the legacy singular spanSet field.
func (t Trace) AllSpans() []Span {
	var spans []Span
	for _, set := range t.SpanSets {
		spans = append(spans, set.Spans...)
	}
	if t.SpanSet != nil {
		spans = append(spans, t.SpanSet.Spans...)
	}
	return spans
}

type SpanSet struct {
	Spans []Span `json:"spans"`
}

type Span struct {
	Attributes []SpanAttribute `json:"attributes"`
}

// Attribute returns the string value of the named attribute, if present.
func (s Span) Attribute(key string) (string, bool) {
	for _, attr := range s.Attributes {
		if attr.Key == key {
			return attr.Value.StringValue, true
		}
	}
	return "", false
}

type SpanAttribute struct {
	Key   string    `json:"key"`
	Value AttrValue `json:"value"`
}

type AttrValue struct {
	StringValue string `json:"stringValue"`
}
