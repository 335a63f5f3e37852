package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ComponentKind distinguishes components that carry kind-specific detail
type ComponentKind string

const (
	KindGeneric     ComponentKind = "generic" // {weight, contribution} only
	KindCrossSource ComponentKind = "cross_source"
	KindReviewGap   ComponentKind = "review_gap"
)

// Component 기회 점수의 가중 구성요소
// contribution <= weight * 100 (업스트림 보장, 여기서는 검증하지 않음)
type Component struct {
	Key          string
	Weight       float64
	Contribution float64
	Raw          Diagnostic
	Normalized   Diagnostic

	// Kind-specific detail; at most one is set
	CrossSource *CrossSourceDetail
	ReviewGap   *ReviewGapDetail
}

// CrossSourceDetail counts corroborating signal sources
type CrossSourceDetail struct {
	SourcesPositive *int `json:"sources_positive,omitempty"`
	TotalSources    *int `json:"total_sources,omitempty"`
}

// ReviewGapDetail carries the review-gap severity heuristic
type ReviewGapDetail struct {
	Severity *float64 `json:"severity,omitempty"`
}

// Kind returns the component variant
func (c Component) Kind() ComponentKind {
	switch {
	case c.CrossSource != nil:
		return KindCrossSource
	case c.ReviewGap != nil:
		return KindReviewGap
	default:
		return KindGeneric
	}
}

type componentWire struct {
	Weight          float64    `json:"weight"`
	Contribution    float64    `json:"contribution"`
	Raw             Diagnostic `json:"raw,omitempty"`
	Normalized      Diagnostic `json:"normalized,omitempty"`
	SourcesPositive *int       `json:"sources_positive,omitempty"`
	TotalSources    *int       `json:"total_sources,omitempty"`
	Severity        *float64   `json:"severity,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (c Component) MarshalJSON() ([]byte, error) {
	w := componentWire{
		Weight:       c.Weight,
		Contribution: c.Contribution,
		Raw:          c.Raw,
		Normalized:   c.Normalized,
	}
	if c.CrossSource != nil {
		w.SourcesPositive = c.CrossSource.SourcesPositive
		w.TotalSources = c.CrossSource.TotalSources
	}
	if c.ReviewGap != nil {
		w.Severity = c.ReviewGap.Severity
	}
	return json.Marshal(w)
}

// decodeComponent builds a Component from a loosely typed JSON object
// 숫자 필드는 숫자/숫자 문자열만 허용, 그 외(비유한 포함)는 없음으로 취급
func decodeComponent(key string, data []byte) (Component, error) {
	c := Component{Key: key}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return c, fmt.Errorf("component %q: %w", key, err)
	}

	if v, ok := parseNumber(fields["weight"]); ok {
		c.Weight = v
	}
	if v, ok := parseNumber(fields["contribution"]); ok {
		c.Contribution = v
	}
	if raw, ok := fields["raw"]; ok {
		c.Raw = Diagnostic(raw)
	}
	if norm, ok := fields["normalized"]; ok {
		c.Normalized = Diagnostic(norm)
	}

	switch key {
	case ComponentCrossSource:
		c.CrossSource = &CrossSourceDetail{
			SourcesPositive: parseCount(fields["sources_positive"]),
			TotalSources:    parseCount(fields["total_sources"]),
		}
	case ComponentReviewGap:
		d := &ReviewGapDetail{}
		if v, ok := parseNumber(fields["severity"]); ok {
			d.Severity = &v
		}
		c.ReviewGap = d
	}

	return c, nil
}

func parseNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		raw = []byte(s)
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// 소스 개수 범위 밖의 값은 없는 것으로 취급 (int 변환 오버플로 방지)
const maxCount = 1 << 31

func parseCount(raw json.RawMessage) *int {
	f, ok := parseNumber(raw)
	if !ok {
		return nil
	}
	f = math.Floor(f)
	if f < -maxCount || f >= maxCount {
		return nil
	}
	n := int(f)
	return &n
}

// ComponentSet is the components map with upstream key order preserved
// 정렬 동률 시 원래 순서를 유지하기 위해 map 대신 슬라이스로 보관
type ComponentSet []Component

// Get returns the component with the given key
func (s ComponentSet) Get(key string) (Component, bool) {
	for _, c := range s {
		if c.Key == key {
			return c, true
		}
	}
	return Component{}, false
}

// MarshalJSON emits a JSON object in stored order
func (s ComponentSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping key order
// 중복 키는 마지막 값으로 덮어씀 (encoding/json map 동작과 동일)
func (s *ComponentSet) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("components: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("components: expected object")
	}

	var out ComponentSet
	index := make(map[string]int)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("components: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("components: expected key")
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("components: %w", err)
		}

		// 객체가 아닌 값(null 등)은 건너뜀
		if t := bytes.TrimSpace(raw); len(t) == 0 || t[0] != '{' {
			continue
		}

		c, err := decodeComponent(key, raw)
		if err != nil {
			return err
		}
		if i, dup := index[key]; dup {
			out[i] = c
			continue
		}
		index[key] = len(out)
		out = append(out, c)
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("components: %w", err)
	}

	*s = out
	return nil
}
