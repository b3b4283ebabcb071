package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
	"github.com/Yuvaramesh/sales-agent/agent/websearch"
)

const (
	CarMarker = "===CAR_JSON==="
	WebMarker = "===WEB_JSON==="
)

var flatJSONRe = regexp.MustCompile(`(?s)(\{[^{}]*\}|\[[^\[\]]*\])`)

// MarkerPayload returns the JSON value that follows marker in text. It tries
// a strict decode of the first value, then the first flat object or array,
// then a bracket-depth scan.
func MarkerPayload(text, marker string) (gjson.Result, error) {
	_, after, found := strings.Cut(text, marker)
	if !found {
		return gjson.Result{}, fmt.Errorf("%w: marker %s absent", contractx.ErrParse, marker)
	}
	after = strings.TrimLeft(after, " \t\r\n")

	if idx := strings.IndexAny(after, "{["); idx >= 0 {
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(after[idx:])).Decode(&raw); err == nil {
			return gjson.ParseBytes(raw), nil
		}
	}

	if m := flatJSONRe.FindString(after); m != "" && gjson.Valid(m) {
		return gjson.Parse(m), nil
	}

	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		if s, ok := balanced(after, pair[0], pair[1]); ok && gjson.Valid(s) {
			return gjson.Parse(s), nil
		}
	}
	return gjson.Result{}, fmt.Errorf("%w: no JSON after %s", contractx.ErrParse, marker)
}

func balanced(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// ParseVehicles reads a marker payload as vehicle records. An object is
// accepted as a single record unless it wraps a results array.
func ParseVehicles(payload gjson.Result) []statex.Vehicle {
	items := payload
	if payload.IsObject() {
		for _, key := range []string{"results", "cars"} {
			if inner := payload.Get(key); inner.IsArray() {
				items = inner
				break
			}
		}
	}
	if items.IsObject() {
		if m, ok := items.Value().(map[string]any); ok {
			return []statex.Vehicle{m}
		}
		return nil
	}
	if !items.IsArray() {
		return nil
	}
	out := make([]statex.Vehicle, 0, len(items.Array()))
	items.ForEach(func(_, item gjson.Result) bool {
		if m, ok := item.Value().(map[string]any); ok {
			out = append(out, m)
		}
		return true
	})
	return out
}

// StripMarkers cuts text at the first marker of either kind.
func StripMarkers(text string) string {
	for _, marker := range []string{CarMarker, WebMarker} {
		if before, _, found := strings.Cut(text, marker); found {
			text = before
		}
	}
	return strings.TrimSpace(text)
}

// MarkerUpdate reports which result lists ApplyMarkers replaced.
type MarkerUpdate struct {
	Cars bool
	Web  bool
}

func (u MarkerUpdate) Any() bool { return u.Cars || u.Web }

// ApplyMarkers stores the payloads of any markers in text on the session.
// Malformed payloads are skipped and reported through the returned error;
// whatever parsed is still applied.
func ApplyMarkers(s *statex.Session, text string) (MarkerUpdate, error) {
	var (
		upd  MarkerUpdate
		errs []error
	)
	ok, err := ApplyCarMarker(s, text)
	upd.Cars = ok
	errs = append(errs, err)
	ok, err = ApplyWebMarker(s, text)
	upd.Web = ok
	errs = append(errs, err)
	return upd, errors.Join(errs...)
}

// ApplyCarMarker replaces the session's last results with the vehicles
// following the car marker. It reports false when text has no usable payload.
func ApplyCarMarker(s *statex.Session, text string) (bool, error) {
	if !strings.Contains(text, CarMarker) {
		return false, nil
	}
	payload, err := MarkerPayload(text, CarMarker)
	if err != nil {
		return false, err
	}
	vs := ParseVehicles(payload)
	if vs == nil {
		return false, nil
	}
	s.LastResults = vs
	return true, nil
}

func ApplyWebMarker(s *statex.Session, text string) (bool, error) {
	if !strings.Contains(text, WebMarker) {
		return false, nil
	}
	payload, err := MarkerPayload(text, WebMarker)
	if err != nil {
		return false, err
	}
	s.LastWebResults = websearch.ParseResults([]byte(payload.Raw))
	return true, nil
}

// HasMarker reports whether text carries any result marker.
func HasMarker(text string) bool {
	return strings.Contains(text, CarMarker) || strings.Contains(text, WebMarker)
}
