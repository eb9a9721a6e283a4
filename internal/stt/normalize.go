package stt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// RawSegment is one vendor utterance record as returned, field names
// unstable. Numbers must be json.Number (decode with UseNumber) so integer
// and float typed fields stay distinguishable.
type RawSegment map[string]any

// Segment is a vendor utterance mapped onto the canonical schema.
type Segment struct {
	Start      int64   // milliseconds
	End        int64   // milliseconds
	Text       string  // raw transcription
	TextEdited string  // editable copy
	Confidence float64 // 0..1
	Speaker    string  // speaker label
}

// SchemaError reports a vendor response whose shape could not be mapped onto
// the canonical schema. It is a terminal transcription failure: retrying an
// incompatible shape cannot succeed.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return "unrecognized vendor response shape: " + e.Reason
}

// roles maps each canonical role to the vendor field name carrying it.
type roles struct {
	start      string
	end        string
	text       string
	textEdited string
	confidence string
	speaker    string
}

// Normalize maps a vendor utterance batch onto the canonical schema. Field
// roles are inferred once, from the first segment, by value type:
//   - the two integer fields are start/end time, larger value = end;
//   - the float field is confidence;
//   - of the two string fields, the one whose name contains "edited" is the
//     editable text, the other the raw text;
//   - the object field with a name-like key is the speaker; other objects
//     and any array fields are diarization/word detail and are dropped.
//
// The inferred mapping is applied to the whole batch in vendor-returned
// order, which is assumed chronological and is not re-sorted.
func Normalize(raw []RawSegment) ([]Segment, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	r, err := inferRoles(raw[0])
	if err != nil {
		return nil, err
	}
	out := make([]Segment, 0, len(raw))
	for i, seg := range raw {
		s, err := applyRoles(r, seg)
		if err != nil {
			return nil, &SchemaError{Reason: fmt.Sprintf("segment %d: %v", i, err)}
		}
		out = append(out, s)
	}
	return out, nil
}

func inferRoles(first RawSegment) (roles, error) {
	var r roles
	type intField struct {
		name  string
		value int64
	}
	var ints []intField
	var floats, speakers []string
	var strsPlain, strsEdited []string

	// Sorted keys keep inference deterministic when values tie.
	keys := make([]string, 0, len(first))
	for k := range first {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch v := first[key].(type) {
		case json.Number:
			if n, err := v.Int64(); err == nil && !strings.ContainsAny(v.String(), ".eE") {
				ints = append(ints, intField{name: key, value: n})
			} else {
				floats = append(floats, key)
			}
		case string:
			if strings.Contains(strings.ToLower(key), "edited") {
				strsEdited = append(strsEdited, key)
			} else {
				strsPlain = append(strsPlain, key)
			}
		case map[string]any:
			if _, ok := v["name"]; ok {
				speakers = append(speakers, key)
			}
			// other objects are diarization metadata, dropped
		case []any:
			// word-level timing detail, dropped
		default:
			return r, &SchemaError{Reason: fmt.Sprintf("field %q has unsupported type %T", key, first[key])}
		}
	}

	switch {
	case len(ints) != 2:
		return r, &SchemaError{Reason: fmt.Sprintf("expected 2 integer time fields, found %d", len(ints))}
	case len(floats) != 1:
		return r, &SchemaError{Reason: fmt.Sprintf("expected 1 float confidence field, found %d", len(floats))}
	case len(strsPlain) != 1 || len(strsEdited) != 1:
		return r, &SchemaError{Reason: fmt.Sprintf("expected 2 string fields with exactly one named *edited*, found %d plain and %d edited", len(strsPlain), len(strsEdited))}
	case len(speakers) != 1:
		return r, &SchemaError{Reason: fmt.Sprintf("expected 1 speaker object field, found %d", len(speakers))}
	}

	if ints[0].value > ints[1].value {
		r.start, r.end = ints[1].name, ints[0].name
	} else {
		r.start, r.end = ints[0].name, ints[1].name
	}
	r.confidence = floats[0]
	r.text = strsPlain[0]
	r.textEdited = strsEdited[0]
	r.speaker = speakers[0]
	return r, nil
}

func applyRoles(r roles, seg RawSegment) (Segment, error) {
	var s Segment
	var err error
	if s.Start, err = intValue(seg, r.start); err != nil {
		return s, err
	}
	if s.End, err = intValue(seg, r.end); err != nil {
		return s, err
	}
	if s.Start > s.End {
		return s, fmt.Errorf("field %q (%d) after %q (%d)", r.start, s.Start, r.end, s.End)
	}
	if s.Confidence, err = floatValue(seg, r.confidence); err != nil {
		return s, err
	}
	if s.Text, err = stringValue(seg, r.text); err != nil {
		return s, err
	}
	if s.TextEdited, err = stringValue(seg, r.textEdited); err != nil {
		return s, err
	}
	if s.Speaker, err = speakerLabel(seg, r.speaker); err != nil {
		return s, err
	}
	return s, nil
}

func intValue(seg RawSegment, key string) (int64, error) {
	num, ok := seg[key].(json.Number)
	if !ok {
		return 0, fmt.Errorf("field %q is not a number", key)
	}
	n, err := num.Int64()
	if err != nil {
		return 0, fmt.Errorf("field %q is not an integer: %w", key, err)
	}
	return n, nil
}

func floatValue(seg RawSegment, key string) (float64, error) {
	num, ok := seg[key].(json.Number)
	if !ok {
		return 0, fmt.Errorf("field %q is not a number", key)
	}
	f, err := num.Float64()
	if err != nil {
		return 0, fmt.Errorf("field %q is not a float: %w", key, err)
	}
	return f, nil
}

func stringValue(seg RawSegment, key string) (string, error) {
	s, ok := seg[key].(string)
	if !ok {
		return "", fmt.Errorf("field %q is not a string", key)
	}
	return s, nil
}

// speakerLabel extracts the label from the speaker object: the "label" value
// when present, otherwise the "name" value that identified the role.
func speakerLabel(seg RawSegment, key string) (string, error) {
	obj, ok := seg[key].(map[string]any)
	if !ok {
		return "", fmt.Errorf("field %q is not an object", key)
	}
	if label, ok := obj["label"].(string); ok && label != "" {
		return label, nil
	}
	if name, ok := obj["name"].(string); ok {
		return name, nil
	}
	return "", fmt.Errorf("field %q has no label or name", key)
}
