// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package events

import (
	"unicode/utf8"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
)

const (
	// TypeAttribute is the log attribute that names the event type.
	TypeAttribute = "event.name"

	// BodyField is the field name given to the log body.
	BodyField = "body"
)

// Batch maps the log records of an OTLP request to events. Changes made to
// the events are written back by Request.
type Batch struct {
	req     *collogspb.ExportLogsServiceRequest
	records []*logspb.LogRecord
	events  []*Event
}

// FromRequest builds a batch over req. Each log record becomes an event
// whose type is its event.name attribute and whose fields are its other
// attributes, in order, followed by the body.
func FromRequest(req *collogspb.ExportLogsServiceRequest) *Batch {
	b := &Batch{req: req}
	for _, rl := range req.GetResourceLogs() {
		for _, sl := range rl.GetScopeLogs() {
			for _, rec := range sl.GetLogRecords() {
				b.records = append(b.records, rec)
				b.events = append(b.events, toEvent(rec))
			}
		}
	}
	return b
}

// Events returns the events in record order.
func (b *Batch) Events() []*Event {
	return b.events
}

// Request writes the events back into the request and returns it. Removed
// events are dropped, as are scopes and resources left without records.
func (b *Batch) Request() *collogspb.ExportLogsServiceRequest {
	byRecord := make(map[*logspb.LogRecord]*Event, len(b.records))
	for i, rec := range b.records {
		byRecord[rec] = b.events[i]
	}

	var resources []*logspb.ResourceLogs
	for _, rl := range b.req.GetResourceLogs() {
		var scopes []*logspb.ScopeLogs
		for _, sl := range rl.GetScopeLogs() {
			var kept []*logspb.LogRecord
			for _, rec := range sl.GetLogRecords() {
				ev := byRecord[rec]
				if ev == nil || ev.Removed() {
					continue
				}
				applyEvent(rec, ev)
				kept = append(kept, rec)
			}
			if len(kept) == 0 {
				continue
			}
			sl.LogRecords = kept
			scopes = append(scopes, sl)
		}
		if len(scopes) == 0 {
			continue
		}
		rl.ScopeLogs = scopes
		resources = append(resources, rl)
	}
	b.req.ResourceLogs = resources
	return b.req
}

func toEvent(rec *logspb.LogRecord) *Event {
	ev := &Event{}
	for _, kv := range rec.GetAttributes() {
		if kv.GetKey() == TypeAttribute {
			ev.Type = kv.GetValue().GetStringValue()
			continue
		}
		ev.Fields = append(ev.Fields, Field{Name: kv.GetKey(), Value: FromAnyValue(kv.GetValue())})
	}
	if rec.Body != nil {
		ev.Fields = append(ev.Fields, Field{Name: BodyField, Value: FromAnyValue(rec.Body)})
	}
	return ev
}

// applyEvent copies field values back. Fields line up with the attributes
// other than event.name, then the body.
func applyEvent(rec *logspb.LogRecord, ev *Event) {
	i := 0
	for _, kv := range rec.GetAttributes() {
		if kv.GetKey() == TypeAttribute {
			continue
		}
		if i < len(ev.Fields) {
			kv.Value = ToAnyValue(ev.Fields[i].Value)
		}
		i++
	}
	if rec.Body != nil && i < len(ev.Fields) {
		rec.Body = ToAnyValue(ev.Fields[i].Value)
	}
}

// FromAnyValue converts an OTLP value. Key-value lists become maps that keep
// their key order.
func FromAnyValue(v *commonpb.AnyValue) Value {
	if v == nil {
		return Empty()
	}
	switch val := v.Value.(type) {
	case *commonpb.AnyValue_StringValue:
		return String(val.StringValue)
	case *commonpb.AnyValue_IntValue:
		return Int(val.IntValue)
	case *commonpb.AnyValue_DoubleValue:
		return Double(val.DoubleValue)
	case *commonpb.AnyValue_BoolValue:
		return Bool(val.BoolValue)
	case *commonpb.AnyValue_BytesValue:
		return Bytes(val.BytesValue)
	case *commonpb.AnyValue_ArrayValue:
		items := val.ArrayValue.GetValues()
		out := make([]Value, len(items))
		for i, item := range items {
			out[i] = FromAnyValue(item)
		}
		return Array(out...)
	case *commonpb.AnyValue_KvlistValue:
		kvs := val.KvlistValue.GetValues()
		fields := make([]Field, len(kvs))
		for i, kv := range kvs {
			fields[i] = Field{Name: kv.GetKey(), Value: FromAnyValue(kv.GetValue())}
		}
		return Map(fields...)
	default:
		return Empty()
	}
}

// ToAnyValue converts a value back to OTLP.
func ToAnyValue(v Value) *commonpb.AnyValue {
	switch v.Kind() {
	case KindString:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: sanitizeUTF8(v.Str())}}
	case KindInt:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: v.Int()}}
	case KindDouble:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: v.Double()}}
	case KindBool:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_BoolValue{BoolValue: v.Bool()}}
	case KindBytes:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_BytesValue{BytesValue: v.Bytes()}}
	case KindArray:
		items := make([]*commonpb.AnyValue, len(v.Array()))
		for i, item := range v.Array() {
			items[i] = ToAnyValue(item)
		}
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_ArrayValue{ArrayValue: &commonpb.ArrayValue{Values: items}}}
	case KindMap:
		kvs := make([]*commonpb.KeyValue, len(v.Map()))
		for i, f := range v.Map() {
			kvs[i] = &commonpb.KeyValue{Key: f.Name, Value: ToAnyValue(f.Value)}
		}
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_KvlistValue{KvlistValue: &commonpb.KeyValueList{Values: kvs}}}
	default:
		return &commonpb.AnyValue{}
	}
}

// sanitizeUTF8 replaces invalid UTF-8, which protobuf refuses to marshal in
// string fields.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return string([]rune(s))
}
