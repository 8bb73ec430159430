package trace

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Format selects how events are rendered.
type Format uint8

const (
	FormatAuto   Format = iota // pick by output path
	FormatText                 // one human-readable line per event
	FormatNDJSON               // newline-delimited JSON
)

// ParseFormat converts a flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "text":
		return FormatText, nil
	case "ndjson", "json":
		return FormatNDJSON, nil
	}
	return FormatAuto, fmt.Errorf("invalid trace format: %q (expected: auto|text|ndjson)", s)
}

// FormatEvent renders ev as one line.
func FormatEvent(ev *Event, format Format) []byte {
	if format == FormatNDJSON {
		return formatNDJSON(ev)
	}
	return formatText(ev)
}

type jsonAttr struct {
	Key   string `json:"k"`
	Value string `json:"v"`
}

type jsonEvent struct {
	Time     string     `json:"time"`
	Seq      uint64     `json:"seq"`
	Kind     string     `json:"kind"`
	Scope    string     `json:"scope"`
	SpanID   uint64     `json:"span,omitempty"`
	ParentID uint64     `json:"parent,omitempty"`
	Name     string     `json:"name"`
	Detail   string     `json:"detail,omitempty"`
	Failed   bool       `json:"failed,omitempty"`
	Attrs    []jsonAttr `json:"attrs,omitempty"`
	Open     int64      `json:"open,omitempty"`
}

func formatNDJSON(ev *Event) []byte {
	je := jsonEvent{
		Time:     ev.Time.Format("2006-01-02T15:04:05.000000Z07:00"),
		Seq:      ev.Seq,
		Kind:     ev.Kind.String(),
		Scope:    ev.Scope.String(),
		SpanID:   ev.SpanID,
		ParentID: ev.ParentID,
		Name:     ev.Name,
		Detail:   ev.Detail,
		Failed:   ev.Failed,
		Open:     ev.Open,
	}
	for _, a := range ev.Attrs {
		je.Attrs = append(je.Attrs, jsonAttr(a))
	}
	data, _ := json.Marshal(je)
	return append(data, '\n')
}

// formatText renders "#seq [scope] <mark> name (detail) {k=v}". Nested
// events are indented once; failed ends are marked with "x".
func formatText(ev *Event) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#%06d [%s] ", ev.Seq, ev.Scope)
	if ev.ParentID > 0 {
		sb.WriteString("  ")
	}
	switch {
	case ev.Failed:
		sb.WriteString("x ")
	case ev.Kind == KindSpanBegin:
		sb.WriteString("→ ")
	case ev.Kind == KindSpanEnd:
		sb.WriteString("← ")
	case ev.Kind == KindPoint:
		sb.WriteString("• ")
	case ev.Kind == KindHeartbeat:
		sb.WriteString("♡ ")
	}
	sb.WriteString(ev.Name)
	if ev.Detail != "" {
		fmt.Fprintf(&sb, " (%s)", ev.Detail)
	}
	if ev.Kind == KindHeartbeat {
		fmt.Fprintf(&sb, " open=%d", ev.Open)
	}
	if len(ev.Attrs) > 0 {
		sb.WriteString(" {")
		for i, a := range ev.Attrs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(a.Key)
			sb.WriteByte('=')
			sb.WriteString(a.Value)
		}
		sb.WriteByte('}')
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}
