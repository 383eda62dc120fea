// Package services – payload normalization
//
// The chat provider is loose about field names and value types. Normalize
// turns one raw webhook body into a strongly typed Event and decides, once,
// what kind of event it is. Everything downstream switches on Event.Kind.
package services

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Kind classifies a normalized event.
type Kind int

const (
	// KindMessage is a chat message to be stored.
	KindMessage Kind = iota + 1
	// KindTakeover signals that a human agent claimed the conversation.
	KindTakeover
	// KindIgnored is acknowledged without persistence (tool-role events).
	KindIgnored
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindTakeover:
		return "takeover"
	case KindIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

const roleTool = "tool"

// Accepted keys per canonical field; the first non-empty value wins.
var (
	keysContextID   = []string{"contextId", "context_id"}
	keysText        = []string{"message", "text"}
	keysPhone       = []string{"contactPhone", "phone"}
	keysAgentID     = []string{"agentId", "assistantId"}
	keysMessageID   = []string{"messageId", "message_id"}
	keysRole        = []string{"role"}
	keysChannelType = []string{"channel", "channelType"}
	keysChannelID   = []string{"channelId", "channel_id"}
	keysName        = []string{"contactName", "name"}
	keysTakenOverBy = []string{"userId", "humanAgentId"}
	keysEventType   = []string{"event", "eventType"}
	keysTimestamp   = []string{"date", "timestamp"}
)

// Event is the canonical form of one provider webhook.
type Event struct {
	Kind Kind

	ContextID    string
	Role         string
	Text         string // NFC-normalized; empty when absent
	SenderPhone  string
	AgentID      string
	MessageID    string
	ChannelType  string
	ChannelID    string
	CustomerName string
	TakenOverBy  string
	EventType    string

	// Timestamp is the provider event time, or the processing time when the
	// payload had none or it could not be parsed (TimestampProvided=false).
	Timestamp         time.Time
	TimestampProvided bool

	// Images and Audios are JSON arrays, nil when absent.
	Images json.RawMessage
	Audios json.RawMessage

	// Raw is the request body exactly as received.
	Raw json.RawMessage
}

// HasText reports whether the event carried non-blank message text.
func (e *Event) HasText() bool { return strings.TrimSpace(e.Text) != "" }

// Normalize parses body and classifies it. now is used when the payload has
// no usable timestamp. Only a body that is not a JSON object is an error;
// missing fields are reported by the caller, which knows which ones matter.
func Normalize(body []byte, now time.Time) (*Event, error) {
	var fields map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil, ErrMalformedPayload
	}
	if dec.More() {
		return nil, ErrMalformedPayload
	}

	ev := &Event{
		ContextID:    firstString(fields, keysContextID...),
		Role:         firstString(fields, keysRole...),
		Text:         norm.NFC.String(firstRawString(fields, keysText...)),
		SenderPhone:  firstString(fields, keysPhone...),
		AgentID:      firstString(fields, keysAgentID...),
		MessageID:    firstString(fields, keysMessageID...),
		ChannelType:  firstString(fields, keysChannelType...),
		ChannelID:    firstString(fields, keysChannelID...),
		CustomerName: norm.NFC.String(firstString(fields, keysName...)),
		TakenOverBy:  firstString(fields, keysTakenOverBy...),
		EventType:    firstString(fields, keysEventType...),
		Images:       mediaArray(fields["images"]),
		Audios:       mediaArray(fields["audios"]),
		Raw:          json.RawMessage(bytes.TrimSpace(body)),
	}

	ev.Timestamp, ev.TimestampProvided = firstTimestamp(fields, keysTimestamp...)
	if !ev.TimestampProvided {
		ev.Timestamp = now.UTC()
	}

	ev.Kind = classify(ev)
	return ev, nil
}

func classify(ev *Event) Kind {
	// A Caser carries state, so each call gets its own.
	fold := cases.Fold()
	if fold.String(ev.Role) == roleTool {
		return KindIgnored
	}
	switch fold.String(ev.EventType) {
	case "takeover", "human_takeover":
		return KindTakeover
	case "message":
		return KindMessage
	}
	// Providers without an event type announce a takeover as a bare event
	// from an agent on a channel.
	if !ev.HasText() && ev.MessageID == "" && ev.AgentID != "" && ev.ChannelID != "" {
		return KindTakeover
	}
	return KindMessage
}

// firstString returns the first key whose value renders to a non-blank
// string, trimmed.
func firstString(fields map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(scalarString(fields[k])); s != "" {
			return s
		}
	}
	return ""
}

// firstRawString is firstString without trimming the returned value.
func firstRawString(fields map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		if s := scalarString(fields[k]); strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// scalarString renders a JSON string or number. Other JSON types yield "".
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return ""
		}
		return n.String()
	default:
		return ""
	}
}

func firstTimestamp(fields map[string]json.RawMessage, keys ...string) (time.Time, bool) {
	for _, k := range keys {
		if s := strings.TrimSpace(scalarString(fields[k])); s != "" {
			return parseTimestamp(s)
		}
	}
	return time.Time{}, false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
const epochMillisThreshold = 1e12

// parseTimestamp accepts ISO-8601 strings (zone-less values are UTC) and
// numeric epochs in seconds or milliseconds.
func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return inRange(t.UTC())
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return time.Time{}, false
	}
	// Bounds are checked before the int64 conversion, which would wrap.
	if f >= epochMillisThreshold {
		if f/1000 > maxEpochSeconds {
			return time.Time{}, false
		}
		return inRange(time.UnixMilli(int64(f)).UTC())
	}
	if f > maxEpochSeconds {
		return time.Time{}, false
	}
	sec, frac := math.Modf(f)
	return inRange(time.Unix(int64(sec), int64(frac*1e9)).UTC())
}

// maxEpochSeconds is 9999-12-31T23:59:59Z, the last instant both stores
// accept.
const maxEpochSeconds = 253402300799

// inRange rejects times outside years 1..9999.
func inRange(t time.Time) (time.Time, bool) {
	if t.Year() < 1 || t.Year() > 9999 {
		return time.Time{}, false
	}
	return t, true
}

// mediaArray keeps a JSON array as-is, wraps a single object or string in
// an array and drops null or absent values.
func mediaArray(raw json.RawMessage) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '[' {
		return raw
	}
	out := make([]byte, 0, len(raw)+2)
	out = append(out, '[')
	out = append(out, raw...)
	out = append(out, ']')
	return out
}
