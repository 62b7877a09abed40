package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type SenderKind int

const (
	Participant SenderKind = iota
	Assistant
	System
)

func (k SenderKind) String() string {
	switch k {
	case Assistant:
		return "assistant"
	case System:
		return "system"
	default:
		return "participant"
	}
}

// Wire sentinels used by the backend for non-human senders.
const (
	AssistantName = "TasteBuddy"
	SystemName    = "system"
	GuestName     = "Guest"
)

// Sender identifies who appended an entry. Name is only meaningful for participants.
type Sender struct {
	Kind SenderKind
	Name string
}

func ParticipantSender(name string) Sender {
	name = strings.TrimSpace(name)
	if name == "" {
		name = GuestName
	}
	return Sender{Kind: Participant, Name: name}
}

// ParseSender decodes the wire sender field into its tagged form.
func ParseSender(raw string) Sender {
	switch {
	case strings.EqualFold(strings.TrimSpace(raw), AssistantName):
		return Sender{Kind: Assistant, Name: AssistantName}
	case strings.EqualFold(strings.TrimSpace(raw), SystemName):
		return Sender{Kind: System, Name: SystemName}
	default:
		return ParticipantSender(raw)
	}
}

func (s Sender) String() string {
	return s.Name
}

func (s *Sender) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("sender: %w", err)
	}
	*s = ParseSender(raw)
	return nil
}

func (s Sender) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Name)
}

// LogEntry is one immutable item of the shared conversation log.
type LogEntry struct {
	ID              string
	HasID           bool
	Sender          Sender
	Text            string
	Harmony         *float64
	Recommendations []Venue
}

type rawEntry struct {
	ID          json.RawMessage `json:"id"`
	Sender      Sender          `json:"sender"`
	Text        string          `json:"text"`
	Harmony     *float64        `json:"harmony"`
	Restaurants []Venue         `json:"restaurants"`
}

func (e *LogEntry) UnmarshalJSON(data []byte) error {
	raw := rawEntry{Sender: ParticipantSender("")}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, ok := parseID(raw.ID)
	*e = LogEntry{
		ID:              id,
		HasID:           ok,
		Sender:          raw.Sender,
		Text:            raw.Text,
		Recommendations: raw.Restaurants,
	}
	if raw.Harmony != nil {
		h := ClampHarmony(*raw.Harmony)
		e.Harmony = &h
	}
	return nil
}

func (e LogEntry) MarshalJSON() ([]byte, error) {
	out := struct {
		ID          any      `json:"id,omitempty"`
		Sender      Sender   `json:"sender"`
		Text        string   `json:"text"`
		Harmony     *float64 `json:"harmony,omitempty"`
		Restaurants []Venue  `json:"restaurants,omitempty"`
	}{Sender: e.Sender, Text: e.Text, Harmony: e.Harmony, Restaurants: e.Recommendations}
	if e.HasID {
		out.ID = e.ID
	}
	return json.Marshal(out)
}

// parseID keeps the id's literal text. Numbers and strings are both accepted.
func parseID(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return "", false
		}
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false
	}
	return n.String(), true
}

// IsAssistant reports whether the entry carries assistant decorations.
func (e LogEntry) IsAssistant() bool {
	return e.Sender.Kind == Assistant
}

// Venue is a recommended place. Only Title is required.
type Venue struct {
	Title   string
	Rating  *float64
	Price   string
	Type    string
	Address string

	// Extra holds backend fields we don't render so exports round-trip them.
	Extra map[string]json.RawMessage
}

var venueKeys = []string{"title", "rating", "price", "type", "address"}

func (v *Venue) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("venue: %w", err)
	}

	*v = Venue{
		Title:   stringField(fields["title"]),
		Rating:  numberField(fields["rating"]),
		Price:   stringField(fields["price"]),
		Type:    stringField(fields["type"]),
		Address: stringField(fields["address"]),
	}
	for _, k := range venueKeys {
		delete(fields, k)
	}
	if len(fields) > 0 {
		v.Extra = fields
	}
	return nil
}

func (v Venue) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(v.Extra)+len(venueKeys))
	for k, raw := range v.Extra {
		out[k] = raw
	}
	out["title"] = v.Title
	if v.Rating != nil {
		out["rating"] = *v.Rating
	}
	if v.Price != "" {
		out["price"] = v.Price
	}
	if v.Type != "" {
		out["type"] = v.Type
	}
	if v.Address != "" {
		out["address"] = v.Address
	}
	return json.Marshal(out)
}

func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	// Some sources send numbers for price tiers
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func numberField(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return &parsed
		}
	}
	return nil
}

// DecodeLog parses a /history response body.
func DecodeLog(data []byte) ([]LogEntry, error) {
	var entries []LogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode log: %w", err)
	}
	return entries, nil
}
