package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration accepts "10s" style strings or a number of milliseconds
type Duration time.Duration

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalJSON renders the duration as a string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	var ms float64
	if err := json.Unmarshal(data, &ms); err == nil {
		*d = Duration(time.Duration(ms * float64(time.Millisecond)))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string or milliseconds: %s", data)
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText parses environment values
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// ListenValue is the listen option: a literal channel list, free text to
// tokenize, or absent.
type ListenValue struct {
	Channels []string
	Text     string
	set      bool
}

// IsSet reports whether listen was configured
func (l ListenValue) IsSet() bool {
	return l.set
}

// MarshalJSON renders the list or the text
func (l ListenValue) MarshalJSON() ([]byte, error) {
	switch {
	case !l.set:
		return []byte("null"), nil
	case l.Channels != nil:
		return json.Marshal(l.Channels)
	default:
		return json.Marshal(l.Text)
	}
}

// UnmarshalJSON accepts an array of channels or a string
func (l *ListenValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = ListenValue{}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		if list == nil {
			list = []string{}
		}
		*l = ListenValue{Channels: list, set: true}
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("listen must be a list of channels or a string: %s", data)
	}
	*l = ListenValue{Text: text, set: true}
	return nil
}

// UnmarshalText treats environment values as free text
func (l *ListenValue) UnmarshalText(text []byte) error {
	*l = ListenValue{Text: string(text), set: true}
	return nil
}

// PrivateValue is the private option: true means the robot name, a string
// names the topic, false or absent disables it.
type PrivateValue struct {
	Enabled bool
	Topic   string
}

// Resolve returns the private topic for robot, or "" when disabled
func (p PrivateValue) Resolve(robot string) string {
	if !p.Enabled {
		return ""
	}
	if p.Topic != "" {
		return p.Topic
	}
	return robot
}

// MarshalJSON renders the topic or the boolean
func (p PrivateValue) MarshalJSON() ([]byte, error) {
	if p.Enabled && p.Topic != "" {
		return json.Marshal(p.Topic)
	}
	return json.Marshal(p.Enabled)
}

// UnmarshalJSON accepts a boolean or a topic string
func (p *PrivateValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = PrivateValue{}
		return nil
	}

	var enabled bool
	if err := json.Unmarshal(data, &enabled); err == nil {
		*p = PrivateValue{Enabled: enabled}
		return nil
	}

	var topic string
	if err := json.Unmarshal(data, &topic); err != nil {
		return fmt.Errorf("private must be a boolean or a topic: %s", data)
	}
	*p = PrivateValue{Enabled: topic != "", Topic: topic}
	return nil
}

// UnmarshalText parses environment values: booleans or a topic
func (p *PrivateValue) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if enabled, err := strconv.ParseBool(s); err == nil {
		*p = PrivateValue{Enabled: enabled}
		return nil
	}
	*p = PrivateValue{Enabled: s != "", Topic: s}
	return nil
}
