package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Target selects which upstream record user_data returns.
type Target string

const (
	TargetUsers    Target = "users"
	TargetProfiles Target = "profiles"
)

// User is the base user record, also the write shape for add_user and
// update_profile on the user side.
type User struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	CameFrom  string    `json:"camefrom"`
	Language  string    `json:"language"`
	Fluency   int       `json:"fluency"`
	Topics    TopicList `json:"topics"`
	LangCode  string    `json:"lang_code"`
}

// Profile is the extended profile record. Optional fields stay nil when the
// upstream omits them so they round-trip unchanged.
type Profile struct {
	UserID   int64   `json:"user_id"`
	Nickname *string `json:"nickname"`
	Email    *string `json:"email"`
	Gender   *string `json:"gender"`
	Intro    *string `json:"intro"`
	Birthday *string `json:"birthday"`
	Dating   *bool   `json:"dating"`
	Status   *string `json:"status"`
	// Error is set by the upstream instead of a profile when lookup failed.
	Error any `json:"error,omitempty"`
}

// Failed reports whether the upstream flagged the profile as an error.
func (p *Profile) Failed() bool {
	return p != nil && truthy(p.Error)
}

// Payment is the subscription snapshot.
type Payment struct {
	IsActive FlexBool `json:"is_active"`
	Until    *string  `json:"until"`
}

// Expiry returns the raw expiry timestamp, or "" when absent.
func (p *Payment) Expiry() string {
	if p == nil || p.Until == nil {
		return ""
	}
	return strings.TrimSpace(*p.Until)
}

// FlexBool decodes JSON booleans and the strings "true"/"false" in any case.
// Anything else decodes as false.
type FlexBool bool

// UnmarshalJSON implements json.Unmarshaler.
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case bool:
		*b = FlexBool(x)
	case string:
		*b = FlexBool(strings.EqualFold(strings.TrimSpace(x), "true"))
	default:
		*b = false
	}
	return nil
}

// TopicList is an ordered set of topic tags. It decodes from a JSON array or
// from a comma-joined string and always encodes as an array.
type TopicList []string

// UnmarshalJSON implements json.Unmarshaler.
func (t *TopicList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*t = nil
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var joined string
		if err := json.Unmarshal(trimmed, &joined); err != nil {
			return err
		}
		*t = SplitTopics(joined)
		return nil
	}
	var list []string
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return fmt.Errorf("topics: %w", err)
	}
	*t = list
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t TopicList) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(t))
}

// SplitTopics parses a comma-joined topic string, dropping empty items.
func SplitTopics(joined string) TopicList {
	parts := strings.Split(joined, ",")
	out := make(TopicList, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// truthy mirrors loose truthiness of decoded JSON values.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case json.Number:
		return x.String() != "0"
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}
