package session

import (
	"encoding/json"

	"github.com/m3rciful/langbot/core/telegram/state"
	"github.com/m3rciful/langbot/internal/gateway"
)

// Keys of the per-user session mapping.
const (
	KeyUserID    = "user_id"
	KeyUsername  = "username"
	KeyFirstName = "first_name"
	KeyLangCode  = "lang_code"
	KeyIsActive  = "is_active"
	KeyDueTo     = "due_to"
	KeyCameFrom  = "camefrom"
	KeyLanguage  = "language"
	KeyFluency   = "fluency"
	KeyTopics    = "topics"

	KeyNickname = "nickname"
	KeyEmail    = "email"
	KeyGender   = "gender"
	KeyIntro    = "intro"
	KeyBirthday = "birthday"
	KeyDating   = "dating"
	KeyStatus   = "status"
	KeyAge      = "age"

	// Scratch buffers of in-progress edits.
	KeyNewTopics   = "new_topics"
	KeyNewLanguage = "new_language"
)

// RequiredKeys must all carry a non-empty value for a session to be served
// from the store without a gateway round trip.
var RequiredKeys = []string{KeyUserID, KeyFirstName, KeyIsActive, KeyLangCode}

var profileKeys = []string{KeyNickname, KeyEmail, KeyGender, KeyIntro, KeyBirthday, KeyDating, KeyStatus}

// Complete reports whether data satisfies RequiredKeys.
func Complete(data map[string]any) bool {
	for _, key := range RequiredKeys {
		if !filled(data[key]) {
			return false
		}
	}
	return true
}

func filled(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	case int64:
		return x != 0
	case int:
		return x != 0
	case float64:
		return x != 0
	default:
		return true
	}
}

// Profile holds the optional extended profile fields. Nil pointers mean the
// upstream had no value.
type Profile struct {
	Nickname *string
	Email    *string
	Gender   *string
	Intro    *string
	Birthday *string
	Dating   *bool
	Status   *string
	Age      *int
}

// Record is the typed view of a session mapping.
type Record struct {
	UserID    int64
	Username  string
	FirstName string
	LangCode  string
	IsActive  bool
	DueTo     string
	CameFrom  string
	Language  string
	Fluency   int
	Topics    []string
	// Profile is nil when the user never filled the extended profile.
	Profile *Profile
}

// NicknameOrEmpty returns the profile nickname or "".
func (r Record) NicknameOrEmpty() string {
	if r.Profile == nil || r.Profile.Nickname == nil {
		return ""
	}
	return *r.Profile.Nickname
}

// FromData builds a Record from a stored session mapping.
func FromData(data map[string]any) Record {
	var r Record
	r.UserID, _ = state.Int64(data, KeyUserID)
	r.Username, _ = state.String(data, KeyUsername)
	r.FirstName, _ = state.String(data, KeyFirstName)
	r.LangCode, _ = state.String(data, KeyLangCode)
	r.IsActive, _ = state.Bool(data, KeyIsActive)
	r.DueTo, _ = state.String(data, KeyDueTo)
	r.CameFrom, _ = state.String(data, KeyCameFrom)
	r.Language, _ = state.String(data, KeyLanguage)
	if n, ok := state.Int64(data, KeyFluency); ok {
		r.Fluency = int(n)
	}
	r.Topics, _ = state.Strings(data, KeyTopics)

	if hasProfile(data) {
		p := &Profile{
			Nickname: optString(data, KeyNickname),
			Email:    optString(data, KeyEmail),
			Gender:   optString(data, KeyGender),
			Intro:    optString(data, KeyIntro),
			Birthday: optString(data, KeyBirthday),
			Status:   optString(data, KeyStatus),
		}
		if b, ok := state.Bool(data, KeyDating); ok {
			p.Dating = &b
		}
		if n, ok := state.Int64(data, KeyAge); ok {
			age := int(n)
			p.Age = &age
		}
		r.Profile = p
	}
	return r
}

// Data renders the Record as a session mapping. Profile keys are written
// only when a profile exists; their nil values are kept as nulls so the
// profile's presence survives a store round trip.
func (r Record) Data() map[string]any {
	topics := r.Topics
	if topics == nil {
		topics = []string{}
	}
	data := map[string]any{
		KeyUserID:    r.UserID,
		KeyUsername:  r.Username,
		KeyFirstName: r.FirstName,
		KeyLangCode:  r.LangCode,
		KeyIsActive:  r.IsActive,
		KeyCameFrom:  r.CameFrom,
		KeyLanguage:  r.Language,
		KeyFluency:   r.Fluency,
		KeyTopics:    topics,
	}
	if r.DueTo != "" {
		data[KeyDueTo] = r.DueTo
	}
	if p := r.Profile; p != nil {
		data[KeyNickname] = derefString(p.Nickname)
		data[KeyEmail] = derefString(p.Email)
		data[KeyGender] = derefString(p.Gender)
		data[KeyIntro] = derefString(p.Intro)
		data[KeyBirthday] = derefString(p.Birthday)
		data[KeyStatus] = derefString(p.Status)
		if p.Dating != nil {
			data[KeyDating] = *p.Dating
		} else {
			data[KeyDating] = nil
		}
		if p.Age != nil {
			data[KeyAge] = *p.Age
		}
	}
	return data
}

// ToUser renders the write shape of update_profile for the user side.
func (r Record) ToUser() gateway.User {
	return gateway.User{
		UserID:    r.UserID,
		Username:  r.Username,
		FirstName: r.FirstName,
		CameFrom:  r.CameFrom,
		Language:  r.Language,
		Fluency:   r.Fluency,
		Topics:    gateway.TopicList(append([]string(nil), r.Topics...)),
		LangCode:  r.LangCode,
	}
}

// ToProfile renders the write shape of update_profile for the profile side.
// The second result is false when the user has no profile.
func (r Record) ToProfile() (gateway.Profile, bool) {
	if r.Profile == nil {
		return gateway.Profile{}, false
	}
	p := r.Profile
	return gateway.Profile{
		UserID:   r.UserID,
		Nickname: p.Nickname,
		Email:    p.Email,
		Gender:   p.Gender,
		Intro:    p.Intro,
		Birthday: p.Birthday,
		Dating:   p.Dating,
		Status:   p.Status,
	}, true
}

func hasProfile(data map[string]any) bool {
	for _, key := range profileKeys {
		if state.Has(data, key) {
			return true
		}
	}
	return false
}

func optString(data map[string]any, key string) *string {
	s, ok := state.String(data, key)
	if !ok {
		return nil
	}
	return &s
}

func derefString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
