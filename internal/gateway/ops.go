package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

func userQuery(userID int64) url.Values {
	return url.Values{"user_id": []string{strconv.FormatInt(userID, 10)}}
}

// CheckUserExists reports whether the backend knows the user.
func (s *Session) CheckUserExists(ctx context.Context, userID int64) (bool, error) {
	var out any
	if err := s.call(ctx, OpCheckUserExists, userQuery(userID), nil, &out); err != nil {
		return false, err
	}
	return truthy(out), nil
}

// lookup reads a record of type T. An empty answer (null, {} or []) means
// the backend has no such record and yields nil.
func lookup[T any](ctx context.Context, s *Session, op Operation, q url.Values) (*T, error) {
	var raw json.RawMessage
	if err := s.call(ctx, op, q, nil, &raw); err != nil {
		return nil, err
	}
	var loose any
	if len(raw) > 0 {
		if err := decodeNumbers(raw, &loose); err != nil {
			return nil, &Error{Op: op, Err: fmt.Errorf("decode: %w", err)}
		}
	}
	if !truthy(loose) {
		return nil, nil
	}
	out := new(T)
	if err := decodeNumbers(raw, out); err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("decode: %w", err)}
	}
	return out, nil
}

func decodeNumbers(raw []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(out)
}

// User returns the base user record, or nil when the backend has none.
func (s *Session) User(ctx context.Context, userID int64) (*User, error) {
	q := userQuery(userID)
	q.Set("target_field", string(TargetUsers))
	out, err := lookup[User](ctx, s, OpUserData, q)
	if err != nil {
		return nil, err
	}
	if out != nil && out.UserID == 0 {
		out.UserID = userID
	}
	return out, nil
}

// Profile returns the extended profile record, or nil when the backend has
// none. An error-flagged record is returned as is; check Failed.
func (s *Session) Profile(ctx context.Context, userID int64) (*Profile, error) {
	q := userQuery(userID)
	q.Set("target_field", string(TargetProfiles))
	out, err := lookup[Profile](ctx, s, OpUserData, q)
	if err != nil {
		return nil, err
	}
	if out != nil && out.UserID == 0 {
		out.UserID = userID
	}
	return out, nil
}

// Payment returns the subscription snapshot, or nil when the backend has none.
func (s *Session) Payment(ctx context.Context, userID int64) (*Payment, error) {
	var out *Payment
	if err := s.call(ctx, OpPaymentData, userQuery(userID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DueTo returns the raw subscription expiry, or "" when unknown.
func (s *Session) DueTo(ctx context.Context, userID int64) (string, error) {
	var out any
	if err := s.call(ctx, OpDueTo, userQuery(userID), nil, &out); err != nil {
		return "", err
	}
	return pickString(out, "due_to", "until"), nil
}

// NicknameAvailable asks the backend whether nickname is still free. The
// backend answers truthy for a free nickname.
func (s *Session) NicknameAvailable(ctx context.Context, nickname string) (bool, error) {
	q := url.Values{"nickname": []string{nickname}}
	var out any
	if err := s.call(ctx, OpNicknameExists, q, nil, &out); err != nil {
		return false, err
	}
	return truthy(out), nil
}

// PaymentLink returns a payment link for the user.
func (s *Session) PaymentLink(ctx context.Context, userID int64) (string, error) {
	var out any
	if err := s.call(ctx, OpYookassaLink, userQuery(userID), nil, &out); err != nil {
		return "", err
	}
	return pickString(out, "link", "url", "confirmation_url"), nil
}

// AddUser registers a new user.
func (s *Session) AddUser(ctx context.Context, u User) error {
	return s.call(ctx, OpAddUser, nil, u, nil)
}

type toggleRequest struct {
	UserID   int64 `json:"user_id"`
	Activate bool  `json:"activate"`
}

// ActivateSubscription resumes the user's subscription.
func (s *Session) ActivateSubscription(ctx context.Context, userID int64) error {
	return s.call(ctx, OpActivateSubscription, nil, toggleRequest{UserID: userID, Activate: true}, nil)
}

// DeactivateSubscription pauses the user's subscription.
func (s *Session) DeactivateSubscription(ctx context.Context, userID int64) error {
	return s.call(ctx, OpDeactivateSubscription, nil, toggleRequest{UserID: userID, Activate: false}, nil)
}

// UpdateUser writes the base user record back.
func (s *Session) UpdateUser(ctx context.Context, u User) error {
	return s.call(ctx, OpUpdateProfile, nil, u, nil)
}

// UpdateProfile writes the extended profile record back.
func (s *Session) UpdateProfile(ctx context.Context, p Profile) error {
	p.Error = nil
	return s.call(ctx, OpUpdateProfile, nil, p, nil)
}

// pickString extracts a string from a bare JSON string or from the first
// matching key of a JSON object.
func pickString(v any, keys ...string) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case map[string]any:
		for _, k := range keys {
			if s, ok := x[k].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// NicknameAvailable runs Session.NicknameAvailable in its own block.
func (c *Client) NicknameAvailable(ctx context.Context, nickname string) (bool, error) {
	var free bool
	err := c.Do(ctx, func(s *Session) error {
		var err error
		free, err = s.NicknameAvailable(ctx, nickname)
		return err
	})
	return free, err
}

// UpdateUser runs Session.UpdateUser in its own block.
func (c *Client) UpdateUser(ctx context.Context, u User) error {
	return c.Do(ctx, func(s *Session) error { return s.UpdateUser(ctx, u) })
}

// UpdateProfile runs Session.UpdateProfile in its own block.
func (c *Client) UpdateProfile(ctx context.Context, p Profile) error {
	return c.Do(ctx, func(s *Session) error { return s.UpdateProfile(ctx, p) })
}
