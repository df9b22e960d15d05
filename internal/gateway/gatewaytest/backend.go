// Package gatewaytest provides an in-process fake of the backend gateway
// for tests.
package gatewaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/m3rciful/langbot/internal/gateway"
)

// Toggle records one subscription toggle request.
type Toggle struct {
	UserID   int64
	Activate bool
}

// Backend is a fake gateway. Records are raw JSON-like values so tests can
// feed the odd shapes real upstreams produce.
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	users    map[int64]any
	profiles map[int64]any
	payments map[int64]any
	taken    map[string]bool
	link     string
	failures map[gateway.Operation]int
	calls    map[gateway.Operation]int

	added           []gateway.User
	updatedUsers    []gateway.User
	updatedProfiles []gateway.Profile
	toggles         []Toggle
}

// New starts a Backend that is closed when the test ends.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		users:    map[int64]any{},
		profiles: map[int64]any{},
		payments: map[int64]any{},
		taken:    map[string]bool{},
		link:     "https://pay.example/checkout",
		failures: map[gateway.Operation]int{},
		calls:    map[gateway.Operation]int{},
	}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)
	return b
}

// Client returns a gateway client pointed at the Backend.
func (b *Backend) Client(t testing.TB) *gateway.Client {
	t.Helper()
	cfg := gateway.Config{URL: b.Server.URL, TimeoutSeconds: 2}
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("gateway config: %v", err)
	}
	c, err := gateway.New(cfg)
	if err != nil {
		t.Fatalf("gateway client: %v", err)
	}
	return c
}

// SetUser stores the base user record returned for userID.
func (b *Backend) SetUser(userID int64, rec any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[userID] = rec
}

// SetProfile stores the profile record returned for userID.
func (b *Backend) SetProfile(userID int64, rec any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profiles[userID] = rec
}

// SetPayment stores the subscription snapshot returned for userID.
func (b *Backend) SetPayment(userID int64, rec any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payments[userID] = rec
}

// Take marks nickname as already used.
func (b *Backend) Take(nickname string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.taken[nickname] = true
}

// Fail makes op answer with status until cleared with status 0.
func (b *Backend) Fail(op gateway.Operation, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == 0 {
		delete(b.failures, op)
		return
	}
	b.failures[op] = status
}

// Calls reports how many requests op received.
func (b *Backend) Calls(op gateway.Operation) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// Added returns the users posted through add_user.
func (b *Backend) Added() []gateway.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]gateway.User(nil), b.added...)
}

// UpdatedUsers returns the user records written through update_profile.
func (b *Backend) UpdatedUsers() []gateway.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]gateway.User(nil), b.updatedUsers...)
}

// UpdatedProfiles returns the profile records written through update_profile.
func (b *Backend) UpdatedProfiles() []gateway.Profile {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]gateway.Profile(nil), b.updatedProfiles...)
}

// Toggles returns the subscription toggle requests.
func (b *Backend) Toggles() []Toggle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Toggle(nil), b.toggles...)
}

// operationFor maps a request back to its operation. Both toggle_sub
// directions are counted as activate_subscription.
func operationFor(r *http.Request) gateway.Operation {
	switch r.URL.Path {
	case "/api/users":
		if r.Method == http.MethodPost {
			return gateway.OpAddUser
		}
		if r.URL.Query().Get("target_field") != "" {
			return gateway.OpUserData
		}
		return gateway.OpCheckUserExists
	case "/api/payment_data":
		return gateway.OpPaymentData
	case "/api/due_to":
		return gateway.OpDueTo
	case "/api/nicknames":
		return gateway.OpNicknameExists
	case "/api/yookassa_link":
		return gateway.OpYookassaLink
	case "/api/toggle_sub":
		return gateway.OpActivateSubscription
	case "/api/update_profile":
		return gateway.OpUpdateProfile
	}
	return ""
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	op := operationFor(r)
	if op == "" {
		http.NotFound(w, r)
		return
	}
	userID, _ := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[op]++
	if status, ok := b.failures[op]; ok {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"detail":"injected failure"}`))
		return
	}

	switch op {
	case gateway.OpCheckUserExists:
		_, ok := b.users[userID]
		writeJSON(w, http.StatusOK, ok)
	case gateway.OpUserData:
		src := b.users
		if r.URL.Query().Get("target_field") == string(gateway.TargetProfiles) {
			src = b.profiles
		}
		writeJSON(w, http.StatusOK, src[userID])
	case gateway.OpPaymentData:
		writeJSON(w, http.StatusOK, b.payments[userID])
	case gateway.OpDueTo:
		var until any
		if p, ok := b.payments[userID].(map[string]any); ok {
			until = p["until"]
		}
		writeJSON(w, http.StatusOK, map[string]any{"due_to": until})
	case gateway.OpNicknameExists:
		writeJSON(w, http.StatusOK, !b.taken[r.URL.Query().Get("nickname")])
	case gateway.OpYookassaLink:
		writeJSON(w, http.StatusOK, map[string]any{"link": b.link})
	case gateway.OpAddUser:
		var u gateway.User
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.added = append(b.added, u)
		b.users[u.UserID] = u
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case gateway.OpActivateSubscription:
		var req struct {
			UserID   int64 `json:"user_id"`
			Activate bool  `json:"activate"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.toggles = append(b.toggles, Toggle{UserID: req.UserID, Activate: req.Activate})
		if p, ok := b.payments[req.UserID].(map[string]any); ok {
			p["is_active"] = req.Activate
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case gateway.OpUpdateProfile:
		b.update(w, r)
	}
}

func (b *Backend) update(w http.ResponseWriter, r *http.Request) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	body, _ := json.Marshal(raw)
	if _, isUser := raw["first_name"]; isUser {
		var u gateway.User
		if err := json.Unmarshal(body, &u); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.updatedUsers = append(b.updatedUsers, u)
		b.users[u.UserID] = u
	} else {
		var p gateway.Profile
		if err := json.Unmarshal(body, &p); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.updatedProfiles = append(b.updatedProfiles, p)
		b.profiles[p.UserID] = p
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
