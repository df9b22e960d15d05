package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/m3rciful/langbot/core/telegram/state"
	"github.com/m3rciful/langbot/internal/gateway"
	"github.com/m3rciful/langbot/internal/session"
)

// ErrNoApplicant is returned when registration is confirmed without a
// seeded session.
var ErrNoApplicant = errors.New("flow: no registration in progress")

// SupportedLangCodes are the interface languages; anything else falls back
// to DefaultLangCode when a user is registered.
var SupportedLangCodes = []string{"en", "ru", "de", "es", "zh"}

// DefaultLangCode is the interface language fallback.
const DefaultLangCode = "en"

const noUsername = "NO USERNAME"

// Applicant is the chat identity a registration starts from.
type Applicant struct {
	UserID    int64
	Username  string
	FirstName string
	LangCode  string
}

// Registration is the onboarding track: came-from, language and fluency as
// single choices, then bounded topic selection.
type Registration struct {
	machine *Machine
	store   state.Store
}

// NewRegistration wires a Registration.
func NewRegistration(m *Machine, store state.Store) *Registration {
	return &Registration{machine: m, store: store}
}

// Start seeds the session with the applicant's chat identity.
func (r *Registration) Start(ctx context.Context, a Applicant) error {
	username := a.Username
	if username == "" {
		username = noUsername
	}
	return r.update(ctx, a.UserID, map[string]any{
		session.KeyUserID:    a.UserID,
		session.KeyUsername:  username,
		session.KeyFirstName: a.FirstName,
		session.KeyLangCode:  a.LangCode,
	})
}

// CameFrom records where the user heard about the bot.
func (r *Registration) CameFrom(ctx context.Context, userID int64, choice string) error {
	return r.update(ctx, userID, map[string]any{session.KeyCameFrom: choice})
}

// Language records the language the user wants to practise.
func (r *Registration) Language(ctx context.Context, userID int64, lang string) error {
	return r.update(ctx, userID, map[string]any{session.KeyLanguage: lang})
}

// Fluency records the fluency level and opens topic selection.
func (r *Registration) Fluency(ctx context.Context, userID int64, level int) (Step, error) {
	if err := r.update(ctx, userID, map[string]any{
		session.KeyFluency: level,
		session.KeyTopics:  []string{},
	}); err != nil {
		return Step{}, err
	}
	to, err := r.machine.Fire(ctx, userID, EventChooseTopics)
	if err != nil {
		return Step{}, err
	}
	return Step{Outcome: Advance, State: to, Topics: Topics{}}, nil
}

// Topic toggles a topic or, for SentinelEndSelection, closes selection.
// Closing with nothing selected keeps the user on the step.
func (r *Registration) Topic(ctx context.Context, userID int64, choice string) (Step, error) {
	cur, err := r.machine.Current(ctx, userID)
	if err != nil {
		return Step{}, err
	}
	// EventToggleTopic is shared with the profile edit, so the state decides.
	if cur != WaitingSelection {
		return Step{State: cur}, fmt.Errorf("%w: topic in %s", ErrIllegalTransition, cur)
	}
	data, err := r.store.Data(ctx, userID)
	if err != nil {
		return Step{}, fmt.Errorf("flow: read session: %w", err)
	}
	acc, _ := state.Strings(data, session.KeyTopics)
	topics := Topics(acc)

	if choice == SentinelEndSelection {
		if len(topics) == 0 {
			return Step{Outcome: Stay, State: cur, Topics: Topics{}}, nil
		}
		to, err := r.machine.Fire(ctx, userID, EventEndSelection)
		if err != nil {
			return Step{}, err
		}
		return Step{Outcome: Advance, State: to, Topics: topics}, nil
	}

	topics = topics.Toggle(choice)
	if err := r.update(ctx, userID, map[string]any{session.KeyTopics: topics.Strings()}); err != nil {
		return Step{}, err
	}
	to, err := r.machine.Fire(ctx, userID, EventToggleTopic)
	if err != nil {
		return Step{}, err
	}
	return Step{Outcome: Stay, State: to, Topics: topics}, nil
}

// Applicant builds the add_user record from the seeded session.
func (r *Registration) Applicant(ctx context.Context, userID int64) (gateway.User, error) {
	data, err := r.store.Data(ctx, userID)
	if err != nil {
		return gateway.User{}, fmt.Errorf("flow: read session: %w", err)
	}
	id, ok := state.Int64(data, session.KeyUserID)
	if !ok || id == 0 {
		return gateway.User{}, ErrNoApplicant
	}
	rec := session.FromData(data)
	u := rec.ToUser()
	u.LangCode = InterfaceLang(rec.LangCode)
	return u, nil
}

// Finish drops the registration scratch so the next access hydrates the
// freshly registered user from the gateway.
func (r *Registration) Finish(ctx context.Context, userID int64) error {
	if err := r.store.Clear(ctx, userID); err != nil {
		return fmt.Errorf("flow: clear session: %w", err)
	}
	return nil
}

func (r *Registration) update(ctx context.Context, userID int64, patch map[string]any) error {
	if err := r.store.Update(ctx, userID, patch); err != nil {
		return fmt.Errorf("flow: write session: %w", err)
	}
	return nil
}

// InterfaceLang maps a chat language code onto a supported one.
func InterfaceLang(code string) string {
	for _, c := range SupportedLangCodes {
		if c == code {
			return code
		}
	}
	return DefaultLangCode
}
