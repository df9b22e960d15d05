package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/langbot/core/telegram/state"
	"github.com/m3rciful/langbot/internal/gateway"
	"github.com/m3rciful/langbot/internal/session"
	"github.com/m3rciful/langbot/internal/validate"
)

// ErrProfileRequired is returned when a profile field is edited by a user
// who never filled the extended profile.
var ErrProfileRequired = errors.New("flow: extended profile required")

// Committer writes edited records back to the gateway.
type Committer interface {
	UpdateUser(ctx context.Context, u gateway.User) error
	UpdateProfile(ctx context.Context, p gateway.Profile) error
}

// Field names an editable part of the profile.
type Field string

const (
	FieldNickname Field = "nickname"
	FieldLanguage Field = "language"
	FieldTopics   Field = "topics"
	FieldIntro    Field = "intro"
)

var fieldEvents = map[Field]Event{
	FieldNickname: EventEditNickname,
	FieldLanguage: EventEditLanguage,
	FieldTopics:   EventEditTopics,
	FieldIntro:    EventEditIntro,
}

// ParseField resolves a field name.
func ParseField(name string) (Field, error) {
	f := Field(strings.TrimSpace(name))
	if _, ok := fieldEvents[f]; !ok {
		return "", fmt.Errorf("flow: unknown profile field %q", name)
	}
	return f, nil
}

// Edit is the profile edit track. Input is staged in the session and only
// written back once the edit completes.
type Edit struct {
	machine *Machine
	cache   *session.Cache
	commit  Committer
	checker validate.NicknameChecker
}

// NewEdit wires an Edit.
func NewEdit(m *Machine, cache *session.Cache, commit Committer, checker validate.NicknameChecker) *Edit {
	return &Edit{machine: m, cache: cache, commit: commit, checker: checker}
}

// Begin opens the edit of field and returns the current snapshot for the
// prompt.
func (e *Edit) Begin(ctx context.Context, userID int64, field Field) (session.Record, Step, error) {
	ev, ok := fieldEvents[field]
	if !ok {
		return session.Record{}, Step{}, fmt.Errorf("flow: unknown profile field %q", field)
	}
	rec, err := e.cache.Get(ctx, userID)
	if err != nil {
		return session.Record{}, Step{}, err
	}
	switch field {
	case FieldNickname, FieldIntro:
		if rec.NicknameOrEmpty() == "" {
			return rec, Step{}, ErrProfileRequired
		}
	case FieldTopics:
		if err := e.cache.Update(ctx, userID, map[string]any{session.KeyNewTopics: []string{}}); err != nil {
			return rec, Step{}, err
		}
	}
	to, err := e.machine.Fire(ctx, userID, ev)
	if err != nil {
		return rec, Step{}, err
	}
	return rec, Step{Outcome: Advance, State: to}, nil
}

// PickLanguage stages the new practice language and asks for fluency.
func (e *Edit) PickLanguage(ctx context.Context, userID int64, lang string) (Step, error) {
	if err := e.expect(ctx, userID, EventPickLanguage, WaitingLanguage); err != nil {
		return Step{}, err
	}
	if err := e.cache.Update(ctx, userID, map[string]any{session.KeyNewLanguage: lang}); err != nil {
		return Step{}, err
	}
	to, err := e.machine.Fire(ctx, userID, EventPickLanguage)
	if err != nil {
		return Step{}, err
	}
	return Step{Outcome: Advance, State: to}, nil
}

// PickFluency commits the staged language together with the fluency level.
func (e *Edit) PickFluency(ctx context.Context, userID int64, level int) (Step, error) {
	if err := e.expect(ctx, userID, EventPickFluency, WaitingFluency); err != nil {
		return Step{}, err
	}
	data, err := e.cache.Store().Data(ctx, userID)
	if err != nil {
		return Step{}, fmt.Errorf("flow: read session: %w", err)
	}
	staged, _ := state.String(data, session.KeyNewLanguage)

	rec, err := e.cache.Get(ctx, userID)
	if err != nil {
		return Step{}, err
	}
	if staged == "" {
		staged = rec.Language
	}
	u := rec.ToUser()
	u.Language = staged
	u.Fluency = level
	if err := e.commit.UpdateUser(ctx, u); err != nil {
		return Step{Outcome: Stay, State: WaitingFluency}, fmt.Errorf("flow: update user: %w", err)
	}
	if err := e.cache.Update(ctx, userID, map[string]any{
		session.KeyLanguage:    staged,
		session.KeyFluency:     level,
		session.KeyNewLanguage: nil,
	}); err != nil {
		return Step{}, err
	}
	to, err := e.machine.Fire(ctx, userID, EventPickFluency)
	if err != nil {
		return Step{}, err
	}
	return Step{Outcome: Advance, State: to}, nil
}

// ToggleTopic updates the new topic selection. SentinelEndSelection closes
// it: an empty selection keeps the step, an unchanged set ends the edit
// without a write, anything else is written back.
func (e *Edit) ToggleTopic(ctx context.Context, userID int64, choice string) (Step, error) {
	if err := e.expect(ctx, userID, EventToggleTopic, WaitingTopic); err != nil {
		return Step{}, err
	}
	data, err := e.cache.Store().Data(ctx, userID)
	if err != nil {
		return Step{}, fmt.Errorf("flow: read session: %w", err)
	}
	acc, _ := state.Strings(data, session.KeyNewTopics)
	selected := Topics(acc)

	if choice != SentinelEndSelection {
		selected = selected.Toggle(choice)
		if err := e.cache.Update(ctx, userID, map[string]any{session.KeyNewTopics: selected.Strings()}); err != nil {
			return Step{}, err
		}
		to, err := e.machine.Fire(ctx, userID, EventToggleTopic)
		if err != nil {
			return Step{}, err
		}
		return Step{Outcome: Stay, State: to, Topics: selected}, nil
	}

	if len(selected) == 0 {
		return Step{Outcome: Stay, State: WaitingTopic, Topics: Topics{}}, nil
	}
	rec, err := e.cache.Get(ctx, userID)
	if err != nil {
		return Step{}, err
	}
	outcome := NoChange
	patch := map[string]any{session.KeyNewTopics: []string{}}
	if !selected.Equal(rec.Topics) {
		u := rec.ToUser()
		u.Topics = gateway.TopicList(selected.Strings())
		if err := e.commit.UpdateUser(ctx, u); err != nil {
			return Step{Outcome: Stay, State: WaitingTopic, Topics: selected}, fmt.Errorf("flow: update user: %w", err)
		}
		patch[session.KeyTopics] = selected.Strings()
		outcome = Advance
	}
	if err := e.cache.Update(ctx, userID, patch); err != nil {
		return Step{}, err
	}
	to, err := e.machine.Fire(ctx, userID, EventEndSelection)
	if err != nil {
		return Step{}, err
	}
	return Step{Outcome: outcome, State: to, Topics: selected}, nil
}

// SubmitNickname validates and commits a new nickname. Rejected input keeps
// the user on the step and returns the validation error.
func (e *Edit) SubmitNickname(ctx context.Context, userID int64, text string) (Step, error) {
	if err := e.expect(ctx, userID, EventSubmit, WaitingNickname); err != nil {
		return Step{}, err
	}
	nickname := strings.TrimSpace(text)
	if err := validate.Nickname(ctx, nickname, e.checker); err != nil {
		return Step{Outcome: Stay, State: WaitingNickname}, err
	}
	return e.commitProfile(ctx, userID, WaitingNickname, session.KeyNickname, nickname, func(p *gateway.Profile) {
		p.Nickname = &nickname
	})
}

// SubmitIntro validates and commits a new intro.
func (e *Edit) SubmitIntro(ctx context.Context, userID int64, text string) (Step, error) {
	if err := e.expect(ctx, userID, EventSubmit, WaitingIntro); err != nil {
		return Step{}, err
	}
	intro := strings.TrimSpace(text)
	if err := validate.Intro(intro); err != nil {
		return Step{Outcome: Stay, State: WaitingIntro}, err
	}
	return e.commitProfile(ctx, userID, WaitingIntro, session.KeyIntro, intro, func(p *gateway.Profile) {
		p.Intro = &intro
	})
}

// GoBack ends whatever edit is open and drops the scratch buffers.
func (e *Edit) GoBack(ctx context.Context, userID int64) (state.State, error) {
	if err := e.cache.Update(ctx, userID, map[string]any{
		session.KeyNewTopics:   []string{},
		session.KeyNewLanguage: nil,
	}); err != nil {
		return "", err
	}
	return e.machine.Fire(ctx, userID, EventGoBack)
}

func (e *Edit) commitProfile(ctx context.Context, userID int64, step state.State, key, value string, apply func(*gateway.Profile)) (Step, error) {
	rec, err := e.cache.Get(ctx, userID)
	if err != nil {
		return Step{}, err
	}
	prof, ok := rec.ToProfile()
	if !ok {
		return Step{}, ErrProfileRequired
	}
	apply(&prof)
	if err := e.commit.UpdateProfile(ctx, prof); err != nil {
		return Step{Outcome: Stay, State: step}, fmt.Errorf("flow: update profile: %w", err)
	}
	if err := e.cache.Update(ctx, userID, map[string]any{key: value}); err != nil {
		return Step{}, err
	}
	to, err := e.machine.Fire(ctx, userID, EventSubmit)
	if err != nil {
		return Step{}, err
	}
	return Step{Outcome: Advance, State: to}, nil
}

// expect checks that ev applies and the user sits in want.
func (e *Edit) expect(ctx context.Context, userID int64, ev Event, want state.State) error {
	cur, err := e.machine.Current(ctx, userID)
	if err != nil {
		return err
	}
	if cur != want || !e.machine.Can(cur, ev) {
		return fmt.Errorf("%w: %s in %s", ErrIllegalTransition, ev, cur)
	}
	return nil
}
