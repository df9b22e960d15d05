// Package flow drives the registration and profile edit conversations: a
// closed set of steps, a transition table checked at construction, and the
// bounded topic accumulator both tracks share.
package flow

import "github.com/m3rciful/langbot/core/telegram/state"

// Steps of the profile edit track.
const (
	WaitingNickname state.State = "waiting_nickname"
	WaitingLanguage state.State = "waiting_language"
	WaitingFluency  state.State = "waiting_fluency"
	WaitingTopic    state.State = "waiting_topic"
	WaitingIntro    state.State = "waiting_intro"
	EndedChange     state.State = "ended_change"
)

// Steps of the registration track.
const (
	WaitingSelection state.State = "waiting_selection"
	EndSelection     state.State = "end_selection"
)

// States is the closed set of steps, idle included.
var States = []state.State{
	state.StateIdle,
	WaitingNickname,
	WaitingLanguage,
	WaitingFluency,
	WaitingTopic,
	WaitingIntro,
	EndedChange,
	WaitingSelection,
	EndSelection,
}

// Event triggers a transition.
type Event string

const (
	EventChooseTopics Event = "choose_topics"
	EventToggleTopic  Event = "toggle_topic"
	EventEndSelection Event = "end_selection"
	EventEditNickname Event = "edit_nickname"
	EventEditLanguage Event = "edit_language"
	EventPickLanguage Event = "pick_language"
	EventPickFluency  Event = "pick_fluency"
	EventEditTopics   Event = "edit_topics"
	EventEditIntro    Event = "edit_intro"
	EventSubmit       Event = "submit"
	EventGoBack       Event = "go_back"
)

// Events is the closed set of triggers.
var Events = []Event{
	EventChooseTopics,
	EventToggleTopic,
	EventEndSelection,
	EventEditNickname,
	EventEditLanguage,
	EventPickLanguage,
	EventPickFluency,
	EventEditTopics,
	EventEditIntro,
	EventSubmit,
	EventGoBack,
}

// Transition moves a user from any of From to To on Event.
type Transition struct {
	Event Event
	From  []state.State
	To    state.State
}

// Table is the transition table of both tracks.
var Table = []Transition{
	// registration: fluency picked, topic selection opens
	{Event: EventChooseTopics, From: States, To: WaitingSelection},
	{Event: EventToggleTopic, From: []state.State{WaitingSelection}, To: WaitingSelection},
	{Event: EventEndSelection, From: []state.State{WaitingSelection}, To: EndSelection},

	// profile edit entry points are reachable from anywhere
	{Event: EventEditNickname, From: States, To: WaitingNickname},
	{Event: EventEditLanguage, From: States, To: WaitingLanguage},
	{Event: EventEditTopics, From: States, To: WaitingTopic},
	{Event: EventEditIntro, From: States, To: WaitingIntro},

	{Event: EventPickLanguage, From: []state.State{WaitingLanguage}, To: WaitingFluency},
	{Event: EventPickFluency, From: []state.State{WaitingFluency}, To: EndedChange},
	{Event: EventToggleTopic, From: []state.State{WaitingTopic}, To: WaitingTopic},
	{Event: EventEndSelection, From: []state.State{WaitingTopic}, To: EndedChange},
	{Event: EventSubmit, From: []state.State{WaitingNickname, WaitingIntro}, To: EndedChange},

	{Event: EventGoBack, From: States, To: EndedChange},
}
