package middleware

import (
	"sync"

	tele "gopkg.in/telebot.v4"
)

const tallyKey = "langbot.tally"

// tally counts what a handler sent back for the summary line.
type tally struct {
	mu       sync.Mutex
	messages int
	keyboard bool
}

func (t *tally) add(opts []any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages++
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.ReplyMarkup:
			t.keyboard = t.keyboard || v != nil
		case *tele.SendOptions:
			t.keyboard = t.keyboard || (v != nil && v.ReplyMarkup != nil)
		}
	}
}

// countingContext records every successful reply on its tally.
type countingContext struct {
	tele.Context
	t *tally
}

func (c countingContext) count(err error, opts []any) error {
	if err == nil {
		c.t.add(opts)
	}
	return err
}

func (c countingContext) Send(what any, opts ...any) error {
	return c.count(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what any, opts ...any) error {
	return c.count(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what any, opts ...any) error {
	return c.count(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditCaption(caption string, opts ...any) error {
	return c.count(c.Context.EditCaption(caption, opts...), opts)
}

func (c countingContext) EditOrSend(what any, opts ...any) error {
	return c.count(c.Context.EditOrSend(what, opts...), opts)
}

func (c countingContext) EditOrReply(what any, opts ...any) error {
	return c.count(c.Context.EditOrReply(what, opts...), opts)
}

// Counters makes Tally available to later handlers by counting the replies
// sent through the context.
func Counters(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		t := &tally{}
		c.Set(tallyKey, t)
		return next(countingContext{Context: c, t: t})
	}
}

// Tally reports how many replies the update produced and whether any of
// them carried a keyboard.
func Tally(c tele.Context) (messages int, keyboard bool) {
	t, ok := c.Get(tallyKey).(*tally)
	if !ok {
		return 0, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.messages, t.keyboard
}
