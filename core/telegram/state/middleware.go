package state

import tele "gopkg.in/telebot.v4"

// Serialize makes handlers for the same sender run one at a time.
func Serialize(locks *Locks) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if locks == nil || sender == nil {
				return next(c)
			}
			unlock := locks.Lock(sender.ID)
			defer unlock()
			return next(c)
		}
	}
}
