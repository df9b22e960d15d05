// Package clock provides the injectable time source used by the bot.
//
// All comparisons in the bot run on a single "naive" representation of
// time: the wall clock in the configured zone with the zone stripped.
// Naive values are carried as time.Time in UTC so they compare with
// Before/After without surprises. Use NowNaive for "now" and Naive or
// ParseISO to bring stored timestamps into the same representation.
package clock
