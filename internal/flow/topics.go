package flow

// TopicCapacity bounds how many topics a user keeps.
const TopicCapacity = 3

// SentinelEndSelection is the choice that closes topic selection.
const SentinelEndSelection = "endselection"

// Topics is an ordered set of topic tags, oldest first.
type Topics []string

// Contains reports whether tag is selected.
func (t Topics) Contains(tag string) bool {
	for _, v := range t {
		if v == tag {
			return true
		}
	}
	return false
}

// Toggle removes tag when selected and appends it otherwise. Going over
// TopicCapacity evicts the oldest tag. The receiver is left untouched.
func (t Topics) Toggle(tag string) Topics {
	out := make(Topics, 0, len(t)+1)
	removed := false
	for _, v := range t {
		if v == tag {
			removed = true
			continue
		}
		out = append(out, v)
	}
	if removed {
		return out
	}
	out = append(out, tag)
	if len(out) > TopicCapacity {
		out = out[len(out)-TopicCapacity:]
	}
	return out
}

// Equal compares both lists as sets.
func (t Topics) Equal(other []string) bool {
	a := make(map[string]struct{}, len(t))
	for _, v := range t {
		a[v] = struct{}{}
	}
	b := make(map[string]struct{}, len(other))
	for _, v := range other {
		b[v] = struct{}{}
	}
	if len(a) != len(b) {
		return false
	}
	for v := range a {
		if _, ok := b[v]; !ok {
			return false
		}
	}
	return true
}

// Strings returns a copy as a plain slice, never nil.
func (t Topics) Strings() []string {
	return append([]string{}, t...)
}
