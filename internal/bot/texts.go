package bot

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed texts.yaml
var textsYAML []byte

// fallbackLang is used when a text has no translation for the user's language.
const fallbackLang = "en"

// Option is a selectable answer with per-language labels.
type Option struct {
	Key    string            `yaml:"key"`
	Labels map[string]string `yaml:"labels"`
}

// Texts is the presentation catalog: messages, button labels and answer
// options, each keyed by interface language.
type Texts struct {
	Messages map[string]map[string]string `yaml:"messages"`
	Buttons  map[string]map[string]string `yaml:"buttons"`
	Options  map[string][]Option          `yaml:"options"`
}

// Option groups.
const (
	GroupCameFrom  = "came_from"
	GroupLanguages = "languages"
	GroupFluency   = "fluency"
	GroupTopics    = "topics"
)

// LoadTexts parses the embedded catalog.
func LoadTexts() (*Texts, error) {
	return ParseTexts(textsYAML)
}

// ParseTexts parses a catalog and checks every message and option has an
// en translation.
func ParseTexts(raw []byte) (*Texts, error) {
	var t Texts
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("bot: parse texts: %w", err)
	}
	for key, tr := range t.Messages {
		if tr[fallbackLang] == "" {
			return nil, fmt.Errorf("bot: message %q has no %s text", key, fallbackLang)
		}
	}
	for key, tr := range t.Buttons {
		if tr[fallbackLang] == "" {
			return nil, fmt.Errorf("bot: button %q has no %s text", key, fallbackLang)
		}
	}
	for group, opts := range t.Options {
		for _, o := range opts {
			if o.Key == "" || o.Labels[fallbackLang] == "" {
				return nil, fmt.Errorf("bot: option %s/%q is incomplete", group, o.Key)
			}
		}
	}
	return &t, nil
}

func pick(tr map[string]string, lang string) string {
	if s, ok := tr[lang]; ok && s != "" {
		return s
	}
	return tr[fallbackLang]
}

// Message returns the message text in lang. Unknown keys come back as the
// key itself so a missing text is visible rather than blank.
func (t *Texts) Message(key, lang string) string {
	tr, ok := t.Messages[key]
	if !ok {
		return key
	}
	return pick(tr, lang)
}

// Format returns the message with {name} placeholders substituted from
// name/value pairs.
func (t *Texts) Format(key, lang string, pairs ...string) string {
	msg := t.Message(key, lang)
	if len(pairs) < 2 {
		return msg
	}
	args := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		args = append(args, "{"+pairs[i]+"}", pairs[i+1])
	}
	return strings.NewReplacer(args...).Replace(msg)
}

// Button returns a button label in lang.
func (t *Texts) Button(key, lang string) string {
	tr, ok := t.Buttons[key]
	if !ok {
		return key
	}
	return pick(tr, lang)
}

// Choices lists the options of group in display order.
func (t *Texts) Choices(group string) []Option {
	return t.Options[group]
}

// Label returns the label of an option, or the key when it is unknown.
func (t *Texts) Label(group, key, lang string) string {
	for _, o := range t.Options[group] {
		if o.Key == key {
			return pick(o.Labels, lang)
		}
	}
	return key
}

// Labels maps keys through Label and joins them for display.
func (t *Texts) Labels(group string, keys []string, lang string) string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, t.Label(group, k, lang))
	}
	return strings.Join(out, ", ")
}
