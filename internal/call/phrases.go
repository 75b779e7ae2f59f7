package call

import (
	"strings"
	"unicode"
)

// DefaultClosingPhrases end an armed auto-stop when the user says one.
var DefaultClosingPhrases = []string{
	"thank you", "thanks", "bye", "goodbye", "see you", "that's all", "that is all",
	"done", "have a good day", "talk to you later",
}

// DefaultEjectionPhrases mark a termination initiated by the remote side.
var DefaultEjectionPhrases = []string{
	"meeting has ended", "meeting ended", "ejected", "ejection",
	"workflow has ended", "workflow ended", "assistant-ended-call", "exiting meeting",
}

// phraseSet matches phrases case-insensitively on word boundaries, so
// "thanks, bye!" contains "bye" but "abandoned" does not contain "done".
type phraseSet struct {
	phrases []string
}

func newPhraseSet(phrases []string) phraseSet {
	set := phraseSet{}
	for _, p := range phrases {
		if n := normalizePhrase(p); n != "" {
			set.phrases = append(set.phrases, " "+n+" ")
		}
	}
	return set
}

func (s phraseSet) Match(text string) bool {
	n := normalizePhrase(text)
	if n == "" {
		return false
	}
	padded := " " + n + " "
	for _, p := range s.phrases {
		if strings.Contains(padded, p) {
			return true
		}
	}
	return false
}

func normalizePhrase(s string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		case r == '\'' || r == '’' || r == '-':
			return r
		default:
			return ' '
		}
	}, s)
	mapped = strings.ReplaceAll(mapped, "’", "'")
	return strings.Join(strings.Fields(mapped), " ")
}
