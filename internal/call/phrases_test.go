package call

import "testing"

func TestPhraseSetMatch(t *testing.T) {
	closing := newPhraseSet(DefaultClosingPhrases)
	tests := []struct {
		text string
		want bool
	}{
		{text: "Thanks, bye!", want: true},
		{text: "THANK YOU so much", want: true},
		{text: "I think that’s all", want: true},
		{text: "ok I'm done.", want: true},
		{text: "the project was abandoned", want: false},
		{text: "byebye", want: false},
		{text: "Can you repeat the question?", want: false},
		{text: "   ", want: false},
	}
	for _, tt := range tests {
		if got := closing.Match(tt.text); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestEjectionPhrases(t *testing.T) {
	ejection := newPhraseSet(DefaultEjectionPhrases)
	for _, text := range []string{
		"Meeting has ended",
		"call ended: assistant-ended-call",
		"Error: the workflow has ended.",
	} {
		if !ejection.Match(text) {
			t.Errorf("expected %q to be an ejection", text)
		}
	}
	if ejection.Match("websocket: close 1006 (abnormal closure)") {
		t.Error("abnormal closure is not an ejection")
	}
}
