package severity

import "testing"

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
	}{
		{"high", High},
		{"HIGH", High},
		{"mid", Mid},
		{"medium", Mid},
		{"low", Low},
		{"", None},
		{"banana", None},
	}
	for _, c := range cases {
		if got := ParseLevel(c.in); got != c.want {
			t.Errorf("ParseLevel(%q): got %v, want %v", c.in, got, c.want)
		}
	}
}

func TestFromProbability(t *testing.T) {
	cases := []struct {
		in   float64
		want Level
	}{
		{0.9, High},
		{90, High},
		{0.6, Mid},
		{55, Mid},
		{0.2, Low},
		{0, None},
	}
	for _, c := range cases {
		if got := FromProbability(c.in); got != c.want {
			t.Errorf("FromProbability(%v): got %v, want %v", c.in, got, c.want)
		}
	}
}

func TestMarkClass(t *testing.T) {
	if got := High.MarkClass(); got != "dm-highlight-mark dm-highlight-mark--high" {
		t.Errorf("High.MarkClass: got %q", got)
	}
	if got := None.MarkClass(); got != "dm-highlight-mark" {
		t.Errorf("None.MarkClass: got %q", got)
	}
}
