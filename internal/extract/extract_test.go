package extract

import (
	"strings"
	"testing"
)

func TestFirstObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		found bool
	}{
		{
			name:  "fenced block preferred over bare braces",
			input: "Intro {\"ignored\": true}\n```json\n{\"score\": 8}\n```",
			want:  `{"score": 8}`,
			found: true,
		},
		{
			name:  "bare braces",
			input: `Here you go: {"score": 7, "feedback": "good"} done`,
			want:  `{"score": 7, "feedback": "good"}`,
			found: true,
		},
		{
			name:  "no object",
			input: "plain prose with no json at all",
			found: false,
		},
		{
			name:  "invalid fenced falls back to braces",
			input: "```json\nnot json\n```\n{\"ok\": 1}",
			want:  `{"ok": 1}`,
			found: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := FirstObject(tt.input)
			if found != tt.found {
				t.Fatalf("FirstObject(%q) found = %v, want %v", tt.input, found, tt.found)
			}
			if found && string(got) != tt.want {
				t.Errorf("FirstObject(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestScoreFeedback(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		score    float64
		feedback string
		ok       bool
	}{
		{
			name:     "numeric score",
			input:    `{"score": 7.5, "feedback": "solid answer"}`,
			score:    7.5,
			feedback: "solid answer",
			ok:       true,
		},
		{
			name:     "quoted numeric score",
			input:    `{"score": "8", "feedback": "well done"}`,
			score:    8,
			feedback: "well done",
			ok:       true,
		},
		{
			name:     "non-numeric score degrades to zero",
			input:    `{"score": "excellent", "feedback": "hm"}`,
			score:    0,
			feedback: "hm",
			ok:       true,
		},
		{
			name:  "no json",
			input: "the answer shows deep understanding",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, feedback, ok := ScoreFeedback(tt.input)
			if ok != tt.ok {
				t.Fatalf("ScoreFeedback ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if score != tt.score {
				t.Errorf("score = %v, want %v", score, tt.score)
			}
			if feedback != tt.feedback {
				t.Errorf("feedback = %q, want %q", feedback, tt.feedback)
			}
		})
	}
}

func TestParseExaminer(t *testing.T) {
	raw := "Let's begin. Here is your question.\n\n```json\n{\"question\": \"Define photosynthesis.\", \"standard_answer\": \"Conversion of light energy into chemical energy.\"}\n```"
	out := ParseExaminer(raw)
	if out.QuestionText != "Define photosynthesis." {
		t.Errorf("QuestionText = %q", out.QuestionText)
	}
	if out.StandardAnswer != "Conversion of light energy into chemical energy." {
		t.Errorf("StandardAnswer = %q", out.StandardAnswer)
	}
	if strings.Contains(out.DisplayText, "standard_answer") {
		t.Errorf("DisplayText leaks the reference answer: %q", out.DisplayText)
	}
	if !strings.Contains(out.DisplayText, "Let's begin") {
		t.Errorf("DisplayText lost the prose: %q", out.DisplayText)
	}
}

func TestParseExaminerBareBraces(t *testing.T) {
	raw := `Question time: {"question": "What is a cell?", "standard_answer": "The basic unit of life."}`
	out := ParseExaminer(raw)
	if out.QuestionText != "What is a cell?" {
		t.Errorf("QuestionText = %q", out.QuestionText)
	}
	if strings.Contains(out.DisplayText, "basic unit of life") {
		t.Errorf("DisplayText leaks the reference answer: %q", out.DisplayText)
	}
}

func TestParseExaminerNoJSON(t *testing.T) {
	raw := "  Tell me what you know about mitosis.  "
	out := ParseExaminer(raw)
	if out.DisplayText != "Tell me what you know about mitosis." {
		t.Errorf("DisplayText = %q", out.DisplayText)
	}
	if out.QuestionText != "" || out.StandardAnswer != "" {
		t.Errorf("expected empty question/answer, got %q / %q", out.QuestionText, out.StandardAnswer)
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-3, 0},
		{0, 0},
		{7.25, 7.25},
		{10, 10},
		{42, 10},
	}
	for _, tt := range tests {
		if got := ClampScore(tt.in); got != tt.want {
			t.Errorf("ClampScore(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
