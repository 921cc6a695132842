package prompts

import (
	"strings"
	"testing"

	"github.com/stoa-edu/stoa/internal/model"
)

func TestRolePromptUnknownRoleFallsBackToTeacher(t *testing.T) {
	teacher := RolePrompt(model.AgentTeacher, LangEN, model.LevelRemember)
	if teacher == "" {
		t.Fatal("teacher prompt is empty")
	}
	got := RolePrompt(model.AgentType("janitor"), LangEN, model.LevelRemember)
	if got != teacher {
		t.Errorf("unknown role prompt = %q, want teacher prompt", got)
	}
}

func TestRolePromptLanguageFallback(t *testing.T) {
	en := RolePrompt(model.AgentPeer, LangEN, model.LevelRemember)
	got := RolePrompt(model.AgentPeer, "fr", model.LevelRemember)
	if got != en {
		t.Errorf("unsupported language prompt = %q, want English prompt", got)
	}
}

func TestExaminerPromptCarriesLevelGuidance(t *testing.T) {
	p := RolePrompt(model.AgentExaminer, LangEN, model.LevelAnalyze)
	if !strings.Contains(p, "Analyze") {
		t.Errorf("examiner prompt missing level label:\n%s", p)
	}
	if !strings.Contains(p, "analyze, compare, distinguish") {
		t.Errorf("examiner prompt missing level verbs:\n%s", p)
	}
}

func TestEvaluatorPrompt(t *testing.T) {
	in := EvalInput{
		Question: "List two data structures.",
		Answer:   "Array and linked list.",
		Level:    model.LevelRemember,
	}
	for idx := 0; idx < EvaluatorCount; idx++ {
		p, err := EvaluatorPrompt(idx, LangEN, in)
		if err != nil {
			t.Fatalf("evaluator %d: %v", idx, err)
		}
		if !strings.Contains(p, in.Question) || !strings.Contains(p, in.Answer) {
			t.Errorf("evaluator %d prompt missing question or answer:\n%s", idx, p)
		}
		if strings.Contains(p, "disagreeing") {
			t.Errorf("evaluator %d prompt carries disagreement notice on first round", idx)
		}
	}

	in.Disagreement = true
	p, err := EvaluatorPrompt(0, LangEN, in)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(p, "disagreeing") {
		t.Errorf("re-evaluation prompt missing disagreement notice:\n%s", p)
	}

	if _, err := EvaluatorPrompt(EvaluatorCount, LangEN, in); err == nil {
		t.Error("out-of-range evaluator index accepted")
	}
}

func TestEvaluatorLabel(t *testing.T) {
	if got := EvaluatorLabel(LangEN, 0); got != "Evaluator A" {
		t.Errorf("label = %q", got)
	}
	if got := EvaluatorLabel(LangZH, 2); got != "评估者C" {
		t.Errorf("label = %q", got)
	}
}

func TestSynthesisRequestListsAllEvaluators(t *testing.T) {
	details := []model.EvaluationResult{
		{EvaluatorID: "A", Label: "Evaluator A", RawScore: 8, Feedback: "solid"},
		{EvaluatorID: "B", Label: "Evaluator B", RawScore: 7, Feedback: "fair"},
		{EvaluatorID: "C", Label: "Evaluator C", RawScore: 9, Feedback: "strong"},
	}
	msg := SynthesisRequest(LangEN, details)
	for _, d := range details {
		if !strings.Contains(msg, d.Label) || !strings.Contains(msg, d.Feedback) {
			t.Errorf("synthesis request missing %s", d.Label)
		}
	}
}
