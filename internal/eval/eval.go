// Package eval scores learner answers with a panel of three evaluator lenses
// and synthesizes their output into one feedback message. Scoring never
// returns an error to the caller: failed evaluator calls record a zero score
// with an error notice, and failed synthesis falls back to the panel mean.
package eval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/stoa-edu/stoa/internal/extract"
	"github.com/stoa-edu/stoa/internal/llm"
	"github.com/stoa-edu/stoa/internal/llm/prompts"
	"github.com/stoa-edu/stoa/internal/model"
)

// Default tuning, overridable via CLI flags.
const (
	DefaultMaxAttempts       = 5
	DefaultVarianceThreshold = 1.0
)

// Gateway is the slice of the LLM client the pipeline needs.
type Gateway interface {
	Complete(ctx context.Context, system string, messages []model.Message, opts llm.Options) (string, error)
	Invoke(ctx context.Context, agent model.AgentType, lang string, level model.BloomLevel, messages []model.Message, opts llm.Options) (string, error)
}

// Pipeline runs the evaluator panel.
type Pipeline struct {
	gw          Gateway
	maxAttempts int
	threshold   float64
}

// New creates a pipeline. Non-positive maxAttempts or threshold fall back to
// the defaults.
func New(gw Gateway, maxAttempts int, threshold float64) *Pipeline {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if threshold <= 0 {
		threshold = DefaultVarianceThreshold
	}
	return &Pipeline{gw: gw, maxAttempts: maxAttempts, threshold: threshold}
}

// Input is one answer to score.
type Input struct {
	Question       string
	Answer         string
	Level          model.BloomLevel
	StandardAnswer string
	Lang           string
}

// Evaluate runs up to maxAttempts panel rounds. A round whose score variance
// exceeds the threshold triggers a re-evaluation with the disagreement notice
// set; when attempts run out the last round is accepted and Credibility is
// flagged. The returned Evaluation always holds exactly EvaluatorCount
// details.
func (p *Pipeline) Evaluate(ctx context.Context, in Input) model.Evaluation {
	var ev model.Evaluation
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		ev = p.runPanel(ctx, in, attempt)
		if ev.Variance <= p.threshold {
			return ev
		}
		slog.Info("evaluator disagreement, re-evaluating",
			"attempt", attempt, "variance", ev.Variance, "threshold", p.threshold)
	}
	ev.Credibility = 1
	return ev
}

func (p *Pipeline) runPanel(ctx context.Context, in Input, attempt int) model.Evaluation {
	details := make([]model.EvaluationResult, 0, prompts.EvaluatorCount)
	sum := 0.0
	for i := 0; i < prompts.EvaluatorCount; i++ {
		res := p.runEvaluator(ctx, i, in, attempt > 1)
		sum += res.RawScore
		details = append(details, res)
	}

	mean := round2(sum / float64(len(details)))
	variance := 0.0
	for _, d := range details {
		variance += (d.RawScore - mean) * (d.RawScore - mean)
	}
	variance = round2(variance / float64(len(details)))

	return model.Evaluation{
		Details:         details,
		AverageRawScore: mean,
		Variance:        variance,
		Attempts:        attempt,
	}
}

func (p *Pipeline) runEvaluator(ctx context.Context, idx int, in Input, disagreement bool) model.EvaluationResult {
	res := model.EvaluationResult{
		EvaluatorID: string(rune('A' + idx)),
		Label:       prompts.EvaluatorLabel(in.Lang, idx),
	}

	system, err := prompts.EvaluatorPrompt(idx, in.Lang, prompts.EvalInput{
		Question:       in.Question,
		Answer:         in.Answer,
		Level:          in.Level,
		StandardAnswer: in.StandardAnswer,
		Disagreement:   disagreement,
	})
	if err != nil {
		res.Feedback = prompts.EvalErrorFeedback(in.Lang, err)
		return res
	}

	raw, err := p.gw.Complete(ctx, system, []model.Message{
		{Role: model.RoleUser, Content: evalGoMessage(in.Lang)},
	}, llm.Options{Temperature: 0.3, MaxTokens: 300})
	if err != nil {
		slog.Warn("evaluator call failed", "evaluator", res.Label, "error", err)
		res.Feedback = prompts.EvalErrorFeedback(in.Lang, err)
		return res
	}

	score, feedback, ok := extract.ScoreFeedback(raw)
	if !ok {
		// Unparseable output counts as zero but the text is kept so the
		// researcher can see what the model said.
		res.Feedback = raw
		return res
	}
	res.RawScore = extract.ClampScore(score)
	res.Feedback = feedback
	return res
}

// Synthesize turns a panel result into the final score and the feedback text
// shown to the learner. It never fails: when the feedback agent call fails
// the summary is the joined evaluator feedback, and when its JSON parse fails
// the summary is the raw reply. The score falls back to the clamped panel
// mean in both cases.
func (p *Pipeline) Synthesize(ctx context.Context, lang string, level model.BloomLevel, ev model.Evaluation) (float64, string) {
	request := prompts.SynthesisRequest(lang, ev.Details)

	raw, err := p.gw.Invoke(ctx, model.AgentFeedback, lang, level, []model.Message{
		{Role: model.RoleUser, Content: request},
	}, llm.Options{Temperature: 0.5})
	if err != nil {
		slog.Warn("feedback synthesis call failed, using panel mean", "error", err)
		return extract.ClampScore(ev.AverageRawScore), combinedFeedback(ev.Details)
	}

	score, summary, ok := extract.ScoreFeedback(raw)
	if !ok || summary == "" {
		if strings.TrimSpace(raw) == "" {
			raw = combinedFeedback(ev.Details)
		}
		return extract.ClampScore(ev.AverageRawScore), raw
	}
	return extract.ClampScore(score), summary
}

// combinedFeedback joins the panel's individual feedback texts, one line per
// evaluator. It is the learner-facing fallback when no synthesized summary
// exists.
func combinedFeedback(details []model.EvaluationResult) string {
	var sb strings.Builder
	for i, d := range details {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s: %s", d.Label, d.Feedback)
	}
	return sb.String()
}

func evalGoMessage(lang string) string {
	if lang == prompts.LangZH {
		return "请现在输出你的评估结果（JSON格式）。"
	}
	return "Please output your evaluation now (JSON format)."
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
