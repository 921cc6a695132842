// Package extract pulls structured data out of free-text LLM responses on a
// best-effort basis. Nothing here ever panics or returns an error to the
// caller: when a response cannot be parsed, functions report ok=false and the
// caller applies its documented fallback.
package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	fencedJSONRe = regexp.MustCompile("(?i)```json([\\s\\S]*?)```")
	braceRe      = regexp.MustCompile(`\{[\s\S]*\}`)
)

// FirstObject returns the first JSON object found in s. A fenced ```json
// block wins over a bare brace match. The second return is false when no
// parseable object exists.
func FirstObject(s string) (json.RawMessage, bool) {
	if m := fencedJSONRe.FindStringSubmatch(s); m != nil {
		if raw := strings.TrimSpace(m[1]); json.Valid([]byte(raw)) {
			return json.RawMessage(raw), true
		}
	}
	if m := braceRe.FindString(s); m != "" && json.Valid([]byte(m)) {
		return json.RawMessage(m), true
	}
	return nil, false
}

// Score is a float64 that tolerates numeric strings ("7.5") and treats
// anything non-numeric as zero, so an evaluator returning "score": "eight"
// degrades to 0 instead of failing the whole extraction.
type Score float64

func (s *Score) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*s = Score(f)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
			*s = Score(f)
			return nil
		}
	}
	*s = 0
	return nil
}

// ScoreFeedback extracts a {score, feedback} object from s. ok is false when
// no object can be found; the caller records score 0 with the raw text.
func ScoreFeedback(s string) (score float64, feedback string, ok bool) {
	raw, found := FirstObject(s)
	if !found {
		return 0, "", false
	}
	var parsed struct {
		Score    Score  `json:"score"`
		Feedback string `json:"feedback"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return 0, "", false
	}
	return float64(parsed.Score), parsed.Feedback, true
}

// ExaminerOutput splits a raw examiner response into display text, the bare
// question, and the hidden reference answer.
type ExaminerOutput struct {
	// DisplayText is the response with the JSON block stripped; this is what
	// the learner sees.
	DisplayText string
	// QuestionText is the plain question from the JSON block, empty when the
	// examiner produced no parseable block.
	QuestionText string
	// StandardAnswer is the reference answer for the evaluators only.
	StandardAnswer string
}

// ParseExaminer extracts question and standard answer from an examiner
// response. On any parse failure the full trimmed text becomes DisplayText
// and the other fields stay empty.
func ParseExaminer(raw string) ExaminerOutput {
	out := ExaminerOutput{DisplayText: strings.TrimSpace(raw)}

	var jsonSource, matched string
	if m := fencedJSONRe.FindStringSubmatch(raw); m != nil {
		jsonSource = strings.TrimSpace(m[1])
		matched = m[0]
	} else if m := braceRe.FindString(raw); m != "" {
		jsonSource = m
		matched = m
	}
	if jsonSource == "" {
		return out
	}

	var parsed struct {
		Question       string `json:"question"`
		StandardAnswer string `json:"standard_answer"`
	}
	if err := json.Unmarshal([]byte(jsonSource), &parsed); err != nil {
		return out
	}

	out.DisplayText = strings.TrimSpace(strings.Replace(out.DisplayText, matched, "", 1))
	out.QuestionText = strings.TrimSpace(parsed.Question)
	out.StandardAnswer = strings.TrimSpace(parsed.StandardAnswer)
	return out
}

// ClampScore bounds a score to [0, 10]. NaN is treated as 0.
func ClampScore(v float64) float64 {
	if v != v || v < 0 { // NaN check
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
