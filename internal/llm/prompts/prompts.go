// Package prompts is the static role-prompt catalog: every agent persona the
// system speaks as, in every supported language, parameterized by the current
// Bloom level where the role needs it (examiner, feedback, evaluators).
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"text/template"

	"github.com/stoa-edu/stoa/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

// Languages supported by the catalog. Unknown languages fall back to English.
const (
	LangEN = "en"
	LangZH = "zh"
)

// EvaluatorCount is the fixed number of evaluator lenses per answer.
const EvaluatorCount = 3

// evaluator lens names, in stable output order (A, B, C).
var evaluatorLenses = []string{"strict", "growth", "cognitive"}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[string]*template.Template
)

// Load parses all embedded prompt templates. It is safe to call repeatedly;
// parsing happens once.
func Load() error {
	loadOnce.Do(func() {
		templates = make(map[string]*template.Template)
		entries, err := templateFS.ReadDir("templates")
		if err != nil {
			loadErr = fmt.Errorf("read templates dir: %w", err)
			return
		}
		for _, e := range entries {
			name := strings.TrimSuffix(e.Name(), ".txt")
			data, err := templateFS.ReadFile("templates/" + e.Name())
			if err != nil {
				loadErr = fmt.Errorf("read template %s: %w", e.Name(), err)
				return
			}
			tmpl, err := template.New(name).Parse(string(data))
			if err != nil {
				loadErr = fmt.Errorf("parse template %s: %w", e.Name(), err)
				return
			}
			templates[name] = tmpl
		}
	})
	return loadErr
}

// roleData parameterizes the examiner and feedback role templates.
type roleData struct {
	LevelLabel string
	Verbs      string
	Example    string
}

// EvalInput parameterizes one evaluator prompt.
type EvalInput struct {
	Question       string
	Answer         string
	Level          model.BloomLevel
	StandardAnswer string
	// Disagreement is set on re-evaluation after the prior round's scores
	// exceeded the variance threshold.
	Disagreement bool
}

type evalData struct {
	Question       string
	Answer         string
	LevelLabel     string
	Focus          string
	StandardAnswer string
	Disagreement   bool
}

func normalizeLang(lang string) string {
	if lang == LangZH {
		return LangZH
	}
	return LangEN
}

func normalizeLevel(level model.BloomLevel) model.BloomLevel {
	if model.ValidLevel(level) {
		return level
	}
	return model.LevelRemember
}

func execute(name string, data any) (string, bool) {
	tmpl, ok := templates[name]
	if !ok {
		return "", false
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		slog.Error("prompt template execution failed", "template", name, "error", err)
		return "", false
	}
	return buf.String(), true
}

// RolePrompt returns the system prompt for the given agent role and language.
// Unknown roles fall back to the teacher persona; this mirrors the original
// catalog and keeps a catalog miss from breaking a conversation.
func RolePrompt(role model.AgentType, lang string, level model.BloomLevel) string {
	if err := Load(); err != nil {
		slog.Error("prompt catalog unavailable", "error", err)
		return ""
	}
	lang = normalizeLang(lang)
	level = normalizeLevel(level)

	var data any
	switch role {
	case model.AgentTeacher, model.AgentPeer, model.AgentLibrarian, model.AgentMindmap:
		data = nil
	case model.AgentExaminer:
		g := examinerGuidance[lang][level]
		data = roleData{LevelLabel: LevelLabel(level, lang), Verbs: g.verbs, Example: g.example}
	case model.AgentFeedback:
		data = roleData{LevelLabel: LevelLabel(level, lang)}
	default:
		// Catalog miss: fall back to the teacher persona.
		role = model.AgentTeacher
		data = nil
	}

	if s, ok := execute(string(role)+"_"+lang, data); ok {
		return s
	}
	s, _ := execute(string(model.AgentTeacher)+"_"+lang, nil)
	return s
}

// EvaluatorPrompt returns the prompt for evaluator idx (0..EvaluatorCount-1).
func EvaluatorPrompt(idx int, lang string, in EvalInput) (string, error) {
	if err := Load(); err != nil {
		return "", err
	}
	if idx < 0 || idx >= EvaluatorCount {
		return "", fmt.Errorf("evaluator index out of range: %d", idx)
	}
	lang = normalizeLang(lang)
	level := normalizeLevel(in.Level)

	data := evalData{
		Question:       in.Question,
		Answer:         in.Answer,
		LevelLabel:     LevelLabel(level, lang),
		Focus:          evaluatorFocus[evaluatorLenses[idx]][lang][level],
		StandardAnswer: in.StandardAnswer,
		Disagreement:   in.Disagreement,
	}
	s, ok := execute("eval_"+evaluatorLenses[idx]+"_"+lang, data)
	if !ok {
		return "", fmt.Errorf("missing evaluator template %s/%s", evaluatorLenses[idx], lang)
	}
	return s, nil
}

// EvaluatorLabel returns the display label for evaluator idx ("Evaluator A").
func EvaluatorLabel(lang string, idx int) string {
	letter := string(rune('A' + idx))
	if normalizeLang(lang) == LangZH {
		return "评估者" + letter
	}
	return "Evaluator " + letter
}

// LevelLabel returns the human-readable Bloom level name in lang.
func LevelLabel(level model.BloomLevel, lang string) string {
	labels := levelLabels[normalizeLang(lang)]
	if l, ok := labels[level]; ok {
		return l
	}
	if normalizeLang(lang) == LangZH {
		return "未指定层级"
	}
	return "Unspecified level"
}

// EvalErrorFeedback is the recorded feedback string when an evaluator call
// fails outright (score 0, no retry).
func EvalErrorFeedback(lang string, err error) string {
	if normalizeLang(lang) == LangZH {
		return "评估出现错误：" + err.Error()
	}
	return "Evaluation error: " + err.Error()
}

// ExaminerInstruction is the closing user message that forces the examiner
// to produce exactly one new question at the current level.
func ExaminerInstruction(lang string) string {
	if normalizeLang(lang) == LangZH {
		return "基于上面的对话，请你现在只做一件事：在当前 Bloom 测试层级下，提出一条新的测试题目。\n\n要求：\n1. 不要复述、总结或评价之前的反馈内容；\n2. 不要重复之前已经问过的题目；\n3. 直接给出本层级的一道新题目（可以附一句话以内的简短说明），不要输出其他内容。"
	}
	return "Based on the conversation above, please do exactly one thing now: ask ONE new test question at the current Bloom test level.\n\nRequirements:\n1. Do NOT repeat, summarize, or restate any previous feedback;\n2. Do NOT reuse questions that were already asked before;\n3. Directly output a single new question at this level (optionally with a one-sentence explanation), and nothing else."
}

// SynthesisRequest is the user message carrying the three evaluator results
// into the feedback agent call.
func SynthesisRequest(lang string, details []model.EvaluationResult) string {
	var sb strings.Builder
	zh := normalizeLang(lang) == LangZH
	for i, d := range details {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if zh {
			fmt.Fprintf(&sb, "%s: 得分 %.1f/10，反馈：%s", d.Label, d.RawScore, d.Feedback)
		} else {
			fmt.Fprintf(&sb, "%s: Score %.1f/10, Feedback: %s", d.Label, d.RawScore, d.Feedback)
		}
	}
	if zh {
		return "以下是三个评估者的评分和反馈，请综合这些信息给出最终得分和反馈总结：\n\n" + sb.String()
	}
	return "Below are the scores and feedback from three evaluators. Please synthesize this information to provide a final score and feedback summary:\n\n" + sb.String()
}

var levelLabels = map[string]map[model.BloomLevel]string{
	LangEN: {
		model.LevelRemember:   "Remember",
		model.LevelUnderstand: "Understand",
		model.LevelApply:      "Apply",
		model.LevelAnalyze:    "Analyze",
		model.LevelEvaluate:   "Evaluate",
		model.LevelCreate:     "Create",
	},
	LangZH: {
		model.LevelRemember:   "记忆（Remember）",
		model.LevelUnderstand: "理解（Understand）",
		model.LevelApply:      "应用（Apply）",
		model.LevelAnalyze:    "分析（Analyze）",
		model.LevelEvaluate:   "评价（Evaluate）",
		model.LevelCreate:     "创造（Create）",
	},
}

type guidance struct {
	verbs   string
	example string
}

// examinerGuidance carries the allowed question verbs and one example per
// level, embedded into the examiner system prompt.
var examinerGuidance = map[string]map[model.BloomLevel]guidance{
	LangEN: {
		model.LevelRemember:   {"list, define, name, identify, recall", "Please list three main concepts we discussed in the conversation."},
		model.LevelUnderstand: {"explain, describe, summarize, compare, interpret", "Please explain why X happens (based on our discussion)?"},
		model.LevelApply:      {"apply, use, solve, calculate, execute", "If you encounter situation X, how would you apply the Y method we discussed to solve it?"},
		model.LevelAnalyze:    {"analyze, compare, distinguish, deconstruct, examine", "Please analyze the components of X and explain how they relate to each other."},
		model.LevelEvaluate:   {"evaluate, judge, critique, choose, assess", "Please evaluate the strengths and weaknesses of solution X, and explain when it is most applicable."},
		model.LevelCreate:     {"create, design, construct, invent, compose", "Please design an X solution to solve problem Y (combining knowledge discussed in the conversation)."},
	},
	LangZH: {
		model.LevelRemember:   {"列出、定义、说出、识别、回忆", "请列出我们在对话中讨论过的三个主要概念。"},
		model.LevelUnderstand: {"解释、说明、描述、总结、比较", "请解释为什么X会发生（基于对话中的讨论）？"},
		model.LevelApply:      {"应用、使用、解决、计算、执行", "如果遇到X情况，你会如何应用我们讨论的Y方法来解决？"},
		model.LevelAnalyze:    {"分析、比较、区分、分解、检查", "请分析X的组成部分，并说明它们之间的关系。"},
		model.LevelEvaluate:   {"评估、评价、判断、选择、批评", "请评估X方案的优缺点，并说明在什么情况下它最适用。"},
		model.LevelCreate:     {"创造、设计、制作、构建、发明", "请设计一个X方案来解决Y问题（结合对话中讨论的知识）。"},
	},
}

// evaluatorFocus is the per-lens, per-level emphasis line embedded into each
// evaluator prompt: strict grades against level criteria, growth looks at
// development potential, cognitive traces the processing chain.
var evaluatorFocus = map[string]map[string]map[model.BloomLevel]string{
	"strict": {
		LangEN: {
			model.LevelRemember:   "Ability to accurately recall facts, terms, and basic concepts",
			model.LevelUnderstand: "Ability to explain, summarize, infer, and compare concepts",
			model.LevelApply:      "Ability to apply knowledge to solve problems in new situations",
			model.LevelAnalyze:    "Ability to break down materials, identify relationships, and organize structures",
			model.LevelEvaluate:   "Ability to make judgments and critical evaluations based on criteria",
			model.LevelCreate:     "Ability to integrate elements into novel coherent wholes or propose new solutions",
		},
		LangZH: {
			model.LevelRemember:   "精确回忆事实、术语、基础概念的能力",
			model.LevelUnderstand: "解释、总结、推断和比较概念的能力",
			model.LevelApply:      "在新情境中运用知识解决问题的能力",
			model.LevelAnalyze:    "分解材料、识别关系和组织结构的能力",
			model.LevelEvaluate:   "基于标准做出判断和批判性评价的能力",
			model.LevelCreate:     "整合元素形成新颖连贯的整体或提出新方案的能力",
		},
	},
	"growth": {
		LangEN: {
			model.LevelRemember:   "Accuracy and organization of memory",
			model.LevelUnderstand: "Conceptual understanding and meaning construction",
			model.LevelApply:      "Knowledge transfer and practical application",
			model.LevelAnalyze:    "Systematic and logical thinking",
			model.LevelEvaluate:   "Critical thinking and judgment",
			model.LevelCreate:     "Innovative thinking and synthesis ability",
		},
		LangZH: {
			model.LevelRemember:   "记忆的准确性和组织性",
			model.LevelUnderstand: "概念理解和意义建构",
			model.LevelApply:      "知识迁移和实践应用",
			model.LevelAnalyze:    "思维的系统性和逻辑性",
			model.LevelEvaluate:   "批判思维和判断力",
			model.LevelCreate:     "创新思维和综合能力",
		},
	},
	"cognitive": {
		LangEN: {
			model.LevelRemember:   "Identify → Recall → Retrieve",
			model.LevelUnderstand: "Explain → Exemplify → Classify → Summarize → Infer → Compare",
			model.LevelApply:      "Execute → Implement",
			model.LevelAnalyze:    "Differentiate → Organize → Attribute",
			model.LevelEvaluate:   "Check → Critique",
			model.LevelCreate:     "Generate → Plan → Produce",
		},
		LangZH: {
			model.LevelRemember:   "识别→回忆→提取",
			model.LevelUnderstand: "解释→举例→分类→总结→推断→比较",
			model.LevelApply:      "执行→实施",
			model.LevelAnalyze:    "区分→组织→归因",
			model.LevelEvaluate:   "检查→批评",
			model.LevelCreate:     "生成→规划→产生",
		},
	},
}
