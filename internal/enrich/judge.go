package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ariavasulin/YouLearn/internal/capability"
)

// Status classifies a verified claim.
type Status string

const (
	StatusCorrect      Status = "correct"
	StatusCorrected    Status = "corrected"
	StatusUnverifiable Status = "unverifiable"
)

// Verdict is a judge's decision on one claim.
type Verdict struct {
	Status          Status
	Correction      string
	SourceReference string
	Explanation     string
}

// normalize keeps correction and source only on corrected verdicts. A
// corrected verdict without a correction cannot be acted on and becomes
// unverifiable.
func (v Verdict) normalize() Verdict {
	switch v.Status {
	case StatusCorrected:
		if strings.TrimSpace(v.Correction) == "" {
			return Verdict{Status: StatusUnverifiable, Explanation: v.Explanation}
		}
		return v
	case StatusCorrect:
		return Verdict{Status: StatusCorrect, Explanation: v.Explanation}
	default:
		return Verdict{Status: StatusUnverifiable, Explanation: v.Explanation}
	}
}

// Judge decides a claim against search evidence.
type Judge interface {
	Judge(ctx context.Context, claim Claim, evidence []capability.Snippet) (Verdict, error)
}

// OverlapJudge accepts a claim when one snippet contains enough of the
// claim's terms. It never proposes corrections.
type OverlapJudge struct {
	Threshold float64
}

func (j OverlapJudge) Judge(_ context.Context, claim Claim, evidence []capability.Snippet) (Verdict, error) {
	if len(evidence) == 0 {
		return Verdict{Status: StatusUnverifiable, Explanation: "no search results"}, nil
	}
	terms := claimTerms(claim.Text)
	if len(terms) == 0 {
		return Verdict{Status: StatusUnverifiable, Explanation: "claim has no searchable terms"}, nil
	}
	threshold := j.Threshold
	if threshold <= 0 {
		threshold = 0.6
	}

	best, bestURL := 0.0, ""
	for _, s := range evidence {
		hay := strings.ToLower(s.Title + " " + s.Text)
		hits := 0
		for _, t := range terms {
			if strings.Contains(hay, t) {
				hits++
			}
		}
		if score := float64(hits) / float64(len(terms)); score > best {
			best, bestURL = score, s.URL
		}
	}
	if best >= threshold {
		return Verdict{
			Status:      StatusCorrect,
			Explanation: fmt.Sprintf("%.0f%% of key terms found in %s", best*100, bestURL),
		}, nil
	}
	return Verdict{
		Status:      StatusUnverifiable,
		Explanation: fmt.Sprintf("best source matched %.0f%% of key terms", best*100),
	}, nil
}

const judgeInstructions = `You are a fact checker for a university course notebook.
You receive one claim taken from the notes and numbered web search results.
Decide whether the results confirm the claim, contradict it, or say nothing about it.

Answer with a single JSON object and nothing else:
{"status": "correct" | "incorrect" | "unverified",
 "correction": "what the claim should say, only when incorrect",
 "source_url": "URL of the result that supports your decision",
 "explanation": "one sentence"}

Do not judge proofs, definitions or formatting. Only historical attributions,
dates, names and concrete verifiable statements can be incorrect.`

// GenerationJudge asks a generation capability to classify the claim.
type GenerationJudge struct {
	Gen       capability.GenerationCapability
	MaxTokens int
}

type judgeAnswer struct {
	Status      string `json:"status"`
	Correction  string `json:"correction"`
	SourceURL   string `json:"source_url"`
	Explanation string `json:"explanation"`
}

func (j GenerationJudge) Judge(ctx context.Context, claim Claim, evidence []capability.Snippet) (Verdict, error) {
	if len(evidence) == 0 {
		return Verdict{Status: StatusUnverifiable, Explanation: "no search results"}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Claim (from %s):\n%s\n\nSearch results:\n", claim.Source, claim.Text)
	for i, s := range evidence {
		fmt.Fprintf(&sb, "[%d] %s\n%s\n%s\n\n", i+1, s.Title, s.URL, s.Text)
	}

	maxTokens := j.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	raw, err := j.Gen.Generate(ctx, capability.Prompt{
		System:    judgeInstructions,
		User:      sb.String(),
		MaxTokens: maxTokens,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("judge claim: %w", err)
	}

	ans, err := parseJudgeAnswer(raw)
	if err != nil {
		return Verdict{Status: StatusUnverifiable, Explanation: "unreadable judgement: " + err.Error()}, nil
	}

	v := Verdict{
		Correction:      strings.TrimSpace(ans.Correction),
		SourceReference: strings.TrimSpace(ans.SourceURL),
		Explanation:     strings.TrimSpace(ans.Explanation),
	}
	switch strings.ToLower(strings.TrimSpace(ans.Status)) {
	case "correct":
		v.Status = StatusCorrect
	case "incorrect", "corrected":
		v.Status = StatusCorrected
	default:
		v.Status = StatusUnverifiable
	}
	return v.normalize(), nil
}

func parseJudgeAnswer(raw string) (judgeAnswer, error) {
	text := capability.StripFences(raw)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return judgeAnswer{}, fmt.Errorf("no JSON object in response")
	}
	var ans judgeAnswer
	if err := json.Unmarshal([]byte(text[start:end+1]), &ans); err != nil {
		return judgeAnswer{}, err
	}
	return ans, nil
}
