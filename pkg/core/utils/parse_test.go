package utils

import "testing"

type signalPayload struct {
	Signal     string  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

func TestSmartParseStrictJSON(t *testing.T) {
	var out signalPayload
	err := SmartParse(`{"signal":"bullish","confidence":0.8,"reasoning":"ok"}`, &out)
	if err != nil {
		t.Fatalf("SmartParse failed: %v", err)
	}
	if out.Signal != "bullish" || out.Confidence != 0.8 {
		t.Errorf("Unexpected parse result: %+v", out)
	}
}

func TestSmartParseFencedAndMalformed(t *testing.T) {
	cases := []string{
		"```json\n{\"signal\": \"neutral\", \"confidence\": 0.5, \"reasoning\": \"fenced\"}\n```",
		`{'signal': 'neutral', 'confidence': 0.5, 'reasoning': 'single quotes',}`,
		"{\n  signal: neutral\n  confidence: 0.5\n  reasoning: hjson style\n}",
	}
	for i, input := range cases {
		var out signalPayload
		if err := SmartParse(input, &out); err != nil {
			t.Errorf("Case %d failed: %v", i, err)
			continue
		}
		if out.Signal != "neutral" || out.Confidence != 0.5 {
			t.Errorf("Case %d: expected neutral/0.5, got %q/%.2f", i, out.Signal, out.Confidence)
		}
	}
}

func TestSmartParseGarbage(t *testing.T) {
	var out signalPayload
	if err := SmartParse("I am sorry, I cannot help with that.", &out); err == nil {
		// json-repair can be aggressive; a nil error is acceptable only if it
		// produced an empty structure rather than invented data.
		if out.Signal != "" {
			t.Errorf("Garbage input should not yield a signal, got %q", out.Signal)
		}
	}
}

func TestCleanReasoning(t *testing.T) {
	in := "```markdown\n## Verdict\nStable dividend.\n```"
	got := CleanReasoning(in)
	if got != "## Verdict\nStable dividend." {
		t.Errorf("Unexpected cleaned text: %q", got)
	}
	if !ValidMarkdown(got) {
		t.Error("Cleaned reasoning should be valid markdown")
	}
}

func TestCleanReasoningStripsDanglingFence(t *testing.T) {
	// Truncated model output: the closing fence never arrived.
	in := "Margins are stable.\n```"
	got := CleanReasoning(in)
	if got != "Margins are stable." {
		t.Errorf("Dangling fence should be stripped, got %q", got)
	}
	if !ValidMarkdown(got) {
		t.Error("Cleaned reasoning should validate")
	}
	if ValidMarkdown(in) {
		t.Error("An unclosed fence should not validate")
	}

	// A balanced inner code block is content, not noise.
	balanced := "Summary\n```\nrevenue: up\n```\nDone."
	if CleanReasoning(balanced) != balanced {
		t.Errorf("Balanced fences must be preserved, got %q", CleanReasoning(balanced))
	}
}
