package compose

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"agentic_signals/pkg/models"
)

// Fingerprint derives the content-addressed cache key for one analysis
// request. It is a pure function of (ticker, persona content hash, snapshot
// version, user prompt, market context) — never wall-clock time or process
// identity. Each field is length-prefixed so adjacent fields cannot collide.
func Fingerprint(req models.AnalysisRequest, personaHash string) string {
	h := sha256.New()
	for _, field := range []string{
		req.Ticker,
		personaHash,
		req.SnapshotVersion,
		req.UserPrompt,
		req.MarketContext,
	} {
		writeLenPrefixed(h, field)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeLenPrefixed(w io.Writer, s string) {
	fmt.Fprintf(w, "%d:%s", len(s), s)
}
