package debate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"agentic_signals/pkg/core/analysis"
	"agentic_signals/pkg/core/llm"
	"agentic_signals/pkg/core/utils"
	"agentic_signals/pkg/models"
)

const moderatorID = "moderator"

// Coordinator drives one debate session through its state machine. Rounds are
// strictly sequential within a session; different sessions run concurrently
// under the Manager.
type Coordinator struct {
	ID     string
	Ticker string

	// Mutable session state lives behind mu; the Manager and the HTTP
	// handlers read it through the locked accessors while Run writes it.
	state     State
	rounds    []Round
	verdict   *Verdict
	updatedAt time.Time
	history   []Message

	stances []Stance
	opening []Stance // pre-debate positions, kept for the fallback verdict

	requests []models.AnalysisRequest
	engine   *analysis.Engine
	client   *llm.Client
	repo     *Repo
	config   Config

	subscribers []chan Message
	mu          sync.RWMutex
}

// NewCoordinator prepares a session over one request per divergent persona.
// repo may be nil; persistence is best-effort and never blocks the debate.
func NewCoordinator(id, ticker string, reqs []models.AnalysisRequest, engine *analysis.Engine, client *llm.Client, repo *Repo, config Config) *Coordinator {
	if config.MaxRounds <= 0 {
		config.MaxRounds = DefaultConfig().MaxRounds
	}
	if config.DisagreementThreshold <= 0 {
		config.DisagreementThreshold = DefaultConfig().DisagreementThreshold
	}
	return &Coordinator{
		ID:        id,
		Ticker:    ticker,
		state:     StateCollecting,
		requests:  reqs,
		engine:    engine,
		client:    client,
		repo:      repo,
		config:    config,
		updatedAt: time.Now(),
	}
}

// Subscribe registers a transcript channel and returns it with the history so
// far for replay. The channel is buffered; slow consumers drop messages
// rather than stall the debate.
func (c *Coordinator) Subscribe() (chan Message, []Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Message, 100)
	c.subscribers = append(c.subscribers, ch)
	replay := make([]Message, len(c.history))
	copy(replay, c.history)
	return ch, replay
}

// Unsubscribe removes and closes a transcript channel.
func (c *Coordinator) Unsubscribe(ch chan Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, sub := range c.subscribers {
		if sub == ch {
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			close(sub)
			break
		}
	}
}

func (c *Coordinator) broadcast(round int, personaID, content string) {
	msg := Message{
		ID:        uuid.New().String(),
		SessionID: c.ID,
		Round:     round,
		PersonaID: personaID,
		Content:   content,
		Timestamp: time.Now(),
	}

	c.mu.Lock()
	c.updatedAt = msg.Timestamp
	c.history = append(c.history, msg)
	for _, ch := range c.subscribers {
		select {
		case ch <- msg:
		default:
			// Drop rather than block the round on a slow consumer.
		}
	}
	c.mu.Unlock()

	if c.repo != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := c.repo.AddMessage(ctx, msg); err != nil {
				fmt.Printf("[WARNING] Failed to persist debate message: %v\n", err)
			}
		}()
	}
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.updatedAt = time.Now()
	round := len(c.rounds)
	c.mu.Unlock()

	c.broadcast(round, moderatorID, fmt.Sprintf("state: %s", s))
	if c.repo != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := c.repo.UpdateState(ctx, c.ID, s); err != nil {
				fmt.Printf("[WARNING] Failed to persist debate state: %v\n", err)
			}
		}()
	}
}

// Stances returns a copy of the current stances.
func (c *Coordinator) Stances() []Stance {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Stance, len(c.stances))
	copy(out, c.stances)
	return out
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Rounds returns a copy of the completed debate rounds.
func (c *Coordinator) Rounds() []Round {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Round, len(c.rounds))
	copy(out, c.rounds)
	return out
}

// Verdict returns the concluded verdict, or nil while the session runs.
func (c *Coordinator) Verdict() *Verdict {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.verdict == nil {
		return nil
	}
	v := *c.verdict
	return &v
}

// UpdatedAt reports the session's last activity.
func (c *Coordinator) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// History returns a copy of the transcript so far.
func (c *Coordinator) History() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// Run executes the full state machine. It returns the verdict or an error if
// the session could not even collect opening stances.
func (c *Coordinator) Run(ctx context.Context) (*Verdict, error) {
	if err := c.collect(ctx); err != nil {
		c.setState(StateFailed)
		return nil, err
	}

	c.setState(StateDisagreementCheck)
	score := disagreementScore(c.stances)
	c.broadcast(0, moderatorID, fmt.Sprintf("disagreement score %.2f (threshold %.2f)", score, c.config.DisagreementThreshold))

	if score > c.config.DisagreementThreshold {
		c.setState(StateDebating)
		c.debate(ctx)
	}

	c.setState(StateSynthesizing)
	verdict := c.synthesize(ctx)

	c.mu.Lock()
	c.verdict = &verdict
	c.mu.Unlock()
	c.setState(StateConcluded)

	if c.repo != nil {
		ctxSave, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.repo.SaveVerdict(ctxSave, c.ID, verdict); err != nil {
			fmt.Printf("[WARNING] Failed to persist verdict: %v\n", err)
		}
	}
	return &verdict, nil
}

// collect gathers opening stances by running each request through the
// analysis engine. A session needs at least two stances to mean anything.
func (c *Coordinator) collect(ctx context.Context) error {
	var stances []Stance
	for _, req := range c.requests {
		res, err := c.engine.Analyze(ctx, req)
		if err != nil {
			fmt.Printf("[WARNING] Opening stance for %s failed: %v\n", req.PersonaID, err)
			continue
		}
		stance := Stance{
			PersonaID:  req.PersonaID,
			Signal:     res.Signal,
			Confidence: res.Confidence,
			Reasoning:  res.Reasoning,
		}
		stances = append(stances, stance)
		c.broadcast(0, req.PersonaID, fmt.Sprintf("%s (%.0f%%): %s", res.Signal, res.Confidence*100, res.Reasoning))
	}
	if len(stances) < 2 {
		return fmt.Errorf("debate needs at least 2 opening stances, got %d", len(stances))
	}

	c.mu.Lock()
	c.stances = stances
	c.opening = append([]Stance(nil), stances...)
	c.mu.Unlock()
	return nil
}

// rebuttalOutput is the structured answer each persona must give in a round.
type rebuttalOutput struct {
	Signal     string  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Rebuttal   string  `json:"rebuttal"`
}

const rebuttalSystemPrompt = `You are a financial analyst in a structured debate. You have stated a position; other analysts disagree. Reconsider in light of their arguments, but change your stance only if genuinely persuaded. Respond with JSON only:
{"signal": "bullish" | "bearish" | "neutral", "confidence": <0..1>, "rebuttal": "<your response to the other analysts>"}`

// debate runs rebuttal rounds until convergence or the round cap. Each
// persona sees only the previous round's other positions, never the evolving
// current round, so ordering within a round cannot leak.
func (c *Coordinator) debate(ctx context.Context) {
	previous := c.Stances()

	for round := 1; round <= c.config.MaxRounds; round++ {
		current := make([]Stance, len(previous))
		copy(current, previous)
		r := Round{Index: round}

		for i, stance := range previous {
			prompt := c.rebuttalPrompt(stance, previous)

			var out rebuttalOutput
			if err := c.client.Complete(ctx, prompt, rebuttalSystemPrompt, &out); err != nil {
				// Isolation: a failed rebuttal keeps the persona's prior
				// stance instead of poisoning the round.
				fmt.Printf("[WARNING] Rebuttal by %s in round %d failed: %v\n", stance.PersonaID, round, err)
				continue
			}
			signal := models.Signal(out.Signal)
			if !models.ValidSignal(signal) {
				fmt.Printf("[WARNING] Rebuttal by %s returned unknown signal %q\n", stance.PersonaID, out.Signal)
				continue
			}

			reb := Rebuttal{
				PersonaID:  stance.PersonaID,
				Signal:     signal,
				Confidence: models.ClampConfidence(out.Confidence),
				Text:       utils.CleanReasoning(out.Rebuttal),
				Timestamp:  time.Now(),
			}
			r.Rebuttals = append(r.Rebuttals, reb)
			current[i] = Stance{
				PersonaID:  stance.PersonaID,
				Signal:     reb.Signal,
				Confidence: reb.Confidence,
				Reasoning:  reb.Text,
			}
			c.broadcast(round, stance.PersonaID, fmt.Sprintf("%s (%.0f%%): %s", reb.Signal, reb.Confidence*100, reb.Text))
		}

		c.mu.Lock()
		c.stances = current
		c.rounds = append(c.rounds, r)
		c.mu.Unlock()
		previous = current

		score := disagreementScore(current)
		c.broadcast(round, moderatorID, fmt.Sprintf("round %d disagreement score %.2f", round, score))
		if score <= c.config.DisagreementThreshold {
			c.broadcast(round, moderatorID, "converged early")
			return
		}
	}
}

// rebuttalPrompt shows a persona the other analysts' previous-round positions.
func (c *Coordinator) rebuttalPrompt(self Stance, previous []Stance) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticker: %s\n\n", c.Ticker)
	fmt.Fprintf(&b, "Your current position: %s (confidence %.2f)\nYour reasoning: %s\n\n", self.Signal, self.Confidence, self.Reasoning)
	b.WriteString("Other analysts' positions from the previous round:\n")
	for _, other := range previous {
		if other.PersonaID == self.PersonaID {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s (confidence %.2f): %s\n", other.PersonaID, other.Signal, other.Confidence, other.Reasoning)
	}
	return b.String()
}

// verdictOutput is the synthesizer's required schema.
type verdictOutput struct {
	Signal     string  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

const synthesisSystemPrompt = `You are the moderator of a financial analyst debate. Weigh the final positions and produce one reconciled conclusion. Respond with JSON only:
{"signal": "bullish" | "bearish" | "neutral", "confidence": <0..1>, "rationale": "<why this conclusion>"}`

// synthesize asks the model for a reconciled verdict; any failure falls back
// deterministically to the pre-debate confidence-weighted majority.
func (c *Coordinator) synthesize(ctx context.Context) Verdict {
	final := c.Stances()

	var b strings.Builder
	fmt.Fprintf(&b, "Ticker: %s\n\nFinal analyst positions after %d debate round(s):\n", c.Ticker, len(c.Rounds()))
	for _, s := range final {
		fmt.Fprintf(&b, "- %s: %s (confidence %.2f): %s\n", s.PersonaID, s.Signal, s.Confidence, s.Reasoning)
	}

	var out verdictOutput
	err := c.client.Complete(ctx, b.String(), synthesisSystemPrompt, &out)
	if err == nil {
		signal := models.Signal(out.Signal)
		if models.ValidSignal(signal) {
			return Verdict{
				Signal:      signal,
				Confidence:  models.ClampConfidence(out.Confidence),
				Rationale:   utils.CleanReasoning(out.Rationale),
				Method:      MethodSynthesis,
				ConcludedAt: time.Now(),
			}
		}
		err = fmt.Errorf("synthesis returned unknown signal %q", out.Signal)
	}

	fmt.Printf("[WARNING] Synthesis failed, falling back to weighted majority: %v\n", err)
	c.mu.RLock()
	opening := append([]Stance(nil), c.opening...)
	c.mu.RUnlock()

	signal, confidence := weightedMajority(opening)
	return Verdict{
		Signal:      signal,
		Confidence:  confidence,
		Rationale:   "Synthesis unavailable; verdict is the confidence-weighted majority of the opening stances.",
		Method:      MethodWeightedMajority,
		ConcludedAt: time.Now(),
	}
}
