package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"muninn/internal/models"
)

// SentinelLabel is returned by SuggestLabel when the oracle could not be
// reached or produced nothing usable.
const SentinelLabel = "New Topic"

// ResponseShape selects the structured output format CompleteStructured
// expects back.
type ResponseShape string

const (
	ShapeJSONObject  ResponseShape = "json_object"
	ShapeLineRecords ResponseShape = "line_records"
)

// LabeledGroup is one already-accepted group shown to the oracle as context
// when proposing new labels.
type LabeledGroup struct {
	Label    string
	Examples []string
}

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxTokens  = 1024
	maxProposedLabels = 5
	scoreMaxTokens    = 256
	labelMaxTokens    = 32
)

// Client wraps a completion transport with typed, fail-soft operations.
// Every method except GenerateChat recovers from transport and parse
// failures with a safe default and never returns an error.
type Client struct {
	transport Transport
	timeout   time.Duration
}

// NewClient creates an oracle client. A non-positive timeout falls back to
// the default.
func NewClient(transport Transport, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{transport: transport, timeout: timeout}
}

func (c *Client) complete(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.transport.Complete(ctx, messages, maxTokens)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrOracleUnavailable, err)
	}
	return raw, nil
}

// ScoreSimilarity scores every label against the query in one call. The
// result always has one score per label, each in [0,1]; on any failure the
// whole vector is zeros.
func (c *Client) ScoreSimilarity(ctx context.Context, labels []string, query string) []float64 {
	zeros := make([]float64, len(labels))
	if len(labels) == 0 {
		return zeros
	}

	var b strings.Builder
	b.WriteString("You are a similarity scoring system. Score how related each label below is to the query.\n")
	fmt.Fprintf(&b, "Query: %q\n\nLabels:\n", query)
	for i, label := range labels {
		fmt.Fprintf(&b, "%d. %s\n", i+1, label)
	}
	fmt.Fprintf(&b, "\nReturn ONLY a JSON array of %d numbers between 0.0 and 1.0, one per label, in order. No other text.", len(labels))

	raw, err := c.complete(ctx, []Message{{Role: RoleUser, Content: b.String()}}, scoreMaxTokens)
	if err != nil {
		log.Warnf("oracle: similarity scoring failed, returning zero vector: %v", err)
		return zeros
	}
	scores, ok := parseScoreVector(raw, len(labels))
	if !ok {
		log.Warnf("oracle: unparseable similarity response, returning zero vector")
		log.Debugf("oracle: raw similarity response: %q", raw)
		return zeros
	}
	return scores
}

// SuggestLabel asks for one short label for text. Existing labels are given
// as context so the oracle can reuse naming conventions. Returns
// SentinelLabel on any failure.
func (c *Client) SuggestLabel(ctx context.Context, text string, contextLabels []string) string {
	var b strings.Builder
	b.WriteString("Suggest one short topic label (2-4 words) for the following text.\n")
	if len(contextLabels) > 0 {
		fmt.Fprintf(&b, "Existing topic labels for style reference: %s\n", strings.Join(contextLabels, ", "))
	}
	fmt.Fprintf(&b, "\nText:\n%s\n\nReturn ONLY the label, no quotes, no explanation.", text)

	raw, err := c.complete(ctx, []Message{{Role: RoleUser, Content: b.String()}}, labelMaxTokens)
	if err != nil {
		log.Warnf("oracle: label suggestion failed, returning sentinel: %v", err)
		return SentinelLabel
	}
	lines := nonEmptyLines(raw)
	if len(lines) == 0 {
		log.Warnf("oracle: empty label suggestion, returning sentinel")
		log.Debugf("oracle: raw label response: %q", raw)
		return SentinelLabel
	}
	return lines[0]
}

// ProposeNewLabels asks for a handful of brand-new group names for toLabel,
// given examples of already-accepted groups. Names that collide
// case-insensitively with an accepted label are filtered out. Returns an
// empty slice on any failure.
func (c *Client) ProposeNewLabels(ctx context.Context, groups []LabeledGroup, toLabel []string, instructions string) []string {
	if len(toLabel) == 0 {
		return nil
	}

	accepted := make(map[string]bool, len(groups))
	var b strings.Builder
	b.WriteString("You are organizing free-form notes into topics.\n")
	if len(groups) > 0 {
		b.WriteString("Already-accepted topics with example notes:\n")
		for _, g := range groups {
			accepted[strings.ToLower(g.Label)] = true
			fmt.Fprintf(&b, "- %s\n", g.Label)
			for _, ex := range g.Examples {
				fmt.Fprintf(&b, "    * %s\n", ex)
			}
		}
	}
	b.WriteString("\nNotes that still need topics:\n")
	for _, text := range toLabel {
		fmt.Fprintf(&b, "- %s\n", text)
	}
	if instructions != "" {
		fmt.Fprintf(&b, "\nUser instructions: %s\n", instructions)
	}
	fmt.Fprintf(&b, "\nPropose 3 to %d NEW topic names that cover these notes. Do not repeat an existing topic name. Return one name per line, nothing else.", maxProposedLabels)

	raw, err := c.complete(ctx, []Message{{Role: RoleUser, Content: b.String()}}, defaultMaxTokens)
	if err != nil {
		log.Warnf("oracle: new label proposal failed, returning none: %v", err)
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, name := range nonEmptyLines(raw) {
		key := strings.ToLower(name)
		if accepted[key] || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
		if len(out) == maxProposedLabels {
			break
		}
	}
	if len(out) == 0 {
		log.Debugf("oracle: raw label proposal response: %q", raw)
	}
	return out
}

// CompleteStructured runs a free-form structured completion. For
// ShapeJSONObject the first balanced JSON object is extracted from the raw
// output; for ShapeLineRecords the trimmed non-empty lines are joined back
// together. ok is false when nothing usable came back; no error is raised.
func (c *Client) CompleteStructured(ctx context.Context, prompt string, shape ResponseShape) (string, bool) {
	raw, err := c.complete(ctx, []Message{{Role: RoleUser, Content: prompt}}, defaultMaxTokens)
	if err != nil {
		log.Warnf("oracle: structured completion failed: %v", err)
		return "", false
	}

	switch shape {
	case ShapeJSONObject:
		obj, ok := extractJSONObject(raw)
		if !ok {
			log.Warnf("oracle: no JSON object in structured response")
			log.Debugf("oracle: raw structured response: %q", raw)
			return "", false
		}
		return obj, true
	case ShapeLineRecords:
		lines := nonEmptyLines(raw)
		if len(lines) == 0 {
			log.Warnf("oracle: no line records in structured response")
			log.Debugf("oracle: raw structured response: %q", raw)
			return "", false
		}
		return strings.Join(lines, "\n"), true
	default:
		log.Warnf("oracle: unknown response shape %q", shape)
		return "", false
	}
}

// GenerateChat produces free text for the chat pipeline. Unlike the other
// operations this surfaces failures: a fabricated assistant reply is worse
// than an explicit error.
func (c *Client) GenerateChat(ctx context.Context, messages []Message) (string, error) {
	raw, err := c.complete(ctx, messages, defaultMaxTokens)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", fmt.Errorf("%w: empty chat completion", models.ErrOracleMalformed)
	}
	return text, nil
}

// Name reports the underlying transport provider.
func (c *Client) Name() string { return c.transport.Name() }

// ModelName reports the underlying transport model.
func (c *Client) ModelName() string { return c.transport.ModelName() }
