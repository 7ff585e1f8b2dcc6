package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"muninn/internal/models"
	"muninn/internal/oracle"
	"muninn/internal/store"
	"muninn/internal/textutil"
)

const (
	// examplesPerTopic bounds how many example entries per kept topic go
	// into the new-label proposal prompt.
	examplesPerTopic = 3
	// quickSuggestionLimit caps per-entry suggestions from quick categorize.
	quickSuggestionLimit = 3
)

// CategorizationService decides which topic an entry or a batch of entries
// belongs to, combining deterministic filtering with oracle scoring and
// suggestion calls. The engine operations are pure functions of their
// inputs plus the oracle; only Apply touches storage mutably.
type CategorizationService struct {
	oracle  *oracle.Client
	topics  store.TopicStore
	entries store.EntryStore
	tx      store.TxRunner
	cache   *TopicCache
}

func NewCategorizationService(oc *oracle.Client, topics store.TopicStore, entries store.EntryStore, tx store.TxRunner, cache *TopicCache) *CategorizationService {
	return &CategorizationService{oracle: oc, topics: topics, entries: entries, tx: tx, cache: cache}
}

func clamp01(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return math.Max(0, math.Min(1, f))
}

func equalFold(a, b string) bool { return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) }

// findTopic resolves a name against existing topics case-insensitively.
func findTopic(topics []*models.Topic, name string) *models.Topic {
	for _, t := range topics {
		if equalFold(t.Name, name) {
			return t
		}
	}
	return nil
}

// --- Single-query search / suggestion ---

// SearchLabels scores every existing label against the query in one batched
// oracle call and returns all of them sorted by score descending. Ties keep
// insertion order (stable sort); the result is always a permutation of the
// input topic set.
func (s *CategorizationService) SearchLabels(ctx context.Context, topics []*models.Topic, query string) []models.LabelScore {
	labels := make([]string, len(topics))
	for i, t := range topics {
		labels[i] = t.Name
	}
	scores := s.oracle.ScoreSimilarity(ctx, labels, query)

	ranked := make([]models.LabelScore, len(topics))
	for i, t := range topics {
		id := t.ID
		ranked[i] = models.LabelScore{TopicID: &id, Label: t.Name, Score: clamp01(scores[i])}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

// Search ranks the owner's topics against a free-text query.
func (s *CategorizationService) Search(ctx context.Context, ownerID int64, query string) ([]models.LabelScore, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query must not be empty", models.ErrValidation)
	}
	topics, err := s.cache.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.SearchLabels(ctx, topics, query), nil
}

// SuggestAndRank produces one ordered list mixing a "create new" option with
// "reuse existing" options. A fresh suggestion from the oracle is prepended
// with score 1.0 unless it is the failure sentinel or duplicates an existing
// label case-insensitively.
func (s *CategorizationService) SuggestAndRank(ctx context.Context, topics []*models.Topic, text string) []models.LabelScore {
	labels := make([]string, len(topics))
	for i, t := range topics {
		labels[i] = t.Name
	}

	suggestion := s.oracle.SuggestLabel(ctx, text, labels)
	ranked := s.SearchLabels(ctx, topics, text)

	if suggestion == oracle.SentinelLabel || findTopic(topics, suggestion) != nil {
		return ranked
	}
	return append([]models.LabelScore{{Label: suggestion, Score: 1.0, IsNew: true}}, ranked...)
}

// Suggest ranks existing topics for a text and possibly prefixes a new-label
// suggestion.
func (s *CategorizationService) Suggest(ctx context.Context, ownerID int64, text string) ([]models.LabelScore, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text must not be empty", models.ErrValidation)
	}
	topics, err := s.cache.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.SuggestAndRank(ctx, topics, text), nil
}

// --- Quick multi-entry suggestion ---

// quickRecord mirrors the JSON shape requested from the oracle for one
// suggestion.
type quickRecord struct {
	TopicName  string  `json:"topic_name"`
	IsNew      bool    `json:"is_new"`
	Confidence float64 `json:"confidence_score"`
}

// QuickSuggest asks the oracle, for each entry independently, for up to
// three candidate labels. Suggestions flagged "existing" that match no real
// topic are reclassified as new; matches resolve to the topic's exact id
// and name.
func (s *CategorizationService) QuickSuggest(ctx context.Context, topics []*models.Topic, entries []*models.Entry) []models.EntrySuggestion {
	labels := make([]string, len(topics))
	for i, t := range topics {
		labels[i] = t.Name
	}

	out := make([]models.EntrySuggestion, 0, len(entries))
	for _, entry := range entries {
		var b strings.Builder
		b.WriteString("Suggest up to 3 topic labels for this note.\n")
		if len(labels) > 0 {
			fmt.Fprintf(&b, "Existing topics: %s\n", strings.Join(labels, ", "))
		}
		fmt.Fprintf(&b, "\nNote:\n%s\n\n", textutil.Snippet(entry.Content, 3, 500))
		b.WriteString(`Return ONLY a JSON object of the form {"suggestions": [{"topic_name": "...", "is_new": false, "confidence_score": 0.9}]}. ` +
			`Set is_new to false only when reusing one of the existing topics.`)

		suggestions := s.parseQuickSuggestions(ctx, topics, b.String())
		out = append(out, models.EntrySuggestion{EntryID: entry.ID, Suggestions: suggestions})
	}
	return out
}

func (s *CategorizationService) parseQuickSuggestions(ctx context.Context, topics []*models.Topic, prompt string) []models.LabelScore {
	raw, ok := s.oracle.CompleteStructured(ctx, prompt, oracle.ShapeJSONObject)
	if !ok {
		return nil
	}
	var parsed struct {
		Suggestions []quickRecord `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		log.Warnf("categorization: unparseable quick-suggest payload: %v", err)
		return nil
	}

	var scores []models.LabelScore
	for _, rec := range parsed.Suggestions {
		if strings.TrimSpace(rec.TopicName) == "" {
			continue
		}
		ls := models.LabelScore{Label: rec.TopicName, Score: clamp01(rec.Confidence), IsNew: rec.IsNew}
		if match := findTopic(topics, rec.TopicName); match != nil {
			id := match.ID
			ls.TopicID = &id
			ls.Label = match.Name
			ls.IsNew = false
		} else {
			// The oracle claimed an existing topic that does not exist.
			ls.IsNew = true
		}
		scores = append(scores, ls)
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if len(scores) > quickSuggestionLimit {
		scores = scores[:quickSuggestionLimit]
	}
	return scores
}

// QuickCategorize loads the named entries and produces per-entry ranked
// suggestions.
func (s *CategorizationService) QuickCategorize(ctx context.Context, ownerID int64, entryIDs []int64) ([]models.EntrySuggestion, error) {
	if len(entryIDs) == 0 {
		return nil, fmt.Errorf("%w: no entry ids given", models.ErrValidation)
	}
	entries, err := s.entries.GetEntriesByIDs(ctx, ownerID, entryIDs)
	if err != nil {
		return nil, err
	}
	if len(entries) != len(entryIDs) {
		return nil, fmt.Errorf("%w: one or more entries do not exist", models.ErrNotFound)
	}
	topics, err := s.cache.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.QuickSuggest(ctx, topics, entries), nil
}

// --- Full corpus recategorization ---

// BuildProposal computes a full recategorization proposal. Entries in kept
// topics stay where they are at confidence 1.0; the rest are grouped under
// a small set of oracle-proposed new topics resolved in one batched call.
// Entries the oracle fails to place land in UncategorizedEntries rather
// than being dropped. The output partitions the input entry set exactly.
func (s *CategorizationService) BuildProposal(ctx context.Context, entries []*models.Entry, topics []*models.Topic, keepIDs map[int64]bool, instructions string) *models.CategorizationProposal {
	proposal := &models.CategorizationProposal{}

	kept := make([]*models.Topic, 0, len(topics))
	for _, t := range topics {
		if keepIDs[t.ID] {
			kept = append(kept, t)
		}
	}

	// Index maps instead of pointers: appends below may reallocate
	// proposal.Topics.
	keptIdx := make(map[int64]int, len(kept))
	for _, t := range kept {
		id := t.ID
		// A kept topic is never discarded, even when it ends up empty.
		proposal.Topics = append(proposal.Topics, models.ProposedTopic{TopicID: &id, Name: t.Name, Confidence: 1.0})
		keptIdx[t.ID] = len(proposal.Topics) - 1
	}

	var toCategorize []*models.Entry
	for _, e := range entries {
		if e.TopicID != nil {
			if i, ok := keptIdx[*e.TopicID]; ok {
				cur := *e.TopicID
				bucket := &proposal.Topics[i]
				bucket.Entries = append(bucket.Entries, models.ProposedEntry{EntryID: e.ID, CurrentTopicID: &cur, Confidence: 1.0})
				continue
			}
		}
		toCategorize = append(toCategorize, e)
	}
	if len(toCategorize) == 0 {
		return proposal
	}

	groups := make([]oracle.LabeledGroup, 0, len(kept))
	for _, t := range kept {
		g := oracle.LabeledGroup{Label: t.Name}
		for _, pe := range proposal.Topics[keptIdx[t.ID]].Entries {
			if len(g.Examples) == examplesPerTopic {
				break
			}
			if entry := findEntry(entries, pe.EntryID); entry != nil {
				g.Examples = append(g.Examples, textutil.Snippet(entry.Content, 1, 160))
			}
		}
		groups = append(groups, g)
	}

	snippets := make([]string, len(toCategorize))
	for i, e := range toCategorize {
		snippets[i] = textutil.Snippet(e.Content, 2, 240)
	}

	// Candidate names are filtered against ALL existing labels, not just the
	// kept ones, so an accepted proposal cannot collide on create.
	candidates := s.oracle.ProposeNewLabels(ctx, groups, snippets, instructions)
	candidates = filterExistingLabels(candidates, topics)

	if len(candidates) == 0 {
		log.Warn("categorization: oracle proposed no usable new topics; surfacing entries as uncategorized")
		for _, e := range toCategorize {
			proposal.UncategorizedEntries = append(proposal.UncategorizedEntries, e.ID)
		}
		return proposal
	}

	assignments := s.resolveAssignments(ctx, toCategorize, candidates, instructions)

	newIdx := make(map[string]int, len(candidates))
	for _, name := range candidates {
		proposal.Topics = append(proposal.Topics, models.ProposedTopic{Name: name, IsNew: true})
		newIdx[strings.ToLower(name)] = len(proposal.Topics) - 1
	}

	for i, e := range toCategorize {
		a, ok := assignments[i]
		if !ok {
			proposal.UncategorizedEntries = append(proposal.UncategorizedEntries, e.ID)
			continue
		}
		bucket := &proposal.Topics[newIdx[strings.ToLower(a.topicName)]]
		bucket.Entries = append(bucket.Entries, models.ProposedEntry{EntryID: e.ID, CurrentTopicID: e.TopicID, Confidence: clamp01(a.confidence)})
	}

	// Aggregate confidence = mean of member confidences; new topics that
	// attracted nothing are discarded.
	pruned := proposal.Topics[:0]
	for _, pt := range proposal.Topics {
		if pt.IsNew {
			if len(pt.Entries) == 0 {
				continue
			}
			var sum float64
			for _, pe := range pt.Entries {
				sum += pe.Confidence
			}
			pt.Confidence = clamp01(sum / float64(len(pt.Entries)))
		}
		pruned = append(pruned, pt)
	}
	proposal.Topics = pruned
	return proposal
}

type assignment struct {
	topicName  string
	confidence float64
}

// resolveAssignments makes one batched line-record call pairing every
// to-categorize entry with one candidate topic. Records with out-of-range
// indexes or unknown topic names are dropped with a warning; entries left
// unresolved stay absent from the returned map.
func (s *CategorizationService) resolveAssignments(ctx context.Context, entries []*models.Entry, candidates []string, instructions string) map[int]assignment {
	var b strings.Builder
	b.WriteString("Assign each note below to exactly one of the candidate topics.\n\nCandidate topics:\n")
	for _, name := range candidates {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	b.WriteString("\nNotes:\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s\n", i, textutil.Snippet(e.Content, 2, 240))
	}
	if instructions != "" {
		fmt.Fprintf(&b, "\nUser instructions: %s\n", instructions)
	}
	b.WriteString("\nReturn one line per note, exactly in the form:\nindex|topic name|confidence\nwhere confidence is between 0.0 and 1.0. No other text.")

	result := make(map[int]assignment)
	raw, ok := s.oracle.CompleteStructured(ctx, b.String(), oracle.ShapeLineRecords)
	if !ok {
		return result
	}

	candidateSet := make(map[string]string, len(candidates))
	for _, name := range candidates {
		candidateSet[strings.ToLower(name)] = name
	}

	for _, line := range strings.Split(raw, "\n") {
		parts := strings.Split(line, "|")
		if len(parts) != 3 {
			log.Warnf("categorization: dropping malformed assignment record %q", line)
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil || idx < 0 || idx >= len(entries) {
			log.Warnf("categorization: dropping assignment with out-of-range entry index %q", parts[0])
			continue
		}
		name, ok := candidateSet[strings.ToLower(strings.TrimSpace(parts[1]))]
		if !ok {
			log.Warnf("categorization: dropping assignment with unrecognized topic %q", parts[1])
			continue
		}
		conf, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			log.Warnf("categorization: dropping assignment with unparseable confidence %q", parts[2])
			continue
		}
		result[idx] = assignment{topicName: name, confidence: clamp01(conf)}
	}
	return result
}

// Recategorize loads the owner's whole corpus and builds a proposal keeping
// the named topics untouched.
func (s *CategorizationService) Recategorize(ctx context.Context, ownerID int64, keepTopicIDs []int64, instructions string) (*models.CategorizationProposal, error) {
	topics, err := s.topics.ListTopics(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	keep := make(map[int64]bool, len(keepTopicIDs))
	for _, id := range keepTopicIDs {
		if findTopicByID(topics, id) == nil {
			return nil, fmt.Errorf("%w: topic %d", models.ErrNotFound, id)
		}
		keep[id] = true
	}
	entries, err := s.entries.ListEntries(ctx, ownerID, store.EntryFilter{Scope: models.AllTopics, Limit: 10000})
	if err != nil {
		return nil, err
	}
	return s.BuildProposal(ctx, entries, topics, keep, instructions), nil
}

// --- Apply step ---

// Apply commits an accepted proposal in one transaction: new topics are
// created first, in proposal order, then entries whose current topic
// differs are reassigned, then uncategorized entries are cleared. Any
// failure rolls the whole step back.
func (s *CategorizationService) Apply(ctx context.Context, ownerID int64, proposal *models.CategorizationProposal) error {
	if proposal == nil {
		return fmt.Errorf("%w: proposal must not be nil", models.ErrValidation)
	}
	seen := make(map[int64]bool)
	for _, id := range proposal.EntryIDs() {
		if seen[id] {
			return fmt.Errorf("%w: entry %d appears more than once in proposal", models.ErrValidation, id)
		}
		seen[id] = true
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		for i := range proposal.Topics {
			pt := &proposal.Topics[i]

			var targetID int64
			if pt.IsNew {
				topic := &models.Topic{OwnerID: ownerID, Name: pt.Name}
				if err := s.topics.CreateTopic(ctx, topic); err != nil {
					return fmt.Errorf("create topic %q: %w", pt.Name, err)
				}
				id := topic.ID
				pt.TopicID = &id
				targetID = topic.ID
			} else {
				if pt.TopicID == nil {
					return fmt.Errorf("%w: existing proposed topic %q has no id", models.ErrValidation, pt.Name)
				}
				// Ownership check before any entry points at this topic.
				if _, err := s.topics.GetTopic(ctx, ownerID, *pt.TopicID); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("%w: topic %d", models.ErrNotFound, *pt.TopicID)
					}
					return err
				}
				targetID = *pt.TopicID
			}

			for _, pe := range pt.Entries {
				if pe.CurrentTopicID != nil && *pe.CurrentTopicID == targetID {
					continue
				}
				if err := s.entries.SetEntryTopic(ctx, ownerID, pe.EntryID, &targetID); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("%w: entry %d", models.ErrNotFound, pe.EntryID)
					}
					return fmt.Errorf("reassign entry %d: %w", pe.EntryID, err)
				}
			}
		}

		for _, entryID := range proposal.UncategorizedEntries {
			if err := s.entries.SetEntryTopic(ctx, ownerID, entryID, nil); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("%w: entry %d", models.ErrNotFound, entryID)
				}
				return fmt.Errorf("uncategorize entry %d: %w", entryID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(ownerID)
	return nil
}

// --- Helpers ---

func findEntry(entries []*models.Entry, id int64) *models.Entry {
	for _, e := range entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func findTopicByID(topics []*models.Topic, id int64) *models.Topic {
	for _, t := range topics {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func filterExistingLabels(candidates []string, topics []*models.Topic) []string {
	var out []string
	for _, name := range candidates {
		if findTopic(topics, name) == nil {
			out = append(out, name)
		}
	}
	return out
}
