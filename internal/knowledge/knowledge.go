package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stewardbot/steward/internal/store"
)

const (
	// DefaultLimit bounds retrieval results when the caller gives no limit.
	DefaultLimit = 5
	// MaxLimit caps retrieval results regardless of the requested limit.
	MaxLimit = 50

	// Topic matches weigh triple what content matches do.
	topicWeight   = 3
	contentWeight = 1

	// Query tokens of length <= 3 carry no signal and are dropped.
	minTokenLen = 4

	// DefaultConfidence is stored when synthesis provides none.
	DefaultConfidence = 0.7

	// DefaultSource is recorded for snippets synthesized without one.
	DefaultSource = "user_interaction"

	// candidateWindow bounds the topic-substring lookup during synthesis.
	candidateWindow = 5

	// snippetScanWindow bounds how many snippets retrieval scores.
	snippetScanWindow = 500
)

// Store scores stored snippets against keyword queries and synthesizes new
// ones. Every Retrieve and Synthesize call appends one audit record to the
// interaction log as a side effect.
type Store struct {
	db  *store.DB
	log *slog.Logger
}

// New creates a knowledge Store over the given database.
func New(db *store.DB, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, log: log}
}

// ScoredSnippet is one retrieval hit.
type ScoredSnippet struct {
	Topic     string  `json:"topic"`
	Content   string  `json:"content"`
	Relevance float64 `json:"relevance_score"`
}

// Retrieve tokenizes the query and returns stored snippets ranked by keyword
// relevance. A query with no usable tokens yields an empty result, not an
// error.
func (s *Store) Retrieve(ctx context.Context, query string, limit int) ([]ScoredSnippet, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	tokens := Tokenize(query)
	results := []ScoredSnippet{}
	if len(tokens) > 0 {
		snippets, err := s.db.ListSnippets(ctx, snippetScanWindow)
		if err != nil {
			return nil, fmt.Errorf("listing snippets: %w", err)
		}
		for _, sn := range snippets {
			score := Score(sn, tokens)
			if score <= 0 {
				continue
			}
			results = append(results, ScoredSnippet{Topic: sn.Topic, Content: sn.Content, Relevance: score})
		}
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Relevance > results[j].Relevance
		})
		if len(results) > limit {
			results = results[:limit]
		}
	}

	s.audit(ctx, "retrieval", query, fmt.Sprintf("%d snippets matched", len(results)), map[string]any{
		"tokens": tokens,
		"limit":  limit,
	})
	return results, nil
}

// SynthesisOptions are the optional fields of a synthesis call.
type SynthesisOptions struct {
	Source          string
	Confidence      *float64
	RelatedEntities map[string]any
}

// SynthesisResult reports what a synthesis call did and the resulting snippet.
type SynthesisResult struct {
	Message string        `json:"message"`
	Snippet store.Snippet `json:"knowledge"`
	Updated bool          `json:"-"`
}

// Synthesize merges the given content into an existing snippet whose topic
// contains the given topic (case-insensitive), or creates a new snippet when
// none matches.
func (s *Store) Synthesize(ctx context.Context, topic, content string, opts SynthesisOptions) (SynthesisResult, error) {
	if strings.TrimSpace(topic) == "" {
		return SynthesisResult{}, fmt.Errorf("synthesize: topic is required")
	}
	if strings.TrimSpace(content) == "" {
		return SynthesisResult{}, fmt.Errorf("synthesize: content is required")
	}

	confidence := DefaultConfidence
	if opts.Confidence != nil {
		confidence = clampConfidence(*opts.Confidence)
	}

	candidates, err := s.db.FindSnippetsByTopic(ctx, topic, candidateWindow)
	if err != nil {
		return SynthesisResult{}, fmt.Errorf("finding snippets for %q: %w", topic, err)
	}

	var result SynthesisResult
	if len(candidates) > 0 {
		sn := candidates[0]
		sn.Content = content
		sn.Confidence = confidence
		sn.RelatedEntities = mergeEntities(sn.RelatedEntities, opts.RelatedEntities)
		sn.LastUpdated = time.Now().UTC()
		if err := s.db.UpdateSnippet(ctx, sn); err != nil {
			return SynthesisResult{}, fmt.Errorf("updating snippet %s: %w", sn.ID, err)
		}
		result = SynthesisResult{
			Message: fmt.Sprintf("Updated existing knowledge about %q", sn.Topic),
			Snippet: sn,
			Updated: true,
		}
	} else {
		source := opts.Source
		if source == "" {
			source = DefaultSource
		}
		sn := store.Snippet{
			ID:              uuid.NewString(),
			Topic:           topic,
			Content:         content,
			Source:          source,
			Confidence:      confidence,
			RelatedEntities: mergeEntities(nil, opts.RelatedEntities),
			LastUpdated:     time.Now().UTC(),
		}
		if err := s.db.InsertSnippet(ctx, sn); err != nil {
			return SynthesisResult{}, fmt.Errorf("inserting snippet: %w", err)
		}
		result = SynthesisResult{
			Message: fmt.Sprintf("Stored new knowledge about %q", topic),
			Snippet: sn,
		}
	}

	s.audit(ctx, "synthesis", topic, result.Message, map[string]any{
		"snippet_id": result.Snippet.ID,
		"updated":    result.Updated,
	})
	return result, nil
}

// audit appends one interaction record. The audit trail is a side effect,
// not part of the return contract, so failures are logged and swallowed.
func (s *Store) audit(ctx context.Context, kind, query, summary string, metadata map[string]any) {
	if err := s.db.AppendInteraction(ctx, kind, query, summary, metadata); err != nil {
		s.log.Warn("appending interaction audit record failed", "kind", kind, "error", err)
	}
}

// Tokenize strips punctuation, splits on whitespace, lowercases, and drops
// tokens shorter than four characters.
func Tokenize(query string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '\t', r == '\n', r == '\r':
			return r
		default:
			return ' '
		}
	}, query)

	var tokens []string
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) < minTokenLen {
			continue
		}
		tokens = append(tokens, strings.ToLower(tok))
	}
	return tokens
}

// Score computes keyword relevance for one snippet: topic substring matches
// weigh 3x content matches, and the sum is scaled by the snippet's
// confidence.
func Score(sn store.Snippet, tokens []string) float64 {
	topic := strings.ToLower(sn.Topic)
	content := strings.ToLower(sn.Content)

	matches := 0
	for _, tok := range tokens {
		if strings.Contains(topic, tok) {
			matches += topicWeight
		}
		if strings.Contains(content, tok) {
			matches += contentWeight
		}
	}
	return float64(matches) * sn.Confidence
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// mergeEntities merges key-wise: incoming keys overwrite same-named old
// keys, other old keys are retained.
func mergeEntities(old, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(old)+len(incoming))
	for k, v := range old {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}
