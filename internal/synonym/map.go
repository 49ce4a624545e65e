package synonym

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agext/levenshtein"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Score deltas applied per reinforcement action, and the seed scores used
// when a workspace entry is created by that action.
const (
	deltaMatchSuccess  = 0.1
	deltaOverride      = 0.3
	deltaCandidateSeen = 0.05

	seedMatchSuccess  = 0.7
	seedOverride      = 0.9
	seedCandidateSeen = 0.3
)

// Promotion thresholds: a term reaching promotionScore in promotionWorkspaces
// distinct workspaces is merged into the global table.
const (
	promotionScore      = 0.8
	promotionWorkspaces = 3
	promotionDelta      = 0.2
	promotionSeedScore  = 0.8
)

// suggestThreshold excludes weak similarity matches from SuggestFields.
const suggestThreshold = 0.3

// Suggestion is one candidate canonical field with its similarity score.
type Suggestion struct {
	FieldID string  `json:"field_id"`
	Score   float64 `json:"score"`
}

// Snapshot is a read-only export of the merged synonym state, usable as
// prompt context without touching the live map.
type Snapshot struct {
	WorkspaceID string              `json:"workspace_id"`
	Version     string              `json:"version"`
	Entries     map[string][]string `json:"entries"`
	Timestamp   time.Time           `json:"timestamp"`
}

// Map is the per-workspace synonym map. Lookups run against an in-memory
// snapshot loaded from the store; reinforcement writes go through the store
// and take effect on the next LoadSnapshot.
type Map struct {
	workspaceID string
	version     string
	store       Store

	mu       sync.RWMutex
	snapshot map[string][]string
	loaded   bool
}

// New creates a Map for a workspace. LoadSnapshot must be called before any
// lookup.
func New(store Store, workspaceID string) *Map {
	return &Map{
		workspaceID: workspaceID,
		version:     "latest",
		store:       store,
		snapshot:    map[string][]string{},
	}
}

// LoadSnapshot replaces the in-memory snapshot with a fresh merge of global
// entries overlaid with workspace entries. Workspace variants append to the
// global variants for the same field, deduplicated. There is no incremental
// invalidation; callers refresh by calling LoadSnapshot again.
func (m *Map) LoadSnapshot(ctx context.Context) error {
	global, err := m.store.ListGlobalSynonyms(ctx)
	if err != nil {
		return eris.Wrap(err, "synonym: load global entries")
	}
	workspace, err := m.store.ListWorkspaceSynonyms(ctx, m.workspaceID)
	if err != nil {
		return eris.Wrap(err, "synonym: load workspace entries")
	}

	merged := make(map[string][]string)
	for _, e := range global {
		merged[e.FieldID] = append([]string(nil), e.Variants...)
	}
	for _, e := range workspace {
		merged[e.FieldID] = dedupe(append(merged[e.FieldID], e.Variants...))
	}

	m.mu.Lock()
	m.snapshot = merged
	m.loaded = true
	m.mu.Unlock()
	return nil
}

// FindCanonicalField resolves a free-text term to a canonical field ID.
// Checks, in order: exact match against the field ID, exact match against any
// variant, then bidirectional substring containment. The first field found
// wins; iteration order across fields is unspecified.
func (m *Map) FindCanonicalField(term string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(term))

	m.mu.RLock()
	defer m.mu.RUnlock()

	for fieldID, variants := range m.snapshot {
		if strings.ToLower(fieldID) == needle {
			return fieldID, true
		}
		for _, v := range variants {
			lv := strings.ToLower(v)
			if lv == needle {
				return fieldID, true
			}
			if strings.Contains(lv, needle) || strings.Contains(needle, lv) {
				return fieldID, true
			}
		}
	}
	return "", false
}

// SuggestFields scores every field by the maximum similarity between term and
// the field ID or any of its variants, dropping scores at or below the
// threshold, and returns the top entries by descending score. A limit <= 0
// defaults to 3.
func (m *Map) SuggestFields(term string, limit int) []Suggestion {
	if limit <= 0 {
		limit = 3
	}
	needle := strings.ToLower(strings.TrimSpace(term))

	m.mu.RLock()
	var suggestions []Suggestion
	for fieldID, variants := range m.snapshot {
		max := similarity(needle, strings.ToLower(fieldID))
		for _, v := range variants {
			if s := similarity(needle, strings.ToLower(v)); s > max {
				max = s
			}
		}
		if max > suggestThreshold {
			suggestions = append(suggestions, Suggestion{FieldID: fieldID, Score: max})
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions
}

// Snapshot exports the current merged state.
func (m *Map) Snapshot() Snapshot {
	m.mu.RLock()
	entries := make(map[string][]string, len(m.snapshot))
	for k, v := range m.snapshot {
		entries[k] = append([]string(nil), v...)
	}
	m.mu.RUnlock()

	return Snapshot{
		WorkspaceID: m.workspaceID,
		Version:     m.version,
		Entries:     entries,
		Timestamp:   time.Now().UTC(),
	}
}

// RecordMatchSuccess reinforces a variant that resolved correctly.
func (m *Map) RecordMatchSuccess(ctx context.Context, fieldID, term string) error {
	return m.record(ctx, fieldID, term, deltaMatchSuccess, seedMatchSuccess)
}

// RecordOverride reinforces a variant the user explicitly mapped.
func (m *Map) RecordOverride(ctx context.Context, fieldID, term string) error {
	return m.record(ctx, fieldID, term, deltaOverride, seedOverride)
}

// RecordCandidateSeen weakly proposes a variant observed in source text.
func (m *Map) RecordCandidateSeen(ctx context.Context, fieldID, term string) error {
	return m.record(ctx, fieldID, term, deltaCandidateSeen, seedCandidateSeen)
}

// record upserts the workspace entry for (fieldID, term) and attempts global
// promotion when the resulting score crosses the promotion threshold.
// Concurrent updates race on last-write; scores only nudge upward, so a lost
// update slows convergence without corrupting state.
func (m *Map) record(ctx context.Context, fieldID, term string, delta, seed float64) error {
	normalized := strings.ToLower(strings.TrimSpace(term))
	if normalized == "" || fieldID == "" {
		return eris.New("synonym: empty field or term")
	}

	existing, err := m.store.GetWorkspaceSynonym(ctx, m.workspaceID, fieldID)
	if err != nil {
		return eris.Wrap(err, "synonym: get workspace entry")
	}

	now := time.Now().UTC()
	var entry Entry
	if existing != nil {
		entry = *existing
		if !entry.HasVariant(normalized) {
			entry.Variants = append(entry.Variants, normalized)
		}
		entry.Score = capScore(entry.Score + delta)
		entry.UpdatedAt = now
	} else {
		entry = Entry{
			ID:          uuid.New().String(),
			FieldID:     fieldID,
			Variants:    []string{normalized},
			Score:       seed,
			WorkspaceID: m.workspaceID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}

	if err := m.store.UpsertWorkspaceSynonym(ctx, entry); err != nil {
		return eris.Wrap(err, "synonym: upsert workspace entry")
	}

	if entry.Score >= promotionScore {
		if err := m.promoteGlobal(ctx, fieldID, normalized); err != nil {
			// Promotion failure must not fail the reinforcement itself.
			zap.L().Warn("synonym: global promotion failed",
				zap.String("field", fieldID),
				zap.String("term", normalized),
				zap.Error(err),
			)
		}
	}
	return nil
}

// promoteGlobal merges (fieldID, term) into the global table once the term is
// corroborated across enough distinct workspaces. The gate keeps one noisy
// workspace from polluting the shared vocabulary.
func (m *Map) promoteGlobal(ctx context.Context, fieldID, term string) error {
	count, err := m.store.CountWorkspacesWithVariant(ctx, fieldID, term)
	if err != nil {
		return eris.Wrap(err, "synonym: count corroborating workspaces")
	}
	if count < promotionWorkspaces {
		return nil
	}

	global, err := m.store.GetGlobalSynonym(ctx, fieldID)
	if err != nil {
		return eris.Wrap(err, "synonym: get global entry")
	}

	now := time.Now().UTC()
	if global != nil {
		if global.HasVariant(term) {
			return nil
		}
		entry := *global
		entry.Variants = append(entry.Variants, term)
		entry.Score = capScore(entry.Score + promotionDelta)
		entry.UpdatedAt = now
		return eris.Wrap(m.store.UpsertGlobalSynonym(ctx, entry), "synonym: update global entry")
	}

	entry := Entry{
		ID:        uuid.New().String(),
		FieldID:   fieldID,
		Variants:  []string{term},
		Score:     promotionSeedScore,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.UpsertGlobalSynonym(ctx, entry); err != nil {
		return eris.Wrap(err, "synonym: create global entry")
	}
	zap.L().Info("synonym: promoted to global",
		zap.String("field", fieldID),
		zap.String("term", term),
		zap.Int("workspaces", count),
	)
	return nil
}

// similarity is 1.0 for an exact match, 0.8 for substring containment either
// direction, otherwise 1 minus the normalized Levenshtein distance.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a != "" && b != "" && (strings.Contains(a, b) || strings.Contains(b, a)) {
		return 0.8
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.Distance(a, b, levenshtein.NewParams())
	return 1 - float64(dist)/float64(maxLen)
}

func capScore(s float64) float64 {
	if s > 1.0 {
		return 1.0
	}
	return s
}

func dedupe(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := list[:0]
	for _, v := range list {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
