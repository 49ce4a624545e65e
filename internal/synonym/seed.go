package synonym

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/cribs1908/specpipe/internal/profile"
)

// seedScore is the starting score for profile-seeded workspace entries.
const seedScore = 0.6

// SeedDomain inserts a domain profile's seed synonyms into a workspace,
// skipping fields that already have an entry. Safe to call on every run
// submission for a new-or-existing workspace.
func SeedDomain(ctx context.Context, store Store, workspaceID, domain string) error {
	p := profile.GetProfile(domain)
	if p == nil {
		return eris.Errorf("synonym: unknown domain %q", domain)
	}

	now := time.Now().UTC()
	for _, f := range p.Fields {
		seeds := p.SynonymsSeed[f.ID]
		if len(seeds) == 0 {
			continue
		}
		existing, err := store.GetWorkspaceSynonym(ctx, workspaceID, f.ID)
		if err != nil {
			return eris.Wrapf(err, "synonym: seed lookup %s", f.ID)
		}
		if existing != nil {
			continue
		}
		entry := Entry{
			ID:          uuid.New().String(),
			FieldID:     f.ID,
			Variants:    dedupe(append([]string(nil), seeds...)),
			Score:       seedScore,
			WorkspaceID: workspaceID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := store.UpsertWorkspaceSynonym(ctx, entry); err != nil {
			return eris.Wrapf(err, "synonym: seed %s", f.ID)
		}
	}
	return nil
}
