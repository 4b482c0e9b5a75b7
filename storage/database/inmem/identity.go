package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/baraza/core/identity"
)

type profileRepository struct {
	db *DB
}

var _ identity.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *DB) *profileRepository {
	return &profileRepository{db: db}
}

func (repo *profileRepository) GetProfile(_ context.Context, id string) (identity.Profile, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if prof, ok := repo.db.profiles[id]; ok {
		return prof, nil
	}
	return identity.Profile{}, identity.ErrNotFound
}

func (repo *profileRepository) QueryProfiles(_ context.Context, ids []string) ([]identity.Profile, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	profs := make([]identity.Profile, 0, len(ids))
	for _, id := range ids {
		if prof, ok := repo.db.profiles[id]; ok {
			profs = append(profs, prof)
		}
	}
	sort.Slice(profs, func(i, j int) bool { return profs[i].ID < profs[j].ID })
	return profs, nil
}

func (repo *profileRepository) UpdateOrCreateProfile(_ context.Context, prof identity.Profile) (identity.Profile, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if orig, ok := repo.db.profiles[prof.ID]; ok {
		prof.CreatedAt = orig.CreatedAt
	}
	repo.db.profiles[prof.ID] = prof
	return prof, nil
}
