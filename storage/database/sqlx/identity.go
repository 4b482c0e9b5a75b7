package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/baraza/core/identity"
)

type (
	profileRepository struct {
		db *sqlx.DB
	}

	profileRow struct {
		ID            string    `db:"id"`
		Role          string    `db:"role"`
		DisplayName   string    `db:"display_name"`
		StudentNumber string    `db:"student_number"`
		CreatedAt     time.Time `db:"created_at"`
		UpdatedAt     time.Time `db:"updated_at"`
	}
)

var _ identity.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *sqlx.DB) *profileRepository {
	return &profileRepository{db: db}
}

func (row profileRow) profile() identity.Profile {
	return identity.Profile{
		ID:            row.ID,
		Role:          identity.Role(row.Role),
		DisplayName:   row.DisplayName,
		StudentNumber: row.StudentNumber,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func (repo profileRepository) GetProfile(ctx context.Context, id string) (identity.Profile, error) {
	var row profileRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM profiles WHERE id = $1`, id); err != nil {
		return identity.Profile{}, trapNoRowsErr(err, identity.ErrNotFound, "selecting profile")
	}
	return row.profile(), nil
}

func (repo profileRepository) QueryProfiles(ctx context.Context, ids []string) ([]identity.Profile, error) {
	if len(ids) == 0 {
		return []identity.Profile{}, nil
	}
	q, args, err := sqlx.In(`SELECT * FROM profiles WHERE id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building profiles query")
	}
	var rows []profileRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting profiles")
	}
	profs := make([]identity.Profile, 0, len(rows))
	for _, row := range rows {
		profs = append(profs, row.profile())
	}
	return profs, nil
}

func (repo profileRepository) UpdateOrCreateProfile(ctx context.Context, prof identity.Profile) (identity.Profile, error) {
	const q = `
		INSERT INTO profiles (id, role, display_name, student_number, created_at, updated_at)
		VALUES (:id, :role, :display_name, :student_number, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE
		SET role = EXCLUDED.role,
		    display_name = EXCLUDED.display_name,
		    student_number = EXCLUDED.student_number,
		    updated_at = EXCLUDED.updated_at
		RETURNING *`
	row := profileRow{
		ID:            prof.ID,
		Role:          string(prof.Role),
		DisplayName:   prof.DisplayName,
		StudentNumber: prof.StudentNumber,
		CreatedAt:     prof.CreatedAt,
		UpdatedAt:     prof.UpdatedAt,
	}
	rows, err := repo.db.NamedQueryContext(ctx, q, row)
	if err != nil {
		return identity.Profile{}, errors.Wrap(err, "upserting profile")
	}
	defer func() { _ = rows.Close() }()

	var saved profileRow
	if rows.Next() {
		if err = rows.StructScan(&saved); err != nil {
			return identity.Profile{}, errors.Wrap(err, "scanning profile")
		}
	}
	return saved.profile(), errors.Wrap(rows.Err(), "upserting profile")
}
