package identity

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/baraza/core"
)

var ErrNotFound = core.NewNotFoundError("profile")

type (
	// Profile mirrors an identity provider account so that authors, rosters and
	// course owners can be resolved locally.
	Profile struct {
		ID            string    `json:"id"`
		Role          Role      `json:"role"`
		DisplayName   string    `json:"display_name"`
		StudentNumber string    `json:"student_number,omitempty"`
		CreatedAt     time.Time `json:"created_at"`
		UpdatedAt     time.Time `json:"updated_at"`
	}

	NewProfile struct {
		ID            string `json:"id" validate:"required,notblank"`
		Role          string `json:"role" validate:"required,oneof=teacher ta student admin"`
		DisplayName   string `json:"display_name" validate:"required,notblank"`
		StudentNumber string `json:"student_number"`
	}

	Repository interface {
		GetProfile(ctx context.Context, id string) (Profile, error)
		QueryProfiles(ctx context.Context, ids []string) ([]Profile, error)
		// UpdateOrCreateProfile inserts the profile or updates role, name and number of an existing one.
		UpdateOrCreateProfile(ctx context.Context, prof Profile) (Profile, error)
	}

	Service struct {
		repo Repository
	}
)

func (np *NewProfile) Validate(validate *validator.Validate) error {
	np.ID = core.CleanString(np.ID)
	np.Role = core.CleanString(np.Role, true /* lower */)
	np.DisplayName = core.CleanString(np.DisplayName)
	np.StudentNumber = core.CleanString(np.StudentNumber)
	return validate.Struct(np)
}

func (prof Profile) Identity() Permanent {
	return Permanent{
		UserID:        prof.ID,
		Role:          prof.Role,
		DisplayName:   prof.DisplayName,
		StudentNumber: prof.StudentNumber,
	}
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Get(ctx context.Context, id string) (Profile, error) {
	return svc.repo.GetProfile(ctx, id)
}

func (svc *Service) Save(ctx context.Context, np NewProfile) (Profile, error) {
	now := time.Now().UTC()
	prof, err := svc.repo.UpdateOrCreateProfile(ctx, Profile{
		ID:            np.ID,
		Role:          Role(np.Role),
		DisplayName:   np.DisplayName,
		StudentNumber: np.StudentNumber,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return Profile{}, errors.Wrap(err, "saving profile")
	}
	return prof, nil
}

// Resolve looks up the account behind a verified subject claim.
func (svc *Service) Resolve(ctx context.Context, subject string) (Permanent, error) {
	prof, err := svc.repo.GetProfile(ctx, subject)
	if err != nil {
		if core.IsNotFound(err) {
			return Permanent{}, core.ErrUnauthenticated
		}
		return Permanent{}, errors.Wrap(err, "getting profile")
	}
	return prof.Identity(), nil
}
