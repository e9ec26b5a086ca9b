package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/memberhub/portal/internal/shared"
)

// ErrInvalidUpdate wraps validation failures on self edits.
var ErrInvalidUpdate = errors.New("members: invalid update")

// Service wraps member profile business rules.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// Current returns the profile linked to the identity, or ErrNotFound when the
// identity still needs profile setup.
func (s *Service) Current(ctx context.Context, authUserID uuid.UUID) (*Profile, error) {
	return s.repo.FindByAuthUserID(ctx, authUserID)
}

// CompleteSetup links an identity to the unlinked member row carrying the
// same email. An identity can own at most one profile.
func (s *Service) CompleteSetup(ctx context.Context, authUserID uuid.UUID, email string) (*Profile, error) {
	if existing, err := s.repo.FindByAuthUserID(ctx, authUserID); err == nil {
		return existing, ErrAlreadyLinked
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	member, err := s.repo.FindByEmail(ctx, shared.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if member.AuthUserID != nil {
		return nil, ErrAlreadyLinked
	}
	return s.repo.LinkAuthUser(ctx, member.ID, authUserID)
}

// UpdateSelf validates and applies a member's own edits.
func (s *Service) UpdateSelf(ctx context.Context, authUserID uuid.UUID, upd SelfUpdate) (*Profile, error) {
	if upd.Empty() {
		return nil, fmt.Errorf("%w: no fields to update", ErrInvalidUpdate)
	}
	if err := s.validate.Struct(upd); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return nil, fmt.Errorf("%w: %s failed %s", ErrInvalidUpdate, fieldErrs[0].Field(), fieldErrs[0].Tag())
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}
	return s.repo.UpdateSelf(ctx, authUserID, upd)
}
