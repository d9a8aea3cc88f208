package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/urbanoasis/farmstand-backend/pkg/db/models"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
)

// Service resolves the station's stable device identity. The id is minted
// exactly once on first boot and never regenerated afterwards.
type Service interface {
	Ensure(ctx context.Context) (*models.Device, error)
}

type service struct {
	repo Repository
}

// NewService wires an identity service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("identity repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Ensure(ctx context.Context) (*models.Device, error) {
	device, err := s.repo.First(ctx)
	if err == nil {
		return device, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load device identity")
	}

	minted := &models.Device{ID: uuid.New()}
	if err := s.repo.Create(ctx, minted); err != nil {
		// Lost a first-boot race; the winner's row is authoritative.
		if existing, readErr := s.repo.First(ctx); readErr == nil {
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist device identity")
	}
	return minted, nil
}
