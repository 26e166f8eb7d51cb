package repository

import (
	"context"

	"github.com/fieldrec/fieldstream/internal/domain/entity"
)

// RecordingRepository is the recording-registry collaborator. Lookups are
// tenant-scoped; a miss returns (nil, nil).
type RecordingRepository interface {
	// GetById returns the recording for the given tenant and id.
	GetById(ctx context.Context, tenantID, id string) (*entity.Recording, error)
	// Save writes the recording entry to the registry.
	Save(ctx context.Context, recording *entity.Recording) error
}
