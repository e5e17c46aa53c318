package filestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/chaisthra/vibetrack/internal/model"
)

var _ model.PartitionStore = (*PartitionRepository)(nil)

// PartitionRepository keeps each user's partition in its own directory.
type PartitionRepository struct {
	db *Connection
}

func NewPartitionRepository(db *Connection) *PartitionRepository {
	return &PartitionRepository{db: db}
}

// Load returns the partition owned by userID, or an empty one if the user
// has never written anything.
func (r *PartitionRepository) Load(_ context.Context, userID string) (model.Partition, error) {
	var p model.Partition
	err := r.db.Files.ReadJSON(r.db.partitionPath(userID), &p)
	if errors.Is(err, model.ErrNotFound) {
		return model.NewPartition(userID), nil
	}
	if err != nil {
		return model.Partition{}, fmt.Errorf("failed to load partition: %w", err)
	}

	// The document owner must match the directory it was read from.
	if p.Owner != userID {
		return model.Partition{}, fmt.Errorf("%w: partition owner mismatch", model.ErrStorage)
	}
	if p.Categories == nil {
		p.Categories = map[string]int{}
	}
	if p.Activities == nil {
		p.Activities = []model.Activity{}
	}
	if p.Conversations == nil {
		p.Conversations = []model.Conversation{}
	}
	return p, nil
}

// Save replaces the partition of partition.Owner.
func (r *PartitionRepository) Save(ctx context.Context, partition model.Partition) error {
	if partition.Owner == "" {
		return fmt.Errorf("%w: partition has no owner", model.ErrValidation)
	}
	if err := r.db.Files.WriteJSON(ctx, r.db.partitionPath(partition.Owner), partition); err != nil {
		return fmt.Errorf("failed to save partition: %w", err)
	}
	return nil
}
