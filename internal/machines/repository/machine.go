package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	machineserrors "laundry/internal/machines/errors"
	"laundry/pkg/config"
	"laundry/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "Machines"

type MachineRepository interface {
	FindAll(ctx context.Context) ([]*model.Machine, error)
	FindByID(ctx context.Context, id string) (*model.Machine, error)
	InsertMany(ctx context.Context, machines []*model.Machine) error
	Count(ctx context.Context) (int64, error)
}

type mongoMachineRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoMachineRepository(cfg *config.Config) MachineRepository {
	return &mongoMachineRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CollectionName),
	}
}

func (r *mongoMachineRepository) FindAll(ctx context.Context) ([]*model.Machine, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{
		{Key: "type", Value: -1}, // washers before dryers
		{Key: "name", Value: 1},
	})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find machines: %w", err)
	}
	defer cursor.Close(ctx)

	machines := make([]*model.Machine, 0)
	if err := cursor.All(ctx, &machines); err != nil {
		return nil, fmt.Errorf("failed to decode machines: %w", err)
	}
	return machines, nil
}

func (r *mongoMachineRepository) FindByID(ctx context.Context, id string) (*model.Machine, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var machine model.Machine
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&machine)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, machineserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find machine: %w", err)
	}
	return &machine, nil
}

func (r *mongoMachineRepository) InsertMany(ctx context.Context, machines []*model.Machine) error {
	if len(machines) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	docs := make([]any, 0, len(machines))
	now := time.Now().UTC().Truncate(time.Millisecond)
	for _, m := range machines {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		docs = append(docs, m)
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert machines: %w", err)
	}
	return nil
}

func (r *mongoMachineRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count machines: %w", err)
	}
	return count, nil
}
