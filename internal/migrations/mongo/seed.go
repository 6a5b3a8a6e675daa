package mongo

import (
	"context"
	"fmt"

	"laundry/pkg/logger"
	"laundry/pkg/model"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// MachineSeeder is the part of the machine repository seeding needs.
type MachineSeeder interface {
	Count(ctx context.Context) (int64, error)
	InsertMany(ctx context.Context, machines []*model.Machine) error
}

// DefaultMachines is the building's initial equipment: two washers and two dryers.
func DefaultMachines() []*model.Machine {
	defs := []struct{ name, kind string }{
		{"Washer 1", model.MachineTypeWasher},
		{"Washer 2", model.MachineTypeWasher},
		{"Dryer A", model.MachineTypeDryer},
		{"Dryer B", model.MachineTypeDryer},
	}

	machines := make([]*model.Machine, 0, len(defs))
	for _, d := range defs {
		machines = append(machines, &model.Machine{
			ID:     uuid.NewString(),
			Name:   d.name,
			Type:   d.kind,
			Status: model.MachineStatusActive,
		})
	}
	return machines
}

// SeedMachines inserts machines when the collection is empty. It reports how many
// machines were inserted.
func SeedMachines(ctx context.Context, repo MachineSeeder, machines []*model.Machine, log *logger.Logger) (int, error) {
	count, err := repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count machines: %w", err)
	}
	if count > 0 {
		log.Info("Machines already present, skipping seed", "count", count)
		return 0, nil
	}

	v := validator.New()
	for _, m := range machines {
		m.Type = model.NormalizeMachineEnum(m.Type)
		m.Status = model.NormalizeMachineEnum(m.Status)
		if err := v.Struct(m); err != nil {
			return 0, fmt.Errorf("invalid seed machine %q: %w", m.Name, err)
		}
	}

	if err := repo.InsertMany(ctx, machines); err != nil {
		return 0, err
	}
	log.Info("Seeded machines", "count", len(machines))
	return len(machines), nil
}
