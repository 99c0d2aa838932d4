package beacon

import "github.com/xraph/beacon/internal/entity"

// Entity is the base type embedded by all Beacon records.
type Entity = entity.Entity

// NewEntity returns an Entity with both timestamps set to the current UTC time.
func NewEntity() Entity {
	return entity.New()
}
