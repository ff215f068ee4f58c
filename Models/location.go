package Models

import "fmt"

type LocationType string

const (
	LocationTechnician    LocationType = "technician"
	LocationServiceCenter LocationType = "service_center"
	LocationBranch        LocationType = "branch"
)

// Tier orders location types from the field upwards. Stock requests flow to a
// higher tier, returns flow to a higher tier, never sideways or down.
func (t LocationType) Tier() int {
	switch t {
	case LocationTechnician:
		return 1
	case LocationServiceCenter:
		return 2
	case LocationBranch:
		return 3
	}
	return 0
}

func (t LocationType) Valid() bool {
	return t.Tier() > 0
}

// Location identifies one stock-holding place: a technician's van, a service
// center store or a branch/plant warehouse.
type Location struct {
	Type LocationType `json:"type" validate:"required,oneof=technician service_center branch"`
	ID   uint         `json:"id" validate:"required"`
}

func (l Location) Valid() bool {
	return l.Type.Valid() && l.ID != 0
}

func (l Location) String() string {
	return fmt.Sprintf("%s#%d", l.Type, l.ID)
}

// Condition is one of the two quantity buckets kept per spare and location.
type Condition string

const (
	ConditionGood      Condition = "good"
	ConditionDefective Condition = "defective"
)

func (c Condition) Valid() bool {
	return c == ConditionGood || c == ConditionDefective
}
