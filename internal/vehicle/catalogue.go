// Package vehicle moves road and waterway users along their paths. Movement is
// planned for every vehicle against a frozen view of the world and only then
// committed, so the outcome of a tick does not depend on iteration order.
package vehicle

import (
	"fmt"

	"github.com/ukydev/bridge-traffic-sim/internal/models"
)

// Spec holds the fixed dimensions and cruising speed of a vehicle kind.
// Length runs along the heading, Width across it. Speed is in units per second.
type Spec struct {
	Kind               models.VehicleKind
	Length             float64
	Width              float64
	Speed              float64
	CollisionFreeZones bool
}

var catalogue = map[models.VehicleKind]Spec{
	models.KindCar:        {Kind: models.KindCar, Length: 22, Width: 10, Speed: 60},
	models.KindBus:        {Kind: models.KindBus, Length: 22, Width: 10, Speed: 60},
	models.KindBoat:       {Kind: models.KindBoat, Length: 36, Width: 20, Speed: 20},
	models.KindBike:       {Kind: models.KindBike, Length: 20, Width: 6, Speed: 20, CollisionFreeZones: true},
	models.KindPedestrian: {Kind: models.KindPedestrian, Length: 4, Width: 4, Speed: 10, CollisionFreeZones: true},
	models.KindEmergency:  {Kind: models.KindEmergency, Length: 22, Width: 10, Speed: 100},
}

// SpecFor looks up the catalogue entry of a kind.
func SpecFor(kind models.VehicleKind) (Spec, error) {
	s, ok := catalogue[kind]
	if !ok {
		return Spec{}, fmt.Errorf("vehicle spec: %w: %q", models.ErrUnknownVehicleKind, kind)
	}
	return s, nil
}
