package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownVehicleKind is returned for vehicle type keys outside the catalogue.
var ErrUnknownVehicleKind = errors.New("unknown vehicle kind")

// VehicleKind identifies the class of a road or waterway user.
type VehicleKind string

const (
	KindCar        VehicleKind = "car"
	KindBus        VehicleKind = "bus"
	KindBoat       VehicleKind = "boat"
	KindBike       VehicleKind = "bike"
	KindPedestrian VehicleKind = "pedestrian"
	KindEmergency  VehicleKind = "emergency"
)

// AllKinds lists every supported kind.
var AllKinds = []VehicleKind{KindCar, KindBus, KindBoat, KindBike, KindPedestrian, KindEmergency}

// ParseVehicleKind maps a configuration key to a kind. "emergency_vehicle" is
// accepted as an alias.
func ParseVehicleKind(s string) (VehicleKind, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "emergency_vehicle" {
		return KindEmergency, nil
	}
	for _, k := range AllKinds {
		if string(k) == key {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVehicleKind, s)
}

// IsPriority reports whether vehicles of this kind request priority at the
// intersection.
func (k VehicleKind) IsPriority() bool {
	return k == KindBus || k == KindEmergency
}

// Priority is the level sent to the controller: buses 2, everything else 1.
func (k VehicleKind) Priority() int {
	if k == KindBus {
		return 2
	}
	return 1
}
