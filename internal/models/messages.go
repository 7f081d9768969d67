package models

// Topics exchanged with the traffic-light controller.
const (
	TopicLights          = "stoplichten"
	TopicLaneSensors     = "sensoren_rijbaan"
	TopicSpecialSensors  = "sensoren_speciaal"
	TopicBridgeSensors   = "sensoren_bruggen"
	TopicPriorityVehicle = "voorrangsvoertuig"
	TopicTime            = "tijd"
)

// Reserved keys in the light command payload.
const (
	BridgeKey         = "81.1"
	BridgeApproachKey = "41.1"
)

// LightCommand is the inbound payload: "{direction}.{light}" to colour token.
type LightCommand map[string]string

// LaneSensorState is the occupancy of the two sensors in front of a light.
type LaneSensorState struct {
	Front bool `json:"voor" bson:"front"`
	Back  bool `json:"achter" bson:"back"`
}

// LaneSensorUpdate maps "{direction}.{light}" to its sensor occupancy.
type LaneSensorUpdate map[string]LaneSensorState

// SpecialSensorUpdate maps a named detection area to its occupancy.
type SpecialSensorUpdate map[string]bool

// BridgeSensorState wraps a bridge state the way the controller expects it.
type BridgeSensorState struct {
	State BridgeState `json:"state" bson:"state"`
}

// BridgeSensorUpdate is keyed by the bridge id.
type BridgeSensorUpdate map[string]BridgeSensorState

// PriorityRequest is one pending bus or emergency vehicle in the queue.
type PriorityRequest struct {
	Lane           string `json:"baan" bson:"lane"`
	SimulationTime int64  `json:"simulatie_tijd_ms" bson:"simulation_time_ms"`
	Priority       int    `json:"prioriteit" bson:"priority"`
}

// Heartbeat carries the simulation clock.
type Heartbeat struct {
	SimulationTime int64 `json:"simulatie_tijd_ms" bson:"simulation_time_ms"`
}
