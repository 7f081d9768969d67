package models

// VehicleSnapshot is the state of one vehicle at the end of a tick.
type VehicleSnapshot struct {
	ID       int64       `json:"id"`
	Kind     VehicleKind `json:"kind"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
	Heading  float64     `json:"heading"`
	Lane     string      `json:"lane,omitempty"`
	Target   int         `json:"target"`
	Exiting  string      `json:"exiting,omitempty"`
	Finished bool        `json:"finished"`
}

// BridgeSnapshot describes the deck and its barriers.
type BridgeSnapshot struct {
	ID           string      `json:"id"`
	Height       float64     `json:"height"`
	Open         bool        `json:"open"`
	State        BridgeState `json:"state"`
	BarriersDown bool        `json:"barriers_down"`
}

// Snapshot is a read-only copy of the simulation published after every tick.
type Snapshot struct {
	Tick           uint64                `json:"tick"`
	SimulationTime int64                 `json:"simulation_time_ms"`
	Vehicles       []VehicleSnapshot     `json:"vehicles"`
	Lights         map[string]LightColor `json:"lights"`
	Bridge         *BridgeSnapshot       `json:"bridge,omitempty"`
	LaneSensors    LaneSensorUpdate      `json:"lane_sensors"`
	SpecialSensors SpecialSensorUpdate   `json:"special_sensors"`
	PriorityQueue  []PriorityRequest     `json:"priority_queue"`
}
