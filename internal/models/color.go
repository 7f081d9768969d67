package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidColor is returned for colour tokens the controller protocol does not define.
var ErrInvalidColor = errors.New("invalid light color")

// LightColor is the state of a traffic light.
type LightColor string

const (
	ColorRed    LightColor = "red"
	ColorOrange LightColor = "orange"
	ColorGreen  LightColor = "green"
)

// ParseColor accepts the English tokens and the controller's Dutch ones.
func ParseColor(s string) (LightColor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red", "rood":
		return ColorRed, nil
	case "orange", "oranje":
		return ColorOrange, nil
	case "green", "groen":
		return ColorGreen, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
}

// BridgeState is what the bridge deck sensor reports.
type BridgeState string

const (
	BridgeOpen          BridgeState = "open"
	BridgeClosed        BridgeState = "dicht"
	BridgeIndeterminate BridgeState = "onbekend"
)
