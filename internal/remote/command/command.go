package command

import (
	"fmt"
	"math"
	"strings"
)

// Direction is the single-letter code the motor controller understands.
type Direction string

const (
	Forward Direction = "F"
	Back    Direction = "B"
	Left    Direction = "L"
	Right   Direction = "R"
	Stop    Direction = "S"
)

// Speed limits accepted by the motor controller.
const (
	MinSpeed     = 200
	MaxSpeed     = 1023
	DefaultSpeed = 400
)

// IsMovement reports whether d is one of the four pressable directions.
func (d Direction) IsMovement() bool {
	switch d {
	case Forward, Back, Left, Right:
		return true
	}
	return false
}

// ParseDirection accepts a direction code or its name, case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f", "forward":
		return Forward, nil
	case "b", "back", "backward":
		return Back, nil
	case "l", "left":
		return Left, nil
	case "r", "right":
		return Right, nil
	case "s", "stop":
		return Stop, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// ClampSpeed rounds v to the nearest integer and clamps it to
// [MinSpeed, MaxSpeed].
func ClampSpeed(v float64) int {
	if math.IsNaN(v) {
		return MinSpeed
	}
	r := math.Round(v)
	if r < MinSpeed {
		return MinSpeed
	}
	if r > MaxSpeed {
		return MaxSpeed
	}
	return int(r)
}
