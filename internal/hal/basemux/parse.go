package basemux

import (
	"fmt"
	"strconv"
	"strings"
)

// Telemetry line prefixes emitted by the base firmware.
const (
	EventTypePose    = "pose"
	EventTypeBump    = "bump"
	EventTypeBattery = "battery"
	EventTypeScan    = "scan"
	EventTypeAck     = "ack"
	EventTypeUnknown = "unknown"
)

// ClassifyLine inspects a telemetry line and returns a simple event type
// token based on its prefix.
func ClassifyLine(line string) string {
	switch {
	case strings.HasPrefix(line, "P,"):
		return EventTypePose
	case strings.HasPrefix(line, "B,"):
		return EventTypeBump
	case strings.HasPrefix(line, "V,"):
		return EventTypeBattery
	case strings.HasPrefix(line, "S,"):
		return EventTypeScan
	case strings.HasPrefix(line, "A,"):
		return EventTypeAck
	default:
		return EventTypeUnknown
	}
}

// PoseEvent is a decoded "P,<x_m>,<y_m>,<theta_deg>" odometry line.
type PoseEvent struct {
	X        float64
	Y        float64
	ThetaDeg float64
}

// ParsePose decodes a pose telemetry line.
func ParsePose(line string) (PoseEvent, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 4 || fields[0] != "P" {
		return PoseEvent{}, fmt.Errorf("malformed pose line %q", line)
	}
	var vals [3]float64
	for i, f := range fields[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return PoseEvent{}, fmt.Errorf("pose field %d in %q: %w", i+1, line, err)
		}
		vals[i] = v
	}
	return PoseEvent{X: vals[0], Y: vals[1], ThetaDeg: vals[2]}, nil
}

// BumpEvent is a decoded "B,<0|1>" bumper line.
type BumpEvent struct {
	Pressed bool
}

// ParseBump decodes a bumper telemetry line.
func ParseBump(line string) (BumpEvent, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 2 || fields[0] != "B" {
		return BumpEvent{}, fmt.Errorf("malformed bump line %q", line)
	}
	switch strings.TrimSpace(fields[1]) {
	case "0":
		return BumpEvent{Pressed: false}, nil
	case "1":
		return BumpEvent{Pressed: true}, nil
	default:
		return BumpEvent{}, fmt.Errorf("bump value in %q must be 0 or 1", line)
	}
}

// ScanEvent is a decoded "S,<angle0_deg>,<increment_deg>,<r1>;<r2>;..."
// range scan line. Ranges are metres; a non-positive range means no return.
type ScanEvent struct {
	Angle0Deg    float64
	IncrementDeg float64
	RangesM      []float64
}

// ParseScan decodes a range-scan telemetry line.
func ParseScan(line string) (ScanEvent, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 4 || fields[0] != "S" {
		return ScanEvent{}, fmt.Errorf("malformed scan line %q", line)
	}
	angle0, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return ScanEvent{}, fmt.Errorf("scan angle0 in %q: %w", line, err)
	}
	inc, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return ScanEvent{}, fmt.Errorf("scan increment in %q: %w", line, err)
	}
	if inc <= 0 {
		return ScanEvent{}, fmt.Errorf("scan increment in %q must be positive", line)
	}
	parts := strings.Split(strings.TrimSpace(fields[3]), ";")
	ranges := make([]float64, 0, len(parts))
	for i, p := range parts {
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return ScanEvent{}, fmt.Errorf("scan range %d in %q: %w", i, line, err)
		}
		ranges = append(ranges, v)
	}
	if len(ranges) == 0 {
		return ScanEvent{}, fmt.Errorf("scan line %q has no ranges", line)
	}
	return ScanEvent{Angle0Deg: angle0, IncrementDeg: inc, RangesM: ranges}, nil
}
