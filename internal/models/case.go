package models

import (
	"fmt"
	"strings"
)

// Track selects which modality is the primary input of a run
type Track string

const (
	TrackMR Track = "mr"
	TrackCT Track = "ct"
)

// ParseTrack accepts "mr" or "ct" in any case
func ParseTrack(s string) (Track, error) {
	switch t := Track(strings.ToLower(strings.TrimSpace(s))); t {
	case TrackMR, TrackCT:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q is not a valid track, must be either 'mr' or 'ct'", ErrInvalidConfig, s)
}

// Other returns the secondary modality
func (t Track) Other() Track {
	if t == TrackMR {
		return TrackCT
	}
	return TrackMR
}

// Task selects the output contract of a run
type Task string

const (
	TaskBinarySegmentation     Task = "bin_seg"
	TaskMulticlassSegmentation Task = "mul_seg"
	TaskDetection              Task = "box"
	TaskEdgeClassification     Task = "edg"
)

// ParseTask accepts one of bin_seg, mul_seg, box or edg
func ParseTask(s string) (Task, error) {
	switch t := Task(strings.ToLower(strings.TrimSpace(s))); t {
	case TaskBinarySegmentation, TaskMulticlassSegmentation, TaskDetection, TaskEdgeClassification:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q is not a valid task, must be one of 'bin_seg', 'mul_seg', 'box' or 'edg'",
		ErrInvalidConfig, s)
}

// Case is one subject's paired CT and MR acquisition.
// Hashes are recorded while pairing and re-checked when the case is loaded.
type Case struct {
	PathCT string
	PathMR string
	HashCT string
	HashMR string
}

// Path returns the file of the given modality
func (c Case) Path(t Track) string {
	if t == TrackCT {
		return c.PathCT
	}
	return c.PathMR
}
