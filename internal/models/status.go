package models

import "fmt"

// StatusState is the overall system busy/attention indicator
type StatusState string

const (
	StatusIdle       StatusState = "idle"
	StatusListening  StatusState = "listening"
	StatusThinking   StatusState = "thinking"
	StatusProcessing StatusState = "processing"
	StatusSuccess    StatusState = "success"
	StatusWarning    StatusState = "warning"
	StatusError      StatusState = "error"
)

// SystemStatus is independent of any single component's phase
type SystemStatus struct {
	Status     StatusState `json:"status"`
	Message    string      `json:"message,omitempty"`
	Progress   *int        `json:"progress,omitempty"` // 0-100
	Step       *int        `json:"step,omitempty"`
	TotalSteps *int        `json:"total_steps,omitempty"`
}

// Validate checks the status value and progress bounds
func (s SystemStatus) Validate() error {
	switch s.Status {
	case StatusIdle, StatusListening, StatusThinking, StatusProcessing, StatusSuccess, StatusWarning, StatusError:
	default:
		return fmt.Errorf("unknown status %q", s.Status)
	}
	if s.Progress != nil && (*s.Progress < 0 || *s.Progress > 100) {
		return fmt.Errorf("progress %d out of range 0-100", *s.Progress)
	}
	if s.Step != nil && s.TotalSteps != nil && *s.Step > *s.TotalSteps {
		return fmt.Errorf("step %d exceeds total steps %d", *s.Step, *s.TotalSteps)
	}
	return nil
}
