package aggregator

import (
	"fmt"
	"strings"
)

// Policy selects the release discipline of an aggregator instance.
type Policy int

const (
	// PolicyAutonomous releases on a fixed timer and whenever the buffer
	// fills up, handing batches to a downstream forwarder.
	PolicyAutonomous Policy = iota
	// PolicyInteractive releases only when a caller asks for the events.
	PolicyInteractive
)

func (p Policy) String() string {
	switch p {
	case PolicyAutonomous:
		return "autonomous"
	case PolicyInteractive:
		return "interactive"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy maps a mode name to its policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "autonomous", "auto":
		return PolicyAutonomous, nil
	case "interactive":
		return PolicyInteractive, nil
	}
	return 0, fmt.Errorf("unsupported mode %q", s)
}
