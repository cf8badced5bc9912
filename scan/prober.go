package scan

import (
	"context"
	"fmt"
)

// Prober discovers the devices answering for a target, which may be a single
// address, a hostname or a CIDR range.
type Prober interface {
	Probe(ctx context.Context, target string) ([]Device, error)
}

// ProbeError is returned when discovery for a target fails.
type ProbeError struct {
	Target string
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %s", e.Target, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}
