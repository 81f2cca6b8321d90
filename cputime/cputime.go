// Package cputime provides the CPU-clock sources used to measure the CPU
// consumed during a transaction. Two sources exist: the process-wide clock
// read through gopsutil, and an alternate clock read from the Go runtime's
// own accounting for environments where process inspection is unavailable.
package cputime

import (
	"errors"
	"os"
	"runtime/metrics"
	"time"

	"github.com/shirou/gopsutil/process"
)

// A Source reads an absolute CPU-time value. Consumers take one reading at
// transaction start and one at the end and report the difference.
type Source interface {
	// Reading returns the CPU time consumed so far.
	Reading() (time.Duration, error)
}

// ProcessSource reads user plus system CPU time of the host process.
type ProcessSource struct {
	proc *process.Process
}

// NewProcessSource creates a ProcessSource for the current process.
func NewProcessSource() (*ProcessSource, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	return &ProcessSource{proc: proc}, nil
}

// Reading returns the process's accumulated user plus system CPU time.
func (s *ProcessSource) Reading() (time.Duration, error) {
	times, err := s.proc.Times()
	if err != nil {
		return 0, err
	}

	seconds := times.User + times.System

	return time.Duration(seconds * float64(time.Second)), nil
}

const runtimeCPUMetric = "/cpu/classes/total:cpu-seconds"

// RuntimeSource reads the Go runtime's own CPU accounting. Its readings
// are coarser than the process clock but always available.
type RuntimeSource struct{}

// NewRuntimeSource creates a RuntimeSource.
func NewRuntimeSource() *RuntimeSource {
	return &RuntimeSource{}
}

// Reading returns the runtime's accumulated CPU time.
func (s *RuntimeSource) Reading() (time.Duration, error) {
	sample := []metrics.Sample{{Name: runtimeCPUMetric}}
	metrics.Read(sample)

	if sample[0].Value.Kind() != metrics.KindFloat64 {
		return 0, errors.New("runtime CPU metric unavailable")
	}

	seconds := sample[0].Value.Float64()

	return time.Duration(seconds * float64(time.Second)), nil
}

// Detect picks the process clock when the host process can be inspected,
// falling back to the runtime clock.
func Detect() Source {
	src, err := NewProcessSource()
	if err != nil {
		return NewRuntimeSource()
	}

	if _, err := src.Reading(); err != nil {
		return NewRuntimeSource()
	}

	return src
}
