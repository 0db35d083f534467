// Package process checks the OS process table for the target application.
package process

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	gprocess "github.com/shirou/gopsutil/v4/process"
)

// Service defines the interface for process presence checks.
type Service interface {
	IsRunning(ctx context.Context, name string) (bool, error)
}

// Table wraps the process table for mocking. Names returns the executable
// name of every process that could be inspected.
type Table interface {
	Names(ctx context.Context) ([]string, error)
}

// DefaultTable reads the process table with gopsutil.
type DefaultTable struct{}

// Names returns the executable names of all running processes. Processes that
// vanish or deny access while being inspected are skipped.
func (t *DefaultTable) Names(ctx context.Context) ([]string, error) {
	procs, err := gprocess.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}

	names := make([]string, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		names = append(names, name)
	}

	return names, nil
}

// Impl implements the process Service interface.
type Impl struct {
	table  Table
	logger zerolog.Logger
}

// New creates a new process presence checker.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		table:  &DefaultTable{},
		logger: logger,
	}
}

// NewWithTable creates a new process presence checker with a custom table (for testing).
func NewWithTable(logger zerolog.Logger, table Table) *Impl {
	return &Impl{
		table:  table,
		logger: logger,
	}
}

// IsRunning reports whether a process with executable name exists. Names are
// compared case-insensitively and a path in name is reduced to its base.
func (s *Impl) IsRunning(ctx context.Context, name string) (bool, error) {
	want := filepath.Base(name)

	names, err := s.table.Names(ctx)
	if err != nil {
		return false, err
	}

	for _, n := range names {
		if strings.EqualFold(n, want) {
			s.logger.Trace().Str("process", want).Msg("process found")
			return true, nil
		}
	}

	s.logger.Trace().Str("process", want).Int("scanned", len(names)).Msg("process not found")
	return false, nil
}
