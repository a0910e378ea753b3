// Package noop provides a stats impl that does nothing.
package noop

import (
	"context"

	"poolwatch/internal/stats"
)

// Stats is a stats implementation that does nothing.
type Stats struct{}

var _ stats.Stats = Stats{}

func (Stats) Command(_ string)                 {}
func (Stats) Callback(_ string)                {}
func (Stats) Search()                          {}
func (Stats) RefreshRun()                      {}
func (Stats) RefreshError(_ string)            {}
func (Stats) PoolsFetched(_ string, _ int)     {}
func (Stats) Start() error                     { return nil }
func (Stats) Close() error                     { return nil }
func (Stats) Shutdown(_ context.Context) error { return nil }
