package stats

import "context"

// Stats provides an interface that different stats backends can implement
// to track bot usage.
type Stats interface {
	Start() error
	Shutdown(context.Context) error
	Command(name string)
	Callback(action string)
	Search()
	RefreshRun()
	RefreshError(source string)
	PoolsFetched(source string, count int)
	Close() error
}
