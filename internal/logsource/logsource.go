// Package logsource provides the feed server's line inputs.
package logsource

import "github.com/sentryflow/livetail/internal/model"

// LogSource is a unified interface for all feed inputs (TCP, stdin).
type LogSource interface {
	Lines() <-chan model.IngestEnvelope // read-only channel of raw lines
	Stop()                              // graceful shutdown
	Name() string                       // source tag stamped on entries
}
