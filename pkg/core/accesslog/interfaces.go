//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package accesslog provides interfaces and implementations for audit logging
// of authorization decisions.
//
// Every call to SetAuthMetadata produces one [DecisionRecord]: the file that
// was decided, the resulting visibility and public date, the observers given
// access, and the reason trail that led there. Operators use the records to
// review files left at Unknown and to explain why a file became public.
//
// # Built-in Implementations
//
//   - [NewStdoutFactory]: writes JSON records to stdout (default)
//   - [NewIoWriterFactory]: writes JSON records to any io.Writer
//   - [NewNullFactory]: discards all records
//
// # Custom Implementations
//
//  1. Implement the [Factory] interface to create stream instances
//  2. Implement the [Stream] interface to handle record delivery
//  3. Use [options.WithAccessLog] when creating the engine
package accesslog

import (
	"time"

	"github.com/manetu/archiveauth/pkg/core/types"
)

// DecisionRecord is the audit record of one authorization decision.
type DecisionRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	Filename       string `json:"filename"`
	Instrument     string `json:"instrument,omitempty"`
	Telescope      string `json:"telescope,omitempty"`
	ObservingNight string `json:"observing_night,omitempty"`

	Visibility types.Visibility `json:"visibility"`
	// Rule is the tag of the rule that decided the visibility.
	Rule       string    `json:"rule"`
	PublicDate time.Time `json:"public_date"`
	OwnerIDs   []int     `json:"owner_ids"`
	CoverIDs   []string  `json:"cover_ids,omitempty"`
	Reasons    []string  `json:"reasons"`

	Duration time.Duration `json:"duration_ns"`
	// Env carries the audit.env metadata of the process that decided.
	Env map[string]string `json:"env,omitempty"`
	// Input is a copy of the file metadata as it was passed in.
	Input *types.FileMetadata `json:"input,omitempty"`
}

// Factory creates access log [Stream] instances.
//
// Early initialization (Viper defaults) belongs in factory construction; late
// initialization (opening files or connections) belongs in NewStream, which
// runs after configuration has been loaded.
type Factory interface {
	NewStream() (Stream, error)
}

// Stream sends decision records to an audit destination.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Stream interface {
	// Send delivers a record. The engine logs send errors but does not retry.
	Send(record *DecisionRecord) error

	// Close flushes and releases the stream.
	Close()
}
