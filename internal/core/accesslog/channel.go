//
//  Copyright © Manetu Inc. All rights reserved.
//

package accesslog

import (
	"github.com/manetu/archiveauth/pkg/core/accesslog"
)

// ChannelFactory factory for ChannelStream
type ChannelFactory struct {
	ch chan *accesslog.DecisionRecord
}

// ChannelStream implements the Stream interface by writing decision records to a channel.
type ChannelStream struct {
	ch chan *accesslog.DecisionRecord
}

// NewChannelLogger creates a new Factory for logging decision records to a channel.
func NewChannelLogger(ch chan *accesslog.DecisionRecord) accesslog.Factory {
	return &ChannelFactory{ch: ch}
}

// NewStream creates a new Stream to satisfy the Factory interface.
func (f *ChannelFactory) NewStream() (accesslog.Stream, error) {
	return &ChannelStream{ch: f.ch}, nil
}

// Send hands the record to the channel reader.
func (s *ChannelStream) Send(m *accesslog.DecisionRecord) error {
	s.ch <- m

	return nil
}

// Close finalizes the access log by closing the underlying channel.
func (s *ChannelStream) Close() {
	if s.ch != nil {
		close(s.ch)
	}
}
