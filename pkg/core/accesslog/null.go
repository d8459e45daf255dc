//
//  Copyright © Manetu Inc. All rights reserved.
//

package accesslog

// NullFactory is a factory for NullStream.
type NullFactory struct {
}

// NullStream drops every record. Useful for disabling the access log, such as in tests.
type NullStream struct {
}

// NewNullFactory creates a factory for [NullStream].
func NewNullFactory() Factory {
	return &NullFactory{}
}

// NewStream creates a new NullStream to satisfy the Factory interface.
func (f *NullFactory) NewStream() (Stream, error) {
	return &NullStream{}, nil
}

// Send drops the record on the floor
func (s *NullStream) Send(record *DecisionRecord) error {
	return nil
}

// Close is a no-op for NullStream
func (s *NullStream) Close() {}
