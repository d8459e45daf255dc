//
//  Copyright © Manetu Inc. All rights reserved.
//

package accesslog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/manetu/archiveauth/pkg/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *DecisionRecord {
	return &DecisionRecord{
		ID:             "0b6d1f1e-5d1c-4b5e-9c55-8d8a7c1e0f11",
		Timestamp:      time.Date(2012, 1, 19, 12, 0, 0, 0, time.UTC),
		Filename:       "2012-01/18/shane/r1234.fits",
		Instrument:     "Kast Red",
		Telescope:      "Shane",
		ObservingNight: "2012-01-18",
		Visibility:     types.VisibilityProprietary,
		Rule:           "3",
		PublicDate:     types.Date(2014, time.January, 18),
		OwnerIDs:       []int{35, 88},
		Reasons:        []string{"Rule 3: All observers from the night can access frame type: arc"},
	}
}

func TestIoWriterFactory(t *testing.T) {
	log := NewStdoutFactory()
	assert.NotNil(t, log)
	assert.IsType(t, &IoWriterFactory{}, log)
}

func TestIoWriterStream_Send(t *testing.T) {
	tests := []struct {
		name   string
		record *DecisionRecord
		want   map[string]interface{}
	}{
		{
			name:   "proprietary decision",
			record: sampleRecord(),
			want: map[string]interface{}{
				"filename":   "2012-01/18/shane/r1234.fits",
				"visibility": "Proprietary",
				"rule":       "3",
			},
		},
		{
			name:   "empty record",
			record: &DecisionRecord{},
			want: map[string]interface{}{
				"filename":   "",
				"visibility": "DEFAULT",
			},
		},
		{
			name: "unknown decision",
			record: &DecisionRecord{
				Filename:   "2012-01/18/AO/s1000.fits",
				Visibility: types.VisibilityUnknown,
				Rule:       "4z",
				OwnerIDs:   []int{types.UnknownUser},
			},
			want: map[string]interface{}{
				"visibility": "Unknown",
				"rule":       "4z",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			log := newStream(buf, AccessLogOptions{})

			require.NoError(t, log.Send(tt.record))

			var data map[string]interface{}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
			for k, v := range tt.want {
				assert.Equal(t, v, data[k], k)
			}
		})
	}
}

func TestIoWriterStream_Fields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newStream(buf, AccessLogOptions{})

	require.NoError(t, log.Send(sampleRecord()))

	output := buf.String()
	assert.Contains(t, output, `"owner_ids":[35,88]`)
	assert.Contains(t, output, `"public_date":"2014-01-18T00:00:00Z"`)
	assert.Contains(t, output, `"observing_night":"2012-01-18"`)
	assert.NotContains(t, output, `"cover_ids"`)
	assert.NotContains(t, output, `"input"`)
	assert.True(t, strings.HasSuffix(output, "\n"))
}

func TestIoWriterStream_MultipleWrites(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newStream(buf, AccessLogOptions{})

	for _, name := range []string{"a.fits", "b.fits", "c.fits"} {
		r := sampleRecord()
		r.Filename = "2012-01/18/shane/" + name
		require.NoError(t, log.Send(r))
	}

	output := buf.String()
	assert.Contains(t, output, "a.fits")
	assert.Contains(t, output, "c.fits")
	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestIoWriterStream_PrettyPrint(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newStream(buf, AccessLogOptions{PrettyPrint: true})

	require.NoError(t, log.Send(sampleRecord()))

	output := buf.String()
	assert.True(t, strings.Contains(output, "\n  "), "pretty print should contain indented newlines")

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	assert.Equal(t, "Proprietary", data["visibility"])
}

func TestIoWriterStream_CompactOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newStream(buf, AccessLogOptions{})

	require.NoError(t, log.Send(sampleRecord()))

	trimmed := strings.TrimSuffix(buf.String(), "\n")
	assert.False(t, strings.Contains(trimmed, "\n"), "compact output should be single line")
}

func TestIoWriterStream_Input(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newStream(buf, AccessLogOptions{})

	r := sampleRecord()
	r.Input = &types.FileMetadata{Filename: r.Filename, FrameType: types.FrameArc}
	require.NoError(t, log.Send(r))

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	input, ok := data["input"].(map[string]interface{})
	require.True(t, ok, "input should be an object, got %T", data["input"])
	assert.Equal(t, "arc", input["frame_type"])
}

func TestIoWriterStream_Close(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newStream(buf, AccessLogOptions{})

	assert.NotPanics(t, func() {
		log.Close()
	})

	// Close is a no-op, so the stream still works
	assert.NoError(t, log.Send(sampleRecord()))
}

func TestNewIoWriterFactoryWithOptions(t *testing.T) {
	buf := &bytes.Buffer{}
	factory := NewIoWriterFactoryWithOptions(buf, AccessLogOptions{PrettyPrint: true})

	ioFactory, ok := factory.(*IoWriterFactory)
	require.True(t, ok)
	assert.True(t, ioFactory.options.PrettyPrint)

	stream, err := factory.NewStream()
	require.NoError(t, err)
	require.NoError(t, stream.Send(sampleRecord()))
	assert.True(t, strings.Contains(buf.String(), "\n  "), "stream should inherit pretty print option")
}

func TestNullStream(t *testing.T) {
	factory := NewNullFactory()
	assert.IsType(t, &NullFactory{}, factory)

	stream, err := factory.NewStream()
	require.NoError(t, err)
	assert.IsType(t, &NullStream{}, stream)

	for i := 0; i < 100; i++ {
		assert.NoError(t, stream.Send(sampleRecord()))
	}
	assert.NoError(t, stream.Send(nil))

	assert.NotPanics(t, func() {
		stream.Close()
		stream.Close()
	})
}
