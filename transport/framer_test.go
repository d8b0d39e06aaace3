package transport

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, input string) []string {
	t.Helper()
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Buffer(make([]byte, 64*1024), DefaultMaxEventSize)
	scanner.Split(splitEvents)

	var frames []string
	for scanner.Scan() {
		frames = append(frames, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return frames
}

func TestSplitEvents(t *testing.T) {
	const (
		evA = `<event uid="A" type="a-f-G"><point lat="1" lon="2" hae="0" ce="9999999" le="9999999"/></event>`
		evB = `<event uid="B" type="a-h-G"><point lat="3" lon="4" hae="0" ce="9999999" le="9999999"/></event>`
	)

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"single event", evA, []string{evA}},
		{"two packed events", evA + evB, []string{evA, evB}},
		{"whitespace between events", evA + "\r\n  " + evB, []string{evA, evB}},
		{"xml declaration stripped", `<?xml version="1.0"?>` + evA, []string{evA}},
		{"partial tail dropped", evA + `<event uid="C" type=`, []string{evA}},
		{"no complete event", `<event uid="C"><point`, nil},
		{"orphan close tag skipped", `junk</event>` + evB, []string{evB}},
		{"empty input", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scanAll(t, tt.input))
		})
	}
}

func TestSplitEvents_AcrossReads(t *testing.T) {
	// iotest-style one-byte reader forces the scanner to accumulate
	// the frame across many reads.
	const ev = `<event uid="A" type="a-f-G"><point lat="1" lon="2" hae="0" ce="9999999" le="9999999"/></event>`

	scanner := bufio.NewScanner(oneByteReader{strings.NewReader(ev)})
	scanner.Buffer(make([]byte, 64*1024), DefaultMaxEventSize)
	scanner.Split(splitEvents)

	require.True(t, scanner.Scan())
	assert.Equal(t, ev, scanner.Text())
	assert.False(t, scanner.Scan())
	require.NoError(t, scanner.Err())
}

type oneByteReader struct {
	r *strings.Reader
}

func (r oneByteReader) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}
	return r.r.Read(p)
}
