package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/misperer/internal/domain"
)

func TestPrintResult(t *testing.T) {
	tests := []struct {
		name    string
		result  domain.Result
		want    string
		wantErr bool
	}{
		{name: "JSON block is indented", result: domain.TextResult(`{"a":1}`), want: "{\n  \"a\": 1\n}\n"},
		{name: "Plain text block", result: domain.TextResult("Event 7 deleted"), want: "Event 7 deleted\n"},
		{name: "Error result", result: domain.ErrorResult("Error calling x: boom"), want: "Error calling x: boom\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := printResult(&buf, tt.result)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestRun_Usage(t *testing.T) {
	var buf bytes.Buffer
	err := run(nil, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage")
}
