package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoder_Decode(t *testing.T) {
	decoder := NewDecoder()

	testCases := []struct {
		description string
		envelope    *Envelope
		expect      Action
	}{
		{
			description: "run with args",
			envelope:    &Envelope{Action: "run", Args: map[string]interface{}{"command": "ls -la", "blocking": true, "timeout": 5}},
			expect:      CmdRun{Command: "ls -la", Blocking: true, TimeoutSec: 5},
		},
		{
			description: "input marked run",
			envelope:    &Envelope{Action: "run", Args: map[string]interface{}{"command": "C-c", "is_input": true}},
			expect:      CmdRun{Command: "C-c", IsInput: true},
		},
		{
			description: "run_ipython",
			envelope:    &Envelope{Action: "run_ipython", Args: map[string]interface{}{"code": "x = 1"}},
			expect:      RunCell{Code: "x = 1"},
		},
		{
			description: "read",
			envelope:    &Envelope{Action: "read", Args: map[string]interface{}{"path": "a.txt"}},
			expect:      FileRead{Path: "a.txt"},
		},
		{
			description: "write",
			envelope:    &Envelope{Action: "write", Args: map[string]interface{}{"path": "a.txt", "content": "hi"}},
			expect:      FileWrite{Path: "a.txt", Content: "hi"},
		},
		{
			description: "edit without args",
			envelope:    &Envelope{Action: "edit"},
			expect:      FileEdit{},
		},
	}
	for _, testCase := range testCases {
		actual, err := decoder.Decode(testCase.envelope)
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expect, actual, testCase.description)
		assert.Equal(t, testCase.expect.Kind(), actual.Kind(), testCase.description)
	}
}

func TestDecoder_DecodeErrors(t *testing.T) {
	decoder := NewDecoder()
	_, err := decoder.Decode(nil)
	assert.Error(t, err)
	_, err = decoder.Decode(&Envelope{Action: "unknown"})
	assert.Error(t, err)
}
