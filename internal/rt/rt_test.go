package rt_test

import (
	"runtime"
	"testing"

	"github.com/Alia5/psxpad/internal/rt"
	"github.com/stretchr/testify/assert"
)

func TestApplyValidation(t *testing.T) {
	type testCase struct {
		name        string
		cfg         rt.Config
		expectedErr error
	}

	testCases := []testCase{
		{
			name: "nothing requested",
			cfg:  rt.Config{CPU: -1},
		},
		{
			name:        "cpu out of range",
			cfg:         rt.Config{CPU: runtime.NumCPU()},
			expectedErr: rt.ErrBadCPU,
		},
		{
			name:        "priority too high",
			cfg:         rt.Config{CPU: -1, Priority: 100},
			expectedErr: rt.ErrBadPriority,
		},
		{
			name:        "negative priority",
			cfg:         rt.Config{CPU: -1, Priority: -1, LockMemory: true},
			expectedErr: rt.ErrBadPriority,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := rt.Apply(tc.cfg)
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestEnabled(t *testing.T) {
	assert.False(t, rt.Config{CPU: -1}.Enabled())
	assert.True(t, rt.Config{CPU: 0}.Enabled())
	assert.True(t, rt.Config{CPU: -1, Priority: 10}.Enabled())
	assert.True(t, rt.Config{CPU: -1, LockMemory: true}.Enabled())
}
