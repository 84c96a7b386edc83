package dualshock2_test

import (
	"context"
	"testing"
	"time"

	"github.com/Alia5/psxpad/device/dualshock2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegisters(t *testing.T) {
	r := dualshock2.DefaultRegisters()

	assert.Equal(t, dualshock2.ModeDigital, r.ControlMode)
	assert.Equal(t, dualshock2.ModeDigital, r.ConfigMode)
	assert.Equal(t, dualshock2.ModeNone, r.ModeRequest)
	assert.False(t, r.ModeLock)
	assert.Equal(t, [2]uint8{0xFF, 0xFF}, r.Buttons)
	assert.Equal(t, [4]uint8{0x80, 0x80, 0x80, 0x80}, r.Sticks)
	assert.Equal(t, [12]uint8{}, r.Pressure)
	assert.Equal(t, [2]uint8{}, r.Motors)
	assert.Equal(t, [6]uint8{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, r.MotorMap)
	assert.Equal(t, [2]uint8{0xFF, 0xFF}, r.ResponseMask)
	assert.False(t, r.Active)
	assert.False(t, r.Connected)
}

func TestResetKeepsConnection(t *testing.T) {
	r := dualshock2.DefaultRegisters()
	r.Connected = true
	r.Active = true
	r.ControlMode = dualshock2.ModeAnalog
	r.Motors = [2]uint8{1, 2}

	r.Reset()
	assert.True(t, r.Connected)
	assert.False(t, r.Active)
	assert.Equal(t, dualshock2.ModeDigital, r.ControlMode)
	assert.Equal(t, [2]uint8{}, r.Motors)

	r.Disconnect()
	assert.False(t, r.Connected)
}

func TestRejectsWithoutHostLink(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	d := newDevice(clock)

	out := transfer(d, 0x01, 0x42, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00)
	assert.Equal(t, []byte{0xFF}, out)
	assert.False(t, d.Registers().Active)
}

func TestRejectsOtherAddress(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	d := newDevice(clock)
	connect(d, clock.now)

	out := transfer(d, 0x81, 0x42, 0x00)
	assert.Equal(t, []byte{0xFF}, out)
	assert.False(t, d.Registers().Active)
}

func TestIgnoreLatchHoldsUntilDeselect(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	d := newDevice(clock)
	connect(d, clock.now)

	p := newScript(0x02, 0x01, 0x42, 0x00, 0x01, 0x42, 0x00)
	p.lenient = true
	d.Service(p)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, p.out)
	assert.Zero(t, p.acks)
	assert.False(t, d.Registers().Active)

	out := transfer(d, 0x01, 0x42, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00)
	assert.Equal(t, []byte{0xFF, 0x41, 0x5A, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00}, out)
}

func TestIgnoreLatchEndsWithAssertion(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	d := newDevice(clock)
	connect(d, clock.now)

	poll := []byte{0x01, 0x42, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	scripts := []*scriptPort{
		newScript(0x02, 0x42, 0x00, 0x00, 0x00),
		newScript(poll...),
		newScript(0x02, 0x42, 0x00, 0x00, 0x00),
		newScript(poll...),
	}
	d.Service(newBackToBack(scripts...))

	expected := [][]byte{
		{0xFF},
		{0xFF, 0x41, 0x5A, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00},
		{0xFF},
		{0xFF, 0x41, 0x5A, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00},
	}
	for i, s := range scripts {
		assert.Equal(t, expected[i], s.out, "assertion %d", i)
	}
	assert.True(t, d.Registers().Active)
}

func TestPoll(t *testing.T) {
	type testCase struct {
		name     string
		setup    [][]byte
		input    func(*dualshock2.InputState)
		cmd      []byte
		expected []byte
	}

	pressed := func(s *dualshock2.InputState) {
		s.Press(false, dualshock2.ButtonStart|dualshock2.ButtonL3)
		s.Press(true, dualshock2.ButtonCross)
		s.LX = 0x00
		s.RY = 0xFF
		s.Pressure[dualshock2.PressureCross] = 0xC0
	}

	cases := []testCase{
		{
			name:     "digital neutral",
			cmd:      []byte{0x01, 0x42, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			expected: []byte{0xFF, 0x41, 0x5A, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00},
		},
		{
			name:     "digital reports stick clicks released",
			input:    pressed,
			cmd:      []byte{0x01, 0x42, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			expected: []byte{0xFF, 0x41, 0x5A, 0xF7, 0xBF, 0x00, 0x00, 0x00, 0x00},
		},
		{
			name:     "analog sticks",
			setup:    [][]byte{enterConfigCmd, analogLockCmd, exitConfigCmd},
			input:    pressed,
			cmd:      []byte{0x01, 0x42, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			expected: []byte{0xFF, 0x73, 0x5A, 0xF5, 0xBF, 0x80, 0xFF, 0x00, 0x80},
		},
		{
			name:  "analog pressure",
			setup: [][]byte{enterConfigCmd, analogLockCmd, pressureCmd, exitConfigCmd},
			input: pressed,
			cmd:   concat([]byte{0x01, 0x42, 0x00}, pad(18)),
			expected: concat(
				[]byte{0xFF, 0x79, 0x5A, 0xF5, 0xBF, 0x80, 0xFF, 0x00, 0x80},
				[]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xC0, 0x00, 0x00, 0x00, 0x00, 0x00},
			),
		},
		{
			name:     "config uses analog layout",
			setup:    [][]byte{enterConfigCmd},
			cmd:      []byte{0x01, 0x42, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			expected: []byte{0xFF, 0xF3, 0x5A, 0xFF, 0xFF, 0x80, 0x80, 0x80, 0x80},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Unix(0, 0)}
			d := newDevice(clock)
			in := dualshock2.NeutralInput()
			if tc.input != nil {
				tc.input(&in)
			}
			feed(d, clock.now, dualshock2.EncodeFrame(&in, dualshock2.TermNormal))
			for _, c := range tc.setup {
				transfer(d, c...)
			}

			assert.Equal(t, tc.expected, transfer(d, tc.cmd...))
			assert.True(t, d.Registers().Active)
		})
	}
}

func TestConfigCommands(t *testing.T) {
	type testCase struct {
		name     string
		setup    [][]byte
		cmd      []byte
		expected []byte
	}

	cases := []testCase{
		{
			name:     "init pressure",
			cmd:      []byte{0x01, 0x40, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			expected: []byte{0xFF, 0xF3, 0x5A, 0x00, 0x00, 0x02, 0x00, 0x00, 0x5A},
		},
		{
			name:     "available poll results digital",
			cmd:      []byte{0x01, 0x41, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			expected: []byte{0xFF, 0xF3, 0x5A, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		},
		{
			name:     "available poll results analog",
			setup:    [][]byte{analogLockCmd},
			cmd:      []byte{0x01, 0x41, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			expected: []byte{0xFF, 0xF3, 0x5A, 0xFF, 0xFF, 0x03, 0x00, 0x00, 0x5A},
		},
		{
			name:     "available poll results masked",
			setup:    [][]byte{analogLockCmd, {0x01, 0x4F, 0x00, 0x3F, 0x03, 0x00, 0x00, 0x00, 0x00}},
			cmd:      []byte{0x01, 0x41, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			expected: []byte{0xFF, 0xF3, 0x5A, 0x3F, 0x03, 0x03, 0x00, 0x00, 0x5A},
		},
		{
			name:     "ext status digital",
			cmd:      []byte{0x01, 0x45, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			expected: []byte{0xFF, 0xF3, 0x5A, 0x03, 0x02, 0x00, 0x02, 0x01, 0x00},
		},
		{
			name:     "ext status analog",
			setup:    [][]byte{analogLockCmd},
			cmd:      []byte{0x01, 0x45, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			expected: []byte{0xFF, 0xF3, 0x5A, 0x03, 0x02, 0x01, 0x02, 0x01, 0x00},
		},
		{
			name:     "const 1 index 0",
			cmd:      []byte{0x01, 0x46, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			expected: []byte{0xFF, 0xF3, 0x5A, 0x00, 0x00, 0x01, 0x02, 0x00, 0x0A},
		},
		{
			name:     "const 1 index 1",
			cmd:      []byte{0x01, 0x46, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00},
			expected: []byte{0xFF, 0xF3, 0x5A, 0x00, 0x00, 0x01, 0x01, 0x01, 0x14},
		},
		{
			name:     "const 2",
			cmd:      []byte{0x01, 0x47, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			expected: []byte{0xFF, 0xF3, 0x5A, 0x00, 0x00, 0x02, 0x00, 0x01, 0x00},
		},
		{
			name:     "const 3 index 0",
			cmd:      []byte{0x01, 0x4C, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			expected: []byte{0xFF, 0xF3, 0x5A, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00},
		},
		{
			name:     "const 3 index 1 ignores upper bits",
			cmd:      []byte{0x01, 0x4C, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x00, 0x00},
			expected: []byte{0xFF, 0xF3, 0x5A, 0x00, 0x00, 0x00, 0x07, 0x00, 0x00},
		},
		{
			name:     "set major mode",
			cmd:      analogLockCmd,
			expected: []byte{0xFF, 0xF3, 0x5A, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		},
		{
			name:     "set poll cmd format replies old map",
			setup:    [][]byte{motorMapCmd},
			cmd:      []byte{0x01, 0x4D, 0x00, 0x01, 0x00, 0xFF, 0xFF, 0xFF, 0xFF},
			expected: []byte{0xFF, 0xF3, 0x5A, 0x00, 0x01, 0xFF, 0xFF, 0xFF, 0xFF},
		},
		{
			name:     "set poll result format",
			cmd:      pressureCmd,
			expected: []byte{0xFF, 0xF3, 0x5A, 0x00, 0x00, 0x00, 0x00, 0x00, 0x5A},
		},
		{
			name:     "unsupported opcode aborts after padding",
			cmd:      []byte{0x01, 0x48, 0x00, 0x00, 0x00},
			expected: []byte{0xFF, 0xF3, 0x5A},
		},
		{
			name:     "bad prefix aborts",
			cmd:      []byte{0x01, 0x52, 0x00},
			expected: []byte{0xFF, 0xF3},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Unix(0, 0)}
			d := newDevice(clock)
			connect(d, clock.now)
			transfer(d, enterConfigCmd...)
			for _, c := range tc.setup {
				transfer(d, c...)
			}

			assert.Equal(t, tc.expected, transfer(d, tc.cmd...))
		})
	}
}

func TestNormalModeOnlyAcceptsPollAndEscape(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	d := newDevice(clock)
	connect(d, clock.now)

	for _, cmd := range []byte{0x40, 0x41, 0x44, 0x45, 0x46, 0x4D, 0x4F} {
		out := transfer(d, 0x01, cmd, 0x00, 0x00, 0x00)
		assert.Equal(t, []byte{0xFF, 0x41}, out, "command 0x%02x", cmd)
	}
	assert.Equal(t, dualshock2.DefaultRegisters().MotorMap, d.Registers().MotorMap)
}

func TestConsoleNegotiation(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	d := newDevice(clock)
	connect(d, clock.now)

	assert.Equal(t, []byte{0xFF, 0x41, 0x5A, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00}, transfer(d, enterConfigCmd...))
	r := d.Registers()
	assert.Equal(t, dualshock2.ModeConfig, r.ControlMode)
	assert.Equal(t, dualshock2.ModeDigital, r.ConfigMode)

	transfer(d, analogLockCmd...)
	r = d.Registers()
	assert.True(t, r.ModeLock)
	assert.Equal(t, dualshock2.ModeAnalog, r.ConfigMode)

	assert.Equal(t, []byte{0xFF, 0xF3, 0x5A, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, transfer(d, motorMapCmd...))
	assert.Equal(t, [6]uint8{0x00, 0x01, 0xFF, 0xFF, 0xFF, 0xFF}, d.Registers().MotorMap)

	transfer(d, pressureCmd...)
	assert.Equal(t, dualshock2.ModePressure, d.Registers().ConfigMode)

	assert.Equal(t, []byte{0xFF, 0xF3, 0x5A, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, transfer(d, exitConfigCmd...))
	assert.Equal(t, dualshock2.ModePressure, d.Registers().ControlMode)

	out := transfer(d, concat([]byte{0x01, 0x42, 0x00, 0x40, 0x80}, pad(16))...)
	require.Len(t, out, 21)
	assert.Equal(t, []byte{0xFF, 0x79, 0x5A}, out[:3])
	assert.Equal(t, [2]uint8{0x40, 0x80}, d.Registers().Motors)

	assert.Equal(t, []byte{0x5A, 0x40, 0x80, 0xAA}, connect(d, clock.now))
}

func TestEscapeDoesNotDriveMotors(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	d := newDevice(clock)
	connect(d, clock.now)
	transfer(d, enterConfigCmd...)
	transfer(d, motorMapCmd...)
	transfer(d, exitConfigCmd...)

	transfer(d, 0x01, 0x42, 0x00, 0x10, 0x20, 0x00, 0x00, 0x00, 0x00)
	assert.Equal(t, [2]uint8{0x10, 0x20}, d.Registers().Motors)

	transfer(d, 0x01, 0x43, 0x00, 0x00, 0x30, 0x00, 0x00, 0x00, 0x00)
	assert.Equal(t, [2]uint8{0x10, 0x20}, d.Registers().Motors)
	assert.Equal(t, dualshock2.ModeDigital, d.Registers().ControlMode)
}

func TestDigitalPollOnlyCarriesTwoParams(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	d := newDevice(clock)
	connect(d, clock.now)
	transfer(d, enterConfigCmd...)
	transfer(d, 0x01, 0x4D, 0x00, 0xFF, 0xFF, 0x00, 0x01, 0xFF, 0xFF)
	transfer(d, exitConfigCmd...)

	transfer(d, 0x01, 0x42, 0x00, 0x00, 0x00, 0x77, 0x77, 0x00, 0x00)
	assert.Equal(t, [2]uint8{0x00, 0x00}, d.Registers().Motors)
}

func TestAbortedBodyHasNoEffect(t *testing.T) {
	type testCase struct {
		name  string
		cmd   []byte
		check func(t *testing.T, r dualshock2.Registers)
	}

	cases := []testCase{
		{
			name: "set major mode",
			cmd:  analogLockCmd[:6],
			check: func(t *testing.T, r dualshock2.Registers) {
				assert.False(t, r.ModeLock)
				assert.Equal(t, dualshock2.ModeDigital, r.ConfigMode)
			},
		},
		{
			name: "set poll cmd format",
			cmd:  motorMapCmd[:7],
			check: func(t *testing.T, r dualshock2.Registers) {
				assert.Equal(t, dualshock2.DefaultRegisters().MotorMap, r.MotorMap)
			},
		},
		{
			name: "exit config",
			cmd:  exitConfigCmd[:5],
			check: func(t *testing.T, r dualshock2.Registers) {
				assert.Equal(t, dualshock2.ModeConfig, r.ControlMode)
			},
		},
		{
			name: "set poll result format",
			cmd:  []byte{0x01, 0x4F, 0x00, 0x00, 0x00, 0x00},
			check: func(t *testing.T, r dualshock2.Registers) {
				assert.Equal(t, [2]uint8{0xFF, 0xFF}, r.ResponseMask)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Unix(0, 0)}
			d := newDevice(clock)
			connect(d, clock.now)
			transfer(d, enterConfigCmd...)

			transfer(d, tc.cmd...)
			tc.check(t, d.Registers())
		})
	}
}

func TestAbortedPollKeepsMotors(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	d := newDevice(clock)
	connect(d, clock.now)
	transfer(d, enterConfigCmd...)
	transfer(d, motorMapCmd...)
	transfer(d, exitConfigCmd...)

	transfer(d, 0x01, 0x42, 0x00, 0x10, 0x20, 0x00)
	assert.Equal(t, [2]uint8{}, d.Registers().Motors)
}

func TestAcknowledgeCount(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	d := newDevice(clock)
	connect(d, clock.now)

	p := newScript(0x01, 0x42, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00)
	d.Service(p)
	assert.Equal(t, 8, p.acks)
	assert.False(t, p.Selected())
}

func TestRunPolledPortWaitsBetweenChecks(t *testing.T) {
	d := dualshock2.New(&dualshock2.Options{SelectPoll: time.Millisecond})
	p := &idlePort{}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := d.Run(ctx, p, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	checks := p.checks.Load()
	assert.Positive(t, checks)
	assert.Less(t, checks, int64(1000))
}
