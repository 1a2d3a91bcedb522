package steamctl

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cvuchener/steamctl/protocol"
)

// recordingSink keeps the last asserted level per control and the
// accumulated relative motion. Session tests drive it from the report
// goroutine, so access is guarded.
type recordingSink struct {
	mu      sync.Mutex
	buttons map[Button]bool
	axes    map[Axis]int32
	rel     map[Axis]int32
	synced  int
	closed  bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		buttons: make(map[Button]bool),
		axes:    make(map[Axis]int32),
		rel:     make(map[Axis]int32),
	}
}

func (s *recordingSink) SetButton(b Button, pressed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buttons[b] = pressed
}

func (s *recordingSink) SetAxis(a Axis, value int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.axes[a] = value
}

func (s *recordingSink) MoveRel(a Axis, delta int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rel[a] += delta
}

func (s *recordingSink) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced++
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) axis(a Axis) (int32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.axes[a]
	return v, ok
}

func (s *recordingSink) button(b Button) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buttons[b]
}

func (s *recordingSink) syncCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synced
}

func (s *recordingSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func defaultProjection() projection {
	return projection{
		center: true,
		padY:   PadYInverted,
	}
}

func TestProjectButtons(t *testing.T) {
	assert := assert.New(t)

	sink := newRecordingSink()
	snap := protocol.Snapshot{
		Buttons: protocol.BtnA | protocol.BtnStart | protocol.BtnGripLeft,
	}

	err := defaultProjection().project(snap, sink)
	assert.NoError(err)
	assert.Equal(1, sink.synced)

	assert.True(sink.buttons[ButtonA])
	assert.True(sink.buttons[ButtonStart])
	assert.True(sink.buttons[ButtonGripLeft])
	assert.False(sink.buttons[ButtonB])
	assert.False(sink.buttons[ButtonMode])
}

func TestProjectStick(t *testing.T) {
	assert := assert.New(t)

	sink := newRecordingSink()
	snap := protocol.Snapshot{
		Buttons: protocol.BtnClickLeft,
		Left:    [2]int16{1200, -300},
	}

	err := defaultProjection().project(snap, sink)
	assert.NoError(err)

	// Without a left pad touch the click and position belong to the
	// stick.
	assert.True(sink.buttons[ButtonStick])
	assert.False(sink.buttons[ButtonThumbLeft])

	x, ok := sink.axis(AxisStickX)
	assert.True(ok)
	assert.Equal(int32(1200), x)

	y, ok := sink.axis(AxisStickY)
	assert.True(ok)
	assert.Equal(int32(300), y)
}

func TestProjectLeftPadTouch(t *testing.T) {
	assert := assert.New(t)

	sink := newRecordingSink()
	snap := protocol.Snapshot{
		Buttons: protocol.BtnTouchLeft | protocol.BtnClickLeft,
		Left:    [2]int16{-5000, 7000},
	}

	err := defaultProjection().project(snap, sink)
	assert.NoError(err)

	assert.True(sink.buttons[ButtonThumbLeft])
	assert.False(sink.buttons[ButtonStick])

	x, ok := sink.axis(AxisLeftPadX)
	assert.True(ok)
	assert.Equal(int32(-5000), x)

	y, ok := sink.axis(AxisLeftPadY)
	assert.True(ok)
	assert.Equal(int32(-7000), y)

	// The stick axes stay untouched while the pad is in use.
	_, ok = sink.axis(AxisStickX)
	assert.False(ok)
}

func TestProjectLeftPadCentering(t *testing.T) {
	assert := assert.New(t)

	// Touch ends and the shared position reads zero: with centering the
	// pad is returned to rest.
	sink := newRecordingSink()
	snap := protocol.Snapshot{}

	err := defaultProjection().project(snap, sink)
	assert.NoError(err)

	x, ok := sink.axis(AxisLeftPadX)
	assert.True(ok)
	assert.Zero(x)

	y, ok := sink.axis(AxisLeftPadY)
	assert.True(ok)
	assert.Zero(y)

	// Without centering the ambiguous zero state is left alone.
	sink = newRecordingSink()
	p := defaultProjection()
	p.center = false

	err = p.project(snap, sink)
	assert.NoError(err)

	_, ok = sink.axis(AxisLeftPadX)
	assert.False(ok)
}

func TestProjectRightPad(t *testing.T) {
	assert := assert.New(t)

	// Untouched, centering on: position is forwarded (it reads zero at
	// rest) and the click is ignored.
	sink := newRecordingSink()
	snap := protocol.Snapshot{
		Buttons: protocol.BtnClickRight,
		Right:   [2]int16{100, 200},
	}

	err := defaultProjection().project(snap, sink)
	assert.NoError(err)

	x, ok := sink.axis(AxisRightPadX)
	assert.True(ok)
	assert.Equal(int32(100), x)

	_, ok = sink.buttons[ButtonThumbRight]
	assert.False(ok)

	// Touched: position and click both forwarded.
	sink = newRecordingSink()
	snap.Buttons |= protocol.BtnTouchRight

	err = defaultProjection().project(snap, sink)
	assert.NoError(err)

	assert.True(sink.buttons[ButtonThumbRight])

	y, ok := sink.axis(AxisRightPadY)
	assert.True(ok)
	assert.Equal(int32(-200), y)

	// Untouched, centering off: the pad is not driven at all.
	sink = newRecordingSink()
	p := defaultProjection()
	p.center = false

	err = p.project(protocol.Snapshot{Right: [2]int16{100, 200}}, sink)
	assert.NoError(err)

	_, ok = sink.axis(AxisRightPadX)
	assert.False(ok)
}

func TestProjectPadYNatural(t *testing.T) {
	assert := assert.New(t)

	sink := newRecordingSink()
	snap := protocol.Snapshot{
		Buttons: protocol.BtnTouchLeft,
		Left:    [2]int16{0, 7000},
	}

	p := defaultProjection()
	p.padY = PadYNatural

	err := p.project(snap, sink)
	assert.NoError(err)

	y, ok := sink.axis(AxisLeftPadY)
	assert.True(ok)
	assert.Equal(int32(7000), y)
}

func TestProjectTriggers(t *testing.T) {
	assert := assert.New(t)

	sink := newRecordingSink()
	snap := protocol.Snapshot{
		Buttons:  protocol.BtnTriggerLeft,
		Triggers: [2]uint8{255, 17},
	}

	err := defaultProjection().project(snap, sink)
	assert.NoError(err)

	left, ok := sink.axis(AxisTriggerLeft)
	assert.True(ok)
	assert.Equal(int32(255), left)

	right, ok := sink.axis(AxisTriggerRight)
	assert.True(ok)
	assert.Equal(int32(17), right)

	assert.True(sink.buttons[ButtonTriggerLeft])
	assert.False(sink.buttons[ButtonTriggerRight])
}

func TestProjectSensorsRaw(t *testing.T) {
	assert := assert.New(t)

	sink := newRecordingSink()
	snap := protocol.Snapshot{
		Accel: [3]int16{100, -200, 300},
		Gyro:  [3]int16{-1, 2, -3},
	}

	p := defaultProjection()
	p.sensors = SensorsConfig{Enabled: true, Mode: SensorRaw}

	err := p.project(snap, sink)
	assert.NoError(err)

	z, ok := sink.axis(AxisAccelZ)
	assert.True(ok)
	assert.Equal(int32(300), z)

	gy, ok := sink.axis(AxisGyroY)
	assert.True(ok)
	assert.Equal(int32(2), gy)

	assert.Empty(sink.rel)
}

func TestProjectSensorsTilt(t *testing.T) {
	assert := assert.New(t)

	sink := newRecordingSink()
	snap := protocol.Snapshot{
		Accel: [3]int16{500, 0, 1000},
		Gyro:  [3]int16{-1, 2, -3},
	}

	p := defaultProjection()
	p.sensors = SensorsConfig{Enabled: true, Mode: SensorTilt}

	err := p.project(snap, sink)
	assert.NoError(err)

	tx, ok := sink.axis(AxisTiltX)
	assert.True(ok)
	assert.Equal(protocol.Tilt(1000, 500), tx)

	ty, ok := sink.axis(AxisTiltY)
	assert.True(ok)
	assert.Zero(ty)

	assert.Equal(int32(-1), sink.rel[AxisGyroX])
	assert.Equal(int32(2), sink.rel[AxisGyroY])
	assert.Equal(int32(-3), sink.rel[AxisGyroZ])

	// Absolute sensor axes are not driven in tilt mode.
	_, ok = sink.axis(AxisAccelX)
	assert.False(ok)
}

func TestProjectSensorsDisabled(t *testing.T) {
	assert := assert.New(t)

	sink := newRecordingSink()
	snap := protocol.Snapshot{
		Accel: [3]int16{100, 200, 300},
		Gyro:  [3]int16{1, 2, 3},
	}

	err := defaultProjection().project(snap, sink)
	assert.NoError(err)

	_, ok := sink.axis(AxisAccelX)
	assert.False(ok)
	assert.Empty(sink.rel)
}
