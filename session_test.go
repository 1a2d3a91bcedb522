package steamctl

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cvuchener/steamctl/protocol"
)

// scriptDevice is an in-memory Device. Feature answers are scripted per
// command id; interrupt reports are pushed through a channel that the
// session pump drains.
type scriptDevice struct {
	mu         sync.Mutex
	descriptor []byte
	answers    map[byte][]byte
	sent       [][]byte
	lastCmd    byte

	reports chan []byte
	closed  bool
}

func newScriptDevice() *scriptDevice {
	return &scriptDevice{
		descriptor: protocol.RawReportDescriptor[:],
		answers:    make(map[byte][]byte),
		reports:    make(chan []byte, 8),
	}
}

func (d *scriptDevice) SendFeatureReport(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	frame := make([]byte, len(p))
	copy(frame, p)
	d.sent = append(d.sent, frame)
	d.lastCmd = p[1]

	return len(p), nil
}

func (d *scriptDevice) GetFeatureReport(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	answer := d.answers[d.lastCmd]

	for i := range p {
		p[i] = 0
	}
	p[1] = d.lastCmd
	p[2] = byte(len(answer))
	copy(p[3:], answer)

	return protocol.FeatureReportSize, nil
}

func (d *scriptDevice) ReportDescriptor() ([]byte, error) {
	return d.descriptor, nil
}

func (d *scriptDevice) Read(p []byte) (int, error) {
	report, ok := <-d.reports
	if !ok {
		return 0, io.EOF
	}
	return copy(p, report), nil
}

func (d *scriptDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.closed {
		d.closed = true
		close(d.reports)
	}

	return nil
}

func (d *scriptDevice) push(report []byte) {
	d.reports <- report
}

// frames returns the feature frames sent with the given command id.
func (d *scriptDevice) frames(cmd byte) [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	var frames [][]byte
	for _, frame := range d.sent {
		if frame[1] == cmd {
			frames = append(frames, frame)
		}
	}
	return frames
}

func (d *scriptDevice) scriptSerial(serial string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.answers[protocol.CmdGetSerial] = append([]byte{1}, serial...)
}

func inputReport() []byte {
	report := make([]byte, protocol.InputReportSize)
	report[2] = protocol.TypeInput
	report[3] = protocol.InputBodyLength
	return report
}

func connectionReport(ev protocol.ConnectionEvent) []byte {
	report := make([]byte, protocol.InputReportSize)
	report[2] = protocol.TypeConnection
	report[3] = protocol.ConnectionBodyLength
	report[4] = byte(ev)
	return report
}

// capturingFactory hands out recording sinks and remembers them along
// with the device descriptions they were created from.
type capturingFactory struct {
	mu    sync.Mutex
	sinks []*recordingSink
	infos []SinkInfo
}

func (f *capturingFactory) factory(info SinkInfo) (Sink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sink := newRecordingSink()
	f.sinks = append(f.sinks, sink)
	f.infos = append(f.infos, info)

	return sink, nil
}

func (f *capturingFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sinks)
}

func (f *capturingFactory) last() *recordingSink {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.sinks) == 0 {
		return nil
	}
	return f.sinks[len(f.sinks)-1]
}

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func TestSessionWiredSetup(t *testing.T) {
	assert := assert.New(t)

	dev := newScriptDevice()
	dev.scriptSerial("MMNK1234")

	factory := &capturingFactory{}

	s := newSession("usb-1", dev, KindWired, true, DefaultConfig(), factory.factory)
	defer s.Close()

	assert.True(s.Connected())

	assert.Eventually(func() bool {
		return factory.count() == 1
	}, waitFor, tick)

	assert.Equal("MMNK1234", s.Serial())

	info := factory.infos[0]
	assert.Equal("MMNK1234", info.Serial)
	assert.Equal(uint16(VendorValve), info.Vendor)
	assert.Equal(uint16(ProductWired), info.Product)

	// Setup pushed the settings blob and disabled the auto buttons.
	settings := dev.frames(protocol.CmdSettings)
	if assert.Len(settings, 1) {
		payload := settings[0][3 : 3+settings[0][2]]
		assert.Equal(protocol.SettingsPayload(
			protocol.Setting{Key: protocol.SettingAutomouse, Value: protocol.AutomouseOff},
			protocol.Setting{Key: protocol.SettingOrientation, Value: protocol.OrientationDisabled},
		), payload)
	}

	assert.Len(dev.frames(protocol.CmdDisableAutoButtons), 1)
	assert.Empty(dev.frames(protocol.CmdEnableAutoButtons))

	// A zero input event reaches the sink as one synced batch with the
	// pads and stick at rest.
	dev.push(inputReport())

	assert.Eventually(func() bool {
		return factory.last().syncCount() > 0
	}, waitFor, tick)

	sink := factory.last()

	x, ok := sink.axis(AxisStickX)
	assert.True(ok)
	assert.Zero(x)

	assert.False(sink.button(ButtonA))
}

func TestSessionReceiverConnect(t *testing.T) {
	assert := assert.New(t)

	dev := newScriptDevice()
	dev.scriptSerial("MMNK5678")

	factory := &capturingFactory{}

	s := newSession("usb-2", dev, KindReceiver, true, DefaultConfig(), factory.factory)
	defer s.Close()

	// The receiver is asked for its connection state; nothing else
	// happens until it answers with a connection event.
	assert.False(s.Connected())

	assert.Eventually(func() bool {
		return len(dev.frames(protocol.CmdGetConnectionState)) == 1
	}, waitFor, tick)

	assert.Zero(factory.count())

	dev.push(connectionReport(protocol.ConnectionConnected))

	assert.Eventually(func() bool {
		return factory.count() == 1
	}, waitFor, tick)

	assert.True(s.Connected())
	assert.Equal("MMNK5678", s.Serial())
	assert.Equal(uint16(ProductReceiver), factory.infos[0].Product)

	// A repeated connect notification does not run setup again.
	dev.push(connectionReport(protocol.ConnectionConnected))
	dev.push(inputReport())

	assert.Eventually(func() bool {
		return factory.last().syncCount() > 0
	}, waitFor, tick)

	assert.Equal(1, factory.count())

	// Disconnecting tears the sink down.
	dev.push(connectionReport(protocol.ConnectionDisconnected))

	assert.Eventually(func() bool {
		return factory.last().isClosed()
	}, waitFor, tick)

	assert.False(s.Connected())

	// Pairing alone does not connect.
	dev.push(connectionReport(protocol.ConnectionPaired))

	time.Sleep(20 * time.Millisecond)
	assert.False(s.Connected())
	assert.Equal(1, factory.count())
}

func TestSessionSettingsShadow(t *testing.T) {
	assert := assert.New(t)

	dev := newScriptDevice()
	factory := &capturingFactory{}

	s := newSession("usb-3", dev, KindReceiver, true, DefaultConfig(), factory.factory)
	defer s.Close()

	// While disconnected a setting change only updates the shadow.
	s.SetAutomouse(true)
	s.SetSensorsEnabled(true)

	assert.True(s.Automouse())
	assert.True(s.SensorsEnabled())
	assert.Empty(dev.frames(protocol.CmdSettings))

	dev.push(connectionReport(protocol.ConnectionConnected))

	assert.Eventually(func() bool {
		return factory.count() == 1
	}, waitFor, tick)

	// Setup pushed the shadowed values.
	settings := dev.frames(protocol.CmdSettings)
	if assert.Len(settings, 1) {
		payload := settings[0][3 : 3+settings[0][2]]
		assert.Equal(protocol.SettingsPayload(
			protocol.Setting{Key: protocol.SettingAutomouse, Value: protocol.AutomouseOn},
			protocol.Setting{Key: protocol.SettingOrientation, Value: protocol.OrientationAccel | protocol.OrientationGyro},
		), payload)
	}

	// Connected now: a change is pushed immediately.
	s.SetAutomouse(false)

	assert.Eventually(func() bool {
		return len(dev.frames(protocol.CmdSettings)) == 2
	}, waitFor, tick)

	s.SetAutoButtons(true)

	assert.Eventually(func() bool {
		return len(dev.frames(protocol.CmdEnableAutoButtons)) == 1
	}, waitFor, tick)

	// Centering stays a local policy.
	s.SetCenterTouchpads(false)
	assert.False(s.CenterTouchpads())
	assert.Len(dev.frames(protocol.CmdSettings), 2)
}

func TestSessionConnectionBurst(t *testing.T) {
	assert := assert.New(t)

	dev := newScriptDevice()
	dev.scriptSerial("MMNK9999")

	// The factory stalls the worker mid-setup so connection events pile
	// up while nothing is being drained.
	release := make(chan struct{})
	factory := &capturingFactory{}

	stalling := func(info SinkInfo) (Sink, error) {
		<-release
		return factory.factory(info)
	}

	s := newSession("usb-6", dev, KindReceiver, true, DefaultConfig(), stalling)
	defer s.Close()

	dev.push(connectionReport(protocol.ConnectionConnected))

	// Delivery of a burst of notifications must complete even though
	// the worker is stuck; the report path may not wait on it.
	delivered := make(chan struct{})
	go func() {
		defer close(delivered)
		for i := 0; i < 10; i++ {
			s.handleConnectionEvent(protocol.ConnectionDisconnected)
			s.handleConnectionEvent(protocol.ConnectionConnected)
		}
		s.handleConnectionEvent(protocol.ConnectionDisconnected)
	}()

	select {
	case <-delivered:
	case <-time.After(time.Second):
		assert.Fail("connection events blocked behind the worker")
		return
	}

	close(release)

	// The burst coalesces: the session settles on the last event and
	// every sink that was created got torn down again.
	assert.Eventually(func() bool {
		if s.Connected() {
			return false
		}

		factory.mu.Lock()
		defer factory.mu.Unlock()

		for _, sink := range factory.sinks {
			if !sink.isClosed() {
				return false
			}
		}
		return true
	}, waitFor, tick)
}

func TestSessionCloseDuringSetup(t *testing.T) {
	assert := assert.New(t)

	dev := newScriptDevice()

	started := make(chan struct{})
	release := make(chan struct{})
	sink := newRecordingSink()

	factory := func(info SinkInfo) (Sink, error) {
		close(started)
		<-release
		return sink, nil
	}

	s := newSession("usb-4", dev, KindWired, true, DefaultConfig(), factory)

	// Wait until setup is in flight before closing.
	<-started

	done := make(chan error, 1)
	go func() {
		done <- s.Close()
	}()

	close(release)

	assert.NoError(<-done)

	// The sink produced by the in-flight setup was never published and
	// got released.
	assert.Eventually(sink.isClosed, waitFor, tick)

	// Closing again is a no-op.
	assert.NoError(s.Close())
}

func TestSessionNonRaw(t *testing.T) {
	assert := assert.New(t)

	dev := newScriptDevice()
	factory := &capturingFactory{}

	s := newSession("usb-5", dev, KindWired, false, DefaultConfig(), factory.factory)
	defer s.Close()

	assert.False(s.Raw())

	// Passthrough interfaces never exchange features or create sinks.
	s.HandleReport(inputReport())

	time.Sleep(20 * time.Millisecond)
	assert.Zero(factory.count())
	assert.Empty(dev.frames(protocol.CmdSettings))
}
