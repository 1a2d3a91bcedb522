package steamctl

import (
	"sync"

	"go.uber.org/zap"

	"github.com/cvuchener/steamctl/protocol"
)

// Device is the transport side of one HID interface.
type Device interface {
	protocol.FeatureDevice
	ReportDescriptor() ([]byte, error)
	Read(p []byte) (int, error)
	Close() error
}

// Session owns one HID interface of a controller or receiver. Reports
// are decoded and projected synchronously on the delivery path; setup
// and teardown, which perform slow feature exchanges, run on a
// per-session worker goroutine so the report path never waits on them.
// The report path never blocks on the worker: connection events only
// update the desired state under the lock and nudge the worker with a
// non-blocking notification, so any burst of connect/disconnect events
// coalesces into whatever transitions are still needed.
type Session struct {
	log       *zap.Logger
	id        string
	kind      DeviceKind
	dev       Device
	exchanger *protocol.Exchanger
	factory   SinkFactory

	// raw is set when the interface carries the vendor protocol.
	// Generic keyboard/mouse interfaces get no decoding.
	raw bool

	mu          sync.Mutex
	closed      bool
	connected   bool
	queryState  bool
	setupTried  bool
	automouse   bool
	autobuttons bool
	center      bool
	padY        PadY
	sensors     SensorsConfig
	serial      string
	sink        Sink

	notify chan struct{}
	wg     sync.WaitGroup
}

func newSession(id string, dev Device, kind DeviceKind, raw bool, cfg *Config, factory SinkFactory) *Session {
	s := &Session{
		log: zap.L().With(
			zap.String("component", "session"),
			zap.String("device", id),
		),
		id:          id,
		kind:        kind,
		dev:         dev,
		exchanger:   protocol.NewExchanger(dev),
		factory:     factory,
		raw:         raw,
		automouse:   cfg.Controller.Automouse,
		autobuttons: cfg.Controller.AutoButtons,
		center:      cfg.Controller.CenterTouchpads,
		padY:        cfg.Controller.PadY,
		sensors:     cfg.Sensors,
		notify:      make(chan struct{}, 1),
	}

	s.wg.Add(1)
	go s.worker()

	if !raw {
		return s
	}

	switch kind {
	case KindWired:
		// A wired controller is connected from the start.
		s.connected = true
	case KindReceiver:
		// The receiver answers with a connection report; until then
		// the session stays disconnected.
		s.queryState = true
	}
	s.notify <- struct{}{}

	s.wg.Add(1)
	go s.pump()

	return s
}

func (s *Session) ID() string       { return s.id }
func (s *Session) Kind() DeviceKind { return s.kind }
func (s *Session) Raw() bool        { return s.raw }

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Session) Serial() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serial
}

// pump feeds incoming interrupt reports to HandleReport until the
// device is closed.
func (s *Session) pump() {
	defer s.wg.Done()

	buf := make([]byte, protocol.InputReportSize)
	for {
		n, err := s.dev.Read(buf)
		if err != nil {
			s.log.Debug("read loop ended", zap.Error(err))
			return
		}

		s.HandleReport(buf[:n])
	}
}

// HandleReport dispatches one raw report. It must not block; slow work
// is scheduled on the worker.
func (s *Session) HandleReport(report []byte) {
	if !s.raw || len(report) != protocol.InputReportSize {
		return
	}

	switch protocol.ReportType(report) {
	case protocol.TypeInput:
		if protocol.ReportLength(report) != protocol.InputBodyLength {
			s.log.Warn("wrong input event length",
				zap.Uint8("length", protocol.ReportLength(report)))
		}

		s.mu.Lock()
		sink := s.sink
		proj := projection{
			center:  s.center,
			padY:    s.padY,
			sensors: s.sensors,
		}
		s.mu.Unlock()

		if sink == nil {
			return
		}

		if err := proj.project(protocol.Decode(report), sink); err != nil {
			s.log.Warn("event batch rejected", zap.Error(err))
		}

	case protocol.TypeConnection:
		if protocol.ReportLength(report) != protocol.ConnectionBodyLength {
			s.log.Warn("wrong connection event length",
				zap.Uint8("length", protocol.ReportLength(report)))
		}

		s.handleConnectionEvent(protocol.DecodeConnectionEvent(report))
	}
}

func (s *Session) handleConnectionEvent(ev protocol.ConnectionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev {
	case protocol.ConnectionConnected:
		if s.connected {
			return
		}
		s.connected = true
		s.setupTried = false
		s.log.Debug("connected event")
		s.scheduleLocked()

	case protocol.ConnectionDisconnected:
		if !s.connected {
			return
		}
		s.connected = false
		s.log.Debug("disconnected event")
		s.scheduleLocked()

	case protocol.ConnectionPaired:
		// Paired but not connected, nothing to do.
	}
}

// scheduleLocked nudges the worker without ever blocking. A token
// already in the channel means a wakeup is pending and the worker will
// observe the updated state anyway.
func (s *Session) scheduleLocked() {
	if s.closed {
		return
	}

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// worker converges the session to its desired state. Each wakeup
// re-reads the state and performs one transition at a time until
// nothing is left to do; setup runs at most once per connection.
func (s *Session) worker() {
	defer s.wg.Done()

	for range s.notify {
		for {
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}

			query := s.queryState
			s.queryState = false

			setup := s.connected && !s.setupTried
			if setup {
				s.setupTried = true
			}

			teardown := !s.connected && s.sink != nil
			s.mu.Unlock()

			switch {
			case query:
				if err := s.exchanger.QueryConnectionState(); err != nil {
					s.log.Warn("error while getting connection state", zap.Error(err))
				}
			case setup:
				s.setup()
			case teardown:
				s.teardown()
			}

			if !query && !setup && !teardown {
				break
			}
		}
	}
}

// setup performs the one-time device initialization: serial fetch,
// initial settings push, auto-buttons toggle, then sink creation. All
// feature exchanges are best-effort; the sink handle is published only
// once setup fully completed.
func (s *Session) setup() {
	s.log.Info("initializing device")

	serial, err := s.exchanger.GetSerial()
	if err != nil {
		s.log.Warn("error while getting controller serial", zap.Error(err))
		serial = ""
	}

	s.mu.Lock()
	s.serial = serial
	automouse := s.automouse
	autobuttons := s.autobuttons
	sensors := s.sensors
	s.mu.Unlock()

	err = s.exchanger.ApplySettings(
		protocol.Setting{Key: protocol.SettingAutomouse, Value: automouseValue(automouse)},
		protocol.Setting{Key: protocol.SettingOrientation, Value: sensors.OrientationFlags()},
	)
	if err != nil {
		s.log.Warn("error while pushing settings", zap.Error(err))
	}

	if err := s.exchanger.SetAutoButtons(autobuttons); err != nil {
		s.log.Warn("error while setting auto buttons", zap.Error(err))
	}

	sink, err := s.factory(sinkInfo(serial, s.product(), sensors))
	if err != nil {
		// No partial sink; a later connect notification retries.
		s.log.Error("failed to create event sink", zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sink.Close()
		return
	}
	s.sink = sink
	s.mu.Unlock()
}

// teardown releases the event sink. It tolerates a sink that was never
// published (setup still running or abandoned).
func (s *Session) teardown() {
	s.mu.Lock()
	sink := s.sink
	s.sink = nil
	s.mu.Unlock()

	if sink == nil {
		return
	}

	if err := sink.Close(); err != nil {
		s.log.Warn("error while closing event sink", zap.Error(err))
	}
}

func (s *Session) product() uint16 {
	if s.kind == KindReceiver {
		return ProductReceiver
	}
	return ProductWired
}

// Close stops the session: no new work is scheduled, in-flight setup
// or teardown is awaited, then the device and any live sink are
// released.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.notify)
	s.mu.Unlock()

	err := s.dev.Close()

	s.wg.Wait()

	s.mu.Lock()
	sink := s.sink
	s.sink = nil
	s.mu.Unlock()

	if sink != nil {
		sink.Close()
	}

	return err
}

func automouseValue(on bool) byte {
	if on {
		return protocol.AutomouseOn
	}
	return protocol.AutomouseOff
}

// Automouse reports the shadowed automouse setting.
func (s *Session) Automouse() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.automouse
}

// SetAutomouse updates the shadow value and, while connected, pushes it
// to the device. A failed push is logged; the shadow self-heals on the
// next connect.
func (s *Session) SetAutomouse(on bool) {
	s.mu.Lock()
	s.automouse = on
	connected := s.connected
	s.mu.Unlock()

	if !connected {
		return
	}

	err := s.exchanger.ApplySettings(
		protocol.Setting{Key: protocol.SettingAutomouse, Value: automouseValue(on)},
	)
	if err != nil {
		s.log.Warn("error while setting automouse", zap.Error(err))
	}
}

func (s *Session) AutoButtons() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autobuttons
}

func (s *Session) SetAutoButtons(on bool) {
	s.mu.Lock()
	s.autobuttons = on
	connected := s.connected
	s.mu.Unlock()

	if !connected {
		return
	}

	if err := s.exchanger.SetAutoButtons(on); err != nil {
		s.log.Warn("error while setting auto buttons", zap.Error(err))
	}
}

func (s *Session) CenterTouchpads() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.center
}

// SetCenterTouchpads is a local projection policy; nothing is pushed to
// the device.
func (s *Session) SetCenterTouchpads(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.center = on
}

func (s *Session) SensorsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sensors.Enabled
}

// SetSensorsEnabled toggles orientation reporting and pushes the
// orientation flags while connected. The sink keeps its axis catalog
// until the next setup.
func (s *Session) SetSensorsEnabled(on bool) {
	s.mu.Lock()
	s.sensors.Enabled = on
	sensors := s.sensors
	connected := s.connected
	s.mu.Unlock()

	if !connected {
		return
	}

	err := s.exchanger.ApplySettings(
		protocol.Setting{Key: protocol.SettingOrientation, Value: sensors.OrientationFlags()},
	)
	if err != nil {
		s.log.Warn("error while setting orientation", zap.Error(err))
	}
}
