package steamctl

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// EventBatch is one published cycle of state changes. Only values that
// changed since the previous cycle appear; relative axes carry the
// accumulated motion of the cycle.
type EventBatch struct {
	Buttons map[string]bool  `json:"buttons,omitempty"`
	Axes    map[string]int32 `json:"axes,omitempty"`
	Rel     map[string]int32 `json:"rel,omitempty"`
}

// NATSSinkFactory publishes event batches on
// <prefix>.<serial> and the device description on
// <prefix>.<serial>.device. Sessions without a serial publish under
// "controller".
func NATSSinkFactory(nc *nats.Conn, prefix string) SinkFactory {
	return func(info SinkInfo) (Sink, error) {
		token := info.Serial
		if token == "" {
			token = "controller"
		}

		subject := prefix + "." + token

		device, err := json.Marshal(&info)
		if err != nil {
			return nil, err
		}

		if err := nc.Publish(subject+".device", device); err != nil {
			return nil, err
		}

		return &natsSink{
			log: zap.L().With(
				zap.String("component", "sink.nats"),
				zap.String("subject", subject),
			),
			nc:      nc,
			subject: subject,
			buttons: make(map[Button]bool),
			axes:    make(map[Axis]int32),
			rel:     make(map[Axis]int32),
		}, nil
	}
}

// natsSink is only driven from the report path of its session, so it
// needs no locking.
type natsSink struct {
	log     *zap.Logger
	nc      *nats.Conn
	subject string

	buttons map[Button]bool
	axes    map[Axis]int32
	rel     map[Axis]int32

	pending EventBatch
}

func (s *natsSink) SetButton(b Button, pressed bool) {
	if prev, ok := s.buttons[b]; ok && prev == pressed {
		return
	}
	s.buttons[b] = pressed

	if s.pending.Buttons == nil {
		s.pending.Buttons = make(map[string]bool)
	}
	s.pending.Buttons[b.String()] = pressed
}

func (s *natsSink) SetAxis(a Axis, value int32) {
	if prev, ok := s.axes[a]; ok && prev == value {
		return
	}
	s.axes[a] = value

	if s.pending.Axes == nil {
		s.pending.Axes = make(map[string]int32)
	}
	s.pending.Axes[a.String()] = value
}

func (s *natsSink) MoveRel(a Axis, delta int32) {
	if delta == 0 {
		return
	}
	s.rel[a] += delta
}

func (s *natsSink) Sync() error {
	batch := s.pending
	s.pending = EventBatch{}

	if len(s.rel) > 0 {
		batch.Rel = make(map[string]int32, len(s.rel))
		for a, delta := range s.rel {
			batch.Rel[a.String()] = delta
			delete(s.rel, a)
		}
	}

	if batch.Buttons == nil && batch.Axes == nil && batch.Rel == nil {
		return nil
	}

	data, err := json.Marshal(&batch)
	if err != nil {
		return err
	}

	return s.nc.Publish(s.subject, data)
}

func (s *natsSink) Close() error {
	// Announce removal so consumers can drop the device.
	if err := s.nc.Publish(s.subject+".device", []byte("null")); err != nil {
		s.log.Warn("failed to publish removal", zap.Error(err))
	}
	return nil
}
