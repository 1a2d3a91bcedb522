package protocol

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrWrite           = errors.New("feature write failed")
	ErrRead            = errors.New("feature read failed")
	ErrMismatch        = errors.New("answer id does not match request")
	ErrAnswerTooLarge  = errors.New("answer length exceeds frame capacity")
)

// FeatureDevice is the feature-report surface of a HID device. The
// first byte of every buffer is the report id selector, always zero for
// this protocol.
type FeatureDevice interface {
	SendFeatureReport(p []byte) (int, error)
	GetFeatureReport(p []byte) (int, error)
}

// Exchanger runs request/answer exchanges over feature reports. It
// holds no protocol state; every exchange is independent.
type Exchanger struct {
	log    *zap.Logger
	dev    FeatureDevice
	settle time.Duration
}

func NewExchanger(dev FeatureDevice) *Exchanger {
	return &Exchanger{
		log: zap.L().With(
			zap.String("component", "protocol.exchanger"),
		),
		dev:    dev,
		settle: 50 * time.Millisecond,
	}
}

// Request sends a fire-and-forget command. No answer is read.
func (e *Exchanger) Request(cmd byte, payload []byte) error {
	_, err := e.send(cmd, payload)
	return err
}

// RequestAnswer sends a command and reads back its answer. The device
// has no completion signal, so a fixed settling delay separates the
// write from the read. The answer must echo the command id and declare
// at most 61 payload bytes.
func (e *Exchanger) RequestAnswer(cmd byte, payload []byte) ([]byte, error) {
	frame, err := e.send(cmd, payload)
	if err != nil {
		return nil, err
	}

	time.Sleep(e.settle)

	n, err := e.dev.GetFeatureReport(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRead, err.Error())
	}

	if n != FeatureReportSize {
		return nil, fmt.Errorf("%w: short read (%d bytes)", ErrRead, n)
	}

	if frame[1] != cmd {
		e.log.Warn("invalid feature id",
			zap.Uint8("want", cmd),
			zap.Uint8("got", frame[1]))

		return nil, ErrMismatch
	}

	size := int(frame[2])
	if size > MaxAnswer {
		e.log.Warn("invalid answer size",
			zap.Int("size", size))

		return nil, ErrAnswerTooLarge
	}

	answer := make([]byte, size)
	copy(answer, frame[3:3+size])

	return answer, nil
}

func (e *Exchanger) send(cmd byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", ErrInvalidArgument, MaxPayload)
	}

	frame := make([]byte, FeatureReportSize)
	frame[0] = 0
	frame[1] = cmd
	frame[2] = byte(len(payload))
	copy(frame[3:], payload)

	n, err := e.dev.SendFeatureReport(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWrite, err.Error())
	}

	if n != FeatureReportSize {
		return nil, fmt.Errorf("%w: short write (%d bytes)", ErrWrite, n)
	}

	return frame, nil
}

// GetSerial retrieves the controller serial string. The request
// payload selects the serial with a leading 0x01 tag padded to 21
// bytes; the answer echoes the tag before the string.
func (e *Exchanger) GetSerial() (string, error) {
	payload := make([]byte, 21)
	payload[0] = 1

	answer, err := e.RequestAnswer(CmdGetSerial, payload)
	if err != nil {
		return "", err
	}

	if len(answer) < 2 {
		return "", fmt.Errorf("%w: empty serial answer", ErrRead)
	}

	return string(answer[1:]), nil
}

// ApplySettings pushes (key, value, 0) triplets in a single request.
func (e *Exchanger) ApplySettings(settings ...Setting) error {
	return e.Request(CmdSettings, SettingsPayload(settings...))
}

// SetAutoButtons toggles the device-side mapping of buttons to
// keyboard keys. The toggle is encoded in the command id itself and
// carries no payload.
func (e *Exchanger) SetAutoButtons(enabled bool) error {
	cmd := byte(CmdDisableAutoButtons)
	if enabled {
		cmd = CmdEnableAutoButtons
	}
	return e.Request(cmd, nil)
}

// QueryConnectionState asks a wireless receiver to report the current
// connection state. The device answers with a type 0x03 input report
// on the interrupt channel, not in the feature answer.
func (e *Exchanger) QueryConnectionState() error {
	_, err := e.RequestAnswer(CmdGetConnectionState, nil)
	return err
}
