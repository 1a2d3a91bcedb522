package steamctl

import (
	"errors"

	"gopkg.in/yaml.v3"

	"github.com/cvuchener/steamctl/protocol"
)

type Config struct {
	Path       string           `yaml:"-"`
	Controller ControllerConfig `yaml:"controller"`
	Sensors    SensorsConfig    `yaml:"sensors"`
}

type ControllerConfig struct {
	Automouse       bool `yaml:"automouse"`
	AutoButtons     bool `yaml:"autoButtons"`
	CenterTouchpads bool `yaml:"centerTouchpads"`
	PadY            PadY `yaml:"padY"`
}

type SensorsConfig struct {
	Enabled bool       `yaml:"enabled"`
	Mode    SensorMode `yaml:"mode"`
}

// DefaultConfig mirrors the device-friendly defaults: mouse and key
// emulation off, touchpad centering on, inverted Y, raw sensor
// reporting.
func DefaultConfig() *Config {
	return &Config{
		Controller: ControllerConfig{
			Automouse:       false,
			AutoButtons:     false,
			CenterTouchpads: true,
			PadY:            PadYInverted,
		},
		Sensors: SensorsConfig{
			Enabled: false,
			Mode:    SensorRaw,
		},
	}
}

// OrientationFlags returns the orientation settings value pushed to the
// device for the configured sensor mode.
func (s SensorsConfig) OrientationFlags() byte {
	if !s.Enabled {
		return protocol.OrientationDisabled
	}

	switch s.Mode {
	case SensorTilt:
		return protocol.OrientationTiltX | protocol.OrientationTiltY | protocol.OrientationGyro
	default:
		return protocol.OrientationAccel | protocol.OrientationGyro
	}
}

// PadY selects the sign convention for pad and stick Y axes. Device
// firmware revisions disagree on the axis direction and there is no
// runtime detection, so the convention is an explicit configuration
// choice.
type PadY int

const (
	PadYInverted PadY = iota
	PadYNatural
)

func ParsePadY(convention string) (PadY, error) {
	switch convention {
	case "inverted":
		return PadYInverted, nil
	case "natural":
		return PadYNatural, nil
	default:
		return -1, errors.New("pad y convention not supported")
	}
}

func (pad *PadY) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	p, err := ParsePadY(raw)
	if err != nil {
		return err
	}

	*pad = p

	return nil
}

func (pad PadY) String() string {
	switch pad {
	case PadYInverted:
		return "inverted"
	case PadYNatural:
		return "natural"
	default:
		return "unknown"
	}
}

// SensorMode selects how orientation data is reported: raw absolute
// accelerometer and gyroscope axes, or tilt angles with relative
// gyroscope motion. Like PadY this follows the firmware revision and
// must be chosen explicitly.
type SensorMode int

const (
	SensorRaw SensorMode = iota
	SensorTilt
)

func ParseSensorMode(mode string) (SensorMode, error) {
	switch mode {
	case "raw":
		return SensorRaw, nil
	case "tilt":
		return SensorTilt, nil
	default:
		return -1, errors.New("sensor mode not supported")
	}
}

func (mode *SensorMode) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	m, err := ParseSensorMode(raw)
	if err != nil {
		return err
	}

	*mode = m

	return nil
}

func (mode SensorMode) String() string {
	switch mode {
	case SensorRaw:
		return "raw"
	case SensorTilt:
		return "tilt"
	default:
		return "unknown"
	}
}

// DeviceKind distinguishes the wired controller from the wireless
// receiver. Wired devices are connected from the start; receiver-backed
// sessions wait for a connection notification.
type DeviceKind int

const (
	KindWired DeviceKind = iota
	KindReceiver
)

func (kind DeviceKind) String() string {
	switch kind {
	case KindWired:
		return "wired"
	case KindReceiver:
		return "receiver"
	default:
		return "unknown"
	}
}
