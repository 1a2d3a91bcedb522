package steamctl

import (
	"github.com/cvuchener/steamctl/protocol"
)

// Button identifies a logical button of the controller. The identifiers
// are semantic, not wire offsets; the projector maps report flags onto
// them.
type Button int

const (
	ButtonA Button = iota
	ButtonB
	ButtonX
	ButtonY
	ButtonSelect
	ButtonMode
	ButtonStart
	ButtonShoulderLeft
	ButtonShoulderRight
	ButtonTriggerLeft
	ButtonTriggerRight
	ButtonGripLeft
	ButtonGripRight
	ButtonThumbLeft
	ButtonThumbRight
	// ButtonStick is the stick click. It shares a report flag with
	// ButtonThumbLeft; the projector picks one based on touch state.
	ButtonStick
)

func (b Button) String() string {
	switch b {
	case ButtonA:
		return "a"
	case ButtonB:
		return "b"
	case ButtonX:
		return "x"
	case ButtonY:
		return "y"
	case ButtonSelect:
		return "select"
	case ButtonMode:
		return "mode"
	case ButtonStart:
		return "start"
	case ButtonShoulderLeft:
		return "shoulder_left"
	case ButtonShoulderRight:
		return "shoulder_right"
	case ButtonTriggerLeft:
		return "trigger_left"
	case ButtonTriggerRight:
		return "trigger_right"
	case ButtonGripLeft:
		return "grip_left"
	case ButtonGripRight:
		return "grip_right"
	case ButtonThumbLeft:
		return "thumb_left"
	case ButtonThumbRight:
		return "thumb_right"
	case ButtonStick:
		return "stick"
	default:
		return "unknown"
	}
}

// Axis identifies a logical absolute or relative axis.
type Axis int

const (
	AxisStickX Axis = iota
	AxisStickY
	AxisLeftPadX
	AxisLeftPadY
	AxisRightPadX
	AxisRightPadY
	AxisTriggerLeft
	AxisTriggerRight
	AxisAccelX
	AxisAccelY
	AxisAccelZ
	AxisGyroX
	AxisGyroY
	AxisGyroZ
	AxisTiltX
	AxisTiltY
)

func (a Axis) String() string {
	switch a {
	case AxisStickX:
		return "stick_x"
	case AxisStickY:
		return "stick_y"
	case AxisLeftPadX:
		return "left_pad_x"
	case AxisLeftPadY:
		return "left_pad_y"
	case AxisRightPadX:
		return "right_pad_x"
	case AxisRightPadY:
		return "right_pad_y"
	case AxisTriggerLeft:
		return "trigger_left"
	case AxisTriggerRight:
		return "trigger_right"
	case AxisAccelX:
		return "accel_x"
	case AxisAccelY:
		return "accel_y"
	case AxisAccelZ:
		return "accel_z"
	case AxisGyroX:
		return "gyro_x"
	case AxisGyroY:
		return "gyro_y"
	case AxisGyroZ:
		return "gyro_z"
	case AxisTiltX:
		return "tilt_x"
	case AxisTiltY:
		return "tilt_y"
	default:
		return "unknown"
	}
}

// AbsInfo carries the bounds and resolution metadata of an absolute
// axis, declared once at sink creation.
type AbsInfo struct {
	Min        int32
	Max        int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// AxisInfo binds an axis to its metadata.
type AxisInfo struct {
	Axis Axis
	Abs  AbsInfo
}

// SinkInfo describes the virtual device a sink should expose.
type SinkInfo struct {
	Name    string
	Serial  string
	Vendor  uint16
	Product uint16
	Version uint16
	Buttons []Button
	Axes    []AxisInfo
	// RelAxes lists axes reported as relative motion rather than
	// absolute position (gyro deltas in tilt mode).
	RelAxes []Axis
}

// Sink accepts one coalesced batch of level assertions per input
// report. Levels are re-asserted every cycle; the sink is responsible
// for edge detection and delivery.
type Sink interface {
	SetButton(b Button, pressed bool)
	SetAxis(a Axis, value int32)
	MoveRel(a Axis, delta int32)
	Sync() error
	Close() error
}

// SinkFactory creates the event sink during device setup. It is called
// from the session worker, never from the report path.
type SinkFactory func(info SinkInfo) (Sink, error)

const controllerName = "Valve Software Steam Controller"

// stick and pad fuzz/flat follow the bounds the controller actually
// produces.
var (
	stickAbs   = AbsInfo{Min: -32767, Max: 32767, Fuzz: 100, Flat: 100}
	padAbs     = AbsInfo{Min: -32767, Max: 32767, Fuzz: 500, Flat: 1000}
	triggerAbs = AbsInfo{Min: 0, Max: 255, Fuzz: 2, Flat: 1}
	accelAbs   = AbsInfo{Min: -32767, Max: 32767, Resolution: protocol.AccelResPerG}
	gyroAbs    = AbsInfo{Min: -32767, Max: 32767}
	tiltAbs    = AbsInfo{Min: -4000, Max: 4000}
)

// sinkInfo builds the device description for the configured sensor
// setup.
func sinkInfo(serial string, product uint16, sensors SensorsConfig) SinkInfo {
	info := SinkInfo{
		Name:    controllerName,
		Serial:  serial,
		Vendor:  VendorValve,
		Product: product,
		Buttons: []Button{
			ButtonA, ButtonB, ButtonX, ButtonY,
			ButtonSelect, ButtonMode, ButtonStart,
			ButtonShoulderLeft, ButtonShoulderRight,
			ButtonTriggerLeft, ButtonTriggerRight,
			ButtonGripLeft, ButtonGripRight,
			ButtonThumbLeft, ButtonThumbRight, ButtonStick,
		},
		Axes: []AxisInfo{
			{AxisStickX, stickAbs},
			{AxisStickY, stickAbs},
			{AxisLeftPadX, padAbs},
			{AxisLeftPadY, padAbs},
			{AxisRightPadX, padAbs},
			{AxisRightPadY, padAbs},
			{AxisTriggerLeft, triggerAbs},
			{AxisTriggerRight, triggerAbs},
		},
	}

	if !sensors.Enabled {
		return info
	}

	switch sensors.Mode {
	case SensorTilt:
		info.Axes = append(info.Axes,
			AxisInfo{AxisTiltX, tiltAbs},
			AxisInfo{AxisTiltY, tiltAbs},
		)
		info.RelAxes = []Axis{AxisGyroX, AxisGyroY, AxisGyroZ}
	default:
		info.Axes = append(info.Axes,
			AxisInfo{AxisAccelX, accelAbs},
			AxisInfo{AxisAccelY, accelAbs},
			AxisInfo{AxisAccelZ, accelAbs},
			AxisInfo{AxisGyroX, gyroAbs},
			AxisInfo{AxisGyroY, gyroAbs},
			AxisInfo{AxisGyroZ, gyroAbs},
		)
	}

	return info
}
