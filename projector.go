package steamctl

import (
	"github.com/cvuchener/steamctl/protocol"
)

// projection holds the settings the event projector reads. It is a
// copy taken under the session lock so projecting a snapshot never
// races a settings write.
type projection struct {
	center  bool
	padY    PadY
	sensors SensorsConfig
}

func (p projection) padValue(v int16) int32 {
	if p.padY == PadYInverted {
		return -int32(v)
	}
	return int32(v)
}

// project translates one decoded snapshot into a coalesced batch of
// level assertions on the sink. Every field is re-asserted every cycle;
// edge detection belongs to the sink.
func (p projection) project(snap protocol.Snapshot, sink Sink) error {
	buttons := snap.Buttons

	if buttons.Has(protocol.BtnTouchLeft) {
		sink.SetAxis(AxisLeftPadX, int32(snap.Left[0]))
		sink.SetAxis(AxisLeftPadY, p.padValue(snap.Left[1]))
	} else if p.center && snap.Left[0] == 0 && snap.Left[1] == 0 {
		// Left pad release is not reported when the stick is centered
		// at the same time; both share the same axes and the same
		// finger, so treat the all-zero state as a release.
		sink.SetAxis(AxisLeftPadX, 0)
		sink.SetAxis(AxisLeftPadY, 0)
	}

	if p.center || buttons.Has(protocol.BtnTouchRight) {
		sink.SetAxis(AxisRightPadX, int32(snap.Right[0]))
		sink.SetAxis(AxisRightPadY, p.padValue(snap.Right[1]))
	}

	sink.SetAxis(AxisTriggerLeft, int32(snap.Triggers[0]))
	sink.SetAxis(AxisTriggerRight, int32(snap.Triggers[1]))

	if buttons.Has(protocol.BtnTouchLeft) {
		// The click flag means a touchpad click while touched.
		sink.SetButton(ButtonThumbLeft, buttons.Has(protocol.BtnClickLeft))
	} else {
		// Otherwise the left cluster is the stick.
		sink.SetButton(ButtonStick, buttons.Has(protocol.BtnClickLeft))
		sink.SetAxis(AxisStickX, int32(snap.Left[0]))
		sink.SetAxis(AxisStickY, p.padValue(snap.Left[1]))
	}

	if buttons.Has(protocol.BtnTouchRight) {
		sink.SetButton(ButtonThumbRight, buttons.Has(protocol.BtnClickRight))
	}

	sink.SetButton(ButtonA, buttons.Has(protocol.BtnA))
	sink.SetButton(ButtonB, buttons.Has(protocol.BtnB))
	sink.SetButton(ButtonX, buttons.Has(protocol.BtnX))
	sink.SetButton(ButtonY, buttons.Has(protocol.BtnY))
	sink.SetButton(ButtonSelect, buttons.Has(protocol.BtnSelect))
	sink.SetButton(ButtonMode, buttons.Has(protocol.BtnMode))
	sink.SetButton(ButtonStart, buttons.Has(protocol.BtnStart))
	sink.SetButton(ButtonShoulderLeft, buttons.Has(protocol.BtnShoulderLeft))
	sink.SetButton(ButtonShoulderRight, buttons.Has(protocol.BtnShoulderRight))
	sink.SetButton(ButtonTriggerLeft, buttons.Has(protocol.BtnTriggerLeft))
	sink.SetButton(ButtonTriggerRight, buttons.Has(protocol.BtnTriggerRight))
	sink.SetButton(ButtonGripLeft, buttons.Has(protocol.BtnGripLeft))
	sink.SetButton(ButtonGripRight, buttons.Has(protocol.BtnGripRight))

	if p.sensors.Enabled {
		switch p.sensors.Mode {
		case SensorTilt:
			sink.SetAxis(AxisTiltX, protocol.Tilt(int32(snap.Accel[2]), int32(snap.Accel[0])))
			sink.SetAxis(AxisTiltY, protocol.Tilt(int32(snap.Accel[2]), int32(snap.Accel[1])))
			sink.MoveRel(AxisGyroX, int32(snap.Gyro[0]))
			sink.MoveRel(AxisGyroY, int32(snap.Gyro[1]))
			sink.MoveRel(AxisGyroZ, int32(snap.Gyro[2]))
		default:
			sink.SetAxis(AxisAccelX, int32(snap.Accel[0]))
			sink.SetAxis(AxisAccelY, int32(snap.Accel[1]))
			sink.SetAxis(AxisAccelZ, int32(snap.Accel[2]))
			sink.SetAxis(AxisGyroX, int32(snap.Gyro[0]))
			sink.SetAxis(AxisGyroY, int32(snap.Gyro[1]))
			sink.SetAxis(AxisGyroZ, int32(snap.Gyro[2]))
		}
	}

	return sink.Sync()
}
