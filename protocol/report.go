package protocol

// Buttons is the 32-bit button flag set of an input report.
type Buttons uint32

const (
	BtnTouchRight    Buttons = 0x10000000
	BtnTouchLeft     Buttons = 0x08000000
	BtnClickRight    Buttons = 0x04000000
	BtnClickLeft     Buttons = 0x02000000
	BtnGripRight     Buttons = 0x01000000
	BtnGripLeft      Buttons = 0x00800000
	BtnStart         Buttons = 0x00400000
	BtnMode          Buttons = 0x00200000
	BtnSelect        Buttons = 0x00100000
	BtnA             Buttons = 0x00008000
	BtnX             Buttons = 0x00004000
	BtnB             Buttons = 0x00002000
	BtnY             Buttons = 0x00001000
	BtnShoulderLeft  Buttons = 0x00000800
	BtnShoulderRight Buttons = 0x00000400
	BtnTriggerLeft   Buttons = 0x00000200
	BtnTriggerRight  Buttons = 0x00000100
)

func (b Buttons) Has(mask Buttons) bool {
	return b&mask != 0
}

// Snapshot is the decoded state of one type 0x01 input report.
type Snapshot struct {
	Buttons  Buttons
	Left     [2]int16 // left pad or stick, x then y
	Right    [2]int16 // right pad, x then y
	Triggers [2]uint8 // left then right
	Accel    [3]int16
	Gyro     [3]int16
}

func byteAt(report []byte, i int) byte {
	if i < len(report) {
		return report[i]
	}
	return 0
}

func s16At(report []byte, i int) int16 {
	var v uint16
	for k := 0; k < 2; k++ {
		v |= uint16(byteAt(report, i+k)) << (k * 8)
	}
	return int16(v)
}

// Decode converts a type 0x01 report into a Snapshot. The caller
// dispatches on the report type first. Offsets are guarded so a short
// report decodes whatever fits, with missing bytes reading as zero.
func Decode(report []byte) Snapshot {
	var snap Snapshot

	var buttons uint32
	for i := 0; i < 4; i++ {
		buttons |= uint32(byteAt(report, OffsetButtons+i)) << (i * 8)
	}
	snap.Buttons = Buttons(buttons)

	for axis := 0; axis < 2; axis++ {
		snap.Triggers[axis] = byteAt(report, OffsetTrigger+axis)
		snap.Left[axis] = s16At(report, OffsetLeft+2*axis)
		snap.Right[axis] = s16At(report, OffsetRight+2*axis)
	}

	for axis := 0; axis < 3; axis++ {
		snap.Accel[axis] = s16At(report, OffsetAccel+2*axis)
		snap.Gyro[axis] = s16At(report, OffsetGyro+2*axis)
	}

	return snap
}

// ReportType returns the type byte of a raw report.
func ReportType(report []byte) byte {
	return byteAt(report, OffsetType)
}

// ReportLength returns the declared body length of a raw report.
func ReportLength(report []byte) byte {
	return byteAt(report, OffsetLength)
}

// DecodeConnectionEvent reads the single body byte of a type 0x03
// report.
func DecodeConnectionEvent(report []byte) ConnectionEvent {
	return ConnectionEvent(byteAt(report, OffsetBody))
}
