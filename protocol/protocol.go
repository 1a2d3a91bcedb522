// Package protocol implements the Steam Controller vendor HID protocol:
// 65-byte feature exchanges for configuration and 64-byte periodic input
// reports.
package protocol

// The vendor interface is recognized by its exact report descriptor.
// Interfaces with any other descriptor are generic boot keyboard/mouse
// interfaces and must not be decoded.
var RawReportDescriptor = [33]byte{
	0x06, 0x00, 0xFF, // Usage Page (Vendor FF00)
	0x09, 0x01, // Usage (Vendor 0001)
	0xA1, 0x01, // Collection (Application)
	0x15, 0x00, //  Logical Minimum (0)
	0x26, 0xFF, 0x00, //  Logical Maximum (255)
	0x75, 0x08, //  Report Size (8)
	0x95, 0x40, //  Report Count (64)
	0x09, 0x01, //  Usage (Vendor 0001)
	0x81, 0x02, //  Input (Data, Variable, Absolute)
	0x95, 0x40, //  Report Count (64)
	0x09, 0x01, //  Usage (Vendor 0001)
	0x91, 0x02, //  Output (Data, Variable, Absolute)
	0x95, 0x40, //  Report Count (64)
	0x09, 0x01, //  Usage (Vendor 0001)
	0xB1, 0x02, //  Feature (Data, Variable, Absolute)
	0xC0, // End Collection
}

const (
	FeatureReportSize = 65
	InputReportSize   = 64

	// Frame layout of a feature exchange: byte 0 is the reserved report
	// id selector (always 0), byte 1 the command id, byte 2 the payload
	// length, bytes 3.. the payload.
	MaxPayload = 62
	MaxAnswer  = 61
)

// Feature commands.
const (
	CmdDisableAutoButtons = 0x81
	CmdEnableAutoButtons  = 0x85
	CmdSettings           = 0x87
	CmdGetSerial          = 0xAE
	CmdGetConnectionState = 0xB4
)

// Settings keys and values, packed as (key, value, 0) triplets into a
// CmdSettings payload.
const (
	SettingAutomouse    = 0x08
	AutomouseOn         = 0x00
	AutomouseOff        = 0x07
	SettingOrientation  = 0x30
	OrientationTiltX    = 0x01
	OrientationTiltY    = 0x02
	OrientationAccel    = 0x04
	OrientationQ        = 0x08
	OrientationGyro     = 0x10
	OrientationDisabled = 0x00
)

// Input report offsets. Multi-byte fields are little-endian and are
// reconstructed byte by byte; the wire order is a protocol contract,
// not a memory layout.
const (
	OffsetType    = 2
	OffsetLength  = 3
	OffsetBody    = 4
	OffsetButtons = 7
	OffsetTrigger = 11
	OffsetLeft    = 16
	OffsetRight   = 20
	OffsetAccel   = 28
	OffsetGyro    = 34
)

// Report types.
const (
	TypeInput      = 0x01
	TypeConnection = 0x03

	InputBodyLength      = 60
	ConnectionBodyLength = 1
)

// AccelResPerG is the accelerometer resolution in counts per g.
const AccelResPerG = 0x4000

// A Setting is one (key, value) pair of the settings feature.
type Setting struct {
	Key   byte
	Value byte
}

// SettingsPayload packs settings into a CmdSettings payload. Each
// setting takes exactly three bytes, the third reserved zero.
func SettingsPayload(settings ...Setting) []byte {
	payload := make([]byte, 0, 3*len(settings))
	for _, s := range settings {
		payload = append(payload, s.Key, s.Value, 0)
	}
	return payload
}

// ConnectionEvent is the body of a type 0x03 report.
type ConnectionEvent byte

const (
	ConnectionDisconnected ConnectionEvent = 0x01
	ConnectionConnected    ConnectionEvent = 0x02
	ConnectionPaired       ConnectionEvent = 0x03
)

func (ev ConnectionEvent) String() string {
	switch ev {
	case ConnectionDisconnected:
		return "disconnected"
	case ConnectionConnected:
		return "connected"
	case ConnectionPaired:
		return "paired"
	default:
		return "unknown"
	}
}
