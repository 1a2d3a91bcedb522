//go:build linux

// Package uinput exposes a controller session as Linux virtual input
// devices. Gamepad controls go to one device; when sensors are enabled
// a second accelerometer device is created alongside, mirroring how
// sensor-capable gamepads are split on Linux.
package uinput

import (
	"fmt"
	"os"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/cvuchener/steamctl"
)

// Event types and codes from linux/input-event-codes.h.
const (
	evSyn = 0x00
	evKey = 0x01
	evRel = 0x02
	evAbs = 0x03

	synReport = 0x00

	btnSouth  = 0x130
	btnEast   = 0x131
	btnC      = 0x132
	btnNorth  = 0x133
	btnWest   = 0x134
	btnZ      = 0x135
	btnTL     = 0x136
	btnTR     = 0x137
	btnTL2    = 0x138
	btnTR2    = 0x139
	btnSelect = 0x13A
	btnStart  = 0x13B
	btnMode   = 0x13C
	btnThumbL = 0x13D
	btnThumbR = 0x13E
	// The stick click has no dedicated gamepad code; the first free
	// code after the gamepad block is used.
	btnStickClick = 0x13F

	absX     = 0x00
	absY     = 0x01
	absZ     = 0x02
	absRX    = 0x03
	absRY    = 0x04
	absRZ    = 0x05
	absGas   = 0x09
	absBrake = 0x0A
	absHat0X = 0x10
	absHat0Y = 0x11
	absHat1X = 0x12
	absHat1Y = 0x13
	absTiltX = 0x1A
	absTiltY = 0x1B

	relRX = 0x03
	relRY = 0x04
	relRZ = 0x05

	inputPropAccelerometer = 0x06

	busUSB = 0x03

	absCount = 0x40
)

// ioctl requests from linux/uinput.h, encoded with the _IOC layout.
func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | 'U'<<8 | nr
}

var (
	uiDevCreate  = ioc(0, 1, 0)
	uiDevDestroy = ioc(0, 2, 0)
	uiDevSetup   = ioc(1, 3, unsafe.Sizeof(uinputSetup{}))
	uiAbsSetup   = ioc(1, 4, unsafe.Sizeof(uinputAbsSetup{}))
	uiSetEvBit   = ioc(1, 100, 4)
	uiSetKeyBit  = ioc(1, 101, 4)
	uiSetRelBit  = ioc(1, 102, 4)
	uiSetAbsBit  = ioc(1, 103, 4)
	uiSetPropBit = ioc(1, 110, 4)
)

func ioctl(fd uintptr, req uintptr, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// uinputSetup and uinputAbsSetup are the modern device setup blocks.
// UI_ABS_SETUP carries the full absinfo including resolution.
type uinputSetup struct {
	ID           inputID
	Name         [80]byte
	FFEffectsMax uint32
}

type inputAbsinfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

type uinputAbsSetup struct {
	Code    uint16
	Absinfo inputAbsinfo
}

// userDev is the legacy uinput_user_dev setup block, used on kernels
// without UI_DEV_SETUP. The legacy interface cannot carry axis
// resolution; bounds, fuzz and flat are preserved.
type userDev struct {
	Name       [80]byte
	ID         inputID
	EffectsMax uint32
	AbsMax     [absCount]int32
	AbsMin     [absCount]int32
	AbsFuzz    [absCount]int32
	AbsFlat    [absCount]int32
}

type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type absSpec struct {
	code uint16
	abs  steamctl.AbsInfo
}

// device is one created uinput node. Writes are buffered per cycle and
// flushed with a SYN_REPORT; unchanged levels are suppressed here so
// consumers only see edges.
type device struct {
	f     *os.File
	state map[uint32]int32
	queue []inputEvent
}

func createDevice(name string, id inputID, keys []uint16, abs []absSpec, rels []uint16, accelerometer bool) (*device, error) {
	f, err := os.OpenFile("/dev/uinput", os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}

	fd := f.Fd()

	fail := func(err error) (*device, error) {
		f.Close()
		return nil, err
	}

	if len(keys) > 0 {
		if err := ioctl(fd, uiSetEvBit, evKey); err != nil {
			return fail(err)
		}
		for _, code := range keys {
			if err := ioctl(fd, uiSetKeyBit, uintptr(code)); err != nil {
				return fail(err)
			}
		}
	}

	if len(abs) > 0 {
		if err := ioctl(fd, uiSetEvBit, evAbs); err != nil {
			return fail(err)
		}
		for _, spec := range abs {
			if err := ioctl(fd, uiSetAbsBit, uintptr(spec.code)); err != nil {
				return fail(err)
			}
		}
	}

	if len(rels) > 0 {
		if err := ioctl(fd, uiSetEvBit, evRel); err != nil {
			return fail(err)
		}
		for _, code := range rels {
			if err := ioctl(fd, uiSetRelBit, uintptr(code)); err != nil {
				return fail(err)
			}
		}
	}

	if accelerometer {
		if err := ioctl(fd, uiSetPropBit, inputPropAccelerometer); err != nil {
			return fail(err)
		}
	}

	if err := setupModern(fd, name, id, abs); err != nil {
		// Fall back to the legacy setup block on kernels without
		// UI_DEV_SETUP, at the cost of the axis resolution.
		if err != unix.EINVAL && err != unix.ENOTTY {
			return fail(err)
		}
		if err := setupLegacy(f, name, id, abs); err != nil {
			return fail(err)
		}
	}

	if err := ioctl(fd, uiDevCreate, 0); err != nil {
		return fail(err)
	}

	return &device{
		f:     f,
		state: make(map[uint32]int32),
	}, nil
}

func setupModern(fd uintptr, name string, id inputID, abs []absSpec) error {
	var setup uinputSetup
	copy(setup.Name[:len(setup.Name)-1], name)
	setup.ID = id

	if err := ioctl(fd, uiDevSetup, uintptr(unsafe.Pointer(&setup))); err != nil {
		return err
	}

	for _, spec := range abs {
		as := uinputAbsSetup{
			Code:    spec.code,
			Absinfo: absinfoOf(spec.abs),
		}
		if err := ioctl(fd, uiAbsSetup, uintptr(unsafe.Pointer(&as))); err != nil {
			return err
		}
	}

	return nil
}

func absinfoOf(abs steamctl.AbsInfo) inputAbsinfo {
	return inputAbsinfo{
		Minimum:    abs.Min,
		Maximum:    abs.Max,
		Fuzz:       abs.Fuzz,
		Flat:       abs.Flat,
		Resolution: abs.Resolution,
	}
}

func setupLegacy(f *os.File, name string, id inputID, abs []absSpec) error {
	var ud userDev
	copy(ud.Name[:len(ud.Name)-1], name)
	ud.ID = id
	for _, spec := range abs {
		ud.AbsMin[spec.code] = spec.abs.Min
		ud.AbsMax[spec.code] = spec.abs.Max
		ud.AbsFuzz[spec.code] = spec.abs.Fuzz
		ud.AbsFlat[spec.code] = spec.abs.Flat
	}

	buf := (*[unsafe.Sizeof(userDev{})]byte)(unsafe.Pointer(&ud))[:]
	_, err := f.Write(buf)
	return err
}

func (d *device) emit(typ uint16, code uint16, value int32) {
	key := uint32(typ)<<16 | uint32(code)
	if prev, ok := d.state[key]; ok && prev == value {
		return
	}
	d.state[key] = value

	d.queue = append(d.queue, inputEvent{Type: typ, Code: code, Value: value})
}

func (d *device) rel(code uint16, delta int32) {
	if delta == 0 {
		return
	}
	d.queue = append(d.queue, inputEvent{Type: evRel, Code: code, Value: delta})
}

func (d *device) flush() error {
	if len(d.queue) == 0 {
		return nil
	}

	d.queue = append(d.queue, inputEvent{Type: evSyn, Code: synReport})

	size := int(unsafe.Sizeof(inputEvent{}))
	buf := make([]byte, 0, size*len(d.queue))
	for i := range d.queue {
		ev := (*[unsafe.Sizeof(inputEvent{})]byte)(unsafe.Pointer(&d.queue[i]))[:]
		buf = append(buf, ev...)
	}

	d.queue = d.queue[:0]

	_, err := d.f.Write(buf)
	return err
}

func (d *device) close() error {
	ioctl(d.f.Fd(), uiDevDestroy, 0)
	return d.f.Close()
}

var buttonCodes = map[steamctl.Button]uint16{
	steamctl.ButtonA:             btnSouth,
	steamctl.ButtonB:             btnEast,
	steamctl.ButtonX:             btnWest,
	steamctl.ButtonY:             btnNorth,
	steamctl.ButtonSelect:        btnSelect,
	steamctl.ButtonMode:          btnMode,
	steamctl.ButtonStart:         btnStart,
	steamctl.ButtonShoulderLeft:  btnTL,
	steamctl.ButtonShoulderRight: btnTR,
	steamctl.ButtonTriggerLeft:   btnTL2,
	steamctl.ButtonTriggerRight:  btnTR2,
	steamctl.ButtonGripLeft:      btnC,
	steamctl.ButtonGripRight:     btnZ,
	steamctl.ButtonThumbLeft:     btnThumbL,
	steamctl.ButtonThumbRight:    btnThumbR,
	steamctl.ButtonStick:         btnStickClick,
}

// Sensor axes go to the accelerometer device, everything else to the
// gamepad device.
type axisRoute struct {
	sensor bool
	code   uint16
}

var axisRoutes = map[steamctl.Axis]axisRoute{
	steamctl.AxisStickX:       {false, absX},
	steamctl.AxisStickY:       {false, absY},
	steamctl.AxisLeftPadX:     {false, absHat0X},
	steamctl.AxisLeftPadY:     {false, absHat0Y},
	steamctl.AxisRightPadX:    {false, absHat1X},
	steamctl.AxisRightPadY:    {false, absHat1Y},
	steamctl.AxisTriggerLeft:  {false, absBrake},
	steamctl.AxisTriggerRight: {false, absGas},
	steamctl.AxisAccelX:       {true, absX},
	steamctl.AxisAccelY:       {true, absY},
	steamctl.AxisAccelZ:       {true, absZ},
	steamctl.AxisGyroX:        {true, absRX},
	steamctl.AxisGyroY:        {true, absRY},
	steamctl.AxisGyroZ:        {true, absRZ},
	steamctl.AxisTiltX:        {true, absTiltX},
	steamctl.AxisTiltY:        {true, absTiltY},
}

var relCodes = map[steamctl.Axis]uint16{
	steamctl.AxisGyroX: relRX,
	steamctl.AxisGyroY: relRY,
	steamctl.AxisGyroZ: relRZ,
}

// Factory creates uinput-backed sinks.
func Factory(info steamctl.SinkInfo) (steamctl.Sink, error) {
	log := zap.L().With(
		zap.String("component", "sink.uinput"),
		zap.String("serial", info.Serial),
	)

	id := inputID{
		Bustype: busUSB,
		Vendor:  info.Vendor,
		Product: info.Product,
		Version: info.Version,
	}

	keys := make([]uint16, 0, len(info.Buttons))
	for _, b := range info.Buttons {
		code, ok := buttonCodes[b]
		if !ok {
			return nil, fmt.Errorf("no key code for button %s", b)
		}
		keys = append(keys, code)
	}

	var gamepadAbs, sensorAbs []absSpec
	for _, axis := range info.Axes {
		route, ok := axisRoutes[axis.Axis]
		if !ok {
			return nil, fmt.Errorf("no abs code for axis %s", axis.Axis)
		}
		spec := absSpec{code: route.code, abs: axis.Abs}
		if route.sensor {
			sensorAbs = append(sensorAbs, spec)
		} else {
			gamepadAbs = append(gamepadAbs, spec)
		}
	}

	var sensorRels []uint16
	for _, axis := range info.RelAxes {
		code, ok := relCodes[axis]
		if !ok {
			return nil, fmt.Errorf("no rel code for axis %s", axis)
		}
		sensorRels = append(sensorRels, code)
	}

	gamepad, err := createDevice(info.Name, id, keys, gamepadAbs, nil, false)
	if err != nil {
		return nil, err
	}

	var sensor *device
	if len(sensorAbs) > 0 || len(sensorRels) > 0 {
		sensor, err = createDevice(info.Name+" Accelerometer", id, nil, sensorAbs, sensorRels, true)
		if err != nil {
			gamepad.close()
			return nil, err
		}
	}

	log.Info("virtual devices created",
		zap.Bool("sensor", sensor != nil))

	return &sink{
		log:     log,
		gamepad: gamepad,
		sensor:  sensor,
	}, nil
}

type sink struct {
	log     *zap.Logger
	gamepad *device
	sensor  *device
}

func (s *sink) SetButton(b steamctl.Button, pressed bool) {
	code, ok := buttonCodes[b]
	if !ok {
		return
	}

	var value int32
	if pressed {
		value = 1
	}

	s.gamepad.emit(evKey, code, value)
}

func (s *sink) SetAxis(a steamctl.Axis, value int32) {
	route, ok := axisRoutes[a]
	if !ok {
		return
	}

	dev := s.gamepad
	if route.sensor {
		dev = s.sensor
	}
	if dev == nil {
		return
	}

	dev.emit(evAbs, route.code, value)
}

func (s *sink) MoveRel(a steamctl.Axis, delta int32) {
	code, ok := relCodes[a]
	if !ok || s.sensor == nil {
		return
	}

	s.sensor.rel(code, delta)
}

func (s *sink) Sync() error {
	if err := s.gamepad.flush(); err != nil {
		return err
	}
	if s.sensor != nil {
		return s.sensor.flush()
	}
	return nil
}

func (s *sink) Close() error {
	err := s.gamepad.close()
	if s.sensor != nil {
		if serr := s.sensor.close(); err == nil {
			err = serr
		}
	}
	return err
}
