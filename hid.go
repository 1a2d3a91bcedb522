package steamctl

import (
	"context"
	"time"

	"github.com/sstallion/go-hid"
	"go.uber.org/zap"
)

// USB identifiers of the supported devices.
const (
	VendorValve     = 0x28DE
	ProductWired    = 0x1102
	ProductReceiver = 0x1142
)

var products = map[uint16]DeviceKind{
	ProductWired:    KindWired,
	ProductReceiver: KindReceiver,
}

type hidDevice struct {
	*hid.Device
}

func (d hidDevice) ReportDescriptor() ([]byte, error) {
	buf := make([]byte, 4096)
	n, err := d.Device.GetReportDescriptor(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Rescan enumerates matching HID interfaces and attaches any new ones
// to the service. Interfaces are keyed by their platform path, so an
// interface that was detached and replugged is attached again.
func Rescan(svc Service) error {
	log := zap.L().With(
		zap.String("component", "hid"),
	)

	attached := make(map[string]bool)
	for _, session := range svc.Sessions() {
		attached[session.ID()] = true
	}

	seen := make(map[string]bool)

	for product, kind := range products {
		err := hid.Enumerate(VendorValve, product, func(info *hid.DeviceInfo) error {
			seen[info.Path] = true

			if attached[info.Path] {
				return nil
			}

			dev, err := hid.OpenPath(info.Path)
			if err != nil {
				log.Warn("cannot open device",
					zap.String("path", info.Path),
					zap.Error(err))
				return nil
			}

			if _, err := svc.Attach(info.Path, hidDevice{dev}, kind); err != nil {
				log.Warn("cannot attach device",
					zap.String("path", info.Path),
					zap.Error(err))
				dev.Close()
			}

			return nil
		})
		if err != nil {
			return err
		}
	}

	// Detach interfaces that disappeared.
	for id := range attached {
		if !seen[id] {
			svc.Detach(id)
		}
	}

	return nil
}

// Watch keeps the service in sync with plugged devices until the
// context is done.
func Watch(ctx context.Context, svc Service, interval time.Duration) {
	log := zap.L().With(
		zap.String("component", "hid"),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := Rescan(svc); err != nil {
				log.Error("rescan failed", zap.Error(err))
			}
		}
	}
}
