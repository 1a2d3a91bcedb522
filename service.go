package steamctl

import (
	"bytes"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/cvuchener/steamctl/protocol"
)

var (
	ErrAlreadyAttached = errors.New("interface already attached")
	ErrSessionNotFound = errors.New("session not found")
)

// Service is the driver registry: it owns one Session per attached HID
// interface, keyed by interface identifier.
type Service interface {
	Attach(id string, dev Device, kind DeviceKind) (*Session, error)
	Detach(id string) error
	Session(id string) (*Session, error)
	Sessions() []*Session
	Close() error
}

type ServiceMiddleware func(next Service) Service

func NewService(cfg *Config, factory SinkFactory) Service {
	return &service{
		log: zap.L().With(
			zap.String("service", "steamctl"),
		),
		cfg:      cfg,
		factory:  factory,
		sessions: make(map[string]*Session),
	}
}

type service struct {
	log      *zap.Logger
	cfg      *Config
	factory  SinkFactory
	sessions map[string]*Session
	sync.RWMutex
}

// Attach creates a session for a matching HID interface. The vendor
// protocol is only enabled when the interface's report descriptor is
// exactly the known vendor descriptor; any other interface is a generic
// keyboard/mouse passthrough and receives no decoding.
func (svc *service) Attach(id string, dev Device, kind DeviceKind) (*Session, error) {
	svc.Lock()
	defer svc.Unlock()

	if _, ok := svc.sessions[id]; ok {
		return nil, ErrAlreadyAttached
	}

	desc, err := dev.ReportDescriptor()
	if err != nil {
		return nil, err
	}

	raw := bytes.Equal(desc, protocol.RawReportDescriptor[:])

	session := newSession(id, dev, kind, raw, svc.cfg, svc.factory)
	svc.sessions[id] = session

	svc.log.Info("interface attached",
		zap.String("device", id),
		zap.String("kind", kind.String()),
		zap.Bool("raw", raw))

	return session, nil
}

func (svc *service) Detach(id string) error {
	svc.Lock()
	session, ok := svc.sessions[id]
	if !ok {
		svc.Unlock()
		return ErrSessionNotFound
	}
	delete(svc.sessions, id)
	svc.Unlock()

	err := session.Close()

	svc.log.Info("interface detached",
		zap.String("device", id))

	return err
}

func (svc *service) Session(id string) (*Session, error) {
	svc.RLock()
	defer svc.RUnlock()

	session, ok := svc.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	return session, nil
}

func (svc *service) Sessions() []*Session {
	svc.RLock()
	defer svc.RUnlock()

	sessions := make([]*Session, 0, len(svc.sessions))
	for _, session := range svc.sessions {
		sessions = append(sessions, session)
	}

	return sessions
}

func (svc *service) Close() error {
	svc.Lock()
	sessions := svc.sessions
	svc.sessions = make(map[string]*Session)
	svc.Unlock()

	var errs []error
	for _, session := range sessions {
		if err := session.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
