package steamctl

import (
	"go.uber.org/zap"
)

func LoggingMiddleware(log *zap.Logger) ServiceMiddleware {
	return func(next Service) Service {
		log := log.With(
			zap.String("service", "steamctl"),
		)

		log.Info("service built")

		return &loggingMiddleware{log, next}
	}
}

type loggingMiddleware struct {
	log  *zap.Logger
	next Service
}

func (mw *loggingMiddleware) Attach(id string, dev Device, kind DeviceKind) (*Session, error) {
	log := mw.log.With(
		zap.String("action", "attach"),
		zap.String("device", id),
		zap.String("kind", kind.String()),
	)

	session, err := mw.next.Attach(id, dev, kind)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("attached", zap.Bool("raw", session.Raw()))
	return session, nil
}

func (mw *loggingMiddleware) Detach(id string) error {
	log := mw.log.With(
		zap.String("action", "detach"),
		zap.String("device", id),
	)

	if err := mw.next.Detach(id); err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("detached")
	return nil
}

func (mw *loggingMiddleware) Session(id string) (*Session, error) {
	return mw.next.Session(id)
}

func (mw *loggingMiddleware) Sessions() []*Session {
	return mw.next.Sessions()
}

func (mw *loggingMiddleware) Close() error {
	return mw.next.Close()
}
