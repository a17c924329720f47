package telelink

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var retrySleep = time.Second

// Source is a signal source that can be reopened after it fails, such as the
// CAN bus or the ECU line.
type Source interface {
	Open() error
	Close() error
	// Start blocks while the source delivers signals.
	Start(ctx context.Context) error
	Name() string
}

// supervise keeps src running until ctx is done, closing and reopening it
// after every failure.
func supervise(ctx context.Context, src Source) error {
	errStarting := errors.New("starting")
	err := errStarting
	for {
		select {
		case <-ctx.Done():
			if closeErr := src.Close(); closeErr != nil {
				log.WithField("err", closeErr).Warnf("%s: unable to close", src.Name())
			}
			return ctx.Err()
		default:
		}
		if err != nil {
			if err != errStarting {
				log.WithField("err", err).Errorf("%s: reconnecting due to error", src.Name())
				if err = src.Close(); err != nil {
					log.WithField("err", err).Warnf("%s: unable to close", src.Name())
				}
				select {
				case <-ctx.Done():
					continue
				case <-time.After(retrySleep):
				}
			}
			err = src.Open()
			if err != nil {
				continue
			}
			log.Infof("%s: opened", src.Name())
		}
		err = src.Start(ctx)
	}
}
