package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/arenahub/playground-client/internal/errors"
	"github.com/arenahub/playground-client/internal/model"
)

const keepAliveTimeout = 30 * time.Second

// Refresher is the portal manager surface the keep-alive job drives.
type Refresher interface {
	RefreshIfNeeded(ctx context.Context, force bool) (*model.Session, error)
}

// PortalKeepAliveJob refreshes the portal access token ahead of use so a
// long-lived client rarely pays for a refresh on a user request. It shares
// the manager's single flight, so a tick racing a request still produces one
// refresh call.
type PortalKeepAliveJob struct {
	refresher Refresher
	interval  time.Duration
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewPortalKeepAliveJob(refresher Refresher, interval time.Duration) *PortalKeepAliveJob {
	return &PortalKeepAliveJob{
		refresher: refresher,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

func (j *PortalKeepAliveJob) Start() {
	j.wg.Add(1)
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("portal keep-alive started")
}

// Stop is safe to call more than once and returns after the last tick ends.
func (j *PortalKeepAliveJob) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
		log.Info().Msg("portal keep-alive stopped")
	})
}

func (j *PortalKeepAliveJob) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.tick()
		}
	}
}

func (j *PortalKeepAliveJob) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), keepAliveTimeout)
	defer cancel()

	_, err := j.refresher.RefreshIfNeeded(ctx, false)
	switch {
	case err == nil:
	case apperrors.Is(err, apperrors.ErrCodePortalSessionInvalid):
		// nothing to keep alive: signed out, public user or no refresh token
		log.Debug().Err(err).Msg("portal keep-alive skipped")
	default:
		log.Warn().Err(err).Msg("portal keep-alive refresh failed")
	}
}
