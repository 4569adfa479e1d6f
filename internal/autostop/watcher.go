// Package autostop closes open time entries when the process is going away
// or the terminal loses focus.
package autostop

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sadopc/worklog/internal/store"
	"github.com/sadopc/worklog/internal/tracker"
)

// Store is what the watcher reads and writes.
type Store interface {
	GetSettings() (store.TrackingSettings, error)
	GetOpenTimeEntries() ([]store.TimeEntry, error)
	CloseTimeEntry(id string, end time.Time, durationSecs int64) error
}

type Watcher struct {
	tracker *tracker.Tracker
	store   Store
	now     func() time.Time
	signals []os.Signal
}

func New(t *tracker.Tracker, s Store) *Watcher {
	return &Watcher{
		tracker: t,
		store:   s,
		now:     time.Now,
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP},
	}
}

// OnClose flushes when StopOnClose is enabled. It returns the number of
// entries closed.
func (w *Watcher) OnClose() (int, error) {
	ts, err := w.store.GetSettings()
	if err != nil {
		return 0, fmt.Errorf("auto-stop on close: %w", err)
	}
	if !ts.StopOnClose {
		return 0, nil
	}
	return w.Flush()
}

// OnBlur flushes when StopOnTabSwitch is enabled.
func (w *Watcher) OnBlur() (int, error) {
	ts, err := w.store.GetSettings()
	if err != nil {
		return 0, fmt.Errorf("auto-stop on blur: %w", err)
	}
	if !ts.StopOnTabSwitch {
		return 0, nil
	}
	return w.Flush()
}

// Flush stops the tracker and then closes every entry still open in the
// store, rounding each elapsed time up to the next quantum. Entries closed
// concurrently by someone else are skipped.
func (w *Watcher) Flush() (int, error) {
	closed := 0
	entry, err := w.tracker.Stop(tracker.ReasonAutoStop)
	switch {
	case errors.Is(err, tracker.ErrNoOpenEntry):
	case err != nil:
		return 0, err
	case entry != nil:
		closed++
	}

	open, err := w.store.GetOpenTimeEntries()
	if err != nil {
		return closed, fmt.Errorf("auto-stop: %w", err)
	}
	now := w.now()
	var errs []error
	for _, e := range open {
		secs := tracker.Ceil900(int64(now.Sub(e.StartTime) / time.Second))
		err := w.store.CloseTimeEntry(e.ID, now, secs)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		closed++
	}
	if closed > 0 {
		log.Info("auto-stopped open entries", "count", closed)
	}
	return closed, errors.Join(errs...)
}

// Listen flushes (subject to StopOnClose) when an interrupt, SIGTERM or
// SIGHUP arrives, then cancels the returned context. The write is best
// effort: a second signal or a hard kill can still cut it short.
func (w *Watcher) Listen(ctx context.Context) (context.Context, context.CancelFunc) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, w.signals...)
	done, cancel := context.WithCancel(ctx)

	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			log.Info("signal received", "signal", sig)
			if n, err := w.OnClose(); err != nil {
				log.Error("auto-stop on signal", "err", err, "closed", n)
			}
			cancel()
		case <-done.Done():
		}
	}()
	return done, cancel
}
