package scheduler

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gorhill/cronexpr"
)

// Janitor deletes transient uploaded files once they outlive MaxAge. This is
// filesystem housekeeping on a cron schedule, independent of task lifecycle.
type Janitor struct {
	Dir      string
	MaxAge   time.Duration
	Schedule *cronexpr.Expression
	Logger   *log.Logger

	stop chan struct{}
	done chan struct{}
}

// NewJanitor parses the 5-field cron spec (e.g. "0 * * * *" for hourly).
func NewJanitor(dir string, maxAge time.Duration, spec string, logger *log.Logger) (*Janitor, error) {
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		return nil, err
	}
	return &Janitor{
		Dir:      dir,
		MaxAge:   maxAge,
		Schedule: expr,
		Logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

func (j *Janitor) Start() {
	go func() {
		defer close(j.done)
		for {
			next := j.Schedule.Next(time.Now())
			timer := time.NewTimer(time.Until(next))
			select {
			case <-j.stop:
				timer.Stop()
				return
			case <-timer.C:
				j.Sweep()
			}
		}
	}()
}

func (j *Janitor) Stop() {
	close(j.stop)
	<-j.done
}

// Sweep removes every regular file in Dir older than MaxAge. Errors on
// individual files are logged and skipped; the sweep keeps going.
func (j *Janitor) Sweep() {
	cutoff := time.Now().Add(-j.MaxAge)
	entries, err := os.ReadDir(j.Dir)
	if err != nil {
		j.Logger.Printf("sweep %s: %v", j.Dir, err)
		return
	}
	removed := 0
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		info, err := ent.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.Dir, ent.Name())
		if err := os.Remove(path); err != nil {
			j.Logger.Printf("sweep remove %s: %v", path, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		j.Logger.Printf("swept %d stale uploads from %s", removed, j.Dir)
	}
}
