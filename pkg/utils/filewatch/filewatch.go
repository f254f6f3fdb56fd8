package filewatch

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// UntilModifyContext returns a context that is canceled when any of the
// target files is written, created, removed or renamed.
//
// The daemon uses this to notice config-file updates and quit so that its
// supervisor restarts it with the new config.
func UntilModifyContext(ctx context.Context, targets ...string) (context.Context, func(), error) {
	cctx, cancel := context.WithCancelCause(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cancel(err)
		return nil, nil, err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				cancel(fmt.Errorf("%s is updated (%s)", event.Name, event.Op))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				cancel(err)
			}
		}
	}()

	for _, target := range targets {
		if err := watcher.Add(target); err != nil {
			cancel(err)
			return nil, nil, err
		}
	}

	return cctx, func() { cancel(nil) }, nil
}
