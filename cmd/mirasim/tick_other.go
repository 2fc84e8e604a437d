//go:build !linux

package main

import "time"

// channelTickSource is the portable fallback real-clock driver for
// platforms without eventfd: a plain time.Ticker channel, matching the
// teacher's own wakeup_windows.go/wakeup_darwin.go pattern of a
// non-Linux fallback living alongside the Linux-specific implementation.
type channelTickSource struct {
	ticker *time.Ticker
	ticks  uint64
	stop   chan struct{}
}

func newChannelTickSource(interval time.Duration) *channelTickSource {
	return &channelTickSource{
		ticker: time.NewTicker(interval),
		stop:   make(chan struct{}),
	}
}

func (t *channelTickSource) Next() (uint64, bool) {
	select {
	case <-t.stop:
		return 0, false
	case <-t.ticker.C:
		t.ticks++
		return t.ticks, true
	}
}

func (t *channelTickSource) Close() {
	close(t.stop)
	t.ticker.Stop()
}

func newHostTickSource(interval time.Duration) (hostTickSource, error) {
	return newChannelTickSource(interval), nil
}
