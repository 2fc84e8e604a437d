//go:build linux

package main

import (
	"time"

	"golang.org/x/sys/unix"
)

// eventfdTickSource drives the kernel's timer tick from a real OS ticker,
// signaled through a Linux eventfd exactly as the teacher's wakeup_linux.go
// uses unix.Eventfd for its loop wakeup pipe, repurposed here as the
// simulation harness's real-clock analogue of the 1kHz hardware timer
// interrupt.
type eventfdTickSource struct {
	fd     int
	ticker *time.Ticker
	ticks  uint64
	stop   chan struct{}
	done   chan struct{}
}

func newEventfdTickSource(interval time.Duration) (*eventfdTickSource, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	t := &eventfdTickSource{
		fd:     fd,
		ticker: time.NewTicker(interval),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go t.pump()
	return t, nil
}

// pump writes one 8-byte count to the eventfd per host tick, the same
// write-to-wake-the-fd idiom the teacher's drainWakeUpPipe pairs with.
func (t *eventfdTickSource) pump() {
	defer close(t.done)
	buf := [8]byte{0, 0, 0, 0, 0, 0, 0, 1}
	for {
		select {
		case <-t.stop:
			return
		case <-t.ticker.C:
			_, _ = unix.Write(t.fd, buf[:])
		}
	}
}

// Next blocks until the next host tick, draining the eventfd counter, and
// returns the simulation's own monotonic tick count.
func (t *eventfdTickSource) Next() (uint64, bool) {
	var buf [8]byte
	for {
		select {
		case <-t.stop:
			return 0, false
		default:
		}
		_, err := unix.Read(t.fd, buf[:])
		if err == nil {
			t.ticks++
			return t.ticks, true
		}
		if err == unix.EAGAIN {
			time.Sleep(time.Millisecond)
			continue
		}
		return 0, false
	}
}

func (t *eventfdTickSource) Close() {
	close(t.stop)
	t.ticker.Stop()
	<-t.done
	_ = unix.Close(t.fd)
}

func newHostTickSource(interval time.Duration) (hostTickSource, error) {
	return newEventfdTickSource(interval)
}
