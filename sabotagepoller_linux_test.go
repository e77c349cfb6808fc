//go:build linux

package eventloop

import "golang.org/x/sys/unix"

// SabotagePoller closes the internal epoll/kqueue FD.
// This guarantees the NEXT call to pollIO() will return EBADF.
func sabotagePoller(l *Loop) {
	l.poller.mu.Lock()
	defer l.poller.mu.Unlock()

	// Linux
	if l.poller.epfd > 0 {
		unix.Close(l.poller.epfd)
		// CRITICAL: Do NOT set initialized = false or -1.
		// We want pollIO to attempt using the closed FD to trigger the error.
	}
}
