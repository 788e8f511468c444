package discovery

import (
	"context"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// Prober answers whether a single address is reachable.
type Prober interface {
	Probe(ctx context.Context, addr string, timeout time.Duration) bool
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, addr string, timeout time.Duration) bool

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context, addr string, timeout time.Duration) bool {
	return f(ctx, addr, timeout)
}

// ICMPProber sends a single echo request using pro-bing.
type ICMPProber struct {
	privileged bool
}

// NewICMPProber creates an ICMP prober. Privileged mode uses raw sockets;
// otherwise unprivileged datagram ICMP is used where the OS allows it.
func NewICMPProber(privileged bool) *ICMPProber {
	return &ICMPProber{privileged: privileged}
}

// Probe sends one echo request and waits up to timeout for a reply. Any
// failure, including lack of permission, counts as not live.
func (p *ICMPProber) Probe(ctx context.Context, addr string, timeout time.Duration) bool {
	pinger, err := probing.NewPinger(addr)
	if err != nil {
		return false
	}

	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(p.privileged || runtime.GOOS == "windows")

	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case runErr := <-done:
		if runErr != nil {
			return false
		}
		return pinger.Statistics().PacketsRecv > 0
	case <-ctx.Done():
		pinger.Stop()
		<-done
		return false
	}
}
