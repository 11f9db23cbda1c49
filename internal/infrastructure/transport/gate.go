package transport

import (
	"context"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Gate spaces requests to one remote host. It is shared by every worker so
// adding workers never raises the real request rate.
type Gate struct {
	limiter *rate.Limiter
}

// NewGate allows perSecond requests with the given burst. perSecond <= 0
// disables limiting.
func NewGate(perSecond float64, burst int) *Gate {
	if perSecond <= 0 {
		return &Gate{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	if burst < 1 {
		burst = 1
	}
	return &Gate{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until the next request may be issued. A nil gate never blocks.
func (g *Gate) Wait(ctx context.Context) error {
	if g == nil || g.limiter == nil {
		return ctx.Err()
	}
	return g.limiter.Wait(ctx)
}

// NewDownloadClient builds a client with a bounded connect timeout, a longer
// total-transfer timeout and at most maxRedirects redirects.
func NewDownloadClient(connectTimeout, totalTimeout time.Duration, maxRedirects int) *http.Client {
	dialer := &net.Dialer{Timeout: connectTimeout}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = dialer.DialContext
	tr.TLSHandshakeTimeout = connectTimeout

	return &http.Client{
		Timeout:   totalTimeout,
		Transport: tr,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
