package responder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/benbrittain/aether-throughput/internal/config"
)

// readBufferSize bounds the largest datagram the responder will echo
const readBufferSize = 64 * 1024

// Responder is a UDP echo server: every datagram received is sent back to
// its source unchanged. Peers are tracked in an idle-expiring table and an
// optional token bucket caps the echo rate.
type Responder struct {
	conn        *net.UDPConn
	metricsAddr string
	limiter     *rate.Limiter // nil means unlimited
	peers       *ttlcache.Cache[string, uint64]
	metrics     *metrics
}

// New binds the responder socket and prepares the peer table
func New(args config.Args) (*Responder, error) {
	laddr, err := net.ResolveUDPAddr("udp", args.Bind)
	if err != nil {
		return nil, fmt.Errorf("resolve bind address %q: %w", args.Bind, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("bind %v: %w", laddr, err)
	}

	var limiter *rate.Limiter
	if args.MaxPPS > 0 {
		burst := int(args.MaxPPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(args.MaxPPS), burst)
	}

	r := &Responder{
		conn:        conn,
		metricsAddr: args.MetricsAddr,
		limiter:     limiter,
		peers:       ttlcache.New[string, uint64](ttlcache.WithTTL[string, uint64](args.IdleTimeout)),
		metrics:     newMetrics(),
	}

	r.peers.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, uint64]) {
		if reason == ttlcache.EvictionReasonExpired {
			slog.Debug("Peer idle, expiring", "peer", item.Key(), "datagrams", item.Value())
		}
		r.metrics.activePeers.Set(float64(r.peers.Len()))
	})

	return r, nil
}

// Addr returns the bound local address
func (r *Responder) Addr() net.Addr {
	return r.conn.LocalAddr()
}

// Run serves echoes until the context is canceled
func (r *Responder) Run(ctx context.Context) error {
	slog.Info("Responder listening", "addr", r.conn.LocalAddr())
	go r.peers.Start()

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.serveEcho(groupCtx)
	})

	if r.metricsAddr != "" {
		g.Go(func() error {
			return r.serveMetrics(groupCtx)
		})
	}

	g.Go(func() error {
		<-groupCtx.Done()
		r.peers.Stop()
		// Unblock the read loop
		r.conn.SetReadDeadline(time.Now())
		return nil
	})

	err := g.Wait()
	r.conn.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// serveEcho is the receive loop: track the peer, apply the rate cap, echo
func (r *Responder) serveEcho(ctx context.Context) error {
	buf := make([]byte, readBufferSize)
	for {
		n, addr, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			return fmt.Errorf("read datagram: %w", err)
		}

		r.touchPeer(addr)

		if r.limiter != nil && !r.limiter.Allow() {
			r.metrics.droppedTotal.Inc()
			continue
		}

		if _, err := r.conn.WriteToUDP(buf[:n], addr); err != nil {
			slog.Debug("Echo write failed", "peer", addr, "error", err)
			continue
		}
		r.metrics.echoedTotal.Inc()
	}
}

func (r *Responder) touchPeer(addr *net.UDPAddr) {
	key := addr.String()
	var count uint64
	if item := r.peers.Get(key); item != nil {
		count = item.Value()
	} else {
		slog.Debug("New peer", "peer", key)
	}
	r.peers.Set(key, count+1, ttlcache.DefaultTTL)
	r.metrics.activePeers.Set(float64(r.peers.Len()))
}

// serveMetrics exposes the Prometheus endpoint until the context is canceled
func (r *Responder) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.metrics.handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:    r.metricsAddr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Metrics listening", "addr", r.metricsAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
