// Package gateway owns the TCP link to the bulb gateway and drains the
// command queue onto it.
package gateway

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"lightfun-controller/internal/core"
	"lightfun-controller/internal/queue"
)

// Receiver is implemented by the host to learn about the link and the bulb.
type Receiver interface {
	OnConnect()
	OnDisconnect()
	OnInitState(state core.LightState)
}

// Poster runs fn on the context the host wants callbacks delivered on.
type Poster func(fn func())

// Options tunes the executor loop.
type Options struct {
	DialTimeout       time.Duration
	RetryInterval     time.Duration
	PollInterval      time.Duration
	KeepaliveInterval time.Duration
	ReadTimeout       time.Duration
	ReadAttempts      int
	RateLimit         float64
	RateBurst         int
}

// DefaultOptions returns the timings the gateway was designed around.
func DefaultOptions() Options {
	return Options{
		DialTimeout:       5 * time.Second,
		RetryInterval:     3 * time.Second,
		PollInterval:      100 * time.Millisecond,
		KeepaliveInterval: 5 * time.Second,
		ReadTimeout:       250 * time.Millisecond,
		ReadAttempts:      20,
		RateLimit:         20,
		RateBurst:         5,
	}
}

// Executor is the single consumer of the command queue. All socket I/O
// happens on the goroutine running Run.
type Executor struct {
	addr     string
	queue    *queue.CommandQueue
	receiver Receiver
	post     Poster
	opts     Options
	limiter  *rate.Limiter

	dial func(ctx context.Context, network, address string) (net.Conn, error)
	now  func() time.Time

	conn         *conn
	lastExchange time.Time
	state        atomic.Int32
}

// NewExecutor creates an executor for host:port. Changing the address means
// creating a new executor.
func NewExecutor(host string, port int, q *queue.CommandQueue, receiver Receiver, post Poster, opts Options) *Executor {
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}
	if opts.ReadAttempts <= 0 {
		opts.ReadAttempts = 1
	}

	var d net.Dialer
	return &Executor{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		queue:    q,
		receiver: receiver,
		post:     post,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, burst),
		dial:     d.DialContext,
		now:      time.Now,
	}
}

// State reports the current connection state.
func (e *Executor) State() core.ConnectionState {
	return core.ConnectionState(e.state.Load())
}

// Addr returns the gateway address.
func (e *Executor) Addr() string {
	return e.addr
}

// Run drives the connection until ctx is cancelled.
func (e *Executor) Run(ctx context.Context) {
	log.Printf("[Gateway] Executor started for %s.", e.addr)
	defer e.shutdown()

	for {
		if ctx.Err() != nil {
			return
		}
		wait := e.step(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// step runs one iteration of the loop and returns how long to wait before
// the next one.
func (e *Executor) step(ctx context.Context) time.Duration {
	if e.conn == nil {
		if err := e.connect(ctx); err != nil {
			log.Printf("[Gateway] Connect to %s failed: %v. Retrying in %s.", e.addr, err, e.opts.RetryInterval)
			return e.opts.RetryInterval
		}
		return e.opts.PollInterval
	}

	if cmd := e.queue.FetchNext(); cmd != nil {
		e.dispatch(ctx, cmd)
		return e.opts.PollInterval
	}

	if e.now().Sub(e.lastExchange) >= e.opts.KeepaliveInterval {
		e.keepalive()
	}
	return e.opts.PollInterval
}

func (e *Executor) connect(ctx context.Context) error {
	e.state.Store(int32(core.Connecting))

	dctx, cancel := context.WithTimeout(ctx, e.opts.DialTimeout)
	defer cancel()

	nc, err := e.dial(dctx, "tcp", e.addr)
	if err != nil {
		e.state.Store(int32(core.Disconnected))
		return err
	}

	e.conn = newConn(nc, e.opts.ReadTimeout, e.opts.ReadAttempts)
	e.lastExchange = e.now()
	e.state.Store(int32(core.Connected))
	log.Printf("[Gateway] Connected to %s.", e.addr)

	e.notify(func() { e.receiver.OnConnect() })
	return nil
}

// dispatch sends cmd. The command is consumed whatever the outcome.
func (e *Executor) dispatch(ctx context.Context, cmd *core.Command) {
	reqs, err := Encode(cmd)
	if err != nil {
		log.Printf("[Gateway] Dropping %s: %v", cmd, err)
		return
	}

	replies := make([]string, 0, len(reqs))
	for _, req := range reqs {
		reply, err := e.exchange(ctx, req)
		if err != nil {
			if isRejection(err) {
				log.Printf("[Gateway] %s (%s) rejected: %v", cmd, cmd.ID, err)
			} else {
				log.Printf("[Gateway] %s (%s) dropped: %v", cmd, cmd.ID, err)
			}
			return
		}
		replies = append(replies, reply)
	}

	if cmd.Kind != core.KindQueryState {
		return
	}
	state, err := ParseState(replies[0], replies[1])
	if err != nil {
		log.Printf("[Gateway] Discarding state reply: %v", err)
		return
	}
	e.notify(func() { e.receiver.OnInitState(state) })
}

// exchange performs one request/reply round trip. Transport failures tear
// the connection down; rejections leave it up.
func (e *Executor) exchange(ctx context.Context, req string) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}
	if e.conn == nil {
		return "", fmt.Errorf("%q: not connected", req)
	}

	reply, err := e.conn.request(req)
	if err != nil && !isRejection(err) {
		e.disconnect(err)
		return "", err
	}
	e.lastExchange = e.now()
	return reply, err
}

// keepalive sends an empty request without waiting for the reply, so a peer
// that vanished silently shows up as a write failure.
func (e *Executor) keepalive() {
	if err := e.conn.send(ReqKeepalive); err != nil {
		e.disconnect(fmt.Errorf("keepalive: %w", err))
		return
	}
	e.lastExchange = e.now()
}

func (e *Executor) disconnect(cause error) {
	if e.conn == nil {
		return
	}
	log.Printf("[Gateway] Connection to %s lost: %v", e.addr, cause)
	_ = e.conn.close()
	e.conn = nil
	e.state.Store(int32(core.Disconnected))
	e.notify(func() { e.receiver.OnDisconnect() })
}

// shutdown closes the link without notifying the receiver.
func (e *Executor) shutdown() {
	if e.conn != nil {
		_ = e.conn.close()
		e.conn = nil
	}
	e.state.Store(int32(core.Disconnected))
	log.Println("[Gateway] Executor stopped.")
}

func (e *Executor) notify(fn func()) {
	if e.receiver == nil {
		return
	}
	if e.post != nil {
		e.post(fn)
		return
	}
	fn()
}
