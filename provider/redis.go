package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/minhng/evictsync/logging"
	"github.com/minhng/evictsync/types"
)

// RedisOptions configures a RedisProvider.
type RedisOptions struct {
	// Addr is the Redis server address (e.g. "localhost:6379").
	Addr string

	// Password is the optional Redis password.
	Password string

	// DB is the Redis database number.
	DB int

	// Channel is the pub/sub channel carrying eviction events.
	Channel string

	// NodeID is this node's identity, used for self-suppression.
	NodeID string

	// Codec encodes events for the wire. Defaults to JSON.
	Codec types.Codec

	// Client optionally supplies a preconstructed client; the provider then
	// does not own (and never closes) it.
	Client *redis.Client

	DedupCapacity int
	DedupWindow   time.Duration
	SweepInterval time.Duration
	Logger        logging.Logger
	Metrics       *Metrics
}

// RedisProvider broadcasts eviction events over a Redis pub/sub channel and
// applies the receive-side protocol to incoming messages.
type RedisProvider struct {
	client     *redis.Client
	ownsClient bool
	channel    string
	nodeID     string
	codec      types.Codec

	dedup         *DedupTable
	sweepInterval time.Duration
	logger        logging.Logger
	metrics       *Metrics

	mu          sync.Mutex
	initialized bool
	pubsub      *redis.PubSub
	done        chan struct{}
	wg          sync.WaitGroup

	listenerMu sync.RWMutex
	listener   Listener
}

// NewRedisProvider creates a Redis-backed provider. No connection is made
// until Initialize.
func NewRedisProvider(opts RedisOptions) *RedisProvider {
	if opts.Logger == nil {
		opts.Logger = logging.NewNoOpLogger()
	}
	if opts.Codec == nil {
		opts.Codec = types.JSONCodec{}
	}

	client := opts.Client
	owns := false
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		})
		owns = true
	}

	return &RedisProvider{
		client:        client,
		ownsClient:    owns,
		channel:       opts.Channel,
		nodeID:        opts.NodeID,
		codec:         opts.Codec,
		dedup:         NewDedupTable(opts.DedupCapacity, opts.DedupWindow),
		sweepInterval: opts.SweepInterval,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
	}
}

// Name returns "redis".
func (p *RedisProvider) Name() string { return "redis" }

// Initialize pings the backend, subscribes to the eviction channel and
// starts the receive goroutine. Repeat calls are no-ops.
func (p *RedisProvider) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}

	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendDown, err)
	}

	p.pubsub = p.client.Subscribe(ctx, p.channel)
	p.done = make(chan struct{})
	p.dedup.StartSweeper(p.sweepInterval)

	p.wg.Add(1)
	go p.listen(p.pubsub, p.done)

	p.initialized = true
	p.logger.Info("redis provider initialized", "channel", p.channel, "node", p.nodeID)
	return nil
}

// Shutdown closes the subscription, joins the receive goroutine and the
// dedup sweeper, and deregisters the listener so a re-initialized instance
// never receives callbacks meant for a previous one. Safe without a prior
// Initialize.
func (p *RedisProvider) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return nil
	}

	close(p.done)
	err := p.pubsub.Close()
	p.wg.Wait()
	p.dedup.StopSweeper()

	p.listenerMu.Lock()
	p.listener = nil
	p.listenerMu.Unlock()

	p.pubsub = nil
	p.initialized = false

	if p.ownsClient {
		if closeErr := p.client.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}

// BroadcastEviction publishes the event to the channel. It returns an error
// when the backend is unreachable so the retry layer can take over.
func (p *RedisProvider) BroadcastEviction(ctx context.Context, event types.CacheEvictionEvent) error {
	p.mu.Lock()
	initialized := p.initialized
	p.mu.Unlock()
	if !initialized {
		return ErrNotInitialized
	}

	data, err := p.codec.Encode(event)
	if err != nil {
		return fmt.Errorf("encode eviction event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendDown, err)
	}
	p.metrics.recordSent()
	return nil
}

// SubscribeToEvictions registers the listener. Duplicates are ignored.
func (p *RedisProvider) SubscribeToEvictions(listener Listener) {
	p.listenerMu.Lock()
	defer p.listenerMu.Unlock()
	if p.listener != nil {
		p.logger.Warn("duplicate listener registration ignored", "provider", p.Name())
		return
	}
	p.listener = listener
}

// IsAvailable pings the backend freshly on every call; a backend that
// recovered since the last call becomes selectable again without a restart.
func (p *RedisProvider) IsAvailable(ctx context.Context) bool {
	return p.client.Ping(ctx).Err() == nil
}

// Stats returns a snapshot recomputed on demand.
func (p *RedisProvider) Stats(ctx context.Context) Stats {
	return Stats{
		Provider:       p.Name(),
		NodeID:         p.nodeID,
		Cluster:        fmt.Sprintf("redis:%s/%s", p.client.Options().Addr, p.channel),
		Connected:      p.IsAvailable(ctx),
		EventsSent:     p.metrics.sentCount(),
		EventsReceived: p.metrics.receivedCount(),
	}
}

// listen consumes pub/sub messages until shutdown.
func (p *RedisProvider) listen(pubsub *redis.PubSub, done chan struct{}) {
	defer p.wg.Done()

	ch := pubsub.Channel()
	for {
		select {
		case <-done:
			return
		case msg, ok := <-ch:
			if !ok || msg == nil {
				return
			}
			event, err := p.codec.Decode([]byte(msg.Payload))
			if err != nil {
				p.metrics.recordFailure()
				p.logger.Warn("undecodable eviction payload ignored", "error", err)
				continue
			}
			p.listenerMu.RLock()
			listener := p.listener
			p.listenerMu.RUnlock()
			deliver(event, p.nodeID, p.dedup, listener, p.metrics, p.logger)
		}
	}
}
