package pkg

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/appetiteclub/comanda/pkg/pending"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
)

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendNATS   = "nats"

	TransportNone     = "none"
	TransportNATS     = "nats"
	TransportRabbitMQ = "rabbitmq"
)

// Settings are the storage and messaging options shared by all services.
type Settings struct {
	StoreBackend  string
	StoreDir      string
	Optimistic    bool
	PendingKey    string
	TerminatedKey string
	NATSURL       string
	KVBucket      string
	PushTransport string
	StreamEnabled bool
	RabbitURL     string
}

func LoadSettings(config *aqm.Config) Settings {
	s := Settings{
		StoreBackend:  stringOr(config, "store.backend", BackendFile),
		StoreDir:      stringOr(config, "store.file.dir", "data"),
		Optimistic:    boolOr(config, "store.optimistic", false),
		PendingKey:    stringOr(config, "store.key.pending", pending.PendingKey),
		TerminatedKey: stringOr(config, "store.key.terminated", pending.TerminatedKey),
		NATSURL:       stringOr(config, "nats.url", DefaultNATSURL),
		KVBucket:      stringOr(config, "nats.kv.bucket", "COMANDA"),
		PushTransport: stringOr(config, "push.transport", TransportNone),
		StreamEnabled: boolOr(config, "nats.stream.enabled", false),
		RabbitURL:     stringOr(config, "rabbitmq.url", DefaultRabbitURL),
	}
	return s
}

// StoreOptions returns the pending store options these settings imply.
func (s Settings) StoreOptions(logger aqm.Logger) []pending.StoreOption {
	opts := []pending.StoreOption{
		pending.WithKey(s.PendingKey),
		pending.WithStoreLogger(logger),
	}
	if s.Optimistic {
		opts = append(opts, pending.WithOptimisticWrites())
	}
	return opts
}

// OpenBucket connects the configured bucket backend. The returned close
// function is never nil.
func OpenBucket(ctx context.Context, s Settings, logger aqm.Logger) (pending.Bucket, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch s.StoreBackend {
	case BackendMemory:
		logger.Info("using in-memory bucket, state is not shared between processes")
		return pending.NewMemoryBucket(), noop, nil

	case BackendFile, "":
		b, err := pending.NewFileBucket(s.StoreDir, logger)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("using file bucket", "dir", s.StoreDir)
		return b, noop, nil

	case BackendNATS:
		b, err := NewNATSKVBucket(ctx, s.NATSURL, s.KVBucket, logger)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("using NATS kv bucket", "bucket", s.KVBucket)
		return b, func(context.Context) error { return b.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", s.StoreBackend)
	}
}

// Push is the announcement channel between views. Both fields are nil when
// no transport is configured.
type Push struct {
	Publisher  events.Publisher
	Subscriber events.Subscriber
	Close      func(context.Context) error
}

// OpenPush connects the configured push transport. consumer names the
// durable JetStream consumer of this instance.
func OpenPush(ctx context.Context, s Settings, consumer string, logger aqm.Logger) (Push, error) {
	push := Push{Close: func(context.Context) error { return nil }}

	switch s.PushTransport {
	case TransportNone, "":
		return push, nil

	case TransportNATS:
		if s.StreamEnabled {
			stream, err := NewNATSStream(ctx, NATSStreamConfig{
				URL:          s.NATSURL,
				StreamName:   "COMANDA_ORDERS",
				Topic:        "orders.>",
				ConsumerName: consumer,
				MaxAge:       24 * time.Hour,
			}, logger)
			if err != nil {
				return push, err
			}
			logger.Info("NATS stream initialized for persistent events")
			push.Publisher = stream
			push.Subscriber = stream
			push.Close = func(context.Context) error { return stream.Close() }
			return push, nil
		}

		publisher, err := NewNATSPublisher(s.NATSURL)
		if err != nil {
			return push, err
		}
		subscriber, err := NewNATSSubscriber(s.NATSURL, logger)
		if err != nil {
			publisher.Close()
			return push, err
		}
		push.Publisher = publisher
		push.Subscriber = subscriber
		push.Close = func(context.Context) error {
			subscriber.Close()
			return publisher.Close()
		}
		return push, nil

	case TransportRabbitMQ:
		fanout, err := NewRabbitFanout(s.RabbitURL, logger)
		if err != nil {
			return push, err
		}
		push.Publisher = fanout
		push.Subscriber = fanout
		push.Close = func(context.Context) error { return fanout.Close() }
		return push, nil

	default:
		return push, fmt.Errorf("unknown push transport %q", s.PushTransport)
	}
}

func stringOr(config *aqm.Config, key, def string) string {
	if config == nil {
		return def
	}
	v, _ := config.GetString(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func boolOr(config *aqm.Config, key string, def bool) bool {
	v := stringOr(config, key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// DurationOr reads a duration such as "3s" or a plain number of
// milliseconds.
func DurationOr(config *aqm.Config, key string, def time.Duration) time.Duration {
	v := stringOr(config, key, "")
	if v == "" {
		return def
	}
	if ms, err := strconv.Atoi(v); err == nil {
		if ms <= 0 {
			return def
		}
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// IntOr reads an integer setting.
func IntOr(config *aqm.Config, key string, def int) int {
	v := stringOr(config, key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// BoolOr reads a boolean setting.
func BoolOr(config *aqm.Config, key string, def bool) bool {
	return boolOr(config, key, def)
}

// StringOr reads a string setting.
func StringOr(config *aqm.Config, key, def string) string {
	return stringOr(config, key, def)
}
