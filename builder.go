package browsersession

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edemocracy/browsersession/session"
	"github.com/edemocracy/browsersession/token"
)

// Builder defines a public type used by browsersession APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	auditSink AuditSink
	clock     func() time.Time

	built bool
}

// New describes the new operation and its observable behavior.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSecretKey describes the withsecretkey operation and its observable behavior.
func (b *Builder) WithSecretKey(key []byte) *Builder {
	b.config.Token.SecretKey = cloneBytes(key)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides the time source for expiry decisions. Tests inject a
// fixed clock here.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	// -------- TOKEN CODEC --------
	var codec token.Codec
	switch cfg.Token.Format {
	case FormatJWT:
		c, err := token.NewJWTCodec(cloneBytes(cfg.Token.SecretKey), cfg.Token.Issuer, cfg.Token.MaxClockSkew, clock)
		if err != nil {
			return nil, err
		}
		codec = c
	default:
		c, err := token.NewSerializer(token.Config{
			SecretKey:        cloneBytes(cfg.Token.SecretKey),
			Salt:             cfg.Token.Salt,
			Digest:           cfg.Token.Digest,
			KeyDerivation:    cfg.Token.KeyDerivation,
			PBKDF2Iterations: cfg.Token.PBKDF2Iterations,
			Compression:      cfg.Token.Compression,
			MaxTokenBytes:    cfg.Cookie.MaxBytes,
			MaxClockSkew:     cfg.Token.MaxClockSkew,
			Clock:            clock,
		})
		if err != nil {
			return nil, err
		}
		codec = c
	}

	// -------- SESSION STORE --------
	var store *session.Store
	if cfg.Store.Enabled {
		if b.redis == nil {
			return nil, ErrRedisRequired
		}
		st, err := session.NewStore(b.redis, session.StoreConfig{
			Prefix:            cfg.Store.RedisPrefix,
			AbsoluteLifetime:  cfg.Session.PermanentLifetime,
			SlidingExpiration: cfg.Store.SlidingExpiration,
			JitterEnabled:     cfg.Store.JitterEnabled,
			JitterRange:       cfg.Store.JitterRange,
			Clock:             clock,
		})
		if err != nil {
			return nil, err
		}
		store = st
	}

	m := &Manager{
		config:  cfg,
		codec:   codec,
		store:   store,
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		clock:   clock,
	}

	b.built = true

	return m, nil
}
