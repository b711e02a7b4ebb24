package config

import "time"

type Config struct {
	Service     *ServiceConfig
	Redis       *RedisConfig
	Postgres    *PostgresConfig
	Push        *PushConfig
	Broadcast   *BroadcastConfig
	Worker      *WorkerConfig
	Logger      *LoggerConfig
	Tracer      *TracerConfig
	SecretToken string
}

type ServiceConfig struct {
	Name string
	Env  string
	Addr string
}

type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

type PushConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// BroadcastConfig carries the dispatcher's retry policy and the geospatial
// room-key tuning, so both stay visible and unit-testable instead of being
// baked-in constants.
type BroadcastConfig struct {
	MaxAttempts       int
	RetryDelay        time.Duration
	SendTimeout       time.Duration
	GridPrecision     int
	DefaultRadiusKm   float64
	HeartbeatInterval time.Duration
	PresenceTTL       time.Duration
}

type WorkerConfig struct {
	Stream string
	Group  string
}

type LoggerConfig struct {
	Level  string
	Format string
}

type TracerConfig struct {
	Address string
}
