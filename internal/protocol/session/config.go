package session

import "time"

// Config defines session I/O defaults.
type Config struct {
	// ReadBufferSize is the size of each receive call.
	ReadBufferSize int
	// WriteTimeout bounds one response write; zero disables the deadline.
	WriteTimeout time.Duration
}

const DefaultReadBufferSize = 64 * 1024

func DefaultConfig() Config {
	return Config{
		ReadBufferSize: DefaultReadBufferSize,
		WriteTimeout:   0,
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	if c.WriteTimeout < 0 {
		c.WriteTimeout = 0
	}
	return c
}
