package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	URL          string `split_words:"true"`
	ReadTimeout  int    `split_words:"true" default:"3"`
	WriteTimeout int    `split_words:"true" default:"3"`
	DialTimeout  int    `split_words:"true" default:"5"`
}

// Enabled reports whether a Redis URL is configured.
func (r *Config) Enabled() bool { return r.URL != "" }

func (r *Config) New() (*redis.Client, error) {
	opts, err := redis.ParseURL(r.URL)
	if err != nil {
		return nil, err
	}

	opts.ReadTimeout = time.Duration(r.ReadTimeout) * time.Second
	opts.WriteTimeout = time.Duration(r.WriteTimeout) * time.Second
	opts.DialTimeout = time.Duration(r.DialTimeout) * time.Second

	client := redis.NewClient(opts)

	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

func (r *Config) MustNew() *redis.Client {
	client, err := r.New()
	if err != nil {
		panic(err)
	}

	return client
}
