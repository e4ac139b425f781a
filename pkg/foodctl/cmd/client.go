package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"

	"github.com/vnfood/foodctl/pkg/foodctl/auth"
	"github.com/vnfood/foodctl/pkg/foodctl/client"
	"github.com/vnfood/foodctl/pkg/foodctl/session"
	"github.com/vnfood/foodctl/pkg/system"
	"github.com/vnfood/foodctl/pkg/version"
)

// apiClient is a client plus the resources opened for it.
type apiClient struct {
	*client.Client
	closers []io.Closer
}

func (c *apiClient) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i].Close())
	}
	return errors.Join(errs...)
}

func buildClient(ctx context.Context, rt *runtimeState) (*apiClient, error) {
	if rt.cfg == nil {
		return nil, errors.New("config not loaded")
	}
	log := rt.Logger()
	out := &apiClient{}

	creds := rt.cfg.Credentials
	if rt.backendOverride != "" {
		creds.Backend = rt.backendOverride
	}
	backendCfg, err := creds.BackendConfig()
	if err != nil {
		return nil, err
	}
	backend, err := auth.NewBackend(backendCfg)
	if err != nil {
		return nil, err
	}
	if closer, ok := backend.(io.Closer); ok {
		out.closers = append(out.closers, closer)
	}
	store, err := auth.OpenStore(ctx, backend, auth.WithStoreLogger(log))
	if err != nil {
		_ = out.Close()
		return nil, err
	}

	sinks := session.MultiSink{session.WriterSink{W: rt.ErrWriter()}}
	if rt.cfg.Events.RedisURL != "" {
		publisher, closers, err := newEventPublisher(rt)
		if err != nil {
			_ = out.Close()
			return nil, err
		}
		out.closers = append(out.closers, closers...)
		sinks = append(sinks, session.NewPublisherSink(publisher, rt.cfg.Events.Topic, log))
	}

	settings := rt.cfg.Settings
	options := []client.Option{
		client.WithServer(rt.Server()),
		client.WithStore(store),
		client.WithSink(sinks),
		client.WithUserAgent(version.UserAgent()),
		client.WithLogger(log),
		client.WithTimeout(settings.TimeoutOrDefault()),
	}
	// TLS config should be applied after timeout to ensure timeout is set on the http client
	if settings.CAFile != "" || settings.InsecureSkipTLSVerify {
		options = append(options, client.WithTLSConfig(settings.CAFile, settings.InsecureSkipTLSVerify))
	}
	c, err := client.New(options...)
	if err != nil {
		_ = out.Close()
		return nil, err
	}
	out.Client = c
	log.Debugw("Client ready", "server", rt.Server(), "backend", backend.Name(), "state", c.State())
	return out, nil
}

func newEventPublisher(rt *runtimeState) (*redisstream.Publisher, []io.Closer, error) {
	opts, err := redis.ParseURL(rt.cfg.Events.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid events redis-url: %w", err)
	}
	redisClient := redis.NewClient(opts)
	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: redisClient},
		system.NewWatermillLogger(rt.Logger()),
	)
	if err != nil {
		_ = redisClient.Close()
		return nil, nil, fmt.Errorf("failed to create event publisher: %w", err)
	}
	return publisher, []io.Closer{redisClient, publisher}, nil
}

// withClient runs fn with a client built for cmd and closes it afterwards.
func withClient(ctx context.Context, rt *runtimeState, fn func(*apiClient) error) error {
	c, err := buildClient(ctx, rt)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			rt.Logger().Debugw("Failed to close client resources", "error", cerr)
		}
	}()
	return fn(c)
}
