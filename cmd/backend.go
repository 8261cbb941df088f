package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/DachengChen/querybot/api"
	"github.com/DachengChen/querybot/applog"
	"github.com/DachengChen/querybot/config"
	"github.com/DachengChen/querybot/conversation"
	"github.com/DachengChen/querybot/db"
	"github.com/DachengChen/querybot/ssh"
	"github.com/DachengChen/querybot/tui"
)

// backend is a client for the configured backend, through an SSH tunnel
// when one is enabled.
type backend struct {
	client *api.Client
	tunnel *ssh.Tunnel
}

func openBackend(ctx context.Context, cfg *config.AppConfig) (*backend, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	url := cfg.Backend.URL
	b := &backend{}

	if cfg.Backend.SSH.Enabled {
		remote, err := cfg.Backend.RemoteAddr()
		if err != nil {
			return nil, err
		}
		tun, err := ssh.NewTunnel(cfg.Backend.SSH, remote)
		if err != nil {
			return nil, err
		}
		addr, err := tun.Start(ctx)
		if err != nil {
			return nil, fmt.Errorf("ssh tunnel: %w", err)
		}
		url, err = cfg.Backend.WithLocalEndpoint(addr.Host, addr.Port)
		if err != nil {
			tun.Stop()
			return nil, err
		}
		b.tunnel = tun
		applog.Info("backend %s reached through %s", remote, addr)
	}

	b.client = api.NewClient(url, cfg.Backend.Timeout())
	return b, nil
}

func (b *backend) Close() {
	if b.tunnel != nil {
		b.tunnel.Stop()
	}
}

// schemaLoader reads the schema from the backend, or straight from the
// database when schema.direct is set.
func schemaLoader(cfg *config.AppConfig, client *api.Client) tui.SchemaLoader {
	uri := cfg.Schema.DBURI
	if cfg.Schema.Direct {
		return func(ctx context.Context) (*api.Schema, error) {
			return db.FetchSchema(ctx, uri)
		}
	}
	return func(ctx context.Context) (*api.Schema, error) {
		return client.Schema(ctx, uri)
	}
}

// newEngine returns an engine in mode with the session list loaded.
func newEngine(ctx context.Context, client *api.Client, mode conversation.Mode) (*conversation.Engine, error) {
	e := conversation.New(client, conversation.Options{Mode: mode})
	if u := e.Run(ctx, e.LoadSessions()); u.Notice != "" {
		return nil, errors.New(u.Notice)
	}
	return e, nil
}

// openSession selects id and waits for its history.
func openSession(ctx context.Context, e *conversation.Engine, id string) error {
	u, err := e.SelectSession(id)
	if err != nil {
		if errors.Is(err, conversation.ErrUnknownSession) {
			return fmt.Errorf("session %q not found", id)
		}
		return err
	}
	if u = e.Run(ctx, u); u.Notice != "" {
		return errors.New(u.Notice)
	}
	return nil
}
