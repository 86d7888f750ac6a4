package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/satishbabariya/commerce-client/migrate"
	"github.com/satishbabariya/commerce-client/runtime/client"
	"github.com/satishbabariya/commerce-client/schema"
)

// openClient connects a client configured from cfg. The CLI exposes no
// metrics endpoint, so collectors are not registered.
func openClient(ctx context.Context) (*client.Client, error) {
	c := *cfg
	c.Metrics.Namespace = ""
	cl, err := client.New(client.FromConfig(&c)...)
	if err != nil {
		return nil, err
	}
	if err := cl.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", c.Provider, err)
	}
	return cl, nil
}

// withEngine runs fn with a migration engine on a fresh connection.
func withEngine(ctx context.Context, fn func(*migrate.Engine) error) error {
	cl, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer cl.Disconnect(ctx)

	engine, err := migrate.NewEngine(cl.DB(), cl.Dialect())
	if err != nil {
		return err
	}
	return fn(engine)
}

// registry returns the schema selected by --schema or the config, else
// the embedded one.
func registry() (*schema.Registry, error) {
	if cfg.SchemaPath == "" {
		return schema.Embedded(), nil
	}
	return schema.Load(fs, cfg.SchemaPath)
}

func marshalIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
