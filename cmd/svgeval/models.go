package main

import (
	"context"
	"fmt"
	"io"

	"github.com/danielpatrickdp/svg-eval/internal/codec"
	"github.com/danielpatrickdp/svg-eval/internal/config"
	"github.com/danielpatrickdp/svg-eval/internal/loomnet"
	"github.com/danielpatrickdp/svg-eval/internal/model"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openModels builds the model set for the configured backend. The closer
// releases the gRPC connection, if any.
func openModels(ctx context.Context, cfg config.Config) (model.Set, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendGRPC:
		client, err := codec.NewCodecClient(cfg.CodecAddr)
		if err != nil {
			return model.Set{}, nil, err
		}
		set, err := client.Set(ctx)
		if err != nil {
			client.Close()
			return model.Set{}, nil, err
		}
		return set, client, nil
	case config.BackendLoom:
		nets, err := loomnet.Load(cfg.ModelPath)
		if err != nil {
			return model.Set{}, nil, err
		}
		return nets.Set(), nopCloser{}, nil
	}
	return model.Set{}, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
