package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/caffeineduck/hotlua/bridge"
	"github.com/caffeineduck/hotlua/config"
	"github.com/caffeineduck/hotlua/hostfunc"
	"github.com/caffeineduck/hotlua/network"
	"github.com/caffeineduck/hotlua/resource"
	"go.uber.org/zap"
)

// app wires the collaborators a bridge needs from configuration.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	bundle *resource.Bundle
	net    *network.Manager
	kv     *hostfunc.KVStore
	bridge *bridge.Bridge
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, kv: hostfunc.NewKVStore()}

	loader, err := a.loader()
	if err != nil {
		return nil, err
	}

	var transport network.Transport
	if cfg.Network.URL != "" {
		ws, err := network.DialWebSocket(ctx, cfg.Network.URL, nil)
		if err != nil {
			a.close()
			return nil, err
		}
		transport = ws
		logger.Info("connected", zap.String("url", cfg.Network.URL))
	} else {
		transport = network.Loopback()
		logger.Debug("no network url, using loopback")
	}
	a.net = network.NewManager(transport,
		network.WithQueueSize(cfg.Network.QueueSize),
		network.WithLogger(logger.Named("network")))

	a.bridge = bridge.New(loader, a.net,
		bridge.WithLogger(logger.Named("lua")),
		bridge.WithEntry(cfg.Scripts.Entry),
		bridge.WithScriptRoot(cfg.Scripts.Root),
		bridge.WithTickInterval(cfg.Runtime.TickInterval),
		bridge.WithCollectOnTick(cfg.Runtime.CollectOnTick),
		bridge.WithCallStackSize(cfg.Runtime.CallStackSize),
		bridge.WithRegistrySize(cfg.Runtime.RegistrySize),
		bridge.WithKVStore(a.kv))
	return a, nil
}

// loader chains the bundle before the scripts directory so patches win.
func (a *app) loader() (resource.Loader, error) {
	var loaders []resource.Loader

	if p := a.cfg.BundlePath(); p != "" {
		b, err := resource.OpenBundle(p)
		if err != nil {
			return nil, err
		}
		a.bundle = b
		loaders = append(loaders, b)
	}

	if p := a.cfg.ScriptsDir(); p != "" {
		d, err := resource.NewDir(p)
		switch {
		case err == nil:
			loaders = append(loaders, d)
		case errors.Is(err, os.ErrNotExist):
			a.logger.Warn("scripts directory missing", zap.String("dir", p))
		default:
			a.close()
			return nil, err
		}
	}

	if len(loaders) == 0 {
		a.close()
		return nil, fmt.Errorf("no script source: set scripts.dir or scripts.bundle")
	}
	return resource.Chain(loaders...), nil
}

func (a *app) close() {
	if a.bridge != nil {
		a.bridge.Close()
	}
	if a.net != nil {
		a.net.Close()
	}
	if a.bundle != nil {
		a.bundle.Close()
	}
}
