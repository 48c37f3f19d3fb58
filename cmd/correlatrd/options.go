package main

import (
	"github.com/danmuck/correlatr/internal/config"
	"github.com/danmuck/correlatr/internal/protocol/frame"
	"github.com/danmuck/correlatr/internal/render"
	"github.com/danmuck/correlatr/internal/server"
	"github.com/danmuck/correlatr/internal/store"
	"gonum.org/v1/plot/vg"
)

func serverConfig(cfg config.ServerConfig) (server.Config, error) {
	mode, err := server.ParseMode(cfg.Mode)
	if err != nil {
		return server.Config{}, err
	}
	return server.Config{
		ListenAddr:   cfg.ListenAddr,
		Mode:         mode,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Limits:       frame.Limits{MaxPayloadBytes: cfg.MaxFrameBytes},
	}, nil
}

func storeOptions(cfg config.ServerConfig) store.Options {
	return store.Options{
		Table:            cfg.Store.Table,
		MaxIdentifierLen: cfg.Store.MaxIdentifierLen,
		MaxConns:         cfg.Store.MaxConns,
	}
}

func renderer(cfg config.ServerConfig) render.Scatter {
	return render.Scatter{
		Width:  vg.Length(cfg.Graph.Width) * vg.Inch,
		Height: vg.Length(cfg.Graph.Height) * vg.Inch,
	}
}
