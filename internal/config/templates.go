package config

import (
	"fmt"
	"os"
	"strings"

	pelletier "github.com/pelletier/go-toml/v2"
)

// Template renders the default config of kind ("server" or "client") as TOML.
func Template(kind string) (string, error) {
	var v any
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "server":
		v = serverTemplate()
	case "client":
		v = DefaultClientConfig()
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
	data, err := pelletier.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("render %s template: %w", kind, err)
	}
	return string(data), nil
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// ValidateFile loads path as kind and reports the first problem.
func ValidateFile(path, kind string) error {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "server":
		_, err := LoadServerConfig(path)
		return err
	case "client":
		_, err := LoadClientConfig(path)
		return err
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
}

func serverTemplate() serverFile {
	def := DefaultServerConfig()
	return serverFile{
		ListenAddr:    def.ListenAddr,
		Mode:          def.Mode,
		ReadTimeout:   "0s",
		WriteTimeout:  "0s",
		MaxFrameBytes: def.MaxFrameBytes,
		AdminAddr:     "127.0.0.1:42070",
		CorsOrigins:   def.CorsOrigins,
		Store: storeFile{
			Driver:           def.Store.Driver,
			URL:              def.Store.URL,
			Table:            def.Store.Table,
			MaxIdentifierLen: def.Store.MaxIdentifierLen,
			MaxConns:         def.Store.MaxConns,
		},
		Graph: graphFile{Width: def.Graph.Width, Height: def.Graph.Height},
	}
}
