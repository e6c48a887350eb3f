// Package cli holds the glue between the guide command and the library:
// it turns persistent flags into stores, workflow sources, and engines,
// and drives interactive sessions on a terminal.
package cli

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	backend "github.com/redis/go-redis/v9"

	guide "github.com/rluijk/guided-llm-cli"
	"github.com/rluijk/guided-llm-cli/internal/logging"
	"github.com/rluijk/guided-llm-cli/pkg/adapters/file"
	"github.com/rluijk/guided-llm-cli/pkg/adapters/loamsource"
	"github.com/rluijk/guided-llm-cli/pkg/adapters/memory"
	"github.com/rluijk/guided-llm-cli/pkg/adapters/modelhttp"
	"github.com/rluijk/guided-llm-cli/pkg/adapters/redis"
	"github.com/rluijk/guided-llm-cli/pkg/adapters/yamlsource"
	"github.com/rluijk/guided-llm-cli/pkg/persistence/middleware"
	"github.com/rluijk/guided-llm-cli/pkg/ports"
)

// Options carries the persistent flags shared by every guide command.
type Options struct {
	Workflow    string // workflow document: a yaml/json file or a markdown directory
	SessionsDir string // base directory for the file store
	Store       string // file, memory, or redis
	RedisAddr   string
	LogLevel    string // empty keeps the CLI quiet
	EncryptKey  string // hex key enabling at-rest encryption
}

// NewLogger builds the application logger from --log-level. Logs go to
// stderr so they never corrupt the session transcript on stdout.
func (o Options) NewLogger() (*slog.Logger, error) {
	if o.LogLevel == "" {
		return logging.NewNop(), nil
	}
	level, err := logging.ParseLevel(o.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(level), nil
}

// OpenStore constructs the session store selected by --store, wrapped with
// the encryption middleware when a key is set, so maintenance commands read
// the same bytes the engine writes.
func (o Options) OpenStore() (ports.SessionStore, error) {
	store, _, err := o.openStore()
	return store, err
}

func (o Options) openStore() (ports.SessionStore, ports.DistributedLocker, error) {
	var store ports.SessionStore
	var locker ports.DistributedLocker

	switch o.Store {
	case "", "file":
		dir := o.SessionsDir
		if dir == "" {
			dir = file.DefaultDir()
		}
		store = file.New(dir)
	case "memory":
		store = memory.NewStore()
	case "redis":
		addr := o.RedisAddr
		if addr == "" {
			addr = "localhost:6379"
		}
		client := backend.NewClient(&backend.Options{Addr: addr})
		store = redis.NewFromClient(client)
		locker = redis.NewLocker(client, "guide")
	default:
		return nil, nil, fmt.Errorf("unknown store %q (want file, memory, or redis)", o.Store)
	}

	if o.EncryptKey != "" {
		key, err := hex.DecodeString(o.EncryptKey)
		if err != nil {
			return nil, nil, fmt.Errorf("encrypt key is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return nil, nil, fmt.Errorf("encrypt key must decode to 32 bytes, got %d", len(key))
		}
		store = middleware.Chain(store, middleware.Encryption(key))
	}

	return store, locker, nil
}

// OpenSource picks the workflow source for a path: directories are loam
// repositories of markdown step documents, files are yaml or json workflows.
func OpenSource(path string) (ports.WorkflowSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", path, err)
	}
	if info.IsDir() {
		return loamsource.New(path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return yamlsource.New(path), nil
	}
	return nil, fmt.Errorf("workflow %s: unsupported extension (want .yaml, .yml, .json, or a directory)", path)
}

// BuildEngine assembles an engine from the CLI options: workflow source,
// store, locker, logger, and the HTTP model capability when
// GUIDE_MODEL_ENDPOINT is set. Deterministic steps in documents must be
// exec-backed since the CLI cannot register Go handlers.
func (o Options) BuildEngine(extra ...guide.Option) (*guide.Engine, error) {
	logger, err := o.NewLogger()
	if err != nil {
		return nil, err
	}

	src, err := OpenSource(o.Workflow)
	if err != nil {
		return nil, err
	}

	store, locker, err := o.openStore()
	if err != nil {
		return nil, err
	}

	opts := []guide.Option{
		guide.WithSource(src),
		guide.WithStore(store),
		guide.WithLogger(logger),
	}
	if locker != nil {
		opts = append(opts, guide.WithLocker(locker))
	}

	if os.Getenv("GUIDE_MODEL_ENDPOINT") != "" {
		cfg := modelhttp.NewDefaultConfig()
		if err := cfg.LoadFromEnv(); err != nil {
			return nil, err
		}
		client, err := modelhttp.New(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			guide.WithModel(client.Call),
			guide.WithClassifier(modelhttp.Classify),
			guide.WithModelTimeout(cfg.Timeout),
		)
	}

	opts = append(opts, extra...)
	return guide.New(opts...)
}
