// FILE: lixenwraith/conftree/example/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pkt.systems/pslog"

	"github.com/lixenwraith/conftree"
)

// AppConfig is the typed view of the file, filled by Scan.
type AppConfig struct {
	Server struct {
		Host     string        `yaml:"host"`
		Port     int64         `yaml:"port"`
		Timeout  time.Duration `yaml:"timeout"`
		LogLevel string        `yaml:"log_level"`
	} `yaml:"server"`
	FeatureFlags map[string]bool `yaml:"feature_flags"`
}

const initialConfig = `# HTTP front end
server:
  host: localhost
  # listening port
  port: 8080
  timeout: 5s
feature_flags:
  beta: false
`

func main() {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvPrefix("EXAMPLE_LOG_"),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole, MinLevel: pslog.InfoLevel}),
		pslog.WithEnvWriter(os.Stderr),
	)

	dir, err := os.MkdirTemp("", "conftree-example")
	if err != nil {
		logger.Error("temp dir", "error", err)
		os.Exit(1)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "app.yaml")
	if err := os.WriteFile(path, []byte(initialConfig), 0644); err != nil {
		logger.Error("write config", "error", err)
		os.Exit(1)
	}

	// Out-of-range ports and unknown log levels are reset on every load
	spec := conftree.NewConfigSpec()
	spec.SetKeepUnspecified(true)
	if err := spec.DefineInRange(conftree.MustPath("server.port"), int64(8080), 1, 65535); err != nil {
		logger.Error("define spec", "error", err)
		os.Exit(1)
	}
	if err := spec.DefineInList(conftree.MustPath("server.log_level"), "info", "debug", "info", "warn", "error"); err != nil {
		logger.Error("define spec", "error", err)
		os.Exit(1)
	}

	// PART 1: load with defaults and a watcher
	fc, err := conftree.NewBuilder().
		WithFile(path).
		WithLogger(logger).
		WithSpec(spec).
		WithDefaults(map[string]any{
			"server": map[string]any{"log_level": "info"},
		}).
		WithValidator(func(root *conftree.Node) error {
			return root.Validate(conftree.MustPath("server.port"))
		}).
		Build()
	if err != nil && !errors.Is(err, conftree.ErrConfigNotFound) {
		logger.Error("build config", "error", err)
		os.Exit(1)
	}
	defer fc.Close()
	root := fc.Root()

	var cfg AppConfig
	if err := root.ScanWithTag(nil, "yaml", &cfg); err != nil {
		logger.Error("scan", "error", err)
		os.Exit(1)
	}
	fmt.Printf("loaded: %s:%d timeout=%s log_level=%s\n",
		cfg.Server.Host, cfg.Server.Port, cfg.Server.Timeout, cfg.Server.LogLevel)

	comment, _ := root.Comment(conftree.MustPath("server.port"))
	fmt.Printf("comment on server.port: %q\n", comment)

	// PART 2: readers never see host and port from different updates
	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			_ = root.BulkRead(func(v *conftree.ReadView) error {
				host, _ := v.Get(conftree.MustPath("server.host"))
				port, _ := v.Get(conftree.MustPath("server.port"))
				if host == "0.0.0.0" && port != int64(9090) {
					logger.Error("torn read", "host", host, "port", port)
				}
				return nil
			})
		}
	}()

	err = root.BulkUpdate(func(v *conftree.View) error {
		if _, err := v.Set(conftree.MustPath("server.host"), "0.0.0.0"); err != nil {
			return err
		}
		_, err := v.Set(conftree.MustPath("server.port"), int64(9090))
		return err
	})
	close(stop)
	wg.Wait()
	if err != nil {
		logger.Error("bulk update", "error", err)
		os.Exit(1)
	}

	// PART 3: save, then watch external edits
	if err := fc.Save(); err != nil {
		logger.Error("save", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	opts := conftree.DefaultWatchOptions()
	opts.Debounce = 100 * time.Millisecond
	changes, err := fc.Watch(ctx, opts)
	if err != nil {
		logger.Error("watch", "error", err)
		os.Exit(1)
	}

	edited := []byte("server:\n  host: 0.0.0.0\n  port: 7070\nfeature_flags:\n  beta: true\n")
	if err := os.WriteFile(path, edited, 0644); err != nil {
		logger.Error("edit config", "error", err)
		os.Exit(1)
	}

	for c := range changes {
		fmt.Printf("change: %s %s\n", c.Kind, c.Path)
		if c.Path == "server.port" {
			break
		}
	}

	port, _ := root.GetInt64(conftree.MustPath("server.port"))
	beta, _ := root.GetBool(conftree.MustPath("feature_flags.beta"))
	fmt.Printf("after reload: port=%d beta=%t\n", port, beta)
	fmt.Print(root.Debug())
}
