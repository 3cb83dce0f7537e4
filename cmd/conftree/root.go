// FILE: lixenwraith/conftree/cmd/conftree/root.go
package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"pkt.systems/pslog"

	"github.com/lixenwraith/conftree"
)

func newRootCommand(logger pslog.Logger) *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:           "conftree",
		Short:         "Inspect, edit and watch configuration files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("format", "auto", "file format: auto, toml, json or yaml")
	flags.String("mode", "replace", "parsing mode used on load: replace, merge or add")
	flags.String("max-file-size", humanize.IBytes(conftree.DefaultMaxFileSize), "largest configuration file accepted (e.g. 512KiB, 10MB)")

	bindFlags(v, flags, "format", "mode", "max-file-size")
	v.SetEnvPrefix("CONFTREE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root.AddCommand(
		newGetCommand(v, logger),
		newSetCommand(v, logger),
		newDumpCommand(v, logger),
		newWatchCommand(v, logger),
	)
	return root
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, names ...string) {
	for _, name := range names {
		flag := flags.Lookup(name)
		if flag == nil {
			panic(fmt.Sprintf("flag %q not found", name))
		}
		if err := v.BindPFlag(name, flag); err != nil {
			panic(err)
		}
	}
}

// fileOptions builds FileOptions from flags and CONFTREE_* environment variables.
func fileOptions(v *viper.Viper) (conftree.FileOptions, error) {
	opts := conftree.DefaultFileOptions()

	format, err := conftree.ParseFormat(v.GetString("format"))
	if err != nil {
		return opts, err
	}
	opts.Format = format

	mode, err := conftree.ParseParsingMode(v.GetString("mode"))
	if err != nil {
		return opts, err
	}
	opts.Mode = mode

	if raw := strings.TrimSpace(v.GetString("max-file-size")); raw != "" {
		size, err := humanize.ParseBytes(raw)
		if err != nil {
			return opts, fmt.Errorf("invalid --max-file-size %q: %w", raw, err)
		}
		opts.MaxFileSize = int64(size)
	}
	return opts, nil
}

// openFile loads path. A missing file yields an empty tree.
func openFile(v *viper.Viper, logger pslog.Logger, path string) (*conftree.FileConfig, error) {
	opts, err := fileOptions(v)
	if err != nil {
		return nil, err
	}
	fc, err := conftree.NewBuilder().
		WithFile(path).
		WithFileOptions(opts).
		WithLogger(logger).
		Build()
	if err != nil && fc == nil {
		return nil, err
	}
	return fc, nil
}
