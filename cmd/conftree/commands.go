// FILE: lixenwraith/conftree/cmd/conftree/commands.go
package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"pkt.systems/pslog"

	"github.com/lixenwraith/conftree"
)

func newGetCommand(v *viper.Viper, logger pslog.Logger) *cobra.Command {
	var withComment bool
	cmd := &cobra.Command{
		Use:   "get FILE PATH",
		Short: "Print the value at a dot-separated path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := openFile(v, logger, args[0])
			if err != nil {
				return err
			}
			defer fc.Close()
			p, err := conftree.ParsePath(args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if withComment {
				if c, err := fc.Root().Comment(p); err == nil {
					for _, line := range strings.Split(c, "\n") {
						fmt.Fprintf(out, "# %s\n", line)
					}
				}
			}
			val, err := fc.Root().Get(p)
			if err != nil {
				return err
			}
			if node, ok := val.(*conftree.Node); ok {
				acc, err := node.AccumulatorCopy()
				if err != nil {
					return err
				}
				data, err := conftree.EncodeAccumulator(conftree.FormatYAML, acc)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}
			fmt.Fprintln(out, formatScalar(val))
			return nil
		},
	}
	cmd.Flags().BoolVar(&withComment, "comment", false, "also print the comment attached to the path")
	return cmd
}

func newSetCommand(v *viper.Viper, logger pslog.Logger) *cobra.Command {
	var comment string
	var raw bool
	cmd := &cobra.Command{
		Use:   "set FILE PATH VALUE",
		Short: "Store a value at a path and save the file",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := openFile(v, logger, args[0])
			if err != nil {
				return err
			}
			defer fc.Close()
			p, err := conftree.ParsePath(args[1])
			if err != nil {
				return err
			}
			value := any(args[2])
			if !raw {
				value = parseValue(args[2])
			}
			err = fc.Root().BulkUpdate(func(view *conftree.View) error {
				if _, err := view.Set(p, value); err != nil {
					return err
				}
				if cmd.Flags().Changed("comment") {
					_, err := view.SetComment(p, comment)
					return err
				}
				return nil
			})
			if err != nil {
				return err
			}
			if err := fc.Save(); err != nil {
				return err
			}
			logger.Info("conftree.cli.set", "path", p.String(), "file", fc.Path())
			return nil
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "", "comment to attach to the path")
	cmd.Flags().BoolVar(&raw, "raw", false, "store VALUE as a string without type detection")
	return cmd
}

func newDumpCommand(v *viper.Viper, logger pslog.Logger) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "dump FILE",
		Short: "Print the whole tree, optionally converted to another format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := openFile(v, logger, args[0])
			if err != nil {
				return err
			}
			defer fc.Close()
			format := fc.Format()
			if output != "" {
				if format, err = conftree.ParseFormat(output); err != nil {
					return err
				}
			}
			if format == conftree.FormatAuto {
				format = conftree.FormatYAML
			}
			data, err := conftree.Encode(format, fc.Root())
			if err != nil {
				return err
			}
			logger.Debug("conftree.cli.dump", "format", string(format), "size", humanize.Bytes(uint64(len(data))))
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: toml, json or yaml (default: the file's format)")
	return cmd
}

func newWatchCommand(v *viper.Viper, logger pslog.Logger) *cobra.Command {
	var debounce string
	var metricsListen string
	cmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "Reload a file on change and print the changed paths",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			fc, err := openFile(v, logger, args[0])
			if err != nil {
				return err
			}
			defer fc.Close()

			opts := conftree.DefaultWatchOptions()
			if debounce != "" {
				d, err := time.ParseDuration(debounce)
				if err != nil {
					return err
				}
				opts.Debounce = d
			}

			if metricsListen != "" {
				reg := prometheus.NewRegistry()
				if err := conftree.RegisterMetrics(reg); err != nil {
					return err
				}
				srv := &http.Server{Addr: metricsListen, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("conftree.cli.metrics_failed", "error", err)
					}
				}()
				defer srv.Close()
				logger.Info("conftree.cli.metrics_listening", "addr", metricsListen)
			}

			changes, err := fc.Watch(ctx, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for c := range changes {
				switch c.Kind {
				case conftree.ChangeUpdated, conftree.ChangeRemoved:
					val := "-"
					if c.Kind == conftree.ChangeUpdated {
						if p, err := conftree.ParsePath(c.Path); err == nil {
							if got, err := fc.Root().Get(p); err == nil {
								val = formatScalar(got)
							}
						}
					}
					fmt.Fprintf(out, "%s\t%s\t%s\n", c.Kind, c.Path, val)
				case conftree.ChangeReloadError:
					fmt.Fprintf(out, "%s\t%v\n", c.Kind, c.Err)
				default:
					fmt.Fprintf(out, "%s\n", c.Kind)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&debounce, "debounce", "", "delay coalescing rapid file changes (e.g. 250ms)")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address while watching")
	return cmd
}

// parseValue detects booleans, integers and floats; anything else is a string.
func parseValue(s string) any {
	if v, err := strconv.ParseBool(s); err == nil {
		return v
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	if s == "null" {
		return conftree.Null
	}
	// Remove quotes if present
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func formatScalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatScalar(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *conftree.Node:
		return "{...}"
	default:
		return fmt.Sprint(v)
	}
}
