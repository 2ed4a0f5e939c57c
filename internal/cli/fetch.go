package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Benxalil/EcoGest-07-sub004/pkg/backend"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/errors"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/parallel"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/reqcache"
)

// fetchOptions holds the flags of the fetch command.
type fetchOptions struct {
	query    []string
	strategy string
	ttl      time.Duration
	repeat   int
	limit    int
}

// fetchCommand creates the fetch command.
func (c *CLI) fetchCommand() *cobra.Command {
	var opts fetchOptions

	cmd := &cobra.Command{
		Use:   "fetch TABLE [TABLE...]",
		Short: "Fetch tables through the cache and retry layer",
		Long: `Fetch one or more tables concurrently, the way the application loads a page.

Every table is read through the request cache and retried on transient
backend failures. With --repeat the same fetch runs several times against one
cache, which shows the effect of the chosen strategy.`,
		Example: `  ecogest fetch students classes --query school_id=eq.42
  ecogest fetch grades --strategy cache-first --repeat 3`,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: cobra.NoFileCompletions,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runFetch(cmd.Context(), printer{w: cmd.OutOrStdout()}, args, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.query, "query", "q", nil, "filter as key=value, repeatable (e.g. class_id=eq.6A)")
	cmd.Flags().StringVarP(&opts.strategy, "strategy", "s", "", "cache strategy: cache-first, network-first, stale-while-revalidate")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 0, "cache TTL for fetched tables (default from config)")
	cmd.Flags().IntVarP(&opts.repeat, "repeat", "n", 1, "number of rounds")
	cmd.Flags().IntVar(&opts.limit, "parallel", 0, "maximum concurrent requests (0 = unlimited)")
	_ = cmd.RegisterFlagCompletionFunc("strategy", completeStrategies)

	return cmd
}

func (c *CLI) runFetch(ctx context.Context, out printer, tables []string, opts fetchOptions) error {
	logger := loggerFromContext(ctx)

	for _, table := range tables {
		if err := errors.ValidateTable(table); err != nil {
			return err
		}
	}
	if opts.repeat < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "--repeat must be at least 1")
	}
	query, err := parseQuery(opts.query)
	if err != nil {
		return err
	}
	callOpts, err := callOptions(opts)
	if err != nil {
		return err
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	client, err := c.newClient(cfg)
	if err != nil {
		return err
	}
	cacheOpts := cfg.CacheOptions(logger)
	cache := reqcache.New(cacheOpts)
	networkFirst := cacheOpts.DefaultStrategy == reqcache.NetworkFirst
	if opts.strategy != "" {
		s, _ := reqcache.ParseStrategy(opts.strategy)
		networkFirst = s == reqcache.NetworkFirst
	}

	for round := 1; round <= opts.repeat; round++ {
		cached := make(map[string]bool, len(tables))
		keys := cache.Stats().Keys
		for _, table := range tables {
			_, found := slices.BinarySearch(keys, backend.QueryKey(table, query))
			cached[table] = found && !networkFirst
		}

		fetches := make(map[string]func(context.Context) ([]json.RawMessage, error), len(tables))
		for _, table := range tables {
			fetches[table] = func(ctx context.Context) ([]json.RawMessage, error) {
				return backend.Select[json.RawMessage](ctx, client, cache, table, query, callOpts...)
			}
		}

		prog := newProgress(logger)
		spin := newSpinner(ctx, os.Stderr, fmt.Sprintf("Fetching %d tables (round %d/%d)", len(tables), round, opts.repeat))
		spin.Start()
		results, err := parallel.Fetch(ctx, fetches, parallel.WithLimit(opts.limit))
		if err != nil {
			spin.StopWithError(out, errors.UserMessage(err))
			return err
		}
		spin.Stop()

		out.info("Round %d %s", round, StyleDim.Render(prog.elapsed().String()))
		for _, table := range tables {
			rows := results[table]
			var size uint64
			for _, row := range rows {
				size += uint64(len(row))
			}
			out.tableResult(table, len(rows), size, cached[table])
		}
		prog.done("Fetched tables", "round", round, "tables", len(tables))
	}

	cache.Wait()
	stats := cache.Stats()
	out.success("Done: %s", stats)
	return nil
}

// callOptions converts the strategy and TTL flags into cache call options.
func callOptions(opts fetchOptions) ([]reqcache.CallOption, error) {
	var callOpts []reqcache.CallOption
	if opts.strategy != "" {
		s, err := reqcache.ParseStrategy(opts.strategy)
		if err != nil {
			return nil, err
		}
		callOpts = append(callOpts, reqcache.WithStrategy(s))
	}
	if opts.ttl < 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "--ttl cannot be negative")
	}
	if opts.ttl > 0 {
		callOpts = append(callOpts, reqcache.WithTTL(opts.ttl))
	}
	return callOpts, nil
}

// parseQuery parses key=value pairs into query parameters.
func parseQuery(pairs []string) (url.Values, error) {
	query := url.Values{}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "invalid query %q (want key=value)", pair)
		}
		query.Add(k, v)
	}
	return query, nil
}
