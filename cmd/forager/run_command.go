package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"forager/internal/casedb"
	"forager/internal/extraction"
	"forager/internal/logging"
)

type runOutcome struct {
	info     *casedb.ItemInfo
	warnings int
	duration time.Duration
	err      error
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var parallel int

	cmd := &cobra.Command{
		Use:   "run [ITEM...]",
		Short: "Extract evidence from case items",
		Long: "Run the loaders of each item's datasource and then the post-processor chain.\n" +
			"Items are referenced by ID or name. Distinct items run concurrently with --parallel.",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case all && len(args) > 0:
				return errors.New("specify item references or --all, not both")
			case !all && len(args) == 0:
				return errors.New("specify at least one item or --all")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if parallel <= 0 {
				parallel = cfg.Extraction.ParallelItems
			}

			return ctx.withStore(func(store *casedb.Store) error {
				items, err := selectItems(cmd.Context(), store, args, all)
				if err != nil {
					return err
				}

				outcomes := make([]runOutcome, len(items))
				var g errgroup.Group
				g.SetLimit(max(parallel, 1))
				for i, info := range items {
					g.Go(func() error {
						outcomes[i] = runItem(cmd.Context(), store, info, extraction.WithConfig(cfg), extraction.WithLogger(logger))
						return nil
					})
				}
				_ = g.Wait()

				failed := 0
				out := cmd.OutOrStdout()
				for _, o := range outcomes {
					switch {
					case o.err != nil:
						failed++
						fmt.Fprintln(out, renderStatusLine(o.info.Name, statusError, o.err.Error(), shouldColorize(out)))
					case o.warnings > 0:
						fmt.Fprintln(out, renderStatusLine(o.info.Name, statusWarn,
							fmt.Sprintf("completed in %s with %d warning(s)", o.duration.Round(time.Millisecond), o.warnings), shouldColorize(out)))
					default:
						fmt.Fprintln(out, renderStatusLine(o.info.Name, statusOK,
							"completed in "+o.duration.Round(time.Millisecond).String(), shouldColorize(out)))
					}
				}
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d item(s) failed", failed, len(items))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Run every registered item")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 0, "Items extracted concurrently (default from config)")
	return cmd
}

func selectItems(ctx context.Context, store *casedb.Store, refs []string, all bool) ([]*casedb.ItemInfo, error) {
	if all {
		items, err := store.ListItems(ctx)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, errors.New("no items registered")
		}
		return items, nil
	}
	seen := make(map[int64]struct{}, len(refs))
	items := make([]*casedb.ItemInfo, 0, len(refs))
	for _, ref := range refs {
		info, err := resolveItem(ctx, store, ref)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[info.ID]; dup {
			continue
		}
		seen[info.ID] = struct{}{}
		items = append(items, info)
	}
	return items, nil
}

func runItem(ctx context.Context, store *casedb.Store, info *casedb.ItemInfo, opts ...extraction.Option) runOutcome {
	outcome := runOutcome{info: info}
	item, err := store.Item(ctx, info.ID)
	if err != nil {
		outcome.err = err
		return outcome
	}
	start := time.Now()
	err = extraction.New(item, opts...).Run(ctx)
	outcome.duration = time.Since(start)
	if errors.Is(err, extraction.ErrRunInProgress) {
		outcome.err = fmt.Errorf("another run of item %q is in progress", info.Name)
		return outcome
	}
	if err != nil {
		outcome.err = err
		return outcome
	}
	marker, err := item.RunMarker(ctx)
	if err != nil {
		outcome.err = err
		return outcome
	}
	outcome.warnings = marker.Warnings
	return outcome
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset ITEM",
		Short: "Clear the run marker of an item so it can be extracted again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *casedb.Store) error {
				info, err := resolveItem(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				item, err := store.Item(cmd.Context(), info.ID)
				if err != nil {
					return err
				}
				err = extraction.New(item, extraction.WithConfig(cfg), extraction.WithLogger(logging.NewNop())).Reset(cmd.Context())
				if errors.Is(err, extraction.ErrRunInProgress) {
					return fmt.Errorf("item %q is being extracted; try again when the run finishes", info.Name)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset item %d (%s)\n", info.ID, info.Name)
				return nil
			})
		},
	}
}
