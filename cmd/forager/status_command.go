package main

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"forager/internal/casedb"
	"forager/internal/extraction"
	"forager/internal/logging"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status ITEM",
		Short: "Show the run state and evidence counts of an item",
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
				counts, err := store.CountByType(cmd.Context(), info.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader(fmt.Sprintf("Item %d: %s", info.ID, info.Name), colorize) {
					fmt.Fprintln(out, line)
				}
				dsKind := statusOK
				dsMessage := info.Datasource.String()
				if dsMessage == "" {
					dsKind, dsMessage = statusWarn, "not set"
				}
				fmt.Fprintln(out, renderStatusLine("Datasource", dsKind, dsMessage, colorize))
				fmt.Fprintln(out, renderStatusLine("Last run", runStatusKind(info.Run), runStatusMessage(info.Run), colorize))
				if info.Run.ID != "" {
					fmt.Fprintln(out, renderStatusLine("Run ID", statusInfo, info.Run.ID, colorize))
				}

				health := extraction.New(item, extraction.WithConfig(cfg), extraction.WithLogger(logging.NewNop())).Health(cmd.Context())
				names := make([]string, 0, len(health))
				for name := range health {
					names = append(names, name)
				}
				slices.Sort(names)
				for _, name := range names {
					h := health[name]
					kind := statusOK
					if !h.Ready {
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(name, kind, h.Detail, colorize))
				}

				if len(counts) == 0 {
					fmt.Fprintln(out, "\nNo evidence recorded")
					return nil
				}
				types := make([]string, 0, len(counts))
				for t := range counts {
					types = append(types, t)
				}
				slices.Sort(types)
				rows := make([][]string, 0, len(types))
				total := 0
				for _, t := range types {
					rows = append(rows, []string{t, strconv.Itoa(counts[t])})
					total += counts[t]
				}
				rows = append(rows, []string{"total", strconv.Itoa(total)})
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable([]string{"Type", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}
