package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"forager/internal/casedb"
	"forager/internal/evidence"
)

func newItemCommand(ctx *commandContext) *cobra.Command {
	itemCmd := &cobra.Command{
		Use:   "item",
		Short: "Manage case items",
	}
	itemCmd.AddCommand(newItemAddCommand(ctx))
	itemCmd.AddCommand(newItemListCommand(ctx))
	return itemCmd
}

func newItemAddCommand(ctx *commandContext) *cobra.Command {
	var name string
	var datasource string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a case item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(name) == "" {
				return errors.New("--name is required")
			}
			var ds evidence.Datasource
			if strings.TrimSpace(datasource) != "" {
				parsed, err := evidence.ParseDatasource(datasource)
				if err != nil {
					return err
				}
				ds = parsed
			}
			return ctx.withStore(func(store *casedb.Store) error {
				info, err := store.AddItem(cmd.Context(), name, ds)
				if errors.Is(err, casedb.ErrDuplicateItem) {
					return fmt.Errorf("item %q already exists", strings.TrimSpace(name))
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added item %d (%s)\n", info.ID, info.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Unique item name")
	cmd.Flags().StringVarP(&datasource, "datasource", "d", "", "Datasource as KIND:PATH (report or volume)")
	return cmd
}

type itemView struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Datasource string `json:"datasource,omitempty"`
	RunID      string `json:"run_id,omitempty"`
	RunStatus  string `json:"run_status,omitempty"`
	Warnings   int    `json:"warnings,omitempty"`
}

func newItemListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List case items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *casedb.Store) error {
				items, err := store.ListItems(cmd.Context())
				if err != nil {
					return err
				}
				views := make([]itemView, 0, len(items))
				for _, info := range items {
					views = append(views, itemView{
						ID:         info.ID,
						Name:       info.Name,
						Datasource: info.Datasource.String(),
						RunID:      info.Run.ID,
						RunStatus:  string(info.Run.Status),
						Warnings:   info.Run.Warnings,
					})
				}
				if asJSON {
					return writeJSON(cmd, views)
				}
				if len(views) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No items registered")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{
						strconv.FormatInt(v.ID, 10),
						v.Name,
						dash(v.Datasource),
						dash(v.RunStatus),
						strconv.Itoa(v.Warnings),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "Datasource", "Run", "Warnings"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}
