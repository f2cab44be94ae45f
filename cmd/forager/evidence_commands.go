package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"forager/internal/casedb"
	"forager/internal/evidence"
	"forager/internal/markup"
)

const summaryWidth = 72

func newEvidenceCommand(ctx *commandContext) *cobra.Command {
	evidenceCmd := &cobra.Command{
		Use:   "evidence",
		Short: "Inspect extracted evidence",
	}
	evidenceCmd.AddCommand(newEvidenceListCommand(ctx))
	evidenceCmd.AddCommand(newEvidenceShowCommand(ctx))
	return evidenceCmd
}

func newEvidenceListCommand(ctx *commandContext) *cobra.Command {
	var evidenceType string
	var tag string
	var limit int

	cmd := &cobra.Command{
		Use:   "list ITEM",
		Short: "List the evidence of an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if evidenceType != "" {
				if _, ok := evidence.Lookup(evidenceType); !ok {
					return fmt.Errorf("unknown evidence type %q (known: %s)", evidenceType, strings.Join(evidence.Types(), ", "))
				}
			}
			return ctx.withStore(func(store *casedb.Store) error {
				info, err := resolveItem(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				records, err := store.ListEvidences(cmd.Context(), casedb.Filter{
					ItemID: info.ID,
					Type:   evidenceType,
					Tag:    tag,
					Limit:  limit,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintf(out, "No evidence for item %s\n", info.Name)
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, r := range records {
					rows = append(rows, []string{
						strconv.FormatInt(r.ID, 10),
						r.Type,
						summarize(r),
						dash(strings.Join(r.Tags(), ",")),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Type", "Summary", "Tags"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&evidenceType, "type", "t", "", "Only list evidence of this type")
	cmd.Flags().StringVar(&tag, "tag", "", "Only list evidence carrying this tag")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of records (0 lists all)")
	return cmd
}

func newEvidenceShowCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one evidence record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid evidence id %q", args[0])
			}
			render, err := richTextRenderer(format)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *casedb.Store) error {
				r, err := store.GetEvidence(cmd.Context(), id)
				if err != nil {
					return err
				}
				if r == nil {
					return fmt.Errorf("evidence %d not found", id)
				}
				return writeRecord(cmd.OutOrStdout(), r, render)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Rich text rendering: text, html or markdown")
	return cmd
}

type richTextFunc func([]markup.Element) (string, error)

func richTextRenderer(format string) (richTextFunc, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return func(e []markup.Element) (string, error) { return markup.PlainText(e), nil }, nil
	case "html":
		r := markup.NewRenderer()
		return func(e []markup.Element) (string, error) { return r.HTML(e), nil }, nil
	case "markdown", "md":
		r := markup.NewRenderer()
		return r.Markdown, nil
	default:
		return nil, fmt.Errorf("unsupported format %q (use text, html or markdown)", format)
	}
}

func writeRecord(w io.Writer, r *evidence.Record, render richTextFunc) error {
	schema := r.Schema()
	label := schema.Label
	if label == "" {
		label = r.Type
	}
	fmt.Fprintf(w, "%s #%d (item %d)\n", label, r.ID, r.ItemID)
	for _, name := range r.Names() {
		field, _ := schema.Field(name)
		value, err := formatAttr(r, field, render)
		if err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
		if strings.Contains(value, "\n") {
			fmt.Fprintf(w, "  %s:\n", name)
			for _, line := range strings.Split(value, "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
			continue
		}
		fmt.Fprintf(w, "  %-24s %s\n", name+":", value)
	}
	if r.Metadata != nil && r.Metadata.Len() > 0 {
		fmt.Fprintln(w, "  metadata:")
		r.Metadata.Each(func(key string, value any) {
			fmt.Fprintf(w, "    %-22s %v\n", key+":", value)
		})
	}
	if tags := r.Tags(); len(tags) > 0 {
		fmt.Fprintf(w, "  %-24s %s\n", "tags:", strings.Join(tags, ", "))
	}
	return nil
}

func formatAttr(r *evidence.Record, field evidence.Field, render richTextFunc) (string, error) {
	switch field.Kind {
	case evidence.KindTime:
		return r.Time(field.Name).UTC().Format(time.RFC3339), nil
	case evidence.KindInt:
		return strconv.FormatInt(r.Int(field.Name), 10), nil
	case evidence.KindBool:
		return yesNo(r.Bool(field.Name)), nil
	case evidence.KindStrings:
		return strings.Join(r.Strings(field.Name), ", "), nil
	case evidence.KindRichText:
		return render(r.RichText(field.Name))
	default:
		return r.String(field.Name), nil
	}
}

// summarize joins the first few populated string attributes for listings.
func summarize(r *evidence.Record) string {
	var parts []string
	for _, name := range r.Names() {
		field, _ := r.Schema().Field(name)
		var value string
		switch field.Kind {
		case evidence.KindString:
			value = r.String(name)
		case evidence.KindStrings:
			value = strings.Join(r.Strings(name), ",")
		case evidence.KindRichText:
			value = markup.PlainText(r.RichText(name))
		}
		value = strings.Join(strings.Fields(value), " ")
		if value == "" {
			continue
		}
		parts = append(parts, name+"="+value)
		if len(parts) == 3 {
			break
		}
	}
	summary := strings.Join(parts, " ")
	if runes := []rune(summary); len(runes) > summaryWidth {
		summary = string(runes[:summaryWidth-3]) + "..."
	}
	return dash(summary)
}
