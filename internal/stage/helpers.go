package stage

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"forager/internal/evidence"
)

// WithTx runs fn inside one transaction of item and commits once. Any error
// from fn rolls the transaction back so no partial writes persist.
func WithTx(ctx context.Context, item evidence.Item, fn func(evidence.Tx) error) (err error) {
	tx, err := item.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

var titler = cases.Title(language.English)

// Label turns a unit or type name such as "skype-messages" into a display
// label ("Skype Messages").
func Label(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return titler.String(strings.Join(strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_'
	}), " "))
}
