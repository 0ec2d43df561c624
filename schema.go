package multitoken

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// SchemaOption changes how CreateSchema lays out the tables
type SchemaOption func(*schemaOptions)

type schemaOptions struct {
	ownerTable  string
	createUsers bool
}

// WithOwnerTable points the owner_id foreign keys at an existing identity
// table instead of the reference users table. The table is not created.
func WithOwnerTable(table string) SchemaOption {
	return func(o *schemaOptions) {
		if table != "" {
			o.ownerTable = table
			o.createUsers = false
		}
	}
}

// CreateSchema creates the users, tokens and reset tokens tables. It is safe
// to run more than once.
func CreateSchema(ctx context.Context, db bun.IDB, opts ...SchemaOption) error {
	o := &schemaOptions{ownerTable: "users", createUsers: true}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	if o.createUsers {
		if _, err := db.NewCreateTable().
			Model((*User)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("create users table: %w", err)
		}
	}

	fk := fmt.Sprintf(`("owner_id") REFERENCES "%s" ("id") ON DELETE CASCADE`, o.ownerTable)

	for _, model := range []any{(*Token)(nil), (*ResetToken)(nil)} {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			ForeignKey(fk).
			Exec(ctx); err != nil {
			return fmt.Errorf("create token table: %w", err)
		}
	}

	indexes := []struct {
		model any
		name  string
	}{
		{(*Token)(nil), "multitoken_tokens_owner_id_idx"},
		{(*ResetToken)(nil), "multitoken_reset_tokens_owner_id_idx"},
	}
	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			IfNotExists().
			Column("owner_id").
			Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}

	return nil
}

// DropSchema drops the token tables, and the users table unless the owner
// table is external
func DropSchema(ctx context.Context, db bun.IDB, opts ...SchemaOption) error {
	o := &schemaOptions{ownerTable: "users", createUsers: true}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	models := []any{(*ResetToken)(nil), (*Token)(nil)}
	if o.createUsers {
		models = append(models, (*User)(nil))
	}

	for _, model := range models {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}
	return nil
}
