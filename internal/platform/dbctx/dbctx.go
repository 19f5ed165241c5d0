package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional transaction.
// Repos fall back to their own db handle when Tx is nil.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

func New(ctx context.Context) Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return Context{Ctx: ctx}
}

func (c Context) WithTx(tx *gorm.DB) Context {
	return Context{Ctx: c.Ctx, Tx: tx}
}
