package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base holds the connection a repository queries through. Inside a unit of work that
// connection is the transaction handle, so every statement joins the caller's transaction.
type Base struct {
	conn *gorm.DB
}

func NewBase(conn *gorm.DB) Base {
	return Base{conn: conn}
}

// WithTx rebinds to tx. A nil tx keeps the current connection.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{conn: tx}
}

// DB returns the connection bound to ctx. A nil ctx returns it unchanged.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.conn
	}
	return b.conn.WithContext(ctx)
}
