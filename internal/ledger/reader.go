package ledger

import (
	"context"
	"fmt"
	"iter"

	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-ledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-ledger/pkg/errors"
)

const defaultPageSize = 1000

// Reader streams ledger events in seq order one page at a time.
type Reader struct {
	repo     Repository
	pageSize int
}

func NewReader(repo Repository, pageSize int) (*Reader, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Reader{repo: repo, pageSize: pageSize}, nil
}

// WithTx returns a reader whose pages are fetched inside tx.
func (r *Reader) WithTx(tx *gorm.DB) *Reader {
	return &Reader{repo: r.repo.WithTx(tx), pageSize: r.pageSize}
}

// ReadEvents yields events inside window ascending by seq. The sequence is lazy and can be
// ranged over again; each pass re-reads from the start. A storage failure is yielded once
// as a dependency error and ends the sequence.
func (r *Reader) ReadEvents(ctx context.Context, window Window) iter.Seq2[models.LedgerEvent, error] {
	return func(yield func(models.LedgerEvent, error) bool) {
		var after int64
		for {
			if err := ctx.Err(); err != nil {
				yield(models.LedgerEvent{}, err)
				return
			}
			page, err := r.repo.ListAfter(ctx, after, window, r.pageSize)
			if err != nil {
				yield(models.LedgerEvent{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("read ledger after seq %d", after)))
				return
			}
			for _, event := range page {
				if !yield(event, nil) {
					return
				}
			}
			if len(page) < r.pageSize {
				return
			}
			after = page[len(page)-1].Seq
		}
	}
}
