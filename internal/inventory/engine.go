package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tiendago/storefront/internal/catalog"
)

// ErrReservationFailed means a conditional decrement lost to a concurrent
// order after the availability check passed. Everything that did commit has
// been compensated by the time this is returned.
var ErrReservationFailed = errors.New("stock update failed, order not created")

type Line struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// StockError is the per-line reason an order cannot be fulfilled.
type StockError struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	NotFound    bool   `json:"not_found,omitempty"`
	Available   int    `json:"available"`
	Requested   int    `json:"requested"`
}

func (e *StockError) Error() string {
	if e.NotFound {
		return fmt.Sprintf("product not found: %s", e.ProductID)
	}
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// LineResult carries either the resolved product snapshot or the failure
// reason for one requested line.
type LineResult struct {
	Line    Line
	Product *catalog.Product
	Err     *StockError
}

// CommittedLine records a decrement that actually happened, so compensation
// credits back exactly what was taken and nothing more.
type CommittedLine struct {
	ProductID string
	Qty       int
}

type Engine struct {
	Store catalog.Store
	Log   *zap.Logger
}

func NewEngine(store catalog.Store, log *zap.Logger) *Engine {
	return &Engine{Store: store, Log: log}
}

// CheckAvailability inspects every line before reporting, so the caller can
// surface all problems in one round trip instead of just the first. No stock
// is mutated here.
func (e *Engine) CheckAvailability(ctx context.Context, lines []Line) ([]LineResult, error) {
	results := make([]LineResult, len(lines))
	for i, ln := range lines {
		results[i].Line = ln
		p, err := e.Store.Get(ctx, ln.ProductID)
		if errors.Is(err, catalog.ErrNotFound) {
			results[i].Err = &StockError{ProductID: ln.ProductID, NotFound: true, Requested: ln.Qty}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("catalog lookup %s: %w", ln.ProductID, err)
		}
		if p.Stock < ln.Qty {
			results[i].Err = &StockError{
				ProductID:   ln.ProductID,
				ProductName: p.Name,
				Available:   p.Stock,
				Requested:   ln.Qty,
			}
			continue
		}
		results[i].Product = p
	}
	return results, nil
}

// Failures filters a check result down to the failed lines.
func Failures(results []LineResult) []*StockError {
	var out []*StockError
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r.Err)
		}
	}
	return out
}

// CommitReservation issues one conditional decrement per line. The decrements
// run concurrently, but the failure decision waits until every one has
// settled, so compensation never races a still-in-flight commit. On any
// failure the committed subset is credited back and ErrReservationFailed is
// returned.
func (e *Engine) CommitReservation(ctx context.Context, lines []Line) ([]CommittedLine, error) {
	type outcome struct {
		ok  bool
		err error
	}
	outcomes := make([]outcome, len(lines))

	var wg sync.WaitGroup
	for i, ln := range lines {
		wg.Add(1)
		go func(i int, ln Line) {
			defer wg.Done()
			ok, err := e.Store.DecrementStock(ctx, ln.ProductID, ln.Qty)
			outcomes[i] = outcome{ok: ok, err: err}
		}(i, ln)
	}
	wg.Wait()

	var committed []CommittedLine
	failed := false
	for i, out := range outcomes {
		if out.err != nil {
			e.Log.Error("stock decrement failed",
				zap.String("product_id", lines[i].ProductID), zap.Error(out.err))
			failed = true
			continue
		}
		if !out.ok {
			// stock moved between check and commit; the conditional write
			// refused rather than overdraw
			e.Log.Info("reservation lost to concurrent order",
				zap.String("product_id", lines[i].ProductID), zap.Int("qty", lines[i].Qty))
			failed = true
			continue
		}
		committed = append(committed, CommittedLine{ProductID: lines[i].ProductID, Qty: lines[i].Qty})
	}

	if failed {
		if err := e.Compensate(ctx, committed); err != nil {
			// lost-stock condition: escalate, never swallow
			return committed, fmt.Errorf("compensation after partial commit: %w", err)
		}
		return nil, ErrReservationFailed
	}
	return committed, nil
}

// Compensate credits back the lines that actually committed. Called at most
// once per committed set.
func (e *Engine) Compensate(ctx context.Context, committed []CommittedLine) error {
	var g errgroup.Group
	for _, c := range committed {
		c := c
		g.Go(func() error {
			if err := e.Store.IncrementStock(ctx, c.ProductID, c.Qty); err != nil {
				return fmt.Errorf("restore stock %s: %w", c.ProductID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Restore puts back the quantities of an existing order's lines when it is
// cancelled. A failed restore is reported to the caller so the cancel
// transition can be aborted instead of losing stock silently.
func (e *Engine) Restore(ctx context.Context, lines []Line) error {
	var g errgroup.Group
	for _, ln := range lines {
		ln := ln
		g.Go(func() error {
			if err := e.Store.IncrementStock(ctx, ln.ProductID, ln.Qty); err != nil {
				return fmt.Errorf("restore stock %s: %w", ln.ProductID, err)
			}
			return nil
		})
	}
	return g.Wait()
}
