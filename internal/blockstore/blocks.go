package blockstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/blackmichael/bluesky-extract/internal/domain"
)

// BlockString returns the text of a block.
func (s *Store) BlockString(ctx context.Context, uid string) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT string FROM blocks WHERE uid = ?`), uid).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", domain.ErrBlockNotFound, uid)
	}
	if err != nil {
		return "", fmt.Errorf("query block %s: %w", uid, err)
	}
	return text, nil
}

// UpdateBlock replaces a block's text.
func (s *Store) UpdateBlock(ctx context.Context, uid, text string) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE blocks SET string = ?, updated_at = ? WHERE uid = ?`),
		text, s.now(), uid,
	)
	if err != nil {
		return &domain.HostWriteError{Op: "update", UID: uid, Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.HostWriteError{Op: "update", UID: uid, Err: domain.ErrBlockNotFound}
	}
	return nil
}

// CreateBlock inserts a block under parentUID. An empty parentUID creates a
// page. order is the zero-based position among siblings; later siblings are
// shifted down. domain.OrderLast appends.
func (s *Store) CreateBlock(ctx context.Context, parentUID string, order int, text, uid string) (string, error) {
	if uid == "" {
		uid = s.NewUID()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if parentUID != "" {
		var exists int
		err := tx.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM blocks WHERE uid = ?`), parentUID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return "", &domain.HostWriteError{Op: "create", UID: parentUID, Err: domain.ErrBlockNotFound}
		}
		if err != nil {
			return "", fmt.Errorf("query parent %s: %w", parentUID, err)
		}
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		s.rebind(`SELECT COALESCE(MAX(ord) + 1, 0) FROM blocks WHERE parent_uid = ?`), parentUID,
	).Scan(&next); err != nil {
		return "", fmt.Errorf("query sibling order: %w", err)
	}

	if order < 0 || order > next {
		order = next
	}
	if order < next {
		if _, err := tx.ExecContext(ctx,
			s.rebind(`UPDATE blocks SET ord = ord + 1 WHERE parent_uid = ? AND ord >= ?`), parentUID, order,
		); err != nil {
			return "", fmt.Errorf("shift siblings: %w", err)
		}
	}

	now := s.now()
	if _, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO blocks (uid, parent_uid, ord, string, pending, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)`),
		uid, parentUID, order, text, now, now,
	); err != nil {
		return "", &domain.HostWriteError{Op: "create", UID: parentUID, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	return uid, nil
}

// EnsurePage returns the UID of the page titled title, creating it if needed.
func (s *Store) EnsurePage(ctx context.Context, title string) (string, error) {
	var uid string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT uid FROM blocks WHERE parent_uid = '' AND string = ? ORDER BY seq LIMIT 1`), title,
	).Scan(&uid)
	if err == nil {
		return uid, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("query page %q: %w", title, err)
	}
	return s.CreateBlock(ctx, "", domain.OrderLast, title, "")
}

// Block returns a block with its descendants.
func (s *Store) Block(ctx context.Context, uid string) (*domain.Block, error) {
	b := &domain.Block{UID: uid}
	var pending int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT parent_uid, ord, string, pending FROM blocks WHERE uid = ?`), uid,
	).Scan(&b.ParentUID, &b.Order, &b.String, &pending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrBlockNotFound, uid)
	}
	if err != nil {
		return nil, fmt.Errorf("query block %s: %w", uid, err)
	}
	b.Pending = pending != 0

	children, err := s.children(ctx, uid)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		full, err := s.Block(ctx, child)
		if err != nil {
			return nil, err
		}
		b.Children = append(b.Children, full)
	}
	return b, nil
}

func (s *Store) children(ctx context.Context, uid string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT uid FROM blocks WHERE parent_uid = ? ORDER BY ord`), uid,
	)
	if err != nil {
		return nil, fmt.Errorf("query children of %s: %w", uid, err)
	}
	defer rows.Close()

	var uids []string
	for rows.Next() {
		var child string
		if err := rows.Scan(&child); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		uids = append(uids, child)
	}
	return uids, rows.Err()
}

// TaggedBlocks returns the blocks referencing tag as [[tag]], #[[tag]] or
// #tag, oldest first.
func (s *Store) TaggedBlocks(ctx context.Context, tag string) ([]domain.BatchItem, error) {
	ref := regexp.MustCompile(`\[\[` + regexp.QuoteMeta(tag) + `\]\]|#` + regexp.QuoteMeta(tag) + `(?:[^\w/-]|$)`)

	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT uid, string FROM blocks WHERE string LIKE ? ORDER BY seq`),
		"%"+escapeLike(tag)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("query tagged blocks: %w", err)
	}
	defer rows.Close()

	var items []domain.BatchItem
	for rows.Next() {
		var item domain.BatchItem
		if err := rows.Scan(&item.UID, &item.Text); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		if ref.MatchString(item.Text) {
			items = append(items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return items, nil
}

// Show marks a block as pending.
func (s *Store) Show(ctx context.Context, uid string) {
	s.setPending(ctx, uid, 1)
}

// Hide clears a block's pending mark, even once ctx is cancelled.
func (s *Store) Hide(ctx context.Context, uid string) {
	s.setPending(context.WithoutCancel(ctx), uid, 0)
}

func (s *Store) setPending(ctx context.Context, uid string, v int) {
	_, _ = s.db.ExecContext(ctx, s.rebind(`UPDATE blocks SET pending = ? WHERE uid = ?`), v, uid)
}

// escapeLike drops LIKE wildcards; the regexp match afterwards is exact.
func escapeLike(s string) string {
	return strings.NewReplacer("%", "_", "\\", "_").Replace(s)
}
