// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"github.com/olegiv/clubcms/internal/model"
)

const leadershipColumns = "id, committee, role, full_name, email, image, created_at, updated_at"

// LeadershipStore persists committee position holders. Each (committee, role)
// pair has at most one holder; a second insert returns ErrDuplicate.
type LeadershipStore struct {
	table
}

// Insert stores a new position holder and returns its id.
func (s *LeadershipStore) Insert(ctx context.Context, d model.LeadershipDraft, image string) (int64, error) {
	cr, rr, err := ranks(d.Committee, d.Role)
	if err != nil {
		return 0, err
	}
	id, _, err := s.insert(ctx,
		[]string{"committee", "role", "committee_rank", "role_rank", "full_name", "email", "image"},
		[]any{string(d.Committee), d.Role, cr, rr, d.FullName, d.Email, image},
	)
	return id, err
}

// Get returns the entry with the given id.
func (s *LeadershipStore) Get(ctx context.Context, id int64) (model.LeadershipEntry, error) {
	row := s.s.db.QueryRowContext(ctx, "SELECT "+leadershipColumns+" FROM leadership WHERE id = ?", id)
	e, err := scanLeadership(row)
	if errors.Is(err, sql.ErrNoRows) {
		return e, ErrNotFound
	}
	return e, err
}

// Update applies the non-nil fields of p. Moving an entry to another
// position re-reads the current position in the same transaction so the
// stored ordering ranks stay consistent.
func (s *LeadershipStore) Update(ctx context.Context, id int64, p model.LeadershipPatch, image *string) error {
	tx, err := s.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning leadership update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var sets setList
	if p.Committee != nil || p.Role != nil {
		var committee, role string
		err := tx.QueryRowContext(ctx, "SELECT committee, role FROM leadership WHERE id = ?", id).Scan(&committee, &role)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		c := model.Committee(committee)
		if p.Committee != nil {
			c = *p.Committee
		}
		if p.Role != nil {
			role = *p.Role
		}
		cr, rr, err := ranks(c, role)
		if err != nil {
			return err
		}
		sets.add("committee", string(c))
		sets.add("role", role)
		sets.add("committee_rank", cr)
		sets.add("role_rank", rr)
	}
	if p.FullName != nil {
		sets.add("full_name", *p.FullName)
	}
	if p.Email != nil {
		sets.add("email", *p.Email)
	}
	if image != nil {
		sets.add("image", *image)
	}

	now, err := s.update(ctx, tx, id, &sets)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return s.wrap("committing", err)
	}
	s.changed(ctx, model.OpUpdate, id, now)
	return nil
}

// Delete removes the entry, leaving the position vacant.
func (s *LeadershipStore) Delete(ctx context.Context, id int64) error {
	return s.delete(ctx, id)
}

// List returns entries in roster order.
func (s *LeadershipStore) List(ctx context.Context, f ListFilter) iter.Seq2[model.LeadershipEntry, error] {
	w := leadershipWhere(f)
	limit, largs := page(f)
	query := "SELECT " + leadershipColumns + " FROM leadership" + w.clause() + " ORDER BY committee_rank, role_rank, id" + limit
	return listRows(ctx, s.s.db, query, append(w.values(), largs...), scanLeadership)
}

// Count returns the number of entries matching f, ignoring paging.
func (s *LeadershipStore) Count(ctx context.Context, f ListFilter) (int64, error) {
	return s.count(ctx, leadershipWhere(f))
}

func leadershipWhere(f ListFilter) *where {
	w := &where{}
	if f.Committee != "" {
		w.add("committee = ?", string(f.Committee))
	}
	return w
}

// ranks returns the ordering ranks of a catalog position. Positions outside
// the catalog sort after it.
func ranks(c model.Committee, role string) (int, int, error) {
	cr := c.Rank()
	if cr < 0 {
		return 0, 0, fmt.Errorf("unknown committee %q", c)
	}
	rr, ok := model.RoleRank(c, role)
	if !ok {
		rr = len(model.RoleCatalog[c])
	}
	return cr, rr, nil
}

func scanLeadership(sc scanner) (model.LeadershipEntry, error) {
	var (
		e                model.LeadershipEntry
		committee        string
		created, updated string
	)
	err := sc.Scan(&e.ID, &committee, &e.Role, &e.FullName, &e.Email, &e.Image, &created, &updated)
	if err != nil {
		return e, err
	}
	e.Committee = model.Committee(committee)
	if e.CreatedAt, err = parseTime(created); err != nil {
		return e, err
	}
	e.UpdatedAt, err = parseTime(updated)
	return e, err
}
