// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Committee groups leadership positions.
type Committee string

// Committees
const (
	CommitteeManagement Committee = "management"
	CommitteeSports     Committee = "sports"
)

// Committees lists committees in roster order.
var Committees = []Committee{CommitteeManagement, CommitteeSports}

// RoleCatalog lists the fixed positions of each committee in roster order.
var RoleCatalog = map[Committee][]string{
	CommitteeManagement: {
		"Chairperson",
		"Vice-Chairperson",
		"Honorable Secretary",
		"Honorable Treasurer",
		"Chairman of Sports Committee",
		"Co-opted Member 1",
		"Co-opted Member 2",
	},
	CommitteeSports: {
		"Captain",
		"Vice-Captain",
		"Handicap Manager",
		"Green Keeper",
		"Lady Captain",
		"Vice Lady Captain",
		"Junior Convenor",
	},
}

// ParseCommittee returns the committee named by s.
func ParseCommittee(s string) (Committee, bool) {
	for _, c := range Committees {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Rank returns the roster position of the committee, or -1 if unknown.
func (c Committee) Rank() int {
	for i, v := range Committees {
		if v == c {
			return i
		}
	}
	return -1
}

// RoleRank returns the position of role within the committee catalog.
func RoleRank(c Committee, role string) (int, bool) {
	for i, r := range RoleCatalog[c] {
		if r == role {
			return i, true
		}
	}
	return 0, false
}

// LeadershipEntry assigns a person to a committee position.
type LeadershipEntry struct {
	ID        int64     `json:"id"`
	Committee Committee `json:"committee"`
	Role      string    `json:"role"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LeadershipDraft holds the fields supplied when filling a position.
type LeadershipDraft struct {
	Committee Committee `json:"committee"`
	Role      string    `json:"role"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
}

// LeadershipPatch holds the fields to change on a leadership entry.
type LeadershipPatch struct {
	Committee *Committee `json:"committee,omitempty"`
	Role      *string    `json:"role,omitempty"`
	FullName  *string    `json:"full_name,omitempty"`
	Email     *string    `json:"email,omitempty"`

	IfUnmodifiedSince *time.Time `json:"if_unmodified_since,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p LeadershipPatch) Empty() bool {
	return p.Committee == nil && p.Role == nil && p.FullName == nil && p.Email == nil
}

// RosterPosition is one catalog position with its current holder.
// Holder is nil when the position is vacant.
type RosterPosition struct {
	Committee Committee        `json:"committee"`
	Role      string           `json:"role"`
	Holder    *LeadershipEntry `json:"holder"`
}

// Vacant reports whether nobody holds the position.
func (p RosterPosition) Vacant() bool {
	return p.Holder == nil
}

// BuildRoster lays out every catalog position and fills in the holders found
// in entries. Entries for positions outside the catalog are ignored.
func BuildRoster(entries []LeadershipEntry) []RosterPosition {
	type key struct {
		c    Committee
		role string
	}
	held := make(map[key]LeadershipEntry, len(entries))
	for _, e := range entries {
		held[key{e.Committee, e.Role}] = e
	}

	var roster []RosterPosition
	for _, c := range Committees {
		for _, role := range RoleCatalog[c] {
			pos := RosterPosition{Committee: c, Role: role}
			if e, ok := held[key{c, role}]; ok {
				pos.Holder = &e
			}
			roster = append(roster, pos)
		}
	}
	return roster
}
