// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "testing"

func TestRoleRank(t *testing.T) {
	tests := []struct {
		name      string
		committee Committee
		role      string
		wantRank  int
		wantOK    bool
	}{
		{"first management role", CommitteeManagement, "Chairperson", 0, true},
		{"last sports role", CommitteeSports, "Junior Convenor", 6, true},
		{"role from other committee", CommitteeSports, "Chairperson", 0, false},
		{"unknown committee", Committee("social"), "Captain", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rank, ok := RoleRank(tt.committee, tt.role)
			if ok != tt.wantOK || rank != tt.wantRank {
				t.Errorf("RoleRank() = %d, %v; want %d, %v", rank, ok, tt.wantRank, tt.wantOK)
			}
		})
	}
}

func TestBuildRoster(t *testing.T) {
	entries := []LeadershipEntry{
		{ID: 1, Committee: CommitteeSports, Role: "Captain", FullName: "A. Player"},
		{ID: 2, Committee: CommitteeManagement, Role: "Chairperson", FullName: "B. Chair"},
		{ID: 3, Committee: CommitteeManagement, Role: "Patron", FullName: "Not In Catalog"},
	}

	roster := BuildRoster(entries)

	want := len(RoleCatalog[CommitteeManagement]) + len(RoleCatalog[CommitteeSports])
	if len(roster) != want {
		t.Fatalf("len(roster) = %d, want %d", len(roster), want)
	}

	if roster[0].Role != "Chairperson" || roster[0].Vacant() {
		t.Errorf("roster[0] = %+v, want filled Chairperson", roster[0])
	}
	if !roster[1].Vacant() {
		t.Errorf("Vice-Chairperson should be vacant")
	}

	first := len(RoleCatalog[CommitteeManagement])
	if roster[first].Committee != CommitteeSports || roster[first].Holder == nil || roster[first].Holder.ID != 1 {
		t.Errorf("first sports position = %+v, want Captain held by 1", roster[first])
	}

	for _, p := range roster {
		if p.Holder != nil && p.Holder.ID == 3 {
			t.Error("entry outside the catalog should not appear")
		}
	}
}
