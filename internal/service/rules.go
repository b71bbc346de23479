// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"net/mail"
	"time"
	"unicode/utf8"

	"github.com/olegiv/clubcms/internal/model"
)

// Field limits
const (
	MaxTitleLength    = 200
	MaxLabelLength    = 100
	MaxBodyLength     = 50000
	MaxNameLength     = 120
	MaxLocationLength = 200
)

func required(errs fieldErrors, field, v string, limit int) {
	switch {
	case v == "":
		errs.add(field, "is required")
	case utf8.RuneCountInString(v) > limit:
		errs.add(field, "is too long")
	}
}

func optional(errs fieldErrors, field, v string, limit int) {
	if utf8.RuneCountInString(v) > limit {
		errs.add(field, "is too long")
	}
}

func cleanPtr(p *string, clean func(string) string) *string {
	if p == nil {
		return nil
	}
	v := clean(*p)
	return &v
}

func newsRules(s *Sanitizer) rules[model.NewsItem, model.NewsDraft, model.NewsPatch] {
	return rules[model.NewsItem, model.NewsDraft, model.NewsPatch]{
		draft: func(d model.NewsDraft) (model.NewsDraft, fieldErrors) {
			errs := fieldErrors{}
			d.Title = s.Line(d.Title)
			d.Body = s.Text(d.Body)
			d.Category = s.Line(d.Category)
			required(errs, "title", d.Title, MaxTitleLength)
			required(errs, "body", d.Body, MaxBodyLength)
			optional(errs, "category", d.Category, MaxLabelLength)
			return d, errs
		},
		patch: func(p model.NewsPatch) (model.NewsPatch, fieldErrors) {
			errs := fieldErrors{}
			p.Title = cleanPtr(p.Title, s.Line)
			p.Body = cleanPtr(p.Body, s.Text)
			p.Category = cleanPtr(p.Category, s.Line)
			if p.Title != nil {
				required(errs, "title", *p.Title, MaxTitleLength)
			}
			if p.Body != nil {
				required(errs, "body", *p.Body, MaxBodyLength)
			}
			if p.Category != nil {
				optional(errs, "category", *p.Category, MaxLabelLength)
			}
			return p, errs
		},
		empty:        model.NewsPatch.Empty,
		image:        func(r model.NewsItem) string { return r.Image },
		updatedAt:    func(r model.NewsItem) time.Time { return r.UpdatedAt },
		unmodifiedBy: func(p model.NewsPatch) *time.Time { return p.IfUnmodifiedSince },
	}
}

func eventRules(s *Sanitizer) rules[model.Event, model.EventDraft, model.EventPatch] {
	return rules[model.Event, model.EventDraft, model.EventPatch]{
		draft: func(d model.EventDraft) (model.EventDraft, fieldErrors) {
			errs := fieldErrors{}
			d.Title = s.Line(d.Title)
			d.Description = s.Text(d.Description)
			d.EventType = s.Line(d.EventType)
			d.Location = s.Line(d.Location)
			required(errs, "title", d.Title, MaxTitleLength)
			required(errs, "event_type", d.EventType, MaxLabelLength)
			optional(errs, "description", d.Description, MaxBodyLength)
			optional(errs, "location", d.Location, MaxLocationLength)
			if d.StartsAt.IsZero() {
				errs.add("starts_at", "is required")
			}
			return d, errs
		},
		patch: func(p model.EventPatch) (model.EventPatch, fieldErrors) {
			errs := fieldErrors{}
			p.Title = cleanPtr(p.Title, s.Line)
			p.Description = cleanPtr(p.Description, s.Text)
			p.EventType = cleanPtr(p.EventType, s.Line)
			p.Location = cleanPtr(p.Location, s.Line)
			if p.Title != nil {
				required(errs, "title", *p.Title, MaxTitleLength)
			}
			if p.EventType != nil {
				required(errs, "event_type", *p.EventType, MaxLabelLength)
			}
			if p.Description != nil {
				optional(errs, "description", *p.Description, MaxBodyLength)
			}
			if p.Location != nil {
				optional(errs, "location", *p.Location, MaxLocationLength)
			}
			if p.StartsAt != nil && p.StartsAt.IsZero() {
				errs.add("starts_at", "is required")
			}
			return p, errs
		},
		empty:        model.EventPatch.Empty,
		image:        func(r model.Event) string { return r.Image },
		updatedAt:    func(r model.Event) time.Time { return r.UpdatedAt },
		unmodifiedBy: func(p model.EventPatch) *time.Time { return p.IfUnmodifiedSince },
	}
}

func galleryRules(s *Sanitizer) rules[model.GalleryItem, model.GalleryDraft, model.GalleryPatch] {
	return rules[model.GalleryItem, model.GalleryDraft, model.GalleryPatch]{
		imageRequired: true,
		draft: func(d model.GalleryDraft) (model.GalleryDraft, fieldErrors) {
			errs := fieldErrors{}
			d.Category = s.Line(d.Category)
			required(errs, "category", d.Category, MaxLabelLength)
			return d, errs
		},
		patch: func(p model.GalleryPatch) (model.GalleryPatch, fieldErrors) {
			errs := fieldErrors{}
			p.Category = cleanPtr(p.Category, s.Line)
			if p.Category != nil {
				required(errs, "category", *p.Category, MaxLabelLength)
			}
			return p, errs
		},
		empty:        model.GalleryPatch.Empty,
		image:        func(r model.GalleryItem) string { return r.Image },
		updatedAt:    func(r model.GalleryItem) time.Time { return r.UpdatedAt },
		unmodifiedBy: func(p model.GalleryPatch) *time.Time { return p.IfUnmodifiedSince },
	}
}

func leadershipRules(s *Sanitizer) rules[model.LeadershipEntry, model.LeadershipDraft, model.LeadershipPatch] {
	return rules[model.LeadershipEntry, model.LeadershipDraft, model.LeadershipPatch]{
		draft: func(d model.LeadershipDraft) (model.LeadershipDraft, fieldErrors) {
			errs := fieldErrors{}
			d.Role = s.Line(d.Role)
			d.FullName = s.Line(d.FullName)
			d.Email = s.Line(d.Email)
			checkPosition(errs, d.Committee, d.Role)
			required(errs, "full_name", d.FullName, MaxNameLength)
			checkEmail(errs, d.Email)
			return d, errs
		},
		patch: func(p model.LeadershipPatch) (model.LeadershipPatch, fieldErrors) {
			errs := fieldErrors{}
			p.Role = cleanPtr(p.Role, s.Line)
			p.FullName = cleanPtr(p.FullName, s.Line)
			p.Email = cleanPtr(p.Email, s.Line)
			if p.Committee != nil && p.Committee.Rank() < 0 {
				errs.add("committee", "must be management or sports")
			}
			if p.FullName != nil {
				required(errs, "full_name", *p.FullName, MaxNameLength)
			}
			if p.Email != nil {
				checkEmail(errs, *p.Email)
			}
			return p, errs
		},
		// A move is checked against the position it would end up in.
		check: func(r model.LeadershipEntry, p model.LeadershipPatch) fieldErrors {
			if p.Committee == nil && p.Role == nil {
				return nil
			}
			errs := fieldErrors{}
			c, role := r.Committee, r.Role
			if p.Committee != nil {
				c = *p.Committee
			}
			if p.Role != nil {
				role = *p.Role
			}
			checkPosition(errs, c, role)
			return errs
		},
		empty:        model.LeadershipPatch.Empty,
		image:        func(r model.LeadershipEntry) string { return r.Image },
		updatedAt:    func(r model.LeadershipEntry) time.Time { return r.UpdatedAt },
		unmodifiedBy: func(p model.LeadershipPatch) *time.Time { return p.IfUnmodifiedSince },
	}
}

func checkPosition(errs fieldErrors, c model.Committee, role string) {
	if c.Rank() < 0 {
		errs.add("committee", "must be management or sports")
		return
	}
	if role == "" {
		errs.add("role", "is required")
		return
	}
	if _, ok := model.RoleRank(c, role); !ok {
		errs.add("role", "is not a position of the "+string(c)+" committee")
	}
}

func checkEmail(errs fieldErrors, email string) {
	if email == "" {
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		errs.add("email", "is not a valid address")
	}
}
