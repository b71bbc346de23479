// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"time"

	"github.com/olegiv/clubcms/internal/model"
)

// NewsResponse represents a news post in API responses.
type NewsResponse struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	BodyHTML     string     `json:"body_html"`
	Category     string     `json:"category"`
	CategorySlug string     `json:"category_slug"`
	Status       string     `json:"status"`
	Image        string     `json:"image"`
	ImageURL     string     `json:"image_url"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
}

// EventResponse represents an event in API responses.
type EventResponse struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	EventType     string     `json:"event_type"`
	EventTypeSlug string     `json:"event_type_slug"`
	Location      string     `json:"location"`
	StartsAt      time.Time  `json:"starts_at"`
	Status        string     `json:"status"`
	Image         string     `json:"image"`
	ImageURL      string     `json:"image_url"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
}

// GalleryResponse represents a gallery photo in API responses.
type GalleryResponse struct {
	ID           int64      `json:"id"`
	Category     string     `json:"category"`
	CategorySlug string     `json:"category_slug"`
	Status       string     `json:"status"`
	Image        string     `json:"image"`
	ImageURL     string     `json:"image_url"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
}

// LeadershipResponse represents a leadership entry in API responses.
type LeadershipResponse struct {
	ID        int64     `json:"id"`
	Committee string    `json:"committee"`
	Role      string    `json:"role"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Image     string    `json:"image"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RosterPositionResponse is one committee position with its holder.
type RosterPositionResponse struct {
	Committee string              `json:"committee"`
	Role      string              `json:"role"`
	Vacant    bool                `json:"vacant"`
	Holder    *LeadershipResponse `json:"holder"`
}

func (h *Handler) newsResponse(it model.NewsItem) NewsResponse {
	bodyHTML, err := h.svc.Sanitizer().RenderHTML(it.Body)
	if err != nil {
		h.logger.Warn("failed to render news body", "id", it.ID, "error", err)
	}
	return NewsResponse{
		ID:           it.ID,
		Title:        it.Title,
		Body:         it.Body,
		BodyHTML:     bodyHTML,
		Category:     it.Category,
		CategorySlug: it.CategorySlug,
		Status:       string(it.Status),
		Image:        it.Image,
		ImageURL:     h.svc.PublicURL(model.TypeNews, it.Image),
		CreatedAt:    it.CreatedAt,
		UpdatedAt:    it.UpdatedAt,
		PublishedAt:  it.PublishedAt,
	}
}

func (h *Handler) eventResponse(e model.Event) EventResponse {
	return EventResponse{
		ID:            e.ID,
		Title:         e.Title,
		Description:   e.Description,
		EventType:     e.EventType,
		EventTypeSlug: e.EventTypeSlug,
		Location:      e.Location,
		StartsAt:      e.StartsAt,
		Status:        string(e.Status),
		Image:         e.Image,
		ImageURL:      h.svc.PublicURL(model.TypeEvents, e.Image),
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
		PublishedAt:   e.PublishedAt,
	}
}

func (h *Handler) galleryResponse(it model.GalleryItem) GalleryResponse {
	return GalleryResponse{
		ID:           it.ID,
		Category:     it.Category,
		CategorySlug: it.CategorySlug,
		Status:       string(it.Status),
		Image:        it.Image,
		ImageURL:     h.svc.PublicURL(model.TypeGallery, it.Image),
		CreatedAt:    it.CreatedAt,
		UpdatedAt:    it.UpdatedAt,
		PublishedAt:  it.PublishedAt,
	}
}

func (h *Handler) leadershipResponse(e model.LeadershipEntry) LeadershipResponse {
	return LeadershipResponse{
		ID:        e.ID,
		Committee: string(e.Committee),
		Role:      e.Role,
		FullName:  e.FullName,
		Email:     e.Email,
		Image:     e.Image,
		ImageURL:  h.svc.PublicURL(model.TypeLeadership, e.Image),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func (h *Handler) rosterResponse(roster []model.RosterPosition) []RosterPositionResponse {
	out := make([]RosterPositionResponse, 0, len(roster))
	for _, p := range roster {
		pos := RosterPositionResponse{
			Committee: string(p.Committee),
			Role:      p.Role,
			Vacant:    p.Vacant(),
		}
		if p.Holder != nil {
			holder := h.leadershipResponse(*p.Holder)
			pos.Holder = &holder
		}
		out = append(out, pos)
	}
	return out
}
