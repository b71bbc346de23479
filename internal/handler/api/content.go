// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/olegiv/clubcms/internal/cache"
	"github.com/olegiv/clubcms/internal/handler"
	"github.com/olegiv/clubcms/internal/middleware"
	"github.com/olegiv/clubcms/internal/model"
	"github.com/olegiv/clubcms/internal/service"
	"github.com/olegiv/clubcms/internal/store"
	"github.com/olegiv/clubcms/internal/util"
)

const (
	// maxJSONBody bounds JSON request bodies.
	maxJSONBody = 1 << 20
	// multipartMemory is how much of a multipart form is kept in memory
	// before spilling file parts to disk.
	multipartMemory = 8 << 20
	// formOverhead allows for the non-file parts of a multipart form.
	formOverhead = 1 << 20
)

// resource serves the CRUD routes of one content collection.
type resource[R, D, P any] struct {
	h       *Handler
	coll    *service.Collection[R, D, P]
	respond func(R) any
	// visible reports whether anonymous callers may see a record. Nil
	// means every record is public.
	visible func(R) bool
}

// UpdateResponse reports the outcome of an update.
type UpdateResponse struct {
	Outcome    service.Outcome `json:"outcome"`
	Record     any             `json:"record"`
	MediaError string          `json:"media_error,omitempty"`
}

// DeleteResponse reports what a delete removed.
type DeleteResponse struct {
	ID         int64  `json:"id"`
	Image      string `json:"image,omitempty"`
	Reclaimed  bool   `json:"reclaimed"`
	MediaError string `json:"media_error,omitempty"`
}

// list handles GET /{type}.
func (rs *resource[R, D, P]) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t := rs.coll.Type()

	f, ok := listFilter(w, r, t)
	if !ok {
		return
	}
	page := handler.ParsePageParam(r)
	perPage := handler.ParsePerPageParam(r, defaultPerPage, maxPerPage)
	f.Limit = perPage
	f.Offset = (page - 1) * perPage

	items, total, err := cache.LoadList(ctx, rs.h.lists, t, f, func() ([]R, int64, error) {
		return rs.coll.List(ctx, f)
	})
	if err != nil {
		rs.h.writeServiceError(w, err, "list "+t.String())
		return
	}

	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, rs.respond(it))
	}
	WriteSuccess(w, out, &Meta{
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   handler.TotalPages(total, perPage),
	})
}

// get handles GET /{type}/{id}. Anonymous callers only see published records.
func (rs *resource[R, D, P]) get(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid id", nil)
		return
	}

	rec, err := rs.coll.Get(r.Context(), id)
	if err != nil {
		rs.h.writeServiceError(w, err, "get "+rs.coll.Type().String())
		return
	}
	if rs.visible != nil && middleware.Author(r) == "" && !rs.visible(rec) {
		WriteNotFound(w, "Record not found")
		return
	}
	WriteSuccess(w, rs.respond(rec), nil)
}

// create handles POST /{type}.
func (rs *resource[R, D, P]) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t := rs.coll.Type()

	var d D
	up, cleanup, ok := rs.h.readInput(w, r, &d)
	if !ok {
		return
	}
	defer cleanup()

	id, err := rs.coll.Create(ctx, d, up)
	if err != nil {
		rs.h.writeServiceError(w, err, "create "+t.String())
		return
	}
	rec, err := rs.coll.Get(ctx, id)
	if err != nil {
		rs.h.writeServiceError(w, err, "get "+t.String())
		return
	}
	rs.h.logger.Info("record created", "type", t, "id", id, "author", middleware.Author(r))
	WriteCreated(w, rs.respond(rec))
}

// update handles PUT /{type}/{id}.
func (rs *resource[R, D, P]) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t := rs.coll.Type()

	id, err := handler.ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid id", nil)
		return
	}

	var p P
	up, cleanup, ok := rs.h.readInput(w, r, &p)
	if !ok {
		return
	}
	defer cleanup()

	res, err := rs.coll.Update(ctx, id, p, up)
	if err != nil {
		rs.h.writeServiceError(w, err, "update "+t.String())
		return
	}
	rec, err := rs.coll.Get(ctx, id)
	if err != nil {
		rs.h.writeServiceError(w, err, "get "+t.String())
		return
	}

	resp := UpdateResponse{Outcome: res.Outcome, Record: rs.respond(rec)}
	if res.MediaErr != nil {
		resp.MediaError = "Image upload failed, the previous image was kept"
	}
	rs.h.logger.Info("record updated", "type", t, "id", id, "outcome", res.Outcome, "author", middleware.Author(r))
	WriteSuccess(w, resp, nil)
}

// remove handles DELETE /{type}/{id}. With ?reclaim=true the image blob is
// deleted as well.
func (rs *resource[R, D, P]) remove(w http.ResponseWriter, r *http.Request) {
	t := rs.coll.Type()

	id, err := handler.ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid id", nil)
		return
	}
	reclaim, _, err := handler.ParseBoolParam(r, "reclaim")
	if err != nil {
		WriteBadRequest(w, "Invalid reclaim parameter", map[string]string{"reclaim": "must be true or false"})
		return
	}

	res, err := rs.coll.Delete(r.Context(), id, reclaim)
	if err != nil {
		rs.h.writeServiceError(w, err, "delete "+t.String())
		return
	}

	resp := DeleteResponse{ID: id, Image: res.Image, Reclaimed: res.Reclaimed}
	if res.MediaErr != nil {
		resp.MediaError = "Image could not be removed, it will be reclaimed later"
	}
	rs.h.logger.Info("record deleted", "type", t, "id", id, "author", middleware.Author(r))
	WriteSuccess(w, resp, nil)
}

// listFilter builds the list filter from the query. Anonymous callers
// always get published records only.
func listFilter(w http.ResponseWriter, r *http.Request, t model.ContentType) (store.ListFilter, bool) {
	q := r.URL.Query()
	bad := make(map[string]string)

	var f store.ListFilter
	published, set, err := handler.ParseBoolParam(r, "published")
	switch {
	case err != nil:
		bad["published"] = "must be true or false"
	case t.Publishable():
		f.PublishedOnly = middleware.Author(r) == "" || (set && published)
	}

	if category := strings.TrimSpace(q.Get("category")); category != "" {
		switch {
		case t == model.TypeLeadership:
			bad["category"] = "not supported for " + t.String()
		case !util.IsValidSlug(util.Slugify(category)):
			bad["category"] = "must contain letters or digits"
		}
		f.Category = category
	}

	if committee := strings.TrimSpace(q.Get("committee")); committee != "" {
		c, ok := model.ParseCommittee(committee)
		switch {
		case t != model.TypeLeadership:
			bad["committee"] = "not supported for " + t.String()
		case !ok:
			bad["committee"] = "unknown committee"
		}
		f.Committee = c
	}

	upcoming, _, err := handler.ParseBoolParam(r, "upcoming")
	switch {
	case err != nil:
		bad["upcoming"] = "must be true or false"
	case upcoming && t != model.TypeEvents:
		bad["upcoming"] = "not supported for " + t.String()
	}
	f.Upcoming = upcoming

	if len(bad) > 0 {
		WriteBadRequest(w, "Invalid query parameters", bad)
		return f, false
	}
	return f, true
}

// readInput decodes v from a JSON body or from the fields of a multipart
// form. A multipart form may carry the image in its "image" part. The
// returned cleanup releases the upload and must be called once the
// request is handled. On false the response has been written.
func (h *Handler) readInput(w http.ResponseWriter, r *http.Request, v any) (*service.Upload, func(), bool) {
	noop := func() {}

	if !isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := json.NewDecoder(r.Body).Decode(v); err != nil {
			WriteBadRequest(w, "Invalid JSON body", nil)
			return nil, noop, false
		}
		return nil, noop, true
	}

	if !h.parseMultipart(w, r, h.maxUpload+formOverhead) {
		return nil, noop, false
	}
	cleanForm := func() { _ = r.MultipartForm.RemoveAll() }

	if err := formToJSON(r.MultipartForm.Value, v); err != nil {
		cleanForm()
		WriteBadRequest(w, "Invalid form fields", map[string]string{"form": err.Error()})
		return nil, noop, false
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, cleanForm, true
	}
	if err != nil {
		cleanForm()
		WriteBadRequest(w, "Invalid image part", nil)
		return nil, noop, false
	}
	if header.Size > h.maxUpload {
		_ = file.Close()
		cleanForm()
		WriteValidationError(w, map[string]string{"image": "exceeds the maximum upload size"})
		return nil, noop, false
	}

	up := &service.Upload{Filename: header.Filename, Body: file}
	return up, func() {
		_ = file.Close()
		cleanForm()
	}, true
}

// parseMultipart parses a multipart body of at most limit bytes.
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request, limit int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteValidationError(w, map[string]string{"image": "exceeds the maximum upload size"})
			return false
		}
		WriteBadRequest(w, "Invalid multipart form", nil)
		return false
	}
	return true
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// formToJSON maps single-valued form fields onto the JSON fields of v.
// Empty fields are treated as absent; "published" is parsed as a boolean.
func formToJSON(values map[string][]string, v any) error {
	fields := make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) == 0 || vs[0] == "" {
			continue
		}
		if k == "published" {
			b, err := strconv.ParseBool(vs[0])
			if err != nil {
				return fmt.Errorf("published: must be true or false")
			}
			fields[k] = b
			continue
		}
		fields[k] = vs[0]
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%s: invalid value", typeErr.Field)
		}
		return errors.New("invalid field value")
	}
	return nil
}
