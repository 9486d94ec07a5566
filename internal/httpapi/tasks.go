// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dayplan/dayplan/internal/core"
	"github.com/dayplan/dayplan/internal/task"
	"github.com/dayplan/dayplan/pkg/errutil"
)

type taskResponse struct {
	ID          string     `json:"id"`
	Content     string     `json:"content"`
	Bucket      string     `json:"bucket"`
	Position    int        `json:"position"`
	Done        bool       `json:"done"`
	DoneAt      *time.Time `json:"doneAt"`
	Color       int        `json:"color"`
	Reoccurring bool       `json:"reoccurring"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func toTaskResponse(t *task.Task) taskResponse {
	return taskResponse{
		ID:          t.ID.String(),
		Content:     t.Content,
		Bucket:      t.Bucket.String(),
		Position:    t.Position,
		Done:        t.Done,
		DoneAt:      t.DoneAt,
		Color:       t.Color,
		Reoccurring: t.Reoccurring,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

type taskEnvelope struct {
	Task taskResponse `json:"task"`
}

type tasksEnvelope struct {
	Tasks []taskResponse `json:"tasks"`
}

type createTaskRequest struct {
	Content     string `json:"content" validate:"required"`
	Bucket      string `json:"bucket" validate:"required"`
	Color       int    `json:"color"`
	Reoccurring bool   `json:"reoccurring"`
}

type updateTaskRequest struct {
	Content     *string `json:"content"`
	Bucket      *string `json:"bucket"`
	Reoccurring *bool   `json:"reoccurring"`
	Done        *bool   `json:"done"`
	Position    *int    `json:"position"`
	Color       *int    `json:"color"`
}

// repositionItem fields are checked per item by toReposition.
type repositionItem struct {
	ID       string  `json:"id"`
	Position *int    `json:"position"`
	Bucket   *string `json:"bucket"`
}

type repositionRequest struct {
	Positions []repositionItem `json:"positions" validate:"required"`
}

type repositionResult struct {
	ID    string        `json:"id"`
	Task  *taskResponse `json:"task,omitempty"`
	Error *errorBody    `json:"error,omitempty"`
}

type moveRequest struct {
	ID       string `json:"id" validate:"required"`
	Position *int   `json:"position" validate:"required"`
	Bucket   string `json:"bucket" validate:"required"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	bucket, err := task.ParseBucket(req.Bucket)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	t, err := s.tasks.Create(r.Context(), userID(r), task.Draft{
		Content:     req.Content,
		Bucket:      bucket,
		Color:       req.Color,
		Reoccurring: req.Reoccurring,
	})
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, r, s.logger, http.StatusCreated, taskEnvelope{Task: toTaskResponse(t)})
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	var filter task.Filter
	q := r.URL.Query()
	if raw := q.Get("done"); raw != "" {
		done, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, s.logger, oops.Code("REQUEST_INVALID").
				With("param", "done").
				Wrapf(errutil.ErrValidation, "done must be true or false"))
			return
		}
		filter.Done = &done
	}
	if raw := q.Get("bucket"); raw != "" {
		bucket, err := task.ParseBucket(raw)
		if err != nil {
			writeError(w, r, s.logger, err)
			return
		}
		filter.Bucket = &bucket
	}

	tasks, err := s.tasks.List(r.Context(), userID(r), filter)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	out := tasksEnvelope{Tasks: make([]taskResponse, 0, len(tasks))}
	for _, t := range tasks {
		out.Tasks = append(out.Tasks, toTaskResponse(t))
	}
	writeJSON(w, r, s.logger, http.StatusOK, out)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	t, err := s.tasks.Get(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, r, s.logger, http.StatusOK, taskEnvelope{Task: toTaskResponse(t)})
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	t, err := s.tasks.Delete(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, r, s.logger, http.StatusOK, taskEnvelope{Task: toTaskResponse(t)})
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	var req updateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	patch := task.Patch{
		Content:     req.Content,
		Reoccurring: req.Reoccurring,
		Done:        req.Done,
		Position:    req.Position,
		Color:       req.Color,
	}
	if req.Bucket != nil {
		bucket, err := task.ParseBucket(*req.Bucket)
		if err != nil {
			writeError(w, r, s.logger, err)
			return
		}
		patch.Bucket = &bucket
	}

	t, err := s.tasks.UpdateFields(r.Context(), userID(r), id, patch)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, r, s.logger, http.StatusOK, taskEnvelope{Task: toTaskResponse(t)})
}

// bulkReposition reports each item separately; malformed items fail alone.
func (s *Server) bulkReposition(w http.ResponseWriter, r *http.Request) {
	var req repositionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	results := make([]repositionResult, len(req.Positions))
	items := make([]task.Reposition, 0, len(req.Positions))
	slots := make([]int, 0, len(req.Positions))
	for i, item := range req.Positions {
		results[i].ID = item.ID
		rp, err := toReposition(item)
		if err != nil {
			body := toErrorBody(err)
			results[i].Error = &body
			continue
		}
		items = append(items, rp)
		slots = append(slots, i)
	}

	for j, res := range s.tasks.BulkReposition(r.Context(), userID(r), items) {
		i := slots[j]
		if res.Err != nil {
			if StatusFor(errutil.KindOf(res.Err)) >= http.StatusInternalServerError {
				errutil.LogErrorContext(r.Context(), s.logger, "reposition item failed", res.Err)
			}
			body := toErrorBody(res.Err)
			results[i].Error = &body
			continue
		}
		tr := toTaskResponse(res.Task)
		results[i].Task = &tr
	}
	writeJSON(w, r, s.logger, http.StatusOK, struct {
		Results []repositionResult `json:"results"`
	}{Results: results})
}

func toReposition(item repositionItem) (task.Reposition, error) {
	if item.ID == "" {
		return task.Reposition{}, oops.Code("REQUEST_INVALID").
			With("field", "id").
			Wrapf(errutil.ErrValidation, "field id failed %q", "required")
	}
	if item.Position == nil {
		return task.Reposition{}, oops.Code("REQUEST_INVALID").
			With("field", "position").
			Wrapf(errutil.ErrValidation, "field position failed %q", "required")
	}
	id, err := core.ParseULID(item.ID)
	if err != nil {
		return task.Reposition{}, err
	}
	rp := task.Reposition{ID: id, Position: *item.Position}
	if item.Bucket != nil {
		bucket, err := task.ParseBucket(*item.Bucket)
		if err != nil {
			return task.Reposition{}, err
		}
		rp.Bucket = &bucket
	}
	return rp, nil
}

func (s *Server) moveTask(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	id, err := core.ParseULID(req.ID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	bucket, err := task.ParseBucket(req.Bucket)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	t, err := s.tasks.Move(r.Context(), userID(r), id, bucket, *req.Position)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, r, s.logger, http.StatusOK, taskEnvelope{Task: toTaskResponse(t)})
}

func pathID(r *http.Request) (ulid.ULID, error) {
	return core.ParseULID(chi.URLParam(r, "id"))
}
