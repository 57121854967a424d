package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/slok/rpa/internal/app/taskstart"
	"github.com/slok/rpa/internal/model"
	storageio "github.com/slok/rpa/internal/storage/io"
)

const maxRequestBodyBytes = 1 << 20

func (h handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	active, err := h.registry.ActiveTasks(r.Context())
	if err != nil {
		respondError(w, errorStatus(err), err)
		return
	}

	respondJSON(w, http.StatusOK, StatusResponse{
		Status:      "ok",
		Version:     h.version,
		ActiveTasks: len(active),
	})
}

func (h handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	sreq := taskstart.Request{
		TemplateID:  req.TemplateID,
		ProfilePath: req.ProfilePath,
		ProfileName: req.ProfileName,
		Browser:     req.Browser,
		Variables:   req.Variables,
	}
	if len(req.Template) > 0 && string(req.Template) != "null" {
		tpl, err := storageio.DecodeTemplate(req.Template)
		if err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		sreq.Template = &tpl
	}

	res, err := h.starter.Run(r.Context(), sreq)
	if err != nil {
		respondError(w, errorStatus(err), err)
		return
	}

	h.logger.Infof("Task %s started from API", res.TaskID)
	respondJSON(w, http.StatusAccepted, ExecuteResponse{
		TaskID:     res.TaskID,
		Status:     string(model.TaskStatusPending),
		TemplateID: res.Template.ID,
		TotalSteps: len(res.Template.Steps),
	})
}

func (h handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := r.URL.Query().Get("status")

	var (
		tasks []model.Task
		err   error
	)
	switch filter {
	case "", "all":
		tasks, err = h.registry.Tasks(ctx)
	case "active":
		tasks, err = h.registry.ActiveTasks(ctx)
	case "history":
		tasks, err = h.registry.TaskHistory(ctx)
	default:
		tasks, err = h.registry.Tasks(ctx)
		tasks = filterStatus(tasks, model.TaskStatus(filter))
	}
	if err != nil {
		respondError(w, errorStatus(err), err)
		return
	}

	respondJSON(w, http.StatusOK, mapTasks(tasks))
}

func filterStatus(tasks []model.Task, status model.TaskStatus) []model.Task {
	res := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == status {
			res = append(res, t)
		}
	}
	return res
}

func (h handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.registry.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, errorStatus(err), err)
		return
	}

	respondJSON(w, http.StatusOK, mapTask(*t))
}

func (h handler) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := h.registry.CancelTask(ctx, id); err != nil {
		respondError(w, errorStatus(err), err)
		return
	}

	t, err := h.registry.GetTask(ctx, id)
	if err != nil {
		respondError(w, errorStatus(err), err)
		return
	}

	respondJSON(w, http.StatusOK, mapTask(*t))
}

func (h handler) handleRemoveTask(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.RemoveTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, errorStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
