package api

import (
	"context"
	goerrors "errors"
	"net/http"
	"strconv"

	"github.com/CMSgov/xc-harvester/harvester/manager"
	"github.com/CMSgov/xc-harvester/harvester/models"
	"github.com/CMSgov/xc-harvester/harvestworker/queueing"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// Handler serves the harvest routes. Harvests running in this process are
// looked up in Machines; finished ones are read from Harvests.
type Handler struct {
	machines *manager.Registry
	harvests models.HarvestRepository
	enqueuer queueing.Enqueuer
	ping     func(ctx context.Context) error
	log      logrus.FieldLogger
}

func NewHandler(machines *manager.Registry, harvests models.HarvestRepository, enqueuer queueing.Enqueuer,
	ping func(ctx context.Context) error, logger logrus.FieldLogger) *Handler {
	return &Handler{machines: machines, harvests: harvests, enqueuer: enqueuer, ping: ping, log: logger}
}

type message struct {
	Message string `json:"message"`
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	m := map[string]string{"database": "ok"}
	status := http.StatusOK
	if err := h.ping(r.Context()); err != nil {
		h.log.Errorf("Health check: database ping error: %s", err)
		m["database"] = "error"
		status = http.StatusBadGateway
	}
	h.respond(w, r, status, m)
}

func (h *Handler) running(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, h.machines.Running())
}

func (h *Handler) harvest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "harvestID")
	if m, ok := h.machines.Get(id); ok {
		h.respond(w, r, http.StatusOK, m.Progress())
		return
	}

	stored, err := h.harvests.GetHarvest(r.Context(), id)
	if goerrors.Is(err, models.ErrHarvestNotFound) {
		h.respond(w, r, http.StatusNotFound, message{"no harvest found for id " + id})
		return
	} else if err != nil {
		h.log.Errorf("Failed to read harvest %s: %s", id, err)
		h.respond(w, r, http.StatusInternalServerError, message{"failed to read harvest"})
		return
	}

	h.respond(w, r, http.StatusOK, manager.Progress{
		ID:      stored.ID.String(),
		Status:  stored.Status,
		Request: stored.Request,
		Counts:  stored.Counts,
	})
}

func (h *Handler) pause(w http.ResponseWriter, r *http.Request) {
	h.signal(w, r, (*manager.Machine).Pause)
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	h.signal(w, r, (*manager.Machine).Resume)
}

func (h *Handler) kill(w http.ResponseWriter, r *http.Request) {
	h.signal(w, r, (*manager.Machine).Kill)
}

func (h *Handler) signal(w http.ResponseWriter, r *http.Request, send func(*manager.Machine)) {
	id := chi.URLParam(r, "harvestID")
	m, ok := h.machines.Get(id)
	if !ok {
		h.respond(w, r, http.StatusNotFound, message{"no running harvest with id " + id})
		return
	}
	send(m)
	h.respond(w, r, http.StatusAccepted, m.Progress())
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request) {
	scheduleID, err1 := strconv.Atoi(chi.URLParam(r, "scheduleID"))
	stepID, err2 := strconv.Atoi(chi.URLParam(r, "stepID"))
	if err1 != nil || err2 != nil {
		h.respond(w, r, http.StatusBadRequest, message{"schedule and step ids must be numbers"})
		return
	}
	if h.enqueuer == nil {
		h.respond(w, r, http.StatusServiceUnavailable, message{"no job queue configured"})
		return
	}

	args := queueing.HarvestStepArgs{ScheduleID: scheduleID, StepID: stepID}
	if err := h.enqueuer.AddHarvestStep(r.Context(), args); err != nil {
		h.log.Errorf("Failed to enqueue harvest: %s", err)
		h.respond(w, r, http.StatusInternalServerError, message{"failed to enqueue harvest"})
		return
	}
	h.respond(w, r, http.StatusAccepted, args)
}
