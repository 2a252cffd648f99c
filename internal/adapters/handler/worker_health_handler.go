package handler

import (
	"net/http"
	"time"

	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/response"
)

// WorkerProbe is implemented by background workers such as the outbox relay.
type WorkerProbe interface {
	IsHealthy() bool
	IsReady() bool
}

// WorkerHealthHandler serves liveness and readiness for non-HTTP processes.
type WorkerHealthHandler struct {
	component string
	probe     WorkerProbe
	startTime time.Time
}

func NewWorkerHealthHandler(component string, probe WorkerProbe) *WorkerHealthHandler {
	return &WorkerHealthHandler{component: component, probe: probe, startTime: time.Now()}
}

type WorkerHealthResponse struct {
	Status    string `json:"status"`
	Component string `json:"component"`
	Uptime    string `json:"uptime"`
}

func (h *WorkerHealthHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Live)
	mux.HandleFunc("GET /health/live", h.Live)
	mux.HandleFunc("GET /health/ready", h.Ready)
	return mux
}

func (h *WorkerHealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	h.write(w, h.probe.IsHealthy())
}

func (h *WorkerHealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	h.write(w, h.probe.IsReady())
}

func (h *WorkerHealthHandler) write(w http.ResponseWriter, up bool) {
	status, code := "UP", http.StatusOK
	if !up {
		status, code = "DOWN", http.StatusServiceUnavailable
	}
	response.JSON(w, code, WorkerHealthResponse{
		Status:    status,
		Component: h.component,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}
