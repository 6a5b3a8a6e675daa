package handler

import (
	"net/http"
	"time"

	"laundry/internal/machines/service"
	httputil "laundry/pkg/http"
	"laundry/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type MachineHandler struct {
	service service.MachineService
	log     *logger.Logger
	now     func() time.Time
}

func NewMachineHandler(service service.MachineService, log *logger.Logger) *MachineHandler {
	return &MachineHandler{
		service: service,
		log:     log,
		now:     time.Now,
	}
}

func (h *MachineHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	machines, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(w, "List", err)
		return
	}
	if err := httputil.WriteOK(w, machines); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteOK", "error", err)
	}
}

func (h *MachineHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	machine, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}
	if err := httputil.WriteOK(w, machine); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteOK", "error", err)
	}
}

func (h *MachineHandler) Overview(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	overview, err := h.service.Overview(r.Context(), h.now())
	if err != nil {
		h.writeError(w, "Overview", err)
		return
	}
	if err := httputil.WriteOK(w, overview); err != nil {
		h.log.Error("failed to write success response", "handler", "Overview", "operation", "WriteOK", "error", err)
	}
}

func (h *MachineHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *MachineHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/machines", h.List)
	router.GET("/machines/:id", h.GetByID)
	router.GET("/overview", h.Overview)
}
