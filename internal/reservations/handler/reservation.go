package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"laundry/internal/reservations/service"
	httputil "laundry/pkg/http"
	"laundry/pkg/logger"
	"laundry/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const defaultScheduleDays = 7

type ReservationHandler struct {
	service service.ReservationService
	log     *logger.Logger
	loc     *time.Location
	now     func() time.Time
}

func NewReservationHandler(service service.ReservationService, loc *time.Location, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		log:     log,
		loc:     loc,
		now:     time.Now,
	}
}

func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	filter := model.ReservationFilter{
		Status:     httputil.QueryString(r, "status"),
		MachineID:  httputil.QueryString(r, "machineId"),
		ResidentID: httputil.QueryString(r, "residentId"),
	}

	// from/to are local days; to is inclusive.
	if httputil.QueryString(r, "from") != "" {
		from, err := httputil.ParseDate(r, "from", h.loc, h.now())
		if err != nil {
			h.writeError(w, "List", err)
			return
		}
		filter.From = &from
	}
	if httputil.QueryString(r, "to") != "" {
		to, err := httputil.ParseDate(r, "to", h.loc, h.now())
		if err != nil {
			h.writeError(w, "List", err)
			return
		}
		end := to.AddDate(0, 0, 1)
		filter.To = &end
	}

	reservations, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}
	if err := httputil.WriteOK(w, reservations); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteOK", "error", err)
	}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.ReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadBody(w, "Create")
		return
	}

	reservation, err := h.service.Create(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}
	if err := httputil.WriteCreated(w, reservation); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservation, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}
	if err := httputil.WriteOK(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteOK", "error", err)
	}
}

func (h *ReservationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update model.ReservationUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeBadBody(w, "UpdateStatus")
		return
	}

	reservation, err := h.service.UpdateStatus(r.Context(), ps.ByName("id"), &update)
	if err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}
	if err := httputil.WriteOK(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateStatus", "operation", "WriteOK", "error", err)
	}
}

func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *ReservationHandler) Availability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	day, err := httputil.ParseDate(r, "date", h.loc, h.now())
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}

	view, err := h.service.Availability(r.Context(), ps.ByName("id"), day)
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}
	if err := httputil.WriteOK(w, view); err != nil {
		h.log.Error("failed to write success response", "handler", "Availability", "operation", "WriteOK", "error", err)
	}
}

func (h *ReservationHandler) Schedule(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	from, err := httputil.ParseDate(r, "from", h.loc, h.now())
	if err != nil {
		h.writeError(w, "Schedule", err)
		return
	}
	days, err := httputil.ParseInt(r, "days", defaultScheduleDays, 1, service.MaxScheduleDays)
	if err != nil {
		h.writeError(w, "Schedule", err)
		return
	}

	schedule, err := h.service.Schedule(r.Context(), from, days)
	if err != nil {
		h.writeError(w, "Schedule", err)
		return
	}
	if err := httputil.WriteOK(w, schedule); err != nil {
		h.log.Error("failed to write success response", "handler", "Schedule", "operation", "WriteOK", "error", err)
	}
}

func (h *ReservationHandler) writeBadBody(w http.ResponseWriter, handler string) {
	if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
		Error: "Invalid request body",
	}); writeErr != nil {
		h.log.Error("failed to write JSON response", "handler", handler, "operation", "WriteJSON", "error", writeErr)
	}
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/reservations", h.List)
	router.POST("/reservations", h.Create)
	router.GET("/reservations/:id", h.GetByID)
	router.PATCH("/reservations/:id", h.UpdateStatus)
	router.DELETE("/reservations/:id", h.Delete)
	router.GET("/machines/:id/availability", h.Availability)
	router.GET("/schedule", h.Schedule)
}
