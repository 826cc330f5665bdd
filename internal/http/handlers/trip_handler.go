// README: Trip handlers: snapshot, status change, completion, cancellation, timeline.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"busops/internal/http/middleware"
	"busops/internal/modules/trip"
	"busops/internal/types"
)

type TripHandler struct {
	trip *trip.Service
}

func NewTripHandler(svc *trip.Service) *TripHandler {
	return &TripHandler{trip: svc}
}

type tripResponse struct {
	ID                 types.ID      `json:"id"`
	RouteID            *types.ID     `json:"route_id,omitempty"`
	BusID              *types.ID     `json:"bus_id,omitempty"`
	DriverID           *types.ID     `json:"driver_id,omitempty"`
	Status             trip.Status   `json:"status"`
	StatusVersion      int           `json:"status_version"`
	NextStatuses       []trip.Status `json:"next_statuses"`
	ScheduledDeparture time.Time     `json:"scheduled_departure"`
	ScheduledArrival   time.Time     `json:"scheduled_arrival"`
	ActualDeparture    *time.Time    `json:"actual_departure,omitempty"`
	ActualArrival      *time.Time    `json:"actual_arrival,omitempty"`
	EndOdometer        *float64      `json:"end_odometer,omitempty"`
	EndFuel            *float64      `json:"end_fuel,omitempty"`
	Stats              *trip.Stats   `json:"trip_stats,omitempty"`
	CompletionNotes    *string       `json:"completion_notes,omitempty"`
	CancellationReason *string       `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	CancelledBy        *types.ID     `json:"cancelled_by,omitempty"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

func toTripResponse(t *trip.Trip) tripResponse {
	return tripResponse{
		ID:                 t.ID,
		RouteID:            t.RouteID,
		BusID:              t.BusID,
		DriverID:           t.DriverID,
		Status:             t.Status,
		StatusVersion:      t.StatusVersion,
		NextStatuses:       trip.NextStatuses(t.Status),
		ScheduledDeparture: t.ScheduledDeparture,
		ScheduledArrival:   t.ScheduledArrival,
		ActualDeparture:    t.ActualDeparture,
		ActualArrival:      t.ActualArrival,
		EndOdometer:        t.EndOdometer,
		EndFuel:            t.EndFuel,
		Stats:              t.Stats,
		CompletionNotes:    t.CompletionNotes,
		CancellationReason: t.CancellationReason,
		CancelledAt:        t.CancelledAt,
		CancelledBy:        t.CancelledBy,
		UpdatedAt:          t.UpdatedAt,
	}
}

func tripID(c *gin.Context) (types.ID, bool) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "validation", "invalid trip id")
		return "", false
	}
	return types.ID(id), true
}

func callerID(c *gin.Context) *types.ID {
	uid := middleware.CallerUID(c)
	if uid == "" {
		return nil
	}
	id := types.ID(uid)
	return &id
}

func (h *TripHandler) Get(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}
	t, err := h.trip.Get(c.Request.Context(), id)
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toTripResponse(t))
}

type changeStatusReq struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

func (h *TripHandler) ChangeStatus(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}
	var req changeStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", "status is required")
		return
	}
	t, err := h.trip.ChangeStatus(c.Request.Context(), trip.ChangeStatusCommand{
		TripID:  id,
		Status:  trip.Status(req.Status),
		ActorID: callerID(c),
		Reason:  req.Reason,
	})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toTripResponse(t))
}

type completeReq struct {
	FinalOdometer *float64 `json:"final_odometer"`
	FinalFuel     *float64 `json:"final_fuel"`
	Notes         string   `json:"notes"`
}

func (h *TripHandler) Complete(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}
	var req completeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", "invalid json")
		return
	}
	res, err := h.trip.CompleteTrip(c.Request.Context(), id, trip.CompletionData{
		FinalOdometer: req.FinalOdometer,
		FinalFuel:     req.FinalFuel,
		Notes:         req.Notes,
		ActorID:       callerID(c),
	})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"trip": toTripResponse(res.Trip), "stats": res.Stats})
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *TripHandler) Cancel(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}
	var req cancelReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", "invalid json")
		return
	}
	t, err := h.trip.CancelTrip(c.Request.Context(), trip.CancelCommand{
		TripID:  id,
		Reason:  req.Reason,
		ActorID: types.ID(middleware.CallerUID(c)),
	})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toTripResponse(t))
}

func (h *TripHandler) Timeline(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}
	entries, err := h.trip.GetTripTimeline(c.Request.Context(), id)
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"trip_id": id, "timeline": entries})
}
