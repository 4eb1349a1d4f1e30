package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tasklinkhq/tasklink-backend/api/responses"
	"github.com/tasklinkhq/tasklink-backend/api/validators"
	"github.com/tasklinkhq/tasklink-backend/internal/taskrequests"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	pkgerrors "github.com/tasklinkhq/tasklink-backend/pkg/errors"
	"github.com/tasklinkhq/tasklink-backend/pkg/logger"
)

type createRequestBody struct {
	TaskerID        uuid.UUID  `json:"tasker_id" validate:"required"`
	CategoryID      uuid.UUID  `json:"category_id" validate:"required"`
	Description     string     `json:"description" validate:"required,max=4000"`
	Location        string     `json:"location" validate:"required,max=500"`
	DurationMinutes int        `json:"duration_minutes" validate:"required,gt=0"`
	HourlyRateCents int64      `json:"hourly_rate_cents" validate:"required,gt=0"`
	SlotStart       *time.Time `json:"slot_start,omitempty"`
	SlotEnd         *time.Time `json:"slot_end,omitempty"`
	PhotoPaths      []string   `json:"photo_paths,omitempty" validate:"omitempty,dive,required"`
}

// RequestCreate books a tasker directly.
func RequestCreate(svc taskrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}

		senderID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), taskrequests.CreateInput{
			SenderID:        senderID,
			TaskerID:        body.TaskerID,
			CategoryID:      body.CategoryID,
			Description:     body.Description,
			Location:        body.Location,
			DurationMinutes: body.DurationMinutes,
			HourlyRateCents: body.HourlyRateCents,
			SlotStart:       body.SlotStart,
			SlotEnd:         body.SlotEnd,
			PhotoPaths:      body.PhotoPaths,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// RequestList pages the caller's requests, sent or received.
func RequestList(svc taskrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := taskrequests.ListInput{
			UserID:     userID,
			Direction:  taskrequests.ListSent,
			Pagination: paginationFromQuery(r),
		}

		switch strings.TrimSpace(r.URL.Query().Get("direction")) {
		case "", string(taskrequests.ListSent):
		case string(taskrequests.ListReceived):
			input.Direction = taskrequests.ListReceived
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "direction must be sent or received"))
			return
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseTaskRequestStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			input.Status = &status
		}

		result, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// RequestShow returns one request to either of its parties.
func RequestShow(svc taskrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requestID, err := pathUUID(r, chi.URLParam(r, "requestID"), "request id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Get(r.Context(), requestID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type updateRequestStatusBody struct {
	Status string `json:"status" validate:"required"`
}

// RequestUpdateStatus drives the request lifecycle. Which transitions are
// allowed depends on the caller's side of the request.
func RequestUpdateStatus(svc taskrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requestID, err := pathUUID(r, chi.URLParam(r, "requestID"), "request id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateRequestStatusBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.UpdateStatus(r.Context(), taskrequests.UpdateStatusInput{
			TaskRequestID:   requestID,
			RequestedStatus: body.Status,
			ActorUserID:     userID,
			ActorRole:       callerRole(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
