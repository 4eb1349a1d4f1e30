package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tasklinkhq/tasklink-backend/api/responses"
	"github.com/tasklinkhq/tasklink-backend/api/validators"
	"github.com/tasklinkhq/tasklink-backend/internal/opentasks"
	pkgerrors "github.com/tasklinkhq/tasklink-backend/pkg/errors"
	"github.com/tasklinkhq/tasklink-backend/pkg/logger"
)

type createTaskBody struct {
	CategoryID      uuid.UUID            `json:"category_id" validate:"required"`
	CityID          uuid.UUID            `json:"city_id" validate:"required"`
	Title           string               `json:"title" validate:"required,max=200"`
	Description     string               `json:"description" validate:"required,max=4000"`
	Location        string               `json:"location" validate:"required,max=500"`
	DurationMinutes int                  `json:"duration_minutes" validate:"required,gt=0"`
	BudgetCents     *int64               `json:"budget_cents,omitempty" validate:"omitempty,gt=0"`
	PhotoPaths      []string             `json:"photo_paths,omitempty" validate:"omitempty,dive,required"`
	Dates           []opentasks.DateSlot `json:"dates,omitempty" validate:"omitempty,dive"`
}

// TaskCreate posts a task to the public board.
func TaskCreate(svc opentasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tasks service unavailable"))
			return
		}

		senderID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createTaskBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), opentasks.CreateInput{
			SenderID:        senderID,
			CategoryID:      body.CategoryID,
			CityID:          body.CityID,
			Title:           body.Title,
			Description:     body.Description,
			Location:        body.Location,
			DurationMinutes: body.DurationMinutes,
			BudgetCents:     body.BudgetCents,
			PhotoPaths:      body.PhotoPaths,
			Dates:           body.Dates,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// TaskBrowse pages the open board, optionally filtered by city or category.
func TaskBrowse(svc opentasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tasks service unavailable"))
			return
		}

		input := opentasks.BrowseInput{Pagination: paginationFromQuery(r)}

		if raw := strings.TrimSpace(r.URL.Query().Get("city_id")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid city_id"))
				return
			}
			input.CityID = &id
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("category_id")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category_id"))
				return
			}
			input.CategoryID = &id
		}

		result, err := svc.Browse(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// TaskListMine lists the caller's own board posts regardless of status.
func TaskListMine(svc opentasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tasks service unavailable"))
			return
		}

		senderID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tasks, err := svc.ListMine(r.Context(), senderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string][]opentasks.OpenTaskDTO{"tasks": tasks})
	}
}

// TaskShow returns one board task with photos and candidate dates.
func TaskShow(svc opentasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tasks service unavailable"))
			return
		}

		taskID, err := pathUUID(r, chi.URLParam(r, "taskID"), "task id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Get(r.Context(), taskID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type updateTaskBody struct {
	Title           *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Description     *string `json:"description,omitempty" validate:"omitempty,max=4000"`
	Location        *string `json:"location,omitempty" validate:"omitempty,max=500"`
	DurationMinutes *int    `json:"duration_minutes,omitempty" validate:"omitempty,gt=0"`
	BudgetCents     *int64  `json:"budget_cents,omitempty" validate:"omitempty,gt=0"`
}

// TaskUpdate edits a board task while it is still open.
func TaskUpdate(svc opentasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tasks service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		taskID, err := pathUUID(r, chi.URLParam(r, "taskID"), "task id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateTaskBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Update(r.Context(), opentasks.UpdateInput{
			OpenTaskID:      taskID,
			ActorUserID:     userID,
			Title:           body.Title,
			Description:     body.Description,
			Location:        body.Location,
			DurationMinutes: body.DurationMinutes,
			BudgetCents:     body.BudgetCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// TaskCancel takes a board task down along with its pending offers.
func TaskCancel(svc opentasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tasks service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		taskID, err := pathUUID(r, chi.URLParam(r, "taskID"), "task id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Cancel(r.Context(), taskID, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "canceled"})
	}
}

type createOfferBody struct {
	Message         string `json:"message" validate:"required,max=2000"`
	HourlyRateCents int64  `json:"hourly_rate_cents" validate:"required,gt=0"`
}

// OfferCreate places a bid on a board task.
func OfferCreate(svc opentasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tasks service unavailable"))
			return
		}

		taskerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		taskID, err := pathUUID(r, chi.URLParam(r, "taskID"), "task id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createOfferBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateOffer(r.Context(), opentasks.OfferInput{
			OpenTaskID:      taskID,
			TaskerID:        taskerID,
			Message:         body.Message,
			HourlyRateCents: body.HourlyRateCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// OfferList shows a task's offers to its owner, or a tasker their own bid.
func OfferList(svc opentasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tasks service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		taskID, err := pathUUID(r, chi.URLParam(r, "taskID"), "task id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offers, err := svc.ListOffers(r.Context(), taskID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string][]opentasks.OfferDTO{"offers": offers})
	}
}

// OfferReject declines a bid without touching the task.
func OfferReject(svc opentasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tasks service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offerID, err := pathUUID(r, chi.URLParam(r, "offerID"), "offer id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RejectOffer(r.Context(), offerID, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "rejected"})
	}
}

type acceptOfferBody struct {
	DateID *uuid.UUID `json:"date_id,omitempty"`
}

// OfferAccept converts a bid into a task request awaiting payment.
func OfferAccept(svc opentasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tasks service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offerID, err := pathUUID(r, chi.URLParam(r, "offerID"), "offer id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// The date pick is optional, so an empty body is fine.
		var body acceptOfferBody
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.AcceptOffer(r.Context(), opentasks.AcceptOfferInput{
			OfferID:     offerID,
			ActorUserID: userID,
			ActorRole:   callerRole(r),
			DateID:      body.DateID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
