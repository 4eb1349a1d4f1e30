package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tasklinkhq/tasklink-backend/api/responses"
	"github.com/tasklinkhq/tasklink-backend/api/validators"
	"github.com/tasklinkhq/tasklink-backend/internal/taskers"
	pkgerrors "github.com/tasklinkhq/tasklink-backend/pkg/errors"
	"github.com/tasklinkhq/tasklink-backend/pkg/logger"
	"github.com/tasklinkhq/tasklink-backend/pkg/pagination"
)

// TaskerBrowse lists visible tasker profiles with the public filter knobs.
func TaskerBrowse(svc taskers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "taskers service unavailable"))
			return
		}

		input := taskers.BrowseInput{}
		query := r.URL.Query()

		if raw := strings.TrimSpace(query.Get("city_id")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid city_id"))
				return
			}
			input.Filters.CityID = &id
		}
		if raw := strings.TrimSpace(query.Get("category_id")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category_id"))
				return
			}
			input.Filters.CategoryID = &id
		}
		if raw := strings.TrimSpace(query.Get("rate_min")); raw != "" {
			value, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || value < 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "rate_min must be a non-negative integer"))
				return
			}
			input.Filters.RateMinCents = &value
		}
		if raw := strings.TrimSpace(query.Get("rate_max")); raw != "" {
			value, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || value < 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "rate_max must be a non-negative integer"))
				return
			}
			input.Filters.RateMaxCents = &value
		}
		if raw := strings.TrimSpace(query.Get("rating_min")); raw != "" {
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil || value < 0 || value > 5 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "rating_min must be between 0 and 5"))
				return
			}
			input.Filters.RatingMin = &value
		}
		input.Filters.Query = strings.TrimSpace(query.Get("q"))
		input.Pagination = paginationFromQuery(r)

		result, err := svc.Browse(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// TaskerShow returns one tasker's public listing keyed by their user id.
func TaskerShow(svc taskers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "taskers service unavailable"))
			return
		}

		taskerID, err := pathUUID(r, chi.URLParam(r, "taskerID"), "tasker id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.GetProfile(r.Context(), taskerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

// TaskerUpsertProfile publishes or updates the caller's listing.
func TaskerUpsertProfile(svc taskers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "taskers service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body taskers.UpsertProfileInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.UpsertProfile(r.Context(), userID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

type availabilityBody struct {
	Slots []taskers.AvailabilitySlot `json:"slots" validate:"required,dive"`
}

// TaskerReplaceAvailability swaps the caller's bookable windows wholesale.
func TaskerReplaceAvailability(svc taskers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "taskers service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body availabilityBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ReplaceAvailability(r.Context(), userID, body.Slots); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"slots": len(body.Slots)})
	}
}

// TaskerListAvailability lists the target tasker's open windows.
func TaskerListAvailability(svc taskers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "taskers service unavailable"))
			return
		}

		taskerID, err := pathUUID(r, chi.URLParam(r, "taskerID"), "tasker id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		slots, err := svc.ListAvailability(r.Context(), taskerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string][]taskers.AvailabilitySlot{"slots": slots})
	}
}

type galleryBody struct {
	Path string `json:"path" validate:"required,max=1024"`
}

// TaskerAddGalleryImage appends a work sample to the caller's gallery.
func TaskerAddGalleryImage(svc taskers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "taskers service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body galleryBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.AddGalleryImage(r.Context(), userID, body.Path)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// TaskerRemoveGalleryImage deletes one of the caller's gallery images.
func TaskerRemoveGalleryImage(svc taskers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "taskers service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		imageID, err := pathUUID(r, chi.URLParam(r, "imageID"), "image id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RemoveGalleryImage(r.Context(), userID, imageID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// paginationFromQuery pulls the shared limit/cursor knobs off the query string.
// A bad limit is treated as absent so the service default applies.
func paginationFromQuery(r *http.Request) pagination.Params {
	params := pagination.Params{Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			params.Limit = value
		}
	}
	return params
}
