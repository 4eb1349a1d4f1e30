package controllers

import (
	"net/http"

	"github.com/tasklinkhq/tasklink-backend/api/responses"
	"github.com/tasklinkhq/tasklink-backend/api/validators"
	"github.com/tasklinkhq/tasklink-backend/internal/devices"
	pkgerrors "github.com/tasklinkhq/tasklink-backend/pkg/errors"
	"github.com/tasklinkhq/tasklink-backend/pkg/logger"
)

type registerDeviceBody struct {
	Token    string `json:"token" validate:"required,max=4096"`
	Platform string `json:"platform" validate:"required"`
}

// DeviceRegister binds an FCM token to the caller for push delivery.
func DeviceRegister(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "devices service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body registerDeviceBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Register(r.Context(), devices.RegisterInput{
			UserID:   userID,
			Token:    body.Token,
			Platform: body.Platform,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type removeDeviceBody struct {
	Token string `json:"token" validate:"required,max=4096"`
}

// DeviceRemove unbinds a push token, typically on logout.
func DeviceRemove(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "devices service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body removeDeviceBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Remove(r.Context(), userID, body.Token); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}

// DeviceList shows the caller's registered push targets.
func DeviceList(svc devices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "devices service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListMine(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string][]devices.DeviceDTO{"devices": items})
	}
}
