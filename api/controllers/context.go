package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tasklinkhq/tasklink-backend/api/middleware"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	pkgerrors "github.com/tasklinkhq/tasklink-backend/pkg/errors"
)

// callerID extracts the authenticated user's id from the request context.
func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

func callerRole(r *http.Request) enums.UserRole {
	return enums.UserRole(middleware.RoleFromContext(r.Context()))
}

// pathUUID parses a chi URL parameter as a UUID.
func pathUUID(r *http.Request, raw, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}
