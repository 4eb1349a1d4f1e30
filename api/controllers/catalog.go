package controllers

import (
	"context"
	"net/http"

	"github.com/tasklinkhq/tasklink-backend/api/responses"
	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	pkgerrors "github.com/tasklinkhq/tasklink-backend/pkg/errors"
	"github.com/tasklinkhq/tasklink-backend/pkg/logger"
)

type catalogReader interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListCities(ctx context.Context) ([]models.City, error)
}

// CatalogCategories lists the service categories taskers can offer.
func CatalogCategories(repo catalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}

		categories, err := repo.ListCategories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories"))
			return
		}
		responses.WriteSuccess(w, map[string][]models.Category{"categories": categories})
	}
}

// CatalogCities lists the cities the marketplace operates in.
func CatalogCities(repo catalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}

		cities, err := repo.ListCities(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cities"))
			return
		}
		responses.WriteSuccess(w, map[string][]models.City{"cities": cities})
	}
}
