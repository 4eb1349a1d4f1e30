package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tasklinkhq/tasklink-backend/api/responses"
	"github.com/tasklinkhq/tasklink-backend/api/validators"
	"github.com/tasklinkhq/tasklink-backend/internal/payments"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	pkgerrors "github.com/tasklinkhq/tasklink-backend/pkg/errors"
	"github.com/tasklinkhq/tasklink-backend/pkg/logger"
)

type checkoutBody struct {
	TaskRequestID uuid.UUID `json:"task_request_id" validate:"required"`
	Method        string    `json:"method" validate:"required"`
}

// PaymentCheckout pays for a waiting request. Wallet checkouts settle in-line;
// card checkouts return a hosted payment page URL.
func PaymentCheckout(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(body.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		result, err := svc.Checkout(r.Context(), payments.CheckoutInput{
			TaskRequestID: body.TaskRequestID,
			Method:        method,
			ActorUserID:   userID,
			ActorRole:     callerRole(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PaymentHistory pages the caller's ledger rows, newest first.
func PaymentHistory(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.History(r.Context(), payments.HistoryInput{
			UserID:     userID,
			Pagination: paginationFromQuery(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
