package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tasklinkhq/tasklink-backend/api/responses"
	"github.com/tasklinkhq/tasklink-backend/api/validators"
	"github.com/tasklinkhq/tasklink-backend/internal/messages"
	pkgerrors "github.com/tasklinkhq/tasklink-backend/pkg/errors"
	"github.com/tasklinkhq/tasklink-backend/pkg/logger"
)

type sendMessageBody struct {
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	RecipientID    *uuid.UUID `json:"recipient_id,omitempty"`
	Body           string     `json:"body" validate:"required,max=4000"`
}

// MessageSend posts into an existing thread, or opens one against a recipient.
func MessageSend(svc messages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "messages service unavailable"))
			return
		}

		senderID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body sendMessageBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Send(r.Context(), messages.SendInput{
			SenderID:       senderID,
			ConversationID: body.ConversationID,
			RecipientID:    body.RecipientID,
			Body:           body.Body,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ConversationList returns the caller's threads with unread counts.
func ConversationList(svc messages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "messages service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListConversations(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string][]messages.ConversationDTO{"conversations": items})
	}
}

// ConversationMessages pages one thread's messages, newest first.
func ConversationMessages(svc messages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "messages service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		conversationID, err := pathUUID(r, chi.URLParam(r, "conversationID"), "conversation id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListMessages(r.Context(), conversationID, userID, paginationFromQuery(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ConversationMarkRead stamps the other party's messages as read.
func ConversationMarkRead(svc messages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "messages service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		conversationID, err := pathUUID(r, chi.URLParam(r, "conversationID"), "conversation id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.MarkRead(r.Context(), conversationID, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "read"})
	}
}
