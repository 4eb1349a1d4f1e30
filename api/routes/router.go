package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tasklinkhq/tasklink-backend/api/controllers"
	webhookcontrollers "github.com/tasklinkhq/tasklink-backend/api/controllers/webhooks"
	"github.com/tasklinkhq/tasklink-backend/api/middleware"
	"github.com/tasklinkhq/tasklink-backend/internal/auth"
	"github.com/tasklinkhq/tasklink-backend/internal/catalog"
	"github.com/tasklinkhq/tasklink-backend/internal/devices"
	"github.com/tasklinkhq/tasklink-backend/internal/messages"
	"github.com/tasklinkhq/tasklink-backend/internal/notifications"
	"github.com/tasklinkhq/tasklink-backend/internal/opentasks"
	"github.com/tasklinkhq/tasklink-backend/internal/payments"
	"github.com/tasklinkhq/tasklink-backend/internal/payouts"
	"github.com/tasklinkhq/tasklink-backend/internal/reviews"
	"github.com/tasklinkhq/tasklink-backend/internal/support"
	"github.com/tasklinkhq/tasklink-backend/internal/taskers"
	"github.com/tasklinkhq/tasklink-backend/internal/taskrequests"
	"github.com/tasklinkhq/tasklink-backend/internal/users"
	stripewebhook "github.com/tasklinkhq/tasklink-backend/internal/webhooks/stripe"
	"github.com/tasklinkhq/tasklink-backend/pkg/auth/session"
	"github.com/tasklinkhq/tasklink-backend/pkg/config"
	"github.com/tasklinkhq/tasklink-backend/pkg/db"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	"github.com/tasklinkhq/tasklink-backend/pkg/logger"
	"github.com/tasklinkhq/tasklink-backend/pkg/redis"
	"github.com/tasklinkhq/tasklink-backend/pkg/stripe"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// Services collects the feature services the router exposes.
type Services struct {
	Auth          auth.Service
	Register      auth.RegisterService
	Users         users.Service
	Taskers       taskers.Service
	Catalog       *catalog.Repository
	TaskRequests  taskrequests.Service
	OpenTasks     opentasks.Service
	Payments      payments.Service
	Payouts       payouts.Service
	Reviews       reviews.Service
	Messages      messages.Service
	Support       support.Service
	Devices       devices.Service
	Notifications notifications.Service
}

// Webhooks collects the Stripe webhook wiring.
type Webhooks struct {
	StripeClient *stripe.Client
	Service      *stripewebhook.Service
	Guard        *stripewebhook.IdempotencyGuard
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions sessionManager,
	svcs Services,
	hooks Webhooks,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisClient,
		}))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Get("/v1/catalog/categories", controllers.CatalogCategories(svcs.Catalog, logg))
		r.Get("/v1/catalog/cities", controllers.CatalogCities(svcs.Catalog, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(hooks.Service, hooks.StripeClient, hooks.Guard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(svcs.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(svcs.Register, svcs.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(svcs.Auth, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(svcs.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/users/me", func(r chi.Router) {
			r.Get("/", controllers.UserMe(svcs.Users, logg))
			r.Patch("/", controllers.UserUpdateProfile(svcs.Users, logg))
			r.Post("/become-tasker", controllers.UserBecomeTasker(svcs.Users, logg))
			r.Get("/wallet", controllers.UserWallet(svcs.Users, svcs.Payments, logg))
		})

		r.Route("/taskers", func(r chi.Router) {
			r.Get("/", controllers.TaskerBrowse(svcs.Taskers, logg))
			r.Put("/me", controllers.TaskerUpsertProfile(svcs.Taskers, logg))
			r.Put("/me/availability", controllers.TaskerReplaceAvailability(svcs.Taskers, logg))
			r.Post("/me/gallery", controllers.TaskerAddGalleryImage(svcs.Taskers, logg))
			r.Delete("/me/gallery/{imageID}", controllers.TaskerRemoveGalleryImage(svcs.Taskers, logg))
			r.Get("/{taskerID}", controllers.TaskerShow(svcs.Taskers, logg))
			r.Get("/{taskerID}/availability", controllers.TaskerListAvailability(svcs.Taskers, logg))
			r.Get("/{taskerID}/reviews", controllers.ReviewListForTasker(svcs.Reviews, logg))
		})

		r.Route("/requests", func(r chi.Router) {
			r.Post("/", controllers.RequestCreate(svcs.TaskRequests, logg))
			r.Get("/", controllers.RequestList(svcs.TaskRequests, logg))
			r.Get("/{requestID}", controllers.RequestShow(svcs.TaskRequests, logg))
			r.Post("/{requestID}/status", controllers.RequestUpdateStatus(svcs.TaskRequests, logg))
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", controllers.TaskCreate(svcs.OpenTasks, logg))
			r.Get("/", controllers.TaskBrowse(svcs.OpenTasks, logg))
			r.Get("/mine", controllers.TaskListMine(svcs.OpenTasks, logg))
			r.Post("/offers/{offerID}/reject", controllers.OfferReject(svcs.OpenTasks, logg))
			r.Post("/offers/{offerID}/accept", controllers.OfferAccept(svcs.OpenTasks, logg))
			r.Get("/{taskID}", controllers.TaskShow(svcs.OpenTasks, logg))
			r.Patch("/{taskID}", controllers.TaskUpdate(svcs.OpenTasks, logg))
			r.Post("/{taskID}/cancel", controllers.TaskCancel(svcs.OpenTasks, logg))
			r.Post("/{taskID}/offers", controllers.OfferCreate(svcs.OpenTasks, logg))
			r.Get("/{taskID}/offers", controllers.OfferList(svcs.OpenTasks, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/checkout", controllers.PaymentCheckout(svcs.Payments, logg))
			r.Get("/", controllers.PaymentHistory(svcs.Payments, logg))
		})

		r.Route("/payouts", func(r chi.Router) {
			r.Post("/", controllers.PayoutRequest(svcs.Payouts, logg))
			r.Get("/", controllers.PayoutListMine(svcs.Payouts, logg))
		})

		r.Post("/reviews", controllers.ReviewCreate(svcs.Reviews, logg))

		r.Post("/messages", controllers.MessageSend(svcs.Messages, logg))
		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", controllers.ConversationList(svcs.Messages, logg))
			r.Get("/{conversationID}/messages", controllers.ConversationMessages(svcs.Messages, logg))
			r.Post("/{conversationID}/read", controllers.ConversationMarkRead(svcs.Messages, logg))
		})

		r.Route("/support", func(r chi.Router) {
			r.Post("/", controllers.SupportCreate(svcs.Support, logg))
			r.Get("/", controllers.SupportListMine(svcs.Support, logg))
		})

		r.Route("/devices", func(r chi.Router) {
			r.Post("/", controllers.DeviceRegister(svcs.Devices, logg))
			r.Delete("/", controllers.DeviceRemove(svcs.Devices, logg))
			r.Get("/", controllers.DeviceList(svcs.Devices, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.NotificationList(svcs.Notifications, logg))
			r.Get("/unread", controllers.NotificationUnreadCount(svcs.Notifications, logg))
			r.Post("/{notificationID}/read", controllers.NotificationMarkRead(svcs.Notifications, logg))
			r.Post("/read-all", controllers.NotificationMarkAllRead(svcs.Notifications, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.AdminPing())
		r.Route("/payouts", func(r chi.Router) {
			r.Get("/waiting", controllers.AdminPayoutListWaiting(svcs.Payouts, logg))
			r.Post("/{payoutID}/paid", controllers.AdminPayoutMarkPaid(svcs.Payouts, logg))
		})
		r.Route("/support", func(r chi.Router) {
			r.Get("/", controllers.AdminSupportList(svcs.Support, logg))
			r.Post("/{ticketID}/status", controllers.AdminSupportUpdateStatus(svcs.Support, logg))
		})
	})

	return r
}
