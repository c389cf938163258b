package adminapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	pgrepo "github.com/Monu5641000/Telegram-bot/internal/repo/postgres"
	adminauthsvc "github.com/Monu5641000/Telegram-bot/internal/services/adminauth"
	orderssvc "github.com/Monu5641000/Telegram-bot/internal/services/orders"
	"github.com/Monu5641000/Telegram-bot/internal/services/subs"
	"github.com/Monu5641000/Telegram-bot/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService  *adminauthsvc.Service
	OrderService *orderssvc.Service
	UserRepo     *pgrepo.UserRepo
	ContentRepo  *pgrepo.ContentRepo
	Ledger       *subs.Ledger
	Notifier     handlers.UserNotifier
	Logger       *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	authHandler := handlers.NewAuthHandler(deps.AuthService)
	adminHandler := handlers.NewAdminHandler(deps.OrderService, deps.UserRepo, deps.Ledger, deps.ContentRepo, deps.Logger)
	if deps.Notifier != nil {
		adminHandler.AttachNotifier(deps.Notifier)
	}

	authMW := AuthMiddleware(deps.AuthService, deps.Logger)

	r.Route("/api", func(api chi.Router) {
		api.Post("/login", authHandler.Login)

		api.Group(func(protected chi.Router) {
			protected.Use(authMW)

			protected.Get("/users", adminHandler.Users)
			protected.Post("/users/{id}/revoke", adminHandler.RevokeUser)
			protected.Get("/orders/pending", adminHandler.PendingOrders)
			protected.Post("/orders/{id}/approve", adminHandler.ApproveOrder)
			protected.Post("/orders/{id}/reject", adminHandler.RejectOrder)
			protected.Get("/stats", adminHandler.Stats)
			protected.Post("/content", adminHandler.AddContent)
			protected.Get("/content/{id}", adminHandler.ContentItem)
		})
	})
}
