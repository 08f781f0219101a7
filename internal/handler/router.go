package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	roomHandler "github.com/nsong/lingotalk/internal/handler/room"
	middlewarePkg "github.com/nsong/lingotalk/internal/middleware"
	roomService "github.com/nsong/lingotalk/internal/service/room"
	"github.com/nsong/lingotalk/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(store *roomService.Store, hub *roomService.Hub, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	rooms := roomHandler.New(store, hub, log)

	r.Route("/api", func(api chi.Router) {
		rooms.RegisterRoutes(api)

		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
