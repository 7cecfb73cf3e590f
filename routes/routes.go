package routes

import (
	"net/http"

	"github.com/academyhq/tournament-engine/handlers"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func SetupRoutes(
	router *chi.Mux,
	tournamentHandler *handlers.TournamentHandler,
	matchHandler *handlers.MatchHandler,
	rewardHandler *handlers.RewardHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	router.Route("/tournaments", func(r chi.Router) {
		r.Post("/", tournamentHandler.Create)
		r.Get("/", tournamentHandler.List)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", tournamentHandler.GetByID)
			r.Delete("/", tournamentHandler.Delete)

			r.Post("/start", tournamentHandler.Start)
			r.Post("/groups/finalize", tournamentHandler.FinalizeGroupStage)
			r.Post("/complete", tournamentHandler.Complete)
			r.Post("/cancel", tournamentHandler.Cancel)

			r.Get("/matches", matchHandler.ListByTournament)
			r.Get("/rankings", tournamentHandler.GetRankings)

			r.Put("/reward-plan", rewardHandler.SavePlan)
			r.Post("/rewards", rewardHandler.Distribute)
			r.Get("/rewards", rewardHandler.ListLedger)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Post("/{id}/result", matchHandler.SubmitResult)
	})
}
