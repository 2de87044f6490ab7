package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/sync/errgroup"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/auth"
	"github.com/user/blog-go/comments"
	"github.com/user/blog-go/config"
	_ "github.com/user/blog-go/docs" // Swagger spec registration
	"github.com/user/blog-go/limiter"
	"github.com/user/blog-go/posts"
	"github.com/user/blog-go/tags"
	"github.com/user/blog-go/users"
)

const shutdownTimeout = 30 * time.Second

// newRouter wires every handler. Reads are public; writes go through protect, which
// authenticates the JWT and then applies the per-caller rate limit.
func newRouter(cfg *config.AppConfig, b *backend) http.Handler {
	authHandlers := auth.NewHandlers(auth.NewAuthService(b.users, *cfg.Auth))
	userHandlers := users.NewUserHandlers(users.NewUserService(b.users))
	tagHandlers := tags.NewHandlers(b.tags)
	postHandlers := posts.NewHandlers(posts.NewManager(b.posts,
		posts.WithMaxAge(cfg.Sweeper.MaxAge),
		posts.WithPublisher(b.publisher),
	))
	commentHandlers := comments.NewCommentHandler(comments.NewManager(b.comments, nil))

	jwt := auth.JWTMiddleware(cfg.Auth)
	lim := limiter.New(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	protect := []func(http.Handler) http.Handler{jwt, lim.Middleware}

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	// Panics inside handlers still answer with the JSON envelope.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					log.Printf("Panic: %+v", rvr)
					auth.WriteError(w, r, apperror.NewInternalError("internal server error", nil))
				}
			}()
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		auth.WriteData(w, http.StatusOK, map[string]string{"storage": cfg.Storage})
	})

	// The event stream is long-lived, so it stays outside the request timeout.
	r.Get("/api/v1/events", b.broadcaster.HandleStream())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Route("/auth", func(r chi.Router) {
			r.Use(lim.Middleware)
			r.Post("/register", authHandlers.HandleRegister())
			r.Post("/login", authHandlers.HandleLogin())
			r.Post("/refresh", authHandlers.HandleRefreshToken())
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(jwt)
			r.Get("/me", userHandlers.HandleGetUserProfile())
		})

		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/tags", tagHandlers.RegisterRoutes)
			r.Route("/posts", func(r chi.Router) {
				postHandlers.RegisterRoutes(r, protect...)
				r.Route("/{id}/comments", func(r chi.Router) {
					commentHandlers.RegisterPostRoutes(r, protect...)
				})
			})
			r.Route("/comments", func(r chi.Router) {
				commentHandlers.RegisterRoutes(r, protect...)
			})
		})
	})

	return r
}

// serve runs the HTTP server and the expiry sweeper until ctx is cancelled or either fails,
// then shuts the server down gracefully.
func serve(ctx context.Context, cfg *config.AppConfig, b *backend) error {
	sweeper, err := b.Sweeper(ctx, cfg)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      newRouter(cfg, b),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	sweeper.Start(gctx)
	g.Go(func() error {
		sweeper.Wait()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		log.Println("Server stopped gracefully")
		return nil
	})

	return g.Wait()
}
