// Package httpapi is the transport adapter: it authenticates the acting user
// and maps HTTP requests onto the service operations. All access decisions
// live below it; the adapter only translates errors to status codes.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dbateam/secretvault/internal/logging"
	"github.com/dbateam/secretvault/internal/server/models"
	"github.com/dbateam/secretvault/internal/server/repositories/users"
	"github.com/dbateam/secretvault/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// SecretOperations is the slice of SecretService the adapter calls.
type SecretOperations interface {
	Create(ctx context.Context, actor *models.User, in services.SecretInput) (*models.Secret, error)
	Update(ctx context.Context, actor *models.User, secretID string, in services.SecretInput) (*models.Secret, error)
	GetView(ctx context.Context, actor *models.User, secretID string) (*services.SecretView, error)
	Delete(ctx context.Context, actor *models.User, secretID string) error
	List(ctx context.Context, actor *models.User, filter models.SecretListFilter) ([]*models.SecretSummary, error)
}

// PermissionOperations is the slice of PermissionService the adapter calls.
type PermissionOperations interface {
	Request(ctx context.Context, actor *models.User, secretID string, reason string) (*models.Permission, error)
	BulkRequest(ctx context.Context, actor *models.User, secretIDs []string) ([]*models.Permission, error)
	Approve(ctx context.Context, actor *models.User, permissionID string) (*models.Permission, error)
	BulkApprove(ctx context.Context, actor *models.User, permissionIDs []string) (*services.BulkApproveResult, error)
	Get(ctx context.Context, actor *models.User, permissionID string) (*models.Permission, error)
	List(ctx context.Context, actor *models.User) ([]*models.PermissionSummary, error)
}

// TagOperations is the slice of TagService the adapter calls.
type TagOperations interface {
	Create(ctx context.Context, actor *models.User, name string) (*models.Tag, error)
	Update(ctx context.Context, actor *models.User, tagID string, name string) (*models.Tag, error)
	Delete(ctx context.Context, actor *models.User, tagID string) error
	List(ctx context.Context, actor *models.User) ([]*models.Tag, error)
}

type Server struct {
	address     string
	logger      logging.Logger
	secrets     SecretOperations
	permissions PermissionOperations
	tags        TagOperations
	users       users.Repository
	jwtSecret   []byte
}

func NewServer(address string, logger logging.Logger, ss SecretOperations, ps PermissionOperations,
	ts TagOperations, ur users.Repository, jwtSecret string) *Server {
	return &Server{
		address:     address,
		logger:      logger.With("module", "http_server"),
		secrets:     ss,
		permissions: ps,
		tags:        ts,
		users:       ur,
		jwtSecret:   []byte(jwtSecret),
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/ping", s.handlePing)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/secrets", func(r chi.Router) {
			r.Get("/", s.handleListSecrets)
			r.Post("/", s.handleCreateSecret)
			r.Route("/{secretID}", func(r chi.Router) {
				r.Get("/", s.handleGetSecret)
				r.Put("/", s.handleUpdateSecret)
				r.Delete("/", s.handleDeleteSecret)
				r.Post("/permissions", s.handleRequestAccess)
			})
		})

		r.Route("/permissions", func(r chi.Router) {
			r.Get("/", s.handleListPermissions)
			r.Post("/bulk-request", s.handleBulkRequestAccess)
			r.Post("/bulk-approve", s.handleBulkApprove)
			r.Route("/{permissionID}", func(r chi.Router) {
				r.Get("/", s.handleGetPermission)
				r.Post("/approve", s.handleApprovePermission)
			})
		})

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", s.handleListTags)
			r.Post("/", s.handleCreateTag)
			r.Put("/{tagID}", s.handleUpdateTag)
			r.Delete("/{tagID}", s.handleDeleteTag)
		})
	})

	return r
}

// Run starts the HTTP server and shuts it down gracefully when ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:    s.address,
		Handler: s.routes(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}
