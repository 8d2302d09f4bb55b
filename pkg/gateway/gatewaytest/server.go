// Package gatewaytest runs a real inventory HTTP surface over an in-memory
// sqlite lock store for tests of inventory clients.
package gatewaytest

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"roomsaga/internal/inventory/handler"
	"roomsaga/internal/inventory/repository"
	"roomsaga/internal/inventory/service"
	"roomsaga/internal/inventory/validator"
	"roomsaga/pkg/config"
	"roomsaga/pkg/db/postgres"
	"roomsaga/pkg/logger"
	"roomsaga/pkg/middleware"
	"roomsaga/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type Server struct {
	*httptest.Server
	Service service.LockService
	Repo    repository.LockRepository
}

// NewServer starts the inventory routes on an httptest server. It is closed
// through tb.Cleanup.
func NewServer(tb testing.TB, holdTTL time.Duration) *Server {
	tb.Helper()

	db, err := postgres.NewTestDB()
	if err != nil {
		tb.Fatalf("failed to open inventory test db: %v", err)
	}

	log := logger.Discard()
	cfg := &config.Config{Log: log, HoldTTL: holdTTL}
	repo := repository.NewGormLockRepository(db)
	svc := service.NewLockService(repo, cfg, nil)

	router := httprouter.New()
	handler.NewInventoryHandler(svc, validator.NewInventoryValidator(log), log).RegisterRoutes(router)

	srv := httptest.NewServer(middleware.Correlation()(router))
	tb.Cleanup(srv.Close)

	return &Server{Server: srv, Service: svc, Repo: repo}
}

func (s *Server) AddRoom(tb testing.TB, id string, available bool) {
	tb.Helper()
	_, err := s.Service.RegisterRoom(context.Background(), &model.CreateRoomRequest{ID: id, Available: &available})
	if err != nil {
		tb.Fatalf("failed to register room %s: %v", id, err)
	}
}

// LockByToken returns the inventory lock owned by token, failing the test when absent.
func (s *Server) LockByToken(tb testing.TB, token string) *model.RoomLock {
	tb.Helper()
	lock, err := s.Repo.FindLockByToken(context.Background(), token)
	if err != nil {
		tb.Fatalf("no lock for token %s: %v", token, err)
	}
	return lock
}
