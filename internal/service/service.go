package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cargodesk/backend/internal/domain"
	"cargodesk/backend/internal/invoice"
	"cargodesk/backend/internal/masterdata"
	"cargodesk/backend/internal/store"
)

var (
	ErrDraftNotFound = errors.New("draft not found")
	ErrInvalidInput  = errors.New("invalid input")
)

// ValidationError lists the human-readable names of missing required fields.
// Nothing is persisted when it is returned.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// PersistenceError wraps a failed create or update. The draft is left exactly
// as it was so the operator can retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s cargo: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo            store.Repository
	loader          *masterdata.Loader
	allocator       invoice.NumberAllocator
	defaultBranchID int64
	defaultVAT      float64
	now             func() time.Time

	mu     sync.Mutex
	drafts map[string]*draft
}

func New(repo store.Repository, loader *masterdata.Loader, allocator invoice.NumberAllocator, defaultBranchID int64, defaultVAT float64) *Service {
	if defaultBranchID <= 0 {
		defaultBranchID = 1
	}
	if loader == nil {
		loader = masterdata.NewLoader(repo, nil, masterdata.DefaultTTL)
	}
	if allocator == nil {
		allocator = invoice.NewAllocator(repo)
	}

	return &Service{
		repo:            repo,
		loader:          loader,
		allocator:       allocator,
		defaultBranchID: defaultBranchID,
		defaultVAT:      defaultVAT,
		now:             time.Now,
		drafts:          map[string]*draft{},
	}
}

func (s *Service) GetCargo(ctx context.Context, cargoID int64) (domain.PersistedCargo, error) {
	if cargoID <= 0 {
		return domain.PersistedCargo{}, ErrInvalidInput
	}
	return s.repo.FetchCargoByID(ctx, cargoID)
}

// NextBookingNo previews the number the branch would hand out now.
func (s *Service) NextBookingNo(ctx context.Context, branchID int64) (string, error) {
	if branchID <= 0 {
		return "", ErrInvalidInput
	}
	return s.allocator.PeekNext(ctx, branchID)
}

func (s *Service) branchFor(ctx context.Context, requested int64) int64 {
	if requested > 0 {
		return requested
	}
	if actor, ok := ActorFromContext(ctx); ok && actor.BranchID > 0 {
		return actor.BranchID
	}
	return s.defaultBranchID
}

func (s *Service) branchSelection(ctx context.Context, branchID int64) domain.Selection {
	sel := domain.Selection{ID: fmt.Sprint(branchID)}
	branches, err := s.loader.Branches(ctx)
	if err != nil {
		return sel
	}
	for _, b := range branches {
		if b.ID == branchID {
			sel.Name = b.Name
		}
	}
	return sel
}
