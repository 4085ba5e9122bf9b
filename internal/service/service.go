// Package service provides the generic orchestration layer over one
// repository. It exists so application code depends on the service error
// vocabulary instead of storage specifics: the repository's not-found is
// translated here, everything else passes through unchanged.
package service

import (
	"context"
	"errors"

	"github.com/bartosz121/minerva/internal/repository"
)

// ErrNotFound is the service-level translation of repository.ErrNotFound.
var ErrNotFound = errors.New("service: record not found")

// Service delegates 1:1 to one repository for an entity type T keyed by U.
type Service[T any, U comparable] struct {
	repo repository.Repository[T, U]
}

// NewService constructs a Service over repo.
func NewService[T any, U comparable](repo repository.Repository[T, U]) *Service[T, U] {
	return &Service[T, U]{repo: repo}
}

// Repository exposes the wrapped repository for specialized queries.
func (s *Service[T, U]) Repository() repository.Repository[T, U] {
	return s.repo
}

func (s *Service[T, U]) Count(ctx context.Context, filters ...repository.Filter) (int, error) {
	return s.repo.Count(ctx, filters...)
}

func (s *Service[T, U]) Create(ctx context.Context, entity T) (T, error) {
	return s.repo.Create(ctx, entity)
}

func (s *Service[T, U]) CreateMany(ctx context.Context, entities []T) ([]T, error) {
	return s.repo.CreateMany(ctx, entities)
}

func (s *Service[T, U]) Get(ctx context.Context, id U, filters ...repository.Filter) (T, error) {
	entity, err := s.repo.Get(ctx, id, filters...)
	return entity, translateNotFound(err)
}

func (s *Service[T, U]) GetOne(ctx context.Context, id U) (T, error) {
	entity, err := s.repo.GetOne(ctx, id)
	return entity, translateNotFound(err)
}

func (s *Service[T, U]) GetOneOrNone(ctx context.Context, id U) (T, error) {
	return s.repo.GetOneOrNone(ctx, id)
}

func (s *Service[T, U]) List(ctx context.Context, filters ...repository.Filter) ([]T, error) {
	return s.repo.List(ctx, filters...)
}

func (s *Service[T, U]) ListAndCount(ctx context.Context, filters ...repository.Filter) ([]T, int, error) {
	return s.repo.ListAndCount(ctx, filters...)
}

func (s *Service[T, U]) Delete(ctx context.Context, id U) (T, error) {
	entity, err := s.repo.Delete(ctx, id)
	return entity, translateNotFound(err)
}

func (s *Service[T, U]) DeleteMany(ctx context.Context, ids []U) ([]T, error) {
	return s.repo.DeleteMany(ctx, ids)
}

func (s *Service[T, U]) Update(ctx context.Context, entity T) (T, error) {
	updated, err := s.repo.Update(ctx, entity)
	return updated, translateNotFound(err)
}

func (s *Service[T, U]) UpdateMany(ctx context.Context, entities []T) ([]T, error) {
	return s.repo.UpdateMany(ctx, entities)
}

func (s *Service[T, U]) Upsert(ctx context.Context, entity T) (T, error) {
	return s.repo.Upsert(ctx, entity)
}

func (s *Service[T, U]) UpsertMany(ctx context.Context, entities []T) ([]T, error) {
	return s.repo.UpsertMany(ctx, entities)
}

func (s *Service[T, U]) Exists(ctx context.Context, filters ...repository.Filter) (bool, error) {
	return s.repo.Exists(ctx, filters...)
}

func translateNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
