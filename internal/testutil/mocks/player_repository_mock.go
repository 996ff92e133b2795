package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/promptfix/internal/models"
)

// MockPlayerRepository is a mock implementation of repository.PlayerRepository
type MockPlayerRepository struct {
	mock.Mock
}

func (m *MockPlayerRepository) Upsert(ctx context.Context, record models.PlayerRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockPlayerRepository) Exists(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockPlayerRepository) Get(ctx context.Context, username string) (*models.PlayerRecord, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PlayerRecord), args.Error(1)
}

func (m *MockPlayerRepository) Rank(ctx context.Context, username string) (int, bool, error) {
	args := m.Called(ctx, username)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *MockPlayerRepository) TopN(ctx context.Context, n int) ([]models.PlayerRecord, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PlayerRecord), args.Error(1)
}

func (m *MockPlayerRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockPlayerRepository) AverageScore(ctx context.Context) (float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockPlayerRepository) StatusCounts(ctx context.Context) (models.StatusCounts, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.StatusCounts), args.Error(1)
}

func (m *MockPlayerRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
