package fitsync

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/pilab-dev/fitsync/domain"
)

// --- Mock Implementations ---

type MockCredentialRepository struct {
	mock.Mock
}

func (m *MockCredentialRepository) Put(ctx context.Context, cred *domain.Credential) error {
	args := m.Called(ctx, cred)
	return args.Error(0)
}

func (m *MockCredentialRepository) Get(ctx context.Context, clientID string) (*domain.Credential, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Credential), args.Error(1)
}

func (m *MockCredentialRepository) Delete(ctx context.Context, clientID string) error {
	args := m.Called(ctx, clientID)
	return args.Error(0)
}

func (m *MockCredentialRepository) ListClientIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCredentialRepository) ForEach(ctx context.Context, fn func(cred *domain.Credential) error) error {
	args := m.Called(ctx, fn)
	if creds, ok := args.Get(1).([]*domain.Credential); ok {
		for _, cred := range creds {
			if err := fn(cred); err != nil {
				return err
			}
		}
	}
	return args.Error(0)
}

type MockCheckpointRepository struct {
	mock.Mock
}

func (m *MockCheckpointRepository) Get(ctx context.Context, clientID string, stream domain.MetricStream) (*domain.Checkpoint, error) {
	args := m.Called(ctx, clientID, stream)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Checkpoint), args.Error(1)
}

func (m *MockCheckpointRepository) Advance(ctx context.Context, cp *domain.Checkpoint) error {
	args := m.Called(ctx, cp)
	return args.Error(0)
}

type MockMetricRecordRepository struct {
	mock.Mock
}

func (m *MockMetricRecordRepository) InsertMany(ctx context.Context, records []domain.MetricRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockMetricRecordRepository) FindSince(ctx context.Context, clientID string, stream domain.MetricStream, since time.Time) ([]domain.MetricRecord, error) {
	args := m.Called(ctx, clientID, stream, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MetricRecord), args.Error(1)
}

func (m *MockMetricRecordRepository) Latest(ctx context.Context, clientID string, stream domain.MetricStream) (*domain.MetricRecord, error) {
	args := m.Called(ctx, clientID, stream)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MetricRecord), args.Error(1)
}

type MockMetricFetcher struct {
	mock.Mock
}

func (m *MockMetricFetcher) Fetch(ctx context.Context, accessToken string, stream domain.MetricStream, from, to time.Time) ([]domain.MetricPoint, error) {
	args := m.Called(ctx, accessToken, stream, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MetricPoint), args.Error(1)
}

type MockAuthorizer struct {
	mock.Mock
}

func (m *MockAuthorizer) Refresh(ctx context.Context, cred *domain.Credential) (*domain.TokenPair, error) {
	args := m.Called(ctx, cred)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TokenPair), args.Error(1)
}

type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) Sync(ctx context.Context, clientID string, stream domain.MetricStream) error {
	args := m.Called(ctx, clientID, stream)
	return args.Error(0)
}

type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) Refresh(ctx context.Context, cred *domain.Credential) error {
	args := m.Called(ctx, cred)
	return args.Error(0)
}
