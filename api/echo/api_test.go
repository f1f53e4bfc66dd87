package echo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	fitsync "github.com/pilab-dev/fitsync"
	"github.com/pilab-dev/fitsync/domain"
	"github.com/pilab-dev/fitsync/fitbit"
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

type stubSweeper struct{}

func (stubSweeper) Sync(context.Context, string, domain.MetricStream) error { return nil }
func (stubSweeper) Refresh(context.Context, *domain.Credential) error       { return nil }

func newTestAPI(t *testing.T, creds *MockCredentialRepository, records *MockMetricRecordRepository) (*SyncAPI, *echo.Echo) {
	t.Helper()
	dispatcher, err := fitsync.NewCronDispatcher(creds, stubSweeper{}, stubSweeper{}, fitsync.DefaultTickTable(), 1)
	require.NoError(t, err)

	api := NewSyncAPI(creds, records, dispatcher,
		fitbit.NewAuthorizer("", "", nil), fitbit.NewClient("", ""))
	e := echo.New()
	api.RegisterRoutes(e)
	return api, e
}

func TestRegisterHandler(t *testing.T) {
	t.Run("Missing clientSecret header is rejected", func(t *testing.T) {
		creds := new(MockCredentialRepository)
		_, e := newTestAPI(t, creds, new(MockMetricRecordRepository))

		req := httptest.NewRequest(http.MethodGet, "/auth/app-1", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		creds.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	})

	t.Run("Stores the credential and redirects to the consent page", func(t *testing.T) {
		creds := new(MockCredentialRepository)
		_, e := newTestAPI(t, creds, new(MockMetricRecordRepository))

		creds.On("Put", mock.Anything, mock.AnythingOfType("*domain.Credential")).Run(func(args mock.Arguments) {
			cred := args.Get(1).(*domain.Credential)
			assert.Equal(t, "app-1", cred.ClientID)
			assert.Equal(t, "s3cret", cred.ClientSecret)
			assert.Nil(t, cred.Token)
		}).Return(nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/auth/app-1", nil)
		req.Header.Set("clientSecret", "s3cret")
		req.Host = "sync.example.com"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusFound, rec.Code)
		location := rec.Header().Get("Location")
		assert.Contains(t, location, fitbit.DefaultAuthURL)
		assert.Contains(t, location, "state=app-1")
		assert.Contains(t, location, "callback%2Fapp-1")
		creds.AssertExpectations(t)
	})
}

func TestDeregisterHandler(t *testing.T) {
	creds := new(MockCredentialRepository)
	_, e := newTestAPI(t, creds, new(MockMetricRecordRepository))

	creds.On("Delete", mock.Anything, "app-1").Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/auth/app-1", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	creds.AssertExpectations(t)
}

func TestCallbackHandler(t *testing.T) {
	t.Run("Missing code is rejected", func(t *testing.T) {
		_, e := newTestAPI(t, new(MockCredentialRepository), new(MockMetricRecordRepository))

		req := httptest.NewRequest(http.MethodGet, "/callback/app-1", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Unknown client id yields 404", func(t *testing.T) {
		creds := new(MockCredentialRepository)
		_, e := newTestAPI(t, creds, new(MockMetricRecordRepository))

		creds.On("Get", mock.Anything, "app-1").Return(nil, domain.ErrCredentialNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/callback/app-1?code=abc", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHistoryHandlers(t *testing.T) {
	t.Run("Weight history returns stored entries", func(t *testing.T) {
		records := new(MockMetricRecordRepository)
		_, e := newTestAPI(t, new(MockCredentialRepository), records)

		stored := []domain.MetricRecord{
			{ClientID: "app-1", Stream: domain.StreamWeight, RecordID: 1, Value: 80.5},
			{ClientID: "app-1", Stream: domain.StreamWeight, RecordID: 2, Value: 80.1},
		}
		records.On("FindSince", mock.Anything, "app-1", domain.StreamWeight, mock.AnythingOfType("time.Time")).
			Return(stored, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/clients/app-1/weight?days=7", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var payload struct {
			ClientID string                `json:"client_id"`
			Stream   string                `json:"stream"`
			Entries  []domain.MetricRecord `json:"entries"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
		assert.Equal(t, "app-1", payload.ClientID)
		assert.Equal(t, "weight", payload.Stream)
		assert.Len(t, payload.Entries, 2)
	})

	t.Run("Unknown activity stream is rejected", func(t *testing.T) {
		_, e := newTestAPI(t, new(MockCredentialRepository), new(MockMetricRecordRepository))

		req := httptest.NewRequest(http.MethodGet, "/clients/app-1/activity/pulse", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Negative days is rejected", func(t *testing.T) {
		_, e := newTestAPI(t, new(MockCredentialRepository), new(MockMetricRecordRepository))

		req := httptest.NewRequest(http.MethodGet, "/clients/app-1/weight?days=-3", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLatestHandler(t *testing.T) {
	t.Run("Returns the newest record", func(t *testing.T) {
		records := new(MockMetricRecordRepository)
		_, e := newTestAPI(t, new(MockCredentialRepository), records)

		latest := &domain.MetricRecord{ClientID: "app-1", Stream: domain.StreamDailySteps, RecordID: 42, Value: 10233}
		records.On("Latest", mock.Anything, "app-1", domain.StreamDailySteps).Return(latest, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/clients/app-1/latest/steps", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var got domain.MetricRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, int64(42), got.RecordID)
	})

	t.Run("No records yields 404", func(t *testing.T) {
		records := new(MockMetricRecordRepository)
		_, e := newTestAPI(t, new(MockCredentialRepository), records)

		records.On("Latest", mock.Anything, "app-1", domain.StreamDailySteps).Return(nil, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/clients/app-1/latest/steps", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestTickHandler(t *testing.T) {
	t.Run("Missing tick parameter is rejected", func(t *testing.T) {
		_, e := newTestAPI(t, new(MockCredentialRepository), new(MockMetricRecordRepository))

		req := httptest.NewRequest(http.MethodPost, "/internal/tick", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Valid tick is accepted", func(t *testing.T) {
		_, e := newTestAPI(t, new(MockCredentialRepository), new(MockMetricRecordRepository))

		// An unmapped tick: accepted and ignored by the dispatcher.
		req := httptest.NewRequest(http.MethodPost, "/internal/tick?tick=%2A%2F9+%2A+%2A+%2A+%2A", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)
	})
}

func TestHealthHandler(t *testing.T) {
	_, e := newTestAPI(t, new(MockCredentialRepository), new(MockMetricRecordRepository))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
