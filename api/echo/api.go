// Package echo exposes the HTTP surface of fitsync: client registration and
// OAuth callback, read access to ingested metrics, and the tick webhook the
// external scheduler posts to.
package echo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	fitsync "github.com/pilab-dev/fitsync"
	"github.com/pilab-dev/fitsync/domain"
	apierrors "github.com/pilab-dev/fitsync/errors"
	"github.com/pilab-dev/fitsync/fitbit"
	"github.com/pilab-dev/fitsync/mongodb"
)

// SyncAPI struct to hold dependencies.
type SyncAPI struct {
	creds      domain.CredentialRepository
	records    domain.MetricRecordRepository
	dispatcher *fitsync.CronDispatcher
	authorizer *fitbit.Authorizer
	client     *fitbit.Client
}

// NewSyncAPI initializes the HTTP API.
func NewSyncAPI(
	creds domain.CredentialRepository,
	records domain.MetricRecordRepository,
	dispatcher *fitsync.CronDispatcher,
	authorizer *fitbit.Authorizer,
	client *fitbit.Client,
) *SyncAPI {
	return &SyncAPI{
		creds:      creds,
		records:    records,
		dispatcher: dispatcher,
		authorizer: authorizer,
		client:     client,
	}
}

// RegisterRoutes registers the fitsync routes.
func (a *SyncAPI) RegisterRoutes(e *echo.Echo) {
	e.GET("/auth/:clientId", a.RegisterHandler)
	e.GET("/callback/:clientId", a.CallbackHandler)
	e.DELETE("/auth/:clientId", a.DeregisterHandler)

	e.GET("/clients/:clientId/weight", a.WeightHandler)
	e.GET("/clients/:clientId/activity/:stream", a.ActivityHandler)
	e.GET("/clients/:clientId/latest/:stream", a.LatestHandler)
	e.GET("/clients/:clientId/hr", a.HeartRateHandler)

	e.POST("/internal/tick", a.TickHandler)

	e.GET("/healthz", a.HealthHandler)
	e.GET("/readyz", a.ReadyHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterHandler stores a new client's app credentials and redirects the
// browser to the provider's consent page. The app secret arrives in the
// clientSecret header, like the original deployment expected.
func (a *SyncAPI) RegisterHandler(c echo.Context) error {
	clientID := c.Param("clientId")
	clientSecret := c.Request().Header.Get("clientSecret")
	if clientSecret == "" {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("clientSecret header is required"))
	}

	now := time.Now()
	cred := &domain.Credential{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.creds.Put(c.Request().Context(), cred); err != nil {
		log.Error().Err(err).Str("client_id", clientID).Msg("Failed to store registration")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError("failed to store registration"))
	}

	consentURL := a.authorizer.AuthCodeURL(cred, a.callbackURL(c, clientID), clientID)
	return c.Redirect(http.StatusFound, consentURL)
}

// CallbackHandler completes the OAuth2 handshake: it exchanges the
// authorization code for the client's first token pair and stores it.
func (a *SyncAPI) CallbackHandler(c echo.Context) error {
	clientID := c.Param("clientId")
	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("code query parameter is required"))
	}

	ctx := c.Request().Context()
	cred, err := a.creds.Get(ctx, clientID)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return c.JSON(http.StatusNotFound, apierrors.NewNotRegistered("unknown client id"))
		}
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError("failed to load credential"))
	}

	pair, err := a.authorizer.Exchange(ctx, cred, code, a.callbackURL(c, clientID))
	if err != nil {
		log.Error().Err(err).Str("client_id", clientID).Msg("Authorization code exchange failed")
		return c.JSON(http.StatusBadGateway, apierrors.NewUpstreamUnauthorized("authorization code exchange failed"))
	}

	cred.Token = pair
	cred.UpdatedAt = time.Now()
	if err := a.creds.Put(ctx, cred); err != nil {
		log.Error().Err(err).Str("client_id", clientID).Msg("Failed to store token pair")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError("failed to store token pair"))
	}

	return c.Redirect(http.StatusFound, "/")
}

// DeregisterHandler removes a client's credential. Already ingested records
// and checkpoints are kept; a re-registered client resumes where it left off.
func (a *SyncAPI) DeregisterHandler(c echo.Context) error {
	clientID := c.Param("clientId")
	if err := a.creds.Delete(c.Request().Context(), clientID); err != nil {
		log.Error().Err(err).Str("client_id", clientID).Msg("Failed to delete credential")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError("failed to delete credential"))
	}
	return c.NoContent(http.StatusNoContent)
}

// WeightHandler returns the stored weight history for a client.
func (a *SyncAPI) WeightHandler(c echo.Context) error {
	return a.history(c, domain.StreamWeight)
}

// ActivityHandler returns the stored history of one activity stream.
func (a *SyncAPI) ActivityHandler(c echo.Context) error {
	stream, err := domain.ParseStream(c.Param("stream"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest(err.Error()))
	}
	return a.history(c, stream)
}

func (a *SyncAPI) history(c echo.Context, stream domain.MetricStream) error {
	clientID := c.Param("clientId")

	days := 30
	if raw := c.QueryParam("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("days must be a positive integer"))
		}
		days = parsed
	}

	since := time.Now().AddDate(0, 0, -days)
	records, err := a.records.FindSince(c.Request().Context(), clientID, stream, since)
	if err != nil {
		log.Error().Err(err).Str("client_id", clientID).Str("stream", string(stream)).Msg("History query failed")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError("history query failed"))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"client_id": clientID,
		"stream":    stream,
		"entries":   records,
	})
}

// LatestHandler returns the most recently ingested record of a stream.
func (a *SyncAPI) LatestHandler(c echo.Context) error {
	clientID := c.Param("clientId")
	stream, err := domain.ParseStream(c.Param("stream"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest(err.Error()))
	}

	record, err := a.records.Latest(c.Request().Context(), clientID, stream)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError("latest record query failed"))
	}
	if record == nil {
		return c.JSON(http.StatusNotFound, apierrors.NewInvalidRequest("no records for stream"))
	}
	return c.JSON(http.StatusOK, record)
}

// HeartRateHandler fetches today's resting heart rate directly from the
// provider, bypassing the ingestion pipeline.
func (a *SyncAPI) HeartRateHandler(c echo.Context) error {
	clientID := c.Param("clientId")
	ctx := c.Request().Context()

	cred, err := a.creds.Get(ctx, clientID)
	if err != nil || !cred.Authorized() {
		return c.JSON(http.StatusNotFound, apierrors.NewNotRegistered("client has not completed authorization"))
	}

	now := time.Now()
	points, err := a.client.Fetch(ctx, cred.Token.AccessToken, domain.StreamRestingHeartRate, now.AddDate(0, 0, -1), now)
	switch {
	case errors.Is(err, fitsync.ErrUnauthorized):
		return c.JSON(http.StatusBadGateway, apierrors.NewUpstreamUnauthorized("provider rejected the access token"))
	case err != nil:
		return c.JSON(http.StatusBadGateway, apierrors.NewUpstreamUnavailable("provider fetch failed"))
	case len(points) == 0:
		return c.JSON(http.StatusNotFound, apierrors.NewInvalidRequest("no heart rate data"))
	}

	return c.JSON(http.StatusOK, points[len(points)-1])
}

// TickHandler is the entry point the external scheduler posts to. The tick id
// (the cron expression) arrives in the "tick" form value or query parameter.
func (a *SyncAPI) TickHandler(c echo.Context) error {
	tickID := c.FormValue("tick")
	if tickID == "" {
		tickID = c.QueryParam("tick")
	}
	if tickID == "" {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("tick parameter is required"))
	}

	// Run the sweep detached from the request: scheduler webhooks time out
	// quickly and the sweep's pace depends on the provider.
	go func() {
		if err := a.dispatcher.Dispatch(context.WithoutCancel(c.Request().Context()), tickID); err != nil {
			log.Error().Err(err).Str("tick", tickID).Msg("Tick dispatch failed")
		}
	}()

	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted", "tick": tickID})
}

// HealthHandler reports liveness.
func (a *SyncAPI) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler reports readiness: the database must be reachable.
func (a *SyncAPI) ReadyHandler(c echo.Context) error {
	if err := mongodb.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, apierrors.NewServerError("database unreachable"))
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

func (a *SyncAPI) callbackURL(c echo.Context, clientID string) string {
	return fmt.Sprintf("%s://%s/callback/%s", c.Scheme(), c.Request().Host, clientID)
}
