package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"mooshihub/internal/microservices/http-api/repository"
	"mooshihub/internal/microservices/websocket"

	"golang.org/x/oauth2"
)

var (
	ErrClientNotConnected = errors.New("client not connected")
	ErrUnknownState       = errors.New("unknown or expired state")
	ErrTokenExchange      = errors.New("token exchange failed")
)

// SpotifyEndpoint is Spotify's authorization-code endpoint. Credentials go in
// a Basic auth header on the token request.
var SpotifyEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.spotify.com/authorize",
	TokenURL:  "https://accounts.spotify.com/api/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// SessionPusher is the part of the websocket hub the OAuth flow needs.
type SessionPusher interface {
	Get(id websocket.ClientID) (websocket.Transport, bool)
	Push(id websocket.ClientID, env websocket.Envelope) error
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Endpoint     oauth2.Endpoint
	StateTTL     time.Duration
}

// OAuthService runs the Spotify authorization-code flow on behalf of a
// connected websocket client and delivers the resulting token to it as an
// op=6 MESSAGE.
type OAuthService interface {
	AuthorizeURL(ctx context.Context, state int64, playlistName string, clientID int64) (string, error)
	Complete(ctx context.Context, code string, state int64) (*repository.PendingAuthorization, error)
}

type oauthService struct {
	oauth  *oauth2.Config
	ttl    time.Duration
	states repository.OAuthStateStore
	hub    SessionPusher
	logger *slog.Logger
}

func NewOAuthService(cfg OAuthConfig, states repository.OAuthStateStore, hub SessionPusher, logger *slog.Logger) OAuthService {
	if cfg.Endpoint.TokenURL == "" {
		cfg.Endpoint = SpotifyEndpoint
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = 10 * time.Minute
	}
	return &oauthService{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     cfg.Endpoint,
		},
		ttl:    cfg.StateTTL,
		states: states,
		hub:    hub,
		logger: logger,
	}
}

// AuthorizeURL remembers the pending request under state and returns the
// provider URL the browser should be sent to.
func (s *oauthService) AuthorizeURL(ctx context.Context, state int64, playlistName string, clientID int64) (string, error) {
	if _, ok := s.hub.Get(websocket.ClientID(clientID)); !ok {
		return "", ErrClientNotConnected
	}

	pending := repository.PendingAuthorization{
		State:        state,
		ClientID:     clientID,
		PlaylistName: playlistName,
	}
	if err := s.states.Save(ctx, pending, s.ttl); err != nil {
		return "", fmt.Errorf("failed to save oauth state: %w", err)
	}

	s.logger.Info("oauth_authorization_started",
		"client_id", clientID,
		"state", state,
	)
	return s.oauth.AuthCodeURL(strconv.FormatInt(state, 10)), nil
}

// Complete exchanges code for a token and pushes it to the client that
// started the flow.
func (s *oauthService) Complete(ctx context.Context, code string, state int64) (*repository.PendingAuthorization, error) {
	pending, err := s.states.Take(ctx, state)
	if err != nil {
		if errors.Is(err, repository.ErrStateNotFound) {
			return nil, ErrUnknownState
		}
		return nil, err
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("oauth_token_exchange_failed",
			"client_id", pending.ClientID,
			"state", state,
			"error", err.Error(),
		)
		return nil, fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}

	fields := map[string]any{
		"access_token":  token.AccessToken,
		"token_type":    token.TokenType,
		"refresh_token": token.RefreshToken,
		"state":         state,
		"playlist_name": pending.PlaylistName,
		"client_id":     pending.ClientID,
	}
	if v := token.Extra("expires_in"); v != nil {
		fields["expires_in"] = v
	}
	if v := token.Extra("scope"); v != nil {
		fields["scope"] = v
	}
	msg, err := websocket.NewMessage(fields)
	if err != nil {
		return nil, err
	}

	if err := s.hub.Push(websocket.ClientID(pending.ClientID), msg); err != nil {
		if errors.Is(err, websocket.ErrSessionNotFound) {
			return nil, ErrClientNotConnected
		}
		return nil, fmt.Errorf("failed to deliver token: %w", err)
	}

	s.logger.Info("oauth_token_delivered",
		"client_id", pending.ClientID,
		"state", state,
	)
	return pending, nil
}
