// Package credentials stores vendor API keys in the database so they can
// be rotated without a redeploy. Environment variables remain the
// fallback when no stored token exists.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"storyforge/internal/infra"
	"storyforge/internal/sqlinline"
)

const (
	ProviderFal        = "fal"
	ProviderGemini     = "gemini"
	ProviderPexels     = "pexels"
	ProviderSpeech     = "azure_speech"
	ProviderAssemblyAI = "assemblyai"
)

var knownProviders = map[string]bool{
	ProviderFal:        true,
	ProviderGemini:     true,
	ProviderPexels:     true,
	ProviderSpeech:     true,
	ProviderAssemblyAI: true,
}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the stored token for the provider, empty when none is
// stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// TokenOr returns the stored token, falling back to the given value when
// nothing is stored or the lookup fails.
func (s *Store) TokenOr(ctx context.Context, provider, fallback string) string {
	token, err := s.Token(ctx, provider)
	if err != nil || token == "" {
		return fallback
	}
	return token
}

// SetToken stores or replaces a provider token.
func (s *Store) SetToken(ctx context.Context, provider, token string) error {
	provider = strings.TrimSpace(provider)
	if !knownProviders[provider] {
		return errors.New("unknown provider " + provider)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is required")
	}
	return s.upsert(ctx, provider, token, nil)
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
