package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/spherical/glance/internal/cache"
	"github.com/spherical/glance/internal/domain"
	"github.com/spherical/glance/internal/observability"
)

// CachingTranslator remembers translations so re-reading the same sign does
// not call the translation service again.
type CachingTranslator struct {
	next   domain.Translator
	cache  cache.Client
	lang   string
	ttl    time.Duration
	logger *observability.Logger
}

// NewCachingTranslator wraps next with cache c. lang is part of the key so a
// change of target language never serves stale results.
func NewCachingTranslator(next domain.Translator, c cache.Client, lang string, ttl time.Duration, logger *observability.Logger) *CachingTranslator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &CachingTranslator{next: next, cache: c, lang: lang, ttl: ttl, logger: logger}
}

// Translate returns a cached translation or asks the wrapped translator.
// Cache failures are logged and never fail the translation.
func (t *CachingTranslator) Translate(ctx context.Context, text string) (string, error) {
	key := t.key(text)

	cached, err := t.cache.Get(ctx, key)
	if err == nil {
		return string(cached), nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		t.logger.Warn().Err(err).Msg("translation cache read failed")
	}

	translated, err := t.next.Translate(ctx, text)
	if err != nil {
		return "", err
	}

	if err := t.cache.Set(ctx, key, []byte(translated), t.ttl); err != nil {
		t.logger.Warn().Err(err).Msg("translation cache write failed")
	}
	return translated, nil
}

func (t *CachingTranslator) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return cache.Key("translation", t.lang, hex.EncodeToString(sum[:16]))
}
