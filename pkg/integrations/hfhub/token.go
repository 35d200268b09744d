package hfhub

import (
	"context"
	"errors"
	"strings"
)

// ErrNoToken is returned by a [TokenSource] that has no token to offer.
var ErrNoToken = errors.New("no hub token available")

// TokenSource yields a bearer token for the hub.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken returns a TokenSource for a fixed token. An empty token yields
// [ErrNoToken].
func StaticToken(token string) TokenSource {
	token = strings.TrimSpace(token)
	return func(context.Context) (string, error) {
		if token == "" {
			return "", ErrNoToken
		}
		return token, nil
	}
}

// FirstToken tries each source in order and returns the first token found.
// Sources reporting [ErrNoToken] are skipped; any other error stops the chain.
func FirstToken(sources ...TokenSource) TokenSource {
	return func(ctx context.Context) (string, error) {
		for _, src := range sources {
			if src == nil {
				continue
			}
			tok, err := src(ctx)
			if errors.Is(err, ErrNoToken) {
				continue
			}
			if err != nil {
				return "", err
			}
			if tok = strings.TrimSpace(tok); tok != "" {
				return tok, nil
			}
		}
		return "", ErrNoToken
	}
}
