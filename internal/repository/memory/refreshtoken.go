package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authcore/internal/apperrors"
	"github.com/nkiryanov/authcore/internal/models"
)

type RefreshTokenRepo struct {
	s *Storage
}

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error) {
	defer r.s.lock()()

	if _, ok := r.s.data.tokens[token.ID]; ok {
		return models.RefreshToken{}, fmt.Errorf("refresh token %s already exists", token.ID)
	}
	r.s.data.tokens[token.ID] = token

	return token, nil
}

func (r *RefreshTokenRepo) Get(ctx context.Context, tokenID uuid.UUID) (models.RefreshToken, error) {
	defer r.s.lock()()

	token, ok := r.s.data.tokens[tokenID]
	if !ok {
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	}
	return token, nil
}

func (r *RefreshTokenRepo) MarkRotated(ctx context.Context, tokenID uuid.UUID, successorID uuid.UUID, now time.Time) (models.RefreshToken, error) {
	defer r.s.lock()()

	token, ok := r.s.data.tokens[tokenID]
	if !ok || token.State(now) != models.TokenStateActive {
		return models.RefreshToken{}, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	}

	token.RotatedAt = &now
	token.ReplacedBy = &successorID
	r.s.data.tokens[tokenID] = token

	return token, nil
}

func (r *RefreshTokenRepo) DeleteActive(ctx context.Context, tokenID uuid.UUID, now time.Time) (models.RefreshToken, error) {
	defer r.s.lock()()

	token, ok := r.s.data.tokens[tokenID]
	if !ok || token.State(now) != models.TokenStateActive {
		return models.RefreshToken{}, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	}
	delete(r.s.data.tokens, tokenID)

	return token, nil
}

func (r *RefreshTokenRepo) RevokeAll(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	defer r.s.lock()()

	count := 0
	for id, token := range r.s.data.tokens {
		if token.UserID != userID || token.Terminal() {
			continue
		}
		token.RevokedAt = &now
		r.s.data.tokens[id] = token
		count++
	}

	return count, nil
}

func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	defer r.s.lock()()

	count := 0
	for id, token := range r.s.data.tokens {
		if token.ExpiresAt.Before(before) {
			delete(r.s.data.tokens, id)
			count++
		}
	}

	return count, nil
}
