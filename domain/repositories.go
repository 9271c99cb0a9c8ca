package domain

import "context"

//go:generate mockgen -source=$GOFILE -destination=../mocks/mock_$GOPACKAGE/mock_$GOFILE -package=mock_$GOPACKAGE

// SessionRepository persists refresh-session records for visibility and
// session management. All writes through this interface are best-effort
// from the token lifecycle's point of view.
type SessionRepository interface {
	StoreSession(ctx context.Context, session *RefreshSession) error
	GetSessionByTokenID(ctx context.Context, tokenID string) (*RefreshSession, error)
	DeleteSessionByTokenID(ctx context.Context, tokenID string) error
	DeleteSessionsByUserID(ctx context.Context, userID string) (int64, error)
	ListSessionsByUserID(ctx context.Context, userID string) ([]*RefreshSession, error)
}
