package telegram

import (
	"context"
	"errors"

	"groupgate/internal/domain"
)

// ErrPasswordNeeded is returned by SignIn when the account has two-step
// verification enabled. The flow only surfaces this to the caller; there is
// no password submission step.
var ErrPasswordNeeded = errors.New("two-step verification password needed")

// Dialer opens MTProto connections.
type Dialer interface {
	// Dial opens a fresh, unauthenticated connection.
	Dial(ctx context.Context) (Conn, error)
	// DialSession opens a connection restored from a previously exported
	// session.
	DialSession(ctx context.Context, session []byte) (Conn, error)
}

// Conn is a live MTProto connection. Connections are single-owner: whoever
// holds the Conn is responsible for closing it exactly once.
type Conn interface {
	// SendCode asks Telegram to deliver a one-time login code to the
	// account behind phone and returns the code hash to echo back on
	// sign-in.
	SendCode(ctx context.Context, phone string) (codeHash string, err error)
	// SignIn completes the login with the exact (phone, code, codeHash)
	// triple. Returns ErrPasswordNeeded when a second factor is required.
	SignIn(ctx context.Context, phone, code, codeHash string) error
	// ExportSession serializes the authenticated session for later reuse.
	ExportSession(ctx context.Context) ([]byte, error)
	// ResolvePhone maps a phone number to a Telegram user via the
	// contact-import RPC.
	ResolvePhone(ctx context.Context, phone string) (domain.Member, error)
	// CreateGroup creates a basic group titled title containing exactly
	// the given members.
	CreateGroup(ctx context.Context, title string, members []domain.Member) (domain.Group, error)
	// SetGroupPhoto uploads photo and sets it as the group's picture.
	SetGroupPhoto(ctx context.Context, chatID int64, photo []byte) error
	Close() error
}
