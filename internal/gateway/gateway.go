package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"groupgate/internal/domain"
	"groupgate/internal/telegram"
)

var (
	// ErrNotConfigured is returned by every operation while the Telegram
	// API credentials are missing.
	ErrNotConfigured = errors.New("telegram API credentials not configured")

	// ErrNoMembersResolved is returned by CreateGroup when not a single
	// number could be mapped to a Telegram user.
	ErrNoMembersResolved = errors.New("none of the numbers belong to a telegram account")
)

// Gateway implements the three-step session protocol: request a login code,
// verify it into a reusable session string, and create a group on that
// session. The pending-login registry is its only shared state.
type Gateway struct {
	dialer telegram.Dialer
	logins *Registry
	logger *zap.Logger
}

// New creates a Gateway. A nil dialer marks the gateway as unconfigured;
// every operation then fails with ErrNotConfigured before touching the
// library.
func New(dialer telegram.Dialer, logins *Registry, logger *zap.Logger) *Gateway {
	return &Gateway{
		dialer: dialer,
		logins: logins,
		logger: logger,
	}
}

func (g *Gateway) ready() error {
	if g.dialer == nil {
		return ErrNotConfigured
	}
	return nil
}

// RequestCodeResult carries the handle of the stored pending login and the
// provider-issued code hash the client must echo back on verification.
type RequestCodeResult struct {
	LoginID       string
	PhoneCodeHash string
}

// RequestCode opens a connection, asks Telegram to send a one-time code to
// phone, and parks the connection in the registry for the verify step.
func (g *Gateway) RequestCode(ctx context.Context, phone string) (RequestCodeResult, error) {
	if err := g.ready(); err != nil {
		return RequestCodeResult{}, err
	}

	conn, err := g.dialer.Dial(ctx)
	if err != nil {
		return RequestCodeResult{}, err
	}

	codeHash, err := conn.SendCode(ctx, phone)
	if err != nil {
		g.closeConn(conn, "failed send")
		return RequestCodeResult{}, err
	}

	id := g.logins.Put(phone, conn)
	g.logger.Info("verification code sent", zap.String("phone", phone))
	return RequestCodeResult{LoginID: id, PhoneCodeHash: codeHash}, nil
}

// VerifyCodeParams are the inputs to VerifyCode. LoginID is optional.
type VerifyCodeParams struct {
	Phone    string
	Code     string
	CodeHash string
	LoginID  string
}

// VerifyCode signs in with the user-entered code. When LoginID resolves to a
// live pending login its connection is reused; otherwise a fresh connection
// is opened. Signing in over a connection other than the one that requested
// the code is known to be rejected by some data centers; the fallback is kept
// for expired or cross-instance handles and logged when it happens.
//
// A failed sign-in does not consume the pending login: the connection goes
// back into the registry under the same handle, with its original deadline,
// so the user can retry a mistyped code. Only success, a required second
// factor, or eviction end a pending login's life.
//
// On success the authenticated session is exported and returned as a base64
// token. Returns telegram.ErrPasswordNeeded (wrapped) when the account
// requires a second factor.
func (g *Gateway) VerifyCode(ctx context.Context, p VerifyCodeParams) (string, error) {
	if err := g.ready(); err != nil {
		return "", err
	}

	var pending *PendingLogin
	if p.LoginID != "" {
		pending, _ = g.logins.Take(p.LoginID)
	}

	var conn telegram.Conn
	if pending != nil {
		conn = pending.Conn
	} else {
		g.logger.Warn("pending login not found, signing in over a fresh connection",
			zap.String("phone", p.Phone))
		fresh, err := g.dialer.Dial(ctx)
		if err != nil {
			return "", err
		}
		conn = fresh
	}

	if err := conn.SignIn(ctx, p.Phone, p.Code, p.CodeHash); err != nil {
		if pending != nil && !errors.Is(err, telegram.ErrPasswordNeeded) {
			g.logins.Restore(pending)
			g.logger.Info("sign in failed, keeping pending login for retry",
				zap.String("phone", p.Phone), zap.Error(err))
		} else {
			g.closeConn(conn, "verify")
		}
		return "", err
	}

	sess, err := conn.ExportSession(ctx)
	g.closeConn(conn, "verify")
	if err != nil {
		return "", fmt.Errorf("export session: %w", err)
	}

	g.logger.Info("phone verified", zap.String("phone", p.Phone))
	return base64.StdEncoding.EncodeToString(sess), nil
}

func (g *Gateway) closeConn(conn telegram.Conn, op string) {
	if err := conn.Close(); err != nil {
		g.logger.Warn("closing connection after "+op, zap.Error(err))
	}
}

// CreateGroupParams are the inputs to CreateGroup. Photo is optional.
type CreateGroupParams struct {
	Session string
	Name    string
	Numbers []string
	Photo   []byte
}

// CreateGroupResult reports what happened, including the numbers that could
// not be resolved. FailedNumbers is populated even when the call fails.
type CreateGroupResult struct {
	Group          domain.Group
	MembersAdded   int
	TotalRequested int
	FailedNumbers  []string
}

// CreateGroup rehydrates a connection from the session token, resolves each
// number independently, and creates a group containing exactly the resolved
// members. A number that fails to resolve does not abort the others; zero
// resolved members fails the whole call with ErrNoMembersResolved and no
// group is created.
func (g *Gateway) CreateGroup(ctx context.Context, p CreateGroupParams) (CreateGroupResult, error) {
	res := CreateGroupResult{TotalRequested: len(p.Numbers)}

	if err := g.ready(); err != nil {
		return res, err
	}

	sess, err := base64.StdEncoding.DecodeString(p.Session)
	if err != nil {
		return res, fmt.Errorf("invalid session string: %w", err)
	}

	conn, err := g.dialer.DialSession(ctx, sess)
	if err != nil {
		return res, err
	}
	defer g.closeConn(conn, "create group")

	var members []domain.Member
	for _, number := range p.Numbers {
		member, err := conn.ResolvePhone(ctx, number)
		if err != nil {
			g.logger.Warn("number did not resolve",
				zap.String("phone", number), zap.Error(err))
			res.FailedNumbers = append(res.FailedNumbers, number)
			continue
		}
		members = append(members, member)
	}

	if len(members) == 0 {
		return res, ErrNoMembersResolved
	}

	group, err := conn.CreateGroup(ctx, p.Name, members)
	if err != nil {
		return res, err
	}
	res.Group = group
	res.MembersAdded = len(members)

	if len(p.Photo) > 0 {
		// Best effort: the group exists either way.
		if err := conn.SetGroupPhoto(ctx, group.ID, p.Photo); err != nil {
			g.logger.Warn("failed to set group photo",
				zap.Int64("chat_id", group.ID), zap.Error(err))
		}
	}

	g.logger.Info("group created",
		zap.String("title", group.Title),
		zap.Int("members", res.MembersAdded),
		zap.Int("requested", res.TotalRequested))
	return res, nil
}
