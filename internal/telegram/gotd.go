package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"

	"groupgate/internal/domain"
)

// GotdDialer implements Dialer using gotd/td.
type GotdDialer struct {
	apiID   int
	apiHash string
	logger  *zap.Logger
}

// NewGotdDialer creates a Dialer backed by gotd/td.
func NewGotdDialer(apiID int, apiHash string, logger *zap.Logger) *GotdDialer {
	return &GotdDialer{
		apiID:   apiID,
		apiHash: apiHash,
		logger:  logger,
	}
}

// Dial opens a fresh, unauthenticated connection.
func (d *GotdDialer) Dial(ctx context.Context) (Conn, error) {
	return d.dial(ctx, nil)
}

// DialSession opens a connection restored from an exported session and
// verifies that the session is still authorized.
func (d *GotdDialer) DialSession(ctx context.Context, sess []byte) (Conn, error) {
	conn, err := d.dial(ctx, sess)
	if err != nil {
		return nil, err
	}
	status, err := conn.client.Auth().Status(ctx)
	if err != nil {
		d.closeConn(conn)
		return nil, fmt.Errorf("auth status: %w", err)
	}
	if !status.Authorized {
		d.closeConn(conn)
		return nil, errors.New("session is not authorized")
	}
	return conn, nil
}

func (d *GotdDialer) closeConn(conn *gotdConn) {
	if err := conn.Close(); err != nil {
		d.logger.Warn("closing rejected session connection", zap.Error(err))
	}
}

// dial builds a client and runs it in the background until the connection is
// closed. The run callback blocks on its context so the client stays
// connected between calls on the returned Conn.
func (d *GotdDialer) dial(ctx context.Context, sess []byte) (*gotdConn, error) {
	storage := &session.StorageMemory{}
	if len(sess) > 0 {
		if err := storage.StoreSession(ctx, sess); err != nil {
			return nil, fmt.Errorf("restore session: %w", err)
		}
	}

	client := telegram.NewClient(d.apiID, d.apiHash, telegram.Options{
		Logger:         d.logger,
		SessionStorage: storage,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	conn := &gotdConn{
		client:  client,
		storage: storage,
		cancel:  cancel,
		done:    make(chan error, 1),
	}

	ready := make(chan struct{})
	go func() {
		conn.done <- client.Run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case <-ready:
		return conn, nil
	case err := <-conn.done:
		cancel()
		if err == nil {
			err = errors.New("client stopped before connecting")
		}
		return nil, fmt.Errorf("connect: %w", err)
	case <-ctx.Done():
		cancel()
		<-conn.done
		return nil, ctx.Err()
	}
}

// gotdConn implements Conn on top of a background-running telegram.Client.
type gotdConn struct {
	client  *telegram.Client
	storage *session.StorageMemory
	cancel  context.CancelFunc
	done    chan error

	closeOnce sync.Once
	closeErr  error
}

func (c *gotdConn) SendCode(ctx context.Context, phone string) (string, error) {
	sent, err := c.client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return "", err
	}
	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return "", fmt.Errorf("unexpected sent code type: %T", sent)
	}
	return code.PhoneCodeHash, nil
}

func (c *gotdConn) SignIn(ctx context.Context, phone, code, codeHash string) error {
	if _, err := c.client.Auth().SignIn(ctx, phone, code, codeHash); err != nil {
		if errors.Is(err, auth.ErrPasswordAuthNeeded) {
			return ErrPasswordNeeded
		}
		return err
	}
	return nil
}

func (c *gotdConn) ExportSession(ctx context.Context) ([]byte, error) {
	data, err := c.storage.LoadSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return data, nil
}

func (c *gotdConn) ResolvePhone(ctx context.Context, phone string) (domain.Member, error) {
	imported, err := c.client.API().ContactsImportContacts(ctx, []tg.InputPhoneContact{{
		ClientID:  1,
		Phone:     phone,
		FirstName: phone,
	}})
	if err != nil {
		return domain.Member{}, err
	}
	for _, u := range imported.Users {
		user, ok := u.(*tg.User)
		if !ok {
			continue
		}
		return domain.Member{
			Phone:      phone,
			UserID:     user.ID,
			AccessHash: user.AccessHash,
		}, nil
	}
	return domain.Member{}, fmt.Errorf("no telegram account found for %s", phone)
}

func (c *gotdConn) CreateGroup(ctx context.Context, title string, members []domain.Member) (domain.Group, error) {
	users := make([]tg.InputUserClass, 0, len(members))
	for _, m := range members {
		users = append(users, &tg.InputUser{UserID: m.UserID, AccessHash: m.AccessHash})
	}

	invited, err := c.client.API().MessagesCreateChat(ctx, &tg.MessagesCreateChatRequest{
		Users: users,
		Title: title,
	})
	if err != nil {
		return domain.Group{}, err
	}

	group, ok := groupFromUpdates(invited.Updates)
	if !ok {
		return domain.Group{}, fmt.Errorf("created chat missing from updates: %T", invited.Updates)
	}
	return group, nil
}

func (c *gotdConn) SetGroupPhoto(ctx context.Context, chatID int64, photo []byte) error {
	file, err := uploader.NewUploader(c.client.API()).FromBytes(ctx, "group.jpg", photo)
	if err != nil {
		return fmt.Errorf("upload photo: %w", err)
	}
	uploaded := &tg.InputChatUploadedPhoto{}
	uploaded.SetFile(file)
	if _, err := c.client.API().MessagesEditChatPhoto(ctx, &tg.MessagesEditChatPhotoRequest{
		ChatID: chatID,
		Photo:  uploaded,
	}); err != nil {
		return fmt.Errorf("edit chat photo: %w", err)
	}
	return nil
}

// Close stops the background run loop and waits for it to exit.
func (c *gotdConn) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		err := <-c.done
		if err != nil && !errors.Is(err, context.Canceled) {
			c.closeErr = err
		}
	})
	return c.closeErr
}

// groupFromUpdates digs the created chat out of the updates returned by
// messages.createChat.
func groupFromUpdates(u tg.UpdatesClass) (domain.Group, bool) {
	var chats []tg.ChatClass
	switch upd := u.(type) {
	case *tg.Updates:
		chats = upd.Chats
	case *tg.UpdatesCombined:
		chats = upd.Chats
	default:
		return domain.Group{}, false
	}
	for _, ch := range chats {
		if chat, ok := ch.(*tg.Chat); ok {
			return domain.Group{ID: chat.ID, Title: chat.Title}, true
		}
	}
	return domain.Group{}, false
}
