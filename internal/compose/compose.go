package compose

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/thinkwright/tastebuddy-chat/internal/transport"
)

// ErrEmpty is returned for input that is blank after trimming.
var ErrEmpty = errors.New("compose: empty message")

type Sender interface {
	Submit(ctx context.Context, participantID, displayName, text string) (transport.Reply, error)
}

type Notifier interface {
	Notice(text string) string
}

// Identity supplies who is speaking at submit time. The display name can
// change while the client runs.
type Identity interface {
	ParticipantID() (string, error)
	DisplayName() string
}

// Controller submits composed messages. It never paints them: a sent
// message shows up once the next sync sees it in the shared log.
type Controller struct {
	sender   Sender
	notifier Notifier
	who      Identity
	logger   *slog.Logger
}

func New(sender Sender, notifier Notifier, who Identity, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{sender: sender, notifier: notifier, who: who, logger: logger}
}

func (c *Controller) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmpty
	}

	id, err := c.who.ParticipantID()
	if err != nil {
		c.fail(err)
		return err
	}
	name := c.who.DisplayName()

	reply, err := c.sender.Submit(ctx, id, name, text)
	if errors.Is(err, transport.ErrUndecodedReply) {
		c.logger.Debug("message sent, reply ignored", "name", name, "error", err)
		return nil
	}
	if err != nil {
		c.fail(err)
		return err
	}
	c.logger.Debug("message sent",
		"name", name,
		"reply_len", len(reply.Text),
		"venues", len(reply.Recommendations),
	)
	return nil
}

func (c *Controller) fail(err error) {
	c.logger.Warn("send failed", "error", err)
	if c.notifier != nil {
		c.notifier.Notice("Send failed: " + transport.Describe(err))
	}
}
