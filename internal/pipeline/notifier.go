package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/caracol-labs/salesmachine/pkg/telegram"
)

// Notifier is the outbound port to the messaging front-end. Every terminal
// stage outcome results in exactly one Notify call to the requester.
type Notifier interface {
	Notify(ctx context.Context, requesterID, text string) error
	// SendDecisionPreview posts the preview with ENRICH/DISCARD buttons and
	// returns a reference to the sent message for later edits.
	SendDecisionPreview(ctx context.Context, requesterID, text, domain string) (int64, error)
	EditMessage(ctx context.Context, requesterID string, messageRef int64, text string) error
}

// TelegramNotifier implements Notifier on the Bot API.
type TelegramNotifier struct {
	client telegram.Client
}

// NewTelegramNotifier creates a TelegramNotifier.
func NewTelegramNotifier(client telegram.Client) *TelegramNotifier {
	return &TelegramNotifier{client: client}
}

func (n *TelegramNotifier) Notify(ctx context.Context, requesterID, text string) error {
	_, err := n.client.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID: requesterID,
		Text:   text,
	})
	if err != nil {
		return eris.Wrap(err, "pipeline: send notification")
	}
	return nil
}

func (n *TelegramNotifier) SendDecisionPreview(ctx context.Context, requesterID, text, domain string) (int64, error) {
	msg, err := n.client.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID: requesterID,
		Text:   text,
		ReplyMarkup: &telegram.InlineKeyboardMarkup{
			InlineKeyboard: [][]telegram.InlineKeyboardButton{
				{
					{Text: "ENRIQUECER", CallbackData: "enrich:" + domain},
					{Text: "DESCARTAR", CallbackData: "discard:" + domain},
				},
			},
		},
	})
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: send preview")
	}
	return msg.MessageID, nil
}

func (n *TelegramNotifier) EditMessage(ctx context.Context, requesterID string, messageRef int64, text string) error {
	err := n.client.EditMessageText(ctx, telegram.EditMessageTextRequest{
		ChatID:    requesterID,
		MessageID: messageRef,
		Text:      text,
	})
	if err != nil {
		return eris.Wrap(err, "pipeline: edit preview")
	}
	return nil
}

// ParseCallback decodes the callback data attached to a preview button.
// Returns an empty action for data that is not a decision callback.
func ParseCallback(data string) (action, domain string) {
	verb, domain, ok := strings.Cut(data, ":")
	if !ok || domain == "" {
		return "", ""
	}
	switch verb {
	case "enrich":
		return ActionEnrich, domain
	case "discard":
		return ActionDiscard, domain
	default:
		return "", ""
	}
}
