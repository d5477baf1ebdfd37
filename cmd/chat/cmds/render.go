package cmds

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/charmbracelet/glamour"
	"github.com/creastat/chat"
	"github.com/creastat/chat/events"
	"github.com/rs/zerolog/log"
)

// renderTurn formats one turn as markdown with a role header.
func renderTurn(turn chat.ViewTurn, style string) (string, error) {
	body := turn.Body
	if !turn.HasContent {
		body = "_no answer_"
	}

	styled, err := glamour.Render(body, style)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\n%s", turn.Role, strings.TrimRight(styled, "\n")), nil
}

// renderer prints the anchored turn of every transcript change it receives and
// signals on rendered once the output is written.
type renderer struct {
	out      io.Writer
	style    string
	rendered chan struct{}
}

func newRenderer(out io.Writer, style string) *renderer {
	return &renderer{
		out:      out,
		style:    style,
		rendered: make(chan struct{}, 1),
	}
}

func (r *renderer) run(ctx context.Context, messages <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			r.handle(msg)
			msg.Ack()
			select {
			case r.rendered <- struct{}{}:
			default:
			}
		}
	}
}

// drain discards a signal left by a render that finished after its wait timed out.
func (r *renderer) drain() {
	select {
	case <-r.rendered:
	default:
	}
}

func (r *renderer) handle(msg *message.Message) {
	e, err := events.Decode(msg)
	if err != nil {
		log.Error().Err(err).Msg("Dropping undecodable transcript change")
		return
	}

	if e.Greeting != "" {
		_, _ = fmt.Fprintln(r.out, e.Greeting)
		return
	}

	anchor, ok := e.Anchor()
	if !ok {
		return
	}
	out, err := renderTurn(anchor, r.style)
	if err != nil {
		log.Warn().Err(err).Str("style", r.style).Msg("Markdown rendering failed, printing raw text")
		out = fmt.Sprintf("%s\n%s", anchor.Role, anchor.Body)
	}
	_, _ = fmt.Fprintln(r.out, out)
}

// renderHistory prints every turn of a resumed transcript.
func renderHistory(out io.Writer, turns []chat.ViewTurn, style string) {
	for _, turn := range turns {
		s, err := renderTurn(turn, style)
		if err != nil {
			s = turn.Body
		}
		_, _ = fmt.Fprintln(out, s)
	}
}
