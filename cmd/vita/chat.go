package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"vita-chat/internal/cache"
	"vita-chat/internal/model"
	"vita-chat/internal/service"
)

const historyTail = 10

func (a *app) chatCmd() *cobra.Command {
	var (
		fresh   bool
		message string
	)
	cmd := &cobra.Command{
		Use:   "chat [conversation-id]",
		Short: "Chat with the assistant",
		Long: `Open an interactive chat. Replies are printed as they stream in, followed
by the sources the assistant cited.

Without an id (or with --new) the first message starts a new conversation.
Type "/new" to start another one, "exit" to quit. Ctrl+C cancels the reply in
progress.

Examples:
  vita chat --new
  vita chat 3f2c...
  vita chat --new -m "Is ibuprofen safe with coffee?"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var convID string
			if len(args) == 1 && !fresh {
				convID = args[0]
				conv, err := a.svc.Conversations.FetchConversation(cmd.Context(), convID)
				if err != nil {
					return err
				}
				printHistory(a.out, conv)
			}

			session := &chatSession{app: a, conversationID: convID}
			if message != "" {
				return session.send(cmd.Context(), message)
			}
			return session.loop(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&fresh, "new", false, "start a new conversation")
	cmd.Flags().StringVarP(&message, "message", "m", "", "send one message and exit")
	return cmd
}

func printHistory(w io.Writer, conv *model.Conversation) {
	fmt.Fprintln(w, titleStyle(conv.Title))
	msgs := conv.Messages
	if len(msgs) > historyTail {
		fmt.Fprintln(w, dimStyle(fmt.Sprintf("... %d earlier messages", len(msgs)-historyTail)))
		msgs = msgs[len(msgs)-historyTail:]
	}
	for _, m := range msgs {
		printMessage(w, m)
	}
	fmt.Fprintln(w)
}

type chatSession struct {
	app            *app
	conversationID string
}

func (s *chatSession) loop(ctx context.Context) error {
	a := s.app
	fmt.Fprintln(a.out, dimStyle(`Type your message and press Enter. "/new" starts a new conversation, "exit" quits.`))
	for {
		fmt.Fprint(a.out, userStyle("You: "))
		line, err := a.readLine()
		if err != nil {
			fmt.Fprintln(a.out)
			return nil
		}
		text := strings.TrimSpace(line)
		switch strings.ToLower(text) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "/new":
			s.conversationID = ""
			fmt.Fprintln(a.out, dimStyle("Started a new conversation."))
			continue
		}

		if err := s.send(ctx, text); err != nil {
			fmt.Fprintln(a.errOut, warnStyle(describe(err)))
			if errors.Is(err, context.Canceled) {
				continue
			}
			if !a.svc.Session.Get().Authenticated() {
				return err
			}
		}
	}
}

// send posts one message and prints the reply while it streams.
func (s *chatSession) send(parent context.Context, text string) error {
	a := s.app
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	p := &streamPrinter{out: a.out, cache: a.svc.Cache, target: s.conversationID}
	unsubscribe := a.svc.Cache.Subscribe(p.onChange)
	defer unsubscribe()

	res, err := a.svc.Chat.SendMessage(ctx, text, s.conversationID, s.conversationID == "", service.SendOptions{
		OnNavigate: p.setTarget,
	})
	if res != nil {
		s.conversationID = res.ConversationID
	} else if id := p.targetID(); id != "" {
		s.conversationID = id
	}
	if err != nil {
		p.finish(nil)
		return err
	}

	var reply *model.Message
	for i := len(res.Messages) - 1; i >= 0; i-- {
		if res.Messages[i].Sender == model.SenderBot {
			reply = &res.Messages[i]
			break
		}
	}
	p.finish(reply)
	return nil
}

// streamPrinter writes the growing content of the in-flight reply of one
// conversation as cache notifications arrive.
type streamPrinter struct {
	out   io.Writer
	cache *cache.Cache

	mu        sync.Mutex
	target    string
	messageID string
	printed   string
}

func (p *streamPrinter) setTarget(id string) {
	p.mu.Lock()
	p.target = id
	p.mu.Unlock()
}

func (p *streamPrinter) targetID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

func (p *streamPrinter) onChange(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id == "" || id != p.target {
		return
	}
	tempID, ok := p.cache.StreamingMessageID(id)
	if !ok {
		return
	}
	conv, ok := p.cache.Get(id)
	if !ok {
		return
	}
	idx := conv.IndexOf(tempID)
	if idx < 0 {
		return
	}

	if p.messageID != tempID {
		p.messageID = tempID
		p.printed = ""
		fmt.Fprint(p.out, botStyle("Vita: "))
	}
	content := conv.Messages[idx].Content
	if strings.HasPrefix(content, p.printed) && len(content) > len(p.printed) {
		fmt.Fprint(p.out, content[len(p.printed):])
		p.printed = content
	}
}

// finish completes the printed reply with the confirmed message, which wins
// over what was streamed, and lists its sources.
func (p *streamPrinter) finish(final *model.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	started := p.messageID != ""
	if final == nil {
		if started {
			fmt.Fprintln(p.out)
		}
		return
	}

	switch {
	case !started:
		fmt.Fprintf(p.out, "%s%s", botStyle("Vita: "), final.Content)
	case strings.HasPrefix(final.Content, p.printed):
		fmt.Fprint(p.out, final.Content[len(p.printed):])
	default:
		fmt.Fprintf(p.out, "\n%s%s", botStyle("Vita: "), final.Content)
	}
	fmt.Fprintln(p.out)
	printSources(p.out, final.SourceURLs)
	fmt.Fprintln(p.out)
}
