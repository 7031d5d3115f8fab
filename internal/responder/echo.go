package responder

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Echo answers without a model: it restates the question and lists the
// entries it was given, one word per chunk.
type Echo struct {
	delay time.Duration
}

func NewEcho(delay time.Duration) *Echo {
	return &Echo{delay: delay}
}

func (e *Echo) Stream(ctx context.Context, req Request) (Stream, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You asked: %s", strings.TrimSpace(req.Question))
	if len(req.Context) > 0 {
		titles := make([]string, len(req.Context))
		for i, entry := range req.Context {
			titles[i] = entry.Title
		}
		fmt.Fprintf(&sb, "\n\nRelated entries: %s.", strings.Join(titles, ", "))
	}
	return &echoStream{ctx: ctx, words: splitKeepSpace(sb.String()), delay: e.delay}, nil
}

type echoStream struct {
	ctx   context.Context
	words []string
	delay time.Duration
	next  int
}

func (s *echoStream) Recv() (string, error) {
	if s.next >= len(s.words) {
		return "", io.EOF
	}
	if s.delay > 0 && s.next > 0 {
		t := time.NewTimer(s.delay)
		select {
		case <-t.C:
		case <-s.ctx.Done():
			t.Stop()
			return "", s.ctx.Err()
		}
	} else if err := s.ctx.Err(); err != nil {
		return "", err
	}
	w := s.words[s.next]
	s.next++
	return w, nil
}

func (s *echoStream) Close() error {
	s.next = len(s.words)
	return nil
}

// splitKeepSpace splits after each run of whitespace so the pieces join back
// to the input.
func splitKeepSpace(text string) []string {
	var out []string
	start := 0
	inSpace := false
	for i, r := range text {
		space := r == ' ' || r == '\n' || r == '\t'
		if inSpace && !space {
			out = append(out, text[start:i])
			start = i
		}
		inSpace = space
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}
