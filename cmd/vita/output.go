package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"vita-chat/internal/model"
	"vita-chat/internal/service"
	"vita-chat/internal/stream"
	"vita-chat/internal/transport"
)

var (
	userStyle  = color.New(color.FgGreen, color.Bold).SprintFunc()
	botStyle   = color.New(color.FgCyan, color.Bold).SprintFunc()
	titleStyle = color.New(color.Bold).SprintFunc()
	dimStyle   = color.New(color.Faint).SprintFunc()
	warnStyle  = color.New(color.FgYellow).SprintFunc()
	okStyle    = color.New(color.FgGreen).SprintFunc()
)

// describe turns err into the line shown to the user.
func describe(err error) string {
	switch {
	case errors.Is(err, transport.ErrUnauthenticated):
		return "not signed in or session expired, run `vita signin`"
	case errors.Is(err, stream.ErrStreamIdle):
		return "the assistant stopped responding, the reply is incomplete"
	case errors.Is(err, stream.ErrStreamClosed):
		return "the connection dropped before the reply finished"
	case errors.Is(err, service.ErrEmptyMessage):
		return "message is empty"
	}
	var apiErr *transport.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode != 0 {
			return fmt.Sprintf("%s (%d)", apiErr.Message, apiErr.StatusCode)
		}
		return apiErr.Message
	}
	return err.Error()
}

func newTable(w io.Writer, header ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	return tw
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func senderLabel(s model.Sender) string {
	if s == model.SenderUser {
		return userStyle("You:")
	}
	return botStyle("Vita:")
}

func printMessage(w io.Writer, m model.Message) {
	fmt.Fprintf(w, "%s %s\n", senderLabel(m.Sender), m.Content)
	printSources(w, m.SourceURLs)
}

func printSources(w io.Writer, urls []string) {
	if len(urls) == 0 {
		return
	}
	fmt.Fprintln(w, dimStyle("Sources:"))
	for i, u := range urls {
		fmt.Fprintf(w, "  %s %s\n", dimStyle(fmt.Sprintf("[%d]", i+1)), u)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
