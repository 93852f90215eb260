package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hyperjump/kiku/internal/chat"
	"github.com/hyperjump/kiku/internal/cli"
	"github.com/hyperjump/kiku/internal/models"
)

// repl runs an interactive conversation over a chat session.
type repl struct {
	session     *chat.Session
	format      cli.OutputFormat
	width       int
	showSources bool
	prompt      bool
	out         io.Writer
	errOut      io.Writer
}

// run reads lines from in until EOF, /exit, or ctx is done.
func (r *repl) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if r.prompt {
		fmt.Fprintln(r.out, "Ask anything. /help lists commands.")
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.prompt {
			fmt.Fprint(r.out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := r.command(line); quit {
				return nil
			}
			continue
		}
		r.ask(ctx, line)
	}
}

func (r *repl) ask(ctx context.Context, query string) {
	conv, err := r.session.Ask(ctx, query)
	if err != nil {
		fmt.Fprintf(r.errOut, "error: %v\n", err)
		return
	}
	if conv == nil {
		return
	}
	if msg := r.session.Err(); msg != "" {
		fmt.Fprintln(r.errOut, msg)
	}
	last := conv.Messages[len(conv.Messages)-1]
	if last.Type != models.MessageAI {
		return
	}
	result := models.NewSearchResult(last.Content, last.Sources)
	_ = cli.NewWriter(r.format, r.showSources, r.width).WriteAnswer(r.out, &result)
}

// command handles a slash command and reports whether the REPL should stop.
func (r *repl) command(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/exit", "/quit":
		return true
	case "/new":
		r.session.ClearActive()
		fmt.Fprintln(r.out, "Started a new conversation.")
	case "/list":
		cli.WriteConversations(r.out, r.session.Conversations(), r.session.ActiveID())
	case "/open":
		conv, ok := r.pick(fields)
		if !ok {
			return false
		}
		_ = r.session.Select(conv.ID)
		fmt.Fprintf(r.out, "Continuing %q.\n", conv.Title)
		r.replay(conv)
	case "/delete":
		conv, ok := r.pick(fields)
		if !ok {
			return false
		}
		r.session.Delete(conv.ID)
		fmt.Fprintf(r.out, "Deleted %q.\n", conv.Title)
	case "/sources":
		r.showSources = !r.showSources
		fmt.Fprintf(r.out, "Sources %s.\n", onOff(r.showSources))
	case "/help":
		fmt.Fprintln(r.out, "/new  /list  /open N  /delete N  /sources  /exit")
	default:
		fmt.Fprintf(r.errOut, "unknown command %s; /help lists commands\n", fields[0])
	}
	return false
}

// pick resolves the 1-based index argument of /open and /delete against /list order.
func (r *repl) pick(fields []string) (models.Conversation, bool) {
	convs := r.session.Conversations()
	if len(fields) != 2 {
		fmt.Fprintf(r.errOut, "usage: %s N\n", fields[0])
		return models.Conversation{}, false
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 1 || n > len(convs) {
		fmt.Fprintf(r.errOut, "no conversation %s; /list shows %d\n", fields[1], len(convs))
		return models.Conversation{}, false
	}
	return convs[n-1], true
}

func (r *repl) replay(conv models.Conversation) {
	for _, m := range conv.Messages {
		if m.Type == models.MessageUser {
			fmt.Fprintf(r.out, "> %s\n", m.Content)
			continue
		}
		fmt.Fprintln(r.out, m.Content)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
