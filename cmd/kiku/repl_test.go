package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/hyperjump/kiku/internal/chat"
	"github.com/hyperjump/kiku/internal/cli"
	"github.com/hyperjump/kiku/internal/models"
	"github.com/hyperjump/kiku/internal/search"
)

type echoSearcher struct{}

func (echoSearcher) Run(_ context.Context, q string) (*models.SearchResult, search.Outcome) {
	r := models.NewSearchResult("echo: "+q, []models.Source{{Title: "Echo", URL: "https://echo.example.com"}})
	return &r, search.OutcomeCompleted
}
func (echoSearcher) Busy() bool  { return false }
func (echoSearcher) Err() string { return "" }

func runScript(t *testing.T, script string) (*chat.Session, string, string) {
	t.Helper()
	sess := chat.NewSession(echoSearcher{})
	var out, errOut bytes.Buffer
	r := &repl{session: sess, format: cli.OutputText, width: 80, out: &out, errOut: &errOut}
	if err := r.run(context.Background(), strings.NewReader(script)); err != nil {
		t.Fatalf("run: %v", err)
	}
	return sess, out.String(), errOut.String()
}

func TestREPL_AsksAndContinues(t *testing.T) {
	sess, out, _ := runScript(t, "first\nsecond\n")
	if !strings.Contains(out, "echo: first") || !strings.Contains(out, "echo: second") {
		t.Errorf("out = %q", out)
	}
	convs := sess.Conversations()
	if len(convs) != 1 || convs[0].MessageCount != 4 {
		t.Errorf("conversations = %+v", convs)
	}
}

func TestREPL_NewStartsSecondConversation(t *testing.T) {
	sess, _, _ := runScript(t, "first\n/new\nsecond\n/exit\nignored\n")
	convs := sess.Conversations()
	if len(convs) != 2 {
		t.Fatalf("got %d conversations", len(convs))
	}
	if convs[0].Title != "second" || convs[1].Title != "first" {
		t.Errorf("order = %q, %q", convs[0].Title, convs[1].Title)
	}
}

func TestREPL_OpenAndDelete(t *testing.T) {
	sess, out, errOut := runScript(t, "a\n/new\nb\n/open 2\nmore\n/delete 2\n/open 9\n")
	if !strings.Contains(out, `Continuing "a"`) {
		t.Errorf("out = %q", out)
	}
	convs := sess.Conversations()
	if len(convs) != 1 || convs[0].Title != "a" || convs[0].MessageCount != 4 {
		t.Errorf("conversations = %+v", convs)
	}
	if !strings.Contains(errOut, "no conversation 9") {
		t.Errorf("errOut = %q", errOut)
	}
}

func TestREPL_SourcesToggle(t *testing.T) {
	_, out, _ := runScript(t, "q1\n/sources\nq2\n")
	first := strings.Index(out, "echo: q1")
	second := strings.Index(out, "echo: q2")
	if first < 0 || second < 0 {
		t.Fatalf("out = %q", out)
	}
	if strings.Contains(out[first:second], "Sources:") {
		t.Error("sources printed before toggle")
	}
	if !strings.Contains(out[second:], "[1] Echo <https://echo.example.com>") {
		t.Errorf("sources missing after toggle: %q", out[second:])
	}
}

func TestREPL_UnknownCommand(t *testing.T) {
	_, _, errOut := runScript(t, "/bogus\n")
	if !strings.Contains(errOut, "unknown command /bogus") {
		t.Errorf("errOut = %q", errOut)
	}
}
