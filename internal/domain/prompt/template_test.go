package prompt

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/kailas-cloud/kongrag/internal/domain"
)

func TestRAG_Format(t *testing.T) {
	msgs, err := RAG.Format(map[string]string{
		VarContext:  "孔乙己一到店，所有喝酒的人便都看着他笑",
		VarQuestion: "茴香豆是做什么用的",
	})
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != domain.RoleSystem || msgs[1].Role != domain.RoleUser {
		t.Fatalf("unexpected roles: %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if !strings.Contains(msgs[0].Content, Abstention) {
		t.Error("system message must carry the abstention policy")
	}
	if !strings.Contains(msgs[1].Content, "孔乙己一到店") {
		t.Error("context not interpolated")
	}
	if !strings.Contains(msgs[1].Content, "回答以下问题：\n茴香豆是做什么用的") {
		t.Errorf("question not interpolated: %q", msgs[1].Content)
	}
	if strings.Contains(msgs[1].Content, "{") {
		t.Errorf("unrendered placeholder left: %q", msgs[1].Content)
	}
}

func TestRAG_EmptyContext(t *testing.T) {
	msgs, err := RAG.Format(map[string]string{VarContext: "", VarQuestion: "q"})
	if err != nil {
		t.Fatalf("empty context must still format: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
}

func TestFormat_MissingField(t *testing.T) {
	_, err := RAG.Format(map[string]string{VarContext: "ctx"})
	if !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
	var mf *domain.MissingFieldError
	if !errors.As(err, &mf) || mf.Field != VarQuestion {
		t.Fatalf("expected missing %q, got %v", VarQuestion, err)
	}
}

func TestFormat_Pure(t *testing.T) {
	vars := map[string]string{VarTone: "严肃", VarTopic: "猫"}
	a, err := Joke.Format(vars)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Joke.Format(vars)
	if !slices.Equal(a, b) {
		t.Error("Format is not deterministic")
	}
	if a[0].Content != "你是一个非常有趣的 AI，会用非常严肃的口吻讲笑话" {
		t.Errorf("system = %q", a[0].Content)
	}
	if a[1].Content != "讲个关于猫的笑话" {
		t.Errorf("user = %q", a[1].Content)
	}
}

func TestFormat_Braces(t *testing.T) {
	tmpl := New(User(`{{"a": {x}}} {not closed {1bad}`))
	msgs, err := tmpl.Format(map[string]string{"x": "1"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"a": 1} {not closed {1bad}`
	if msgs[0].Content != want {
		t.Errorf("got %q, want %q", msgs[0].Content, want)
	}
}

func TestVariables(t *testing.T) {
	got := ReAct.Variables()
	want := []string{VarTools, VarToolNames, VarInput, VarScratchpad}
	if !slices.Equal(got, want) {
		t.Errorf("Variables() = %v, want %v", got, want)
	}
	if got := RAG.Variables(); !slices.Equal(got, []string{VarContext, VarQuestion}) {
		t.Errorf("RAG.Variables() = %v", got)
	}
}

func TestNew_CopiesParts(t *testing.T) {
	parts := []Part{User("{a}")}
	tmpl := New(parts...)
	parts[0].Text = "changed"
	msgs, err := tmpl.Format(map[string]string{"a": "ok"})
	if err != nil || msgs[0].Content != "ok" {
		t.Fatalf("template shares caller slice: %v %v", msgs, err)
	}
}
