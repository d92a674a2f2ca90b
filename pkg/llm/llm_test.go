package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sampleContexts() []Context {
	return []Context{
		{Text: "First chunk.", DocID: "a", Position: 0, Score: 0.9},
		{Text: "Second chunk.", DocID: "a", Position: 1, Score: 0.7},
	}
}

func TestBuildPrompt_NumbersContextsInRankOrder(t *testing.T) {
	prompt := BuildPrompt("what is this?", sampleContexts())
	doc1 := strings.Index(prompt, "Doc 1: First chunk.")
	doc2 := strings.Index(prompt, "Doc 2: Second chunk.")
	if doc1 == -1 || doc2 == -1 {
		t.Fatalf("missing numbered contexts in prompt:\n%s", prompt)
	}
	if doc1 > doc2 {
		t.Error("contexts out of rank order")
	}
	if !strings.Contains(prompt, "Question: what is this?") {
		t.Error("missing question")
	}
}

func TestMock_Generate(t *testing.T) {
	long := Context{Text: strings.Repeat("x", 150)}
	out, err := Mock{}.Generate(context.Background(), "hello?", []Context{long})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(out, "Your question was: hello?") {
		t.Error("missing question echo")
	}
	if !strings.Contains(out, strings.Repeat("x", 100)+"...") {
		t.Error("long context not truncated to preview")
	}
}

func TestOllamaGenerator_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaGenerateReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected stream=false")
		}
		if !strings.Contains(req.Prompt, "Doc 1: First chunk.") {
			t.Error("prompt missing contexts")
		}
		w.Write([]byte(`{"response":"an answer [Doc 1]"}`))
	}))
	defer srv.Close()

	g := NewOllamaGenerator(srv.URL, "llama3")
	out, err := g.Generate(context.Background(), "q", sampleContexts())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "an answer [Doc 1]" {
		t.Errorf("got %q", out)
	}
}

func TestOllamaGenerator_Unreachable(t *testing.T) {
	g := NewOllamaGenerator("http://127.0.0.1:1", "llama3")
	if _, err := g.Generate(context.Background(), "q", nil); err == nil {
		t.Fatal("expected error for unreachable endpoint")
	}
}
