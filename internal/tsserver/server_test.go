package tsserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"gqlembed/internal/editor"
	"gqlembed/internal/logging"
	"gqlembed/internal/schema"
)

const testSDL = `type Query {
  hello: String!
}
`

// readMessage reads one framed message written by writeMessage.
func readMessage(r *bufio.Reader) ([]byte, error) {
	length := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
			length = n
		}
	}
	if length < 0 {
		return nil, errors.New("missing Content-Length header")
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

type message struct {
	Seq        int             `json:"seq"`
	Type       string          `json:"type"`
	Command    string          `json:"command"`
	Event      string          `json:"event"`
	RequestSeq int             `json:"request_seq"`
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Body       json.RawMessage `json:"body"`
}

func readAll(t *testing.T, out []byte) []message {
	t.Helper()
	r := bufio.NewReader(bytes.NewReader(out))
	var msgs []message
	for {
		payload, err := readMessage(r)
		if errors.Is(err, io.EOF) {
			return msgs
		}
		if err != nil {
			t.Fatalf("read message: %v", err)
		}
		var m message
		if err := json.Unmarshal(payload, &m); err != nil {
			t.Fatalf("decode %s: %v", payload, err)
		}
		msgs = append(msgs, m)
	}
}

type fakeHost struct{ calls int }

func (h *fakeHost) Completions(context.Context, string, uint32) (*CompletionInfo, error) {
	h.calls++
	return &CompletionInfo{IsGlobalCompletion: true, Entries: []CompletionEntry{{Name: "console", Kind: "var"}}}, nil
}

func (h *fakeHost) QuickInfo(context.Context, string, uint32) (*QuickInfo, error) {
	h.calls++
	return nil, nil
}

func newTestSurface(t *testing.T) *editor.Surface {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.graphql")
	if err := os.WriteFile(path, []byte(testSDL), 0o600); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	mgr := schema.NewManager(schema.Config{File: path}, schema.WithLogger(logging.Discard()))
	s, err := editor.NewSurface(editor.Options{Schema: mgr, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("NewSurface: %v", err)
	}
	if err := s.LoadSchema(context.Background()); err != nil {
		t.Fatalf("LoadSchema: %v", err)
	}
	return s
}

func request(seq int, command string, args any) string {
	data, _ := json.Marshal(map[string]any{"seq": seq, "type": "request", "command": command, "arguments": args})
	return string(data) + "\n"
}

func TestSession(t *testing.T) {
	src := "const Q = gql`{ hello nope }`;\n"
	var in strings.Builder
	in.WriteString(request(1, "open", map[string]any{"file": "src/q.ts", "fileContent": src}))
	in.WriteString(request(2, "quickinfo", map[string]any{"file": "src/q.ts", "line": 1, "offset": 17}))
	in.WriteString(request(3, "completionInfo", map[string]any{"file": "src/q.ts", "line": 1, "offset": 19}))
	in.WriteString(request(4, "geterr", map[string]any{"files": []string{"src/q.ts"}}))
	in.WriteString(request(5, "definition", map[string]any{"file": "src/q.ts"}))
	in.WriteString(request(6, "exit", nil))
	in.WriteString(request(7, "open", map[string]any{"file": "src/unreached.ts", "fileContent": "x"}))

	var out bytes.Buffer
	srv := NewServer(strings.NewReader(in.String()), &out, newTestSurface(t), Options{Logger: logging.Discard()})
	if err := srv.Run(context.Background()); !errors.Is(err, ErrExit) {
		t.Fatalf("Run = %v, want ErrExit", err)
	}

	msgs := readAll(t, out.Bytes())
	if len(msgs) != 6 {
		t.Fatalf("got %d messages: %+v", len(msgs), msgs)
	}
	for i, m := range msgs {
		if m.Seq != i+1 {
			t.Fatalf("message %d has seq %d", i, m.Seq)
		}
	}
	if m := msgs[0]; m.Type != "response" || m.Command != "open" || m.RequestSeq != 1 || !m.Success {
		t.Fatalf("open response = %+v", m)
	}

	var qi QuickInfo
	if err := json.Unmarshal(msgs[1].Body, &qi); err != nil {
		t.Fatalf("decode quickinfo: %v", err)
	}
	if qi.DisplayString != "Query.hello: String!" || qi.Start != (Location{Line: 1, Offset: 17}) || qi.End != (Location{Line: 1, Offset: 22}) {
		t.Fatalf("quickinfo = %+v", qi)
	}

	var ci CompletionInfo
	if err := json.Unmarshal(msgs[2].Body, &ci); err != nil {
		t.Fatalf("decode completions: %v", err)
	}
	if msgs[2].Command != "completionInfo" || len(ci.Entries) != 1 || ci.Entries[0].Name != "hello" || !ci.IsMemberCompletion {
		t.Fatalf("completions = %+v", ci)
	}

	if m := msgs[3]; m.Type != "event" || m.Event != "semanticDiag" {
		t.Fatalf("expected semanticDiag, got %+v", m)
	}
	var diags diagnosticEventBody
	if err := json.Unmarshal(msgs[3].Body, &diags); err != nil {
		t.Fatalf("decode diagnostics: %v", err)
	}
	if len(diags.Diagnostics) != 1 {
		t.Fatalf("diagnostics = %+v", diags)
	}
	d := diags.Diagnostics[0]
	if d.Start != (Location{Line: 1, Offset: 23}) || d.Code != 3001 || d.Category != "error" {
		t.Fatalf("diagnostic = %+v", d)
	}
	if m := msgs[4]; m.Event != "requestCompleted" || !strings.Contains(string(m.Body), `"request_seq":4`) {
		t.Fatalf("expected requestCompleted for 4, got %+v", m)
	}
	if m := msgs[5]; m.Success || m.RequestSeq != 5 || !strings.Contains(m.Message, "definition") {
		t.Fatalf("unknown command response = %+v", m)
	}
}

func TestOutsideLiteralFallsThroughToHost(t *testing.T) {
	host := &fakeHost{}
	var in strings.Builder
	in.WriteString(request(1, "open", map[string]any{"file": "src/q.ts", "fileContent": "const Q = gql`{ hello }`;\n"}))
	in.WriteString(request(2, "completions", map[string]any{"file": "src/q.ts", "line": 1, "offset": 3}))
	in.WriteString(request(3, "quickinfo", map[string]any{"file": "src/q.ts", "line": 1, "offset": 3}))

	var out bytes.Buffer
	srv := NewServer(strings.NewReader(in.String()), &out, newTestSurface(t), Options{Host: host, Logger: logging.Discard()})
	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	msgs := readAll(t, out.Bytes())
	if len(msgs) != 3 || host.calls != 2 {
		t.Fatalf("messages = %d, host calls = %d", len(msgs), host.calls)
	}
	if !strings.Contains(string(msgs[1].Body), `"console"`) {
		t.Fatalf("host completions not forwarded: %s", msgs[1].Body)
	}
	if !msgs[2].Success || len(msgs[2].Body) != 0 {
		t.Fatalf("empty quickinfo = %+v", msgs[2])
	}
}

func TestChangeAndOpenFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "q.ts")
	if err := os.WriteFile(path, []byte("const Q = gql`{ hello }`;\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	surface := newTestSurface(t)
	var in strings.Builder
	in.WriteString(request(1, "open", map[string]any{"file": path}))
	in.WriteString(request(2, "change", map[string]any{"file": path, "line": 1, "offset": 17, "endLine": 1, "endOffset": 22, "insertString": "nope"}))
	in.WriteString(request(3, "change", map[string]any{"file": filepath.Join(dir, "missing.ts"), "line": 1, "offset": 1, "endLine": 1, "endOffset": 1}))

	var out bytes.Buffer
	srv := NewServer(strings.NewReader(in.String()), &out, surface, Options{Logger: logging.Discard()})
	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	msgs := readAll(t, out.Bytes())
	if len(msgs) != 3 || !msgs[0].Success || !msgs[1].Success || msgs[2].Success {
		t.Fatalf("responses = %+v", msgs)
	}
	text, _ := surface.Text(path)
	if string(text) != "const Q = gql`{ nope }`;\n" {
		t.Fatalf("text after change = %q", text)
	}
}

func TestLocationRoundTrip(t *testing.T) {
	text := []byte("a\n😀b\nc")
	tests := []struct {
		off uint32
		loc Location
	}{
		{0, Location{1, 1}},
		{2, Location{2, 1}},
		{6, Location{2, 3}},
		{8, Location{3, 1}},
	}
	for _, tt := range tests {
		if got := location(text, tt.off); got != tt.loc {
			t.Fatalf("location(%d) = %+v, want %+v", tt.off, got, tt.loc)
		}
		if got := byteOffset(text, tt.loc); got != tt.off {
			t.Fatalf("byteOffset(%+v) = %d, want %d", tt.loc, got, tt.off)
		}
	}
}

func TestGeterrWithoutFilesCoversOpenUnits(t *testing.T) {
	var in strings.Builder
	in.WriteString(request(1, "open", map[string]any{"file": "src/b.ts", "fileContent": "const B = gql`{ nope }`;\n"}))
	in.WriteString(request(2, "open", map[string]any{"file": "src/a.ts", "fileContent": "const A = gql`{ hello }`;\n"}))
	in.WriteString(request(3, "geterr", map[string]any{"files": []string{}}))

	var out bytes.Buffer
	srv := NewServer(strings.NewReader(in.String()), &out, newTestSurface(t), Options{Logger: logging.Discard()})
	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	msgs := readAll(t, out.Bytes())
	if len(msgs) != 5 {
		t.Fatalf("messages = %d, want 2 responses, 2 diag events and requestCompleted", len(msgs))
	}
	var first, second diagnosticEventBody
	if err := json.Unmarshal(msgs[2].Body, &first); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if err := json.Unmarshal(msgs[3].Body, &second); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if first.File != "src/a.ts" || len(first.Diagnostics) != 0 {
		t.Fatalf("first event = %+v", first)
	}
	if second.File != "src/b.ts" || len(second.Diagnostics) != 1 {
		t.Fatalf("second event = %+v", second)
	}
	if msgs[4].Event != "requestCompleted" {
		t.Fatalf("last message = %+v", msgs[4])
	}
}
