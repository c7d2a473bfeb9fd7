// Package tsserver speaks the language-service plugin protocol: one JSON
// request per input line, framed responses and events on output. Requests
// at offsets inside embedded documents are answered by the editor surface,
// everything else is passed to the host Service.
package tsserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"gqlembed/internal/diag"
	"gqlembed/internal/editor"
)

// ErrExit signals a graceful shutdown after receiving "exit".
var ErrExit = errors.New("tsserver exit")

// errNoResponse marks commands that answer with events only.
var errNoResponse = errors.New("no response")

// Service is the host language service requests fall through to.
type Service interface {
	Completions(ctx context.Context, file string, off uint32) (*CompletionInfo, error)
	QuickInfo(ctx context.Context, file string, off uint32) (*QuickInfo, error)
}

// NopService answers nothing; it is used when no host service is attached.
type NopService struct{}

func (NopService) Completions(context.Context, string, uint32) (*CompletionInfo, error) {
	return nil, nil
}

func (NopService) QuickInfo(context.Context, string, uint32) (*QuickInfo, error) {
	return nil, nil
}

type handler func(ctx context.Context, req *Request) (any, error)

type Options struct {
	Host   Service
	Logger logrus.FieldLogger
	// ReadFile loads files opened without content. Defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)
}

type Server struct {
	in       *bufio.Reader
	out      *bufio.Writer
	sendMu   sync.Mutex
	seqMu    sync.Mutex
	seq      int
	surface  *editor.Surface
	host     Service
	log      logrus.FieldLogger
	readFile func(string) ([]byte, error)
	commands map[string]handler
}

func NewServer(in io.Reader, out io.Writer, surface *editor.Surface, opts Options) *Server {
	s := &Server{
		in:       bufio.NewReader(in),
		out:      bufio.NewWriter(out),
		surface:  surface,
		host:     opts.Host,
		log:      opts.Logger,
		readFile: opts.ReadFile,
	}
	if s.host == nil {
		s.host = NopService{}
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.readFile == nil {
		s.readFile = os.ReadFile
	}
	s.commands = map[string]handler{
		"open":           s.handleOpen,
		"change":         s.handleChange,
		"close":          s.handleClose,
		"geterr":         s.handleGeterr,
		"completions":    s.handleCompletions,
		"completionInfo": s.handleCompletions,
		"quickinfo":      s.handleQuickInfo,
		"reloadSchema":   s.handleReloadSchema,
	}
	return s
}

// Run serves requests until EOF or "exit".
func (s *Server) Run(ctx context.Context) error {
	for {
		line, err := s.in.ReadBytes('\n')
		if len(strings.TrimSpace(string(line))) > 0 {
			if herr := s.handleLine(ctx, line); herr != nil {
				return herr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte) error {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.log.WithError(err).Warn("failed to parse request")
		return nil
	}
	if req.Type != "request" {
		return nil
	}
	if req.Command == "exit" {
		return ErrExit
	}
	h, ok := s.commands[req.Command]
	if !ok {
		return s.respond(&req, nil, fmt.Errorf("unrecognized JSON command: %s", req.Command))
	}
	body, err := h(ctx, &req)
	if errors.Is(err, errNoResponse) {
		return nil
	}
	return s.respond(&req, body, err)
}

func decodeArgs(req *Request, dst any) error {
	if len(req.Arguments) == 0 {
		return fmt.Errorf("%s: missing arguments", req.Command)
	}
	if err := json.Unmarshal(req.Arguments, dst); err != nil {
		return fmt.Errorf("%s: invalid arguments: %w", req.Command, err)
	}
	return nil
}

func (s *Server) handleOpen(_ context.Context, req *Request) (any, error) {
	var args openArgs
	if err := decodeArgs(req, &args); err != nil {
		return nil, err
	}
	text := []byte(args.FileContent)
	if args.FileContent == "" {
		data, err := s.readFile(args.File)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", args.File, err)
		}
		text = data
	}
	s.surface.Open(args.File, text)
	return nil, nil
}

func (s *Server) handleChange(_ context.Context, req *Request) (any, error) {
	var args changeArgs
	if err := decodeArgs(req, &args); err != nil {
		return nil, err
	}
	text, ok := s.surface.Text(args.File)
	if !ok {
		return nil, fmt.Errorf("%w: %s", editor.ErrNotOpen, args.File)
	}
	edit := editor.TextEdit{
		Start: byteOffset(text, Location{Line: args.Line, Offset: args.Offset}),
		End:   byteOffset(text, Location{Line: args.EndLine, Offset: args.EndOffset}),
		Text:  args.InsertString,
	}
	return nil, s.surface.Change(args.File, []editor.TextEdit{edit}, 0)
}

func (s *Server) handleClose(_ context.Context, req *Request) (any, error) {
	var args fileArgs
	if err := decodeArgs(req, &args); err != nil {
		return nil, err
	}
	s.surface.Close(args.File)
	return nil, nil
}

// handleGeterr emits one semanticDiag event per file and then
// requestCompleted; the request itself gets no response. An empty file list
// means every open file.
func (s *Server) handleGeterr(ctx context.Context, req *Request) (any, error) {
	var args geterrArgs
	if err := decodeArgs(req, &args); err != nil {
		return nil, err
	}
	files := args.Files
	if len(files) == 0 {
		files = s.surface.OpenPaths()
	}
	for _, file := range files {
		ds, err := s.surface.Diagnostics(ctx, file)
		switch {
		case errors.Is(err, editor.ErrStale):
			// файл уже изменился; следующий geterr пересчитает
			s.log.WithField("file", file).Debug("diagnostics discarded as stale")
			continue
		case err != nil:
			s.log.WithError(err).WithField("file", file).Warn("diagnostics failed")
			continue
		}
		text, _ := s.surface.Text(file)
		if err := s.event("semanticDiag", diagnosticEventBody{File: file, Diagnostics: toProtocol(text, ds)}); err != nil {
			return nil, err
		}
		version, _ := s.surface.Version(file)
		s.log.WithFields(logrus.Fields{
			"file":    file,
			"version": version,
			"state":   s.surface.StateOf(file).String(),
			"count":   len(ds),
		}).Debug("diagnostics published")
	}
	if err := s.event("requestCompleted", requestCompletedBody{RequestSeq: req.Seq}); err != nil {
		return nil, err
	}
	return nil, errNoResponse
}

func (s *Server) handleCompletions(ctx context.Context, req *Request) (any, error) {
	var args fileLocationArgs
	if err := decodeArgs(req, &args); err != nil {
		return nil, err
	}
	text, ok := s.surface.Text(args.File)
	if !ok {
		return nil, fmt.Errorf("%w: %s", editor.ErrNotOpen, args.File)
	}
	off := byteOffset(text, Location{Line: args.Line, Offset: args.Offset})
	items, ok := s.surface.Completions(ctx, args.File, off)
	if !ok {
		info, err := s.host.Completions(ctx, args.File, off)
		if info == nil {
			return nil, err
		}
		return info, err
	}
	info := &CompletionInfo{Entries: make([]CompletionEntry, 0, len(items))}
	for i, it := range items {
		info.Entries = append(info.Entries, CompletionEntry{
			Name:     it.Name,
			Kind:     completionKind(it.Kind),
			SortText: fmt.Sprintf("%04d", i),
			Detail:   it.Detail,
		})
	}
	info.IsMemberCompletion = len(items) > 0 && items[0].Kind == editor.KindField
	return info, nil
}

func completionKind(k editor.CompletionKind) string {
	switch k {
	case editor.KindField:
		return "property"
	case editor.KindFragment:
		return "const"
	case editor.KindType:
		return "type"
	case editor.KindDirective:
		return "function"
	}
	return "keyword"
}

func (s *Server) handleQuickInfo(ctx context.Context, req *Request) (any, error) {
	var args fileLocationArgs
	if err := decodeArgs(req, &args); err != nil {
		return nil, err
	}
	text, ok := s.surface.Text(args.File)
	if !ok {
		return nil, fmt.Errorf("%w: %s", editor.ErrNotOpen, args.File)
	}
	off := byteOffset(text, Location{Line: args.Line, Offset: args.Offset})
	info, ok := s.surface.QuickInfo(ctx, args.File, off)
	if !ok {
		qi, err := s.host.QuickInfo(ctx, args.File, off)
		if qi == nil {
			return nil, err
		}
		return qi, err
	}
	return &QuickInfo{
		Kind:          "property",
		Start:         location(text, info.Span.Start),
		End:           location(text, info.Span.End),
		DisplayString: info.Text,
		Documentation: info.Doc,
	}, nil
}

func (s *Server) handleReloadSchema(ctx context.Context, _ *Request) (any, error) {
	return nil, s.surface.ReloadSchema(ctx)
}

func toProtocol(text []byte, ds []diag.Diagnostic) []Diagnostic {
	out := make([]Diagnostic, 0, len(ds))
	for _, d := range ds {
		pd := Diagnostic{
			Text:     d.Message,
			Code:     int(d.Code),
			Category: category(d.Severity),
			Source:   "gqlembed",
		}
		if d.IsProjectLevel() {
			pd.Start = Location{Line: 1, Offset: 1}
			pd.End = pd.Start
		} else {
			pd.Start = location(text, d.Primary.Start)
			pd.End = location(text, d.Primary.End)
		}
		out = append(out, pd)
	}
	return out
}

func category(sev diag.Severity) string {
	switch sev {
	case diag.SevError:
		return "error"
	case diag.SevWarning:
		return "warning"
	}
	return "suggestion"
}

func (s *Server) nextSeq() int {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.seq++
	return s.seq
}

func (s *Server) respond(req *Request, body any, err error) error {
	resp := Response{
		Seq:        s.nextSeq(),
		Type:       "response",
		Command:    req.Command,
		RequestSeq: req.Seq,
		Success:    err == nil,
		Body:       body,
	}
	if err != nil {
		resp.Message = err.Error()
		resp.Body = nil
		s.log.WithError(err).WithField("command", req.Command).Debug("request failed")
	}
	return s.send(resp)
}

func (s *Server) event(name string, body any) error {
	return s.send(Event{Seq: s.nextSeq(), Type: "event", Event: name, Body: body})
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}

// writeMessage frames payload the way tsserver writes to its host.
func writeMessage(w io.Writer, payload []byte) error {
	header := "Content-Length: " + strconv.Itoa(len(payload)+1) + "\r\n\r\n"
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
