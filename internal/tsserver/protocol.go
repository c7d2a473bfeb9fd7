package tsserver

import "encoding/json"

// Request is one line of input.
type Request struct {
	Seq       int             `json:"seq"`
	Type      string          `json:"type"`
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type Response struct {
	Seq        int    `json:"seq"`
	Type       string `json:"type"`
	Command    string `json:"command"`
	RequestSeq int    `json:"request_seq"`
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Body       any    `json:"body,omitempty"`
}

type Event struct {
	Seq   int    `json:"seq"`
	Type  string `json:"type"`
	Event string `json:"event"`
	Body  any    `json:"body,omitempty"`
}

// Location is a 1-based line and a 1-based UTF-16 column.
type Location struct {
	Line   int `json:"line"`
	Offset int `json:"offset"`
}

type fileArgs struct {
	File string `json:"file"`
}

type openArgs struct {
	File        string `json:"file"`
	FileContent string `json:"fileContent,omitempty"`
}

type changeArgs struct {
	File         string `json:"file"`
	Line         int    `json:"line"`
	Offset       int    `json:"offset"`
	EndLine      int    `json:"endLine"`
	EndOffset    int    `json:"endOffset"`
	InsertString string `json:"insertString"`
}

type fileLocationArgs struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Offset int    `json:"offset"`
}

type geterrArgs struct {
	Files []string `json:"files"`
	Delay int      `json:"delay,omitempty"`
}

type Diagnostic struct {
	Start    Location `json:"start"`
	End      Location `json:"end"`
	Text     string   `json:"text"`
	Code     int      `json:"code"`
	Category string   `json:"category"`
	Source   string   `json:"source"`
}

type diagnosticEventBody struct {
	File        string       `json:"file"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

type requestCompletedBody struct {
	RequestSeq int `json:"request_seq"`
}

type CompletionEntry struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	SortText string `json:"sortText"`
	Detail   string `json:"detail,omitempty"`
}

type CompletionInfo struct {
	IsGlobalCompletion      bool              `json:"isGlobalCompletion"`
	IsMemberCompletion      bool              `json:"isMemberCompletion"`
	IsNewIdentifierLocation bool              `json:"isNewIdentifierLocation"`
	Entries                 []CompletionEntry `json:"entries"`
}

type QuickInfo struct {
	Kind          string   `json:"kind"`
	KindModifiers string   `json:"kindModifiers"`
	Start         Location `json:"start"`
	End           Location `json:"end"`
	DisplayString string   `json:"displayString"`
	Documentation string   `json:"documentation"`
}
