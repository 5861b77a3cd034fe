// Package parser extracts file writes and shell commands from free-form model
// output. Models do not reliably follow one format, so extraction tries several
// strategies in priority order and keeps the first that yields at least one file.
package parser

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"forge/internal/security"
)

// FileWrite is a single extracted (path, content) pair.
type FileWrite struct {
	Path    string
	Content string
}

// CommandKind distinguishes a blocking run from a non-blocking background spawn.
type CommandKind int

const (
	Foreground CommandKind = iota
	Background
)

func (k CommandKind) String() string {
	if k == Background {
		return "background"
	}
	return "foreground"
}

// ShellCommand is a single extracted command block.
type ShellCommand struct {
	Kind    CommandKind
	Command string
}

// Rejected records a block that was recognized but dropped, with the reason.
type Rejected struct {
	Value  string // the path or command that was rejected
	Reason string
}

// Result is the output of Parse: the extracted file writes and shell commands,
// anything dropped by the safety/path filters, and the remaining display text
// with every recognized block removed.
type Result struct {
	Files          []FileWrite
	Commands       []ShellCommand
	RejectedFiles  []Rejected
	RejectedCmds   []Rejected
	DisplayText    string
	StrategyNumber int // which of the four file strategies won, 0 if none matched
}

// span is a byte range in the original text, used to compute DisplayText.
type span struct{ start, end int }

// commandValidator is the parser's safety gate for ===RUN:===/===BACKGROUND:===
// blocks, adapted from the bash-tool's pre-flight validator with the narrower
// exact list the wire-format contract names explicitly.
var commandValidator = newParserCommandValidator()

func newParserCommandValidator() *security.CommandValidator {
	cv := security.NewCommandValidator()
	cv.AddBlockedSubstring("sudo rm")
	cv.AddBlockedSubstring("dd if=")
	return cv
}

var (
	strictMarkerRe = regexp.MustCompile(`(?s)===FILE:\s*(.+?)\s*===\r?\n(.*?)\r?\n===END===\r?\n?`)

	// Marker immediately followed by a fenced block; the closing fence ends the body.
	markerFencedRe = regexp.MustCompile("(?s)===FILE:\\s*(.+?)\\s*===\\r?\\n```[^\\n]*\\r?\\n(.*?)\\r?\\n```\\r?\\n?")

	// Markdown heading or bold-only line naming a path, followed by a fenced block.
	headingFencedRe = regexp.MustCompile("(?ms)^(?:#{1,6}\\s+|\\*\\*)([^\\n*]+?)(?:\\*\\*)?\\s*$\\r?\\n+```[^\\n]*\\r?\\n(.*?)\\r?\\n```\\r?\\n?")

	// Marker with no terminator: raw content runs to the next marker or end of text.
	// Go's regexp engine (RE2) has no lookahead, so the "next marker" boundary is
	// found by locating header matches and slicing between them, not by the regex.
	markerHeaderRe = regexp.MustCompile(`===FILE:\s*(.+?)\s*===\r?\n`)

	runRe        = regexp.MustCompile(`(?m)===RUN:\s*(.+?)\s*===`)
	backgroundRe = regexp.MustCompile(`(?m)===BACKGROUND:\s*(.+?)\s*===`)

	leadingFenceRe  = regexp.MustCompile(`^` + "```" + `(\w*)[ \t]*\r?\n`)
	trailingFenceRe = regexp.MustCompile(`\r?\n` + "```" + `\s*$`)
)

// fenceStrippableLangs is the set of language tags whose fences get stripped
// from a file body after extraction, per the wire-format contract.
var fenceStrippableLangs = map[string]bool{
	"json": true, "javascript": true, "python": true, "typescript": true, "bash": true, "": true,
}

// Parse implements parse(text) -> (file-writes, shell-commands, display-text).
func Parse(text string) Result {
	files, spans, strategyNum := extractFiles(text)

	cmds, rejectedCmds, cmdSpans := extractCommands(text)

	safeFiles, rejectedFiles := filterPaths(files)

	allSpans := append(spans, cmdSpans...)
	display := removeSpans(text, allSpans)

	return Result{
		Files:          safeFiles,
		Commands:       cmds,
		RejectedFiles:  rejectedFiles,
		RejectedCmds:   rejectedCmds,
		DisplayText:    display,
		StrategyNumber: strategyNum,
	}
}

// extractFiles tries the four strategies in order, keeping the first that
// yields at least one file-write.
func extractFiles(text string) ([]FileWrite, []span, int) {
	type strategy struct {
		number int
		run    func(string) ([]FileWrite, []span)
	}
	strategies := []strategy{
		{1, extractStrictMarkers},
		{2, extractMarkerFenced},
		{3, extractHeadingFenced},
		{4, extractMarkerNoEnd},
	}
	for _, s := range strategies {
		files, spans := s.run(text)
		if len(files) > 0 {
			return files, spans, s.number
		}
	}
	return nil, nil, 0
}

func extractStrictMarkers(text string) ([]FileWrite, []span) {
	matches := strictMarkerRe.FindAllStringSubmatchIndex(text, -1)
	var files []FileWrite
	var spans []span
	for _, m := range matches {
		path := text[m[2]:m[3]]
		body := text[m[4]:m[5]]
		files = append(files, FileWrite{Path: path, Content: ensureTrailingNewline(stripFence(body))})
		spans = append(spans, span{m[0], m[1]})
	}
	return files, spans
}

func extractMarkerFenced(text string) ([]FileWrite, []span) {
	matches := markerFencedRe.FindAllStringSubmatchIndex(text, -1)
	var files []FileWrite
	var spans []span
	for _, m := range matches {
		path := text[m[2]:m[3]]
		body := text[m[4]:m[5]]
		files = append(files, FileWrite{Path: path, Content: ensureTrailingNewline(body)})
		spans = append(spans, span{m[0], m[1]})
	}
	return files, spans
}

func extractHeadingFenced(text string) ([]FileWrite, []span) {
	matches := headingFencedRe.FindAllStringSubmatchIndex(text, -1)
	var files []FileWrite
	var spans []span
	for _, m := range matches {
		heading := strings.TrimSpace(text[m[2]:m[3]])
		if !looksLikePath(heading) {
			continue
		}
		body := text[m[4]:m[5]]
		files = append(files, FileWrite{Path: heading, Content: ensureTrailingNewline(body)})
		spans = append(spans, span{m[0], m[1]})
	}
	return files, spans
}

func extractMarkerNoEnd(text string) ([]FileWrite, []span) {
	headers := markerHeaderRe.FindAllStringSubmatchIndex(text, -1)
	var files []FileWrite
	var spans []span
	for i, m := range headers {
		path := text[m[2]:m[3]]
		bodyStart := m[1]
		bodyEnd := len(text)
		if i+1 < len(headers) {
			bodyEnd = headers[i+1][0]
		}
		body := strings.TrimSuffix(text[bodyStart:bodyEnd], "\n")
		body = strings.TrimSuffix(body, "\r")
		files = append(files, FileWrite{Path: path, Content: ensureTrailingNewline(stripFence(body))})
		spans = append(spans, span{m[0], bodyEnd})
	}
	return files, spans
}

// looksLikePath rejects prose lines that happen to be bold/headed but aren't a
// file path: no spaces, and either an extension or a path separator.
func looksLikePath(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t") {
		return false
	}
	return strings.Contains(s, "/") || strings.Contains(s, ".")
}

// stripFence removes a leading fenced-code-block opener and its matching
// closer when the language tag is one the wire format allows stripping.
func stripFence(body string) string {
	m := leadingFenceRe.FindStringSubmatchIndex(body)
	if m == nil {
		return body
	}
	lang := strings.ToLower(body[m[2]:m[3]])
	if !fenceStrippableLangs[lang] {
		return body
	}
	rest := body[m[1]:]
	rest = trailingFenceRe.ReplaceAllString(rest, "")
	return ensureTrailingNewline(rest)
}

func ensureTrailingNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// extractCommands finds ===RUN:===/===BACKGROUND:=== blocks independently of
// whichever file strategy won, and runs every match through the safety filter.
func extractCommands(text string) ([]ShellCommand, []Rejected, []span) {
	var cmds []ShellCommand
	var rejected []Rejected
	var spans []span

	for _, m := range runRe.FindAllStringSubmatchIndex(text, -1) {
		cmd := text[m[2]:m[3]]
		spans = append(spans, span{m[0], m[1]})
		if ok, reason := checkCommand(cmd); !ok {
			rejected = append(rejected, Rejected{Value: cmd, Reason: reason})
			continue
		}
		cmds = append(cmds, ShellCommand{Kind: Foreground, Command: cmd})
	}
	for _, m := range backgroundRe.FindAllStringSubmatchIndex(text, -1) {
		cmd := text[m[2]:m[3]]
		spans = append(spans, span{m[0], m[1]})
		if ok, reason := checkCommand(cmd); !ok {
			rejected = append(rejected, Rejected{Value: cmd, Reason: reason})
			continue
		}
		cmds = append(cmds, ShellCommand{Kind: Background, Command: cmd})
	}
	return cmds, rejected, spans
}

func checkCommand(cmd string) (bool, string) {
	result := commandValidator.Validate(cmd)
	if !result.Valid {
		return false, result.Reason
	}
	return true, ""
}

// filterPaths drops any file-write whose path would escape the workspace root
// once joined and cleaned — a lexical pre-filter; the on-disk write path still
// runs the full symlink-aware security.PathValidator before touching the
// filesystem.
func filterPaths(files []FileWrite) ([]FileWrite, []Rejected) {
	var safe []FileWrite
	var rejected []Rejected
	for _, f := range files {
		if f.Path == "" {
			rejected = append(rejected, Rejected{Value: f.Path, Reason: "empty path"})
			continue
		}
		clean := filepath.Clean(f.Path)
		if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			rejected = append(rejected, Rejected{Value: f.Path, Reason: fmt.Sprintf("path %q escapes the workspace root", f.Path)})
			continue
		}
		safe = append(safe, FileWrite{Path: clean, Content: f.Content})
	}
	return safe, rejected
}

// removeSpans returns text with every byte range in spans deleted, producing
// the display-text the contract requires.
func removeSpans(text string, spans []span) string {
	if len(spans) == 0 {
		return text
	}
	sortSpans(spans)
	var b strings.Builder
	last := 0
	for _, s := range spans {
		if s.start < last {
			continue // overlapping match from a losing strategy; ignore
		}
		b.WriteString(text[last:s.start])
		last = s.end
	}
	b.WriteString(text[last:])
	return strings.TrimSpace(b.String())
}

func sortSpans(spans []span) {
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].start < spans[j-1].start; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}
}
