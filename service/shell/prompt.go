package shell

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	markerOpen  = "###"
	markerClose = "###"
)

// prompt implements the completion-sentinel protocol. The session configures
// bash to print, after every command, a line of the form
//
//	###<token>:<exit-code>:<cwd>###
//
// where token is unique per session so that program output cannot forge a
// boundary. Exit code and working directory ride along in the prompt itself,
// which saves a second round-trip after each command.
type prompt struct {
	token string
}

func newPrompt(token string) *prompt {
	return &prompt{token: token}
}

// ps1 returns the PS1 value installed in the shell. $? and $PWD are expanded
// by bash on every prompt (promptvars is on by default); the leading \n keeps
// the sentinel on its own line regardless of how the command's output ended.
func (p *prompt) ps1() string {
	return `\n` + markerOpen + p.token + `:$?:$PWD` + markerClose + `\n`
}

// setupCommand is the first command written to a fresh shell. PS2 and
// PROMPT_COMMAND are cleared so that only the PS1 sentinel ever reaches the
// output stream.
func (p *prompt) setupCommand() string {
	return fmt.Sprintf("export PS1='%s' PS2='' PROMPT_COMMAND=''", p.ps1())
}

// completion is one parsed sentinel occurrence.
type completion struct {
	exitCode int
	cwd      string
}

// scan searches data for the first complete, valid sentinel. Candidates whose
// exit-code slot does not parse (e.g. the terminal echo of the PS1 export
// before echo is switched off) are skipped. On a match it returns the output
// preceding the sentinel, the parsed completion and the residual bytes
// following it.
func (p *prompt) scan(data string) (output string, done *completion, rest string, ok bool) {
	open := markerOpen + p.token + ":"
	searchFrom := 0
	for {
		idx := strings.Index(data[searchFrom:], open)
		if idx < 0 {
			return "", nil, "", false
		}
		idx += searchFrom
		body := data[idx+len(open):]
		end := strings.Index(body, markerClose)
		if end < 0 {
			// Sentinel has started but its tail has not arrived yet.
			return "", nil, "", false
		}
		if parts := strings.SplitN(body[:end], ":", 2); len(parts) == 2 {
			if exitCode, err := strconv.Atoi(parts[0]); err == nil {
				output = strings.TrimSuffix(data[:idx], "\n")
				rest = strings.TrimPrefix(body[end+len(markerClose):], "\n")
				return output, &completion{exitCode: exitCode, cwd: parts[1]}, rest, true
			}
		}
		searchFrom = idx + len(open)
	}
}

// splitIncomplete separates a trailing, partially received sentinel from the
// visible output. The pending sentinel bytes must survive a timeout
// snapshot: the tail may still arrive afterwards, and dropping the head
// would make the completion undetectable for the rest of the command's
// life.
func (p *prompt) splitIncomplete(data string) (output, pending string) {
	open := markerOpen + p.token + ":"
	if idx := strings.LastIndex(data, open); idx >= 0 {
		return strings.TrimSuffix(data[:idx], "\n"), data[idx:]
	}
	// A prefix of the opener may straddle the read boundary.
	for n := len(open) - 1; n > 0; n-- {
		if strings.HasSuffix(data, open[:n]) {
			return strings.TrimSuffix(data[:len(data)-n], "\n"), data[len(data)-n:]
		}
	}
	return data, ""
}
