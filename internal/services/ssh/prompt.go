package ssh

import "strings"

type promptAction int

const (
	actionEcho promptAction = iota
	actionAnswer
)

// promptMatcher watches remote output for the sudo password prompt. Output is
// accumulated and compared literally against the prompt; the buffer resets on
// a match or as soon as it can no longer become one.
type promptMatcher struct {
	prompt   string
	password string
	buf      []byte
	answered int
}

func sudoPrompt(username string) string {
	return "[sudo] password for " + username + ": "
}

func newPromptMatcher(username, password string) *promptMatcher {
	return &promptMatcher{
		prompt:   sudoPrompt(username),
		password: password,
	}
}

// Feed consumes one chunk of output and decides what to do with it. Only a
// chunk that completes the prompt while a password is known is withheld.
func (m *promptMatcher) Feed(chunk []byte) promptAction {
	m.buf = append(m.buf, chunk...)
	if !strings.HasPrefix(m.prompt, string(m.buf)) {
		// a mismatch may still be followed by a prompt starting in this chunk
		m.buf = append(m.buf[:0], chunk...)
		if !strings.HasPrefix(m.prompt, string(m.buf)) {
			m.buf = m.buf[:0]
			return actionEcho
		}
	}

	if len(m.buf) < len(m.prompt) {
		return actionEcho
	}

	m.buf = m.buf[:0]
	if m.password == "" {
		return actionEcho
	}
	m.answered++
	return actionAnswer
}

// Answer is what gets written to the remote stdin on a match.
func (m *promptMatcher) Answer() []byte {
	return []byte(m.password + "\n")
}
