package ini

import "strings"

// EndOfInput is fed through the parser like a section header so the last
// open section is flushed.
const EndOfInput = "\x00"

// Listener receives the assignments of one named section.
type Listener interface {
	Assign(key, value string)
	EndSection()
}

// Parser splits config lines into section-scoped key/value assignments.
// Lines must be fed in order; the parser is restartable after EndOfInput.
type Parser struct {
	listeners map[string]Listener
	section   string
	current   Listener
}

func NewParser() *Parser {
	return &Parser{listeners: make(map[string]Listener)}
}

// With registers listener for the named section and returns the parser.
func (p *Parser) With(section string, listener Listener) *Parser {
	p.listeners[section] = listener
	return p
}

// Section returns the name of the section currently open.
func (p *Parser) Section() string {
	return p.section
}

// Feed processes a single line without its trailing newline.
func (p *Parser) Feed(line string) {
	if line == "" {
		return
	}

	if line == EndOfInput || line[0] == '[' {
		if p.current != nil {
			p.current.EndSection()
		}
		p.section = ""
		p.current = nil
		if line == EndOfInput {
			return
		}

		name, _, _ := strings.Cut(line[1:], "]")
		p.section = strings.TrimSpace(name)
		p.current = p.listeners[p.section]
		return
	}

	if p.current == nil {
		return
	}

	assignment := strings.IndexByte(line, '=')
	if assignment < 1 {
		return
	}
	p.current.Assign(
		strings.TrimSpace(line[:assignment]),
		strings.TrimSpace(line[assignment+1:]),
	)
}

// Close signals end of input.
func (p *Parser) Close() {
	p.Feed(EndOfInput)
}

// FeedAll feeds every line followed by EndOfInput.
func (p *Parser) FeedAll(lines []string) {
	for _, line := range lines {
		p.Feed(line)
	}
	p.Close()
}
