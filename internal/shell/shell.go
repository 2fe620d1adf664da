// Package shell is the interactive terminal front end: load a PDF, then
// ask questions about it line by line.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/services"
)

const helpText = `Commands:
  /load <path>   load a PDF (replaces the current one and clears history)
  /key <key>     use your own Gemini API key
  /clear         clear the conversation, keep the document
  /unload        drop the document and the conversation
  /history       show the conversation so far
  /help          show this help
  /quit          leave`

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	youStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	buddyStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Shell runs one session against a terminal. It is not safe for
// concurrent use.
type Shell struct {
	study    *services.StudyService
	session  *models.Session
	in       io.Reader
	out      io.Writer
	readFile func(name string) ([]byte, error)
}

func New(study *services.StudyService, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		study:    study,
		session:  models.NewSession(),
		in:       in,
		out:      out,
		readFile: os.ReadFile,
	}
}

// Session exposes the shell's session state.
func (s *Shell) Session() *models.Session {
	return s.session
}

func (s *Shell) SetCredential(apiKey string) {
	s.session.Credential = strings.TrimSpace(apiKey)
}

// Load reads the PDF at path into the session.
func (s *Shell) Load(ctx context.Context, path string) error {
	data, err := s.readFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", path)
	}

	extracted, err := s.study.LoadDocument(ctx, s.session, filepath.Base(path), data)
	if err != nil {
		return err
	}

	if extracted {
		s.info(services.LoadedNotice(s.session.Document.CharCount))
	} else {
		s.info(services.NoticeAlreadyLoaded)
	}
	return nil
}

// Run reads lines until EOF, /quit or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, titleStyle.Render("Study Buddy"))
	fmt.Fprintln(s.out, "Ask questions about your PDF. Type /help for commands.")
	if !s.session.HasDocument() {
		s.info(services.NoticeNoDocument + " Use /load <path>.")
	}

	lines, readErr := s.readLines(ctx)

	for {
		if ctx.Err() != nil {
			return nil
		}

		fmt.Fprint(s.out, youStyle.Render("you> "))

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(s.out)
				return <-readErr
			}
			line = strings.TrimSpace(l)
		}

		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := s.command(ctx, line); quit {
				return nil
			}
			continue
		}

		s.ask(ctx, line)
	}
}

// readLines scans input on its own goroutine so a blocked read never
// delays Run from noticing ctx. readErr yields the scan error once lines
// is closed.
func (s *Shell) readLines(ctx context.Context) (<-chan string, <-chan error) {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(s.in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}
		readErr <- scanner.Err()
	}()

	return lines, readErr
}

func (s *Shell) command(ctx context.Context, line string) (quit bool) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(s.out, helpText)
	case "/load":
		if arg == "" {
			s.fail("Usage: /load <path>")
			return false
		}
		if err := s.Load(ctx, arg); err != nil {
			s.fail(notice(err))
		}
	case "/key":
		s.SetCredential(arg)
		if arg == "" {
			s.info("Using the default API key.")
		} else {
			s.info("API key set.")
		}
	case "/clear":
		s.session.ClearHistory()
		s.info("Conversation cleared.")
	case "/unload":
		s.session.ClearDocument()
		s.info("Document removed. " + services.NoticeNoDocument)
	case "/history":
		s.printHistory()
	default:
		s.fail(fmt.Sprintf("Unknown command %s. Type /help.", name))
	}
	return false
}

func (s *Shell) ask(ctx context.Context, question string) {
	warn := func(w services.RetryWarning) {
		fmt.Fprintln(s.out, warningStyle.Render(w.Message))
	}

	reply, err := s.study.Ask(ctx, s.session, question, "", warn)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.fail(notice(err))
		return
	}

	if !reply.Answered() {
		s.fail(reply.Answer)
		return
	}
	fmt.Fprintln(s.out, buddyStyle.Render("buddy> ")+reply.Answer)
}

func (s *Shell) printHistory() {
	if len(s.session.History) == 0 {
		s.info("No questions asked yet.")
		return
	}
	for _, turn := range s.session.History {
		fmt.Fprintln(s.out, youStyle.Render("you> ")+turn.Question)
		fmt.Fprintln(s.out, buddyStyle.Render("buddy> ")+turn.Answer)
	}
}

func (s *Shell) info(msg string) {
	fmt.Fprintln(s.out, infoStyle.Render(msg))
}

func (s *Shell) fail(msg string) {
	fmt.Fprintln(s.out, errorStyle.Render(msg))
}

// notice maps service errors to the text shown to the user.
func notice(err error) string {
	var parseErr *services.DocumentParseError

	switch {
	case errors.As(err, &parseErr):
		return parseErr.Notice()
	case errors.Is(err, services.ErrNoExtractableText):
		return services.NoticeNoExtractableText
	case errors.Is(err, services.ErrCredentialMissing):
		return services.NoticeCredentialMissing + " Use /key <key>."
	case errors.Is(err, services.ErrNoDocument):
		return services.NoticeNoDocument + " Use /load <path>."
	default:
		return services.UnexpectedNotice(err)
	}
}
