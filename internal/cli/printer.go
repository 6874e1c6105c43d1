package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"servimatt/chat/internal/model"
	"servimatt/chat/internal/store"
)

var (
	userLabel      = color.New(color.FgGreen, color.Bold)
	assistantLabel = color.New(color.FgCyan, color.Bold)
	errorText      = color.New(color.FgRed)
	infoText       = color.New(color.FgYellow)
	dimText        = color.New(color.Faint)
)

func printConversations(w io.Writer, conversations []model.Conversation, currentID string) {
	if len(conversations) == 0 {
		dimText.Fprintln(w, "No conversations yet.")
		return
	}
	for i, c := range conversations {
		marker := " "
		if c.ID == currentID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %d. %s  %s\n", marker, i+1, c.Title,
			dimText.Sprint(c.UpdatedAt.Local().Format("2006-01-02 15:04")))
	}
}

func printMessages(w io.Writer, messages []model.Message) {
	for _, m := range messages {
		if m.Role == model.RoleUser {
			userLabel.Fprint(w, "You: ")
		} else {
			assistantLabel.Fprint(w, "Assistant: ")
		}
		fmt.Fprint(w, m.Content)
		if m.State == model.StateInterrupted {
			dimText.Fprint(w, " (interrupted)")
		}
		fmt.Fprintln(w)
	}
}

// streamPrinter writes the growing content of the pending assistant message
// as it arrives, printing each fragment once.
type streamPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	localID string
	printed int
}

func newStreamPrinter(out io.Writer) *streamPrinter {
	return &streamPrinter{out: out}
}

func (p *streamPrinter) onView(v store.View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range v.Messages {
		if m.Role != model.RoleAssistant || !m.Pending() {
			continue
		}
		if m.LocalID != p.localID {
			p.localID, p.printed = m.LocalID, 0
		}
		p.write(m.Content)
	}
}

// flush prints whatever part of the final reply was not streamed.
func (p *streamPrinter) flush(content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.write(content)
}

func (p *streamPrinter) write(content string) {
	if len(content) <= p.printed {
		return
	}
	fmt.Fprint(p.out, content[p.printed:])
	p.printed = len(content)
}
