package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	app_errors "servimatt/chat/internal/errors"
	"servimatt/chat/internal/interfaces"
	"servimatt/chat/internal/model"
)

const helpText = `Type a message and press Enter to send it.
  /list            list conversations
  /open <n|id>     open a conversation by its /list number or id
  /new             start a new chat
  /rename <title>  rename the open conversation
  /delete [n|id]   delete a conversation, the open one by default
  /draft <text>    keep text as the draft of the open conversation;
                   an empty line sends it
  /models          list available models
  /quit            leave`

// REPL is the line-oriented terminal front end of the chat client.
type REPL struct {
	chat   interfaces.ChatService
	models interfaces.ModelService
	in     *bufio.Scanner
	out    io.Writer

	// input is the unsent text of the open conversation.
	input string
	// listed is the order shown by the last /list, for numeric references.
	listed []model.Conversation
}

func NewREPL(chat interfaces.ChatService, models interfaces.ModelService, in io.Reader, out io.Writer) *REPL {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &REPL{chat: chat, models: models, in: scanner, out: out}
}

// Run reads commands until /quit, end of input or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	infoText.Fprintln(r.out, "Servimatt chat. Type /help for commands.")
	for {
		userLabel.Fprint(r.out, "You: ")
		if !r.in.Scan() {
			fmt.Fprintln(r.out)
			return r.in.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		quit, err := r.handle(ctx, strings.TrimSpace(r.in.Text()))
		if err != nil {
			errorText.Fprintln(r.out, err.Error())
		}
		if quit {
			return nil
		}
	}
}

func (r *REPL) handle(ctx context.Context, line string) (quit bool, err error) {
	if !strings.HasPrefix(line, "/") {
		if line == "" {
			line = r.input
		}
		if line == "" {
			return false, nil
		}
		return false, r.send(ctx, line)
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(name) {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(r.out, helpText)
	case "list":
		return false, r.list(ctx)
	case "open":
		return false, r.open(ctx, arg)
	case "new":
		r.input = r.chat.NewChat(r.input)
		infoText.Fprintln(r.out, "New chat. Your first message starts a conversation.")
	case "rename":
		return false, r.rename(ctx, arg)
	case "delete":
		return false, r.delete(ctx, arg)
	case "draft":
		r.input = arg
		r.chat.SetDraft(r.currentID(), arg)
		dimText.Fprintln(r.out, "Draft saved.")
	case "models":
		return false, r.listModels(ctx)
	default:
		return false, fmt.Errorf("unknown command /%s, type /help for commands", name)
	}
	return false, nil
}

func (r *REPL) currentID() string {
	if id := r.chat.View().CurrentConversationID; id != nil {
		return *id
	}
	return ""
}

// send streams the reply to text. An interrupt cancels the reply only.
func (r *REPL) send(ctx context.Context, text string) error {
	p := newStreamPrinter(r.out)
	unsubscribe := r.chat.Subscribe(p.onView)
	assistantLabel.Fprint(r.out, "Assistant: ")

	sendCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	msg, err := r.chat.SendMessage(sendCtx, text)
	stop()
	unsubscribe()

	if msg != nil {
		p.flush(msg.Content)
	}
	fmt.Fprintln(r.out)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			dimText.Fprintln(r.out, "(interrupted)")
			return nil
		}
		if v := r.chat.View(); v.Error != "" {
			r.chat.ClearError()
			return errors.New(v.Error)
		}
		return err
	}
	r.input = ""
	return nil
}

func (r *REPL) list(ctx context.Context) error {
	conversations, err := r.chat.Refresh(ctx)
	if err != nil {
		return err
	}
	r.listed = conversations
	printConversations(r.out, conversations, r.currentID())
	return nil
}

// resolve turns a /list number or a raw id into a conversation id.
func (r *REPL) resolve(arg string) (string, error) {
	if arg == "" {
		return "", fmt.Errorf("%w: expected a number from /list or a conversation id", app_errors.ErrValidation)
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(r.listed) {
			return "", fmt.Errorf("%w: no conversation numbered %d, run /list", app_errors.ErrValidation, n)
		}
		return r.listed[n-1].ID, nil
	}
	return arg, nil
}

func (r *REPL) open(ctx context.Context, arg string) error {
	id, err := r.resolve(arg)
	if err != nil {
		return err
	}
	draft, err := r.chat.SelectConversation(ctx, id, r.input)
	if err != nil {
		return err
	}
	r.input = draft

	v := r.chat.View()
	for _, c := range v.Conversations {
		if c.ID == id {
			infoText.Fprintf(r.out, "== %s ==\n", c.Title)
		}
	}
	printMessages(r.out, v.Messages)
	if draft != "" {
		dimText.Fprintf(r.out, "Draft: %s (press Enter to send)\n", draft)
	}
	return nil
}

func (r *REPL) rename(ctx context.Context, title string) error {
	id := r.currentID()
	if id == "" {
		return fmt.Errorf("%w: open a conversation first", app_errors.ErrValidation)
	}
	conv, err := r.chat.RenameConversation(ctx, id, title)
	if err != nil {
		return err
	}
	infoText.Fprintf(r.out, "Renamed to %q.\n", conv.Title)
	return nil
}

func (r *REPL) delete(ctx context.Context, arg string) error {
	id := r.currentID()
	if arg != "" {
		var err error
		if id, err = r.resolve(arg); err != nil {
			return err
		}
	}
	if id == "" {
		return fmt.Errorf("%w: open a conversation first or name one", app_errors.ErrValidation)
	}
	wasOpen := id == r.currentID()
	if err := r.chat.DeleteConversation(ctx, id); err != nil {
		return err
	}
	if wasOpen {
		r.input = ""
	}
	r.listed = r.chat.View().Conversations
	infoText.Fprintln(r.out, "Conversation deleted.")
	return nil
}

func (r *REPL) listModels(ctx context.Context) error {
	resp, err := r.models.List(ctx)
	if err != nil {
		return err
	}
	for _, m := range resp.Models {
		fmt.Fprintln(r.out, m.ID)
	}
	return nil
}
