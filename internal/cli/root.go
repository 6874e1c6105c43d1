package cli

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"servimatt/chat/internal/app"
)

// session owns the App for the lifetime of one command invocation.
type session struct {
	open func(logOut io.Writer) (*app.App, error)
	app  *app.App

	verbose        bool
	conversationID string
}

func (s *session) start(cmd *cobra.Command, _ []string) error {
	logOut := io.Discard
	if s.verbose {
		logOut = cmd.ErrOrStderr()
	}
	a, err := s.open(logOut)
	if err != nil {
		return err
	}
	s.app = a
	_, err = a.Chat.Refresh(cmd.Context())
	return err
}

func (s *session) close() {
	if s.app != nil {
		s.app.Close()
		s.app = nil
	}
}

func (s *session) repl(cmd *cobra.Command) *REPL {
	return NewREPL(s.app.Chat, s.app.Models, cmd.InOrStdin(), cmd.OutOrStdout())
}

// Execute runs the chat command line with the configuration from the
// environment.
func Execute(ctx context.Context) error {
	s := &session{open: app.Open}
	defer s.close()
	return newRootCommand(s).ExecuteContext(ctx)
}

func newRootCommand(s *session) *cobra.Command {
	root := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the Servimatt assistant from the terminal",
		Long: `Chat with the Servimatt assistant from the terminal.

Without a subcommand an interactive session starts. Conversations, messages
and settings are shared with the HTTP server through the configured storage.`,
		SilenceUsage:      true,
		PersistentPreRunE: s.start,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := s.repl(cmd)
			if s.conversationID != "" {
				if err := r.open(cmd.Context(), s.conversationID); err != nil {
					return err
				}
			}
			return r.Run(cmd.Context())
		},
	}
	root.PersistentFlags().BoolVarP(&s.verbose, "verbose", "v", false, "write logs to stderr")
	root.PersistentFlags().StringVarP(&s.conversationID, "conversation", "c", "", "conversation id to open")

	root.AddCommand(newListCommand(s), newSendCommand(s), newModelsCommand(s), newCheckCommand(s))
	return root
}

func newListCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.repl(cmd).list(cmd.Context())
		},
	}
}

func newSendCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "send <message>",
		Short: "Send one message and print the streamed reply",
		Long: `Send one message and print the streamed reply.

The message goes to the conversation given with --conversation, or to a new
conversation titled after the message.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.conversationID != "" {
				if _, err := s.app.Chat.SelectConversation(cmd.Context(), s.conversationID, ""); err != nil {
					return err
				}
			}
			return s.repl(cmd).send(cmd.Context(), strings.Join(args, " "))
		},
	}
}

func newModelsCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models offered by the completion provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.repl(cmd).listModels(cmd.Context())
		},
	}
}

func newCheckCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "check [model]",
		Short: "Ask a model for a one-word reply to confirm the provider works",
		Long: `Ask a model for a one-word reply to confirm the provider works.

Without an argument the model from the stored settings is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modelID := s.app.Settings.Current(cmd.Context()).Model
			if len(args) == 1 {
				modelID = args[0]
			}
			reply, err := s.app.Models.Probe(cmd.Context(), modelID)
			if err != nil {
				return err
			}
			infoText.Fprintf(cmd.OutOrStdout(), "%s answered: %s\n", modelID, strings.TrimSpace(reply))
			return nil
		},
	}
}
