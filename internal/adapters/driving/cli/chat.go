package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
)

var (
	chatSession string
	chatSteps   bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Ask questions about facilities",
	Long: `Ask a question and get an answer grounded in retrieved facilities.

With a message argument the answer is printed once. Without one, chat reads
questions from stdin until EOF or "exit"; the conversation keeps its memory
across questions. Type ":history" to print the session so far.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: engineCommand(),
	RunE:        runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "continue an existing session")
	chatCmd.Flags().BoolVar(&chatSteps, "steps", false, "show reasoning steps")
	addOutputFlag(chatCmd)
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if answerService == nil {
		return errors.New("answer service not configured")
	}
	ctx := cmd.Context()
	if err := ensureIndex(ctx); err != nil {
		return err
	}

	if len(args) == 1 {
		answer, err := answerService.Answer(ctx, chatSession, args[0])
		if err != nil {
			return err
		}
		return render(cmd, answer, func(w io.Writer) error {
			printAnswer(w, newStyles(w), answer, chatSteps)
			return nil
		})
	}
	return chatLoop(ctx, cmd)
}

func chatLoop(ctx context.Context, cmd *cobra.Command) error {
	w := cmd.OutOrStdout()
	st := newStyles(w)
	session := chatSession
	scanner := bufio.NewScanner(cmd.InOrStdin())

	for {
		fmt.Fprint(w, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case ":history":
			if err := printHistory(ctx, w, session); err != nil {
				fmt.Fprintf(w, "Error: %v\n", err)
			}
			continue
		}

		answer, err := answerService.Answer(ctx, session, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(w, "Error: %v\n", err)
			continue
		}
		session = answer.SessionID
		printAnswer(w, st, answer, chatSteps)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if session != "" {
		fmt.Fprintf(w, "\nSession: %s\n", session)
	}
	return nil
}

func printAnswer(w io.Writer, st styles, answer *domain.Answer, steps bool) {
	fmt.Fprintln(w, answer.Response)
	if answer.Degraded {
		fmt.Fprintln(w, st.muted.Render("(no language model available; showing retrieved facilities)"))
	}
	if len(answer.Citations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, st.title.Render("Sources"))
		for i, c := range answer.Citations {
			fmt.Fprintf(w, "  [%d] %s (%.2f)\n", i+1, c.SourceID, c.Relevance)
			if c.Excerpt != "" {
				fmt.Fprintf(w, "      %s\n", st.muted.Render(truncate(c.Excerpt, 100)))
			}
		}
	}
	if steps && len(answer.ReasoningSteps) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, st.title.Render("Reasoning"))
		for _, s := range answer.ReasoningSteps {
			fmt.Fprintf(w, "  %d. %s: %s\n", s.Step, s.Action, s.Detail)
		}
	}
	fmt.Fprintln(w, st.muted.Render("session "+answer.SessionID))
	fmt.Fprintln(w)
}

func printHistory(ctx context.Context, w io.Writer, session string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}
	if session == "" {
		fmt.Fprintln(w, "No messages yet.")
		return nil
	}
	turns, err := sessionService.History(ctx, session)
	if err != nil {
		return err
	}
	for _, t := range turns {
		fmt.Fprintf(w, "%s [%s]: %s\n", t.Role, t.Timestamp.Format("15:04:05"), t.Text)
	}
	return nil
}
