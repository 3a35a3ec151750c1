package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"inventrack/internal/agent"
	"inventrack/internal/auth"
	"inventrack/internal/domain"
)

// TokenEnv supplies the chat session token when --token is not set.
const TokenEnv = "INVENTRACK_TOKEN"

var errNoToken = errors.New("chat: a session token is required (--token or " + TokenEnv + ")")

func runChat(cmd *cobra.Command, _ []string) error {
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = os.Getenv(TokenEnv)
	}
	if strings.TrimSpace(token) == "" {
		return errNoToken
	}
	ctx, stop := notifyContext(cmd.Context())
	defer stop()

	a, err := loadApp(configPath(cmd), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if err := a.openData(ctx); err != nil {
		return err
	}
	defer a.Close()
	caller, err := auth.NewResolver(a.store).Resolve(ctx, token)
	if err != nil {
		return err
	}
	if err := a.openAgent(ctx); err != nil {
		return err
	}

	s := &chatSession{agent: a.agent, caller: caller, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
	if msg, _ := cmd.Flags().GetString("message"); msg != "" {
		return s.send(ctx, msg)
	}
	fmt.Fprintf(s.out, "Signed in as %s (%s). /reset clears the conversation, /quit exits.\n", caller.Email, caller.Role)
	return s.loop(ctx, cmd.InOrStdin())
}

// exchanger is the part of *agent.Agent the terminal chat uses.
type exchanger interface {
	Stream(ctx context.Context, caller auth.Identity, history []domain.Message) <-chan agent.Event
}

type chatSession struct {
	agent   exchanger
	caller  auth.Identity
	history []domain.Message
	out     io.Writer
	errOut  io.Writer
}

func (s *chatSession) loop(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(s.out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			s.history = nil
			fmt.Fprintln(s.out, "conversation cleared")
			continue
		}
		if err := s.send(ctx, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(s.errOut, "error:", err)
		}
	}
}

// send runs one exchange, printing text as it streams. The history keeps
// every completed turn, including those of a failed exchange.
func (s *chatSession) send(ctx context.Context, text string) error {
	msg := domain.NewMessage(uuid.NewString(), domain.RoleUser, timeNow(), domain.TextBlock{Text: text})
	history := append(s.history, msg)

	var res *agent.Result
	for ev := range s.agent.Stream(ctx, s.caller, history) {
		switch ev.Kind {
		case agent.EventText:
			fmt.Fprint(s.out, ev.Text)
		case agent.EventWorking:
			fmt.Fprintf(s.errOut, "[running %s]\n", strings.Join(ev.Tools, ", "))
		case agent.EventDone:
			res = ev.Result
		}
	}
	fmt.Fprintln(s.out)
	if res == nil {
		return errors.New("chat: exchange ended without a result")
	}
	s.history = res.Conversation
	if res.StopReason == agent.StopStepBudget {
		fmt.Fprintln(s.errOut, "[stopped: step budget reached]")
	}
	return res.Err
}
