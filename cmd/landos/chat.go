package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/john-mcenroe/landos/internal/chat"
	"github.com/john-mcenroe/landos/internal/results"
	"github.com/john-mcenroe/landos/internal/selection"
)

func newChatCmd(apiURL *string, verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive assistant session over the property data",
		Long: `Start an interactive conversation with the analysis assistant.

Commands inside the session:
  /new            start a fresh conversation
  /sessions       list saved conversations
  /switch <id>    resume a saved conversation (id prefix is enough)
  /delete <id>    delete a saved conversation
  /select <rank>  open one ranked result
  /next, /prev    step through ranked results
  /quit           exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(*apiURL, *verbose)
			defer a.log.Sync()

			sel := selection.NewController(a.client, a.surface, a.ui, a.log)
			rc := results.NewController(a.surface, a.ui, sel, nil, a.log)
			a.ui.BindResults(rc)

			store := chat.NewStore(a.cfg.ChatStorePath())
			mgr := chat.NewManager(store, a.client, a.ui, nil, a.log)

			a.ui.ResetToStarter()
			return runREPL(a, mgr, rc)
		},
	}
}

func runREPL(a *app, mgr *chat.Manager, rc *results.Controller) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stdout, "\n> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := runCommand(a, mgr, rc, line); quit {
				return nil
			}
			continue
		}

		switch err := mgr.Send(line); {
		case errors.Is(err, chat.ErrBusy):
			a.ui.PrintMuted("Still thinking about the last question, give it a moment.")
		case err != nil:
			a.ui.ShowError(err.Error())
		default:
			waitForReply(mgr)
		}
	}
}

// waitForReply blocks the prompt until the in-flight request resolves, so
// output does not interleave with the next read.
func waitForReply(mgr *chat.Manager) {
	for mgr.Awaiting() {
		time.Sleep(50 * time.Millisecond)
	}
}

func runCommand(a *app, mgr *chat.Manager, rc *results.Controller, line string) (quit bool) {
	fields := strings.Fields(line)
	cmd, arg := fields[0], ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/new":
		mgr.NewSession()
	case "/sessions":
		a.ui.PrintSessions(mgr.Sessions())
	case "/switch":
		if id, ok := resolveSession(mgr, arg); ok {
			if err := mgr.SwitchSession(id); err != nil {
				a.ui.ShowError(err.Error())
			}
		} else {
			a.ui.PrintMuted("No session matches " + arg)
		}
	case "/delete":
		if id, ok := resolveSession(mgr, arg); ok {
			if err := mgr.DeleteSession(id); err != nil {
				a.ui.ShowError(err.Error())
			}
		} else {
			a.ui.PrintMuted("No session matches " + arg)
		}
	case "/select":
		if rank, err := strconv.Atoi(arg); err == nil {
			rc.Select(rank)
		} else {
			a.ui.PrintMuted("Usage: /select <rank>")
		}
	case "/next":
		rc.Next()
	case "/prev":
		rc.Prev()
	default:
		a.ui.PrintMuted("Unknown command " + cmd)
	}
	return false
}

// resolveSession matches a session id by unique prefix.
func resolveSession(mgr *chat.Manager, prefix string) (string, bool) {
	if prefix == "" {
		return "", false
	}
	match := ""
	for _, s := range mgr.Sessions() {
		if strings.HasPrefix(s.ID, prefix) {
			if match != "" {
				return "", false // ambiguous
			}
			match = s.ID
		}
	}
	return match, match != ""
}
