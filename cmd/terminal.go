package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dtroode/chronos/internal/logger"
	"github.com/dtroode/chronos/internal/model"
	"github.com/dtroode/chronos/internal/service"
)

const helpText = `commands:
  open [login|signup|forgotPassword|verifyCode|resetPassword]
  set email|password|name|code <value>
  submit | forgot | register | back | resend | close
  logout | status
  tool <stopwatch|countdown|lap_timer|interval|none>
  log <timer> <ms> [category]
  history
  quit`

var timerTools = map[string]bool{
	"stopwatch": true,
	"countdown": true,
	"lap_timer": true,
	"interval":  true,
}

// terminal is a line oriented front end over the auth flow and the session.
type terminal struct {
	flow    *service.AuthFlow
	session *service.SessionController
	usage   *service.UsageLogger
	logger  *logger.Logger
	out     io.Writer

	mu         sync.Mutex
	activeTool string
}

func newTerminal(
	flow *service.AuthFlow,
	session *service.SessionController,
	usage *service.UsageLogger,
	logger *logger.Logger,
	out io.Writer,
) *terminal {
	t := &terminal{
		flow:    flow,
		session: session,
		usage:   usage,
		logger:  logger,
		out:     out,
	}
	session.OnSignedOut(t.clearTool)
	session.OnPasswordRecovery(flow.ForceResetPassword)
	return t
}

func (t *terminal) clearTool() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeTool = ""
}

func (t *terminal) tool() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activeTool
}

// run executes commands read from in until quit, EOF or ctx is done.
func (t *terminal) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	fmt.Fprintln(t.out, helpText)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if quit := t.execute(ctx, line); quit {
				return nil
			}
		}
	}
}

func (t *terminal) execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	t.logger.Debug("Terminal: command received",
		"command", fields[0])

	var err error
	switch cmd, args := fields[0], fields[1:]; cmd {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(t.out, helpText)
		return false
	case "open":
		view := model.ViewLogin
		if len(args) > 0 {
			view = model.AuthView(args[0])
			if !view.Valid() {
				err = fmt.Errorf("unknown view %q", args[0])
				break
			}
		}
		t.flow.Open(view)
	case "set":
		err = t.set(args)
	case "submit":
		err = t.flow.Submit(ctx)
	case "forgot":
		err = t.flow.ForgotPassword()
	case "register":
		err = t.flow.ToggleRegister()
	case "back":
		err = t.flow.Back()
	case "resend":
		err = t.flow.Resend()
	case "close":
		t.flow.Close()
	case "logout":
		t.session.Logout(ctx)
	case "status":
	case "tool":
		err = t.selectTool(args)
	case "log":
		err = t.logUsage(ctx, args)
	case "history":
		err = t.history(ctx)
	default:
		err = fmt.Errorf("unknown command %q, type help", cmd)
	}

	t.report(err)
	t.printState()
	return false
}

func (t *terminal) set(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: set email|password|name|code <value>")
	}
	value := strings.Join(args[1:], " ")
	switch args[0] {
	case "email":
		t.flow.SetEmail(value)
	case "password":
		t.flow.SetPassword(value)
	case "name":
		t.flow.SetFullName(value)
	case "code":
		t.flow.SetCode(value)
	default:
		return fmt.Errorf("unknown field %q", args[0])
	}
	return nil
}

func (t *terminal) selectTool(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: tool <name>|none")
	}
	if args[0] != "none" && !timerTools[args[0]] {
		return fmt.Errorf("unknown tool %q", args[0])
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeTool = args[0]
	if args[0] == "none" {
		t.activeTool = ""
	}
	return nil
}

func (t *terminal) logUsage(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: log <timer> <ms> [category]")
	}
	ms, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || ms < 0 {
		return fmt.Errorf("invalid duration %q", args[1])
	}
	category := ""
	if len(args) > 2 {
		category = strings.Join(args[2:], " ")
	}

	user := t.session.User()
	return t.usage.LogTimerUsage(ctx, user.ID, args[0], time.Duration(ms)*time.Millisecond, category, nil)
}

func (t *terminal) history(ctx context.Context) error {
	logs, err := t.usage.Recent(ctx, t.session.User().ID, 10)
	if err != nil {
		return err
	}
	for _, entry := range logs {
		category, metadata := service.SplitCategory(entry.Category)
		fmt.Fprintf(t.out, "  %s  %-10s %8dms  %s",
			entry.CreatedAt.Local().Format(time.DateTime), entry.TimerType, entry.DurationMS, category)
		if len(metadata) > 0 {
			fmt.Fprintf(t.out, "  %v", metadata)
		}
		fmt.Fprintln(t.out)
	}
	return nil
}

func (t *terminal) report(err error) {
	var flowErr model.FlowError
	switch {
	case err == nil:
	case errors.As(err, &flowErr):
		fmt.Fprintf(t.out, "[%s] %s: %s\n", flowErr.Severity, flowErr.Title, flowErr.Message)
	case errors.Is(err, model.ErrNoUser):
		fmt.Fprintln(t.out, "sign in first")
	default:
		fmt.Fprintf(t.out, "error: %v\n", err)
	}
}

func (t *terminal) printState() {
	session := t.session.State()
	switch {
	case session.Loading:
		fmt.Fprintln(t.out, "user: loading...")
	case session.User.IsLoggedIn:
		fmt.Fprintf(t.out, "user: %s <%s>\n", session.User.Name, session.User.Email)
	default:
		fmt.Fprintln(t.out, "user: signed out")
	}
	if tool := t.tool(); tool != "" {
		fmt.Fprintf(t.out, "tool: %s\n", tool)
	}

	flow := t.flow.State()
	if !flow.Open {
		return
	}
	if flow.Success {
		fmt.Fprintf(t.out, "auth: %s", flow.SuccessTitle())
		if flow.NeedsEmailConfirmation {
			fmt.Fprint(t.out, " (check your inbox to confirm the email)")
		}
		fmt.Fprintln(t.out)
		return
	}
	fmt.Fprintf(t.out, "auth: %s email=%q", flow.View, flow.Email)
	if flow.Code != "" {
		fmt.Fprintf(t.out, " code=%s", flow.Code)
	}
	if flow.Cooldown > 0 {
		fmt.Fprintf(t.out, " wait=%ds", flow.Cooldown)
	}
	fmt.Fprintln(t.out)
}
