package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Refresh(ctx context.Context) error
	Recover(ctx context.Context, args []string) error
	Cancel(ctx context.Context) error
	Reauth(ctx context.Context, args []string) error
	Notify(ctx context.Context, args []string) error
	Notes(ctx context.Context) error
	Dismiss(ctx context.Context, args []string) error
	ClearNotes(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Edit(ctx context.Context, args []string) error
	Preserve(ctx context.Context) error
	Restore(ctx context.Context) error
	Stats(ctx context.Context) error
	Goto(ctx context.Context, args []string) error
	Fetch(ctx context.Context, args []string) error
	Health(ctx context.Context, args []string) error
	ConfirmExit(ctx context.Context) bool
}

// runREPL starts a simple read–eval–print loop for the session shell.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit" and confirms leaving with unsaved form data.
//
// Prompt & Commands
//
//	Session:       login, logout, whoami, refresh
//	Recovery:      recover [token|network|reauth], cancel, reauth [refresh]
//	Notifications: notify <severity> <title>, notes, dismiss <id>, clear,
//	               pause, resume
//	Form:          edit <field>=<value>, preserve, restore, goto <url>
//	Diagnostics:   stats, fetch <path>, health [service]
//
// Errors returned by handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("pd %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, logout, refresh, recover, cancel, reauth, notify, notes, dismiss, clear, pause, resume, edit, preserve, restore, goto, fetch, health, stats, exit")
			} else {
				printlnFn("Available commands: login, reauth, notes, edit, preserve, restore, goto, stats, exit")
			}

		case "login":
			err = a.Login(ctx)
		case "logout":
			err = a.Logout(ctx)
		case "whoami":
			err = a.WhoAmI(ctx)
		case "refresh":
			err = a.Refresh(ctx)
		case "recover":
			err = a.Recover(ctx, args)
		case "cancel":
			err = a.Cancel(ctx)
		case "reauth":
			err = a.Reauth(ctx, args)
		case "notify":
			err = a.Notify(ctx, args)
		case "notes":
			err = a.Notes(ctx)
		case "dismiss":
			err = a.Dismiss(ctx, args)
		case "clear":
			err = a.ClearNotes(ctx)
		case "pause":
			err = a.Pause(ctx)
		case "resume":
			err = a.Resume(ctx)
		case "edit":
			err = a.Edit(ctx, args)
		case "preserve":
			err = a.Preserve(ctx)
		case "restore":
			err = a.Restore(ctx)
		case "stats":
			err = a.Stats(ctx)
		case "goto":
			err = a.Goto(ctx, args)
		case "fetch":
			err = a.Fetch(ctx, args)
		case "health":
			err = a.Health(ctx, args)

		case "exit", "quit":
			if !a.ConfirmExit(ctx) {
				continue
			}
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
