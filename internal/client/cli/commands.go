package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/partsdesk/internal/client/autherr"
	"github.com/dmitrijs2005/partsdesk/internal/client/client"
	"github.com/dmitrijs2005/partsdesk/internal/client/models"
	"github.com/dmitrijs2005/partsdesk/internal/client/notify"
	"github.com/dmitrijs2005/partsdesk/internal/client/reauth"
	"github.com/dmitrijs2005/partsdesk/internal/common"
)

func usage(s string) error {
	return fmt.Errorf("usage: %s", s)
}

func (a *App) readCredentials() (models.Credentials, error) {
	email, err := GetSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return models.Credentials{}, err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return models.Credentials{}, err
	}
	defer common.WipeByteArray(password)
	return models.Credentials{Email: email, Password: string(password)}, nil
}

// Login prompts for credentials and signs in.
func (a *App) Login(ctx context.Context) error {
	creds, err := a.readCredentials()
	if err != nil {
		return err
	}
	if _, err := a.session.Login(ctx, creds); err != nil {
		return err
	}
	a.reporter.Clear()
	a.recovery.Reset()
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.recovery.Reset()
	a.reporter.Clear()
	return a.session.Logout(ctx)
}

func (a *App) WhoAmI(ctx context.Context) error {
	s := a.session.Session()
	if s == nil {
		return common.ErrNotAuthenticated
	}
	fmt.Fprintf(a.out, "%s <%s>\nrole: %s\ncompany: %d\nuser id: %d\n", s.FullName, s.Email, s.Role, s.CompanyID, s.ID)
	return nil
}

// Refresh renews the token pair by hand.
func (a *App) Refresh(ctx context.Context) error {
	if !a.isLoggedIn() {
		return common.ErrNotAuthenticated
	}
	a.notes.Show(notify.RefreshInProgress())
	if a.session.RefreshToken(ctx) {
		a.notes.Show(notify.TokenRefreshSuccess())
		return nil
	}
	a.reporter.Report(ctx, autherr.RefreshFailed, "Could not renew the session")
	return nil
}

// Recover runs the silent recovery loop with an optional preset.
func (a *App) Recover(ctx context.Context, args []string) error {
	var ok bool
	switch {
	case len(args) == 0:
		ok = a.recovery.Start(ctx)
	case args[0] == "token":
		ok = a.recovery.RecoverFromTokenExpiry(ctx)
	case args[0] == "network":
		ok = a.recovery.RecoverFromNetworkError(ctx)
	case args[0] == "reauth":
		ok = a.recovery.RecoverWithReauth(ctx)
	case args[0] == "retry":
		ok = a.recovery.Retry(ctx)
	default:
		return usage("recover [token|network|reauth|retry]")
	}
	fmt.Fprintf(a.out, "recovery: %s (attempts %d, succeeded %t)\n", a.recovery.State(), a.recovery.Attempts(), ok)
	return nil
}

func (a *App) Cancel(ctx context.Context) error {
	a.recovery.Cancel()
	fmt.Fprintln(a.out, "Recovery cancelled.")
	return nil
}

// Reauth opens the re-authentication prompt if needed and submits it.
// "reauth refresh" retries a silent renewal instead of asking for a password.
func (a *App) Reauth(ctx context.Context, args []string) error {
	if !a.prompt.IsOpen() {
		a.reporter.OpenReauth(ctx, true)
	}
	if url, fields := a.prompt.Target(); fields > 0 {
		fmt.Fprintf(a.out, "Your %d unsaved fields from %s will be restored.\n", fields, url)
	}

	if len(args) > 0 && args[0] == "refresh" {
		return a.prompt.RetryRefresh(ctx)
	}
	if locked, until := a.prompt.Locked(); locked {
		return fmt.Errorf("%w (until %s)", reauth.ErrLocked, until.Format(time.Kitchen))
	}

	creds, err := a.readCredentials()
	if err != nil {
		return err
	}
	return a.prompt.Submit(ctx, creds)
}

var severities = map[string]notify.Severity{
	"success": notify.Success,
	"warning": notify.Warning,
	"error":   notify.Error,
	"info":    notify.Info,
}

// Notify shows an ad-hoc notification.
func (a *App) Notify(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("notify <success|warning|error|info> <message>")
	}
	sev, ok := severities[args[0]]
	if !ok {
		return usage("notify <success|warning|error|info> <message>")
	}
	msg := strings.Join(args[1:], " ")
	a.notes.Show(notify.Spec{Severity: sev, Title: "Note", Message: msg})
	return nil
}

func (a *App) Notes(ctx context.Context) error {
	list := a.notes.List()
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No notifications.")
		return nil
	}
	now := a.sched.Now()
	for _, n := range list {
		ttl := "sticky"
		if n.Duration > 0 {
			ttl = n.CreatedAt.Add(n.Duration).Sub(now).Round(time.Second).String()
		}
		fmt.Fprintf(a.out, "%s  %s\n", formatNotification(n), ttl)
	}
	if a.notes.IsPaused() {
		fmt.Fprintln(a.out, "(paused)")
	}
	return nil
}

// Dismiss hides the notification whose id starts with the given prefix.
func (a *App) Dismiss(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("dismiss <id>")
	}
	for _, n := range a.notes.List() {
		if strings.HasPrefix(n.ID, args[0]) {
			a.notes.Hide(n.ID)
			return nil
		}
	}
	return fmt.Errorf("notification %s: %w", args[0], common.ErrorNotFound)
}

func (a *App) ClearNotes(ctx context.Context) error {
	a.notes.ClearAll()
	return nil
}

func (a *App) Pause(ctx context.Context) error {
	a.notes.Pause()
	return nil
}

func (a *App) Resume(ctx context.Context) error {
	a.notes.Resume()
	return nil
}

// Edit sets a draft form field; without arguments it prints the draft.
func (a *App) Edit(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fields := a.draft.Fields()
		names := make([]string, 0, len(fields))
		for k := range fields {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			fmt.Fprintf(a.out, "%s = %v\n", k, fields[k])
		}
		return nil
	}
	name, value, ok := ParseAssignment(strings.Join(args, " "))
	if !ok {
		return usage("edit <field>=<value>")
	}
	a.draft.Set(name, value)
	a.preserve.AutoPreserve(a.draft.CaptureVisibleFields())
	return nil
}

func (a *App) Preserve(ctx context.Context) error {
	data := a.draft.CaptureVisibleFields()
	if err := a.preserve.Preserve(ctx, data, ""); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Preserved %d fields from %s.\n", len(data), a.draft.Location())
	return nil
}

// Restore consumes the snapshot into the draft form.
func (a *App) Restore(ctx context.Context) error {
	data, url, err := a.preserve.Restore(ctx)
	if err != nil {
		return err
	}
	if data == nil {
		fmt.Fprintln(a.out, "Nothing to restore.")
		return nil
	}
	a.draft.ApplyFields(data)
	fmt.Fprintf(a.out, "Restored %d fields at %s.\n", len(data), url)
	return nil
}

func (a *App) Stats(ctx context.Context) error {
	st := a.reporter.Stats()
	fmt.Fprintf(a.out, "auth errors: %d", st.TotalErrors)
	if !st.LastErrorAt.IsZero() {
		fmt.Fprintf(a.out, " (last %s ago)", a.sched.Now().Sub(st.LastErrorAt).Round(time.Second))
	}
	fmt.Fprintln(a.out)
	kinds := make([]string, 0, len(st.ByKind))
	for k := range st.ByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(a.out, "  %s: %d\n", k, st.ByKind[autherr.Kind(k)])
	}
	if cur := a.reporter.Current(); cur != nil {
		fmt.Fprintf(a.out, "current: %s %q\n", cur.Kind, cur.Message)
	}

	fmt.Fprintf(a.out, "recovery: %s, attempts %d, can retry %t\n", a.recovery.State(), a.recovery.Attempts(), a.recovery.CanRetry())
	if err := a.recovery.LastError(); err != nil {
		fmt.Fprintf(a.out, "  last error: %v\n", err)
	}
	fmt.Fprintf(a.out, "reauth prompt: open %t, failed attempts %d\n", a.prompt.IsOpen(), a.prompt.Attempts())

	info, err := a.preserve.Info(ctx)
	if err != nil {
		return err
	}
	if info != nil {
		fmt.Fprintf(a.out, "snapshot: %d fields from %s, age %s, expired %t\n", info.FieldsCount, info.URL, info.Age.Round(time.Second), info.Expired)
	}
	return nil
}

// Goto changes the current location; the draft form belongs to the page
// and is discarded.
func (a *App) Goto(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("goto <url>")
	}
	a.preserve.StopAutoPreserve()
	a.draft.Navigate(args[0])
	a.draft.Reset()
	return nil
}

// Fetch issues an authenticated GET against the API through the
// classifying transport.
func (a *App) Fetch(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("fetch <path>")
	}
	url := strings.TrimRight(a.config.APIBaseURL, "/") + "/" + strings.TrimLeft(args[0], "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := a.web.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	n, _ := io.Copy(io.Discard, resp.Body)
	fmt.Fprintf(a.out, "%s (%d bytes)\n", resp.Status, n)
	if resp.StatusCode >= 400 {
		return errors.New(http.StatusText(resp.StatusCode))
	}
	return nil
}

var errNoGateway = errors.New("no gRPC gateway configured (set -g or PARTSDESK_GRPC_ADDR)")

// Health asks the gRPC gateway whether it, or the named service, is serving.
func (a *App) Health(ctx context.Context, args []string) error {
	if a.gw == nil {
		return errNoGateway
	}
	service := ""
	if len(args) > 0 {
		service = args[0]
	}
	st, err := client.CheckHealth(ctx, a.gw, service)
	if err != nil {
		return err
	}
	name := service
	if name == "" {
		name = "gateway"
	}
	fmt.Fprintf(a.out, "%s: %s\n", name, st)
	return nil
}

// ConfirmExit asks before leaving while a snapshot is held.
func (a *App) ConfirmExit(ctx context.Context) bool {
	msg, block := a.preserve.BeforeUnload(ctx)
	if !block {
		return true
	}
	return Confirm(a.reader, msg, a.out)
}
