package cli

import (
	"fmt"
	"sync"

	"github.com/dmitrijs2005/partsdesk/internal/client/models"
	"github.com/dmitrijs2005/partsdesk/internal/client/notify"
)

// watch prints notifications as they appear and session changes as they
// happen. Callbacks may arrive from timer goroutines.
func (a *App) watch() {
	var mu sync.Mutex
	seen := map[string]bool{}
	a.unsubscribe = append(a.unsubscribe, a.notes.Subscribe(func(list []notify.Notification) {
		mu.Lock()
		defer mu.Unlock()
		live := make(map[string]bool, len(list))
		for _, n := range list {
			live[n.ID] = true
			if !seen[n.ID] {
				fmt.Fprintln(a.out, formatNotification(n))
			}
		}
		seen = live
	}))

	last := ""
	a.unsubscribe = append(a.unsubscribe, a.session.Subscribe(func(s *models.Session) {
		mu.Lock()
		defer mu.Unlock()
		who := ""
		if s != nil {
			who = s.Email
		}
		if who == last {
			return
		}
		last = who
		if s == nil {
			fmt.Fprintln(a.out, "Session ended.")
		} else {
			fmt.Fprintf(a.out, "Signed in as %s (%s).\n", s.FullName, s.Role)
		}
	}))
}

func formatNotification(n notify.Notification) string {
	line := fmt.Sprintf("[%s] %s: %s", n.Severity, n.Title, n.Message)
	for _, act := range n.Actions {
		line += fmt.Sprintf(" [%s]", act.Label)
	}
	return line + " (" + shortID(n.ID) + ")"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
