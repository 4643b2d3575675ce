package notify

import (
	"fmt"
	"time"
)

func TokenRefreshSuccess() Spec {
	return Spec{
		Severity: Success,
		Title:    "Session renewed",
		Message:  "Your session was renewed automatically.",
		Duration: 3 * time.Second,
	}
}

func TokenRefreshWarning(timeLeft time.Duration) Spec {
	return Spec{
		Severity: Warning,
		Title:    "Session expiring",
		Message:  fmt.Sprintf("Your session expires in %s.", timeLeft.Round(time.Second)),
		Duration: 8 * time.Second,
	}
}

func TokenExpired(onLogin func()) Spec {
	return Spec{
		Severity:   Error,
		Title:      "Session expired",
		Message:    "Your session has expired. Please log in again.",
		Persistent: true,
		Actions:    []Action{{Label: "Log in", Primary: true, Handler: onLogin}},
	}
}

func NetworkError(onRetry func()) Spec {
	return Spec{
		Severity: Error,
		Title:    "Connection error",
		Message:  "Could not reach the server. Check your connection.",
		Duration: 8 * time.Second,
		Actions:  []Action{{Label: "Retry", Primary: true, Handler: onRetry}},
	}
}

func ReauthRequired(onReauth func()) Spec {
	return Spec{
		Severity:   Warning,
		Title:      "Re-authentication required",
		Message:    "Enter your password to continue where you left off.",
		Persistent: true,
		Actions:    []Action{{Label: "Authenticate", Primary: true, Handler: onReauth}},
	}
}

func SessionRecovered() Spec {
	return Spec{
		Severity: Success,
		Title:    "Session recovered",
		Message:  "You can continue where you left off.",
		Duration: 5 * time.Second,
	}
}

func AccessDenied() Spec {
	return Spec{
		Severity: Error,
		Title:    "Access denied",
		Message:  "You do not have permission to perform this action.",
	}
}

func ServerError() Spec {
	return Spec{
		Severity: Error,
		Title:    "Server error",
		Message:  "The server could not complete the request. Try again later.",
		Duration: 8 * time.Second,
	}
}

func RefreshInProgress() Spec {
	return Spec{
		Severity: Info,
		Title:    "Renewing session",
		Message:  "Trying to renew your session...",
		Duration: 2 * time.Second,
	}
}

func RefreshAttemptFailed(attempt, max int) Spec {
	return Spec{
		Severity: Warning,
		Title:    "Renewal failed",
		Message:  fmt.Sprintf("Attempt %d of %d failed.", attempt, max),
		Duration: 4 * time.Second,
	}
}
