package main

// Plain-text renderings: the raw dashboard and the alerts.txt agent protocol

import (
	"fmt"
	"strings"

	"github.com/function61/lovebeat/pkg/lbdomain"
	"github.com/function61/lovebeat/pkg/lbstate"
)

const alertsTxtVersion = "1"

// pinterval formats seconds as at most two units, dropping seconds once they stop
// mattering: "now", "59s", "4m59s", "1h1m", "9d1h", "10d"
func pinterval(seconds int64) string {
	if seconds == 0 {
		return "now"
	}

	parts := []string{}

	days := seconds / 86400
	minutes := seconds / 60

	i := seconds
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
		i %= 86400
	}
	if days < 10 && i >= 3600 {
		parts = append(parts, fmt.Sprintf("%dh", i/3600))
		i %= 3600
	}
	if days == 0 && i >= 60 {
		parts = append(parts, fmt.Sprintf("%dm", i/60))
		i %= 60
	}
	if minutes < 5 && i > 0 {
		parts = append(parts, fmt.Sprintf("%ds", i))
	}

	if len(parts) > 2 {
		parts = parts[:2]
	}

	return strings.Join(parts, "")
}

func statusTag(status lbdomain.Status) string {
	switch status {
	case lbdomain.StatusOk:
		return "OK"
	case lbdomain.StatusWarning:
		return "WARN"
	case lbdomain.StatusError:
		return "ERROR"
	case lbdomain.StatusMaint:
		return "MAINT"
	default:
		return strings.ToUpper(string(status))
	}
}

// summary line followed by one "[STATUS] id" line per service
func renderRawDashboard(services []lbstate.ServiceView) string {
	warnings, errors := 0, 0
	for _, service := range services {
		switch service.State.Status {
		case lbdomain.StatusWarning:
			warnings++
		case lbdomain.StatusError:
			errors++
		}
	}

	out := &strings.Builder{}

	if warnings == 0 && errors == 0 {
		fmt.Fprintln(out, "all good")
	} else {
		fmt.Fprintf(out, "DOWN: %d error(s), %d warning(s)\n", errors, warnings)
	}

	for _, service := range services {
		fmt.Fprintf(
			out,
			"[%s] %s (last beat %s)\n",
			statusTag(service.State.Status),
			service.Id,
			ago(service.State.Last.Delta))
	}

	return out.String()
}

func ago(seconds int64) string {
	if seconds == 0 {
		return "now"
	}

	return pinterval(seconds) + " ago"
}

func alertSubject(item lbstate.FeedItem) string {
	return fmt.Sprintf("DOWN alert: %s is DOWN [#%d]", item.Service, item.IncidentId)
}

func alertMessage(item lbstate.FeedItem) string {
	return fmt.Sprintf("%s is down with %s status.\n\nYours Sincerely\nLovebeat", item.Service, item.Severity)
}

func recoverySubject(item lbstate.FeedItem) string {
	return fmt.Sprintf("UP alert: %s is UP again [#%d]", item.Service, item.IncidentId)
}

func recoveryMessage(item lbstate.FeedItem) string {
	return fmt.Sprintf("%s is %s again.\n\nYours Sincerely\nLovebeat", item.Service, item.IncidentStatus)
}

// line protocol for agents that are happier with text than JSON. a recipient per line
// between TO and SUBJECT, the message body ends at EOF.
func renderAlertsTxt(feed []lbstate.FeedItem) string {
	out := &strings.Builder{}

	line := func(s string) {
		out.WriteString(s)
		out.WriteString("\n")
	}

	line(alertsTxtVersion)

	for _, item := range feed {
		line("SERVICE")
		line(item.Service)
		line("ALERTID")
		line(fmt.Sprintf("%d", item.IncidentId))
		line("TYPE")
		line(string(item.Severity))
		line("TO")
		for _, recipient := range item.Recipients {
			line(recipient)
		}
		line("SUBJECT")
		line(alertSubject(item))
		line("MESSAGE")
		line(alertMessage(item))
		line("EOF")
		line("ENDSERVICE")
	}

	line("ENDFILE")

	return out.String()
}
