package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/fgeck/gorenew/internal/models"
)

const (
	timestampLayout = "2006/01/02 15:04:05"
	maxPreview      = 200
)

// Field is one line of a notification.
type Field struct {
	Icon  string
	Label string
	Value string // already HTML-safe
}

// Message is a rendered notification.
type Message struct {
	Title     string
	Fields    []Field
	Timestamp string
}

// HTML returns the Telegram HTML text of the message.
func (m Message) HTML() string {
	var b strings.Builder
	b.WriteString(m.Title)
	b.WriteString("\n\n")
	for _, f := range m.Fields {
		fmt.Fprintf(&b, "%s %s: %s\n", f.Icon, f.Label, f.Value)
	}
	fmt.Fprintf(&b, "📅 Time: %s", m.Timestamp)
	return b.String()
}

// Render builds the message for an outcome. now is formatted in loc.
func Render(o models.RenewalOutcome, prefix string, now time.Time, loc *time.Location) Message {
	if loc == nil {
		loc = time.UTC
	}
	msg := Message{
		Title:     title(o.Kind, prefix),
		Timestamp: now.In(loc).Format(timestampLayout),
	}

	name := Field{"📛", "Server", escapeHTML(o.ServerName)}
	id := Field{"🆔", "ID", code(o.ServerID)}
	status := Field{"🚀", "Status", escapeHTML(statusText(o))}
	ip := Field{"🌐", "Egress IP", code(o.EgressIP)}
	hint := Field{"💡", "Message", escapeHTML(o.PortalMessage)}

	switch o.Kind {
	case models.OutcomeSuccess:
		msg.Fields = []Field{
			name, id,
			{"⏰", "Hours", fmt.Sprintf("%d ➔ %dh", o.Window.BeforeHours, o.Window.AfterHours)},
			status, hint, ip,
		}
	case models.OutcomeMaxedOut:
		msg.Fields = []Field{
			name, id,
			{"⏰", "Remaining", fmt.Sprintf("%dh", o.Window.AfterHours)},
			status, hint, ip,
		}
	case models.OutcomeCooldown:
		msg.Fields = []Field{
			name, id,
			{"⏳", "Cooldown", escapeHTML(o.Window.CooldownText)},
			{"📊", "Accumulated", fmt.Sprintf("%dh", o.Window.BeforeHours)},
			status,
		}
	case models.OutcomeNoEffect:
		if o.RawPreview != "" || o.ParseError != "" {
			msg.Fields = []Field{
				name,
				{"❌", "Parse failure", code(o.ParseError)},
				{"📄", "Response preview", code(Truncate(o.RawPreview, maxPreview))},
				{"⏰", "Remaining", fmt.Sprintf("%dh", o.Window.BeforeHours)},
				ip,
			}
		} else {
			msg.Fields = []Field{
				name, id, status,
				{"⏰", "Remaining", fmt.Sprintf("%dh", o.Window.BeforeHours)},
				hint, ip,
			}
		}
	default:
		msg.Fields = []Field{name}
		if o.ServerID != "" {
			msg.Fields = append(msg.Fields, id)
		}
		if o.ErrorKind != "" {
			msg.Fields = append(msg.Fields, Field{"🏷", "Kind", escapeHTML(o.ErrorKind)})
		}
		if o.FailedStep != "" {
			msg.Fields = append(msg.Fields, Field{"🧭", "Failed step", escapeHTML(o.FailedStep)})
		}
		msg.Fields = append(msg.Fields, Field{"❌", "Error", code(Truncate(o.ErrorDetail, maxPreview))})
		if o.Location != "" {
			msg.Fields = append(msg.Fields, Field{"📍", "Location", code(o.Location)})
		}
		msg.Fields = append(msg.Fields, Field{"🌐", "Proxy", escapeHTML(proxyText(o.ProxyMode))})
		if o.EgressIP != "" {
			msg.Fields = append(msg.Fields, ip)
		}
	}

	return msg
}

func title(kind models.OutcomeKind, prefix string) string {
	p := escapeHTML(prefix)
	if p != "" {
		p += " "
	}
	switch kind {
	case models.OutcomeSuccess:
		return fmt.Sprintf("🎉 <b>%srenewal succeeded</b>", p)
	case models.OutcomeMaxedOut:
		return fmt.Sprintf("🈵 <b>%slimit reached</b>", p)
	case models.OutcomeCooldown:
		return fmt.Sprintf("⏳ <b>%sstill on cooldown</b>", p)
	case models.OutcomeNoEffect:
		return fmt.Sprintf("⚠️ <b>%srenewal did not take effect</b>", p)
	case models.OutcomeError:
		return fmt.Sprintf("🚨 <b>%srun failed</b>", p)
	default:
		return fmt.Sprintf("📢 <b>%snotice</b>", p)
	}
}

func statusText(o models.RenewalOutcome) string {
	s := o.Status.String()
	if o.Status.Label == "" {
		s = models.StatusUnknown.Display().String()
	}
	if o.ServerStarted {
		s += " (start triggered)"
	}
	return s
}

func proxyText(mode string) string {
	if mode == "" || mode == "direct" {
		return "direct"
	}
	return "via " + mode
}

func code(s string) string {
	if s == "" {
		s = "-"
	}
	return "<code>" + escapeHTML(s) + "</code>"
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// escapeHTML escapes HTML special characters.
func escapeHTML(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '&':
			b.WriteString("&amp;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
