package comms

import (
	"fmt"
	"strings"
)

// DirectiveKind enumerates the scheduled-communication directive forms a
// plan may contain.
type DirectiveKind int

const (
	DirectiveEmail DirectiveKind = iota + 1
	DirectiveChat
	DirectiveReply
)

// String returns the keyword that introduces the directive in plan text.
func (k DirectiveKind) String() string {
	switch k {
	case DirectiveEmail:
		return "Email"
	case DirectiveChat:
		return "Chat"
	case DirectiveReply:
		return "Reply"
	default:
		return fmt.Sprintf("DirectiveKind(%d)", int(k))
	}
}

// Directive is one parsed scheduled-communication line:
//
//	<Email|Chat|Reply> at HH:MM to <target>[ cc <target>][ bcc <target>]: <subject> | <body>
//
// Chat directives carry no subject; the whole payload is the body. Reply
// directives address a bracketed email id ("[email-42]") instead of an
// address; the recipient and thread are resolved from history at
// dispatch time.
type Directive struct {
	Kind    DirectiveKind
	Hour    int
	Minute  int
	Target  string
	CC      []string
	BCC     []string
	Subject string
	Body    string

	// ReplyRef is the referenced email id for Reply directives, without
	// the brackets.
	ReplyRef string
}

// ParseDirective tokenizes a single plan line. The grammar is explicit
// and small on purpose: every malformed shape maps to a distinct error,
// which callers downgrade to a debug log and a dropped line.
func ParseDirective(line string) (Directive, error) {
	line = strings.TrimSpace(line)

	// The header/payload boundary is the first ": ". Times ("10:30")
	// contain a colon but never a colon-space, so they cannot split the
	// header early. Subjects may contain further colons; only the first
	// boundary counts.
	header, payload, found := strings.Cut(line, ": ")
	if !found {
		return Directive{}, fmt.Errorf("no payload separator %q", ": ")
	}

	fields := strings.Fields(header)
	if len(fields) < 5 {
		return Directive{}, fmt.Errorf("header too short: %q", header)
	}

	var d Directive
	switch fields[0] {
	case "Email":
		d.Kind = DirectiveEmail
	case "Chat":
		d.Kind = DirectiveChat
	case "Reply":
		d.Kind = DirectiveReply
	default:
		return Directive{}, fmt.Errorf("unknown directive kind %q", fields[0])
	}

	if fields[1] != "at" {
		return Directive{}, fmt.Errorf("expected %q, got %q", "at", fields[1])
	}
	hour, minute, err := parseClockTime(fields[2])
	if err != nil {
		return Directive{}, err
	}
	d.Hour, d.Minute = hour, minute

	if fields[3] != "to" {
		return Directive{}, fmt.Errorf("expected %q, got %q", "to", fields[3])
	}

	// Targets: tokens accumulate into the current list; "cc" and "bcc"
	// keywords switch lists. Multi-word targets ("the team") join with
	// spaces.
	var target, cc, bcc []string
	current := &target
	for _, tok := range fields[4:] {
		switch tok {
		case "cc":
			cc = append(cc, "")
			current = &cc
		case "bcc":
			bcc = append(bcc, "")
			current = &bcc
		default:
			if len(*current) == 0 {
				*current = append(*current, tok)
			} else {
				last := len(*current) - 1
				if (*current)[last] == "" {
					(*current)[last] = tok
				} else {
					(*current)[last] += " " + tok
				}
			}
		}
	}
	if len(target) == 0 || target[0] == "" {
		return Directive{}, fmt.Errorf("missing target")
	}
	d.Target = strings.Join(target, " ")
	for _, c := range cc {
		if c == "" {
			return Directive{}, fmt.Errorf("cc keyword without target")
		}
		d.CC = append(d.CC, c)
	}
	for _, b := range bcc {
		if b == "" {
			return Directive{}, fmt.Errorf("bcc keyword without target")
		}
		d.BCC = append(d.BCC, b)
	}

	if d.Kind == DirectiveReply {
		ref, ok := strings.CutPrefix(d.Target, "[")
		if !ok {
			return Directive{}, fmt.Errorf("reply target %q is not a bracketed email id", d.Target)
		}
		ref, ok = strings.CutSuffix(ref, "]")
		if !ok || ref == "" {
			return Directive{}, fmt.Errorf("reply target %q is not a bracketed email id", d.Target)
		}
		d.ReplyRef = ref
	}

	// Payload: chat is body-only; email and reply split subject | body.
	payload = strings.TrimSpace(payload)
	if d.Kind == DirectiveChat {
		if payload == "" {
			return Directive{}, fmt.Errorf("empty body")
		}
		d.Body = payload
		return d, nil
	}
	subject, body, found := strings.Cut(payload, " | ")
	if !found {
		return Directive{}, fmt.Errorf("missing subject/body separator %q", " | ")
	}
	d.Subject = strings.TrimSpace(subject)
	d.Body = strings.TrimSpace(body)
	if d.Subject == "" {
		return Directive{}, fmt.Errorf("empty subject")
	}
	if d.Body == "" {
		return Directive{}, fmt.Errorf("empty body")
	}
	return d, nil
}

// parseClockTime parses a strict H:MM or HH:MM 24-hour time.
func parseClockTime(s string) (hour, minute int, err error) {
	h, m, found := strings.Cut(s, ":")
	if !found {
		return 0, 0, fmt.Errorf("malformed time %q", s)
	}
	hour, err = parseDigits(h, 1, 2)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed time %q: %w", s, err)
	}
	minute, err = parseDigits(m, 2, 2)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed time %q: %w", s, err)
	}
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q out of range", s)
	}
	return hour, minute, nil
}

// parseDigits parses a bounded run of ASCII digits. strconv would accept
// signs, underscores, and leading whitespace; the grammar does not.
func parseDigits(s string, minLen, maxLen int) (int, error) {
	if len(s) < minLen || len(s) > maxLen {
		return 0, fmt.Errorf("expected %d-%d digits, got %q", minLen, maxLen, s)
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit %q", r)
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}
