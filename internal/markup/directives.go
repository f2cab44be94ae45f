package markup

import (
	"fmt"
	"strconv"
	"strings"

	"forager/internal/logging"
)

// A directive collapses a system-event element and everything nested in it
// into one sentence.
type directive func(p *Parser, n *node) string

var directives = map[string]directive{
	"addmember":              memberAdded,
	"deletemember":           memberRemoved,
	"topicupdate":            topicUpdated,
	"historydisclosedupdate": historyDisclosureUpdated,
	"joiningenabledupdate":   joiningUpdated,
	"files":                  filesShared,
	"contacts":               contactsShared,
	"partlist":               callParticipants,
	"sms":                    smsSent,
	"uriobject":              mediaShared,
}

// participantLabel strips the numeric network prefix of an identity such as
// "8:live:alice".
func participantLabel(identity string) string {
	identity = strings.TrimSpace(identity)
	if i := strings.IndexByte(identity, ':'); i > 0 {
		if _, err := strconv.Atoi(identity[:i]); err == nil {
			return identity[i+1:]
		}
	}
	return identity
}

func initiator(n *node) string {
	if who := participantLabel(n.textOf("initiator")); who != "" {
		return who
	}
	return "Someone"
}

func targets(n *node) []string {
	var out []string
	for _, t := range n.all("target") {
		if label := participantLabel(t.text); label != "" {
			out = append(out, label)
		}
	}
	return out
}

func memberAdded(_ *Parser, n *node) string {
	who := initiator(n)
	added := targets(n)
	if len(added) == 0 {
		return who + " added a member"
	}
	if len(added) == 1 && added[0] == who {
		return who + " joined the conversation"
	}
	return who + " added " + strings.Join(added, ", ")
}

func memberRemoved(_ *Parser, n *node) string {
	who := initiator(n)
	removed := targets(n)
	if len(removed) == 0 {
		return who + " removed a member"
	}
	if len(removed) == 1 && removed[0] == who {
		return who + " left the conversation"
	}
	return who + " removed " + strings.Join(removed, ", ")
}

func topicUpdated(_ *Parser, n *node) string {
	topic := n.textOf("value")
	if topic == "" {
		return initiator(n) + " cleared the topic"
	}
	return fmt.Sprintf("%s changed the topic to %q", initiator(n), topic)
}

func enabled(n *node) bool {
	v, err := strconv.ParseBool(n.textOf("value"))
	return err == nil && v
}

func historyDisclosureUpdated(_ *Parser, n *node) string {
	if enabled(n) {
		return initiator(n) + " made the conversation history visible to new members"
	}
	return initiator(n) + " hid the conversation history from new members"
}

func joiningUpdated(_ *Parser, n *node) string {
	if enabled(n) {
		return initiator(n) + " enabled joining the conversation by link"
	}
	return initiator(n) + " disabled joining the conversation by link"
}

func filesShared(_ *Parser, n *node) string {
	var names []string
	for _, f := range n.all("file") {
		name := strings.TrimSpace(f.text)
		if name == "" {
			continue
		}
		if size, err := strconv.ParseInt(f.attr("size"), 10, 64); err == nil && size > 0 {
			name = fmt.Sprintf("%s (%d bytes)", name, size)
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		if alt := n.attr("alt"); alt != "" {
			return "Sent files: " + alt
		}
		return "Sent files"
	}
	if len(names) == 1 {
		return "Sent file " + names[0]
	}
	return "Sent files " + strings.Join(names, ", ")
}

func contactsShared(_ *Parser, n *node) string {
	var labels []string
	for _, c := range n.all("c") {
		name := c.attr("f")
		id := c.attr("s")
		if id == "" {
			id = c.attr("p")
		}
		switch {
		case name != "" && id != "":
			labels = append(labels, name+" ("+id+")")
		case name != "":
			labels = append(labels, name)
		case id != "":
			labels = append(labels, id)
		}
	}
	if len(labels) == 0 {
		return "Shared a contact"
	}
	if len(labels) == 1 {
		return "Shared contact " + labels[0]
	}
	return "Shared contacts " + strings.Join(labels, ", ")
}

var callEvents = map[string]string{
	"started": "Call started",
	"ended":   "Call ended",
	"missed":  "Missed call",
}

// callParticipants summarizes a call participant list. Unknown list types
// are reported once and summarized generically.
func callParticipants(p *Parser, n *node) string {
	kind := strings.ToLower(n.attr("type"))
	sentence, ok := callEvents[kind]
	if !ok {
		p.unknownTags.Warn(p.logger, "partlist:"+kind, "unsupported call participant list type",
			logging.String("type", kind))
		sentence = "Call event"
		if kind != "" {
			sentence += " (" + kind + ")"
		}
	}

	var (
		parts   []string
		longest int64
	)
	for _, part := range n.all("part") {
		id := participantLabel(part.attr("identity"))
		name := part.textOf("name")
		switch {
		case name != "" && id != "" && name != id:
			parts = append(parts, name+" ("+id+")")
		case name != "":
			parts = append(parts, name)
		case id != "":
			parts = append(parts, id)
		}
		if d, err := strconv.ParseInt(part.textOf("duration"), 10, 64); err == nil && d > longest {
			longest = d
		}
	}
	if len(parts) > 0 {
		sentence += " with " + strings.Join(parts, ", ")
	}
	if longest > 0 {
		sentence += fmt.Sprintf(", lasting %02d:%02d:%02d", longest/3600, (longest/60)%60, longest%60)
	}
	return sentence
}

func smsSent(_ *Parser, n *node) string {
	var to []string
	for _, t := range n.child("targets").all("target") {
		if v := strings.TrimSpace(t.text); v != "" {
			to = append(to, v)
		}
	}
	var body strings.Builder
	for _, chunk := range n.child("body").all("chunk") {
		body.WriteString(chunk.text)
	}
	text := strings.TrimSpace(body.String())
	if text == "" {
		text = n.attr("alt")
	}

	sentence := "SMS"
	if len(to) > 0 {
		sentence += " to " + strings.Join(to, ", ")
	}
	if text != "" {
		sentence += ": " + text
	}
	return sentence
}

func mediaShared(_ *Parser, n *node) string {
	kind, _, _ := strings.Cut(n.attr("type"), ".")
	kind = strings.ToLower(kind)
	if kind == "" {
		kind = "media"
	}
	name := n.child("originalname").attr("v")
	if name == "" {
		name = n.textOf("title")
	}
	if name == "" {
		name = n.attr("uri")
	}
	if name == "" {
		return "Shared " + kind
	}
	return "Shared " + kind + " " + name
}
