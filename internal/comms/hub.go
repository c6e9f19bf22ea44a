// Package comms turns plan directives into dispatched communications.
//
// The hub owns the per-tick dedup set, the cross-tick cooldown map, the
// per-person email history rings, and the pending schedule. All of that
// state lives on one Hub instance constructed with an injected roster,
// project context, gateway, and id generator, so independent simulations
// never share state.
//
// Per tick the hub moves through three phases: collecting (ResetTickSends
// has cleared the dedup set, scheduling appends entries), dispatching
// (DispatchScheduled validates and sends everything due), and settled
// (the dedup set survives until the next tick's reset).
package comms

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/voxline/workday/internal/balance"
	"github.com/voxline/workday/internal/model"
)

// Config carries the hub's tunables.
type Config struct {
	Layout        model.TickLayout
	CooldownTicks int64

	// ExternalStakeholders are the only non-roster addresses a target
	// may resolve to.
	ExternalStakeholders []string
}

// Hub schedules and dispatches outbound communications.
//
// Not goroutine-safe across phases by design intent: the engine
// serializes all scheduling and dispatch behind its advance-scope lock.
// The internal mutex still guards every entry point so that read-only
// callers (status queries, tests) cannot observe torn state.
type Hub struct {
	mu       sync.Mutex
	cfg      Config
	roster   *model.Roster
	external map[string]bool
	projects ProjectContext
	gateway  Gateway
	ids      IDGenerator
	balancer *balance.Balancer

	sent        map[string]bool  // per-tick dedup set
	lastSent    map[string]int64 // (sender, recipient) -> last successful send tick
	history     map[string]*historyRing
	pending     []model.ScheduledComm
	pendingKeys map[string]bool
	emailSeq    int64
}

// New constructs a hub. The balancer may be nil when participation
// recording is not wanted (some tests).
func New(cfg Config, roster *model.Roster, projects ProjectContext, gateway Gateway, ids IDGenerator, balancer *balance.Balancer) *Hub {
	external := make(map[string]bool, len(cfg.ExternalStakeholders))
	for _, addr := range cfg.ExternalStakeholders {
		external[normalizeAddress(addr)] = true
	}
	return &Hub{
		cfg:         cfg,
		roster:      roster,
		external:    external,
		projects:    projects,
		gateway:     gateway,
		ids:         ids,
		balancer:    balancer,
		sent:        make(map[string]bool),
		lastSent:    make(map[string]int64),
		history:     make(map[string]*historyRing),
		pendingKeys: make(map[string]bool),
	}
}

// SetRoster swaps the roster, used by config hot reload. Cooldowns,
// history, and pending entries are kept; entries whose people vanished
// fail target resolution at dispatch.
func (h *Hub) SetRoster(roster *model.Roster) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.roster = roster
}

// normalizeAddress canonicalizes a textual target for exact matching:
// NFC normalization first (plan text comes from a generation service and
// may mix composed and decomposed forms), then case folding.
func normalizeAddress(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}

// groupKeywords route to the sender's active project chat room.
var groupKeywords = map[string]bool{
	"team":     true,
	"project":  true,
	"group":    true,
	"everyone": true,
}

func isGroupTarget(normalized string) bool {
	for _, f := range strings.Fields(normalized) {
		if groupKeywords[f] {
			return true
		}
	}
	return false
}

// ResetTickSends clears the per-tick dedup set. Must run exactly once at
// each tick boundary, before any scheduling or dispatch for that tick.
// Cooldown state deliberately survives; it is cross-tick by definition.
func (h *Hub) ResetTickSends() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = make(map[string]bool)
}

// CanSend reports whether a communication with this exact shape may be
// sent at the given tick: false if the identical tuple already went out
// this tick, or if any (sender, recipient) pair is still inside its
// cooldown window. Sending is allowed exactly at lastSent+CooldownTicks.
func (h *Hub) CanSend(tick int64, channel model.Channel, senderID string, recipients []string, subject, body string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.canSendLocked(tick, channel, senderID, recipients, subject, body)
}

func (h *Hub) canSendLocked(tick int64, channel model.Channel, senderID string, recipients []string, subject, body string) bool {
	if h.sent[dedupKey(tick, channel, senderID, recipients, subject, body)] {
		return false
	}
	for _, r := range recipients {
		if last, ok := h.lastSent[pairKey(senderID, r)]; ok && tick < last+h.cfg.CooldownTicks {
			return false
		}
	}
	return true
}

func (h *Hub) recordSendLocked(tick int64, channel model.Channel, senderID string, recipients []string, subject, body string) {
	h.sent[dedupKey(tick, channel, senderID, recipients, subject, body)] = true
	for _, r := range recipients {
		h.lastSent[pairKey(senderID, r)] = tick
	}
}

func dedupKey(tick int64, channel model.Channel, senderID string, recipients []string, subject, body string) string {
	sorted := make([]string, len(recipients))
	copy(sorted, recipients)
	sort.Strings(sorted)
	return fmt.Sprintf("%d\x1f%s\x1f%s\x1f%s\x1f%s\x1f%s",
		tick, channel, senderID, strings.Join(sorted, ","), subject, body)
}

func pairKey(senderID, recipient string) string {
	return senderID + "\x1f" + recipient
}

// ScheduleFromPlan extracts directives from free-form plan text and
// schedules them for the current simulated day. Only strictly-future
// times within the day are kept; past or malformed lines are dropped
// with a debug log, never an error. Returns how many entries were added.
func (h *Hub) ScheduleFromPlan(personID, planText string, nowTick int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	day := h.cfg.Layout.Day(nowTick)
	added := 0
	for _, line := range strings.Split(planText, "\n") {
		trimmed := strings.TrimSpace(line)
		if !looksLikeDirective(trimmed) {
			continue // prose line, not a directive
		}
		d, err := ParseDirective(trimmed)
		if err != nil {
			slog.Debug("directive dropped: malformed", "person", personID, "line", trimmed, "error", err)
			continue
		}
		tick, ok := h.cfg.Layout.TickAt(day, d.Hour, d.Minute)
		if !ok || tick <= nowTick {
			slog.Debug("directive dropped: not strictly in the future today",
				"person", personID, "hour", d.Hour, "minute", d.Minute, "now", nowTick)
			continue
		}

		comm := model.ScheduledComm{
			PersonID:  personID,
			Tick:      tick,
			Targets:   []string{d.Target},
			CC:        d.CC,
			BCC:       d.BCC,
			Subject:   d.Subject,
			Body:      d.Body,
			ReplyToID: d.ReplyRef,
		}
		switch d.Kind {
		case DirectiveChat:
			comm.Channel = model.ChannelChat
		default:
			comm.Channel = model.ChannelEmail
		}
		if h.addPendingLocked(comm) {
			added++
		}
	}
	return added
}

// looksLikeDirective cheaply distinguishes directive lines from prose so
// that ordinary plan sentences do not spam the debug log.
func looksLikeDirective(line string) bool {
	return strings.HasPrefix(line, "Email ") ||
		strings.HasPrefix(line, "Chat ") ||
		strings.HasPrefix(line, "Reply ")
}

// ScheduleStructured accepts a pre-structured communication from the
// generation service and schedules it for the current tick.
func (h *Hub) ScheduleStructured(comm model.ScheduledComm, nowTick int64) error {
	if !comm.Channel.Valid() {
		return fmt.Errorf("structured comm: unknown channel %q", comm.Channel)
	}
	if len(comm.Targets) == 0 {
		return fmt.Errorf("structured comm: no targets")
	}
	if comm.Body == "" {
		return fmt.Errorf("structured comm: empty body")
	}
	if comm.Tick < nowTick {
		comm.Tick = nowTick
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.addPendingLocked(comm)
	return nil
}

func pendingKey(comm model.ScheduledComm) string {
	return fmt.Sprintf("%s\x1f%d\x1f%s\x1f%s\x1f%s\x1f%s\x1f%s",
		comm.PersonID, comm.Tick, comm.Channel,
		strings.Join(comm.Targets, ","), comm.Subject, comm.Body, comm.ReplyToID)
}

// addPendingLocked appends a scheduled entry unless an exact duplicate is
// already pending.
func (h *Hub) addPendingLocked(comm model.ScheduledComm) bool {
	key := pendingKey(comm)
	if h.pendingKeys[key] {
		return false
	}
	h.pendingKeys[key] = true
	h.pending = append(h.pending, comm)
	return true
}

// PendingCount returns the number of scheduled-but-undispatched entries.
func (h *Hub) PendingCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// recipientKind distinguishes how a resolved target is delivered.
type recipientKind int

const (
	recipientPerson recipientKind = iota + 1
	recipientStakeholder
	recipientRoom
)

// recipient is one resolved delivery target.
type recipient struct {
	kind    recipientKind
	person  model.Person
	address string // normalized email/handle, stakeholder address, or room slug
}

// resolveTarget resolves a textual target against the roster, the
// configured external stakeholders, and the group keywords. Anything
// else is rejected: a bare first name or an invented address is never
// guessed or fuzzy-matched.
func (h *Hub) resolveTarget(sender model.Person, target string) (recipient, bool) {
	n := normalizeAddress(target)
	if n == "" {
		return recipient{}, false
	}

	if isGroupTarget(n) {
		if room, ok := h.projects.ActiveProjectRoom(sender.ID); ok {
			return recipient{kind: recipientRoom, address: room}, true
		}
		// No active project room: fall back to a direct message to the
		// sender's coordinator.
		if coord, ok := h.roster.Coordinator(sender); ok {
			return recipient{kind: recipientPerson, person: coord, address: normalizeAddress(coord.Email)}, true
		}
		return recipient{}, false
	}

	for _, p := range h.roster.All() {
		if normalizeAddress(p.Email) == n || normalizeAddress(p.Handle) == n {
			return recipient{kind: recipientPerson, person: p, address: normalizeAddress(p.Email)}, true
		}
	}
	if h.external[n] {
		return recipient{kind: recipientStakeholder, address: n}, true
	}
	return recipient{}, false
}

// resolvedComm is a due entry that survived resolution and threading.
type resolvedComm struct {
	comm    model.ScheduledComm
	sender  model.Person
	to      []recipient
	cc, bcc []string
	// ccSuggested marks cc as heuristic rather than directed by the plan.
	ccSuggested bool
}

// DispatchScheduled sends every entry due at tick, applying target
// resolution, dedup/cooldown checks, routing, mirrored-DM suppression,
// and threading in that order. A single failed send never aborts the
// rest of the batch. Returns the number of emails and chats dispatched.
func (h *Hub) DispatchScheduled(ctx context.Context, tick int64) (emailsSent, chatsSent int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var due, rest []model.ScheduledComm
	for _, c := range h.pending {
		switch {
		case c.Tick == tick:
			due = append(due, c)
		case c.Tick > tick:
			rest = append(rest, c)
		default:
			slog.Debug("scheduled comm dropped: tick already passed", "person", c.PersonID, "tick", c.Tick, "now", tick)
		}
	}
	h.pending = rest
	h.pendingKeys = make(map[string]bool, len(rest))
	for _, c := range rest {
		h.pendingKeys[pendingKey(c)] = true
	}

	resolved := h.resolveBatch(due)
	mirror := mirrorIndex(resolved)
	day := h.cfg.Layout.Day(tick)

	for _, rc := range resolved {
		e, c := h.dispatchOne(ctx, tick, day, rc, mirror)
		emailsSent += e
		chatsSent += c
	}
	return emailsSent, chatsSent
}

// resolveBatch runs resolution and reply threading over the due entries.
// Entries that fail validation are dropped here with a warning.
func (h *Hub) resolveBatch(due []model.ScheduledComm) []resolvedComm {
	var out []resolvedComm
	for _, comm := range due {
		sender, ok := h.roster.ByID(comm.PersonID)
		if !ok {
			slog.Warn("comm dropped: sender not in roster", "person", comm.PersonID)
			continue
		}

		if comm.ReplyToID != "" {
			rec, ok := h.historyFor(sender.ID).find(comm.ReplyToID)
			if !ok {
				slog.Warn("reply dropped: email id not in recent history",
					"person", sender.ID, "email_id", comm.ReplyToID)
				continue
			}
			comm.ThreadID = rec.ThreadID
			comm.Targets = []string{rec.From}
		}

		rc := resolvedComm{comm: comm, sender: sender}
		for _, target := range comm.Targets {
			r, ok := h.resolveTarget(sender, target)
			if !ok {
				slog.Warn("comm target dropped: unresolvable", "person", sender.ID, "target", target)
				continue
			}
			rc.to = append(rc.to, r)
		}
		if len(rc.to) == 0 {
			slog.Warn("comm dropped: no resolvable targets", "person", sender.ID, "targets", comm.Targets)
			continue
		}

		for _, cc := range comm.CC {
			if r, ok := h.resolveTarget(sender, cc); ok && r.kind != recipientRoom {
				rc.cc = append(rc.cc, r.address)
			} else {
				slog.Warn("cc dropped: unresolvable", "person", sender.ID, "target", cc)
			}
		}
		for _, bcc := range comm.BCC {
			if r, ok := h.resolveTarget(sender, bcc); ok && r.kind != recipientRoom {
				rc.bcc = append(rc.bcc, r.address)
			} else {
				slog.Warn("bcc dropped: unresolvable", "person", sender.ID, "target", bcc)
			}
		}

		if comm.Channel == model.ChannelEmail && len(rc.cc) == 0 && len(comm.CC) == 0 {
			rc.cc = h.suggestCC(rc)
			rc.ccSuggested = len(rc.cc) > 0
		}
		out = append(out, rc)
	}
	return out
}

// suggestCC proposes heuristic CCs for an email with no explicit ones:
// the sender's coordinator, plus one peer sharing the sender's role.
// Additive only; explicit CC values are never overridden.
func (h *Hub) suggestCC(rc resolvedComm) []string {
	addressed := make(map[string]bool)
	addressed[normalizeAddress(rc.sender.Email)] = true
	for _, r := range rc.to {
		addressed[r.address] = true
	}

	var cc []string
	if coord, ok := h.roster.Coordinator(rc.sender); ok {
		if addr := normalizeAddress(coord.Email); !addressed[addr] {
			cc = append(cc, addr)
			addressed[addr] = true
		}
	}
	if rc.sender.Role != "" {
		for _, p := range h.roster.Active() {
			if p.ID == rc.sender.ID || p.Role != rc.sender.Role {
				continue
			}
			if addr := normalizeAddress(p.Email); !addressed[addr] {
				cc = append(cc, addr)
				break
			}
		}
	}
	return cc
}

// mirrorKey builds an unordered-pair key so the suppression policy can
// change without touching detection.
func mirrorKey(handleA, handleB, body string) string {
	if handleA > handleB {
		handleA, handleB = handleB, handleA
	}
	return handleA + "\x1f" + handleB + "\x1f" + body
}

// mirrorIndex records, per unordered DM pair and body, which directions
// are present in this tick's batch.
func mirrorIndex(batch []resolvedComm) map[string]map[string]bool {
	idx := make(map[string]map[string]bool)
	for _, rc := range batch {
		if rc.comm.Channel != model.ChannelChat {
			continue
		}
		for _, r := range rc.to {
			if r.kind != recipientPerson {
				continue
			}
			key := mirrorKey(rc.sender.Handle, r.person.Handle, rc.comm.Body)
			if idx[key] == nil {
				idx[key] = make(map[string]bool)
			}
			idx[key][rc.sender.Handle] = true
		}
	}
	return idx
}

// dispatchOne sends a single resolved communication. Returns the email
// and chat counts it contributed.
func (h *Hub) dispatchOne(ctx context.Context, tick, day int64, rc resolvedComm, mirror map[string]map[string]bool) (emailsSent, chatsSent int) {
	recipients := make([]string, 0, len(rc.to)+len(rc.cc)+len(rc.bcc))
	for _, r := range rc.to {
		recipients = append(recipients, recipientCooldownKey(r))
	}
	// Only plan-directed recipients enter the dedup and cooldown sets.
	// A heuristic CC must not start a cooldown that would block a later
	// deliberate send to the same person.
	if !rc.ccSuggested {
		recipients = append(recipients, rc.cc...)
	}
	recipients = append(recipients, rc.bcc...)

	if !h.canSendLocked(tick, rc.comm.Channel, rc.sender.ID, recipients, rc.comm.Subject, rc.comm.Body) {
		slog.Debug("comm suppressed: dedup or cooldown", "person", rc.sender.ID, "tick", tick)
		return 0, 0
	}

	switch rc.comm.Channel {
	case model.ChannelEmail:
		if rc.to[0].kind == recipientRoom {
			// Group keyword on an email directive still routes to the room.
			return 0, h.sendRoom(ctx, tick, day, rc, recipients)
		}
		return h.sendEmail(ctx, tick, day, rc, recipients), 0
	case model.ChannelChat:
		if rc.to[0].kind == recipientRoom {
			return 0, h.sendRoom(ctx, tick, day, rc, recipients)
		}
		return 0, h.sendDMs(ctx, tick, day, rc, recipients, mirror)
	default:
		slog.Warn("comm dropped: unknown channel", "channel", rc.comm.Channel)
		return 0, 0
	}
}

func recipientCooldownKey(r recipient) string {
	if r.kind == recipientRoom {
		return "room:" + r.address
	}
	return r.address
}

func (h *Hub) sendEmail(ctx context.Context, tick, day int64, rc resolvedComm, recipients []string) int {
	threadID := rc.comm.ThreadID
	if threadID == "" {
		threadID = h.ids.Generate()
	}
	var to []string
	for _, r := range rc.to {
		to = append(to, r.address)
	}

	if err := h.gateway.SendEmail(ctx, rc.sender.Email, to, rc.cc, rc.bcc, rc.comm.Subject, rc.comm.Body, threadID); err != nil {
		slog.Error("email send failed", "person", rc.sender.ID, "to", to, "error", err)
		return 0
	}

	h.emailSeq++
	record := model.EmailRecord{
		EmailID:  fmt.Sprintf("email-%d", h.emailSeq),
		From:     rc.sender.Email,
		To:       strings.Join(to, ","),
		Subject:  rc.comm.Subject,
		ThreadID: threadID,
		SentTick: tick,
	}
	h.historyFor(rc.sender.ID).add(record)
	for _, r := range rc.to {
		if r.kind == recipientPerson {
			h.historyFor(r.person.ID).add(record)
		}
	}

	h.recordSendLocked(tick, model.ChannelEmail, rc.sender.ID, recipients, rc.comm.Subject, rc.comm.Body)
	if h.balancer != nil {
		h.balancer.Record(ctx, rc.sender.ID, day, model.ChannelEmail)
	}
	return 1
}

func (h *Hub) sendDMs(ctx context.Context, tick, day int64, rc resolvedComm, recipients []string, mirror map[string]map[string]bool) int {
	sent := 0
	for _, r := range rc.to {
		var handle string
		switch r.kind {
		case recipientPerson:
			handle = r.person.Handle
			directions := mirror[mirrorKey(rc.sender.Handle, handle, rc.comm.Body)]
			if len(directions) > 1 && rc.sender.Handle > handle {
				// Both sides scheduled the identical message this tick;
				// only the lexicographically smaller handle's copy goes out.
				slog.Debug("dm suppressed: mirrored duplicate", "from", rc.sender.Handle, "to", handle)
				continue
			}
		case recipientStakeholder:
			handle = r.address
		default:
			continue
		}

		if err := h.gateway.SendDM(ctx, rc.sender.Handle, handle, rc.comm.Body); err != nil {
			slog.Error("dm send failed", "person", rc.sender.ID, "to", handle, "error", err)
			continue
		}
		sent++
	}
	if sent == 0 {
		return 0
	}

	h.recordSendLocked(tick, model.ChannelChat, rc.sender.ID, recipients, rc.comm.Subject, rc.comm.Body)
	if h.balancer != nil {
		h.balancer.Record(ctx, rc.sender.ID, day, model.ChannelChat)
	}
	return sent
}

func (h *Hub) sendRoom(ctx context.Context, tick, day int64, rc resolvedComm, recipients []string) int {
	room := rc.to[0].address
	if err := h.gateway.SendRoomMessage(ctx, room, rc.sender.Handle, rc.comm.Body); err != nil {
		slog.Error("room send failed", "person", rc.sender.ID, "room", room, "error", err)
		return 0
	}
	h.recordSendLocked(tick, model.ChannelChat, rc.sender.ID, recipients, rc.comm.Subject, rc.comm.Body)
	if h.balancer != nil {
		h.balancer.Record(ctx, rc.sender.ID, day, model.ChannelChat)
	}
	return 1
}

func (h *Hub) historyFor(personID string) *historyRing {
	ring, ok := h.history[personID]
	if !ok {
		ring = &historyRing{}
		h.history[personID] = ring
	}
	return ring
}

// HistoryFor returns a copy of a person's recent email records, oldest
// first. Read-only diagnostic accessor.
func (h *Hub) HistoryFor(personID string) []model.EmailRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.historyFor(personID).all()
}
