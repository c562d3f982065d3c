package core

import (
	"context"
	"log"
	"strings"
	"time"
)

// Reasons recorded when a quest terminates without a result.
const (
	ReasonNoAgents     = "no agents available"
	ReasonPhaseTimeout = "phase timeout"
)

// Coordinator drives quests through the scout -> verify -> synthesize
// pipeline. All quest state lives behind a single event loop: intake jobs,
// task results, timer firings and snapshot requests are serialized onto one
// channel, so the active-quest map has exactly one writer and per-quest
// progress is strictly ordered.
type Coordinator struct {
	cfg     Config
	ranker  *Ranker
	sink    CompletionSink
	intake  *IntakeQueue
	metrics *Metrics

	events chan coordEvent
	quests map[string]*Quest
	done   chan struct{}
}

type coordEvent interface{}

type taskResultEvent struct {
	msg TaskResultMessage
}

type phaseTimeoutEvent struct {
	questID string
	phase   QuestStatus
}

// candidatesReadyEvent carries a finished reputation lookup back into the
// loop. The lookup runs in its own goroutine so a slow registry never stalls
// other quests' events.
type candidatesReadyEvent struct {
	questID    string
	phase      QuestStatus
	candidates []Candidate
}

type snapshotRequest struct {
	reply chan int
}

type questStatusRequest struct {
	questID string
	reply   chan questStatusReply
}

type questStatusReply struct {
	status QuestStatus
	found  bool
}

// NewCoordinator wires the state machine to its collaborators. metrics may
// be nil.
func NewCoordinator(cfg Config, ranker *Ranker, sink CompletionSink, intake *IntakeQueue, metrics *Metrics) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		ranker:  ranker,
		sink:    sink,
		intake:  intake,
		metrics: metrics,
		events:  make(chan coordEvent, 100),
		quests:  make(map[string]*Quest),
		done:    make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled. It is the only goroutine
// that touches the active-quest map.
func (c *Coordinator) Run(ctx context.Context) {
	defer close(c.done)
	log.Printf("[Coordinator] Event loop started")
	for {
		select {
		case <-ctx.Done():
			c.stopAllTimers()
			log.Printf("[Coordinator] Event loop stopped: %v", ctx.Err())
			return
		case sub := <-c.intake.Jobs():
			c.startQuest(ctx, sub)
		case evt := <-c.events:
			switch e := evt.(type) {
			case taskResultEvent:
				c.handleResult(ctx, e.msg)
			case candidatesReadyEvent:
				c.handleCandidates(e)
			case phaseTimeoutEvent:
				c.handleTimeout(e)
			case snapshotRequest:
				e.reply <- len(c.quests)
			case questStatusRequest:
				if q, ok := c.quests[e.questID]; ok {
					e.reply <- questStatusReply{status: q.Status, found: true}
				} else {
					e.reply <- questStatusReply{found: false}
				}
			}
		}
	}
}

// HandleTaskResult feeds an inbound task result into the event loop. Safe
// to call from any goroutine.
func (c *Coordinator) HandleTaskResult(msg TaskResultMessage) {
	select {
	case c.events <- taskResultEvent{msg: msg}:
	case <-c.done:
	}
}

// ActiveQuestCount returns the number of quests in a non-terminal phase.
// Returns zero once the loop has shut down.
func (c *Coordinator) ActiveQuestCount() int {
	reply := make(chan int, 1)
	select {
	case c.events <- snapshotRequest{reply: reply}:
		return <-reply
	case <-c.done:
		return 0
	}
}

// QuestStatus reports the phase of an active quest. Terminal quests are
// removed from the active set immediately, so a completed or failed quest
// reports not-found here.
func (c *Coordinator) QuestStatus(questID string) (QuestStatus, bool) {
	reply := make(chan questStatusReply, 1)
	select {
	case c.events <- questStatusRequest{questID: questID, reply: reply}:
		r := <-reply
		return r.status, r.found
	case <-c.done:
		return "", false
	}
}

// startQuest admits one intake job: budget split, scout selection, first
// dispatch and the first timeout.
func (c *Coordinator) startQuest(ctx context.Context, sub QuestSubmission) {
	if sub.QuestID == "" || sub.Budget <= 0 {
		log.Printf("[Coordinator] Rejecting invalid quest submission (id=%q budget=%d)", sub.QuestID, sub.Budget)
		return
	}
	if _, exists := c.quests[sub.QuestID]; exists {
		log.Printf("[Coordinator] Duplicate quest %s ignored", sub.QuestID)
		return
	}

	q := &Quest{
		ID:             sub.QuestID,
		Status:         StatusScouting,
		Payload:        sub,
		Budget:         SplitBudget(sub.Budget, c.cfg),
		AssignedAgents: make(map[QuestStatus]string),
		StartTime:      time.Now(),
	}
	c.quests[q.ID] = q
	if c.metrics != nil {
		c.metrics.QuestsStarted.Inc()
		c.metrics.ActiveQuests.Set(float64(len(c.quests)))
	}
	log.Printf("[Coordinator] Quest %s started (budget %d -> %d/%d/%d)",
		q.ID, sub.Budget, q.Budget.Scout, q.Budget.Verifier, q.Budget.Synthesizer)

	c.enterPhase(ctx, q, StatusScouting)
}

// enterPhase moves the quest into the next phase. The phase timeout is armed
// before selection so a stalled candidate lookup is still bounded, then the
// lookup runs off the loop and posts back a candidatesReadyEvent.
func (c *Coordinator) enterPhase(ctx context.Context, q *Quest, phase QuestStatus) {
	q.Status = phase
	c.armTimer(q)
	c.beginSelection(ctx, q)
}

// beginSelection fetches reputation candidates for the quest's current phase
// in a separate goroutine. The loop keeps processing other events while the
// lookup is in flight.
func (c *Coordinator) beginSelection(ctx context.Context, q *Quest) {
	questID, phase := q.ID, q.Status
	role := roleForPhase(phase)
	go func() {
		candidates := c.ranker.FetchCandidates(ctx, role, c.cfg.MinReputation)
		select {
		case c.events <- candidatesReadyEvent{questID: questID, phase: phase, candidates: candidates}:
		case <-c.done:
		}
	}()
}

// handleCandidates assigns an agent from a finished lookup. The quest may
// have timed out or advanced while the lookup was in flight; anything but
// the exact unassigned phase that started it is stale and dropped.
func (c *Coordinator) handleCandidates(evt candidatesReadyEvent) {
	q, ok := c.quests[evt.questID]
	if !ok || q.Status != evt.phase || q.AssignedAgents[evt.phase] != "" {
		return
	}
	agent := c.ranker.SelectFrom(evt.candidates, roleForPhase(evt.phase))
	if agent == nil {
		c.fail(q, ReasonNoAgents)
		return
	}
	q.AssignedAgents[evt.phase] = agent.ID
	c.dispatchPhaseTask(q, agent)
}

// handleResult applies one inbound task result against the transition
// table. Results for unknown quests, results from any agent other than the
// one assigned to the current phase, and results whose status does not
// match the current phase are all discarded. The sender check is what keeps
// a late scout retransmission (also status "complete") from being mistaken
// for the synthesis result.
func (c *Coordinator) handleResult(ctx context.Context, msg TaskResultMessage) {
	q, ok := c.quests[msg.QuestID]
	if !ok {
		log.Printf("[Coordinator] Discarding result for unknown quest %s", msg.QuestID)
		return
	}

	// An empty assignment means selection is still in flight: nothing can
	// legitimately report for this phase yet.
	if assigned := q.AssignedAgents[q.Status]; assigned == "" || msg.AgentID != assigned {
		log.Printf("[Coordinator] Discarding result for quest %s: sender %q is not the %s agent %q",
			q.ID, msg.AgentID, q.Status, assigned)
		return
	}

	if msg.Status == ResultError {
		reason := "agent error"
		if msg.Error != "" {
			reason = "agent error: " + msg.Error
		}
		c.fail(q, reason)
		return
	}

	switch {
	case q.Status == StatusScouting && msg.Status == ResultComplete:
		q.ScoutResult = msg.Results
		q.ExpectedHashes = expectedHashes(msg)
		c.enterPhase(ctx, q, StatusVerifying)

	case q.Status == StatusVerifying && (msg.Status == ResultVerified || msg.Status == ResultPartial):
		q.Attestation = msg.Attestation
		c.enterPhase(ctx, q, StatusSynthesizing)

	case q.Status == StatusSynthesizing && msg.Status == ResultComplete:
		q.Artifact = msg.Artifact
		c.complete(q)

	default:
		log.Printf("[Coordinator] Discarding stale %q result for quest %s in phase %s",
			msg.Status, q.ID, q.Status)
	}
}

// dispatchPhaseTask builds and sends the task for the quest's current phase.
func (c *Coordinator) dispatchPhaseTask(q *Quest, agent *AgentEntry) {
	switch q.Status {
	case StatusScouting:
		c.dispatch(agent, QueryQuestTask{
			Type:      "query_quest",
			QuestID:   q.ID,
			Objective: strings.Join(q.Payload.Objectives, "; "),
			Sources:   q.Payload.Sources,
			Budget:    q.Budget.Scout,
		})
	case StatusVerifying:
		c.dispatch(agent, VerifyTask{
			Type:           "verify_task",
			QuestID:        q.ID,
			Data:           q.ScoutResult,
			ExpectedHashes: q.ExpectedHashes,
			Budget:         q.Budget.Verifier,
		})
	case StatusSynthesizing:
		c.dispatch(agent, SynthesizeTask{
			Type:         "synthesize_task",
			QuestID:      q.ID,
			VerifiedData: q.ScoutResult,
			Attestation:  q.Attestation,
			Objective:    strings.Join(q.Payload.Objectives, "; "),
			Budget:       q.Budget.Synthesizer,
		})
	}
}

func roleForPhase(phase QuestStatus) AgentRole {
	switch phase {
	case StatusScouting:
		return RoleScout
	case StatusVerifying:
		return RoleVerifier
	default:
		return RoleSynthesizer
	}
}

// handleTimeout fails the quest that armed the timer, unless the quest has
// already advanced past that phase (a cancelled-but-fired timer).
func (c *Coordinator) handleTimeout(evt phaseTimeoutEvent) {
	q, ok := c.quests[evt.questID]
	if !ok || q.Status != evt.phase {
		return
	}
	log.Printf("[Coordinator] Quest %s timed out in phase %s", q.ID, q.Status)
	c.fail(q, ReasonPhaseTimeout)
}

// complete publishes the completion event and drops the quest from the
// active set.
func (c *Coordinator) complete(q *Quest) {
	c.stopTimer(q)
	q.Status = StatusComplete
	c.sink.PublishCompletion(CompletionEvent{
		QuestID:      q.ID,
		Artifact:     q.Artifact,
		Attestation:  q.Attestation,
		Contributors: contributors(q),
	})
	delete(c.quests, q.ID)
	if c.metrics != nil {
		c.metrics.QuestsCompleted.Inc()
		c.metrics.ActiveQuests.Set(float64(len(c.quests)))
	}
	log.Printf("[Coordinator] Quest %s complete", q.ID)
}

// fail records the reason, publishes a failure event and drops the quest.
// Only this quest is affected; other quests and the loop itself continue.
func (c *Coordinator) fail(q *Quest, reason string) {
	c.stopTimer(q)
	q.Status = StatusFailed
	c.sink.PublishFailure(FailureEvent{QuestID: q.ID, Reason: reason})
	delete(c.quests, q.ID)
	if c.metrics != nil {
		c.metrics.QuestsFailed.WithLabelValues(reason).Inc()
		c.metrics.ActiveQuests.Set(float64(len(c.quests)))
	}
	log.Printf("[Coordinator] Quest %s failed: %s", q.ID, reason)
}

// dispatch sends a task over the agent's live connection, fire-and-forget.
// A write failure is not returned: the phase timeout is the recovery path
// for a dispatch lost to a racing disconnect.
func (c *Coordinator) dispatch(agent *AgentEntry, task interface{}) {
	if err := agent.Conn.SendJSON(task); err != nil {
		log.Printf("[Coordinator] Dispatch to agent %s failed: %v", agent.ID, err)
	}
}

// armTimer replaces the quest's pending timeout with one for the current
// phase. The prior timer is always stopped first, so at most one timeout is
// outstanding per quest.
func (c *Coordinator) armTimer(q *Quest) {
	c.stopTimer(q)
	phase := q.Status
	questID := q.ID
	q.timer = time.AfterFunc(c.cfg.TimeoutForPhase(phase), func() {
		select {
		case c.events <- phaseTimeoutEvent{questID: questID, phase: phase}:
		case <-c.done:
		}
	})
}

func (c *Coordinator) stopTimer(q *Quest) {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

func (c *Coordinator) stopAllTimers() {
	for _, q := range c.quests {
		c.stopTimer(q)
	}
}

// expectedHashes extracts the data hashes the verifier must check: the
// scout's explicit dataHashes when present, otherwise the per-chunk hashes.
func expectedHashes(msg TaskResultMessage) []string {
	if len(msg.DataHashes) > 0 {
		return msg.DataHashes
	}
	var hashes []string
	for _, chunk := range msg.Results {
		if chunk.Hash != "" {
			hashes = append(hashes, chunk.Hash)
		}
	}
	return hashes
}

// contributors lists the assigned agent ids in phase order: scout,
// verifier, synthesizer. Unassigned phases are omitted.
func contributors(q *Quest) []string {
	var ids []string
	for _, phase := range []QuestStatus{StatusScouting, StatusVerifying, StatusSynthesizing} {
		if id := q.AssignedAgents[phase]; id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
