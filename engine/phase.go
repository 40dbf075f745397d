package engine

// Phase is the top-level session state.
type Phase string

const (
	PhaseStart         Phase = "start"
	PhaseQuestionnaire Phase = "questionnaire"
	PhasePlaying       Phase = "playing"
	PhaseResult        Phase = "result"
)

func (p Phase) String() string { return string(p) }

// Stage is the position inside a round while playing.
type Stage string

const (
	StageIdle           Stage = ""
	StageAwaitingChoice Stage = "awaiting_choice"
	StageRandomOffer    Stage = "random_offer"
	StageResolved       Stage = "resolved"
)

// EventSource tells where the current round's event came from.
type EventSource string

const (
	SourceScripted EventSource = "scripted"
	SourceBranch   EventSource = "branch"
	SourceNPC      EventSource = "npc"
)

func parsePhase(s string) Phase {
	switch Phase(s) {
	case PhaseStart, PhaseQuestionnaire, PhasePlaying, PhaseResult:
		return Phase(s)
	}
	return PhaseStart
}

func parseStage(s string) Stage {
	switch Stage(s) {
	case StageRandomOffer, StageResolved:
		return Stage(s)
	}
	return StageAwaitingChoice
}
