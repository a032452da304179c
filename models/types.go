package models

import "time"

// Decision lifecycle states
const (
	StateOpen             = "OPEN"
	StateAgreementReached = "AGREEMENT_REACHED"
	StateTransitioning    = "TRANSITIONING"
	StateConfirming       = "CONFIRMING"
	StateClosed           = "CLOSED"
)

// Algorithm selects how agreement is measured. The set is closed; the
// calculator switches over every value.
type Algorithm string

const (
	AlgorithmPercentage    Algorithm = "percentage"
	AlgorithmMajority      Algorithm = "majority"
	AlgorithmSupermajority Algorithm = "supermajority"
	AlgorithmAbsolute      Algorithm = "absolute"
	AlgorithmQuadratic     Algorithm = "quadratic"
	AlgorithmPairwise      Algorithm = "pairwise"
	AlgorithmCustom        Algorithm = "custom"
)

// Valid reports whether a is one of the known algorithms.
func (a Algorithm) Valid() bool {
	switch a {
	case AlgorithmPercentage, AlgorithmMajority, AlgorithmSupermajority,
		AlgorithmAbsolute, AlgorithmQuadratic, AlgorithmPairwise, AlgorithmCustom:
		return true
	}
	return false
}

// Vote types
const (
	VoteSingle    = "single"
	VoteMulti     = "multi"
	VoteRanked    = "ranked"
	VoteScored    = "scored"
	VoteWeighted  = "weighted"
	VoteDelegated = "delegated"
)

// Tie handling policies
const (
	TieHandlingBreak       = "tiebreak"
	TieHandlingNoConsensus = "no_consensus"
)

// Tie breakers
const (
	TieBreakerOrdinal      = "ordinal"
	TieBreakerEarliestVote = "earliest_vote"
	TieBreakerLatestVote   = "latest_vote"
)

// Participant statuses
const (
	ParticipantInvited = "invited"
	ParticipantActive  = "active"
	ParticipantVoted   = "voted"
)

// Audit actions
const (
	AuditCast    = "CAST"
	AuditChange  = "CHANGE"
	AuditRetract = "RETRACT"
)

// Confirmation statuses
const (
	ConfirmationPending = "pending"
)

// Transition steps, in execution order
const (
	StepNone         = ""
	StepStarted      = "started"
	StepPoolReady    = "pool_materialized"
	StepOptionCopied = "option_copied"
	StepDone         = "done"
)

// Vote weight bounds
const (
	DefaultWeight = 1.0
	MinWeight     = 0.1
	MaxWeight     = 10.0
)

// Domain types

type DecisionConfig struct {
	Algorithm             Algorithm `json:"algorithm"`
	Threshold             float64   `json:"threshold"`
	MinParticipants       int       `json:"min_participants"`
	TimeLimitMinutes      *int      `json:"time_limit_minutes,omitempty"`
	TieHandling           string    `json:"tie_handling"`
	TieBreaker            string    `json:"tie_breaker,omitempty"`
	AllowOptionAdd        bool      `json:"allow_option_add"`
	AutoTransitionSeconds *int      `json:"auto_transition_seconds,omitempty"`
}

// DefaultConfig returns the configuration applied to fields a proposer leaves unset.
func DefaultConfig() DecisionConfig {
	return DecisionConfig{
		Algorithm:       AlgorithmPercentage,
		Threshold:       60,
		MinParticipants: 1,
		TieHandling:     TieHandlingBreak,
		TieBreaker:      TieBreakerOrdinal,
	}
}

type Decision struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	Description        string         `json:"description"`
	ProposerID         string         `json:"proposer_id"`
	State              string         `json:"state"`
	Config             DecisionConfig `json:"config"`
	ExpiresAt          *time.Time     `json:"expires_at,omitempty"`
	AgreementReachedAt *time.Time     `json:"agreement_reached_at,omitempty"`
	TransitionDeadline *time.Time     `json:"transition_deadline,omitempty"`
	TransitionStep     string         `json:"transition_step,omitempty"`
	TransitionProgress int            `json:"transition_progress"`
	WinningOptionID    *string        `json:"winning_option_id,omitempty"`
	FinalOptionText    *string        `json:"final_option_text,omitempty"`
	FinalOptionDesc    *string        `json:"final_option_description,omitempty"`
	ConfirmedAt        *time.Time     `json:"confirmed_at,omitempty"`
	ClosedAt           *time.Time     `json:"closed_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

// AcceptsVotes reports whether the decision is open for voting at now.
func (d Decision) AcceptsVotes(now time.Time) bool {
	if d.State != StateOpen && d.State != StateAgreementReached {
		return false
	}
	if d.ExpiresAt != nil && !now.Before(*d.ExpiresAt) {
		return false
	}
	return true
}

type Option struct {
	ID          string `json:"id"`
	DecisionID  string `json:"decision_id"`
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
	Position    int    `json:"position"`
}

type DecisionWithOptions struct {
	Decision Decision `json:"decision"`
	Options  []Option `json:"options"`
}

type Vote struct {
	ID            string    `json:"id"`
	DecisionID    string    `json:"decision_id"`
	ParticipantID string    `json:"participant_id"`
	OptionID      string    `json:"option_id"`
	VoteType      string    `json:"vote_type"`
	Ranking       *int      `json:"ranking,omitempty"`
	Score         *float64  `json:"score,omitempty"`
	Weight        float64   `json:"weight"`
	Sentiment     string    `json:"sentiment,omitempty"`
	Comment       string    `json:"comment,omitempty"`
	OriginHash    string    `json:"-"` // Never expose in JSON
	ClientString  string    `json:"-"` // Never expose in JSON
	CreatedAt     time.Time `json:"created_at"`
}

// VoteInput is the caller-supplied part of a vote.
type VoteInput struct {
	OptionID  string   `json:"optionId"`
	VoteType  string   `json:"voteType"`
	Ranking   *int     `json:"ranking,omitempty"`
	Score     *float64 `json:"score,omitempty"`
	Weight    *float64 `json:"weight,omitempty"`
	Sentiment string   `json:"sentiment,omitempty"`
	Comment   string   `json:"comment,omitempty"`
}

// Origin carries submission metadata for the audit trail.
type Origin struct {
	AddressHash string
	Client      string
}

type Participant struct {
	DecisionID    string     `json:"decision_id"`
	ParticipantID string     `json:"participant_id"`
	DisplayName   string     `json:"display_name"`
	Token         string     `json:"-"` // Never expose in JSON
	CanVote       bool       `json:"can_vote"`
	CanDelegate   bool       `json:"can_delegate"`
	Status        string     `json:"status"`
	LastActiveAt  *time.Time `json:"last_active_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type AuditEntry struct {
	ID            string    `json:"id"`
	DecisionID    string    `json:"decision_id"`
	ParticipantID string    `json:"participant_id"`
	Action        string    `json:"action"`
	OldValue      *Vote     `json:"old_value,omitempty"`
	NewValue      *Vote     `json:"new_value,omitempty"`
	Origin        string    `json:"origin,omitempty"`
	Client        string    `json:"client,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Confirmation struct {
	DecisionID    string    `json:"decision_id"`
	ParticipantID string    `json:"participant_id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// Consensus types

type OptionRef struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type OptionBreakdown struct {
	OptionID   string  `json:"option_id"`
	Text       string  `json:"text"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
	IsLeading  bool    `json:"is_leading"`
}

type ConsensusSnapshot struct {
	DecisionID               string            `json:"decision_id"`
	ConsensusLevel           float64           `json:"consensus_level"`
	TotalVotes               int               `json:"total_votes"`
	ParticipantCount         int               `json:"participant_count"`
	LeadingOption            *OptionRef        `json:"leading_option"`
	EstimatedTimeToConsensus *float64          `json:"estimated_time_to_consensus"` // minutes
	VotingVelocity           float64           `json:"voting_velocity"`             // votes per minute
	Options                  []OptionBreakdown `json:"options"`
	IsConsensusReached       bool              `json:"is_consensus_reached"`
	Algorithm                Algorithm         `json:"algorithm"`
	Threshold                float64           `json:"threshold"`
	ConfidenceScore          float64           `json:"confidence_score"`
	CalculatedAt             time.Time         `json:"calculated_at"`
}

type HistoryEntry struct {
	ID                 string            `json:"id"`
	DecisionID         string            `json:"decision_id"`
	RecordedAt         time.Time         `json:"recorded_at"`
	ConsensusLevel     float64           `json:"consensus_level"`
	TotalVotes         int               `json:"total_votes"`
	ParticipantCount   int               `json:"participant_count"`
	LeadingOptionID    *string           `json:"leading_option_id,omitempty"`
	IsConsensusReached bool              `json:"is_consensus_reached"`
	Algorithm          Algorithm         `json:"algorithm"`
	ConfidenceScore    float64           `json:"confidence_score"`
	Snapshot           ConsensusSnapshot `json:"snapshot"`
}

type TransitionStatus struct {
	DecisionID      string     `json:"decision_id"`
	State           string     `json:"state"`
	Step            string     `json:"step,omitempty"`
	Progress        int        `json:"progress"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	DeadlineText    string     `json:"deadline_text,omitempty"`
	WinningOptionID *string    `json:"winning_option_id,omitempty"`
}

// Events

type EventType string

const (
	EventConsensusReached    EventType = "CONSENSUS_REACHED"
	EventVoteCast            EventType = "VOTE_CAST"
	EventVoteChanged         EventType = "VOTE_CHANGED"
	EventTransitionStarted   EventType = "TRANSITION_STARTED"
	EventTransitionCompleted EventType = "TRANSITION_COMPLETED"
)

type Event struct {
	Type       EventType `json:"type"`
	DecisionID string    `json:"decision_id"`
	ActorID    string    `json:"actor_id,omitempty"`
	OptionID   string    `json:"option_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Request types

type CreateDecisionRequest struct {
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	ProposerName string             `json:"proposer_name"`
	Options      []AddOptionRequest `json:"options"`
	Config       *DecisionConfig    `json:"config,omitempty"`
}

type AddOptionRequest struct {
	Text        string `json:"text"`
	Description string `json:"description"`
}

type InviteParticipantRequest struct {
	DisplayName string `json:"display_name"`
	CanVote     *bool  `json:"can_vote,omitempty"`
	CanDelegate bool   `json:"can_delegate"`
}

// Response types

type CreateDecisionResponse struct {
	DecisionID    string   `json:"decision_id"`
	AdminKey      string   `json:"admin_key"`
	ProposerID    string   `json:"proposer_id"`
	ProposerToken string   `json:"proposer_token"`
	OptionIDs     []string `json:"option_ids"`
}

type AddOptionResponse struct {
	OptionID string `json:"option_id"`
}

type InviteParticipantResponse struct {
	ParticipantID string `json:"participant_id"`
	Token         string `json:"token"`
}

type VoteResponse struct {
	Vote      Vote              `json:"vote"`
	Consensus ConsensusSnapshot `json:"consensus"`
}

type RetractResponse struct {
	Message   string            `json:"message"`
	Consensus ConsensusSnapshot `json:"consensus"`
}

type HistoryResponse struct {
	DecisionID string         `json:"decision_id"`
	Hours      int            `json:"hours"`
	Entries    []HistoryEntry `json:"entries"`
}

type CloseDecisionResponse struct {
	ClosedAt time.Time `json:"closed_at"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}
