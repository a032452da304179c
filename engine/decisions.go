// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/danielhkuo/quickly-agree/apperr"
	"github.com/danielhkuo/quickly-agree/auth"
	"github.com/danielhkuo/quickly-agree/models"
	"github.com/danielhkuo/quickly-agree/store"
)

// CreateDecision stores a new OPEN decision with its initial options. The
// proposer joins as the first participant.
func (e *Engine) CreateDecision(ctx context.Context, req models.CreateDecisionRequest) (models.CreateDecisionResponse, error) {
	if strings.TrimSpace(req.Title) == "" {
		return models.CreateDecisionResponse{}, apperr.Validation("missing_title", "title is required")
	}
	if strings.TrimSpace(req.ProposerName) == "" {
		return models.CreateDecisionResponse{}, apperr.Validation("missing_proposer", "proposer_name is required")
	}
	for _, o := range req.Options {
		if strings.TrimSpace(o.Text) == "" {
			return models.CreateDecisionResponse{}, apperr.Validation("missing_option_text", "every option needs text")
		}
	}

	var requested models.DecisionConfig
	if req.Config != nil {
		requested = *req.Config
	}
	cfg, err := normalizeConfig(requested)
	if err != nil {
		return models.CreateDecisionResponse{}, err
	}

	token, err := auth.GenerateParticipantToken()
	if err != nil {
		return models.CreateDecisionResponse{}, err
	}

	now := e.Now().UTC()
	d := models.Decision{
		ID:          auth.NewID(),
		Title:       req.Title,
		Description: req.Description,
		ProposerID:  auth.NewID(),
		State:       models.StateOpen,
		Config:      cfg,
		ExpiresAt:   expiresAt(now, cfg),
		CreatedAt:   now,
	}

	ctx, cancel := e.store.Bound(ctx)
	defer cancel()

	optionIDs := make([]string, 0, len(req.Options))
	err = e.store.InTx(ctx, func(q *store.Queries) error {
		if err := q.InsertDecision(ctx, d); err != nil {
			return err
		}
		for i, o := range req.Options {
			id := auth.NewID()
			if err := q.InsertOption(ctx, models.Option{
				ID:          id,
				DecisionID:  d.ID,
				Text:        o.Text,
				Description: o.Description,
				Position:    i,
			}); err != nil {
				return err
			}
			optionIDs = append(optionIDs, id)
		}
		return q.InsertParticipant(ctx, models.Participant{
			DecisionID:    d.ID,
			ParticipantID: d.ProposerID,
			DisplayName:   req.ProposerName,
			Token:         token,
			CanVote:       true,
			CanDelegate:   true,
			Status:        models.ParticipantActive,
			LastActiveAt:  &now,
			CreatedAt:     now,
		})
	})
	if err != nil {
		return models.CreateDecisionResponse{}, err
	}

	slog.Info("decision created",
		"decision_id", d.ID,
		"proposer", req.ProposerName,
		"algorithm", string(cfg.Algorithm),
		"options", len(optionIDs),
	)

	return models.CreateDecisionResponse{
		DecisionID:    d.ID,
		AdminKey:      auth.GenerateAdminKey(d.ID, e.cfg.AdminKeySalt),
		ProposerID:    d.ProposerID,
		ProposerToken: token,
		OptionIDs:     optionIDs,
	}, nil
}

// Decision returns a decision with its options.
func (e *Engine) Decision(ctx context.Context, decisionID string) (models.DecisionWithOptions, error) {
	ctx, cancel := e.store.Bound(ctx)
	defer cancel()

	d, err := e.store.GetDecision(ctx, decisionID)
	if err != nil {
		return models.DecisionWithOptions{}, err
	}
	options, err := e.store.ListOptions(ctx, decisionID)
	if err != nil {
		return models.DecisionWithOptions{}, err
	}
	return models.DecisionWithOptions{Decision: d, Options: options}, nil
}

// AddOption appends an option. Once votes exist this requires
// allow_option_add.
func (e *Engine) AddOption(ctx context.Context, decisionID string, req models.AddOptionRequest) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", apperr.Validation("missing_option_text", "text is required")
	}

	unlock := e.options.Lock(decisionID)
	defer unlock()

	ctx, cancel := e.store.Bound(ctx)
	defer cancel()

	optionID := auth.NewID()
	err := e.store.InTx(ctx, func(q *store.Queries) error {
		d, err := q.GetDecision(ctx, decisionID)
		if err != nil {
			return err
		}
		if !d.AcceptsVotes(e.Now()) {
			return apperr.ErrOptionsLocked
		}
		if !d.Config.AllowOptionAdd {
			votes, err := q.CountVotes(ctx, decisionID)
			if err != nil {
				return err
			}
			if votes > 0 {
				return apperr.ErrOptionsLocked
			}
		}

		pos, err := q.NextOptionPosition(ctx, decisionID)
		if err != nil {
			return err
		}
		return q.InsertOption(ctx, models.Option{
			ID:          optionID,
			DecisionID:  decisionID,
			Text:        req.Text,
			Description: req.Description,
			Position:    pos,
		})
	})
	if err != nil {
		return "", err
	}

	e.cache.Invalidate(decisionID)
	slog.Info("option added", "decision_id", decisionID, "option_id", optionID)
	return optionID, nil
}

// UpdateConfig replaces the rule configuration of an OPEN decision.
func (e *Engine) UpdateConfig(ctx context.Context, decisionID string, cfg models.DecisionConfig) (models.Decision, error) {
	cfg, err := normalizeConfig(cfg)
	if err != nil {
		return models.Decision{}, err
	}

	ctx, cancel := e.store.Bound(ctx)
	defer cancel()

	d, err := e.store.GetDecision(ctx, decisionID)
	if err != nil {
		return models.Decision{}, err
	}
	if d.State != models.StateOpen {
		return models.Decision{}, apperr.ErrConfigLocked
	}

	ok, err := e.store.UpdateConfig(ctx, decisionID, cfg, expiresAt(d.CreatedAt, cfg))
	if err != nil {
		return models.Decision{}, err
	}
	if !ok {
		return models.Decision{}, apperr.ErrConfigLocked
	}
	e.cache.Invalidate(decisionID)

	slog.Info("decision config updated",
		"decision_id", decisionID,
		"algorithm", string(cfg.Algorithm),
		"threshold", cfg.Threshold,
	)
	return e.store.GetDecision(ctx, decisionID)
}

// Close soft-closes a decision that has not started transitioning.
func (e *Engine) Close(ctx context.Context, decisionID string) (time.Time, error) {
	ctx, cancel := e.store.Bound(ctx)
	defer cancel()

	if _, err := e.store.GetDecision(ctx, decisionID); err != nil {
		return time.Time{}, err
	}

	now := e.Now().UTC()
	ok, err := e.store.CloseDecision(ctx, decisionID, now)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, apperr.ErrInvalidTransition
	}
	e.cache.Invalidate(decisionID)
	e.metrics.Transition(models.StateClosed)

	slog.Info("decision closed", "decision_id", decisionID)
	return now, nil
}

// Invite adds a participant and returns its identity token.
func (e *Engine) Invite(ctx context.Context, decisionID string, req models.InviteParticipantRequest) (models.InviteParticipantResponse, error) {
	if strings.TrimSpace(req.DisplayName) == "" {
		return models.InviteParticipantResponse{}, apperr.Validation("missing_display_name", "display_name is required")
	}
	canVote := true
	if req.CanVote != nil {
		canVote = *req.CanVote
	}

	ctx, cancel := e.store.Bound(ctx)
	defer cancel()

	d, err := e.store.GetDecision(ctx, decisionID)
	if err != nil {
		return models.InviteParticipantResponse{}, err
	}
	if !d.AcceptsVotes(e.Now()) {
		return models.InviteParticipantResponse{}, apperr.ErrDecisionNotOpen
	}

	token, err := auth.GenerateParticipantToken()
	if err != nil {
		return models.InviteParticipantResponse{}, err
	}

	p := models.Participant{
		DecisionID:    decisionID,
		ParticipantID: auth.NewID(),
		DisplayName:   req.DisplayName,
		Token:         token,
		CanVote:       canVote,
		CanDelegate:   req.CanDelegate,
		Status:        models.ParticipantInvited,
		CreatedAt:     e.Now().UTC(),
	}
	if err := e.store.InsertParticipant(ctx, p); err != nil {
		return models.InviteParticipantResponse{}, err
	}
	e.cache.Invalidate(decisionID)

	slog.Info("participant invited",
		"decision_id", decisionID,
		"participant_id", p.ParticipantID,
		"can_vote", canVote,
	)
	return models.InviteParticipantResponse{ParticipantID: p.ParticipantID, Token: token}, nil
}

// Participants lists a decision's voting pool.
func (e *Engine) Participants(ctx context.Context, decisionID string) ([]models.Participant, error) {
	ctx, cancel := e.store.Bound(ctx)
	defer cancel()

	if _, err := e.store.GetDecision(ctx, decisionID); err != nil {
		return nil, err
	}
	return e.store.ListParticipants(ctx, decisionID)
}

// Authenticate resolves an identity token to a participant of the decision
// and records the activity.
func (e *Engine) Authenticate(ctx context.Context, decisionID, token string) (models.Participant, error) {
	if token == "" {
		return models.Participant{}, apperr.ErrMissingToken
	}

	ctx, cancel := e.store.Bound(ctx)
	defer cancel()

	if _, err := e.store.GetDecision(ctx, decisionID); err != nil {
		return models.Participant{}, err
	}
	if err := auth.ValidateTokenFormat(token); err != nil {
		return models.Participant{}, apperr.ErrInvalidToken
	}

	p, err := e.store.GetParticipantByToken(ctx, decisionID, token)
	if errors.Is(err, apperr.ErrNotParticipant) {
		return models.Participant{}, apperr.ErrInvalidToken
	}
	if err != nil {
		return models.Participant{}, err
	}

	if err := e.store.TouchParticipant(ctx, decisionID, p.ParticipantID, e.Now().UTC()); err != nil {
		slog.Warn("failed to record participant activity",
			"decision_id", decisionID,
			"participant_id", p.ParticipantID,
			"error", err,
		)
	}
	return p, nil
}

// AuthorizeAdmin checks the proposer's admin key for a decision.
func (e *Engine) AuthorizeAdmin(decisionID, adminKey string) error {
	if err := auth.ValidateAdminKey(decisionID, adminKey, e.cfg.AdminKeySalt); err != nil {
		return apperr.ErrInvalidAdminKey
	}
	return nil
}

// Origin builds the audit origin of a request.
func (e *Engine) Origin(clientIP, userAgent string) models.Origin {
	return models.Origin{
		AddressHash: auth.HashIP(clientIP, e.cfg.AdminKeySalt),
		Client:      userAgent,
	}
}
