// Package grab commits selected releases to the cache service.
package grab

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/cachegrab/cachegrab/internal/debrid"
	"github.com/cachegrab/cachegrab/internal/decisioning"
	"github.com/cachegrab/cachegrab/internal/release"
	"github.com/cachegrab/cachegrab/internal/retry"
)

var (
	ErrCommitFailed   = errors.New("commit failed")
	ErrNoExisting     = errors.New("upgrade requires an existing item")
	ErrNothingToGrab  = errors.New("decision does not commit anything")
	ErrInvalidRelease = errors.New("invalid release")
)

// Request describes one commitment.
type Request struct {
	Candidate release.Candidate
	// Existing is the item an upgrade replaces.
	Existing *debrid.CommittedItem
	// DryRun logs the would-be action and skips every mutating call.
	DryRun bool
}

// Result contains the result of a grab operation.
type Result struct {
	Success   bool               `json:"success"`
	Action    decisioning.Action `json:"action"`
	DryRun    bool               `json:"dryRun,omitempty"`
	TorrentID string             `json:"torrentId,omitempty"`
	Hash      string             `json:"hash"`
	Title     string             `json:"title"`
	// ReplacedID is the commitment removed by an upgrade.
	ReplacedID string `json:"replacedId,omitempty"`
	// DeleteFailed is set when an upgrade held the new release but could not
	// drop the old one.
	DeleteFailed bool   `json:"deleteFailed,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Service adds and replaces releases on the cache service.
type Service struct {
	provider debrid.Provider
	retry    retry.Config
	logger   zerolog.Logger
}

// NewService creates a new grab service.
func NewService(provider debrid.Provider, retryCfg retry.Config, logger zerolog.Logger) *Service {
	return &Service{
		provider: provider,
		retry:    retryCfg,
		logger:   logger.With().Str("component", "grab").Logger(),
	}
}

// Execute carries out an ADD or UPGRADE decision.
func (s *Service) Execute(ctx context.Context, d decisioning.Decision, dryRun bool) (*Result, error) {
	req := Request{Candidate: d.Candidate, Existing: d.Existing, DryRun: dryRun}
	switch d.Action {
	case decisioning.ActionAdd:
		return s.Add(ctx, req)
	case decisioning.ActionUpgrade:
		return s.Upgrade(ctx, req)
	default:
		return nil, ErrNothingToGrab
	}
}

// Add commits a new release.
func (s *Service) Add(ctx context.Context, req Request) (*Result, error) {
	result := &Result{
		Action: decisioning.ActionAdd,
		Hash:   req.Candidate.Hash,
		Title:  req.Candidate.Title,
		DryRun: req.DryRun,
	}
	if req.Candidate.Hash == "" {
		result.Error = ErrInvalidRelease.Error()
		return result, ErrInvalidRelease
	}

	if req.DryRun {
		s.logger.Info().
			Str("title", req.Candidate.Title).
			Str("hash", req.Candidate.Hash).
			Str("size", humanize.IBytes(req.Candidate.SizeBytes)).
			Msg("Dry run: would add release")
		result.Success = true
		return result, nil
	}

	id, err := s.commit(ctx, req.Candidate)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}

	result.Success = true
	result.TorrentID = id
	s.logger.Info().
		Str("title", req.Candidate.Title).
		Str("torrentId", id).
		Str("size", humanize.IBytes(req.Candidate.SizeBytes)).
		Bool("assumedAvailable", req.Candidate.AvailabilityAssumed).
		Msg("Added release")
	return result, nil
}

// Upgrade commits a better release and then removes the old one. The old
// commitment is never touched unless the new one succeeded.
func (s *Service) Upgrade(ctx context.Context, req Request) (*Result, error) {
	if req.Existing == nil {
		return nil, ErrNoExisting
	}

	result := &Result{
		Action:     decisioning.ActionUpgrade,
		Hash:       req.Candidate.Hash,
		Title:      req.Candidate.Title,
		DryRun:     req.DryRun,
		ReplacedID: req.Existing.ID,
	}
	if req.Candidate.Hash == "" {
		result.Error = ErrInvalidRelease.Error()
		return result, ErrInvalidRelease
	}

	if req.DryRun {
		s.logger.Info().
			Str("title", req.Candidate.Title).
			Str("replaces", req.Existing.Filename).
			Str("size", humanize.IBytes(req.Candidate.SizeBytes)).
			Msg("Dry run: would upgrade release")
		result.Success = true
		return result, nil
	}

	id, err := s.commit(ctx, req.Candidate)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	result.Success = true
	result.TorrentID = id

	err = retry.Do(ctx, "delete", s.retry, func() error {
		return s.provider.Delete(ctx, req.Existing.ID)
	}, s.logger)
	if err != nil {
		result.DeleteFailed = true
		s.logger.Warn().
			Err(err).
			Str("oldId", req.Existing.ID).
			Str("oldFilename", req.Existing.Filename).
			Str("newId", id).
			Msg("Upgrade committed but old release could not be removed")
	}

	s.logger.Info().
		Str("title", req.Candidate.Title).
		Str("torrentId", id).
		Str("replaced", req.Existing.Filename).
		Msg("Upgraded release")
	return result, nil
}

// commit adds the magnet and selects all of its files. A torrent whose file
// selection fails is removed again so it does not linger half-configured.
func (s *Service) commit(ctx context.Context, c release.Candidate) (string, error) {
	var id string
	err := retry.Do(ctx, "addMagnet", s.retry, func() error {
		var addErr error
		id, addErr = s.provider.AddMagnet(ctx, c.Hash)
		return addErr
	}, s.logger)
	if err != nil {
		return "", fmt.Errorf("%w: add magnet: %w", ErrCommitFailed, err)
	}

	err = retry.Do(ctx, "selectFiles", s.retry, func() error {
		return s.provider.SelectFiles(ctx, id, "all")
	}, s.logger)
	if err != nil {
		if delErr := s.provider.Delete(ctx, id); delErr != nil {
			s.logger.Warn().Err(delErr).Str("torrentId", id).Msg("Failed to remove torrent after file selection failed")
		}
		return "", fmt.Errorf("%w: select files: %w", ErrCommitFailed, err)
	}

	return id, nil
}
