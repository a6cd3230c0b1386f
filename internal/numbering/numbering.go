// Package numbering assigns per-type document numbers.
//
// The scan strategy computes max+1 over the current listing. Two creators
// that scan before either saves receive the same number, and the listing
// cache widens that window to its TTL. The reserved strategy closes the race
// by atomically reserving each number before it is handed out.
package numbering

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/invoicekeeper/internal/common"
	"github.com/dmitrijs2005/invoicekeeper/internal/logging"
	"github.com/dmitrijs2005/invoicekeeper/internal/metrics"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
)

type Strategy string

const (
	ScanBased       Strategy = "scan"
	ReservedCounter Strategy = "reserved"
)

// maxProbes bounds how far Allocate walks past taken numbers.
const maxProbes = 64

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case ScanBased, ReservedCounter:
		return Strategy(s), nil
	case "":
		return ScanBased, nil
	}
	return "", fmt.Errorf("unknown numbering strategy %q", s)
}

type Lister interface {
	ListDocuments(ctx context.Context, t models.DocumentType) ([]models.Document, error)
}

// Reserver atomically records a number; common.ErrAlreadyExists means taken.
type Reserver interface {
	Reserve(ctx context.Context, t models.DocumentType, number int) error
}

// highestReserver is implemented by reservers that can report the largest
// number already reserved, letting Allocate skip past it without probing.
type highestReserver interface {
	Highest(ctx context.Context, t models.DocumentType) (int, error)
}

type Service struct {
	docs     Lister
	reserver Reserver
	strategy Strategy
	metrics  *metrics.Metrics
	logger   logging.Logger
}

// New builds the service. reserver may be nil for the scan strategy.
func New(docs Lister, reserver Reserver, strategy Strategy, m *metrics.Metrics, logger logging.Logger) *Service {
	return &Service{
		docs:     docs,
		reserver: reserver,
		strategy: strategy,
		metrics:  m,
		logger:   logger.With("module", "numbering"),
	}
}

func (s *Service) Strategy() Strategy { return s.strategy }

// NextNumber returns 1 + the highest number of type t, or 1 when there are
// none. An unconfigured backend counts as empty; an unavailable one is an
// error, since guessing 1 there would hand out a duplicate.
func (s *Service) NextNumber(ctx context.Context, t models.DocumentType) (int, error) {
	docs, err := s.docs.ListDocuments(ctx, t)
	if err != nil && !errors.Is(err, common.ErrBackendUnconfigured) {
		return 0, err
	}

	highest := 0
	for _, d := range docs {
		if d.Number > highest {
			highest = d.Number
		}
	}
	return highest + 1, nil
}

// Allocate returns the number a new document of type t should use.
func (s *Service) Allocate(ctx context.Context, t models.DocumentType) (int, error) {
	start, err := s.NextNumber(ctx, t)
	if err != nil {
		return 0, err
	}
	if s.strategy != ReservedCounter {
		return start, nil
	}
	if s.reserver == nil {
		return 0, common.ErrReservationUnsupported
	}
	if h, ok := s.reserver.(highestReserver); ok {
		highest, err := h.Highest(ctx, t)
		if err != nil {
			return 0, err
		}
		if highest >= start {
			start = highest + 1
		}
	}

	for n := start; n < start+maxProbes; n++ {
		err := s.reserver.Reserve(ctx, t, n)
		switch {
		case err == nil:
			s.metrics.Reservation("reserved")
			s.logger.Debug(ctx, "number reserved", "type", t, "number", n)
			return n, nil
		case errors.Is(err, common.ErrAlreadyExists):
			s.metrics.Reservation("taken")
		default:
			s.metrics.Reservation("error")
			return 0, fmt.Errorf("reserve %s %d: %w", t, n, err)
		}
	}
	return 0, fmt.Errorf("%w: no free %s number in [%d, %d)", common.ErrNumberTaken, t, start, start+maxProbes)
}

// Claim records an explicitly chosen number. Under the scan strategy it
// accepts any positive number.
func (s *Service) Claim(ctx context.Context, t models.DocumentType, number int) error {
	if number < 1 {
		return fmt.Errorf("%w: document number must be positive", common.ErrValidation)
	}
	if s.strategy != ReservedCounter {
		return nil
	}
	if s.reserver == nil {
		return common.ErrReservationUnsupported
	}

	err := s.reserver.Reserve(ctx, t, number)
	switch {
	case err == nil:
		s.metrics.Reservation("reserved")
		return nil
	case errors.Is(err, common.ErrAlreadyExists):
		s.metrics.Reservation("taken")
		return fmt.Errorf("%w: %s", common.ErrNumberTaken, models.FormatID(t, number))
	default:
		s.metrics.Reservation("error")
		return err
	}
}
