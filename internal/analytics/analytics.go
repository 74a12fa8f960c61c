package analytics

import (
	"context"
	"time"

	"guildkeeper/internal/storage"
)

type Service struct {
	store *storage.Store
}

func New(store *storage.Store) *Service {
	return &Service{store: store}
}

type Report struct {
	Since   time.Time      `json:"since"`
	Total   int            `json:"total"`
	ByLevel map[string]int `json:"by_level"`
	ByEvent map[string]int `json:"by_event"`
}

// Report counts audit entries since the given time; an empty guildID covers
// every guild and direct messages.
func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	logs, err := s.store.ListAuditLogs(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{Since: since, ByLevel: make(map[string]int), ByEvent: make(map[string]int)}
	for _, log := range logs {
		report.Total++
		report.ByLevel[log.Level]++
		report.ByEvent[log.Event]++
	}
	return report, nil
}
