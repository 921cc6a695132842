package store

import (
	"context"
	"fmt"
	"time"

	"github.com/stoa-edu/stoa/internal/model"
)

// ExportStudy assembles everything a researcher needs from one deployment:
// all conversation logs plus the pretest and posttest survey responses.
func (s *Store) ExportStudy(ctx context.Context) (*model.StudyExport, error) {
	studyID, err := s.GetMetadata("study_id")
	if err != nil {
		return nil, fmt.Errorf("read study id: %w", err)
	}

	logs, err := s.ListConversationLogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversation logs: %w", err)
	}
	pretests, err := s.ListSurveyResponses(ctx, model.SurveyPre)
	if err != nil {
		return nil, fmt.Errorf("list pretest responses: %w", err)
	}
	posttests, err := s.ListSurveyResponses(ctx, model.SurveyPost)
	if err != nil {
		return nil, fmt.Errorf("list posttest responses: %w", err)
	}

	return &model.StudyExport{
		StudyID:     studyID,
		GeneratedAt: time.Now(),
		Logs:        logs,
		Pretests:    pretests,
		Posttests:   posttests,
	}, nil
}
