package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stoa-edu/stoa/internal/model"
)

// InsertSurveyResponse stores one pretest or posttest submission.
func (s *Store) InsertSurveyResponse(ctx context.Context, r model.SurveyResponse) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO survey_responses (username, language, phase, responses, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		r.Username, r.Language, r.Phase, string(r.Responses), time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListSurveyResponses returns all submissions for one phase, newest first.
func (s *Store) ListSurveyResponses(ctx context.Context, phase model.SurveyPhase) ([]model.SurveyResponse, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, language, phase, responses, created_at
		 FROM survey_responses WHERE phase = ? ORDER BY id DESC`, phase,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var responses []model.SurveyResponse
	for rows.Next() {
		var r model.SurveyResponse
		var body string
		if err := rows.Scan(&r.ID, &r.Username, &r.Language, &r.Phase, &body, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Responses = json.RawMessage(body)
		responses = append(responses, r)
	}
	return responses, rows.Err()
}
