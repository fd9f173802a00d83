package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/supportiq-platform/supportiq/internal/llm"
	"github.com/supportiq-platform/supportiq/internal/rubrics"
	"github.com/supportiq-platform/supportiq/internal/transcripts"
	"github.com/supportiq-platform/supportiq/internal/usage"
)

// scorer is the LLM surface this service needs.
type scorer interface {
	CompleteJSON(ctx context.Context, messages []llm.Message) (string, error)
}

type Service struct {
	repo    Repository
	rubrics *rubrics.Service
	llm     scorer
	usage   *usage.Service
	model   string
}

func NewService(repo Repository, rubricSvc *rubrics.Service, llmClient scorer, usageSvc *usage.Service, model string) *Service {
	return &Service{
		repo:    repo,
		rubrics: rubricSvc,
		llm:     llmClient,
		usage:   usageSvc,
		model:   model,
	}
}

// scoredReply is the JSON shape the model is instructed to return.
type scoredReply struct {
	Criteria []struct {
		Name    string `json:"name"`
		Score   int    `json:"score"`
		Comment string `json:"comment"`
	} `json:"criteria"`
	Summary       string `json:"summary"`
	CoachingNotes string `json:"coaching_notes"`
}

// Run scores a transcript against a rubric. Credits are checked before
// the LLM call and spent only after a persisted result.
func (s *Service) Run(ctx context.Context, ownerID uuid.UUID, transcript *transcripts.Transcript, rubricID uuid.UUID) (*Analysis, error) {
	cost := s.usage.Costs().Analysis
	if ok, reason := s.usage.CheckLimit(ctx, ownerID, cost); !ok {
		return nil, reason.Denied()
	}

	rubric, err := s.rubrics.GetByID(ctx, rubricID)
	if err != nil {
		return nil, err
	}
	if rubric == nil {
		return nil, fmt.Errorf("rubric %s not found", rubricID)
	}

	reply, err := s.llm.CompleteJSON(ctx, buildScoringPrompt(transcript, rubric))
	if err != nil {
		return nil, err
	}

	var scored scoredReply
	if err := json.Unmarshal([]byte(reply), &scored); err != nil {
		return nil, fmt.Errorf("parsing scoring response: %w: %s", err, truncate(reply, 200))
	}

	scores := mergeScores(rubric.Criteria, scored)
	overall := weightedOverall(scores)

	scoresJSON, err := json.Marshal(scores)
	if err != nil {
		return nil, fmt.Errorf("marshaling criterion scores: %w", err)
	}

	row := &AnalysisRow{
		ID:              uuid.New(),
		TranscriptID:    transcript.ID,
		RubricID:        rubric.ID,
		OwnerUserID:     ownerID,
		OverallScore:    overall,
		CriterionScores: scoresJSON,
		Summary:         scored.Summary,
		CoachingNotes:   scored.CoachingNotes,
		Model:           s.model,
		CreatedAt:       time.Now(),
	}

	if err := s.repo.Create(ctx, row); err != nil {
		return nil, err
	}

	s.usage.Increment(ctx, ownerID, usage.OpAnalysis)

	return rowToAnalysis(row)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Analysis, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return rowToAnalysis(row)
}

func (s *Service) ListByTranscript(ctx context.Context, transcriptID uuid.UUID) ([]*Analysis, error) {
	rows, err := s.repo.ListByTranscript(ctx, transcriptID)
	if err != nil {
		return nil, err
	}

	out := make([]*Analysis, 0, len(rows))
	for _, row := range rows {
		a, err := rowToAnalysis(row)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func buildScoringPrompt(transcript *transcripts.Transcript, rubric *rubrics.Rubric) []llm.Message {
	var criteria strings.Builder
	for _, c := range rubric.Criteria {
		fmt.Fprintf(&criteria, "- %q (weight %d)", c.Name, c.Weight)
		if c.Guidance != "" {
			fmt.Fprintf(&criteria, ": %s", c.Guidance)
		}
		criteria.WriteString("\n")
	}

	system := fmt.Sprintf(`You are a customer support quality analyst. Score the transcript against each criterion from 0 to 100.
Respond with a single JSON object:
{"criteria": [{"name": "<criterion name>", "score": <0-100>, "comment": "<one sentence>"}], "summary": "<2-3 sentences>", "coaching_notes": "<concrete advice for the agent>"}
Use the exact criterion names given. Criteria:
%s`, criteria.String())

	user := fmt.Sprintf("Transcript %q (channel: %s):\n\n%s",
		transcript.Title, transcript.Channel, transcript.Content)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}
}

// mergeScores aligns the model's reply with the rubric so every
// criterion appears exactly once, with weights taken from the rubric
// rather than trusted from the model.
func mergeScores(criteria []rubrics.Criterion, scored scoredReply) []CriterionScore {
	byName := make(map[string]struct {
		score   int
		comment string
	}, len(scored.Criteria))
	for _, c := range scored.Criteria {
		byName[strings.ToLower(c.Name)] = struct {
			score   int
			comment string
		}{clampScore(c.Score), c.Comment}
	}

	out := make([]CriterionScore, 0, len(criteria))
	for _, c := range criteria {
		cs := CriterionScore{Name: c.Name, Weight: c.Weight}
		if got, ok := byName[strings.ToLower(c.Name)]; ok {
			cs.Score = got.score
			cs.Comment = got.comment
		}
		out = append(out, cs)
	}
	return out
}

func weightedOverall(scores []CriterionScore) int {
	totalWeight := 0
	weighted := 0
	for _, s := range scores {
		totalWeight += s.Weight
		weighted += s.Score * s.Weight
	}
	if totalWeight == 0 {
		return 0
	}
	return weighted / totalWeight
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func rowToAnalysis(row *AnalysisRow) (*Analysis, error) {
	var scores []CriterionScore
	if err := json.Unmarshal(row.CriterionScores, &scores); err != nil {
		return nil, fmt.Errorf("unmarshaling criterion scores: %w", err)
	}

	return &Analysis{
		ID:              row.ID,
		TranscriptID:    row.TranscriptID,
		RubricID:        row.RubricID,
		OwnerUserID:     row.OwnerUserID,
		OverallScore:    row.OverallScore,
		CriterionScores: scores,
		Summary:         row.Summary,
		CoachingNotes:   row.CoachingNotes,
		Model:           row.Model,
		CreatedAt:       row.CreatedAt,
	}, nil
}
