package transcripts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/supportiq-platform/supportiq/internal/auth"
)

type Service struct {
	repo      Repository
	encryptor *auth.Encryptor
}

func NewService(repo Repository, encryptionKey string) *Service {
	enc, err := auth.NewEncryptor(encryptionKey)
	if err != nil {
		panic(fmt.Sprintf("failed to create encryptor: %v", err))
	}
	return &Service{
		repo:      repo,
		encryptor: enc,
	}
}

// Create stores an uploaded transcript. Content is encrypted at rest.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, req *CreateTranscriptRequest) (*Transcript, error) {
	return s.create(ctx, ownerID, req, SourceUpload)
}

// CreateFromTranscription stores a transcript produced by the audio pipeline.
func (s *Service) CreateFromTranscription(ctx context.Context, ownerID uuid.UUID, req *CreateTranscriptRequest) (*Transcript, error) {
	return s.create(ctx, ownerID, req, SourceTranscription)
}

func (s *Service) create(ctx context.Context, ownerID uuid.UUID, req *CreateTranscriptRequest, source string) (*Transcript, error) {
	now := time.Now()

	encrypted, err := s.encryptor.Encrypt(req.Content)
	if err != nil {
		return nil, fmt.Errorf("encrypting transcript content: %w", err)
	}

	channel := req.Channel
	if channel == "" {
		channel = ChannelChat
	}

	row := &TranscriptRow{
		ID:              uuid.New(),
		OwnerUserID:     ownerID,
		Title:           req.Title,
		Channel:         channel,
		AgentName:       req.AgentName,
		Content:         encrypted,
		Source:          source,
		DurationSeconds: req.DurationSeconds,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, row); err != nil {
		return nil, err
	}

	return s.rowToTranscript(row, true)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Transcript, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return s.rowToTranscript(row, true)
}

// ListByOwner returns transcripts without content. Full text is only
// decrypted on single-record fetches.
func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID, params ListTranscriptsParams) ([]*Transcript, int64, error) {
	offset := (params.Page - 1) * params.PageSize

	rows, err := s.repo.ListByOwner(ctx, ownerID, params.PageSize, offset)
	if err != nil {
		return nil, 0, err
	}

	count, err := s.repo.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, 0, err
	}

	out := make([]*Transcript, 0, len(rows))
	for _, row := range rows {
		t, err := s.rowToTranscript(row, false)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}

	return out, count, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) rowToTranscript(row *TranscriptRow, withContent bool) (*Transcript, error) {
	t := &Transcript{
		ID:              row.ID,
		OwnerUserID:     row.OwnerUserID,
		Title:           row.Title,
		Channel:         row.Channel,
		AgentName:       row.AgentName,
		Source:          row.Source,
		DurationSeconds: row.DurationSeconds,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
		DeletedAt:       row.DeletedAt,
	}

	if withContent && row.Content != "" {
		decrypted, err := s.encryptor.Decrypt(row.Content)
		if err != nil {
			return nil, fmt.Errorf("decrypting transcript content: %w", err)
		}
		t.Content = decrypted
	}

	return t, nil
}
