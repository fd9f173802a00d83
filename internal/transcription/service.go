package transcription

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/supportiq-platform/supportiq/internal/transcripts"
	"github.com/supportiq-platform/supportiq/internal/usage"
)

// transcriber is the LLM surface this service needs.
type transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

type Service struct {
	llm         transcriber
	transcripts *transcripts.Service
	usage       *usage.Service
}

func NewService(llmClient transcriber, transcriptSvc *transcripts.Service, usageSvc *usage.Service) *Service {
	return &Service{
		llm:         llmClient,
		transcripts: transcriptSvc,
		usage:       usageSvc,
	}
}

// Request carries the audio upload and its transcript metadata.
type Request struct {
	Filename        string
	Audio           io.Reader
	Title           string
	AgentName       string
	DurationSeconds int
}

// Run transcribes the audio and stores the result as a voice transcript.
// Credits are checked before the provider call and spent after success.
func (s *Service) Run(ctx context.Context, ownerID uuid.UUID, req *Request) (*transcripts.Transcript, error) {
	cost := s.usage.Costs().Transcription
	if ok, reason := s.usage.CheckLimit(ctx, ownerID, cost); !ok {
		return nil, reason.Denied()
	}

	text, err := s.llm.Transcribe(ctx, req.Filename, req.Audio)
	if err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = req.Filename
	}

	transcript, err := s.transcripts.CreateFromTranscription(ctx, ownerID, &transcripts.CreateTranscriptRequest{
		Title:           title,
		Channel:         transcripts.ChannelVoice,
		AgentName:       req.AgentName,
		Content:         text,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		return nil, err
	}

	s.usage.Increment(ctx, ownerID, usage.OpTranscription)

	return transcript, nil
}
