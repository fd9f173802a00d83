package transcripts

import "context"

type contextKey string

const transcriptCtxKey contextKey = "transcript"

func SetTranscriptInContext(ctx context.Context, t *Transcript) context.Context {
	return context.WithValue(ctx, transcriptCtxKey, t)
}

func GetTranscriptFromContext(ctx context.Context) *Transcript {
	t, _ := ctx.Value(transcriptCtxKey).(*Transcript)
	return t
}
