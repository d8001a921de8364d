package ops

import (
	"context"
	"log/slog"
	"time"

	"github.com/hpungsan/acta/internal/ai"
	"github.com/hpungsan/acta/internal/session"
	"github.com/hpungsan/acta/internal/store"
)

// GenerateInput contains parameters for the Generate operation.
type GenerateInput struct {
	ID      int64
	Timeout time.Duration // 0 uses the session default
	Logger  *slog.Logger  // nil uses slog.Default()
}

// GenerateOutput contains the result of the Generate operation.
type GenerateOutput struct {
	ID        int64    `json:"id"`
	TaskID    string   `json:"task_id"`
	Minutes   string   `json:"minutes"`
	Tags      []string `json:"tags"`
	UpdatedAt int64    `json:"updated_at"`
}

// Generate runs minutes generation for one stored meeting and waits for the
// result to be persisted. It drives a short-lived session controller so the
// same guards apply as in an interactive session. Cancelling ctx abandons
// the request.
func Generate(ctx context.Context, st *store.Store, gen ai.Generator, input GenerateInput) (*GenerateOutput, error) {
	if err := ValidateID(input.ID); err != nil {
		return nil, err
	}

	var opts []session.Option
	if input.Timeout > 0 {
		opts = append(opts, session.WithGenerateTimeout(input.Timeout))
	}
	if input.Logger != nil {
		opts = append(opts, session.WithLogger(input.Logger))
	}
	ctrl := session.New(st, gen, opts...)
	defer ctrl.Close()

	if err := ctrl.Open(ctx, input.ID); err != nil {
		return nil, err
	}
	task, err := ctrl.Generate(ctx)
	if err != nil {
		return nil, err
	}
	res, err := task.Wait(ctx)
	if err != nil {
		return nil, err
	}

	m, err := st.GetMeeting(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &GenerateOutput{
		ID:        m.ID,
		TaskID:    task.ID,
		Minutes:   res.Minutes,
		Tags:      m.Tags,
		UpdatedAt: m.UpdatedAt.UnixMilli(),
	}, nil
}
