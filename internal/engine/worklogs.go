package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"growline/internal/domain"
)

// CreateWorkLog stores a work log and announces it with WorkLogRecorded.
func (e Engine) CreateWorkLog(ctx context.Context, cmd domain.CreateWorkLogCommand) (domain.WorkLog, error) {
	if !cmd.Reason.Valid() {
		return domain.WorkLog{}, fmt.Errorf("%w: reason %q", ErrInvalid, cmd.Reason)
	}
	text := strings.TrimSpace(cmd.Log)
	if text == "" {
		return domain.WorkLog{}, fmt.Errorf("%w: log text is required", ErrInvalid)
	}
	seen := map[string]bool{}
	related := make([]domain.RelatedEntity, 0, len(cmd.RelatedEntities))
	for _, re := range cmd.RelatedEntities {
		if re.EntityType == "" || re.EntityID == "" {
			return domain.WorkLog{}, fmt.Errorf("%w: related entity needs a type and an id", ErrInvalid)
		}
		k := string(re.EntityType) + "/" + re.EntityID
		if seen[k] {
			continue
		}
		seen[k] = true
		related = append(related, re)
	}
	now := e.now().UTC()
	at := cmd.EventDateTime
	if at.IsZero() {
		at = now
	}
	w := domain.WorkLog{
		ID:              uuid.NewString(),
		Reason:          cmd.Reason,
		EventDateTime:   at.UTC(),
		Log:             text,
		RelatedEntities: related,
		CreatedAt:       now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WorkLog{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertWorkLogTx(ctx, tx, w); err != nil {
		return domain.WorkLog{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.WorkLog{}, err
	}
	e.publish(ctx, domain.WorkLogRecorded{WorkLog: w})
	return w, nil
}

func (e Engine) GetWorkLog(ctx context.Context, id string) (domain.WorkLog, error) {
	return e.Repo.GetWorkLog(ctx, id)
}

func (e Engine) SearchWorkLogs(ctx context.Context, s domain.WorkLogSearch) ([]domain.WorkLog, error) {
	return e.Repo.ListWorkLogs(ctx, s)
}
