package worker

// access_event_worker.go
// Persists scan decisions from QueueAccessEvents into the access_events audit
// table. Insert only.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Khaledxab/mygym-backend/internal/model"
	"github.com/Khaledxab/mygym-backend/internal/repository"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

// AccessEventJob is the payload sent to QueueAccessEvents.
type AccessEventJob struct {
	AccountID     uuid.UUID  `json:"account_id"`
	GymID         *uuid.UUID `json:"gym_id,omitempty"`
	Granted       bool       `json:"granted"`
	State         string     `json:"state"`
	Reason        string     `json:"reason,omitempty"`
	QRToken       string     `json:"qr_token,omitempty"`
	DeviceInfo    string     `json:"device_info,omitempty"`
	Location      string     `json:"location,omitempty"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`
	DecidedAt     time.Time  `json:"decided_at"`
}

type AccessEventWorker struct {
	repo repository.AccessEventRepository
}

func NewAccessEventWorker(repo repository.AccessEventRepository) *AccessEventWorker {
	return &AccessEventWorker{repo: repo}
}

func (w *AccessEventWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var job AccessEventJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return backoff.Permanent(fmt.Errorf("access_event_worker: invalid payload: %w", err))
	}
	if job.AccountID == uuid.Nil {
		return backoff.Permanent(fmt.Errorf("access_event_worker: missing account_id"))
	}

	return w.repo.Create(ctx, &model.AccessEvent{
		AccountID:     job.AccountID,
		GymID:         job.GymID,
		Granted:       job.Granted,
		State:         job.State,
		Reason:        job.Reason,
		QRToken:       job.QRToken,
		DeviceInfo:    job.DeviceInfo,
		Location:      job.Location,
		TransactionID: job.TransactionID,
		DecidedAt:     job.DecidedAt,
	})
}
