package queue

import (
	"fmt"
	"time"
)

// Job — задание на построение миниатюр для одного файла.
type Job struct {
	ID          string `json:"id"`
	FileID      string `json:"fileId"`
	RequesterID string `json:"requesterId"`
	State       State  `json:"state"`
	// Attempts — число выданных аренд, включая текущую
	Attempts int `json:"attempts"`
	// NotBefore — задание не выдаётся раньше этого момента (задержка повтора)
	NotBefore time.Time `json:"notBefore"`
	// LeaseUntil и LeaseOwner заданы только в состоянии running
	LeaseUntil time.Time `json:"leaseUntil,omitzero"`
	LeaseOwner string    `json:"leaseOwner,omitempty"`
	LastError  string    `json:"lastError,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// transition переводит задание в состояние to.
func (j *Job) transition(to State, now time.Time) error {
	if !CanTransition(j.State, to) {
		return fmt.Errorf("%w: %s → %s (задание %s)", ErrInvalidTransition, j.State, to, j.ID)
	}
	j.State = to
	j.UpdatedAt = now
	if to != StateRunning {
		j.LeaseUntil = time.Time{}
		j.LeaseOwner = ""
	}
	return nil
}

// leaseExpired сообщает, что аренда running-задания истекла.
func (j *Job) leaseExpired(now time.Time) bool {
	return j.State == StateRunning && now.After(j.LeaseUntil)
}
