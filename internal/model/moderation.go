package model

import (
	"github.com/google/uuid"
)

// ModerationStatus is the lifecycle state of every crowd-submitted entity.
type ModerationStatus string

const (
	StatusPending  ModerationStatus = "pending"
	StatusApproved ModerationStatus = "approved"
	StatusRejected ModerationStatus = "rejected"
)

// Moderation is embedded by Store, Category, Product and Price.
// Transitions are one-way: pending → approved or pending → rejected.
// There is no un-reject — a corrected resubmission is a new entity.
type Moderation struct {
	Status      ModerationStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	SubmittedBy uuid.UUID        `gorm:"type:uuid;not null;index"`
}

// VisibleTo reports whether the entity may be shown to the viewer:
// approved entities are public; pending and rejected ones are visible
// only to their submitter and to moderators.
func (m Moderation) VisibleTo(viewerID uuid.UUID, isModerator bool) bool {
	if m.Status == StatusApproved {
		return true
	}
	return isModerator || m.SubmittedBy == viewerID
}
