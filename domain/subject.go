package domain

import "context"

// AccountStatus is the lifecycle state of a subject's account.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
	AccountStatusDeleted   AccountStatus = "deleted"
)

// Subject is the identity a token is issued for, supplied by the identity
// source at issuance time.
type Subject struct {
	ID     string        `bson:"_id"    json:"id"`
	Email  string        `bson:"email"  json:"email"`
	Role   string        `bson:"role"   json:"role"`
	Status AccountStatus `bson:"status" json:"status"`
}

// IsActive reports whether tokens may be issued for this subject.
func (s *Subject) IsActive() bool {
	return s.Status == AccountStatusActive
}

// SubjectProvider is the narrow interface to the identity source.
type SubjectProvider interface {
	GetSubjectByID(ctx context.Context, id string) (*Subject, error)
}
