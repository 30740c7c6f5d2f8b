package models

// ApplicationStatus is a pipeline stage an application can occupy.
type ApplicationStatus string

const (
	StatusWishlist        ApplicationStatus = "wishlist"
	StatusApplied         ApplicationStatus = "applied"
	StatusInterview       ApplicationStatus = "interview"
	StatusPendingDecision ApplicationStatus = "pending_decision"
	StatusOffer           ApplicationStatus = "offer"
	StatusRejected        ApplicationStatus = "rejected"
	StatusArchived        ApplicationStatus = "archived"
)

// ApplicationStatuses lists every pipeline stage in board order.
var ApplicationStatuses = []ApplicationStatus{
	StatusWishlist,
	StatusApplied,
	StatusInterview,
	StatusPendingDecision,
	StatusOffer,
	StatusRejected,
	StatusArchived,
}

// Valid reports whether the status belongs to the pipeline.
func (s ApplicationStatus) Valid() bool {
	for _, status := range ApplicationStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// InterviewStatus captures the lifecycle of a single interview or meeting.
type InterviewStatus string

const (
	InterviewScheduled InterviewStatus = "scheduled"
	InterviewCompleted InterviewStatus = "completed"
	InterviewCancelled InterviewStatus = "cancelled"
)

// StatusHistoryEntry records one status transition. Date is kept raw because
// imported records may carry missing or malformed timestamps.
type StatusHistoryEntry struct {
	Status ApplicationStatus `json:"status"`
	Date   string            `json:"date"`
	Notes  string            `json:"notes,omitempty"`
}

// Interview is a scheduled, completed or cancelled interview.
type Interview struct {
	ID     string          `json:"id,omitempty"`
	Status InterviewStatus `json:"status"`
	Type   string          `json:"type,omitempty"`
	Date   string          `json:"date,omitempty"`
}

// Application is the unit tracked through the pipeline.
type Application struct {
	ID            string               `json:"id"`
	UserID        string               `json:"userId,omitempty"`
	Company       string               `json:"company,omitempty"`
	Role          string               `json:"role,omitempty"`
	Status        ApplicationStatus    `json:"status"`
	StatusHistory []StatusHistoryEntry `json:"statusHistory,omitempty"`
	Interviews    []Interview          `json:"interviews,omitempty"`
	CreatedAt     string               `json:"createdAt,omitempty"`
	AppliedDate   string               `json:"appliedDate,omitempty"`
	UpdatedAt     string               `json:"updatedAt,omitempty"`
}
