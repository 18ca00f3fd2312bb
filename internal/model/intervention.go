package model

import "time"

// InterventionType names the outreach playbook chosen for an at-risk tutor.
type InterventionType string

const (
	InterventionFirstSession InterventionType = "first_session"
	InterventionChurn        InterventionType = "churn"
	InterventionQuality      InterventionType = "quality"
	InterventionTechnical    InterventionType = "technical"
	InterventionEngagement   InterventionType = "engagement"
)

// InterventionStatus is the furthest delivery-funnel stage the outreach reached.
type InterventionStatus string

const (
	// InterventionResponded means the tutor engaged with the outreach.
	InterventionResponded InterventionStatus = "responded"
	// InterventionDelivered means the email landed but was never opened.
	InterventionDelivered InterventionStatus = "delivered"
	// InterventionOpened means the email was opened but drew no response.
	InterventionOpened InterventionStatus = "opened"
)

// MaxInterventionsPerTutor caps outreach volume per tutor per run.
const MaxInterventionsPerTutor = 4

// Intervention is one outreach record for an at-risk tutor, with the delivery
// funnel (sent → delivered → opened → clicked/responded) and before/after
// engagement deltas.
type Intervention struct {
	InterventionID      string             `json:"intervention_id"`
	TutorID             string             `json:"tutor_id"`
	InterventionType    InterventionType   `json:"intervention_type"`
	Channel             string             `json:"channel"`
	Subject             string             `json:"subject"`
	Content             string             `json:"content"`
	TemplateID          string             `json:"template_id"`
	ExperimentID        *string            `json:"experiment_id,omitempty"`
	ExperimentVariant   *string            `json:"experiment_variant,omitempty"`
	SentAt              time.Time          `json:"sent_at"`
	DeliveredAt         *time.Time         `json:"delivered_at,omitempty"`
	OpenedAt            *time.Time         `json:"opened_at,omitempty"`
	ClickedAt           *time.Time         `json:"clicked_at,omitempty"`
	RespondedAt         *time.Time         `json:"responded_at,omitempty"`
	ResponseType        *string            `json:"response_type,omitempty"`
	EngagementBefore    float64            `json:"engagement_before"`
	EngagementAfter     float64            `json:"engagement_after"`
	SessionsBeforeCount int                `json:"sessions_before_count"`
	SessionsAfterCount  int                `json:"sessions_after_count"`
	Status              InterventionStatus `json:"status"`
}
