package domain

// Lead is a prospective customer tracked through the sales funnel.
type Lead struct {
	ID              string  `json:"id"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	Phone           string  `json:"phone"`
	Email           string  `json:"email,omitempty"`
	Telegram        string  `json:"telegram,omitempty"`
	WhatsApp        string  `json:"whatsapp,omitempty"`
	PropertyType    string  `json:"property_type,omitempty" enum:"apartment,villa,townhouse,penthouse,plot,commercial"`
	ListingType     string  `json:"listing_type,omitempty" enum:"sale,rent,offplan"`
	Budget          *int64  `json:"budget,omitempty"`
	Bedrooms        *int    `json:"bedrooms,omitempty"`
	Districts       string  `json:"districts,omitempty"`
	Requirements    string  `json:"requirements,omitempty"`
	Source          string  `json:"source,omitempty" enum:"website,referral,telegram,whatsapp,instagram,portal,walk_in,import,other"`
	Status          string  `json:"status" enum:"new,contacted,qualified,negotiating,converted,lost"`
	Priority        string  `json:"priority" enum:"low,medium,high,urgent"`
	AssignedTo      *string `json:"assigned_to,omitempty"`
	Notes           string  `json:"notes,omitempty"`
	LastContactedAt *string `json:"last_contacted_at,omitempty" format:"date-time"`
	NextFollowUpAt  *string `json:"next_follow_up_at,omitempty" format:"date-time"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
	UpdatedAt       string  `json:"updated_at" format:"date-time"`
}

// Task is a scheduled unit of follow-up work with a due date.
type Task struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Type        string  `json:"type" enum:"follow_up,viewing,call,document,meeting,other"`
	Priority    string  `json:"priority" enum:"low,medium,high,urgent"`
	Status      string  `json:"status" enum:"pending,in_progress,completed,cancelled"`
	DueDate     string  `json:"due_date" format:"date-time"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
	AssignedTo  string  `json:"assigned_to"`
	CreatedBy   string  `json:"created_by"`
	LeadID      *string `json:"lead_id,omitempty"`
	DealID      *string `json:"deal_id,omitempty"`
	// LastAlert is the last due-date classification the scanner notified for.
	// Owned by the scanner; nothing else writes it.
	LastAlert string `json:"last_alert" enum:"none,due_soon,overdue"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

// Deal is a lead that progressed into a transaction with monetary value.
type Deal struct {
	ID        string  `json:"id"`
	LeadID    string  `json:"lead_id"`
	Status    string  `json:"status" enum:"negotiation,contract_signed,deposit_received,payment_in_progress,completed,cancelled"`
	DealValue float64 `json:"deal_value"`
	Currency  string  `json:"currency"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	UpdatedAt string  `json:"updated_at" format:"date-time"`
}

// Activity is an immutable interaction log entry attached to a lead.
type Activity struct {
	ID        string `json:"id"`
	LeadID    string `json:"lead_id"`
	Type      string `json:"type" enum:"call,telegram,whatsapp,email,meeting,viewing,note,status_change"`
	Outcome   string `json:"outcome,omitempty" enum:"answered,no_answer,voicemail,busy"`
	Note      string `json:"note,omitempty"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// NotificationRef is the discriminated back-reference a notification may
// carry for deep-linking. Kind is empty for unreferenced notifications;
// a notification never references more than one entity.
type NotificationRef struct {
	Kind string `json:"kind,omitempty" enum:"task,lead"`
	ID   string `json:"id,omitempty"`
}

type Notification struct {
	ID        string          `json:"id"`
	Recipient string          `json:"recipient"`
	Type      string          `json:"type" enum:"task_assigned,task_due_soon,task_overdue,task_completed,lead_assigned,lead_status_change,deal_status_change"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Ref       NotificationRef `json:"ref"`
	IsRead    bool            `json:"is_read"`
	CreatedAt string          `json:"created_at" format:"date-time"`
}

// Member is an agency team user that can be assigned leads and tasks.
type Member struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	Role          string `json:"role" enum:"owner,admin,senior_agent,agent,coordinator"`
	ChannelHandle string `json:"channel_handle,omitempty"`
	IsActive      bool   `json:"is_active"`
	CreatedAt     string `json:"created_at" format:"date-time"`
	UpdatedAt     string `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// Lead statuses.
const (
	LeadNew         = "new"
	LeadContacted   = "contacted"
	LeadQualified   = "qualified"
	LeadNegotiating = "negotiating"
	LeadConverted   = "converted"
	LeadLost        = "lost"
)

// Task statuses.
const (
	TaskPending    = "pending"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
	TaskCancelled  = "cancelled"
)

// Deal statuses, in funnel order.
const (
	DealNegotiation       = "negotiation"
	DealContractSigned    = "contract_signed"
	DealDepositReceived   = "deposit_received"
	DealPaymentInProgress = "payment_in_progress"
	DealCompleted         = "completed"
	DealCancelled         = "cancelled"
)

// Priorities, shared by leads and tasks.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Member roles.
const (
	RoleOwner       = "owner"
	RoleAdmin       = "admin"
	RoleSeniorAgent = "senior_agent"
	RoleAgent       = "agent"
	RoleCoordinator = "coordinator"
)

// Notification types.
const (
	NotifyTaskAssigned     = "task_assigned"
	NotifyTaskDueSoon      = "task_due_soon"
	NotifyTaskOverdue      = "task_overdue"
	NotifyTaskCompleted    = "task_completed"
	NotifyLeadAssigned     = "lead_assigned"
	NotifyLeadStatusChange = "lead_status_change"
	NotifyDealStatusChange = "deal_status_change"
)

// Due-date classifications tracked by the scanner.
const (
	AlertNone    = "none"
	AlertDueSoon = "due_soon"
	AlertOverdue = "overdue"
)

var (
	leadStatuses  = set(LeadNew, LeadContacted, LeadQualified, LeadNegotiating, LeadConverted, LeadLost)
	taskStatuses  = set(TaskPending, TaskInProgress, TaskCompleted, TaskCancelled)
	dealStatuses  = set(DealNegotiation, DealContractSigned, DealDepositReceived, DealPaymentInProgress, DealCompleted, DealCancelled)
	priorities    = set(PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent)
	roles         = set(RoleOwner, RoleAdmin, RoleSeniorAgent, RoleAgent, RoleCoordinator)
	taskTypes     = set("follow_up", "viewing", "call", "document", "meeting", "other")
	activityTypes = set("call", "telegram", "whatsapp", "email", "meeting", "viewing", "note", "status_change")
	callOutcomes  = set("answered", "no_answer", "voicemail", "busy")
	propertyTypes = set("apartment", "villa", "townhouse", "penthouse", "plot", "commercial")
	listingTypes  = set("sale", "rent", "offplan")
	leadSources   = set("website", "referral", "telegram", "whatsapp", "instagram", "portal", "walk_in", "import", "other")
)

func set(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

func ValidLeadStatus(s string) bool   { _, ok := leadStatuses[s]; return ok }
func ValidTaskStatus(s string) bool   { _, ok := taskStatuses[s]; return ok }
func ValidDealStatus(s string) bool   { _, ok := dealStatuses[s]; return ok }
func ValidPriority(s string) bool     { _, ok := priorities[s]; return ok }
func ValidRole(s string) bool         { _, ok := roles[s]; return ok }
func ValidTaskType(s string) bool     { _, ok := taskTypes[s]; return ok }
func ValidActivityType(s string) bool { _, ok := activityTypes[s]; return ok }
func ValidCallOutcome(s string) bool  { _, ok := callOutcomes[s]; return ok }
func ValidPropertyType(s string) bool { _, ok := propertyTypes[s]; return ok }
func ValidListingType(s string) bool  { _, ok := listingTypes[s]; return ok }
func ValidLeadSource(s string) bool   { _, ok := leadSources[s]; return ok }

// TerminalLeadStatus reports whether a lead status has no outgoing edges.
func TerminalLeadStatus(s string) bool { return s == LeadConverted || s == LeadLost }

// TerminalTaskStatus reports whether a task status has no outgoing edges.
func TerminalTaskStatus(s string) bool { return s == TaskCompleted || s == TaskCancelled }

// TerminalDealStatus reports whether a deal status has no outgoing edges.
func TerminalDealStatus(s string) bool { return s == DealCompleted || s == DealCancelled }

// ContactActivity reports whether an activity type counts as reaching the lead.
func ContactActivity(activityType string) bool {
	switch activityType {
	case "call", "telegram", "whatsapp", "email", "meeting", "viewing":
		return true
	}
	return false
}
