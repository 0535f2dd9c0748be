package domain

// Workflow status codes. Code 1 is the grouping root, never assigned.
const (
	StatusRoot            = "1"
	StatusDraft           = "10"
	StatusPendingPayment  = "11"
	StatusPendingApproval = "12"
	StatusRevise          = "13"
	StatusRejected        = "14"
	StatusTerminated      = "15"
	StatusApproved        = "16"
)

// EditableStatuses are the codes in which the applicant may still change the application.
var EditableStatuses = map[string]bool{
	StatusDraft:           true,
	StatusPendingPayment:  true,
	StatusPendingApproval: true,
	StatusRevise:          true,
}

// StatusSeed is a row of the seeded status tree.
type StatusSeed struct {
	Code        string
	Internal    string
	External    string
	Description string
	ParentCode  string
}

var StatusTree = []StatusSeed{
	{Code: StatusRoot, Internal: "Member Workflow", Description: "Membership application workflow"},
	{Code: StatusDraft, Internal: "Draft Application", External: "Draft", Description: "Application started, not yet submitted", ParentCode: StatusRoot},
	{Code: StatusPendingPayment, Internal: "Pending Payment", Description: "Submitted, awaiting membership fee", ParentCode: StatusRoot},
	{Code: StatusPendingApproval, Internal: "Pending Approval", Description: "Fee received, awaiting management review", ParentCode: StatusRoot},
	{Code: StatusRevise, Internal: "Revise for Review", External: "Revision Required", Description: "Returned to the applicant for changes", ParentCode: StatusRoot},
	{Code: StatusRejected, Internal: "Rejected", Description: "Application rejected", ParentCode: StatusRoot},
	{Code: StatusTerminated, Internal: "Terminated", Description: "Membership terminated", ParentCode: StatusRoot},
	{Code: StatusApproved, Internal: "Approved", Description: "Membership approved", ParentCode: StatusRoot},
}

// Workflow decision actions.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionRevise  = "revise"
)

var ActionTargets = map[string]string{
	ActionApprove: StatusApproved,
	ActionReject:  StatusRejected,
	ActionRevise:  StatusRevise,
}

const (
	PaymentMethodHitPay       = "hitpay"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodCash         = "cash"
)

const (
	PaymentStatusCreated   = "created"
	PaymentStatusPending   = "pending"
	PaymentStatusPaid      = "paid"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
)

const ProviderHitPay = "hitpay"

const DefaultCurrency = "SGD"

// Transition sources recorded in the workflow audit trail.
const (
	SourceApplicant = "applicant"
	SourceSystem    = "system"
	SourceStaff     = "staff"
	SourceWebhook   = "webhook"
	SourcePoll      = "poll"
	SourceSweeper   = "sweeper"
)

const (
	NotificationTypePayment = "payment"
	NotificationTypeStatus  = "membership_status"
)
