package hr

import (
	"errors"
	"time"
)

var (
	ErrInvalidInput = errors.New("hr: invalid input")
	ErrNotFound     = errors.New("hr: not found")
	ErrConflict     = errors.New("hr: conflict")
)

// Tenant is one customer organization.
type Tenant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

type TenantInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AdminInput describes the first ADMIN user of a new tenant.
type AdminInput struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// NewAdmin is AdminInput after validation, carrying the password hash.
type NewAdmin struct {
	Email        string
	Username     string
	PasswordHash string
	FirstName    string
	LastName     string
}

type Provisioned struct {
	Tenant      Tenant `json:"tenant"`
	AdminUserID int64  `json:"adminUserId"`
}

type Employee struct {
	ID           int64     `json:"id"`
	TenantID     int64     `json:"tenantId"`
	UserID       *int64    `json:"userId,omitempty"`
	EmployeeCode string    `json:"employeeCode"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	Department   string    `json:"department,omitempty"`
	Position     string    `json:"position,omitempty"`
	Status       string    `json:"status"`
	ManagerID    *int64    `json:"managerId,omitempty"`
	HireDate     time.Time `json:"hireDate"`
}

type LeaveStatus string

const (
	LeavePending  LeaveStatus = "PENDING"
	LeaveApproved LeaveStatus = "APPROVED"
	LeaveRejected LeaveStatus = "REJECTED"
)

type LeaveRequest struct {
	ID          int64       `json:"id"`
	TenantID    int64       `json:"tenantId"`
	EmployeeID  int64       `json:"employeeId"`
	LeaveTypeID int64       `json:"leaveTypeId"`
	StartDate   time.Time   `json:"startDate"`
	EndDate     time.Time   `json:"endDate"`
	Days        float64     `json:"days"`
	Reason      string      `json:"reason,omitempty"`
	Status      LeaveStatus `json:"status"`
	ApproverID  *int64      `json:"approverId,omitempty"`
	DecidedAt   *time.Time  `json:"decidedAt,omitempty"`
	Comment     string      `json:"comment,omitempty"`
}

// Snapshot is the audited view of a leave request.
func (r LeaveRequest) Snapshot() map[string]any {
	m := map[string]any{
		"status": string(r.Status),
		"days":   r.Days,
	}
	if r.ApproverID != nil {
		m["approverId"] = *r.ApproverID
	}
	if r.Comment != "" {
		m["comment"] = r.Comment
	}
	return m
}

// LeaveBalance tracks one employee's allowance of one leave type for a year.
type LeaveBalance struct {
	TenantID    int64   `json:"tenantId"`
	EmployeeID  int64   `json:"employeeId"`
	LeaveTypeID int64   `json:"leaveTypeId"`
	Year        int     `json:"year"`
	Total       float64 `json:"total"`
	Used        float64 `json:"used"`
	Pending     float64 `json:"pending"`
}

func (b LeaveBalance) Available() float64 {
	return b.Total - b.Used - b.Pending
}

// Decision is a leave approval or rejection.
type Decision struct {
	RequestID  int64
	ApproverID int64
	Approve    bool
	Comment    string
	At         time.Time
}

// DecisionResult carries both sides of a decided request for auditing.
type DecisionResult struct {
	Before  LeaveRequest `json:"-"`
	After   LeaveRequest `json:"request"`
	Balance LeaveBalance `json:"balance"`
}
