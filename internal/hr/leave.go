package hr

import (
	"fmt"
	"math"
)

// ApplyDecision moves a pending request to its final state and adjusts the
// balance: approval turns pending days into used days, rejection releases them.
func ApplyDecision(req LeaveRequest, bal LeaveBalance, d Decision) (LeaveRequest, LeaveBalance, error) {
	if req.Status != LeavePending {
		return req, bal, fmt.Errorf("%w: leave request is %s", ErrConflict, req.Status)
	}
	if req.Days <= 0 {
		return req, bal, fmt.Errorf("%w: leave request has no days", ErrInvalidInput)
	}
	if bal.Pending+epsilon < req.Days {
		return req, bal, fmt.Errorf("%w: pending balance %.1f below request %.1f", ErrConflict, bal.Pending, req.Days)
	}

	bal.Pending = round(bal.Pending - req.Days)
	if d.Approve {
		bal.Used = round(bal.Used + req.Days)
		req.Status = LeaveApproved
	} else {
		req.Status = LeaveRejected
	}
	approver := d.ApproverID
	at := d.At.UTC()
	req.ApproverID = &approver
	req.DecidedAt = &at
	req.Comment = d.Comment
	return req, bal, nil
}

const epsilon = 1e-9

// round keeps half-day arithmetic exact.
func round(v float64) float64 {
	return math.Round(v*100) / 100
}
