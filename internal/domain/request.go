package domain

import (
	"time"
)

// Status of a deposit, withdrawal or verification record.
// Values other than the three below are accepted as non-terminal labels.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransition reports whether a record in s may move to next.
func (s Status) CanTransition(next Status) bool {
	return next != "" && !s.IsTerminal()
}

type RecordType string

const (
	RecordDeposit      RecordType = "deposit"
	RecordWithdrawal   RecordType = "withdrawal"
	RecordVerification RecordType = "verification"
)

func ParseRecordType(s string) (RecordType, bool) {
	switch RecordType(s) {
	case RecordDeposit, RecordWithdrawal, RecordVerification:
		return RecordType(s), true
	}
	return "", false
}

// FundKind is the subset of record types that move money.
type FundKind = RecordType

// FundRequest is a deposit or withdrawal awaiting operator review.
type FundRequest struct {
	ID        int64     `json:"id" db:"id"`
	Kind      FundKind  `json:"kind" db:"kind"`
	Username  string    `json:"username" db:"username"`
	Currency  string    `json:"currency" db:"currency"`
	Network   string    `json:"network" db:"network"`
	Amount    float64   `json:"amount" db:"amount"`
	Address   *string   `json:"address,omitempty" db:"address"`
	ProofURL  *string   `json:"proof_url,omitempty" db:"proof_url"`
	Status    Status    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type DepositInput struct {
	Username string
	Currency string
	Network  string
	Amount   string
	ProofURL *string
}

type WithdrawalInput struct {
	Username string
	Currency string
	Network  string
	Amount   string
	Address  string
}

type FundRequestFilter struct {
	Kind     FundKind
	Username string
	Status   Status
	Limit    int
	Offset   int
}

type VerificationKind string

const (
	VerificationPrimary  VerificationKind = "primary"
	VerificationAdvanced VerificationKind = "advanced"
)

type Verification struct {
	ID             int64            `json:"id" db:"id"`
	Kind           VerificationKind `json:"kind" db:"kind"`
	Username       string           `json:"username" db:"username"`
	FullName       *string          `json:"full_name,omitempty" db:"full_name"`
	DocumentType   *string          `json:"document_type,omitempty" db:"document_type"`
	DocumentNumber *string          `json:"document_number,omitempty" db:"document_number"`
	FrontURL       *string          `json:"front_url,omitempty" db:"front_url"`
	BackURL        *string          `json:"back_url,omitempty" db:"back_url"`
	SelfieURL      *string          `json:"selfie_url,omitempty" db:"selfie_url"`
	Status         Status           `json:"status" db:"status"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

type PrimaryVerificationInput struct {
	Username       string
	FullName       string
	DocumentType   string
	DocumentNumber string
}

type AdvancedVerificationInput struct {
	Username  string
	FrontURL  string
	BackURL   string
	SelfieURL string
}

// VerificationStatus holds the status of the newest record of each kind, nil when none exists.
type VerificationStatus struct {
	Primary  *Status `json:"primary"`
	Advanced *Status `json:"advanced"`
}

type VerificationFilter struct {
	Kind     VerificationKind
	Username string
	Status   Status
	Limit    int
	Offset   int
}

type Submission struct {
	ID     int64  `json:"id"`
	Status Status `json:"status"`
}

// Transition is the outcome of an operator status change.
type Transition struct {
	RecordType RecordType `json:"record_type"`
	ID         int64      `json:"id"`
	Found      bool       `json:"found"`
	Changed    bool       `json:"changed"`
	From       Status     `json:"from,omitempty"`
	To         Status     `json:"to"`
	Username   string     `json:"username,omitempty"`
	// Balance is set when the transition moved the account balance.
	Balance *float64 `json:"balance,omitempty"`
}
