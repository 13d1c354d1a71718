package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentKind string

const (
	PaymentKindRegistration PaymentKind = "registration"
	PaymentKindTuition      PaymentKind = "tuition"
	PaymentKindCourse       PaymentKind = "course"
	PaymentKindOther        PaymentKind = "other"
)

// ApplyResult describes what a single payment changed.
type ApplyResult struct {
	BecameCleared   bool  `json:"became_cleared"`
	CompletedBlocks []int `json:"completed_blocks,omitempty"`
	CurrentBlock    int   `json:"current_block"`
}

// Recompute derives balance and is_cleared from total_fee and paid_amount.
func (m *FinancialStatusModel) Recompute() {
	m.FinancialStatusBalance = m.FinancialStatusTotalFee.Sub(m.FinancialStatusPaidAmount)
	m.FinancialStatusIsCleared = !m.FinancialStatusBalance.IsPositive()
}

func (m *FinancialStatusModel) blockPaid(n int) bool {
	switch n {
	case 1:
		return m.FinancialStatusBlock1Paid
	case 2:
		return m.FinancialStatusBlock2Paid
	case 3:
		return m.FinancialStatusBlock3Paid
	}
	return false
}

func (m *FinancialStatusModel) setBlockPaid(n int) {
	switch n {
	case 1:
		m.FinancialStatusBlock1Paid = true
	case 2:
		m.FinancialStatusBlock2Paid = true
	case 3:
		m.FinancialStatusBlock3Paid = true
	}
}

// BlockPaid reports whether block n (1-based) is settled.
func (m *FinancialStatusModel) BlockPaid(n int) bool { return m.blockPaid(n) }

// ApplyPayment adds amount to the ledger row. thresholds are the cumulative
// block thresholds (see PaymentPlanModel.Thresholds). now stamps cleared_at.
func (m *FinancialStatusModel) ApplyPayment(amount decimal.Decimal, kind PaymentKind, thresholds []decimal.Decimal, now time.Time) ApplyResult {
	wasCleared := m.FinancialStatusIsCleared

	m.FinancialStatusPaidAmount = m.FinancialStatusPaidAmount.Add(amount)
	if kind == PaymentKindRegistration {
		m.FinancialStatusRegistrationPaid = true
	}
	m.Recompute()

	res := ApplyResult{}
	if kind != PaymentKindOther {
		res.CompletedBlocks = m.AdvanceBlocks(thresholds)
	}
	res.CurrentBlock = m.FinancialStatusCurrentBlock

	if m.FinancialStatusIsCleared && !wasCleared {
		res.BecameCleared = true
		t := now
		m.FinancialStatusClearedAt = &t
	}
	return res
}

// AddCharge menambah tagihan (denda) ke total_fee tanpa mengubah paid_amount.
func (m *FinancialStatusModel) AddCharge(amount decimal.Decimal) {
	m.FinancialStatusTotalFee = m.FinancialStatusTotalFee.Add(amount)
	m.FinancialStatusLateFees = m.FinancialStatusLateFees.Add(amount)
	m.Recompute()
	if !m.FinancialStatusIsCleared {
		m.FinancialStatusClearedAt = nil
	}
}

// AdvanceBlocks flips block flags strictly in order: block n is only
// considered once block n-1 is paid. current_block moves to the first unpaid
// block, capped at the number of blocks. Returns the newly completed blocks.
func (m *FinancialStatusModel) AdvanceBlocks(thresholds []decimal.Decimal) []int {
	var completed []int
	for i, th := range thresholds {
		n := i + 1
		if m.blockPaid(n) {
			continue
		}
		if m.FinancialStatusPaidAmount.LessThan(th) {
			break
		}
		m.setBlockPaid(n)
		completed = append(completed, n)
	}

	blocks := len(thresholds)
	if blocks == 0 {
		return completed
	}
	next := 1
	for next <= blocks && m.blockPaid(next) {
		next++
	}
	if next > blocks {
		next = blocks
	}
	if next > m.FinancialStatusCurrentBlock {
		m.FinancialStatusCurrentBlock = next
	}
	return completed
}

// BlocksInOrder is false when a later block is marked paid before an
// earlier one.
func (m *FinancialStatusModel) BlocksInOrder() bool {
	if m.FinancialStatusBlock2Paid && !m.FinancialStatusBlock1Paid {
		return false
	}
	if m.FinancialStatusBlock3Paid && !m.FinancialStatusBlock2Paid {
		return false
	}
	return true
}
