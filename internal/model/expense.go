// Package model defines the cost allocation domain: cost units, grouping
// entities, metrics, the editable state and immutable snapshots of it.
package model

import "strings"

// ExpenseKey names an allocation matrix column.
type ExpenseKey string

// Expense columns in display order. Staff comes straight from the unit,
// the rest are carved out of its non-staff amount.
const (
	ExpenseStaff       ExpenseKey = "Staff"
	ExpenseElectricity ExpenseKey = "Electricity"
	ExpenseStationary  ExpenseKey = "Stationary"
	ExpenseMaintenance ExpenseKey = "Maintenance"
	ExpenseTravel      ExpenseKey = "Travel"
)

// NonStaffExpenses is the enumerated order used when splitting non-staff cost.
var NonStaffExpenses = []ExpenseKey{
	ExpenseElectricity,
	ExpenseStationary,
	ExpenseMaintenance,
	ExpenseTravel,
}

// Expenses returns every expense column, Staff first.
func Expenses() []ExpenseKey {
	return append([]ExpenseKey{ExpenseStaff}, NonStaffExpenses...)
}

// ExpenseColumns returns the matrix column names.
func ExpenseColumns() []string {
	keys := Expenses()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}

// ParseExpense resolves a column name case-insensitively.
func ParseExpense(s string) (ExpenseKey, bool) {
	for _, k := range Expenses() {
		if strings.EqualFold(string(k), strings.TrimSpace(s)) {
			return k, true
		}
	}
	return "", false
}
