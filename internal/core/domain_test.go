package core

import (
	"errors"
	"strings"
	"testing"
)

func TestEnvelopeValidate(t *testing.T) {
	valid := Envelope{Owner: "user@example.com", Name: "Groceries", Icon: "🛒", Allocation: Money{Cents: 100000}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid envelope rejected: %v", err)
	}

	cases := []struct {
		name string
		mut  func(e *Envelope)
		want error
	}{
		{"empty owner", func(e *Envelope) { e.Owner = " " }, ErrEmptyOwner},
		{"empty name", func(e *Envelope) { e.Name = "" }, ErrEmptyName},
		{"negative allocation", func(e *Envelope) { e.Allocation = Money{Cents: -1} }, ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := valid
			tc.mut(&e)
			if err := e.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	e := valid
	e.Name = strings.Repeat("x", 201)
	if err := e.Validate(); err == nil {
		t.Fatal("overlong name accepted")
	}

	// Zero allocation is legal: envelopes can be funded by income alone.
	e = valid
	e.Allocation = Money{}
	if err := e.Validate(); err != nil {
		t.Fatalf("zero allocation rejected: %v", err)
	}
}

func TestIncomeEntryValidate(t *testing.T) {
	valid := IncomeEntry{EnvelopeID: 3, Label: "Salary", Amount: Money{Cents: 5000}, Date: NewDate(2026, 8, 1)}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid entry rejected: %v", err)
	}

	// Income labels are optional; the engine fills a default.
	e := valid
	e.Label = ""
	if err := e.Validate(); err != nil {
		t.Fatalf("unlabeled income rejected: %v", err)
	}

	e = valid
	e.Amount = Money{}
	if err := e.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	e = valid
	e.EnvelopeID = 0
	if err := e.Validate(); err == nil {
		t.Fatal("entry without envelope accepted")
	}

	e = valid
	e.Date = Date{}
	if err := e.Validate(); err == nil {
		t.Fatal("zero date accepted")
	}
}

func TestExpenseEntryValidate(t *testing.T) {
	valid := ExpenseEntry{EnvelopeID: 3, Label: "Paint", Amount: Money{Cents: 5000}, Date: NewDate(2026, 8, 1)}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid entry rejected: %v", err)
	}

	// Expense labels are required.
	e := valid
	e.Label = " "
	if err := e.Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}

	e = valid
	e.Amount = Money{Cents: -100}
	if err := e.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestStorageErrorWrapping(t *testing.T) {
	cause := errors.New("disk full")
	err := StorageError("create expense", cause)
	if !errors.Is(err, ErrStorage) {
		t.Fatal("StorageError must match ErrStorage")
	}
	if !errors.Is(err, cause) {
		t.Fatal("StorageError must keep the cause in the chain")
	}
}
