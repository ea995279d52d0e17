// Package invoice proposes branch-scoped booking numbers.
//
// Numbering is optimistic and best-effort. Two operators at the same branch can
// be shown the same number and both persist it; the re-check at submit time only
// narrows that window. A backend with an atomic counter can replace Allocator
// behind the NumberAllocator interface.
package invoice

import (
	"context"
	"fmt"
	"log"
	"strings"

	"cargodesk/backend/internal/domain"
)

const (
	suffixWidth       = 6
	defaultBranchCode = "BR"
)

// CounterSource reads the numbering state of a branch.
type CounterSource interface {
	FetchBranchInvoiceCounter(ctx context.Context, branchID int64) (domain.BranchCounter, error)
}

type NumberAllocator interface {
	PeekNext(ctx context.Context, branchID int64) (string, error)
	AssignAtSubmit(ctx context.Context, candidate string, branchID int64) Assignment
}

// Assignment is the outcome of the pre-persist check. Corrected is set when the
// number shown on the form was replaced.
type Assignment struct {
	BookingNo string
	Candidate string
	Fetched   string
	Corrected bool
}

type Allocator struct {
	source CounterSource
}

func NewAllocator(source CounterSource) *Allocator {
	return &Allocator{source: source}
}

// PeekNext returns max(start number, highest observed + 1) for the branch. The
// counter reports the highest number already issued, so the next free one is
// one past it; a fresh branch starts at its configured start number.
func (a *Allocator) PeekNext(ctx context.Context, branchID int64) (string, error) {
	counter, err := a.source.FetchBranchInvoiceCounter(ctx, branchID)
	if err != nil {
		return "", fmt.Errorf("fetch invoice counter for branch %d: %w", branchID, err)
	}
	next := counter.HighestObserved + 1
	if counter.StartNumber > next {
		next = counter.StartNumber
	}
	if next < 1 {
		next = 1
	}
	return Format(counter.BranchCode, next), nil
}

// AssignAtSubmit re-reads the counter right before persisting. When the fresh
// number differs from the candidate, the candidate's prefix is joined with the
// fresh numeric suffix. A failed re-read keeps the candidate.
func (a *Allocator) AssignAtSubmit(ctx context.Context, candidate string, branchID int64) Assignment {
	candidate = strings.TrimSpace(candidate)
	out := Assignment{BookingNo: candidate, Candidate: candidate}

	fresh, err := a.PeekNext(ctx, branchID)
	if err != nil {
		log.Printf("[invoice] WARN: re-check failed, keeping %q: %v", candidate, err)
		return out
	}
	out.Fetched = fresh

	switch {
	case candidate == "":
		out.BookingNo = fresh
		out.Corrected = true
	case fresh != candidate:
		out.BookingNo = Combine(candidate, fresh)
		out.Corrected = out.BookingNo != candidate
		if out.Corrected {
			log.Printf("[invoice] booking number %q taken at branch %d, using %q", candidate, branchID, out.BookingNo)
		}
	}
	return out
}

// Format renders "<code>:<6 digits>", or just the digits when code is empty.
func Format(code string, number int64) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Sprintf("%0*d", suffixWidth, number)
	}
	return fmt.Sprintf("%s:%0*d", code, suffixWidth, number)
}

// Combine keeps the prefix of shown and takes the digit run of fetched. If either
// side has no digits, fetched is returned as is.
func Combine(shown string, fetched string) string {
	prefix, _, rest, ok := splitDigits(shown)
	if !ok {
		return fetched
	}
	_, digits, _, ok := splitDigits(fetched)
	if !ok {
		return fetched
	}
	return prefix + digits + rest
}

// IncrementForNextForm advances the last digit run of last by one, keeping the
// prefix and zero padding: "BR:000042" becomes "BR:000043".
func IncrementForNextForm(last string) string {
	last = strings.TrimSpace(last)
	if last == "" {
		return Format(defaultBranchCode, 1)
	}
	prefix, digits, rest, ok := splitDigits(last)
	if !ok {
		return fmt.Sprintf("%s-%0*d", last, suffixWidth, 1)
	}
	return prefix + incrementDigits(digits) + rest
}

// splitDigits cuts s around its last run of ASCII digits.
func splitDigits(s string) (prefix, digits, rest string, ok bool) {
	end := -1
	for i := len(s) - 1; i >= 0; i-- {
		if isDigit(s[i]) {
			end = i + 1
			break
		}
	}
	if end < 0 {
		return s, "", "", false
	}
	start := end
	for start > 0 && isDigit(s[start-1]) {
		start--
	}
	return s[:start], s[start:end], s[end:], true
}

func incrementDigits(digits string) string {
	b := []byte(digits)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < '9' {
			b[i]++
			return string(b)
		}
		b[i] = '0'
	}
	return "1" + string(b)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
