package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"statpool/internal/fault"
)

func TestPresentUserRejection(t *testing.T) {
	err := fmt.Errorf("send transaction: %w",
		fault.Classify(errors.New("ACTION_REJECTED by wallet")))
	if got := present(zap.NewNop(), err); got != nil {
		t.Fatalf("declined action must not surface as an error, got %v", got)
	}
}

func TestPresentPolicyRejection(t *testing.T) {
	err := fault.Classify(errors.New("429 too many requests"))
	got := present(zap.NewNop(), err)
	if !errors.Is(got, fault.ErrPolicyRejected) {
		t.Fatalf("policy rejection must keep its sentinel, got %v", got)
	}
	if !strings.Contains(got.Error(), "retry later") {
		t.Fatalf("policy rejection must carry retry guidance, got %v", got)
	}
}

func TestPresentPassesOtherErrors(t *testing.T) {
	err := errors.New("execution reverted")
	if got := present(zap.NewNop(), err); got != err {
		t.Fatalf("unclassified errors must pass through, got %v", got)
	}
	if present(zap.NewNop(), nil) != nil {
		t.Fatalf("nil result must stay nil")
	}
}
