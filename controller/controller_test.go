package controller

import "testing"

func TestControllerInitialState(t *testing.T) {
	c := New()
	if c.Failed() {
		t.Fatal("new controller should not be failed")
	}
	if c.ErrorText() != "" {
		t.Fatalf("ErrorText() = %q, want \"\"", c.ErrorText())
	}
}

func TestControllerSetFailedAndReset(t *testing.T) {
	c := New()
	c.SetFailed("boom")
	if !c.Failed() {
		t.Fatal("expected Failed() == true")
	}
	if c.ErrorText() != "boom" {
		t.Fatalf("ErrorText() = %q, want %q", c.ErrorText(), "boom")
	}

	c.Reset()
	if c.Failed() {
		t.Fatal("expected Failed() == false after Reset")
	}
	if c.ErrorText() != "" {
		t.Fatalf("ErrorText() = %q, want \"\" after Reset", c.ErrorText())
	}
}

func TestControllerCancellationIsNoOp(t *testing.T) {
	c := New()
	c.StartCancel()
	if c.IsCanceled() {
		t.Fatal("IsCanceled() should always be false: cancellation is a Non-goal")
	}
	c.NotifyOnCancel(func() { t.Fatal("cancel callback must never fire") })
}
