package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"atm-ledger/pkg/config"
	"atm-ledger/pkg/directory"
	"atm-ledger/pkg/ledger"
	"atm-ledger/pkg/ledger/memory"
)

// script feeds lines to session and treats PIN prompts as ordinary lines.
type script struct {
	lines []string
	out   io.Writer
}

func (s *script) ReadLine(prompt string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *script) Secret(ctx context.Context, p directory.Prompt) (string, error) {
	if p.PreviousFailed {
		printIncorrectPIN(s.out, p.Remaining)
	}
	return s.ReadLine("Enter PIN: ")
}

func newTestDirectory(t *testing.T) *directory.Directory {
	t.Helper()
	dir, err := directory.New(directory.Options{
		Store:  memory.NewStore(""),
		Policy: ledger.DefaultPolicy(),
	})
	if err != nil {
		t.Fatalf("directory.New failed: %v", err)
	}
	for _, p := range config.DefaultAccounts() {
		if _, err := dir.AddAccount(context.Background(), p); err != nil {
			t.Fatalf("AddAccount failed: %v", err)
		}
	}
	return dir
}

func runSession(t *testing.T, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	dir := newTestDirectory(t)
	defer dir.Close()

	if err := session(context.Background(), dir, &script{lines: lines, out: &out}, &out); err != nil {
		t.Fatalf("session failed: %v", err)
	}
	return out.String()
}

func assertContains(t *testing.T, output string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(output, w) {
			t.Errorf("Expected output to contain %q, got:\n%s", w, output)
		}
	}
}

func TestSession_DepositWithdrawHistory(t *testing.T) {
	output := runSession(t,
		"12345", "1234",
		"1", "1000",
		"2", "500",
		"3",
		"4",
		"5",
	)

	assertContains(t, output,
		"Authentication successful!",
		"You deposited: 1000 | Your current balance: 6000",
		"Withdrawn: 500 | Your current balance: 5500",
		"Your current balance: 5500",
		"--- Transaction History ---",
		"Deposit 1000 ",
		"Withdrawal 500 ",
		"Thank you for using the ATM!",
	)
}

func TestSession_InsufficientFunds(t *testing.T) {
	output := runSession(t, "67890", "5678", "2", "4000", "3", "5")

	assertContains(t, output, "Insufficient funds!", "Your current balance: 3000")
}

func TestSession_EmptyHistory(t *testing.T) {
	output := runSession(t, "67890", "5678", "4", "5")

	assertContains(t, output, "No transaction history found.")
}

func TestSession_UnknownAccount(t *testing.T) {
	output := runSession(t, "99999")

	assertContains(t, output, "Account not found. Exiting...")
	if strings.Contains(output, "ATM Menu") {
		t.Error("Menu shown for unknown account")
	}
}

func TestSession_TooManyAttempts(t *testing.T) {
	output := runSession(t, "12345", "0000", "1111", "2222", "1234")

	assertContains(t, output,
		"Incorrect PIN. Attempts left: 2",
		"Incorrect PIN. Attempts left: 1",
		"Incorrect PIN. Attempts left: 0",
		"Too many incorrect attempts. Exiting...",
	)
	if strings.Index(output, "Attempts left: 0") > strings.Index(output, "Too many incorrect attempts") {
		t.Errorf("Expected the last failure to be reported before exiting:\n%s", output)
	}
	if strings.Contains(output, "Authentication successful!") {
		t.Error("Fourth PIN must not be consulted")
	}
}

func TestSession_InvalidInput(t *testing.T) {
	output := runSession(t, "12345", "1234", "9", "1", "abc", "1", "0", "5")

	assertContains(t, output,
		"Invalid choice, please try again!",
		"Invalid amount, please try again!",
		"Amount must be greater than zero.",
		"Thank you for using the ATM!",
	)
}

func TestSession_EndOfInput(t *testing.T) {
	output := runSession(t, "12345", "1234", "3")

	assertContains(t, output, "Your current balance: 5000")
	if strings.Contains(output, "Thank you") {
		t.Error("End of input is not an Exit")
	}
}

func TestBuildDirectory_Memory(t *testing.T) {
	t.Setenv("ATM_LEDGER_BACKEND", "memory")
	t.Setenv("ATM_MIRROR_BACKEND", "file")
	t.Setenv("ATM_MIRROR_DIR", t.TempDir())

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	dir, err := buildDirectory(cfg, nil)
	if err != nil {
		t.Fatalf("buildDirectory failed: %v", err)
	}
	if err := dir.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
