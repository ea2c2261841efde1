package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/99minutos/seedboard/internal/core/domain"
)

func TestIdentityCmd_PrintsIdentity(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"identity", "--name", "alice", "--seed", "s3cret"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	id := domain.ResolveIdentity("alice", "s3cret")
	want := string(id) + "\talice@" + string(id) + "\n"
	if out.String() != want {
		t.Fatalf("expected %q, got %q", want, out.String())
	}
}

func TestIdentityCmd_RequiresBothFlags(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"identity", "--name", "alice"})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--seed") {
		t.Fatalf("expected missing flag error, got %v", err)
	}
}
