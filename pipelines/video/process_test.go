package video

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunnerCapturesOutput(t *testing.T) {
	requireShell(t)
	res, err := ExecRunner{}.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", `echo out; echo err 1>&2; echo "$SLIDE_TEST_VAR"; exit 3`},
		Env:  []string{"SLIDE_TEST_VAR=hello"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d", res.ExitCode)
	}
	if res.Stdout != "out\nhello\n" || strings.TrimSpace(res.Stderr) != "err" {
		t.Errorf("stdout %q stderr %q", res.Stdout, res.Stderr)
	}
}

func TestExecRunnerTimeout(t *testing.T) {
	requireShell(t)
	start := time.Now()
	res, err := ExecRunner{}.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "exec sleep 5"}, Timeout: 100 * time.Millisecond})
	if !errors.Is(err, ErrProcessTimeout) {
		t.Fatalf("err = %v", err)
	}
	if res == nil || res.ExitCode != -1 {
		t.Errorf("result = %+v", res)
	}
	if time.Since(start) > 4*time.Second {
		t.Error("timeout was not enforced")
	}
}

func TestExecRunnerCancelled(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := ExecRunner{}.Run(ctx, Command{Name: "sh", Args: []string{"-c", "exec sleep 5"}, Timeout: time.Minute})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), Command{Name: "definitely-not-a-real-binary-xyz"})
	if err == nil || errors.Is(err, ErrProcessTimeout) {
		t.Errorf("err = %v", err)
	}
}

func TestCommandString(t *testing.T) {
	c := Command{Name: "ffmpeg", Args: []string{"-y", "-i", "in.txt"}}
	if c.String() != "ffmpeg -y -i in.txt" {
		t.Errorf("got %q", c.String())
	}
}
