package supervisor

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunForwardsExitCode(t *testing.T) {
	sup := &Supervisor{Command: "sh", Args: []string{"-c", "exit 3"}}

	code, err := sup.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

func TestRunZeroExit(t *testing.T) {
	sup := &Supervisor{Command: "true"}

	code, err := sup.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestRunWritesSecretToStdin(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "secret")
	sup := &Supervisor{Command: "sh", Args: []string{"-c", "cat > " + outPath}}

	code, err := sup.Run(func(stdin io.Writer) error {
		_, werr := io.WriteString(stdin, "opaque-cookie")
		return werr
	})
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	// the stream was closed after the write, so the child saw EOF
	written, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "opaque-cookie", string(written))
}

func TestRunMissingCommand(t *testing.T) {
	sup := &Supervisor{Command: "definitely-not-a-command-gp-okta"}

	_, err := sup.Run(nil)
	assert.Error(t, err)
}

func TestRunForwardsTerminationSignal(t *testing.T) {
	var stderr bytes.Buffer
	sup := &Supervisor{
		Command: "sleep",
		Args:    []string{"30"},
		Stderr:  &stderr,
	}

	// deliver SIGTERM to ourselves once the child is up; interception is
	// already active, so the supervisor forwards it to the child
	go func() {
		time.Sleep(200 * time.Millisecond)
		syscall.Kill(os.Getpid(), syscall.SIGTERM)
	}()

	start := time.Now()
	code, err := sup.Run(nil)
	require.NoError(t, err)

	assert.Equal(t, 128+int(syscall.SIGTERM), code)
	assert.Less(t, time.Since(start), 10*time.Second, "child should die from the forwarded signal, not run out")
}

func TestRunSignalDuringSecretWrite(t *testing.T) {
	sup := &Supervisor{Command: "sh", Args: []string{"-c", "cat >/dev/null; sleep 30"}}

	code, err := sup.Run(func(stdin io.Writer) error {
		if _, werr := io.WriteString(stdin, "secret"); werr != nil {
			return werr
		}
		// signal lands while the write window is still open
		return syscall.Kill(os.Getpid(), syscall.SIGTERM)
	})
	require.NoError(t, err)
	assert.Equal(t, 128+int(syscall.SIGTERM), code)
}
