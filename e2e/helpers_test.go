//go:build e2e

package e2e

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	tc "github.com/testcontainers/testcontainers-go"
)

const repoRootRel = ".."          // relative to ./e2e
const mainPkgRel = "./cmd/server" // server main package

var (
	buildOnce sync.Once
	builtBin  string
	buildErr  error
	buildLog  []byte
)

// server is a running hydroquest-server binary.
type server struct {
	cmd  *exec.Cmd
	addr string
}

func (s *server) url(path string) string {
	return "http://" + s.addr + path
}

func (s *server) wsURL() string {
	return "ws://" + s.addr + "/ws"
}

// startServer builds the binary once per test run and starts it with env on
// top of a fresh SQLite default.
func startServer(t *testing.T, env ...string) *server {
	t.Helper()

	bin := buildBinary(t, repoRootPath(t))
	addr := pickFreeAddr(t)

	cmd := exec.Command(bin)
	cmd.Env = append(os.Environ(),
		"APP_ENV=dev",
		"LOG_LEVEL=info",
		"HTTP_ADDR="+addr,
		"STORE_DRIVER=sqlite3",
		"SQLITE_PATH="+filepath.Join(t.TempDir(), "hydroquest.db"),
	)
	cmd.Env = append(cmd.Env, env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})

	return &server{cmd: cmd, addr: addr}
}

func repoRootPath(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	repo := filepath.Clean(filepath.Join(wd, repoRootRel))
	if _, err := os.Stat(filepath.Join(repo, "go.mod")); err != nil {
		t.Fatalf("repo root %q does not contain go.mod: %v", repo, err)
	}

	return repo
}

func buildBinary(t *testing.T, repoRoot string) string {
	t.Helper()

	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "hydroquest-e2e-")
		if err != nil {
			buildErr = err
			return
		}
		builtBin = filepath.Join(dir, "hydroquest-server")

		build := exec.Command("go", "build", "-o", builtBin, mainPkgRel)
		build.Dir = repoRoot
		build.Env = os.Environ()
		buildLog, buildErr = build.CombinedOutput()
	})
	if buildErr != nil {
		t.Fatalf("go build failed: %v\n%s", buildErr, string(buildLog))
	}

	return builtBin
}

func pickFreeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen :0: %v", err)
	}
	defer ln.Close()

	return ln.Addr().String()
}

func waitForStatus(t *testing.T, client *http.Client, url string, want int, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == want {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("%s did not answer %d within %s", url, want, timeout)
}

func stopServer(t *testing.T, s *server) {
	t.Helper()

	_ = s.cmd.Process.Signal(syscall.SIGTERM)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = s.cmd.Process.Kill()
		t.Fatalf("server did not exit in time")
	case err := <-done:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				t.Fatalf("server exited non-zero: %v", err)
			}
			t.Fatalf("server wait error: %v", err)
		}
	}
}

// endpoint returns host:port of the container's mapped port.
func endpoint(t *testing.T, c tc.Container, port nat.Port) (string, string) {
	t.Helper()

	ctx := context.Background()
	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("mapped port %s: %v", port, err)
	}
	return host, mapped.Port()
}

func startContainer(t *testing.T, req tc.ContainerRequest) tc.Container {
	t.Helper()

	ctx := context.Background()
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s container: %v", req.Image, err)
	}
	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})
	return c
}
