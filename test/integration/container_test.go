//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/readmit/dashboard/internal/platform/db"
)

const (
	defaultPostgresImage = "postgres:16-alpine"
	containerUser        = "dashboard"
	containerPassword    = "dashboard"
	containerDB          = "dashboard_users"
)

// startPostgresContainer runs a throwaway user store through the Docker CLI.
// TEST_POSTGRES_IMAGE overrides the image. Docker picks the host port, bound
// to loopback only.
func startPostgresContainer(ctx context.Context) (string, func(), error) {
	image := os.Getenv("TEST_POSTGRES_IMAGE")
	if image == "" {
		image = defaultPostgresImage
	}

	out, err := docker(ctx, "run", "-d", "--rm",
		"--label", "readmit.dashboard.integration=1",
		"-p", "127.0.0.1::5432",
		"-e", "POSTGRES_USER="+containerUser,
		"-e", "POSTGRES_PASSWORD="+containerPassword,
		"-e", "POSTGRES_DB="+containerDB,
		image,
	)
	if err != nil {
		return "", nil, err
	}
	id := out
	cleanup := func() {
		_, _ = docker(context.Background(), "rm", "-f", id)
	}

	hostPort, err := docker(ctx, "port", id, "5432/tcp")
	if err != nil {
		cleanup()
		return "", nil, err
	}
	// "127.0.0.1:49153", possibly one line per address family
	hostPort = strings.SplitN(hostPort, "\n", 2)[0]

	connStr := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		containerUser, containerPassword, hostPort, containerDB)

	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	defer cancel()
	if err := waitForUserStore(waitCtx, id, connStr); err != nil {
		logs, _ := docker(context.Background(), "logs", "--tail", "20", id)
		cleanup()
		return "", nil, fmt.Errorf("%w\ncontainer logs:\n%s", err, logs)
	}
	return connStr, cleanup, nil
}

func docker(ctx context.Context, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("docker %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// waitForUserStore polls pg_isready inside the container, then pings from the
// host through db.NewPool. The entrypoint restarts the server once after init.
func waitForUserStore(ctx context.Context, id, connStr string) error {
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		if _, err := docker(ctx, "exec", id, "pg_isready", "-U", containerUser, "-d", containerDB); err == nil {
			pool, err := db.NewPool(ctx, connStr, 1, 0)
			if err == nil {
				pool.Close()
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("user store not ready: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
