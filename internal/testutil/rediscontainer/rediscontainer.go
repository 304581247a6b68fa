package rediscontainer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

const (
	image         = "redis:7-alpine"
	containerName = "sbc-lookup-redis-test"
	hostPort      = "6390"
)

var (
	mu       sync.Mutex
	started  bool
	setupErr error
)

// Addr exposes the Redis host:port combination used by integration tests.
func Addr() string { return "127.0.0.1:" + hostPort }

// Setup starts a throwaway Redis container and waits until it answers
// PING. Repeated calls reuse the first result.
func Setup() error {
	mu.Lock()
	defer mu.Unlock()
	if started || setupErr != nil {
		return setupErr
	}
	if _, err := exec.LookPath("docker"); err != nil {
		setupErr = fmt.Errorf("docker executable not found: %w", err)
		return setupErr
	}
	_ = stopContainer()
	if err := runDocker("run", "-d", "--rm", "--name", containerName, "-p", hostPort+":6379", image); err != nil {
		setupErr = err
		return setupErr
	}
	if err := waitForRedis(Addr(), 10*time.Second); err != nil {
		_ = stopContainer()
		setupErr = err
		return setupErr
	}
	started = true
	return nil
}

// Teardown stops the Redis container if Setup started one.
func Teardown() error {
	mu.Lock()
	defer mu.Unlock()
	if !started {
		return setupErr
	}
	started = false
	return stopContainer()
}

func stopContainer() error {
	output, err := exec.Command("docker", "stop", containerName).CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "No such container") {
			return nil
		}
		return fmt.Errorf("docker stop failed: %w: %s", err, output)
	}
	return nil
}

func runDocker(args ...string) error {
	output, err := exec.Command("docker", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker %s failed: %w: %s", args[0], err, output)
	}
	return nil
}

func waitForRedis(addr string, timeout time.Duration) error {
	client := goredis.NewClient(&goredis.Options{Addr: addr, DialTimeout: 200 * time.Millisecond})
	defer client.Close()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		err := client.Ping(ctx).Err()
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return errors.New("redis container did not respond to ping")
}
