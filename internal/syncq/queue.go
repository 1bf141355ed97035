// Package syncq keeps API writes made while the API was unreachable and
// replays them in order once it is back.
package syncq

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

type Command struct {
	Method         string         `json:"method"`
	Path           string         `json:"path"`
	Body           map[string]any `json:"body,omitempty"`
	IdempotencyKey string         `json:"idempotency_key"`
	QueuedAt       time.Time      `json:"queued_at"`
}

func queuePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".arena")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "queue.json"), nil
}

func Load() ([]Command, error) {
	path, err := queuePath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Command{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Command{}, nil
	}
	var out []Command
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func Save(commands []Command) error {
	path, err := queuePath()
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(commands, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func Push(cmd Command) error {
	commands, err := Load()
	if err != nil {
		return err
	}
	if cmd.QueuedAt.IsZero() {
		cmd.QueuedAt = time.Now().UTC()
	}
	commands = append(commands, cmd)
	return Save(commands)
}

// SendFunc delivers one queued command.
type SendFunc func(ctx context.Context, cmd Command) error

type Rejected struct {
	Command Command
	Err     error
}

type DrainResult struct {
	Sent     int
	Rejected []Rejected
	Pending  int
}

// Drain sends queued commands in order. A command whose error satisfies
// permanent is dropped and reported; any other error stops the drain and
// keeps that command and the rest for the next run.
func Drain(ctx context.Context, send SendFunc, permanent func(error) bool) (DrainResult, error) {
	var res DrainResult
	commands, err := Load()
	if err != nil {
		return res, err
	}
	i := 0
	var sendErr error
	for ; i < len(commands); i++ {
		err := send(ctx, commands[i])
		if err == nil {
			res.Sent++
			continue
		}
		if permanent != nil && permanent(err) {
			res.Rejected = append(res.Rejected, Rejected{Command: commands[i], Err: err})
			continue
		}
		sendErr = err
		break
	}
	rest := append([]Command{}, commands[i:]...)
	res.Pending = len(rest)
	if err := Save(rest); err != nil {
		return res, err
	}
	return res, sendErr
}
