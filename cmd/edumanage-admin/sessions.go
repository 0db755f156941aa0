package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

type sessionListOptions struct {
	ContextID string
	Limit     int
}

type sessionClearOptions struct {
	ContextID string
	All       bool
	DryRun    bool
	Yes       bool
}

func runListSessions(cmdCtx *commandContext, args []string) error {
	opts, err := parseSessionListFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	redisClient, err := connectRedisOnly(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	pattern := sessionKeyPattern(opts.ContextID)
	cmdCtx.Logger.Info("scanning redis", "pattern", pattern)

	if err := writef(os.Stdout, "\nDurable Session Keys in Redis\n"); err != nil {
		return fmt.Errorf("print session header: %w", err)
	}

	total, err := writeSessionKeys(ctx, redisClient, pattern, opts.Limit)
	if err != nil {
		return err
	}

	if total == 0 {
		if writeErr := writeln(os.Stdout, "(no keys found)"); writeErr != nil {
			return fmt.Errorf("print session none: %w", writeErr)
		}
		return nil
	}

	if err := writef(os.Stdout, "\nTotal keys: %d\n", total); err != nil {
		return fmt.Errorf("print session total: %w", err)
	}
	return nil
}

func writeSessionKeys(ctx context.Context, client redis.UniversalClient, pattern string, limit int) (int, error) {
	iter := client.Scan(ctx, 0, pattern, 100).Iterator()

	total := 0
	for iter.Next(ctx) {
		key := iter.Val()
		total++
		if limit > 0 && total > limit {
			if err := writef(os.Stdout, "  ... (truncated at %d keys)\n", limit); err != nil {
				return 0, fmt.Errorf("print truncation notice: %w", err)
			}
			return total, nil
		}

		ttl, ttlErr := client.TTL(ctx, key).Result()
		if ttlErr != nil {
			if err := writef(os.Stdout, "  %s (TTL: error: %v)\n", key, ttlErr); err != nil {
				return 0, fmt.Errorf("print session key ttl error: %w", err)
			}
			continue
		}
		if err := writef(os.Stdout, "  %s (TTL: %s)\n", key, renderTTL(ttl)); err != nil {
			return 0, fmt.Errorf("print session key: %w", err)
		}
	}

	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	return total, nil
}

func runClearSessions(cmdCtx *commandContext, args []string) error {
	opts, err := parseSessionClearFlags(args)
	if err != nil {
		return err
	}

	if !opts.DryRun {
		intro := "WARNING: this will sign out every context with a durable session."
		if !opts.All {
			intro = fmt.Sprintf("About to clear the durable session for context %q.", opts.ContextID)
		}
		if confirmErr := confirmAction(opts.Yes, intro); confirmErr != nil {
			return confirmErr
		}
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	redisClient, err := connectRedisOnly(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	pattern := sessionKeyPattern(opts.ContextID)
	iter := redisClient.Scan(ctx, 0, pattern, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}

	if len(keys) == 0 {
		if writeErr := writeln(os.Stdout, "No session keys found in Redis"); writeErr != nil {
			return fmt.Errorf("print clear summary: %w", writeErr)
		}
		return nil
	}

	if opts.DryRun {
		if err := writef(os.Stdout, "Dry-run: would delete %d keys\n", len(keys)); err != nil {
			return fmt.Errorf("print dry run: %w", err)
		}
		return nil
	}

	deleted, err := redisClient.Del(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("delete session keys: %w", err)
	}

	cmdCtx.Logger.Info("clear sessions complete", "keys_deleted", deleted)
	return nil
}

func sessionKeyPattern(contextID string) string {
	if contextID == "" {
		return sessionKeyPrefix + "*"
	}
	return sessionKeyPrefix + contextID + ":*"
}

func parseSessionListFlags(args []string) (sessionListOptions, error) {
	fs := flag.NewFlagSet("list-sessions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts sessionListOptions
	fs.StringVar(&opts.ContextID, "context-id", "", "Limit to one browser context")
	fs.IntVar(&opts.Limit, "limit", 0, "Stop after this many keys (0 means unlimited)")

	if err := fs.Parse(args); err != nil {
		return sessionListOptions{}, err
	}
	return opts, nil
}

func parseSessionClearFlags(args []string) (sessionClearOptions, error) {
	fs := flag.NewFlagSet("clear-sessions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts sessionClearOptions
	fs.StringVar(&opts.ContextID, "context-id", "", "Clear a single browser context")
	fs.BoolVar(&opts.All, "all", false, "Clear every context")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Report what would be deleted without deleting")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return sessionClearOptions{}, err
	}

	if opts.ContextID == "" && !opts.All {
		return sessionClearOptions{}, errors.New("one of --context-id or --all is required")
	}
	if opts.ContextID != "" && opts.All {
		return sessionClearOptions{}, errors.New("--context-id and --all are mutually exclusive")
	}
	return opts, nil
}
