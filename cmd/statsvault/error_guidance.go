package main

import (
	"context"
	"errors"
	"net"

	"statsvault/internal/api"
	"statsvault/internal/store"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	if errors.Is(err, store.ErrStoreLocked) {
		lines = append(lines, "hint: another statsvault process holds this database; stop it or pass a different -d DB.")
		return uniqueLines(lines)
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "unauthorized":
			lines = append(lines, "hint: verify STATSVAULT_ADMIN_TOKEN matches server.admin_token_hash on the server.")
		case "forbidden":
			lines = append(lines, "hint: admin routes are disabled; set server.admin_token_hash (see: statsvault admin hash-token).")
		case "resource_exhausted":
			lines = append(lines, "hint: too many failed admin attempts; wait a few minutes before retrying.")
		case "exhausted":
			lines = append(lines, "hint: the fetch budget is spent; an operator can restore it with: statsvault admin reset <id>")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify STATSVAULT_API_URL points to a statsvault server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase STATSVAULT_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a statsvault server is running at STATSVAULT_API_URL.",
			"hint: start one with: statsvault run -c statsvault.toml",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
