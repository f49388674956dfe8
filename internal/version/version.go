/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides version information and update checking.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Version is the current version of Starboard.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/starboard/internal/version.Version=X.Y.Z
var Version = "0.4.0"

// GitHubRepo is the repository to check for updates
const GitHubRepo = "friendsincode/starboard"

// UpdateInfo contains information about available updates.
type UpdateInfo struct {
	CurrentVersion  string
	LatestVersion   string
	UpdateAvailable bool
	ReleaseURL      string
	ReleaseNotes    string
	CheckedAt       time.Time
}

// Checker looks up the latest published release.
type Checker struct {
	logger     zerolog.Logger
	httpClient *http.Client
	url        string
}

// GitHubRelease represents a GitHub release API response.
type GitHubRelease struct {
	TagName     string `json:"tag_name"`
	HTMLURL     string `json:"html_url"`
	Body        string `json:"body"`
	PublishedAt string `json:"published_at"`
}

// NewChecker creates a new update checker.
func NewChecker(logger zerolog.Logger) *Checker {
	return &Checker{
		logger: logger.With().Str("component", "update-checker").Logger(),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		url: fmt.Sprintf("https://api.github.com/repos/%s/releases/latest", GitHubRepo),
	}
}

// Check fetches the latest release and compares it with Version.
func (c *Checker) Check(ctx context.Context) (*UpdateInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "Starboard/"+Version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch latest release: unexpected status %d", resp.StatusCode)
	}

	var release GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decode release: %w", err)
	}

	latest := strings.TrimPrefix(release.TagName, "v")
	info := &UpdateInfo{
		CurrentVersion:  Version,
		LatestVersion:   latest,
		UpdateAvailable: compareVersions(Version, latest) < 0,
		ReleaseURL:      release.HTMLURL,
		ReleaseNotes:    truncateNotes(release.Body, 200),
		CheckedAt:       time.Now(),
	}
	if info.UpdateAvailable {
		c.logger.Info().
			Str("current", Version).
			Str("latest", latest).
			Str("url", release.HTMLURL).
			Msg("new version available")
	}
	return info, nil
}

// compareVersions compares two semver versions.
// Returns -1 if a < b, 0 if a == b, 1 if a > b
func compareVersions(a, b string) int {
	aParts := parseVersion(a)
	bParts := parseVersion(b)

	for i := 0; i < 3; i++ {
		if aParts[i] < bParts[i] {
			return -1
		}
		if aParts[i] > bParts[i] {
			return 1
		}
	}
	return 0
}

// parseVersion parses a semver string into major, minor, patch.
func parseVersion(v string) [3]int {
	v = strings.TrimPrefix(v, "v")
	parts := strings.Split(v, ".")

	var result [3]int
	for i := 0; i < len(parts) && i < 3; i++ {
		fmt.Sscanf(parts[i], "%d", &result[i])
	}
	return result
}

// truncateNotes keeps the first line of the release notes, at most maxLen bytes.
func truncateNotes(s string, maxLen int) string {
	lines := strings.SplitN(s, "\n", 2)
	s = strings.TrimSpace(lines[0])
	if len(s) > maxLen {
		return s[:maxLen-3] + "..."
	}
	return s
}
