package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"devenv/internal/errs"
	"devenv/internal/logger"
)

// GitHubAPI is the base URL of the GitHub REST API.
var GitHubAPI = "https://api.github.com"

// GitHubRelease represents the structure of a GitHub release JSON response.
type GitHubRelease struct {
	TagName string `json:"tag_name"` // The release tag (e.g., v1.0.0)
	Assets  []struct {
		Name               string `json:"name"`                 // Asset filename
		BrowserDownloadURL string `json:"browser_download_url"` // Direct download URL for the asset
	} `json:"assets"`
}

// Version returns the tag without a leading "v".
func (r GitHubRelease) Version() string {
	return strings.TrimPrefix(r.TagName, "v")
}

// FetchRelease loads release metadata for repo ("owner/name"). An empty tag
// selects the latest release.
func FetchRelease(ctx context.Context, client *http.Client, repo, tag string) (*GitHubRelease, error) {
	if client == nil {
		client = http.DefaultClient
	}
	url := fmt.Sprintf("%s/repos/%s/releases/latest", GitHubAPI, repo)
	if tag != "" {
		url = fmt.Sprintf("%s/repos/%s/releases/tags/%s", GitHubAPI, repo, tag)
	}
	logger.Debug("[DEBUG] Fetching GitHub release from URL: %s\n", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.New(errs.KindNetwork, "", "github release", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, errs.New(errs.KindNetwork, "", "github release", fmt.Errorf("HTTP GET error fetching release for %s: %w", repo, err))
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn("[WARN] Failed to close HTTP response body: %v\n", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.Newf(errs.KindNetwork, "", "github release", "release fetch failed for %s: HTTP status %d", repo, resp.StatusCode)
	}

	var release GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, errs.New(errs.KindNetwork, "", "github release", fmt.Errorf("failed to decode release JSON for %s: %w", repo, err))
	}
	logger.Debug("[DEBUG] Release tag: %s with %d assets\n", release.TagName, len(release.Assets))
	return &release, nil
}

// MatchAsset returns the download URL of the first asset whose name
// contains every pattern (case-insensitive). Patterns are tried in order of
// the assets in the release.
func (r GitHubRelease) MatchAsset(patterns ...string) (string, error) {
	for _, asset := range r.Assets {
		name := strings.ToLower(asset.Name)
		ok := true
		for _, p := range patterns {
			if !strings.Contains(name, strings.ToLower(p)) {
				ok = false
				break
			}
		}
		if ok {
			logger.Debug("[DEBUG] Found matching asset: %s\n", asset.Name)
			return asset.BrowserDownloadURL, nil
		}
	}
	return "", errs.Newf(errs.KindConfiguration, "", "github release",
		"no asset matching %q in release %s", strings.Join(patterns, " "), r.TagName)
}
