package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"devenv/internal/cache"
	"devenv/internal/config"
	"devenv/internal/errs"
	"devenv/internal/installer"
	"devenv/internal/logger"
)

var (
	updateURL       string
	updateVersion   string
	updateCheckFile string
	updateGitHub    string
	updateTag       string
	updateAssets    []string
	updateOut       string
	validateCheck   bool
)

// manifestCmd groups manifest maintenance commands.
var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Maintain the tool manifest",
}

// manifestUpdateCmd points a tool at a new artifact and records its hash.
var manifestUpdateCmd = &cobra.Command{
	Use:   "update <tool>",
	Short: "Download a tool's artifact, hash it and write it into the manifest",
	Long: `Downloads the artifact for <tool>, computes its SHA-256 and writes the
entry back to the manifest. The URL comes from --url, from the latest (or
--tag) GitHub release of --github whose asset name contains every --asset
pattern, or, when neither is given, from the current manifest entry.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(cmd.Context())
		if err != nil {
			return err
		}

		tool, ok := s.manifest.Lookup(args[0])
		if !ok {
			if updateCheckFile == "" {
				return errs.Newf(errs.KindConfiguration, args[0], "manifest update", "new tools need --check-file")
			}
			tool = config.Tool{Name: args[0]}
		}
		if updateCheckFile != "" {
			tool.CheckFile = updateCheckFile
		}

		switch {
		case updateURL != "":
			tool.URL = updateURL
		case updateGitHub != "":
			release, err := installer.FetchRelease(cmd.Context(), httpClient, updateGitHub, updateTag)
			if err != nil {
				return errs.WithTool(err, tool.Name)
			}
			url, err := release.MatchAsset(updateAssets...)
			if err != nil {
				return errs.WithTool(err, tool.Name)
			}
			tool.URL = url
			tool.Version = release.Version()
		}
		if updateVersion != "" {
			tool.Version = updateVersion
		}
		if tool.URL == "" {
			return errs.Newf(errs.KindConfiguration, tool.Name, "manifest update", "no URL; pass --url or --github")
		}

		hash, err := hashArtifact(cmd.Context(), tool)
		if err != nil {
			return err
		}
		tool.SHA256 = hash

		s.manifest.Upsert(tool)
		out := manifestOutPath(s.settings.Manifest)
		if err := config.SaveManifest(out, s.manifest); err != nil {
			return err
		}
		logger.Info("[INFO] %s@%s sha256=%s written to %s\n", tool.Name, tool.Version, hash, out)
		return nil
	},
}

// hashArtifact downloads the tool's artifact to a temporary file, checks
// that archives contain the marker file and returns the artifact's hash.
func hashArtifact(ctx context.Context, tool config.Tool) (string, error) {
	tmp, err := os.MkdirTemp("", "devenv-manifest-")
	if err != nil {
		return "", errs.New(errs.KindEnvironment, tool.Name, "create temp directory", err)
	}
	defer os.RemoveAll(tmp)

	dest := filepath.Join(tmp, tool.Name+cache.ArtifactExt(tool.URL))
	c := cache.New(tmp, cache.WithProgress(newProgressPrinter(os.Stderr)))
	if err := c.Fetch(ctx, tool.URL, dest); err != nil {
		return "", errs.WithTool(err, tool.Name)
	}

	kind := tool.Kind
	if kind == config.KindUnset {
		kind = config.InferKind(tool.Name)
	}
	if kind == config.GenericArchive || kind == config.PortableEditor {
		ok, err := installer.ArchiveContains(dest, tool.CheckFile)
		if err != nil {
			return "", errs.WithTool(err, tool.Name)
		}
		if !ok {
			return "", errs.Newf(errs.KindArchive, tool.Name, "manifest update",
				"%s does not contain %s", filepath.Base(tool.URL), tool.CheckFile)
		}
	}

	hash, err := cache.HashFile(dest)
	if err != nil {
		return "", errs.New(errs.KindIntegrity, tool.Name, "hash artifact", err)
	}
	return hash, nil
}

// manifestOutPath picks where an updated manifest is written.
func manifestOutPath(configured string) string {
	for _, p := range []string{updateOut, manifestPath, configured} {
		if p != "" {
			return p
		}
	}
	return config.LocalManifestFile
}

// manifestValidateCmd checks that the manifest parses and, with --check,
// that every artifact downloads and matches its hash.
var manifestValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the manifest and optionally verify every artifact",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(cmd.Context())
		if err != nil {
			return err
		}

		for _, t := range s.manifest.Tools {
			logger.Info("  %-10s %-10s %s\n", t.Name, t.Version, t.Kind)
			if t.SHA256 == "" {
				logger.Warn("[WARN] %s has no sha256; cached copies are trusted as-is\n", t.Name)
			}
		}
		if !validateCheck {
			logger.Info("[INFO] Manifest is valid (%d tools).\n", len(s.manifest.Tools))
			return nil
		}

		c := cache.New(s.env.CacheDir, cache.WithProgress(newProgressPrinter(os.Stderr)))
		failed := 0
		for _, t := range s.manifest.Tools {
			if _, err := c.Resolve(cmd.Context(), t.Name, t.URL, t.SHA256); err != nil {
				logger.Error("[ERROR] %v\n", err)
				failed++
				continue
			}
			logger.Info("[INFO] %s verified\n", t.Name)
		}
		if failed > 0 {
			return errs.Newf(errs.KindIntegrity, "", "manifest validate", "%d of %d artifacts failed verification", failed, len(s.manifest.Tools))
		}
		logger.Info("[INFO] All artifacts verified.\n")
		return nil
	},
}

func init() {
	f := manifestUpdateCmd.Flags()
	f.StringVar(&updateURL, "url", "", "New artifact URL")
	f.StringVar(&updateVersion, "version", "", "Version label to record")
	f.StringVar(&updateCheckFile, "check-file", "", "Marker file relative to the install root")
	f.StringVar(&updateGitHub, "github", "", "Resolve the URL from a GitHub repository's releases (owner/name)")
	f.StringVar(&updateTag, "tag", "", "GitHub release tag (default: latest)")
	f.StringSliceVar(&updateAssets, "asset", nil, "Substring the release asset name must contain (repeatable)")
	f.StringVarP(&updateOut, "out", "o", "", "Write the manifest here instead of its source")

	manifestValidateCmd.Flags().BoolVar(&validateCheck, "check", false, "Download every artifact and verify its hash")

	manifestCmd.AddCommand(manifestUpdateCmd)
	manifestCmd.AddCommand(manifestValidateCmd)
	rootCmd.AddCommand(manifestCmd)
}
