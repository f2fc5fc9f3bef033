package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/huangang/deployguide/internal/config"
	"github.com/huangang/deployguide/internal/metrics"
	"github.com/huangang/deployguide/pkg/logger"
)

// TimestampLayout is the timestamp embedded in artifact filenames.
const TimestampLayout = "20060102_150405"

// SupportedPlatforms is the fixed list offered to clients.
var SupportedPlatforms = []string{"AWS", "Azure", "OpenShift", "Docker"}

// GenerationRequest asks for a deployment guide for one repository.
type GenerationRequest struct {
	RepositoryReference string
	Platform            string
}

// GeneratedArtifact is a persisted deployment guide. Content is only set when
// the artifact was just generated or explicitly read.
type GeneratedArtifact struct {
	Filename  string
	Platform  string
	CreatedAt time.Time
	Content   string
	FilePath  string
}

// GenerationService turns a request into a guide on disk. It is the only
// writer into the output directory.
type GenerationService struct {
	upstream     config.UpstreamConfig
	promptPath   string
	outputDir    string
	filesPrefix  string
	newCompleter CompleterFactory
	events       *ArtifactHub
	progressOut  io.Writer
	progress     func(description string, out io.Writer) *Progress
	now          func() time.Time
}

func NewGenerationService(cfg *config.Config, events *ArtifactHub) *GenerationService {
	return &GenerationService{
		upstream:     cfg.Upstream,
		promptPath:   cfg.Prompt.Path,
		outputDir:    cfg.Output.Dir,
		filesPrefix:  cfg.Output.FilesPrefix,
		newCompleter: NewUpstreamClient,
		events:       events,
		progressOut:  os.Stderr,
		progress:     StartProgress,
		now:          time.Now,
	}
}

// Generate renders the prompt, waits for the upstream completion and writes
// the result to deployment_<slug>_<timestamp>.md. Two requests for the same
// platform within one second write the same file; the later one wins.
func (s *GenerationService) Generate(ctx context.Context, req GenerationRequest) (*GeneratedArtifact, error) {
	start := time.Now()
	artifact, err := s.generate(ctx, req)
	metrics.ObserveGeneration(platformLabel(req.Platform), ErrorKind(err), time.Since(start))
	if err != nil {
		logger.Error().Err(err).Str("platform", req.Platform).Str("kind", ErrorKind(err)).Msg("[Generation] Failed")
		return nil, err
	}
	return artifact, nil
}

func (s *GenerationService) generate(ctx context.Context, req GenerationRequest) (*GeneratedArtifact, error) {
	if strings.TrimSpace(req.RepositoryReference) == "" {
		return nil, &ValidationError{Field: "git_link", Msg: "must not be empty"}
	}
	slug, err := PlatformSlug(req.Platform)
	if err != nil {
		return nil, err
	}

	event := logger.Info().Str("platform", req.Platform)
	if info, err := parseRepoInfo(req.RepositoryReference); err == nil {
		event = event.Str("repo_host", info.host).
			Str("repo_owner", info.owner).
			Str("repo_name", info.repo).
			Str("repo", info.projectPath)
	} else {
		event = event.Str("git_link", req.RepositoryReference)
	}
	event.Msg("[Generation] Started")

	content, err := s.complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate deployment for %s: %w", req.Platform, err)
	}

	createdAt := s.now()
	filename := ArtifactFilename(slug, createdAt)
	path := filepath.Join(s.outputDir, filename)
	if err := writeArtifact(path, content); err != nil {
		return nil, err
	}
	metrics.ArtifactSizeBytes.Observe(float64(len(content)))
	logger.Info().Str("filename", filename).Int("bytes", len(content)).Msg("[Generation] Artifact written")

	if s.events != nil {
		s.events.Publish(ArtifactEvent{
			Type:     ArtifactCreated,
			Filename: filename,
			Platform: req.Platform,
			Time:     createdAt,
		})
	}

	return &GeneratedArtifact{
		Filename:  filename,
		Platform:  req.Platform,
		CreatedAt: createdAt,
		Content:   content,
		FilePath:  FilePath(s.filesPrefix, filename),
	}, nil
}

// complete runs credentials, prompt and the upstream call. The progress
// indicator is stopped before returning on every path.
func (s *GenerationService) complete(ctx context.Context, req GenerationRequest) (string, error) {
	token, err := EncodeCredentials(s.upstream)
	if err != nil {
		return "", err
	}

	tpl, err := LoadPromptTemplate(s.promptPath)
	if err != nil {
		return "", err
	}
	if found := tpl.Placeholders(); len(found) < len(knownPlaceholders) {
		logger.Debug().Strs("found", found).Str("path", tpl.Path).Msg("[Generation] Template lacks some placeholders")
	}
	prompt := tpl.Render(req)

	client, err := s.newCompleter(s.upstream, token)
	if err != nil {
		return "", err
	}

	progress := s.progress(fmt.Sprintf("Generating deployment instructions for %s", req.Platform), s.progressOut)
	defer progress.Stop()

	return client.Complete(ctx, prompt)
}

// PlatformSlug lower-cases the platform and replaces spaces with underscores.
// Results that could escape the output directory are rejected.
func PlatformSlug(platform string) (string, error) {
	if strings.TrimSpace(platform) == "" {
		return "", &ValidationError{Field: "platform", Msg: "must not be empty"}
	}
	slug := strings.ReplaceAll(strings.ToLower(platform), " ", "_")
	if strings.ContainsAny(slug, `/\`) || slug == "." || slug == ".." || strings.ContainsRune(slug, 0) {
		return "", &ValidationError{Field: "platform", Msg: "must not contain path separators"}
	}
	return slug, nil
}

// ArtifactFilename builds deployment_<slug>_<YYYYMMDD_HHMMSS>.md.
func ArtifactFilename(slug string, t time.Time) string {
	return fmt.Sprintf("deployment_%s_%s.md", slug, t.Format(TimestampLayout))
}

// FilePath is the URL under which the static file server exposes filename.
func FilePath(prefix, filename string) string {
	return strings.TrimRight(prefix, "/") + "/" + filename
}

var openArtifact = func(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
}

// writeArtifact writes straight to the final path. A crash mid-write can leave
// a truncated file; an ordinary write error removes it.
func writeArtifact(path, content string) error {
	f, err := openArtifact(path)
	if err != nil {
		return &StorageError{Op: "create", Path: path, Err: err}
	}

	_, writeErr := io.WriteString(f, content)
	closeErr := f.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warn().Err(rmErr).Str("path", path).Msg("[Generation] Failed to remove partial artifact")
		}
		return &StorageError{Op: "write", Path: path, Err: writeErr}
	}
	return nil
}

// EnsureOutputDir creates the output directory if needed.
func EnsureOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &StorageError{Op: "mkdir", Path: dir, Err: err}
	}
	return nil
}

func platformLabel(platform string) string {
	for _, p := range SupportedPlatforms {
		if strings.EqualFold(p, platform) {
			return p
		}
	}
	return "other"
}
