package services

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

const (
	PlaceholderGitLink  = "{{git_link}}"
	PlaceholderPlatform = "{{platform}}"
)

var knownPlaceholders = []string{PlaceholderGitLink, PlaceholderPlatform}

// PromptTemplate is raw prompt text with {{git_link}} and {{platform}}
// placeholders.
type PromptTemplate struct {
	Path string
	Text string
}

// LoadPromptTemplate reads the template from disk. It is called once per
// request so edits to the file take effect without a restart.
func LoadPromptTemplate(path string) (*PromptTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &TemplateNotFoundError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("read prompt template %s: %w", path, err)
	}
	return &PromptTemplate{Path: path, Text: string(data)}, nil
}

// Render substitutes the request values literally. Values are not escaped and
// placeholders absent from the template are simply not used.
func (t *PromptTemplate) Render(req GenerationRequest) string {
	prompt := strings.ReplaceAll(t.Text, PlaceholderGitLink, req.RepositoryReference)
	prompt = strings.ReplaceAll(prompt, PlaceholderPlatform, req.Platform)
	return prompt
}

// Placeholders returns the known placeholders present in the template.
func (t *PromptTemplate) Placeholders() []string {
	var found []string
	for _, p := range knownPlaceholders {
		if strings.Contains(t.Text, p) {
			found = append(found, p)
		}
	}
	return found
}
