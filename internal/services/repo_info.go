package services

import (
	"fmt"
	"strings"
)

// repoInfo is what can be read off a git link. It is only used to label logs;
// links that do not parse are still sent to the model as given.
type repoInfo struct {
	host        string
	owner       string
	repo        string
	projectPath string
}

// parseRepoInfo accepts scheme URLs (https://host/owner/repo.git) and scp-style
// links (git@host:owner/repo.git).
func parseRepoInfo(gitLink string) (*repoInfo, error) {
	link := strings.TrimSuffix(strings.TrimSpace(gitLink), "/")
	link = strings.TrimSuffix(link, ".git")

	var host, projectPath string
	if idx := strings.Index(link, "://"); idx != -1 {
		rest := link[idx+3:]
		slashIdx := strings.Index(rest, "/")
		if slashIdx == -1 {
			return nil, fmt.Errorf("invalid git link (no path): %s", gitLink)
		}
		host, projectPath = rest[:slashIdx], rest[slashIdx+1:]
	} else if colonIdx := strings.Index(link, ":"); colonIdx != -1 && !strings.Contains(link[:colonIdx], "/") {
		host, projectPath = link[:colonIdx], link[colonIdx+1:]
	} else {
		return nil, fmt.Errorf("invalid git link (no protocol): %s", gitLink)
	}

	// drop credentials and port
	if at := strings.LastIndex(host, "@"); at != -1 {
		host = host[at+1:]
	}
	if colon := strings.Index(host, ":"); colon != -1 {
		host = host[:colon]
	}

	projectPath = strings.Trim(projectPath, "/")
	pathParts := strings.Split(projectPath, "/")
	if host == "" || len(pathParts) < 2 {
		return nil, fmt.Errorf("invalid git link (need at least owner/repo): %s", gitLink)
	}

	return &repoInfo{
		host:        host,
		owner:       pathParts[len(pathParts)-2],
		repo:        pathParts[len(pathParts)-1],
		projectPath: projectPath,
	}, nil
}
