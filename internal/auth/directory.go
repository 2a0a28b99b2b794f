package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// DirectoryEntry is one user in the directory file. Password is either plain
// text or a bcrypt hash.
type DirectoryEntry struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Email    string `json:"email"`
}

// ParseDirectory accepts either a bare array of entries or {"users": [...]}
func ParseDirectory(data []byte) ([]DirectoryEntry, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var entries []DirectoryEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse user directory: %w", err)
		}
		return entries, nil
	}

	var wrapped struct {
		Users []DirectoryEntry `json:"users"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse user directory: %w", err)
	}
	return wrapped.Users, nil
}

// DirectorySource loads the user directory from a file path or an http(s) URL
type DirectorySource struct {
	Location string
	Client   *http.Client
}

// NewDirectorySource creates a source with a client bounded by timeout
func NewDirectorySource(location string, timeout time.Duration) *DirectorySource {
	return &DirectorySource{
		Location: location,
		Client:   &http.Client{Timeout: timeout},
	}
}

// Load reads and parses the directory
func (s *DirectorySource) Load(ctx context.Context) ([]DirectoryEntry, error) {
	if s.Location == "" {
		return nil, fmt.Errorf("no user directory configured")
	}

	if strings.HasPrefix(s.Location, "http://") || strings.HasPrefix(s.Location, "https://") {
		return s.download(ctx)
	}

	data, err := os.ReadFile(s.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to read user directory: %w", err)
	}
	return ParseDirectory(data)
}

func (s *DirectorySource) download(ctx context.Context) ([]DirectoryEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Location, nil)
	if err != nil {
		return nil, err
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download user directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download user directory: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read user directory: %w", err)
	}
	return ParseDirectory(data)
}
