// Package templates keeps a library of saved HTML resume replicas under the
// workspace templates/ directory, with a JSON metadata index.
package templates

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/resumevision/internal/result"
	"github.com/local/resumevision/internal/vision"
)

const (
	savedDir     = "saved_templates"
	metadataFile = "templates_metadata.json"
	snippetChars = 200
)

var (
	invalidNameChars = regexp.MustCompile(`[^\p{L}\p{N}_\-]`)
	repeatedUnders   = regexp.MustCompile(`_+`)
)

// ErrExists is returned when saving over an existing template.
var ErrExists = errors.New("template already exists")

// Preview is a short description of a template's content.
type Preview struct {
	Title      string `json:"title"`
	WordCount  int    `json:"word_count"`
	HasStyling bool   `json:"has_styling"`
	Sections   int    `json:"sections"`
	Snippet    string `json:"snippet"`
}

// Record is one entry of the metadata index.
type Record struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Filename     string    `json:"filename"`
	Description  string    `json:"description"`
	CreatedDate  time.Time `json:"created_date"`
	OriginalFile string    `json:"original_file"`
	FileSize     int64     `json:"file_size"`
	Preview      Preview   `json:"preview"`
}

// Summary is the listing view of a Record.
type Summary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedDate time.Time `json:"created_date"`
	FileSizeKB  float64   `json:"file_size_kb"`
	Preview     Preview   `json:"preview"`
}

// Details is a Record plus the current state of its file.
type Details struct {
	Record
	Path         string    `json:"path"`
	CurrentSize  int64     `json:"current_size,omitempty"`
	LastModified time.Time `json:"last_modified,omitempty"`
}

// Manager saves, loads and lists templates.
type Manager struct {
	dir string

	mu   sync.Mutex
	meta map[string]Record
	now  func() time.Time
}

// NewManager opens (creating if needed) the library under root.
func NewManager(root string) (*Manager, error) {
	dir := filepath.Join(root, savedDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create templates dir: %v", result.ErrFilesystem, err)
	}
	m := &Manager{dir: dir, meta: map[string]Record{}, now: time.Now}
	m.loadMetadata()
	log.Debug().Str("dir", dir).Int("templates", len(m.meta)).Msg("template manager ready")
	return m, nil
}

// Dir is the directory holding template files.
func (m *Manager) Dir() string { return m.dir }

// CleanName turns a display name into a file-safe id: lowercase, other
// characters to "_", runs of "_" collapsed, leading/trailing "_" trimmed.
func CleanName(name string) string {
	clean := invalidNameChars.ReplaceAllString(strings.ToLower(name), "_")
	clean = repeatedUnders.ReplaceAllString(clean, "_")
	return strings.Trim(clean, "_")
}

func (m *Manager) pathFor(name string) (string, string, error) {
	id := CleanName(name)
	if id == "" {
		return "", "", fmt.Errorf("%w: template name %q has no usable characters", result.ErrUnsupportedInput, name)
	}
	return id, filepath.Join(m.dir, id+".html"), nil
}

// Save copies htmlPath into the library as name. Existing templates are
// never overwritten.
func (m *Manager) Save(htmlPath, name, description string) (string, error) {
	data, err := os.ReadFile(htmlPath)
	if err != nil {
		return "", fmt.Errorf("%w: HTML file not found: %s", result.ErrPrecondition, htmlPath)
	}
	return m.save(data, htmlPath, name, description)
}

func (m *Manager) save(data []byte, origin, name, description string) (string, error) {
	id, dst, err := m.pathFor(name)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %w: %q", result.ErrPrecondition, ErrExists, name)
		}
		return "", fmt.Errorf("%w: %v", result.ErrFilesystem, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(dst)
		return "", fmt.Errorf("%w: write template: %v", result.ErrFilesystem, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("%w: write template: %v", result.ErrFilesystem, err)
	}

	m.meta[id] = Record{
		ID:           id,
		Name:         name,
		Filename:     id + ".html",
		Description:  description,
		CreatedDate:  m.now(),
		OriginalFile: origin,
		FileSize:     int64(len(data)),
		Preview:      preview(string(data)),
	}
	if err := m.saveMetadata(); err != nil {
		log.Error().Err(err).Msg("failed to save template metadata")
	}
	log.Info().Str("template", name).Str("path", dst).Msg("template saved")
	return dst, nil
}

// Load returns the template bytes and path.
func (m *Manager) Load(name string) ([]byte, string, error) {
	_, p, err := m.pathFor(name)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: template %q (available: %s)", result.ErrNotFound, name, strings.Join(m.names(), ", "))
		}
		return nil, "", fmt.Errorf("%w: %v", result.ErrFilesystem, err)
	}
	return data, p, nil
}

// List returns templates whose files still exist, newest first.
func (m *Manager) List() []Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Summary, 0, len(m.meta))
	for id, r := range m.meta {
		if _, err := os.Stat(filepath.Join(m.dir, r.Filename)); err != nil {
			continue
		}
		out = append(out, Summary{
			ID:          id,
			Name:        r.Name,
			Description: r.Description,
			CreatedDate: r.CreatedDate,
			FileSizeKB:  math.Round(float64(r.FileSize)/1024*10) / 10,
			Preview:     r.Preview,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedDate.Equal(out[j].CreatedDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedDate.After(out[j].CreatedDate)
	})
	return out
}

func (m *Manager) names() []string {
	var names []string
	for _, s := range m.List() {
		names = append(names, s.Name)
	}
	return names
}

// Delete removes the template file and its metadata.
func (m *Manager) Delete(name string) error {
	id, p, err := m.pathFor(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: template %q", result.ErrNotFound, name)
		}
		return fmt.Errorf("%w: %v", result.ErrFilesystem, err)
	}
	if _, ok := m.meta[id]; ok {
		delete(m.meta, id)
		if err := m.saveMetadata(); err != nil {
			log.Error().Err(err).Msg("failed to save template metadata")
		}
	}
	log.Info().Str("template", name).Msg("template deleted")
	return nil
}

// Duplicate copies an existing template under a new name.
func (m *Manager) Duplicate(source, newName, description string) (string, error) {
	data, p, err := m.Load(source)
	if err != nil {
		return "", err
	}
	return m.save(data, p, newName, description)
}

// Info returns the metadata record plus current file stats.
func (m *Manager) Info(name string) (*Details, error) {
	id, p, err := m.pathFor(name)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	r, ok := m.meta[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: template %q", result.ErrNotFound, name)
	}
	d := &Details{Record: r, Path: p}
	if st, err := os.Stat(p); err == nil {
		d.CurrentSize = st.Size()
		d.LastModified = st.ModTime()
	}
	return d, nil
}

// Export writes the template to dst.
func (m *Manager) Export(name, dst string) (string, error) {
	data, _, err := m.Load(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", result.ErrFilesystem, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: export template: %v", result.ErrFilesystem, err)
	}
	log.Info().Str("template", name).Str("path", dst).Msg("template exported")
	return dst, nil
}

func (m *Manager) loadMetadata() {
	data, err := os.ReadFile(filepath.Join(m.dir, metadataFile))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Msg("failed to read template metadata")
		}
		return
	}
	meta := map[string]Record{}
	if err := json.Unmarshal(data, &meta); err != nil {
		log.Warn().Err(err).Msg("failed to parse template metadata")
		return
	}
	for id, r := range meta {
		r.ID = id
		meta[id] = r
	}
	m.meta = meta
}

// saveMetadata writes the index atomically. Callers hold m.mu.
func (m *Manager) saveMetadata() error {
	data, err := json.MarshalIndent(m.meta, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(m.dir, metadataFile+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(m.dir, metadataFile))
}

func preview(content string) Preview {
	s := vision.Structure(content)
	lower := strings.ToLower(content)
	title := s.Title
	switch {
	case title != "":
	case len(s.Headings) > 0:
		title = s.Headings[0]
	default:
		title = "Resume Template"
	}
	return Preview{
		Title:      title,
		WordCount:  len(strings.Fields(content)),
		HasStyling: strings.Contains(lower, "<style") || strings.Contains(lower, "style="),
		Sections:   len(s.Headings),
		Snippet:    vision.Snippet(s.Text, snippetChars),
	}
}
