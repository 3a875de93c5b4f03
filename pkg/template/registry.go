package template

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	appErrors "github.com/certifyhq/certify-api/pkg/errors"
)

// Registry holds the certificate templates available for rendering. Built-in
// layouts are registered at construction; HTML files under the templates
// directory are discovered lazily by file name stem.
type Registry struct {
	mu           sync.RWMutex
	templates    map[string]Renderer
	templatesDir string
	logger       *zap.Logger
}

// NewRegistry builds a registry with the built-in layouts pre-registered.
func NewRegistry(templatesDir string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		templates:    make(map[string]Renderer),
		templatesDir: templatesDir,
		logger:       logger,
	}
	r.Register(NewClassicTemplate())
	r.Register(NewMinimalTemplate())
	return r
}

// Register adds or replaces a template under its own name.
func (r *Registry) Register(t Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.Name()] = t
}

// Get resolves a template by name. An unknown name triggers one directory
// refresh before falling back to the default layout; when even the default is
// missing the lookup fails.
func (r *Registry) Get(name string) (Renderer, error) {
	if name == "" {
		name = "default"
	}

	r.mu.RLock()
	t, ok := r.templates[name]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	r.Refresh()

	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.templates[name]; ok {
		return t, nil
	}
	if t, ok := r.templates["default"]; ok {
		r.logger.Sugar().Warnw("template not found, using default", "template", name)
		return t, nil
	}
	return nil, appErrors.Clone(appErrors.ErrTemplateNotFound, "template "+name+" not found and no default available")
}

// List returns all registered templates after a directory refresh, sorted by id.
func (r *Registry) List() []Info {
	r.Refresh()

	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]Info, 0, len(r.templates))
	for id, t := range r.templates {
		infos = append(infos, Info{ID: id, Name: t.Name(), Description: t.Description()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Refresh scans the templates directory and registers any .html file not yet
// known. Existing registrations are never overwritten by discovery.
func (r *Registry) Refresh() {
	if r.templatesDir == "" {
		return
	}
	entries, err := os.ReadDir(r.templatesDir)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Sugar().Warnw("failed to scan templates directory", "dir", r.templatesDir, "error", err)
		}
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".html")
		if _, exists := r.templates[name]; exists {
			continue
		}
		r.templates[name] = NewHTMLTemplate(name, filepath.Join(r.templatesDir, entry.Name()))
		r.logger.Sugar().Infow("discovered html template", "template", name)
	}
}
