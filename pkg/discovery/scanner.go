package discovery

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/tensorplug/tensorplug/pkg/manifest"
)

// manifestCacheSize bounds the sidecar manifest cache.
const manifestCacheSize = 256

// ModuleInfo describes one discovered module.
type ModuleInfo struct {
	// Path is the shared object's filesystem path.
	Path string

	// Manifest is the parsed sidecar, or nil when the module ships none.
	Manifest *manifest.Manifest

	// ModTime is the shared object's modification time at scan time.
	ModTime time.Time
}

type cachedManifest struct {
	modTime  time.Time
	manifest *manifest.Manifest
}

// Scanner discovers filter modules in a fixed set of directories.
type Scanner struct {
	dirs  []string
	mu    sync.Mutex
	cache *lru.Cache[string, cachedManifest]
	log   *logrus.Logger
}

// NewScanner creates a scanner over the given plugin directories.
func NewScanner(dirs []string, log *logrus.Logger) *Scanner {
	if log == nil {
		log = logrus.New()
	}
	cache, _ := lru.New[string, cachedManifest](manifestCacheSize)
	return &Scanner{
		dirs:  dirs,
		cache: cache,
		log:   log,
	}
}

// Scan walks every configured directory and returns the modules found.
// Directories that do not exist are skipped; unreadable sidecar manifests
// are logged and reported with a nil manifest.
func (s *Scanner) Scan() ([]ModuleInfo, error) {
	var modules []ModuleInfo

	for _, dir := range s.dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			s.log.Debugf("Plugin directory does not exist: %s", dir)
			continue
		}

		paths, err := filepath.Glob(filepath.Join(dir, "*.so"))
		if err != nil {
			s.log.Warnf("Failed to scan plugin directory %s: %v", dir, err)
			continue
		}

		for _, path := range paths {
			fi, err := os.Stat(path)
			if err != nil {
				s.log.Warnf("Failed to stat module %s: %v", path, err)
				continue
			}

			modules = append(modules, ModuleInfo{
				Path:     path,
				Manifest: s.lookupManifest(path),
				ModTime:  fi.ModTime(),
			})
		}
	}

	return modules, nil
}

// lookupManifest loads a module's sidecar manifest through the LRU cache,
// keyed by path and invalidated when the sidecar's mtime changes.
func (s *Scanner) lookupManifest(modulePath string) *manifest.Manifest {
	sidecar := manifest.SidecarPath(modulePath)
	fi, err := os.Stat(sidecar)
	if err != nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.cache.Get(sidecar); ok && cached.modTime.Equal(fi.ModTime()) {
		return cached.manifest
	}

	m, err := manifest.Load(sidecar)
	if err != nil {
		s.log.Warnf("Failed to load manifest %s: %v", sidecar, err)
		return nil
	}
	s.cache.Add(sidecar, cachedManifest{modTime: fi.ModTime(), manifest: m})
	return m
}
