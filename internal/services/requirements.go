package services

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SubrequirementConfig describes how courses map onto one subrequirement.
type SubrequirementConfig struct {
	Title           string   `json:"title"`
	RequiredUnits   float64  `json:"required_units"`
	EligibleCourses []string `json:"eligible_courses"`
	Departments     []string `json:"departments"`
	LevelFilters    []string `json:"level_filters"`
}

// RequirementCategory groups subrequirement configs under one category.
type RequirementCategory struct {
	Category        string                 `json:"category"`
	Subrequirements []SubrequirementConfig `json:"subrequirements"`
}

// CollegeRequirements describes one college's general education requirements,
// loaded from colleges/<code>.json.
type CollegeRequirements struct {
	CollegeCode  string                `json:"college_code"`
	CollegeName  string                `json:"college_name"`
	Requirements []RequirementCategory `json:"requirements"`
}

// MajorRequirements describes one major's requirements, loaded from
// majors/<code>.json.
type MajorRequirements struct {
	MajorCode    string                `json:"major_code"`
	MajorName    string                `json:"major_name"`
	Requirements []RequirementCategory `json:"requirements"`
}

// RequirementsCatalog is an immutable snapshot of all loaded requirement
// configs, keyed by college and major code.
type RequirementsCatalog struct {
	Colleges map[string]CollegeRequirements `json:"colleges"`
	Majors   map[string]MajorRequirements   `json:"majors"`
}

// RequirementsStore serves requirement configs from a directory tree
// (<dir>/colleges/*.json, <dir>/majors/*.json) and hot-reloads them when the
// files change on disk.
type RequirementsStore struct {
	dir string

	mu      sync.RWMutex
	catalog RequirementsCatalog

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// NewRequirementsStore loads the directory and returns the store. Missing
// subdirectories are not an error: the store just serves an empty catalog.
func NewRequirementsStore(dir string) (*RequirementsStore, error) {
	s := &RequirementsStore{
		dir:  dir,
		done: make(chan struct{}),
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Catalog returns the current snapshot.
func (s *RequirementsStore) Catalog() RequirementsCatalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// College looks up one college config by code.
func (s *RequirementsStore) College(code string) (CollegeRequirements, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.catalog.Colleges[strings.ToUpper(code)]
	return c, ok
}

// Major looks up one major config by code.
func (s *RequirementsStore) Major(code string) (MajorRequirements, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.catalog.Majors[strings.ToUpper(code)]
	return m, ok
}

// reload re-reads the whole directory and swaps the snapshot in one step.
func (s *RequirementsStore) reload() error {
	catalog := RequirementsCatalog{
		Colleges: make(map[string]CollegeRequirements),
		Majors:   make(map[string]MajorRequirements),
	}

	err := loadJSONDir(filepath.Join(s.dir, "colleges"), func(path string) error {
		var college CollegeRequirements
		if err := readJSONFile(path, &college); err != nil {
			return err
		}
		catalog.Colleges[strings.ToUpper(college.CollegeCode)] = college
		return nil
	})
	if err != nil {
		return err
	}

	err = loadJSONDir(filepath.Join(s.dir, "majors"), func(path string) error {
		var major MajorRequirements
		if err := readJSONFile(path, &major); err != nil {
			return err
		}
		catalog.Majors[strings.ToUpper(major.MajorCode)] = major
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.catalog = catalog
	s.mu.Unlock()

	log.Printf("✅ [REQUIREMENTS] Loaded %d college and %d major configs from %s",
		len(catalog.Colleges), len(catalog.Majors), s.dir)
	return nil
}

// Watch starts a filesystem watcher that reloads the catalog when config
// files change. Events are debounced because editors fire several per save.
func (s *RequirementsStore) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create requirements watcher: %w", err)
	}
	s.watcher = watcher

	watched := 0
	for _, sub := range []string{"colleges", "majors"} {
		dir := filepath.Join(s.dir, sub)
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			log.Printf("⚠️ [REQUIREMENTS] Cannot watch %s: %v", dir, err)
			continue
		}
		watched++
	}
	if watched == 0 {
		log.Printf("⚠️ [REQUIREMENTS] No config directories to watch under %s", s.dir)
		watcher.Close()
		s.watcher = nil
		return nil
	}

	go s.watchLoop()
	log.Printf("👀 [REQUIREMENTS] Watching %d config directories for changes", watched)
	return nil
}

func (s *RequirementsStore) watchLoop() {
	var debounce *time.Timer

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(500*time.Millisecond, func() {
				log.Printf("🔄 [REQUIREMENTS] Config change detected, reloading...")
				if err := s.reload(); err != nil {
					log.Printf("❌ [REQUIREMENTS] Reload failed, keeping previous catalog: %v", err)
				}
			})

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️ [REQUIREMENTS] Watcher error: %v", err)

		case <-s.done:
			return
		}
	}
}

// Close stops the watcher. Safe to call more than once.
func (s *RequirementsStore) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.watcher != nil {
			s.watcher.Close()
		}
	})
}

func loadJSONDir(dir string, loadFile func(string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := loadFile(path); err != nil {
			// One bad file should not take down the whole catalog.
			log.Printf("⚠️ [REQUIREMENTS] Skipping %s: %v", path, err)
		}
	}
	return nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}
