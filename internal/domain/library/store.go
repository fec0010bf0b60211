package library

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"storynarrator/internal/domain/story"
)

// Project is the saved working state: the script, its cast and the custom
// voices the cast may refer to.
type Project struct {
	Script       string
	Cast         *story.Cast
	CustomVoices []Voice
	UpdatedAt    time.Time
}

// ProjectStore keeps a Project in a JSON file.
type ProjectStore struct {
	file string
}

type savedProject struct {
	Script       string         `json:"script"`
	Speakers     []savedSpeaker `json:"speakers"`
	CustomVoices []Voice        `json:"custom_voices"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type savedSpeaker struct {
	Name   string      `json:"name"`
	Config savedConfig `json:"config"`
}

// savedConfig also accepts the older single "seed" field. Volume shadows the
// embedded field so a missing volume can be told apart from a silent one.
type savedConfig struct {
	story.SpeakerConfig
	Seed   *int32   `json:"seed,omitempty"`
	Volume *float64 `json:"volume,omitempty"`
}

func NewProjectStore(file string) *ProjectStore {
	return &ProjectStore{file: file}
}

func (ps *ProjectStore) Path() string {
	return ps.file
}

// Load reads the project. A missing file yields an empty project.
func (ps *ProjectStore) Load() (*Project, error) {
	file, err := os.Open(ps.file)
	if os.IsNotExist(err) {
		return &Project{Cast: story.NewCast()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open project file: %w", err)
	}
	defer file.Close()

	var saved savedProject
	if err := json.NewDecoder(file).Decode(&saved); err != nil {
		return nil, fmt.Errorf("failed to decode project file: %w", err)
	}

	project := &Project{
		Script:       saved.Script,
		Cast:         story.NewCast(),
		CustomVoices: New(saved.CustomVoices).Custom(),
		UpdatedAt:    saved.UpdatedAt,
	}
	for _, s := range saved.Speakers {
		if s.Name == "" {
			continue
		}
		project.Cast.Set(s.Name, migrateConfig(s.Config))
	}

	logrus.WithFields(logrus.Fields{
		"speakers":      project.Cast.Len(),
		"custom_voices": len(project.CustomVoices),
		"last_updated":  saved.UpdatedAt.Format(time.RFC3339),
	}).Debug("Loaded project")

	return project, nil
}

// migrateConfig fills defaults for fields older files lack.
func migrateConfig(c savedConfig) story.SpeakerConfig {
	cfg := c.SpeakerConfig
	if len(cfg.Seeds) == 0 {
		if c.Seed != nil {
			cfg.Seeds = []int32{*c.Seed}
		} else {
			cfg.Seeds = []int32{story.DefaultSeed}
		}
	}
	if len(cfg.Seeds) > story.MaxSeeds {
		cfg.Seeds = cfg.Seeds[:story.MaxSeeds]
	}
	if cfg.ActiveSeed < 0 || cfg.ActiveSeed >= len(cfg.Seeds) {
		cfg.ActiveSeed = 0
	}
	if cfg.Voice == "" {
		cfg.Voice = BuiltinVoices[0].ID
	}
	if cfg.Emotion == "" {
		cfg.Emotion = story.DefaultEmotion
	}
	if c.Volume != nil {
		cfg.Volume = *c.Volume
	} else {
		cfg.Volume = story.DefaultVolume
	}
	if cfg.Speed == "" {
		cfg.Speed = story.DefaultSpeed
	}
	return cfg
}

// Save writes the project, replacing the previous file atomically.
func (ps *ProjectStore) Save(project *Project) error {
	saved := savedProject{
		Script:       project.Script,
		CustomVoices: project.CustomVoices,
		UpdatedAt:    time.Now(),
	}
	for _, name := range project.Cast.Names() {
		cfg, _ := project.Cast.Get(name)
		volume := cfg.Volume
		saved.Speakers = append(saved.Speakers, savedSpeaker{Name: name, Config: savedConfig{SpeakerConfig: cfg, Volume: &volume}})
	}

	if dir := filepath.Dir(ps.file); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create project directory: %w", err)
		}
	}

	tmp := ps.file + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create project file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(saved); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode project: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write project file: %w", err)
	}
	if err := os.Rename(tmp, ps.file); err != nil {
		return fmt.Errorf("failed to replace project file: %w", err)
	}

	project.UpdatedAt = saved.UpdatedAt
	logrus.WithFields(logrus.Fields{
		"speakers": len(saved.Speakers),
		"file":     ps.file,
	}).Info("Saved project")

	return nil
}

// Clear removes the project file
func (ps *ProjectStore) Clear() error {
	if err := os.Remove(ps.file); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear project: %w", err)
	}
	return nil
}
