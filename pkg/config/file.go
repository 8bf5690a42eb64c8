package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ot2lab/liquidtrack/pkg/tube"
	"github.com/ot2lab/liquidtrack/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		DefaultTubeType:    ptr.To(tube.Tube15mL),
		AllowNonRootAccess: ptr.To(false),
		TrackerTTLMinutes:  ptr.To(24 * 60),
		SweepSchedule:      ptr.To("@every 5m"),
		HistorySize:        ptr.To(100),
	}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

type RawFileConfig struct {
	DefaultTubeType    *string `json:"defaultTubeType,omitempty"`
	AllowNonRootAccess *bool   `json:"allowNonRootAccess,omitempty"`
	TrackerTTLMinutes  *int    `json:"trackerTTLMinutes,omitempty"`
	SweepSchedule      *string `json:"sweepSchedule,omitempty"`
	HistorySize        *int    `json:"historySize,omitempty"`
}

func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	rawConfig := &RawFileConfig{
		DefaultTubeType:    ptr.To(c.DefaultTubeType()),
		AllowNonRootAccess: ptr.To(c.AllowNonRootAccess()),
		TrackerTTLMinutes:  ptr.To(c.TrackerTTLMinutes()),
		SweepSchedule:      ptr.To(c.SweepSchedule()),
		HistorySize:        ptr.To(c.HistorySize()),
	}

	return rawConfig, nil
}

// Validate checks values that would make the daemon misbehave.
func (c *RawFileConfig) Validate() error {
	if c.DefaultTubeType != nil && !tube.IsKnown(*c.DefaultTubeType) {
		return pkgerrors.Errorf("defaultTubeType: unknown tube type %q", *c.DefaultTubeType)
	}
	if c.TrackerTTLMinutes != nil && *c.TrackerTTLMinutes < 0 {
		return pkgerrors.Errorf("trackerTTLMinutes must not be negative, got %d", *c.TrackerTTLMinutes)
	}
	if c.HistorySize != nil && *c.HistorySize < 0 {
		return pkgerrors.Errorf("historySize must not be negative, got %d", *c.HistorySize)
	}
	return nil
}

func (f *File) DefaultTubeType() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.DefaultTubeType, *defaultFileConfig.DefaultTubeType)
}

func (f *File) AllowNonRootAccess() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.AllowNonRootAccess, *defaultFileConfig.AllowNonRootAccess)
}

func (f *File) TrackerTTLMinutes() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.TrackerTTLMinutes, *defaultFileConfig.TrackerTTLMinutes)
}

func (f *File) SweepSchedule() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	schedule := ptr.Deref(f.c.SweepSchedule, "")
	if strings.TrimSpace(schedule) == "" {
		schedule = *defaultFileConfig.SweepSchedule
	}

	return schedule
}

func (f *File) HistorySize() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.HistorySize, *defaultFileConfig.HistorySize)
}

func (f *File) SetDefaultTubeType(t string) {
	if f.c == nil {
		panic("config is nil")
	}

	if !tube.IsKnown(t) {
		panic("default tube type must be a known tube type")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.DefaultTubeType = &t
}

func (f *File) SetAllowNonRootAccess(b bool) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.AllowNonRootAccess = &b
}

func (f *File) SetTrackerTTLMinutes(i int) {
	if f.c == nil {
		panic("config is nil")
	}

	if i < 0 {
		panic("tracker ttl must not be negative")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.TrackerTTLMinutes = &i
}

func (f *File) SetSweepSchedule(s string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.SweepSchedule = &s
}

func (f *File) SetHistorySize(i int) {
	if f.c == nil {
		panic("config is nil")
	}

	if i < 0 {
		panic("history size must not be negative")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.HistorySize = &i
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	if err := conf.Validate(); err != nil {
		return pkgerrors.Wrapf(err, "invalid config in file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"defaultTubeType":    f.DefaultTubeType(),
		"allowNonRootAccess": f.AllowNonRootAccess(),
		"trackerTTLMinutes":  f.TrackerTTLMinutes(),
		"sweepSchedule":      f.SweepSchedule(),
		"historySize":        f.HistorySize(),
	}
}
