package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/glvplay/glvplay/pkg/layout"
	flag "github.com/spf13/pflag"
)

type Config struct {
	Player     Player
	Monitoring Monitoring
	Log        Log
}

type Player struct {
	Video  Video
	Audio  Audio
	Window Window
	// Regions is an ordered list of windows, each showing a part of the video.
	Regions  []Region
	SeekStep time.Duration `fig:"seek_step" default:"20s"`
	Snapshot Snapshot
}

type Video struct {
	Path   string
	Width  int
	Height int
	Fps    float64 `default:"25"`
}

type Audio struct {
	Enabled   bool
	Path      string
	Frequency int `default:"48000"`
	Channels  int `default:"2"`
	// Samples is the device buffer size in sample frames.
	Samples int `default:"1024"`
}

// Window is the size restored when leaving fullscreen.
type Window struct {
	Width  int `default:"480"`
	Height int `default:"270"`
}

// Snapshot saves the regions of the current frame as PNG files.
type Snapshot struct {
	Dir   string  `default:"snapshots"`
	Scale float64 `default:"1"`
	Label bool
}

type Region struct {
	Name   string
	XBegin float32 `fig:"x_begin"`
	XEnd   float32 `fig:"x_end"`
	YBegin float32 `fig:"y_begin"`
	YEnd   float32 `fig:"y_end"`
}

func (r Region) Section() layout.Section {
	return layout.Section{Left: r.XBegin, Right: r.XEnd, Top: r.YBegin, Bottom: r.YEnd}
}

// DefaultRegion shows the whole video.
var DefaultRegion = Region{Name: "GLV", XBegin: 0, XEnd: 1, YBegin: 0, YEnd: 1}

// GetRegions returns the configured regions or the single default one.
func (p *Player) GetRegions() []Region {
	if len(p.Regions) == 0 {
		return []Region{DefaultRegion}
	}
	return p.Regions
}

type Monitoring struct {
	Port             int
	URLPrefix        string `fig:"url_prefix"`
	MetricEnabled    bool   `fig:"metric_enabled"`
	ProfilingEnabled bool   `fig:"profiling_enabled"`
}

func (c *Monitoring) IsEnabled() bool { return c.MetricEnabled || c.ProfilingEnabled }

type Log struct {
	Debug   bool
	NoColor bool `fig:"no_color"`
	Tag     string
}

var (
	ErrVideoSize = errors.New("video size is not set")
	ErrFps       = errors.New("fps must be positive")
	ErrAudioSpec = errors.New("audio spec is invalid")
)

// Validate checks values that can't be guarded by defaults.
func (c *Config) Validate() error {
	v := c.Player.Video
	if v.Width <= 0 || v.Height <= 0 {
		return fmt.Errorf("%w: %vx%v", ErrVideoSize, v.Width, v.Height)
	}
	if v.Fps <= 0 {
		return fmt.Errorf("%w: %v", ErrFps, v.Fps)
	}
	if a := c.Player.Audio; a.Enabled {
		if a.Frequency <= 0 || a.Channels <= 0 || a.Channels > 8 || a.Samples <= 0 {
			return fmt.Errorf("%w: %+v", ErrAudioSpec, a)
		}
	}
	for i, r := range c.Player.GetRegions() {
		if err := r.Section().Validate(); err != nil {
			name := r.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return &layout.SectionError{Name: name, Section: r.Section(), Err: err}
		}
	}
	return nil
}

// Parse reads the command line and the config file it points to.
// Flags set explicitly win over the file and the environment.
// Returns the loaded file path, empty if none was found.
func Parse(fs *flag.FlagSet, args []string) (*Config, string, error) {
	var conf Config
	path := fs.StringP("conf", "c", "", "Set custom configuration file path")
	conf.WithFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}

	set := make(map[string]string)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = f.Value.String() })

	file, err := LoadConfig(&conf, *path)
	if err != nil {
		return nil, "", fmt.Errorf("config: %w", err)
	}
	for name, v := range set {
		if err = fs.Set(name, v); err != nil {
			return nil, "", fmt.Errorf("flag %v: %w", name, err)
		}
	}
	conf.Expand()
	return &conf, file, nil
}

// WithFlags binds command line flags to the config fields.
func (c *Config) WithFlags(fs *flag.FlagSet) *Config {
	fs.StringVar(&c.Player.Video.Path, "video", c.Player.Video.Path, "Raw RGB24 video file")
	fs.IntVar(&c.Player.Video.Width, "width", c.Player.Video.Width, "Video frame width")
	fs.IntVar(&c.Player.Video.Height, "height", c.Player.Video.Height, "Video frame height")
	fs.Float64Var(&c.Player.Video.Fps, "fps", c.Player.Video.Fps, "Video frame rate")
	fs.StringVar(&c.Player.Audio.Path, "audio", c.Player.Audio.Path, "Raw s16le audio file")
	fs.StringVar(&c.Player.Snapshot.Dir, "snapshots", c.Player.Snapshot.Dir, "Snapshot directory")
	fs.BoolVar(&c.Log.Debug, "debug", c.Log.Debug, "Debug logging")
	fs.IntVar(&c.Monitoring.Port, "monitoring.port", c.Monitoring.Port, "Monitoring server port")
	return c
}

// Expand fills in values implied by others.
func (c *Config) Expand() {
	if c.Player.Audio.Path != "" {
		c.Player.Audio.Enabled = true
	}
}
