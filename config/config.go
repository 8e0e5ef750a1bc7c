package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/swdee/go-tracklet"
	"github.com/swdee/go-tracklet/pool"
	"github.com/swdee/go-tracklet/tracker"
)

// Config is the structure of the TOML configuration file.  Keys missing from
// the file keep their Default value
type Config struct {
	Logging LoggingConfig `toml:"logging"`
	NMS     NMSConfig     `toml:"nms"`
	Tracker TrackerConfig `toml:"tracker"`
	Pool    PoolConfig    `toml:"pool"`
	Stream  StreamConfig  `toml:"stream"`
	Scene   SceneConfig   `toml:"scene"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

type NMSConfig struct {
	Enabled        bool    `toml:"enabled"`
	ScoreThreshold float64 `toml:"score_threshold"`
	IOUThreshold   float64 `toml:"iou_threshold"`
}

type TrackerConfig struct {
	MaxDistance      float64      `toml:"max_distance"`
	MergeDistance    float64      `toml:"merge_distance"`
	MaxTracklets     int          `toml:"max_tracklets"`
	MaxLostTime      float64      `toml:"max_lost_time"`
	MaxCountPerClass []int        `toml:"max_count_per_class"`
	VoteWindow       int          `toml:"vote_window"`
	Filter           FilterConfig `toml:"filter"`
}

type FilterConfig struct {
	Kind             string  `toml:"kind"`
	MinCutoff        float64 `toml:"min_cutoff"`
	Beta             float64 `toml:"beta"`
	DerivativeCutoff float64 `toml:"derivative_cutoff"`
	Frequency        float64 `toml:"frequency"`
	ProcessNoise     float64 `toml:"process_noise"`
	MeasurementNoise float64 `toml:"measurement_noise"`
}

type PoolConfig struct {
	Size                 int     `toml:"size"`
	Matching             bool    `toml:"matching"`
	MatchThreshold       float64 `toml:"match_threshold"`
	LostFramesThreshold  int     `toml:"lost_frames_threshold"`
	SmoothingCoefficient float64 `toml:"smoothing_coefficient"`
}

type StreamConfig struct {
	Port               uint `toml:"port"`
	Width              int  `toml:"width"`
	Height             int  `toml:"height"`
	FPS                int  `toml:"fps"`
	ReadTimeoutSec     uint `toml:"read_timeout_sec"`
	WriteTimeoutSec    uint `toml:"write_timeout_sec"`
	ShutdownTimeoutSec uint `toml:"shutdown_timeout_sec"`
}

// SceneConfig defines the synthetic detections generated by the replay demo
type SceneConfig struct {
	// Labels is the path of the class labels file, empty uses class numbers
	Labels string `toml:"labels"`
	// Objects is the number of moving objects
	Objects int `toml:"objects"`
	// Seed for the random generator
	Seed int64 `toml:"seed"`
	// Speed of the objects in normalized units per second
	Speed float64 `toml:"speed"`
	// Jitter is the standard deviation of the detection position noise
	Jitter float64 `toml:"jitter"`
	// DropRate is the probability a detection is missed in a frame
	DropRate float64 `toml:"drop_rate"`
	// FlipRate is the probability a detection reports a wrong class
	FlipRate float64 `toml:"flip_rate"`
}

// Default returns the default configuration
func Default() Config {

	tp := tracker.DefaultParams(4, 1)
	tp.MaxCountPerClass = []int{1, 7, 7, 1}
	pp := pool.DefaultParams(16)

	return Config{
		Logging: LoggingConfig{Level: "info"},
		NMS: NMSConfig{
			Enabled:        true,
			ScoreThreshold: 0.25,
			IOUThreshold:   0.45,
		},
		Tracker: TrackerConfig{
			MaxDistance:      tp.MaxDistance,
			MergeDistance:    tp.MergeDistance,
			MaxTracklets:     tp.MaxTracklets,
			MaxLostTime:      tp.MaxLostTime,
			MaxCountPerClass: tp.MaxCountPerClass,
			VoteWindow:       tp.VoteWindow,
			Filter: FilterConfig{
				Kind:             string(tp.Filter.Kind),
				MinCutoff:        tp.Filter.MinCutoff,
				Beta:             tp.Filter.Beta,
				DerivativeCutoff: tp.Filter.DerivativeCutoff,
				Frequency:        tp.Filter.Frequency,
				ProcessNoise:     tp.Filter.ProcessNoise,
				MeasurementNoise: tp.Filter.MeasurementNoise,
			},
		},
		Pool: PoolConfig{
			Size:                 pp.PoolSize,
			Matching:             pp.Matching,
			MatchThreshold:       pp.MatchThreshold,
			LostFramesThreshold:  pp.LostFramesThreshold,
			SmoothingCoefficient: pp.SmoothingCoefficient,
		},
		Stream: StreamConfig{
			Port:               8080,
			Width:              960,
			Height:             540,
			FPS:                30,
			ReadTimeoutSec:     10,
			WriteTimeoutSec:    10,
			ShutdownTimeoutSec: 5,
		},
		Scene: SceneConfig{
			Objects:  16,
			Seed:     1,
			Speed:    0.15,
			Jitter:   0.003,
			DropRate: 0.05,
			FlipRate: 0.05,
		},
	}
}

// Load reads the TOML file at path over the Default configuration and
// validates the result
func Load(path string) (Config, error) {

	data, err := os.ReadFile(path)

	if err != nil {
		return Config{}, errors.Wrapf(err, "unable to read config %s", path)
	}

	return Parse(data)
}

// Parse decodes TOML data over the Default configuration and validates the
// result
func Parse(data []byte) (Config, error) {

	cfg := Default()

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "unable to unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks every section of the configuration
func (c Config) Validate() error {

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	if err := c.EngineParams().Validate(); err != nil {
		return errors.Wrap(err, "invalid engine config")
	}

	if c.Stream.Port == 0 || c.Stream.Port > 65535 {
		return errors.Errorf("stream port out of range, got %d", c.Stream.Port)
	}

	if c.Stream.Width <= 0 || c.Stream.Height <= 0 {
		return errors.Errorf("stream size must be positive, got %dx%d",
			c.Stream.Width, c.Stream.Height)
	}

	if c.Stream.FPS <= 0 {
		return errors.Errorf("stream fps must be positive, got %d", c.Stream.FPS)
	}

	if c.Scene.Objects < 0 {
		return errors.Errorf("scene objects must not be negative, got %d", c.Scene.Objects)
	}

	if c.Scene.Speed < 0 || c.Scene.Jitter < 0 {
		return errors.New("scene speed and jitter must not be negative")
	}

	if c.Scene.DropRate < 0 || c.Scene.DropRate > 1 {
		return errors.Errorf("scene drop rate must be within [0,1], got %v", c.Scene.DropRate)
	}

	if c.Scene.FlipRate < 0 || c.Scene.FlipRate > 1 {
		return errors.Errorf("scene flip rate must be within [0,1], got %v", c.Scene.FlipRate)
	}

	return nil
}

// EngineParams converts the configuration to Engine parameters
func (c Config) EngineParams() tracklet.Params {
	return tracklet.Params{
		NMS: tracklet.NMSParams{
			Enabled:        c.NMS.Enabled,
			ScoreThreshold: c.NMS.ScoreThreshold,
			IOUThreshold:   c.NMS.IOUThreshold,
		},
		Tracker: tracker.Params{
			MaxDistance:      c.Tracker.MaxDistance,
			MergeDistance:    c.Tracker.MergeDistance,
			MaxTracklets:     c.Tracker.MaxTracklets,
			MaxLostTime:      c.Tracker.MaxLostTime,
			MaxCountPerClass: append([]int(nil), c.Tracker.MaxCountPerClass...),
			VoteWindow:       c.Tracker.VoteWindow,
			Filter: tracker.FilterParams{
				Kind:             tracker.FilterKind(c.Tracker.Filter.Kind),
				MinCutoff:        c.Tracker.Filter.MinCutoff,
				Beta:             c.Tracker.Filter.Beta,
				DerivativeCutoff: c.Tracker.Filter.DerivativeCutoff,
				Frequency:        c.Tracker.Filter.Frequency,
				ProcessNoise:     c.Tracker.Filter.ProcessNoise,
				MeasurementNoise: c.Tracker.Filter.MeasurementNoise,
			},
		},
		Pool: pool.Params{
			PoolSize:             c.Pool.Size,
			Matching:             c.Pool.Matching,
			MatchThreshold:       c.Pool.MatchThreshold,
			LostFramesThreshold:  c.Pool.LostFramesThreshold,
			SmoothingCoefficient: c.Pool.SmoothingCoefficient,
		},
	}
}
