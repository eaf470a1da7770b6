// Package config loads and saves the settings document.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"temperaturebox/internal/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix = "tempbox"

	defaultSleep         = 1.0  // seconds between ticks
	defaultReadDelta     = 60.0 // seconds between samples
	defaultDataDirectory = "data"
	defaultHTTPPort      = "8080"
	defaultDBPath        = "tempbox.db"
	defaultTokenTTL      = time.Hour
	defaultTopicPrefix   = "tempbox"
)

var (
	ErrInvalidSleep     = errors.New("sleep must be > 0")
	ErrInvalidReadDelta = errors.New("read_delta must be > 0")
)

// Settings is the persisted settings document plus service knobs.
type Settings struct {
	Sleep         float64       `json:"sleep"`
	ReadDelta     float64       `json:"read_delta"`
	DataDirectory string        `json:"data_directory"`
	Boxes         []BoxSettings `json:"boxes"`

	LogLevel string         `json:"log_level,omitempty"`
	HTTP     HTTPSettings   `json:"http"`
	DB       DBSettings     `json:"db"`
	Device   DeviceSettings `json:"device"`
	Auth     AuthSettings   `json:"auth"`
	MQTT     MQTTSettings   `json:"mqtt"`
}

// BoxSettings is one entry of the boxes list.
type BoxSettings struct {
	Name     string          `json:"name"`
	Port     string          `json:"port"`
	Address  int             `json:"address"`
	Protocol []models.Step   `json:"protocol"`
	State    models.RunState `json:"state"`
}

type HTTPSettings struct {
	Port string `json:"port"`
}

type DBSettings struct {
	Path string `json:"path"`
}

type DeviceSettings struct {
	Driver   string  `json:"driver"`
	BaudRate uint    `json:"baud_rate"`
	DataBits uint    `json:"data_bits"`
	Parity   string  `json:"parity"`
	StopBits uint    `json:"stop_bits"`
	Timeout  float64 `json:"timeout"` // seconds
}

type AuthSettings struct {
	Enabled    bool    `json:"enabled"`
	SigningKey string  `json:"signing_key,omitempty"`
	TokenTTL   float64 `json:"token_ttl"` // seconds
}

type MQTTSettings struct {
	Broker      string `json:"broker,omitempty"`
	ClientID    string `json:"client_id,omitempty"`
	TopicPrefix string `json:"topic_prefix,omitempty"`
}

// TickInterval is the scheduler period.
func (s *Settings) TickInterval() time.Duration { return seconds(s.Sleep) }

// SampleInterval is the periodic read interval.
func (s *Settings) SampleInterval() time.Duration { return seconds(s.ReadDelta) }

// DeviceTimeout is the serial timeout per call.
func (s *Settings) DeviceTimeout() time.Duration { return seconds(s.Device.Timeout) }

// TokenTTL is the operator token lifetime.
func (s *Settings) TokenTTL() time.Duration { return seconds(s.Auth.TokenTTL) }

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// Validate checks the engine timing values.
func (s *Settings) Validate() error {
	if s.Sleep <= 0 {
		return fmt.Errorf("%w, got %v", ErrInvalidSleep, s.Sleep)
	}
	if s.ReadDelta <= 0 {
		return fmt.Errorf("%w, got %v", ErrInvalidReadDelta, s.ReadDelta)
	}
	return nil
}

// Load reads the settings document at path. Values can be overridden by
// TEMPBOX_* environment variables, optionally from a .env file next to it.
func Load(path string) (*Settings, error) {
	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"))

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read settings %q: %w", path, err)
	}

	s := &Settings{
		Sleep:         v.GetFloat64("sleep"),
		ReadDelta:     v.GetFloat64("read_delta"),
		DataDirectory: v.GetString("data_directory"),
		LogLevel:      v.GetString("log_level"),
		HTTP:          HTTPSettings{Port: v.GetString("http.port")},
		DB:            DBSettings{Path: v.GetString("db.path")},
		Device: DeviceSettings{
			Driver:   v.GetString("device.driver"),
			BaudRate: v.GetUint("device.baud_rate"),
			DataBits: v.GetUint("device.data_bits"),
			Parity:   v.GetString("device.parity"),
			StopBits: v.GetUint("device.stop_bits"),
			Timeout:  v.GetFloat64("device.timeout"),
		},
		Auth: AuthSettings{
			Enabled:    v.GetBool("auth.enabled"),
			SigningKey: v.GetString("auth.signing_key"),
			TokenTTL:   v.GetFloat64("auth.token_ttl"),
		},
		MQTT: MQTTSettings{
			Broker:      v.GetString("mqtt.broker"),
			ClientID:    v.GetString("mqtt.client_id"),
			TopicPrefix: v.GetString("mqtt.topic_prefix"),
		},
	}

	boxes, err := decodeBoxes(v.Get("boxes"))
	if err != nil {
		return nil, fmt.Errorf("decode boxes in %q: %w", path, err)
	}
	s.Boxes = boxes

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sleep", defaultSleep)
	v.SetDefault("read_delta", defaultReadDelta)
	v.SetDefault("data_directory", defaultDataDirectory)
	v.SetDefault("log_level", "info")
	v.SetDefault("http.port", defaultHTTPPort)
	v.SetDefault("db.path", defaultDBPath)
	v.SetDefault("device.driver", "modbus")
	v.SetDefault("device.baud_rate", 9600)
	v.SetDefault("device.data_bits", 8)
	v.SetDefault("device.parity", "N")
	v.SetDefault("device.stop_bits", 1)
	v.SetDefault("device.timeout", 0.5)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token_ttl", defaultTokenTTL.Seconds())
	v.SetDefault("mqtt.client_id", "tempbox")
	v.SetDefault("mqtt.topic_prefix", defaultTopicPrefix)
}

// decodeBoxes re-encodes viper's generic value so the json tags (and the
// status text form) of the models apply.
func decodeBoxes(raw any) ([]BoxSettings, error) {
	if raw == nil {
		return nil, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var boxes []BoxSettings
	if err := json.Unmarshal(b, &boxes); err != nil {
		return nil, err
	}
	return boxes, nil
}

func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// Save writes s to path with sorted keys and four-space indentation.
// The file is replaced atomically.
func Save(path string, s *Settings) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	// round trip through a map so keys come out sorted
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	out, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("write settings %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace settings %q: %w", path, err)
	}
	return nil
}

// ToBoxes converts the settings list into engine boxes.
func (s *Settings) ToBoxes() []models.Box {
	out := make([]models.Box, 0, len(s.Boxes))
	for i, bs := range s.Boxes {
		out = append(out, models.Box{
			ID:         i,
			Name:       bs.Name,
			Connection: models.Connection{Port: bs.Port, Address: bs.Address},
			Protocol:   append([]models.Step(nil), bs.Protocol...),
			State:      bs.State,
		})
	}
	return out
}

// UpdateBoxes copies the engine's view of the boxes back into the document.
func (s *Settings) UpdateBoxes(boxes []models.Box) {
	out := make([]BoxSettings, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, BoxSettings{
			Name:     b.Name,
			Port:     b.Connection.Port,
			Address:  b.Connection.Address,
			Protocol: append([]models.Step(nil), b.Protocol...),
			State:    b.State,
		})
	}
	s.Boxes = out
}

// IsNotExist reports whether err came from a missing settings file.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
