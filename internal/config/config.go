package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ryandielhenn/convoy/internal/logging"
	"github.com/ryandielhenn/convoy/pkg/agent"
	"github.com/ryandielhenn/convoy/pkg/gossip"
	"github.com/ryandielhenn/convoy/pkg/motion"
)

const (
	EnvID            = "CONVOY_ID"
	EnvHTTPAddr      = "CONVOY_HTTP_ADDR"
	EnvEtcdEndpoints = "CONVOY_ETCD_ENDPOINTS"
)

var ErrInvalid = errors.New("config: invalid")

type Protocol struct {
	LivenessTimeoutTicks int
	RollCallHopBound     int
	StopHopBound         int
	HandoffHopBound      int
	HeartbeatTicks       int
	StopHoldTicks        int
	RollCallSettleTicks  int
	TargetTolerance      float64
	Tick                 time.Duration
}

type Transport struct {
	Group       string
	Port        int
	MaxDatagram int
	Buffer      int
}

type Etcd struct {
	Endpoints []string
	Prefix    string
	LeaseTTL  int64
}

type Motion struct {
	Speed          float64
	TurnRate       float64
	AngleTolerance float64
	Start          motion.Coordinate
}

type Config struct {
	ID        string
	Role      string
	HTTPAddr  string
	Protocol  Protocol
	Transport Transport
	Etcd      Etcd
	Log       logging.Config
	Motion    Motion
}

func Default() Config {
	host, _ := os.Hostname()
	p := agent.DefaultParams()
	return Config{
		ID:       host,
		Role:     "agent",
		HTTPAddr: ":8080",
		Protocol: Protocol{
			LivenessTimeoutTicks: p.LivenessTimeout,
			RollCallHopBound:     p.RollCallHopBound,
			StopHopBound:         p.StopHopBound,
			HandoffHopBound:      p.HandoffHopBound,
			HeartbeatTicks:       p.HeartbeatTicks,
			StopHoldTicks:        p.StopHoldTicks,
			RollCallSettleTicks:  p.RollCallSettleTicks,
			TargetTolerance:      p.TargetTolerance,
			Tick:                 10 * time.Millisecond,
		},
		Transport: Transport{
			Group:       "239.0.0.7",
			Port:        47474,
			MaxDatagram: 1024,
			Buffer:      256,
		},
		Etcd: Etcd{
			Prefix:   "/convoy/agents/",
			LeaseTTL: 10,
		},
		Log: logging.DefaultConfig(),
		Motion: Motion{
			Speed:          0.05,
			TurnRate:       6,
			AngleTolerance: 3,
		},
	}
}

type fileConfig struct {
	ID       string `toml:"id"`
	Role     string `toml:"role"`
	Protocol struct {
		LivenessTimeoutTicks int     `toml:"liveness_timeout_ticks"`
		RollCallHopBound     int     `toml:"rollcall_hop_bound"`
		StopHopBound         int     `toml:"stop_hop_bound"`
		HandoffHopBound      int     `toml:"handoff_hop_bound"`
		HeartbeatTicks       int     `toml:"heartbeat_ticks"`
		StopHoldTicks        int     `toml:"stop_hold_ticks"`
		RollCallSettleTicks  int     `toml:"rollcall_settle_ticks"`
		TargetTolerance      float64 `toml:"target_tolerance"`
		Tick                 string  `toml:"tick"`
	} `toml:"protocol"`
	Transport struct {
		Group       string `toml:"group"`
		Port        int    `toml:"port"`
		MaxDatagram int    `toml:"max_datagram"`
		Buffer      int    `toml:"buffer"`
	} `toml:"transport"`
	HTTP struct {
		Addr string `toml:"addr"`
	} `toml:"http"`
	Etcd struct {
		Endpoints []string `toml:"endpoints"`
		Prefix    string   `toml:"prefix"`
		LeaseTTL  int64    `toml:"lease_ttl"`
	} `toml:"etcd"`
	Log    logging.Config `toml:"log"`
	Motion struct {
		Speed          float64 `toml:"speed"`
		TurnRate       float64 `toml:"turn_rate"`
		AngleTolerance float64 `toml:"angle_tolerance"`
		Start          string  `toml:"start"`
	} `toml:"motion"`
}

// Load reads path over Default, applies environment overrides and
// validates. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	ApplyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: unknown key %q", ErrInvalid, undecoded[0].String())
	}

	if meta.IsDefined("id") {
		if id := strings.TrimSpace(raw.ID); id != "" {
			cfg.ID = id
		}
	}
	if meta.IsDefined("role") {
		cfg.Role = strings.ToLower(strings.TrimSpace(raw.Role))
	}

	p := &cfg.Protocol
	if meta.IsDefined("protocol", "liveness_timeout_ticks") {
		p.LivenessTimeoutTicks = raw.Protocol.LivenessTimeoutTicks
	}
	if meta.IsDefined("protocol", "rollcall_hop_bound") {
		p.RollCallHopBound = raw.Protocol.RollCallHopBound
	}
	if meta.IsDefined("protocol", "stop_hop_bound") {
		p.StopHopBound = raw.Protocol.StopHopBound
	}
	if meta.IsDefined("protocol", "handoff_hop_bound") {
		p.HandoffHopBound = raw.Protocol.HandoffHopBound
	}
	if meta.IsDefined("protocol", "heartbeat_ticks") {
		p.HeartbeatTicks = raw.Protocol.HeartbeatTicks
	}
	if meta.IsDefined("protocol", "stop_hold_ticks") {
		p.StopHoldTicks = raw.Protocol.StopHoldTicks
	}
	if meta.IsDefined("protocol", "rollcall_settle_ticks") {
		p.RollCallSettleTicks = raw.Protocol.RollCallSettleTicks
	}
	if meta.IsDefined("protocol", "target_tolerance") {
		p.TargetTolerance = raw.Protocol.TargetTolerance
	}
	if meta.IsDefined("protocol", "tick") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Protocol.Tick))
		if err != nil {
			return fmt.Errorf("parse protocol.tick: %w", err)
		}
		p.Tick = d
	}

	t := &cfg.Transport
	if meta.IsDefined("transport", "group") {
		t.Group = strings.TrimSpace(raw.Transport.Group)
	}
	if meta.IsDefined("transport", "port") {
		t.Port = raw.Transport.Port
	}
	if meta.IsDefined("transport", "max_datagram") {
		t.MaxDatagram = raw.Transport.MaxDatagram
	}
	if meta.IsDefined("transport", "buffer") {
		t.Buffer = raw.Transport.Buffer
	}

	if meta.IsDefined("http", "addr") {
		cfg.HTTPAddr = strings.TrimSpace(raw.HTTP.Addr)
	}

	if meta.IsDefined("etcd", "endpoints") {
		cfg.Etcd.Endpoints = normalizeList(raw.Etcd.Endpoints)
	}
	if meta.IsDefined("etcd", "prefix") {
		cfg.Etcd.Prefix = strings.TrimSpace(raw.Etcd.Prefix)
	}
	if meta.IsDefined("etcd", "lease_ttl") {
		cfg.Etcd.LeaseTTL = raw.Etcd.LeaseTTL
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = raw.Log.Level
	}
	if meta.IsDefined("log", "development") {
		cfg.Log.Development = raw.Log.Development
	}

	m := &cfg.Motion
	if meta.IsDefined("motion", "speed") {
		m.Speed = raw.Motion.Speed
	}
	if meta.IsDefined("motion", "turn_rate") {
		m.TurnRate = raw.Motion.TurnRate
	}
	if meta.IsDefined("motion", "angle_tolerance") {
		m.AngleTolerance = raw.Motion.AngleTolerance
	}
	if meta.IsDefined("motion", "start") {
		c, err := motion.ParseCoordinate(strings.TrimSpace(raw.Motion.Start))
		if err != nil {
			return fmt.Errorf("parse motion.start: %w", err)
		}
		m.Start = c
	}
	return nil
}

func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvID)); v != "" {
		cfg.ID = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvHTTPAddr)); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvEtcdEndpoints)); v != "" {
		cfg.Etcd.Endpoints = normalizeList(strings.Split(v, ","))
	}
	logging.ApplyEnv(&cfg.Log)
}

func (c Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalid)
	}
	if strings.ContainsAny(c.ID, ";:/") {
		return fmt.Errorf("%w: id %q contains a reserved character", ErrInvalid, c.ID)
	}
	if c.Role != "agent" && c.Role != "operator" {
		return fmt.Errorf("%w: role %q", ErrInvalid, c.Role)
	}
	p := c.Protocol
	for name, v := range map[string]int{
		"liveness_timeout_ticks": p.LivenessTimeoutTicks,
		"rollcall_hop_bound":     p.RollCallHopBound,
		"stop_hop_bound":         p.StopHopBound,
		"stop_hold_ticks":        p.StopHoldTicks,
		"rollcall_settle_ticks":  p.RollCallSettleTicks,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: protocol.%s must be positive, got %d", ErrInvalid, name, v)
		}
	}
	if p.HandoffHopBound < 0 || p.HeartbeatTicks < 0 {
		return fmt.Errorf("%w: protocol bounds must not be negative", ErrInvalid)
	}
	if p.TargetTolerance <= 0 {
		return fmt.Errorf("%w: protocol.target_tolerance must be positive", ErrInvalid)
	}
	if p.Tick <= 0 {
		return fmt.Errorf("%w: protocol.tick must be positive", ErrInvalid)
	}
	if c.Transport.Port <= 0 || c.Transport.Port > 65535 {
		return fmt.Errorf("%w: transport.port %d", ErrInvalid, c.Transport.Port)
	}
	if c.Transport.MaxDatagram <= 0 || c.Transport.Buffer <= 0 {
		return fmt.Errorf("%w: transport sizes must be positive", ErrInvalid)
	}
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}
	return nil
}

// AgentParams converts the protocol section for the engine.
func (c Config) AgentParams() agent.Params {
	p := c.Protocol
	return agent.Params{
		LivenessTimeout:     p.LivenessTimeoutTicks,
		RollCallHopBound:    p.RollCallHopBound,
		StopHopBound:        p.StopHopBound,
		HandoffHopBound:     p.HandoffHopBound,
		HeartbeatTicks:      p.HeartbeatTicks,
		StopHoldTicks:       p.StopHoldTicks,
		RollCallSettleTicks: p.RollCallSettleTicks,
		TargetTolerance:     p.TargetTolerance,
	}
}

func (c Config) UDP() gossip.UDPConfig {
	return gossip.UDPConfig{
		Group:       c.Transport.Group,
		Port:        c.Transport.Port,
		MaxDatagram: c.Transport.MaxDatagram,
		Buffer:      c.Transport.Buffer,
	}
}

func (c Config) Kinematic() motion.KinematicConfig {
	return motion.KinematicConfig{
		Speed:            c.Motion.Speed,
		TurnRate:         c.Motion.TurnRate,
		AngleTolerance:   c.Motion.AngleTolerance,
		ArrivalTolerance: c.Protocol.TargetTolerance,
	}
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
