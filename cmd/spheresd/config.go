package main

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	spheresenv "github.com/ricmua/ros-spheres-environment"
	"github.com/ricmua/ros-spheres-environment/bus"
	"github.com/ricmua/ros-spheres-environment/msg"
)

// Config is the daemon runtime configuration, loaded from the environment.
type Config struct {
	ListenAddr      string        `env:"SPHERESD_LISTEN_ADDR" envDefault:":8787"`
	SpinInterval    time.Duration `env:"SPHERESD_SPIN_INTERVAL" envDefault:"10ms"`
	TopicConfigPath string        `env:"SPHERESD_TOPIC_CONFIG"`
	LogLevel        string        `env:"SPHERESD_LOG_LEVEL" envDefault:"info"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// topicFileConfig is the TOML layout of the per-topic override table.
//
//	[topics."cursor/position"]
//	schema = "point"
//	depth = 25
//	reliability = "reliable"
type topicFileConfig struct {
	Topics map[string]topicRecord `toml:"topics"`
}

type topicRecord struct {
	Schema      string `toml:"schema"`
	Depth       int    `toml:"depth"`
	Reliability string `toml:"reliability"`
}

// loadTopicOverrides reads the override table from a TOML file. Topics not
// listed keep the bridge defaults.
func loadTopicOverrides(path string) (spheresenv.TopicOverrides, error) {
	var raw topicFileConfig
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("load topic config: %w", err)
	}

	overrides := make(spheresenv.TopicOverrides, len(raw.Topics))
	for topic, record := range raw.Topics {
		params, err := record.params()
		if err != nil {
			return nil, fmt.Errorf("topic %q: %w", topic, err)
		}
		overrides[topic] = params
	}
	return overrides, nil
}

func (r topicRecord) params() (spheresenv.TopicParams, error) {
	var params spheresenv.TopicParams

	if r.Schema != "" {
		schema, ok := msg.SchemaByName(r.Schema)
		if !ok {
			return params, fmt.Errorf("unknown schema %q", r.Schema)
		}
		params.Schema = schema
	}

	if r.Depth != 0 || r.Reliability != "" {
		qos := bus.SystemDefault()
		if r.Depth > 0 {
			qos.Depth = r.Depth
		}
		switch r.Reliability {
		case "", "system_default":
		case "best_effort":
			qos.Reliability = bus.ReliabilityBestEffort
		case "reliable":
			qos.Reliability = bus.ReliabilityReliable
		default:
			return params, fmt.Errorf("unknown reliability %q", r.Reliability)
		}
		params.QoS = &qos
	}
	return params, nil
}
