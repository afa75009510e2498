// tensorplug-verify loads a filter module, validates its capability
// contract, and reports its discovery and ownership modes and shapes.
// The exit code signals contract validity, so it is usable from CI.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tensorplug/tensorplug/pkg/filter"
	"github.com/tensorplug/tensorplug/pkg/manifest"
	"github.com/tensorplug/tensorplug/pkg/tensor"
)

// Config holds the verifier configuration
type Config struct {
	ModulePath     string
	CustomProperty string
	InputShape     string
	CheckManifest  bool
	LogLevel       string
}

func main() {
	config := parseFlags()
	logger := setupLogger(config.LogLevel)

	if config.ModulePath == "" {
		logger.Error("A module path is required (-module)")
		flag.Usage()
		os.Exit(2)
	}

	if err := verify(config, logger); err != nil {
		logger.WithError(err).Error("Module verification failed")
		os.Exit(1)
	}
	logger.Info("Module verification passed")
}

func verify(config *Config, logger *logrus.Logger) error {
	if config.CheckManifest {
		if err := verifyManifest(config.ModulePath, logger); err != nil {
			return err
		}
	}

	props := &filter.Properties{
		ModulePath:     config.ModulePath,
		CustomProperty: config.CustomProperty,
	}
	h, err := filter.Open(props, filter.WithLogger(logger))
	if err != nil {
		return err
	}
	defer h.Close()

	logger.Infof("Discovery mode: %s", h.DiscoveryMode())
	logger.Infof("Ownership mode: %s", h.OwnershipMode())

	switch h.DiscoveryMode() {
	case filter.DiscoveryStatic:
		in, err := h.InputShape()
		if err != nil {
			return err
		}
		out, err := h.OutputShape()
		if err != nil {
			return err
		}
		logger.Infof("Declared input shape:  %s (%d bytes)", in, in.ByteSize())
		logger.Infof("Declared output shape: %s (%d bytes)", out, out.ByteSize())

	case filter.DiscoveryDynamic:
		if config.InputShape == "" {
			logger.Warn("Dynamic module; pass -input to exercise shape negotiation")
			return nil
		}
		in, err := parseShapes(config.InputShape)
		if err != nil {
			return fmt.Errorf("invalid -input: %w", err)
		}
		out, err := h.NegotiateOutput(in)
		if err != nil {
			return err
		}
		logger.Infof("Input shape:   %s (%d bytes)", in, in.ByteSize())
		logger.Infof("Derived output shape: %s (%d bytes)", out, out.ByteSize())
	}

	return nil
}

func verifyManifest(modulePath string, logger *logrus.Logger) error {
	m, err := manifest.LoadForModule(modulePath)
	if err != nil {
		return err
	}
	if m == nil {
		logger.Debug("No sidecar manifest found")
		return nil
	}

	if errs := manifest.Validate(m); len(errs) > 0 {
		for _, ve := range errs {
			logger.Errorf("Manifest field %s: %s", ve.Field, ve.Message)
		}
		return fmt.Errorf("manifest validation failed with %d errors", len(errs))
	}
	if !manifest.IsCompatibleAPIVersion(m.APIVersion, manifest.APIVersion) {
		return fmt.Errorf("incompatible API version: module declares %s, host is %s",
			m.APIVersion, manifest.APIVersion)
	}

	logger.Infof("Manifest: %s v%s (%s)", m.Name, m.Version, m.ID)
	return nil
}

// parseShapes parses a comma-separated list of shapes, e.g.
// "uint8[3:640:480:1]" or "uint8[3:640:480:1],float32[10]".
func parseShapes(s string) (tensor.TensorsInfo, error) {
	var info tensor.TensorsInfo
	for _, part := range strings.Split(s, ",") {
		shape, err := tensor.ParseShape(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		info = append(info, shape)
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return info, nil
}

func parseFlags() *Config {
	config := &Config{}

	flag.StringVar(&config.ModulePath, "module", "", "Path of the filter module (.so) to verify")
	flag.StringVar(&config.CustomProperty, "custom", "", "Opaque custom property passed to the module")
	flag.StringVar(&config.InputShape, "input", "", "Input shape for dynamic modules, e.g. uint8[3:640:480:1]")
	flag.BoolVar(&config.CheckManifest, "manifest", true, "Validate the sidecar manifest if present")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	flag.Parse()

	return config
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}
