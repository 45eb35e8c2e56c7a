// Package config loads dsprep settings from defaults, an optional YAML file
// and DSPREP_* environment variables, in that order of precedence.
package config

// Config is the complete dsprep configuration.
type Config struct {
	Log       LogConfig       `koanf:"log"`
	Normalize NormalizeConfig `koanf:"normalize"`
	Manifest  ManifestConfig  `koanf:"manifest"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Upload    UploadConfig    `koanf:"upload"`
}

// LogConfig configures internal/logging.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled off"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// NormalizeConfig is the normalizer's parameter surface.
type NormalizeConfig struct {
	InputDir   string   `koanf:"input_dir"`
	OutputDir  string   `koanf:"output_dir"`
	Width      int      `koanf:"width" validate:"min=1,max=16384"`
	Height     int      `koanf:"height" validate:"min=1,max=16384"`
	Prefix     string   `koanf:"prefix" validate:"excludesall=/\\"`
	Background string   `koanf:"background"`
	Workers    int      `koanf:"workers" validate:"min=1,max=256"`
	OnError    string   `koanf:"on_error" validate:"oneof=abort skip"`
	MaxErrors  int      `koanf:"max_errors" validate:"min=0"`
	Exclude    []string `koanf:"exclude"`
	Labels     string   `koanf:"labels"`
}

// ManifestConfig controls where run manifests are kept.
type ManifestConfig struct {
	Dir       string `koanf:"dir"`
	Retention int    `koanf:"retention" validate:"min=0"`
	Disabled  bool   `koanf:"disabled"`
}

// MetricsConfig controls the metrics textfile.
type MetricsConfig struct {
	File string `koanf:"file"`
}

// UploadConfig selects and configures the object store.
type UploadConfig struct {
	Provider  string      `koanf:"provider" validate:"oneof=azure s3"`
	Target    string      `koanf:"target"`
	Overwrite bool        `koanf:"overwrite"`
	Azure     AzureConfig `koanf:"azure"`
	S3        S3Config    `koanf:"s3"`
}

// AzureConfig holds Azure Blob storage credentials.
type AzureConfig struct {
	Account   string `koanf:"account"`
	Key       string `koanf:"key"`
	Container string `koanf:"container"`
}

// S3Config identifies the S3 bucket.
type S3Config struct {
	Bucket string `koanf:"bucket"`
	Region string `koanf:"region"`
}

func defaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Normalize: NormalizeConfig{
			InputDir:   "dataset",
			OutputDir:  "resized_dataset",
			Width:      128,
			Height:     128,
			Prefix:     "resized_",
			Background: "#ffffff",
			Workers:    1,
			OnError:    "abort",
		},
		Manifest: ManifestConfig{
			Dir:       "./data",
			Retention: 5,
		},
		Upload: UploadConfig{
			Provider:  "azure",
			Target:    "resized_dataset",
			Overwrite: true,
			Azure: AzureConfig{
				Container: "datasets",
			},
			S3: S3Config{
				Region: "us-west-1",
			},
		},
	}
}
