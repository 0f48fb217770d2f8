// Copyright 2021 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/recsys/dataset"
	"github.com/gorse-io/recsys/model/cf"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration for the recommender.
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Train    TrainConfig    `mapstructure:"train"`
	Eval     EvalConfig     `mapstructure:"eval"`
	Artifact ArtifactConfig `mapstructure:"artifact"`
	Server   ServerConfig   `mapstructure:"server"`
}

// DataConfig is the configuration for the interaction source.
type DataConfig struct {
	Dir     string `mapstructure:"dir" validate:"required"`
	Dataset string `mapstructure:"dataset" validate:"required"`
	Weight  string `mapstructure:"weight" validate:"oneof=binary log raw"`
	Filter  string `mapstructure:"filter"`
}

// TrainConfig is the configuration for model fitting.
type TrainConfig struct {
	Factors        int     `mapstructure:"factors" validate:"gt=0"`
	Regularization float32 `mapstructure:"regularization" validate:"gte=0"`
	Iterations     int     `mapstructure:"iterations" validate:"gt=0"`
	Alpha          float32 `mapstructure:"alpha" validate:"gt=0"`
	InitStdDev     float32 `mapstructure:"init_std_dev" validate:"gte=0"`
	RandomState    int64   `mapstructure:"random_state"`
	Jobs           int     `mapstructure:"jobs" validate:"gt=0"`
	Verbose        int     `mapstructure:"verbose" validate:"gte=0"`
	CalculateLoss  bool    `mapstructure:"calculate_loss"`
	Trials         int     `mapstructure:"trials" validate:"gt=0"`
}

// EvalConfig is the configuration for offline evaluation.
type EvalConfig struct {
	TopK        int  `mapstructure:"top_k" validate:"gt=0"`
	Recalculate bool `mapstructure:"recalculate"`
	Jobs        int  `mapstructure:"jobs" validate:"gt=0"`
}

// ArtifactConfig is the configuration for the artifact bundle location.
type ArtifactConfig struct {
	Location string          `mapstructure:"location" validate:"required"`
	S3       S3Config        `mapstructure:"s3"`
	GCS      GCSConfig       `mapstructure:"gcs"`
	Azure    AzureBlobConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureBlobConfig struct {
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	Endpoint         string `mapstructure:"endpoint"`
	ConnectionString string `mapstructure:"connection_string"`
}

// ServerConfig is the configuration for the inference server.
type ServerConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
	DefaultN int           `mapstructure:"default_n" validate:"gt=0"`
}

func GetDefaultConfig() *Config {
	params := cf.NewParams()
	return &Config{
		Data: DataConfig{
			Dir:     "data",
			Dataset: "ml-100k",
			Weight:  string(dataset.WeightLog),
		},
		Train: TrainConfig{
			Factors:        params.Factors,
			Regularization: params.Regularization,
			Iterations:     params.Iterations,
			Alpha:          params.Alpha,
			InitStdDev:     params.InitStdDev,
			RandomState:    params.RandomState,
			Jobs:           1,
			Verbose:        10,
			Trials:         10,
		},
		Eval: EvalConfig{
			TopK:        10,
			Recalculate: true,
			Jobs:        1,
		},
		Artifact: ArtifactConfig{
			Location: "artifacts",
		},
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     8087,
			CacheTTL: time.Minute,
			DefaultN: 10,
		},
	}
}

// Params converts the train section into model hyper-parameters.
func (config *TrainConfig) Params() cf.Params {
	return cf.Params{
		Factors:        config.Factors,
		Regularization: config.Regularization,
		Iterations:     config.Iterations,
		Alpha:          config.Alpha,
		InitStdDev:     config.InitStdDev,
		RandomState:    config.RandomState,
	}
}

// FitConfig converts the train and eval sections into a fit configuration.
func (config *Config) FitConfig() *cf.FitConfig {
	return cf.NewFitConfig().
		SetJobs(config.Train.Jobs).
		SetVerbose(config.Train.Verbose).
		SetCalculateLoss(config.Train.CalculateLoss).
		SetEval(config.EvalConfig())
}

func (config *Config) EvalConfig() *cf.EvalConfig {
	return &cf.EvalConfig{
		TopK:        config.Eval.TopK,
		Recalculate: config.Eval.Recalculate,
		Jobs:        config.Eval.Jobs,
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validate checks every section against its constraints.
func (config *Config) Validate() error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := validate.Struct(config); err != nil {
		return errors.NewNotValid(err, "invalid config")
	}
	return nil
}

func setDefault() {
	defaultConfig := GetDefaultConfig()
	// [data]
	viper.SetDefault("data.dir", defaultConfig.Data.Dir)
	viper.SetDefault("data.dataset", defaultConfig.Data.Dataset)
	viper.SetDefault("data.weight", defaultConfig.Data.Weight)
	viper.SetDefault("data.filter", defaultConfig.Data.Filter)
	// [train]
	viper.SetDefault("train.factors", defaultConfig.Train.Factors)
	viper.SetDefault("train.regularization", defaultConfig.Train.Regularization)
	viper.SetDefault("train.iterations", defaultConfig.Train.Iterations)
	viper.SetDefault("train.alpha", defaultConfig.Train.Alpha)
	viper.SetDefault("train.init_std_dev", defaultConfig.Train.InitStdDev)
	viper.SetDefault("train.random_state", defaultConfig.Train.RandomState)
	viper.SetDefault("train.jobs", defaultConfig.Train.Jobs)
	viper.SetDefault("train.verbose", defaultConfig.Train.Verbose)
	viper.SetDefault("train.calculate_loss", defaultConfig.Train.CalculateLoss)
	viper.SetDefault("train.trials", defaultConfig.Train.Trials)
	// [eval]
	viper.SetDefault("eval.top_k", defaultConfig.Eval.TopK)
	viper.SetDefault("eval.recalculate", defaultConfig.Eval.Recalculate)
	viper.SetDefault("eval.jobs", defaultConfig.Eval.Jobs)
	// [artifact]
	viper.SetDefault("artifact.location", defaultConfig.Artifact.Location)
	// [server]
	viper.SetDefault("server.host", defaultConfig.Server.Host)
	viper.SetDefault("server.port", defaultConfig.Server.Port)
	viper.SetDefault("server.cache_ttl", defaultConfig.Server.CacheTTL)
	viper.SetDefault("server.default_n", defaultConfig.Server.DefaultN)
}

type configBinding struct {
	key string
	env string
}

var bindings = []configBinding{
	{"data.dir", "RECSYS_DATA_DIR"},
	{"data.dataset", "RECSYS_DATA_DATASET"},
	{"data.weight", "RECSYS_DATA_WEIGHT"},
	{"data.filter", "RECSYS_DATA_FILTER"},
	{"train.jobs", "RECSYS_TRAIN_JOBS"},
	{"train.random_state", "RECSYS_TRAIN_RANDOM_STATE"},
	{"eval.jobs", "RECSYS_EVAL_JOBS"},
	{"artifact.location", "RECSYS_ARTIFACT_LOCATION"},
	{"artifact.s3.endpoint", "S3_ENDPOINT"},
	{"artifact.s3.access_key_id", "S3_ACCESS_KEY_ID"},
	{"artifact.s3.secret_access_key", "S3_SECRET_ACCESS_KEY"},
	{"artifact.gcs.credentials_file", "GCS_CREDENTIALS_FILE"},
	{"artifact.azure.account_name", "AZURE_STORAGE_ACCOUNT"},
	{"artifact.azure.account_key", "AZURE_STORAGE_KEY"},
	{"artifact.azure.connection_string", "AZURE_STORAGE_CONNECTION_STRING"},
	{"server.host", "RECSYS_SERVER_HOST"},
	{"server.port", "RECSYS_SERVER_PORT"},
	{"server.cache_ttl", "RECSYS_SERVER_CACHE_TTL"},
}

// LoadConfig loads configuration from a TOML file. An empty path loads the defaults. Environment variables override
// values from the file.
func LoadConfig(path string) (*Config, error) {
	setDefault()
	for _, binding := range bindings {
		if err := viper.BindEnv(binding.key, binding.env); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if path != "" {
		viper.SetConfigType("toml")
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	var config Config
	if err := viper.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	config.Data.Weight = strings.ToLower(config.Data.Weight)
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &config, nil
}
