// Package config loads the operator JSON configuration shared by every
// command. Values come from a JSON file and may be overridden by
// CVAT_OPS_-prefixed environment variables (e.g. CVAT_OPS_CVAT_URL).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/jsonutil"
)

// DefaultPath is the configuration file read when --config is not given.
const DefaultPath = "config.json"

// envPrefix namespaces environment overrides.
const envPrefix = "CVAT_OPS"

// Snapshot backends.
const (
	SnapshotBackendFile   = "file"
	SnapshotBackendDynamo = "dynamodb"
)

// Config is the decoded configuration file.
type Config struct {
	CVAT              CVATConfig         `mapstructure:"cvat"`
	Organization      OrgConfig          `mapstructure:"organization"`
	S3                S3Config           `mapstructure:"s3"`
	CloudStorage      CloudStorageConfig `mapstructure:"cloud_storage"`
	Files             FilesConfig        `mapstructure:"files"`
	Task              TaskConfig         `mapstructure:"task"`
	Labels            []Label            `mapstructure:"labels"`
	LabelMap          map[string]string  `mapstructure:"label_map"`
	Assignees         []Assignee         `mapstructure:"assignees"`
	ExcludedTasks     []int              `mapstructure:"excluded_tasks"`
	UseJobFileMapping bool               `mapstructure:"use_job_file_mapping"`
	Output            OutputConfig       `mapstructure:"output"`
	Snapshot          SnapshotConfig     `mapstructure:"snapshot"`
	Reconcile         ReconcileConfig    `mapstructure:"reconcile"`
	Reassign          ReassignConfig     `mapstructure:"reassign"`
	Workers           int                `mapstructure:"workers"`
	Import            ImportConfig       `mapstructure:"import"`

	path string
	v    *viper.Viper
}

// CVATConfig addresses the annotation platform.
type CVATConfig struct {
	URL            string `mapstructure:"url"`
	APIKey         string `mapstructure:"api_key"`
	APIKeySSMParam string `mapstructure:"api_key_ssm_param"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Retries        int    `mapstructure:"retries"`
}

type OrgConfig struct {
	Slug string `mapstructure:"slug"`
}

// S3Config addresses the object store. AccountID selects a Cloudflare R2
// endpoint; EndpointURL overrides it for any other S3-compatible service.
type S3Config struct {
	BucketName         string `mapstructure:"bucket_name"`
	Prefix             string `mapstructure:"prefix"`
	Region             string `mapstructure:"region"`
	AccountID          string `mapstructure:"account_id"`
	AWSAccessKeyID     string `mapstructure:"aws_access_key_id"`
	AWSSecretAccessKey string `mapstructure:"aws_secret_access_key"`
	EndpointURL        string `mapstructure:"endpoint_url"`
}

// CloudStorageConfig identifies the bucket as registered on the platform.
type CloudStorageConfig struct {
	ID   int    `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

type FilesConfig struct {
	HumanSignalJSON string `mapstructure:"humansignal_json"`
}

type TaskConfig struct {
	Name string `mapstructure:"name"`
}

// Label is a platform label definition used when creating tasks.
type Label struct {
	Name  string `mapstructure:"name" json:"name"`
	Color string `mapstructure:"color" json:"color,omitempty"`
}

// Assignee is an annotator that new jobs are distributed to.
type Assignee struct {
	ID   int    `mapstructure:"id" json:"id"`
	Name string `mapstructure:"name" json:"name"`
}

type OutputConfig struct {
	LogDir    string `mapstructure:"log_dir"`
	ReportDir string `mapstructure:"report_dir"`
}

type SnapshotConfig struct {
	Backend string `mapstructure:"backend"`
	Table   string `mapstructure:"table"`
}

type ReconcileConfig struct {
	Propagation string `mapstructure:"propagation"`
}

type ReassignConfig struct {
	Policy string `mapstructure:"policy"`
}

type ImportConfig struct {
	PollIntervalSeconds int     `mapstructure:"poll_interval_seconds"`
	TimeoutSeconds      int     `mapstructure:"timeout_seconds"`
	CompletionRatio     float64 `mapstructure:"completion_ratio"`
}

// DefaultLabels are created on new tasks when the file defines none.
var DefaultLabels = []Label{
	{Name: "Left hand", Color: "#ff00ff"},
	{Name: "Right hand", Color: "#ff00ff"},
	{Name: "Partial left hand", Color: "#ff00ff"},
	{Name: "Partial right hand", Color: "#ff00ff"},
}

// DefaultLabelMap translates pre-annotation category names to platform labels.
var DefaultLabelMap = map[string]string{
	"left_hand":          "Left hand",
	"right_hand":         "Right hand",
	"partial_left_hand":  "Partial left hand",
	"partial_right_hand": "Partial right hand",
}

// DefaultExcludedTasks are skipped by every reporting command.
var DefaultExcludedTasks = []int{1967925}

// Error reports a missing or malformed configuration file or key.
type Error struct {
	Path string
	Key  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Key != "" && e.Err != nil:
		return fmt.Sprintf("config %s: key %q: %v", e.Path, e.Key, e.Err)
	case e.Key != "":
		return fmt.Sprintf("config %s: missing required key %q", e.Path, e.Key)
	case e.Err != nil:
		return fmt.Sprintf("config %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("config %s: invalid", e.Path)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrNotFound is wrapped by Load when the file does not exist.
var ErrNotFound = errors.New("file not found")

func setDefaults(v *viper.Viper) {
	v.SetDefault("cvat.url", "https://app.cvat.ai")
	v.SetDefault("cvat.api_key", "")
	v.SetDefault("cvat.api_key_ssm_param", "")
	v.SetDefault("cvat.timeout_seconds", 30)
	v.SetDefault("cvat.retries", 3)
	v.SetDefault("organization.slug", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.prefix", "")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.account_id", "")
	v.SetDefault("s3.aws_access_key_id", "")
	v.SetDefault("s3.aws_secret_access_key", "")
	v.SetDefault("s3.endpoint_url", "")
	v.SetDefault("cloud_storage.id", 0)
	v.SetDefault("cloud_storage.name", "")
	v.SetDefault("files.humansignal_json", "")
	v.SetDefault("task.name", "")
	v.SetDefault("excluded_tasks", DefaultExcludedTasks)
	v.SetDefault("use_job_file_mapping", true)
	v.SetDefault("output.log_dir", "logs")
	v.SetDefault("output.report_dir", "reports")
	v.SetDefault("snapshot.backend", SnapshotBackendFile)
	v.SetDefault("snapshot.table", "")
	v.SetDefault("reconcile.propagation", "any")
	v.SetDefault("reassign.policy", "jobs")
	v.SetDefault("workers", 10)
	v.SetDefault("import.poll_interval_seconds", 30)
	v.SetDefault("import.timeout_seconds", 3600)
	v.SetDefault("import.completion_ratio", 0.95)
}

// Load reads the JSON configuration at path. A missing file is a fatal
// configuration error for every command.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &Error{Path: path, Err: ErrNotFound}
		}
		return nil, &Error{Path: path, Err: err}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, &Error{Path: path, Err: fmt.Errorf("read: %w", err)}
	}

	cfg := &Config{path: path, v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &Error{Path: path, Err: fmt.Errorf("decode: %w", err)}
	}
	// viper folds map keys to lower case; category names are case-sensitive.
	raw, err := jsonutil.ReadFile[struct {
		LabelMap map[string]string `json:"label_map"`
	}](path)
	if err != nil {
		return nil, &Error{Path: path, Key: "label_map", Err: err}
	}
	cfg.LabelMap = raw.LabelMap
	if len(cfg.Labels) == 0 {
		cfg.Labels = append([]Label(nil), DefaultLabels...)
	}
	if len(cfg.LabelMap) == 0 {
		cfg.LabelMap = make(map[string]string, len(DefaultLabelMap))
		for k, val := range DefaultLabelMap {
			cfg.LabelMap[k] = val
		}
	}
	cfg.CVAT.URL = strings.TrimRight(cfg.CVAT.URL, "/")

	if err := cfg.check(); err != nil {
		return nil, err
	}

	log.Debug().Str("path", path).Str("url", cfg.CVAT.URL).Msg("Configuration loaded")
	return cfg, nil
}

// check rejects enumerated values outside their allowed set.
func (c *Config) check() error {
	switch c.Snapshot.Backend {
	case SnapshotBackendFile, SnapshotBackendDynamo:
	default:
		return &Error{Path: c.path, Key: "snapshot.backend", Err: fmt.Errorf("unsupported backend %q", c.Snapshot.Backend)}
	}
	switch c.Reconcile.Propagation {
	case "any", "complete":
	default:
		return &Error{Path: c.path, Key: "reconcile.propagation", Err: fmt.Errorf("unsupported mode %q", c.Reconcile.Propagation)}
	}
	switch c.Reassign.Policy {
	case "jobs", "frames":
	default:
		return &Error{Path: c.path, Key: "reassign.policy", Err: fmt.Errorf("unsupported policy %q", c.Reassign.Policy)}
	}
	if c.Workers <= 0 {
		return &Error{Path: c.path, Key: "workers", Err: fmt.Errorf("must be positive, got %d", c.Workers)}
	}
	if c.Import.CompletionRatio <= 0 || c.Import.CompletionRatio > 1 {
		return &Error{Path: c.path, Key: "import.completion_ratio", Err: fmt.Errorf("must be in (0, 1], got %v", c.Import.CompletionRatio)}
	}
	return nil
}

// Validate returns a *Error naming the first required key that is unset or
// empty. Each command declares the keys it depends on.
func (c *Config) Validate(required ...string) error {
	for _, key := range required {
		if !c.v.IsSet(key) {
			return &Error{Path: c.path, Key: key}
		}
		val := c.v.Get(key)
		switch t := val.(type) {
		case nil:
			return &Error{Path: c.path, Key: key}
		case string:
			if strings.TrimSpace(t) == "" {
				return &Error{Path: c.path, Key: key}
			}
		case int:
			if t == 0 {
				return &Error{Path: c.path, Key: key}
			}
		case float64:
			if t == 0 {
				return &Error{Path: c.path, Key: key}
			}
		case []interface{}:
			if len(t) == 0 {
				return &Error{Path: c.path, Key: key}
			}
		}
	}
	return nil
}

// Path returns the file the configuration was read from.
func (c *Config) Path() string {
	return c.path
}

// S3Enabled reports whether an object store is configured.
func (c *Config) S3Enabled() bool {
	return c.S3.BucketName != ""
}

// Timeout is the default per-request platform timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.CVAT.TimeoutSeconds) * time.Second
}

// PollInterval and ImportTimeout bound the import wait loops.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Import.PollIntervalSeconds) * time.Second
}

func (c *Config) ImportTimeout() time.Duration {
	return time.Duration(c.Import.TimeoutSeconds) * time.Second
}

// SaveAssignees replaces the assignees key of the configuration file. The
// rest of the file is written back as read; defaults and environment
// overrides never reach disk.
func (c *Config) SaveAssignees(assignees []Assignee) error {
	doc, err := jsonutil.ReadFile[map[string]json.RawMessage](c.path)
	if err != nil {
		return &Error{Path: c.path, Key: "assignees", Err: err}
	}
	if doc == nil {
		doc = make(map[string]json.RawMessage)
	}
	if assignees == nil {
		assignees = []Assignee{}
	}
	list, err := json.Marshal(assignees)
	if err != nil {
		return &Error{Path: c.path, Key: "assignees", Err: err}
	}
	doc["assignees"] = list
	if err := jsonutil.WriteFile(c.path, doc); err != nil {
		return &Error{Path: c.path, Key: "assignees", Err: fmt.Errorf("write: %w", err)}
	}
	c.v.Set("assignees", assignees)
	c.Assignees = assignees
	log.Info().Str("path", c.path).Int("count", len(assignees)).Msg("Assignees saved to configuration")
	return nil
}

// Setup defaults offered by the configuration wizard.
const (
	DefaultCloudStorageID   = 4837
	DefaultCloudStorageName = "Annotation"
	DefaultHumanSignalJSON  = "data/result.json"
	DefaultTaskName         = "Hand Detection - HumanSignal Import"
)

// Initial holds the answers of the configuration wizard.
type Initial struct {
	URL             string
	APIKey          string
	CloudStorageID  int
	HumanSignalJSON string
	TaskName        string
}

// WriteInitial creates a minimal configuration file at path. Everything
// not asked for is left to the defaults applied by Load.
func WriteInitial(path string, in Initial) error {
	if strings.TrimSpace(in.URL) == "" {
		return &Error{Path: path, Key: "cvat.url"}
	}
	doc := map[string]interface{}{
		"cvat": map[string]interface{}{
			"url":     strings.TrimRight(strings.TrimSpace(in.URL), "/"),
			"api_key": in.APIKey,
		},
		"cloud_storage": map[string]interface{}{
			"id":   in.CloudStorageID,
			"name": DefaultCloudStorageName,
		},
		"files": map[string]interface{}{"humansignal_json": in.HumanSignalJSON},
		"task":  map[string]interface{}{"name": in.TaskName},
	}
	if err := jsonutil.WriteFile(path, doc); err != nil {
		return &Error{Path: path, Err: fmt.Errorf("write: %w", err)}
	}
	log.Info().Str("path", path).Msg("Configuration written")
	return nil
}
