package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/pagefeed/internal/eligibility"
	"github.com/starford/pagefeed/internal/feed"
	"github.com/starford/pagefeed/internal/ledger"
	"github.com/starford/pagefeed/internal/models"
	"github.com/starford/pagefeed/internal/publish"
	"github.com/starford/pagefeed/internal/source/notion"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Source kinds.
const (
	SourceNotion = "notion"
	SourceVault  = "vault"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Source      SourceConfig      `yaml:"source"`
	Channel     ChannelConfig     `yaml:"channel"`
	Eligibility EligibilityConfig `yaml:"eligibility"`
	Publish     PublishConfig     `yaml:"publish"`
	Output      OutputConfig      `yaml:"output"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Auth        AuthConfig        `yaml:"auth"`
	Serve       ServeConfig       `yaml:"serve"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"app", &c.App},
		{"source", &c.Source},
		{"channel", &c.Channel},
		{"eligibility", &c.Eligibility},
		{"publish", &c.Publish},
		{"output", &c.Output},
		{"ledger", &c.Ledger},
		{"auth", &c.Auth},
		{"serve", &c.Serve},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	if c.Serve.Watch && c.Source.Kind != SourceVault {
		return errors.New("serve: watch requires source kind vault")
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SourceConfig selects the content source.
type SourceConfig struct {
	Kind   string       `yaml:"kind"`
	Notion NotionConfig `yaml:"notion"`
	Vault  VaultConfig  `yaml:"vault"`
}

// Validate validates the source configuration. Only the selected
// source's section is checked.
func (c *SourceConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Kind, validation.Required, validation.In(SourceNotion, SourceVault)),
	); err != nil {
		return err
	}
	if c.Kind == SourceNotion {
		return c.Notion.Validate()
	}
	return c.Vault.Validate()
}

// NotionConfig holds Notion API settings. Token and DatabaseID are
// normally injected from the environment via ${NOTION_TOKEN} style
// expansion.
type NotionConfig struct {
	Token          string           `yaml:"token"`
	DatabaseID     string           `yaml:"database_id"`
	BaseURL        string           `yaml:"base_url"`
	Version        string           `yaml:"version"`
	PageSize       int              `yaml:"page_size"`
	Properties     PropertiesConfig `yaml:"properties"`
	StatusType     string           `yaml:"status_type"`
	PublishedValue string           `yaml:"published_value"`
}

// PropertiesConfig names the database columns.
type PropertiesConfig struct {
	Title       string `yaml:"title"`
	URL         string `yaml:"url"`
	Status      string `yaml:"status"`
	PublishDate string `yaml:"publish_date"`
	Type        string `yaml:"type"`
}

// Validate validates the Notion configuration.
func (c *NotionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Token, validation.Required.Error("is required (set NOTION_TOKEN)")),
		validation.Field(&c.DatabaseID, validation.Required.Error("is required (set DATABASE_ID)")),
		validation.Field(&c.BaseURL, is.URL),
		validation.Field(&c.PageSize, validation.Min(0), validation.Max(100)),
		validation.Field(&c.StatusType, validation.In("select", "status")),
	)
}

// ClientConfig converts to the Notion client's settings. Empty property
// names keep the client defaults.
func (c *NotionConfig) ClientConfig() notion.Config {
	props := notion.DefaultProperties()
	setIf(&props.Title, c.Properties.Title)
	setIf(&props.URL, c.Properties.URL)
	setIf(&props.Status, c.Properties.Status)
	setIf(&props.PublishDate, c.Properties.PublishDate)
	setIf(&props.Type, c.Properties.Type)
	return notion.Config{
		Token:          c.Token,
		DatabaseID:     c.DatabaseID,
		BaseURL:        c.BaseURL,
		Version:        c.Version,
		PageSize:       c.PageSize,
		Properties:     props,
		StatusType:     c.StatusType,
		PublishedValue: c.PublishedValue,
	}
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// VaultConfig holds the path to the Markdown page directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ChannelConfig holds the feed channel metadata.
type ChannelConfig struct {
	Title            string `yaml:"title"`
	Link             string `yaml:"link"`
	Description      string `yaml:"description"`
	Language         string `yaml:"language"`
	FallbackLinkBase string `yaml:"fallback_link_base"`
}

// Validate validates the channel configuration.
func (c *ChannelConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Title, validation.Required),
		validation.Field(&c.Link, validation.Required, is.URL),
		validation.Field(&c.FallbackLinkBase, is.URL),
	)
}

// Meta returns the channel as a feed model.
func (c *ChannelConfig) Meta() models.ChannelMeta {
	return models.ChannelMeta{
		Title:       c.Title,
		Link:        c.Link,
		Description: c.Description,
		Language:    c.Language,
	}
}

// EligibilityConfig selects which entries a run picks up.
type EligibilityConfig struct {
	Mode     string `yaml:"mode"`
	Timezone string `yaml:"timezone"`
}

// Validate validates the eligibility configuration.
func (c *EligibilityConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.In(string(eligibility.ModeStatus), string(eligibility.ModeDate))),
		validation.Field(&c.Timezone, validation.By(func(any) error {
			_, err := c.Location()
			return err
		})),
	)
}

// Location resolves Timezone. Empty means the process's local zone.
func (c *EligibilityConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// PublishConfig controls when entries are marked published.
type PublishConfig struct {
	CommitMode string `yaml:"commit_mode"`
}

// Validate validates the publish configuration.
func (c *PublishConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CommitMode, validation.In(string(publish.CommitImmediate), string(publish.CommitDeferred))),
	)
}

// OutputConfig locates the generated feed file.
type OutputConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Format, validation.In(string(feed.FormatRSS), string(feed.FormatAtom))),
	)
}

// FeedFormat returns the configured format, RSS when unset.
func (c *OutputConfig) FeedFormat() feed.Format {
	if c.Format == "" {
		return feed.FormatRSS
	}
	return feed.Format(c.Format)
}

// LedgerConfig holds the run ledger database settings. An empty DSN
// disables the ledger.
type LedgerConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Validate validates the ledger configuration.
func (c *LedgerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver,
			validation.When(c.DSN != "", validation.Required),
			validation.In(ledger.DriverSQLite, ledger.DriverPostgres)),
	)
}

// Enabled reports whether a ledger is configured.
func (c *LedgerConfig) Enabled() bool {
	return c.DSN != ""
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// ServeConfig controls the automatic triggers of serve mode. A zero
// Interval disables the timer.
type ServeConfig struct {
	Interval time.Duration `yaml:"interval"`
	Watch    bool          `yaml:"watch"`
}

// Validate validates the serve configuration.
func (c *ServeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Source: SourceConfig{
			Kind: SourceNotion,
			Notion: NotionConfig{
				Version:        notion.DefaultVersion,
				PageSize:       notion.DefaultPageSize,
				StatusType:     "select",
				PublishedValue: "Published",
			},
			Vault: VaultConfig{
				Path: "./pages",
			},
		},
		Channel: ChannelConfig{
			Title:       "Daily Reading",
			Link:        "https://www.notion.so",
			Description: "Generated from Notion.",
			Language:    "en",
		},
		Eligibility: EligibilityConfig{
			Mode: string(eligibility.ModeStatus),
		},
		Publish: PublishConfig{
			CommitMode: string(publish.CommitImmediate),
		},
		Output: OutputConfig{
			Path:   "docs/rss.xml",
			Format: string(feed.FormatRSS),
		},
		Ledger: LedgerConfig{
			Driver: ledger.DriverSQLite,
			DSN:    "./pagefeed.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
