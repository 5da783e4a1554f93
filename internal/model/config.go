package model

import (
	"fmt"
	"time"
)

// Config is the complete iwacpipe configuration
type Config struct {
	API          APIConfig          `yaml:"api" mapstructure:"api"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Categories   CategoriesConfig   `yaml:"categories" mapstructure:"categories"`
	Countries    []CountryConfig    `yaml:"countries" mapstructure:"countries"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// APIConfig points at the Omeka S API. Key and Identity are normally
// supplied through OMEKA_API_KEY / OMEKA_API_IDENTITY.
type APIConfig struct {
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Key      string `yaml:"key" mapstructure:"key"`
	Identity string `yaml:"identity" mapstructure:"identity"`
}

type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"` // per request
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
	HTTPProxy  string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy string        `yaml:"https_proxy" mapstructure:"https_proxy"`
}

type ConcurrencyConfig struct {
	ItemSetWorkers  int `yaml:"item_set_workers" mapstructure:"item_set_workers"`
	CategoryWorkers int `yaml:"category_workers" mapstructure:"category_workers"`
}

// RateLimitingConfig throttles page requests per host. Zero means unlimited.
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir      string        `yaml:"dir" mapstructure:"dir"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
	RedisURL string        `yaml:"redis_url" mapstructure:"redis_url"`
}

// CategoriesConfig names the item set holding each category's resources
type CategoriesConfig struct {
	Strict     bool             `yaml:"strict" mapstructure:"strict"`
	Partitions PartitionsConfig `yaml:"partitions" mapstructure:"partitions"`
}

type PartitionsConfig struct {
	Association string `yaml:"association" mapstructure:"association"`
	Location    string `yaml:"emplacement" mapstructure:"emplacement"`
	Event       string `yaml:"evenement" mapstructure:"evenement"`
	Subject     string `yaml:"sujet" mapstructure:"sujet"`
	Person      string `yaml:"individu" mapstructure:"individu"`
}

// ByCategory returns the partition id of every category
func (p PartitionsConfig) ByCategory() map[Category]string {
	return map[Category]string{
		CategoryAssociation: p.Association,
		CategoryLocation:    p.Location,
		CategoryEvent:       p.Event,
		CategorySubject:     p.Subject,
		CategoryPerson:      p.Person,
	}
}

// CountryConfig lists the item sets (newspapers) published in one country
type CountryConfig struct {
	Name     string   `yaml:"name" mapstructure:"name"`
	ItemSets []string `yaml:"item_sets" mapstructure:"item_sets"`
}

type OutputConfig struct {
	Path        string `yaml:"path" mapstructure:"path"`
	MetricsFile string `yaml:"metrics_file" mapstructure:"metrics_file"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Pretty bool   `yaml:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns the configuration for the IWAC collection
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "https://iwac.frederickmadore.com/api",
		},
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "iwacpipe/0.1 (+https://github.com/ppiankov/iwacpipe)",
		},
		Concurrency: ConcurrencyConfig{
			ItemSetWorkers:  5,
			CategoryWorkers: 5,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 0,
			BurstSize:         5,
		},
		Cache: CacheConfig{
			Enabled: false,
			Dir:     "~/.iwacpipe/cache",
			TTL:     24 * time.Hour,
		},
		Categories: CategoriesConfig{
			Partitions: PartitionsConfig{
				Association: "854",
				Location:    "268",
				Event:       "2",
				Subject:     "1",
				Person:      "266",
			},
		},
		Countries: []CountryConfig{
			{Name: "Bénin", ItemSets: []string{"2187", "2188", "2189"}},
			{Name: "Burkina Faso", ItemSets: []string{"2200", "2215", "2214", "2207", "2201"}},
			{Name: "Togo", ItemSets: []string{"5498", "5499"}},
		},
		Output: OutputConfig{
			Path: "preprocessed_data.json",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate reports configuration errors that would otherwise only show
// up as failed requests.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is empty")
	}
	if len(c.Countries) == 0 {
		return fmt.Errorf("no countries configured")
	}
	for i, country := range c.Countries {
		if country.Name == "" {
			return fmt.Errorf("countries[%d]: name is empty", i)
		}
		if len(country.ItemSets) == 0 {
			return fmt.Errorf("country %q has no item sets", country.Name)
		}
	}
	for category, id := range c.Categories.Partitions.ByCategory() {
		if id == "" {
			return fmt.Errorf("no partition configured for category %s", category)
		}
	}
	if c.Output.Path == "" {
		return fmt.Errorf("output.path is empty")
	}
	return nil
}
