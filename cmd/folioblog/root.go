package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/eringen/folioblog"
)

var (
	cfgFile string
	envFile string
	debug   bool
	logJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "folioblog",
	Short: "A portfolio blog backed by Contentful",
	Long: `folioblog serves a blog whose articles, categories and tags live in a
Contentful space. Configuration comes from flags, FOLIO_* environment
variables, an optional .env file and an optional config file.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./folioblog.yaml if present)")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")
	pf.BoolVar(&logJSON, "log-json", false, "log as JSON")

	rootCmd.AddCommand(serveCmd, postsCmd, versionCmd)
}

// fileConfig mirrors folioblog.SiteConfig with config-file keys.
type fileConfig struct {
	Name            string        `mapstructure:"name"`
	URL             string        `mapstructure:"url"`
	Description     string        `mapstructure:"description"`
	Author          string        `mapstructure:"author"`
	Addr            string        `mapstructure:"addr"`
	DatabasePath    string        `mapstructure:"database_path"`
	SpaceID         string        `mapstructure:"space_id"`
	AccessToken     string        `mapstructure:"access_token"`
	PreviewToken    string        `mapstructure:"preview_token"`
	BaseURL         string        `mapstructure:"base_url"`
	PreviewURL      string        `mapstructure:"preview_url"`
	PreviewPassword string        `mapstructure:"preview_password"`
	SessionSecret   string        `mapstructure:"session_secret"`
	CookieSecure    bool          `mapstructure:"cookie_secure"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	ItemsPerPage    int           `mapstructure:"items_per_page"`
	FetchLimit      int           `mapstructure:"fetch_limit"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	Analytics       bool          `mapstructure:"analytics"`
}

func (f fileConfig) siteConfig() folioblog.SiteConfig {
	return folioblog.SiteConfig{
		Name:             f.Name,
		URL:              f.URL,
		Description:      f.Description,
		Author:           f.Author,
		Addr:             f.Addr,
		DatabasePath:     f.DatabasePath,
		SpaceID:          f.SpaceID,
		AccessToken:      f.AccessToken,
		PreviewToken:     f.PreviewToken,
		BaseURL:          f.BaseURL,
		PreviewURL:       f.PreviewURL,
		PreviewPassword:  f.PreviewPassword,
		SessionSecret:    f.SessionSecret,
		CookieSecure:     f.CookieSecure,
		PostCacheTTL:     f.CacheTTL,
		ItemsPerPage:     f.ItemsPerPage,
		FetchLimit:       f.FetchLimit,
		RequestTimeout:   f.RequestTimeout,
		AnalyticsEnabled: f.Analytics,
	}
}

// contentfulEnv lists the credential variable names used by existing
// Contentful front ends, accepted next to the FOLIO_* names.
var contentfulEnv = map[string][]string{
	"space_id":      {"CONTENTFUL_SPACE_ID", "VITE_CONTENTFUL_SPACE_ID"},
	"access_token":  {"CONTENTFUL_ACCESS_TOKEN", "VITE_CONTENTFUL_ACCESS_TOKEN"},
	"preview_token": {"CONTENTFUL_PREVIEW_TOKEN", "VITE_CONTENTFUL_PREVIEW_TOKEN"},
}

// loadConfig reads the dotenv file, the config file and the environment.
// Explicitly requested files must exist.
func loadConfig(cmd *cobra.Command) (folioblog.SiteConfig, error) {
	if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
		return folioblog.SiteConfig{}, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	v := viper.New()
	v.SetDefault("name", "Portfolio")
	v.SetDefault("url", "http://localhost:3000")
	v.SetDefault("description", "")
	v.SetDefault("author", "")
	v.SetDefault("addr", ":3000")
	v.SetDefault("database_path", "data/folio.db")
	v.SetDefault("base_url", "")
	v.SetDefault("preview_url", "")
	v.SetDefault("preview_password", "")
	v.SetDefault("session_secret", "")
	v.SetDefault("cookie_secure", false)
	v.SetDefault("cache_ttl", "5m")
	v.SetDefault("items_per_page", 9)
	v.SetDefault("fetch_limit", 100)
	v.SetDefault("request_timeout", "15s")
	v.SetDefault("analytics", false)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("folioblog")
	}

	v.SetEnvPrefix("FOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, aliases := range contentfulEnv {
		names := append([]string{"FOLIO_" + strings.ToUpper(key)}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return folioblog.SiteConfig{}, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return folioblog.SiteConfig{}, fmt.Errorf("read config: %w", err)
		}
	}
	if err := bindFlags(cmd, v); err != nil {
		return folioblog.SiteConfig{}, err
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return folioblog.SiteConfig{}, fmt.Errorf("decode config: %w", err)
	}
	return fc.siteConfig(), nil
}

// bindFlags lets command flags override file and environment values. Flag
// names use dashes where config keys use underscores; a flag's default must
// match the config default since viper prefers it.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if !v.IsSet(key) {
			return
		}
		if bErr := v.BindPFlag(key, f); bErr != nil && err == nil {
			err = bErr
		}
	})
	return err
}

func newLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
	}
	if logJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the folioblog version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "folioblog %s\n", version)
	},
}
