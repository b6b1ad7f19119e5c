package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const redactedValue = "[redacted]"

func newConfigCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg.redacted())
		},
	}
}

// redacted returns a copy safe to print.
func (c Config) redacted() Config {
	if c.Sentry.DSN != "" {
		c.Sentry.DSN = redactedValue
	}
	if c.Work.OAuth2.ClientSecret != "" {
		c.Work.OAuth2.ClientSecret = redactedValue
	}
	if c.Redis.URL != "" {
		c.Redis.URL = redactedValue
	}
	return c
}
