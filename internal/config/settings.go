package config

import (
	"time"

	"github.com/spf13/viper"
)

// Settings is the typed view of the application configuration consumed by
// the store, gateway, and session constructors.
type Settings struct {
	DatabasePath    string
	InputField      string
	UID             string
	DefaultCurrency string
	Locale          string
	TimeZone        string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
}

// LoadSettings builds Settings from Viper (config file or GROFUNDS_ env
// vars), applying defaults for anything unset.
func LoadSettings() Settings {
	viper.SetDefault("database.path", "~/.local/share/grofunds/grofunds.db")
	viper.SetDefault("draft.input_field", "input")
	viper.SetDefault("draft.currency", "CAD")
	viper.SetDefault("draft.locale", "en-CA")
	viper.SetDefault("user.id", "local")
	viper.SetDefault("gateway.write_timeout", 15*time.Second)
	viper.SetDefault("gateway.read_timeout", 10*time.Second)

	return Settings{
		DatabasePath:    ExpandPath(viper.GetString("database.path")),
		InputField:      viper.GetString("draft.input_field"),
		UID:             viper.GetString("user.id"),
		DefaultCurrency: viper.GetString("draft.currency"),
		Locale:          viper.GetString("draft.locale"),
		TimeZone:        viper.GetString("draft.timezone"),
		WriteTimeout:    viper.GetDuration("gateway.write_timeout"),
		ReadTimeout:     viper.GetDuration("gateway.read_timeout"),
	}
}
