package main

import (
	"os"
	"strings"

	defaults "github.com/mcuadros/go-defaults"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/fedora-infra/packagedb-sub000/engine/api"
	"github.com/fedora-infra/packagedb-sub000/sdk"
	pkgdblog "github.com/fedora-infra/packagedb-sub000/sdk/log"
)

// Configuration is the root configuration of the engine binary.
type Configuration struct {
	Log pkgdblog.Conf     `toml:"log" comment:"#####################\n Log Settings \n####################" json:"log"`
	API api.Configuration `toml:"api" comment:"#####################\n API Settings \n####################" json:"api"`
}

func configNew() Configuration {
	var conf Configuration
	defaults.SetDefaults(&conf)
	return conf
}

// configImport reads the toml configuration file and the PKGDB_ prefixed
// environment variables, on top of the compiled-in defaults.
func configImport(cfgFile string) Configuration {
	conf := configNew()

	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
			sdk.Exit("configuration file %s does not exist", cfgFile)
		}
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			sdk.Exit("unable to read configuration file %s: %v", cfgFile, err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("pkgdb")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := viper.Unmarshal(&conf); err != nil {
		sdk.Exit("unable to parse configuration: %v", err)
	}
	return conf
}

func configMarshal(conf Configuration) ([]byte, error) {
	return toml.Marshal(conf)
}
