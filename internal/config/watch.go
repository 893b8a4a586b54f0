package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// ErrNoConfigFile is returned by Watch when there is no file to watch.
var ErrNoConfigFile = errors.New("no config file to watch")

// Watch reloads the configuration whenever the config file is written and
// passes each valid result to onChange. Invalid edits are logged and
// skipped. Events stop being delivered once ctx is done.
//
// Only settings that can change at runtime (logging.level) should be acted
// on by onChange; everything else takes effect on restart.
func Watch(ctx context.Context, configPath string, onChange func(*Config)) error {
	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return ErrNoConfigFile
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if ctx.Err() != nil {
			return
		}
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := decode(v)
		if err != nil {
			log.Warn().Err(err).Str("file", e.Name).Msg("ignoring invalid config change")
			return
		}

		log.Info().Str("file", e.Name).Msg("config reloaded")
		onChange(cfg)
	})
	v.WatchConfig()

	log.Debug().Str("file", v.ConfigFileUsed()).Msg("watching config file")
	return nil
}
