package cmd

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides: --tie-break becomes CASE_EVAL_TIE_BREAK.
const envPrefix = "CASE_EVAL"

// newViper returns a viper instance reading CASE_EVAL_* variables and, when path is
// set, the given config file.
func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		logrus.Debugf("Using config file %s", v.ConfigFileUsed())
	}
	return v, nil
}

// loadConfig fills every flag the user did not set on the command line from the
// environment or the config file. Command-line values always win.
func loadConfig(cmd *cobra.Command, path string) error {
	v, err := newViper(path)
	if err != nil {
		return err
	}
	return bindFlags(cmd.Flags(), v)
}

func bindFlags(flags *pflag.FlagSet, v *viper.Viper) error {
	var firstErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed || f.Name == "config" || !v.IsSet(f.Name) {
			return
		}
		val := v.Get(f.Name)
		if list, ok := val.([]any); ok {
			parts := make([]string, len(list))
			for i, item := range list {
				parts[i] = fmt.Sprint(item)
			}
			val = strings.Join(parts, ",")
		}
		if err := flags.Set(f.Name, fmt.Sprint(val)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("invalid value for --%s from %s_%s or config: %w",
				f.Name, envPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), err)
		}
	})
	return firstErr
}
