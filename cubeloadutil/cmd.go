/*
Copyright © 2018 the InMAP authors.
This file is part of cubeload.

cubeload is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

cubeload is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with cubeload.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package cubeloadutil provides the cubeload command-line interface.
package cubeloadutil

import (
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/cubeload"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to cubeload.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "loglevel",
			usage: `
              loglevel specifies the minimum level of the log messages
              to print: debug, info, warning or error.`,
			defaultVal: "warning",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "retries",
			usage: `
              retries specifies the number of times a failed download of a
              remote (http, https, gs, s3 or file URL) input is retried.`,
			defaultVal: 3,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "name",
			usage: `
              name selects the cube whose standard name, long name or
              variable name is equal to the given value.`,
			shorthand:  "n",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{infoCmd.Flags(), reorderCmd.Flags()},
		},
		{
			name: "pattern",
			usage: `
              pattern selects the cube with a standard name, long name or
              variable name that matches the given regular expression.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{infoCmd.Flags(), reorderCmd.Flags()},
		},
		{
			name: "attribute",
			usage: `
              attribute selects cubes that have attributes with the given
              values, in the format name=value.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{infoCmd.Flags(), reorderCmd.Flags()},
		},
		{
			name: "expression",
			usage: `
              expression selects cubes for which the given boolean expression
              is true, for example "units == 'K' && 'realization' IN coords".
              The expression can refer to name, var_name, standard_name,
              long_name, units, ndim, coords, and to any scalar attribute.`,
			shorthand:  "e",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{infoCmd.Flags(), reorderCmd.Flags()},
		},
		{
			name: "coordrange",
			usage: `
              coordrange keeps only the points of a dimension coordinate within
              a range, in the format coord:min:max. It can be given more
              than once. Cubes without points in the range are not selected.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{infoCmd.Flags(), reorderCmd.Flags()},
		},
		{
			name: "dump",
			usage: `
              dump specifies whether to print all of the metadata of
              each cube.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{infoCmd.Flags()},
		},
		{
			name: "output",
			usage: `
              output specifies the path of the NetCDF file to write the
              reordered cube to.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{reorderCmd.Flags()},
		},
	}

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			default:
				panic("invalid argument type")
			}
		}
	}
	Cfg = newConfig()
}

// newConfig returns a configuration bound to the command-line flags
// and to environment variables.
func newConfig() *viper.Viper {
	cfg := viper.New()

	// Set the prefix for configuration environment variables.
	cfg.SetEnvPrefix("CUBELOAD")
	cfg.AutomaticEnv()

	for _, option := range options {
		cfg.BindPFlag(option.name, option.flagsets[0].Lookup(option.name))
	}
	return cfg
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(infoCmd)
	Root.AddCommand(reorderCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("cubeload: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "cubeload",
	Short: "Load gridded data into canonically ordered cubes.",
	Long: `cubeload loads gridded atmospheric data from NetCDF files into labeled
N-dimensional arrays and puts their dimensions into a canonical order:
realization, percentile and probability dimensions first, then any other
dimensions, then the y and x dimensions. Use the subcommands specified below
to inspect or rewrite files.

Input paths can be local files or http, https, gs, s3, or file URLs.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'CUBELOAD_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of cubeload.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("cubeload v%s\n", cubeload.Version)
	},
	DisableAutoGenTag: true,
}

var infoCmd = &cobra.Command{
	Use:   "info path [path...]",
	Short: "Describe the cubes in files.",
	Long: `info loads one cube from each of the given files and prints its name,
units, and dimensions in canonical order, with their lengths, axes, and
coordinate ranges. A single path is treated as a glob pattern; more than
one path is treated as a list of files. Files without a cube matching the
constraint options are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := newLoader(Cfg)
		if err != nil {
			return err
		}
		c, err := constraintFromConfig(Cfg)
		if err != nil {
			return err
		}
		cubes, err := loader.LoadMany(pathSet(args), c)
		if err != nil {
			return err
		}
		return describeCubes(cmd.OutOrStdout(), cubes, Cfg.GetBool("dump"))
	},
	DisableAutoGenTag: true,
}

var reorderCmd = &cobra.Command{
	Use:   "reorder path",
	Short: "Write a cube in canonical order.",
	Long: `reorder loads the single cube in the given file that matches the
constraint options and writes it, with its dimensions in canonical order,
to the NetCDF file specified by --output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output := os.ExpandEnv(Cfg.GetString("output"))
		if output == "" {
			return fmt.Errorf("cubeload: output file must be specified")
		}
		loader, err := newLoader(Cfg)
		if err != nil {
			return err
		}
		c, err := constraintFromConfig(Cfg)
		if err != nil {
			return err
		}
		cube, err := loader.Load(os.ExpandEnv(args[0]), c)
		if err != nil {
			return err
		}
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("cubeload: creating output file: %v", err)
		}
		if err := cubeload.WriteNetCDF(f, cube); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		cmd.Printf("wrote %s with dimensions %v to %s\n", cube.Name(), cube.DimNames(), output)
		return nil
	},
	DisableAutoGenTag: true,
}
