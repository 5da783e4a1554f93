package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/iwacpipe/internal/logging"
)

// version is set at build time with -ldflags "-X ...cli.version=..."
var version = "v0.1.0"

var (
	cfgFile   string
	verbose   bool
	configErr error
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "iwacpipe",
	Short: "iwacpipe - IWAC newspaper subject extraction",
	Long: `iwacpipe downloads the newspaper items of the Islam West Africa
Collection (IWAC) from its Omeka S API and flattens them into one JSON
file with a row per subject mention.

Each row carries the subject, the article date, the newspaper, the
country the newspaper belongs to and the category of the subject
(Association, Emplacement, Évènement, Sujet or Individu).`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configErr != nil {
			return configErr
		}
		return setupLogging(viper.GetViper())
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("iwacpipe %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./iwacpipe.yaml, then $HOME/.iwacpipe/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty", false, "human-readable console logs instead of JSON")

	// Bind flags to viper
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("pretty"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig loads .env, then the config file and IWACPIPE_* variables
func initConfig() {
	// .env is optional; variables already set win
	_ = godotenv.Load()

	if err := readConfig(viper.GetViper(), cfgFile); err != nil {
		configErr = err
		return
	}

	if verbose && viper.ConfigFileUsed() != "" {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func setupLogging(v *viper.Viper) error {
	level := v.GetString("log.level")
	if verbose {
		level = "debug"
	}
	_, err := logging.Setup(logging.Config{
		Level:  level,
		Pretty: v.GetBool("log.pretty"),
		Output: os.Stderr,
	})
	return err
}
