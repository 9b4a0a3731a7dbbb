package root

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zainarain279/Dropee/internal/ui"
)

const Version = "0.3.0"

var envFile string

var rootCmd = &cobra.Command{
	Use:           "dropee",
	Short:         "Multi-account Dropee automation",
	Long:          "Runs every account in data.txt through the game API in bounded batches, forever or once.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file to load before reading the environment")

	rootCmd.AddCommand(
		newRunCmd(),
		newTokensCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Bad.Render("error: "+err.Error()))
		os.Exit(1)
	}
}
