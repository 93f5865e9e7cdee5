package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type Settings struct {
	Host     string
	Port     int
	UseHTTPS bool
}

const (
	version = "0.1.0"
)

func buildCommandUsage(cmd Command) string {
	usage := cmd.Name
	for _, param := range cmd.Params {
		usage += fmt.Sprintf(" <%s>", param.Name)
	}
	return usage
}

func newRootCommand(settings *Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "world-cli",
		Short:   "worlddb CLI",
		Long:    `world-cli is a tool to interact with the worlddb server.`,
		Version: version,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) == 0 {
				interactiveMode(settings)
			} else {
				_ = cmd.Help()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&settings.Host, "host", "localhost", "Hostname for the server")
	rootCmd.PersistentFlags().IntVar(&settings.Port, "port", 4321, "Port for the server")
	rootCmd.PersistentFlags().BoolVar(&settings.UseHTTPS, "https", false, "Use HTTPS protocol")

	for _, cmd := range CommandsRegistry {
		command := cmd
		rootCmd.AddCommand(&cobra.Command{
			Use:   buildCommandUsage(command),
			Short: command.Description,
			Args:  cobra.ExactArgs(len(command.Params)),
			RunE: func(c *cobra.Command, args []string) error {
				return command.Handler(args, settings)
			},
		})
	}
	return rootCmd
}

func main() {
	settings := Settings{}
	if err := newRootCommand(&settings).Execute(); err != nil {
		_, _ = colorRed.Println(err)
		os.Exit(1)
	}
}
