package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	colorRed        = color.New(color.FgRed)
	colorGreen      = color.New(color.FgGreen)
	colorCyanBold   = color.New(color.FgCyan, color.Bold)
	colorCyan       = color.New(color.FgCyan)
	colorYellowBold = color.New(color.FgYellow, color.Bold)
	colorYellow     = color.New(color.FgYellow)
)

func getHistoryFilePath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "world-cli", "history"), nil
}

func interactiveMode(settings *Settings) {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		fmt.Println("error: interactive mode must be run in a terminal")
		os.Exit(1)
	}

	historyPath, err := getHistoryFilePath()
	if err != nil {
		historyPath = ".world_history"
	} else if err = os.MkdirAll(filepath.Dir(historyPath), os.ModePerm); err != nil {
		fmt.Printf("Error creating history file directory: %v\n", err)
		os.Exit(1)
	}

	rl, err := setupReadline(settings, historyPath)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = rl.Close()
	}()

	handleUserInput(rl, settings)
}

func buildCompleter() *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("help"),
		readline.PcItem("exit"),
	}
	for _, cmd := range CommandsRegistry {
		items = append(items, readline.PcItem(cmd.Name))
	}
	return readline.NewPrefixCompleter(items...)
}

func setupReadline(settings *Settings, historyPath string) (*readline.Instance, error) {
	prompt := fmt.Sprintf("world %s:%d> ", settings.Host, settings.Port)

	return readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyPath,
		AutoComplete:    buildCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
}

func printHelp(out io.Writer) {
	_, _ = colorYellowBold.Fprintln(out, "Available commands:")
	for _, cmd := range CommandsRegistry {
		_, _ = fmt.Fprintf(out, "  %s - %s\n", colorCyanBold.Sprint(buildCommandUsage(cmd)), colorGreen.Sprint(cmd.Description))
	}
}

func printCommandHelp(out io.Writer, commandName string) bool {
	for _, cmd := range CommandsRegistry {
		if cmd.Name != commandName {
			continue
		}
		_, _ = fmt.Fprintf(out, "%s %s\n", colorYellow.Sprint("Command:"), colorGreen.Sprint(cmd.Name))
		_, _ = fmt.Fprintf(out, "%s %s\n", colorYellow.Sprint("Description:"), colorGreen.Sprint(cmd.Description))
		if len(cmd.Params) == 0 {
			_, _ = colorYellow.Fprintln(out, "This command has no parameters.")
			return true
		}
		_, _ = colorYellow.Fprintln(out, "Parameters:")
		for _, param := range cmd.Params {
			_, _ = fmt.Fprintf(out, " <%s: %s> %s\n", colorCyan.Sprint(param.Name), param.Type, colorGreen.Sprint(param.Description))
		}
		return true
	}
	return false
}

func handleUserInput(rl *readline.Instance, settings *Settings) {
	for {
		line, err := rl.Readline()
		if err != nil {
			break
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "exit":
			return
		case line == "" || line == "help":
			printHelp(os.Stdout)
			continue
		case strings.HasPrefix(line, "help "):
			commandName := strings.TrimSpace(strings.TrimPrefix(line, "help "))
			if !printCommandHelp(os.Stdout, commandName) {
				_, _ = colorRed.Printf("Unknown command: '%s'\n", commandName)
			}
			continue
		}

		cmd, params, err := FindCommand(line)
		if err != nil {
			_, _ = colorRed.Printf("Error: %v\n", err)
			continue
		}
		if err = cmd.Handler(params, settings); err != nil {
			_, _ = colorRed.Printf("Command error: %v\n", err)
		}
	}
}
