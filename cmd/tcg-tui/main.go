package main

import (
	"fmt"
	"os"

	"github.com/handiism/tcg-dataset/internal/config"
	"github.com/handiism/tcg-dataset/internal/tui"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	configFlag := pflag.String("config", "", "Path to config file")
	pflag.String("path", config.DefaultSettings().Output.Root, "Dataset root directory")
	pflag.Int("amount", 0, "Maximum number of cards to process (0 = all)")
	pflag.Int("threads", 0, "Worker count (0 = one per CPU)")
	pflag.Parse()

	settings, err := config.Load(*configFlag, pflag.CommandLine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Log lines would tear the alternate screen; only errors get through.
	zlog.Init()
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)

	if err := tui.Run(settings); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
