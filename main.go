package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"soundmark/utils"
)

var engineConfig EngineConfig

func main() {
	_ = utils.CreateFolder("tmp")
	_ = utils.CreateFolder(SONGS_DIR)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	_ = godotenv.Load()

	cfg, err := LoadEngineConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	engineConfig = cfg

	switch os.Args[1] {
	case "find":
		if len(os.Args) < 3 {
			fmt.Println("usage: soundmark find <path_to_audio_file>")
			os.Exit(1)
		}
		find(os.Args[2])

	case "serve":
		serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
		protocol := serveCmd.String("proto", "http", "protocol label shown in the startup log (the server always serves plain http)")
		port := serveCmd.String("p", "5000", "port to use")
		serveCmd.Parse(os.Args[2:])
		serve(*protocol, *port)

	case "erase":
		dbOnly := true
		all := false

		if len(os.Args) > 2 {
			switch os.Args[2] {
			case "db":
				dbOnly = true
			case "all":
				dbOnly = false
				all = true
			default:
				fmt.Println("usage: soundmark erase [db | all]")
				os.Exit(1)
			}
		}

		erase(SONGS_DIR, dbOnly, all)

	case "save":
		indexCmd := flag.NewFlagSet("save", flag.ExitOnError)
		force := indexCmd.Bool("force", false, "silence the missing-artist warning (files are indexed either way)")
		indexCmd.BoolVar(force, "f", false, "silence the missing-artist warning (shorthand)")
		indexCmd.Parse(os.Args[2:])
		if indexCmd.NArg() < 1 {
			fmt.Println("usage: soundmark save [-f|--force] <path_to_file_or_dir>")
			os.Exit(1)
		}
		save(indexCmd.Arg(0), *force)

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("usage: soundmark <command>")
	fmt.Println()
	fmt.Println("commands:")
	fmt.Println("  find  <audio_file>               match a file against the catalog")
	fmt.Println("  save  [-f] <file_or_dir>          index audio file(s) into the catalog")
	fmt.Println("  erase [db | all]                  clear catalog (and optionally audio files)")
	fmt.Println("  serve [-proto http] [-p 5000]     start the web server")
}
